//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package dist

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestGenDigest(t *testing.T) {
	// md5("monster" ++ "12345")
	want, _ := hex.DecodeString("a5ed80015fecaf4c95df69831987c39e")
	got := GenDigest(12345, "monster")
	if !bytes.Equal(got[:], want) {
		t.Errorf("digest %x, want %x", got, want)
	}
	other := GenDigest(12346, "monster")
	if got == other {
		t.Error("distinct challenges produced the same digest")
	}
}

func TestHandshakeFraming(t *testing.T) {
	var buf bytes.Buffer
	body := SendName{Flags: DefaultFlags, Creation: 7, Name: "a@host"}.Append(nil)
	if err := WriteHandshakeMessage(&buf, body); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 2+len(body) {
		t.Fatalf("framed %d bytes, body %d", buf.Len(), len(body))
	}
	got, err := ReadHandshakeMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, body) {
		t.Error("framing altered the body")
	}
}

func TestSendNameRoundTrip(t *testing.T) {
	m := SendName{Flags: DefaultFlags, Creation: 0xDEADBEEF, Name: "node1@box.example"}
	got, err := ParseSendName(m.Append(nil))
	if err != nil {
		t.Fatal(err)
	}
	if got != m {
		t.Errorf("got %+v", got)
	}
	if _, err := ParseSendName([]byte{'N', 1, 2}); HandshakeErrorOf(err) != UnexpectedMessage {
		t.Errorf("short message: %v", err)
	}
	// Name length not matching the remaining bytes is malformed.
	b := m.Append(nil)
	if _, err := ParseSendName(b[:len(b)-1]); HandshakeErrorOf(err) != UnexpectedMessage {
		t.Errorf("truncated name: %v", err)
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	m := Challenge{Flags: MandatoryFlags, Challenge: 0x1234, Creation: 9, Name: "b@host"}
	got, err := ParseChallenge(m.Append(nil))
	if err != nil {
		t.Fatal(err)
	}
	if got != m {
		t.Errorf("got %+v", got)
	}
}

func TestChallengeReplyAndAck(t *testing.T) {
	digest := GenDigest(42, "secret")
	reply := ChallengeReply{Challenge: 99, Digest: digest}
	gotReply, err := ParseChallengeReply(reply.Append(nil))
	if err != nil || gotReply != reply {
		t.Fatalf("reply: %+v %v", gotReply, err)
	}
	ack := ChallengeAck{Digest: digest}
	gotAck, err := ParseChallengeAck(ack.Append(nil))
	if err != nil || gotAck != ack {
		t.Fatalf("ack: %+v %v", gotAck, err)
	}
	if _, err := ParseChallengeAck(reply.Append(nil)); HandshakeErrorOf(err) != UnexpectedMessage {
		t.Errorf("ack from reply bytes: %v", err)
	}
}

func TestStatus(t *testing.T) {
	got, err := ParseStatus(AppendStatus(nil, StatusOk))
	if err != nil || got != StatusOk {
		t.Fatalf("status: %q %v", got, err)
	}
	if _, err := ParseStatus([]byte{'s'}); err == nil {
		t.Error("empty status accepted")
	}
}

func TestNegotiate(t *testing.T) {
	agreed, err := Negotiate(DefaultFlags, DefaultFlags|FlagDistHdrAtomCache)
	if err != nil {
		t.Fatal(err)
	}
	if agreed.Has(FlagDistHdrAtomCache) {
		t.Error("unrequested capability agreed")
	}
	if !agreed.Has(MandatoryFlags) {
		t.Error("mandatory capabilities lost")
	}
	_, err = Negotiate(DefaultFlags, DefaultFlags&^FlagFragments)
	if HandshakeErrorOf(err) != IncompatibleFlags {
		t.Errorf("missing mandatory flag: %v", err)
	}
}

func TestGenChallengeVaries(t *testing.T) {
	seen := map[uint32]bool{}
	for i := 0; i < 8; i++ {
		seen[GenChallenge()] = true
	}
	if len(seen) < 2 {
		t.Error("challenges do not vary")
	}
}
