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
	"crypto/md5"
	"crypto/rand"
	"fmt"
	"io"
	"strconv"

	"erldist/pkg/etf"
)

// Handshake message tag bytes.
const (
	kSendNameTag       byte = 'N'
	kStatusTag         byte = 's'
	kChallengeTag      byte = 'N'
	kChallengeReplyTag byte = 'r'
	kChallengeAckTag   byte = 'a'
)

// Status values carried by the 's' message.
const (
	StatusOk             = "ok"
	StatusOkSimultaneous = "ok_simultaneous"
	StatusNok            = "nok"
	StatusNotAllowed     = "not_allowed"
	StatusAlive          = "alive"
)

// SendName is the initiator's opening message: capabilities, incarnation
// and full node name.
type SendName struct {
	Flags    Flags
	Creation uint32
	Name     string
}

// Challenge is the acceptor's reply to SendName, carrying its own flags
// and a random challenge the initiator must digest.
type Challenge struct {
	Flags     Flags
	Challenge uint32
	Creation  uint32
	Name      string
}

type ChallengeReply struct {
	Challenge uint32
	Digest    [16]byte
}

type ChallengeAck struct {
	Digest [16]byte
}

// GenDigest computes the cookie digest for a challenge: the MD5 of the
// cookie concatenated with the challenge in decimal.
func GenDigest(challenge uint32, cookie string) [16]byte {
	h := md5.New()
	io.WriteString(h, cookie)
	io.WriteString(h, strconv.FormatUint(uint64(challenge), 10))
	var digest [16]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// GenChallenge draws a random 32-bit challenge. The challenge is an
// authentication nonce, so a failing entropy source is fatal.
func GenChallenge() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("dist: reading random challenge: %s", err))
	}
	return etf.EncByteOrder.Uint32(b[:])
}

// WriteHandshakeMessage frames one handshake message with the 2-byte
// length prefix used before the connection switches to 4-byte frames.
func WriteHandshakeMessage(w io.Writer, body []byte) error {
	buf := make([]byte, 2+len(body))
	etf.EncByteOrder.PutUint16(buf, uint16(len(body)))
	copy(buf[2:], body)
	_, err := w.Write(buf)
	return err
}

// ReadHandshakeMessage reads one 2-byte length prefixed message.
func ReadHandshakeMessage(r io.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	body := make([]byte, etf.EncByteOrder.Uint16(hdr[:]))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (m SendName) Append(dst []byte) []byte {
	dst = append(dst, kSendNameTag)
	dst = appendU64(dst, uint64(m.Flags))
	dst = appendU32(dst, m.Creation)
	dst = appendU16(dst, uint16(len(m.Name)))
	return append(dst, m.Name...)
}

func ParseSendName(b []byte) (SendName, error) {
	var m SendName
	if len(b) < 15 || b[0] != kSendNameTag {
		return m, badHandshake(b)
	}
	m.Flags = Flags(etf.EncByteOrder.Uint64(b[1:]))
	m.Creation = etf.EncByteOrder.Uint32(b[9:])
	nlen := int(etf.EncByteOrder.Uint16(b[13:]))
	if len(b) != 15+nlen {
		return m, badHandshake(b)
	}
	m.Name = string(b[15:])
	return m, nil
}

func AppendStatus(dst []byte, status string) []byte {
	dst = append(dst, kStatusTag)
	return append(dst, status...)
}

func ParseStatus(b []byte) (string, error) {
	if len(b) < 2 || b[0] != kStatusTag {
		return "", badHandshake(b)
	}
	return string(b[1:]), nil
}

func (m Challenge) Append(dst []byte) []byte {
	dst = append(dst, kChallengeTag)
	dst = appendU64(dst, uint64(m.Flags))
	dst = appendU32(dst, m.Challenge)
	dst = appendU32(dst, m.Creation)
	dst = appendU16(dst, uint16(len(m.Name)))
	return append(dst, m.Name...)
}

func ParseChallenge(b []byte) (Challenge, error) {
	var m Challenge
	if len(b) < 19 || b[0] != kChallengeTag {
		return m, badHandshake(b)
	}
	m.Flags = Flags(etf.EncByteOrder.Uint64(b[1:]))
	m.Challenge = etf.EncByteOrder.Uint32(b[9:])
	m.Creation = etf.EncByteOrder.Uint32(b[13:])
	nlen := int(etf.EncByteOrder.Uint16(b[17:]))
	if len(b) != 19+nlen {
		return m, badHandshake(b)
	}
	m.Name = string(b[19:])
	return m, nil
}

func (m ChallengeReply) Append(dst []byte) []byte {
	dst = append(dst, kChallengeReplyTag)
	dst = appendU32(dst, m.Challenge)
	return append(dst, m.Digest[:]...)
}

func ParseChallengeReply(b []byte) (ChallengeReply, error) {
	var m ChallengeReply
	if len(b) != 21 || b[0] != kChallengeReplyTag {
		return m, badHandshake(b)
	}
	m.Challenge = etf.EncByteOrder.Uint32(b[1:])
	copy(m.Digest[:], b[5:])
	return m, nil
}

func (m ChallengeAck) Append(dst []byte) []byte {
	dst = append(dst, kChallengeAckTag)
	return append(dst, m.Digest[:]...)
}

func ParseChallengeAck(b []byte) (ChallengeAck, error) {
	var m ChallengeAck
	if len(b) != 17 || b[0] != kChallengeAckTag {
		return m, badHandshake(b)
	}
	copy(m.Digest[:], b[1:])
	return m, nil
}

func badHandshake(b []byte) error {
	detail := "empty message"
	if len(b) > 0 {
		detail = "tag " + strconv.Itoa(int(b[0])) + ", " + strconv.Itoa(len(b)) + " bytes"
	}
	return &HandshakeError{Kind: UnexpectedMessage, Detail: detail}
}

func appendU16(dst []byte, v uint16) []byte {
	var b [2]byte
	etf.EncByteOrder.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	etf.EncByteOrder.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendU64(dst []byte, v uint64) []byte {
	var b [8]byte
	etf.EncByteOrder.PutUint64(b[:], v)
	return append(dst, b[:]...)
}
