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

package node

import (
	"fmt"
	"net"
	"time"

	"erldist/pkg/dist"
	"erldist/third_party/forked/golang/glog"
)

// peerInfo is the handshake's outcome: who we are talking to and what
// was agreed.
type peerInfo struct {
	name     string
	flags    dist.Flags
	creation uint32
}

// initiatorHandshake runs the connecting side: send name, await status
// and challenge, prove the cookie, verify the peer's proof.
func (s *Session) initiatorHandshake() (*peerInfo, error) {
	conn := s.conn
	conn.SetDeadline(time.Now().Add(s.config.HandshakeTimeout.Duration))
	defer conn.SetDeadline(time.Time{})

	localFlags := s.config.advertisedFlags()
	sendName := dist.SendName{Flags: localFlags, Creation: s.creation, Name: s.config.NodeName}
	if err := dist.WriteHandshakeMessage(conn, sendName.Append(nil)); err != nil {
		return nil, wrapTimeout(err)
	}
	s.setState(StateNameSent)

	body, err := dist.ReadHandshakeMessage(conn)
	if err != nil {
		return nil, wrapTimeout(err)
	}
	status, err := dist.ParseStatus(body)
	if err != nil {
		return nil, err
	}
	switch status {
	case dist.StatusOk, dist.StatusOkSimultaneous:
	default:
		return nil, &dist.HandshakeError{Kind: dist.PeerRejected, Detail: status}
	}

	body, err = dist.ReadHandshakeMessage(conn)
	if err != nil {
		return nil, wrapTimeout(err)
	}
	challenge, err := dist.ParseChallenge(body)
	if err != nil {
		return nil, err
	}
	s.setState(StatePeerNameReceived)
	agreed, err := dist.Negotiate(localFlags, challenge.Flags)
	if err != nil {
		return nil, err
	}

	ownChallenge := dist.GenChallenge()
	reply := dist.ChallengeReply{
		Challenge: ownChallenge,
		Digest:    dist.GenDigest(challenge.Challenge, s.config.Cookie),
	}
	if err := dist.WriteHandshakeMessage(conn, reply.Append(nil)); err != nil {
		return nil, wrapTimeout(err)
	}
	s.setState(StateChallengeSent)

	body, err = dist.ReadHandshakeMessage(conn)
	if err != nil {
		return nil, wrapTimeout(err)
	}
	ack, err := dist.ParseChallengeAck(body)
	if err != nil {
		return nil, err
	}
	if ack.Digest != dist.GenDigest(ownChallenge, s.config.Cookie) {
		return nil, &dist.HandshakeError{Kind: dist.DigestMismatch}
	}

	if glog.LOG_DEBUG {
		glog.Debugf("handshake with %s done, flags=%s", challenge.Name, agreed)
	}
	return &peerInfo{name: challenge.Name, flags: agreed, creation: challenge.Creation}, nil
}

// acceptorHandshake runs the listening side: await the peer's name,
// challenge it, verify its proof, prove the cookie back.
func (s *Session) acceptorHandshake() (*peerInfo, error) {
	conn := s.conn
	conn.SetDeadline(time.Now().Add(s.config.HandshakeTimeout.Duration))
	defer conn.SetDeadline(time.Time{})

	body, err := dist.ReadHandshakeMessage(conn)
	if err != nil {
		return nil, wrapTimeout(err)
	}
	sendName, err := dist.ParseSendName(body)
	if err != nil {
		return nil, err
	}
	if sendName.Name == s.config.NodeName {
		return nil, &dist.HandshakeError{Kind: dist.NameMismatch, Detail: "peer claims our own name"}
	}
	s.setState(StatePeerNameReceived)
	localFlags := s.config.advertisedFlags()
	agreed, err := dist.Negotiate(localFlags, sendName.Flags)
	if err != nil {
		// The peer learns it was refused rather than seeing a bare close.
		dist.WriteHandshakeMessage(conn, dist.AppendStatus(nil, dist.StatusNotAllowed))
		return nil, err
	}
	if err := dist.WriteHandshakeMessage(conn, dist.AppendStatus(nil, dist.StatusOk)); err != nil {
		return nil, wrapTimeout(err)
	}

	ownChallenge := dist.GenChallenge()
	challenge := dist.Challenge{
		Flags:     localFlags,
		Challenge: ownChallenge,
		Creation:  s.creation,
		Name:      s.config.NodeName,
	}
	if err := dist.WriteHandshakeMessage(conn, challenge.Append(nil)); err != nil {
		return nil, wrapTimeout(err)
	}
	s.setState(StateChallengeSent)

	body, err = dist.ReadHandshakeMessage(conn)
	if err != nil {
		return nil, wrapTimeout(err)
	}
	reply, err := dist.ParseChallengeReply(body)
	if err != nil {
		return nil, err
	}
	s.setState(StateChallengeReplyReceived)
	if reply.Digest != dist.GenDigest(ownChallenge, s.config.Cookie) {
		glog.Warningf("cookie digest mismatch from %s", sendName.Name)
		return nil, &dist.HandshakeError{Kind: dist.DigestMismatch}
	}

	ack := dist.ChallengeAck{Digest: dist.GenDigest(reply.Challenge, s.config.Cookie)}
	if err := dist.WriteHandshakeMessage(conn, ack.Append(nil)); err != nil {
		return nil, wrapTimeout(err)
	}

	if glog.LOG_DEBUG {
		glog.Debugf("accepted handshake from %s, flags=%s", sendName.Name, agreed)
	}
	return &peerInfo{name: sendName.Name, flags: agreed, creation: sendName.Creation}, nil
}

func wrapTimeout(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &dist.HandshakeError{Kind: dist.HandshakeTimeout, Detail: err.Error()}
	}
	return fmt.Errorf("node: handshake i/o: %w", err)
}
