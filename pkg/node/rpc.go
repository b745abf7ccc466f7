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
	"context"
	"time"

	"erldist/pkg/dist"
	"erldist/pkg/etf"
)

// Call sends {ReplyPid, request} to the peer's named mailbox and waits
// for the reply addressed to ReplyPid. A timeout of 0 uses the
// configured CallTimeout. Exactly one outcome is delivered per call.
func (s *Session) Call(mailbox etf.Atom, request etf.Term, timeout time.Duration) (etf.Term, error) {
	return s.CallContext(context.Background(), mailbox, request, timeout)
}

// CallContext is Call with caller-side cancellation. Cancelling removes
// the pending call; a reply arriving later is discarded.
func (s *Session) CallContext(ctx context.Context, mailbox etf.Atom, request etf.Term, timeout time.Duration) (etf.Term, error) {
	if timeout <= 0 {
		timeout = s.config.CallTimeout.Duration
	}
	replyPid := s.allocPid()
	call := newCallContext(replyPid, mailbox, timeout)
	control := dist.RegSendControl(replyPid, mailbox)
	payload := etf.Tuple{replyPid, request}
	frames, err := dist.FragmentMessage(s.seqCounter.Next(), control, payload, s.config.MaxFragmentSize)
	if err != nil {
		return nil, err
	}
	timeStart := time.Now()
	err = s.submit(&outRequest{frames: frames, ctx: call, chErr: make(chan error, 1)})
	if err != nil {
		if err == ErrClosed || err == ErrNotConnected {
			return nil, &RpcError{Kind: RpcConnectionClosed}
		}
		return nil, err
	}
	select {
	case res := <-call.chResponse:
		s.stats.Calls.Put(time.Since(timeStart), res.err != nil, RpcErrorOf(res.err) == RpcTimeout)
		return res.reply, res.err

	case <-ctx.Done():
		s.cancelCall(call.key)
		return nil, ctx.Err()

	case <-s.chDone:
		return nil, &RpcError{Kind: RpcConnectionClosed}
	}
}

// cancelCall asks the dispatch loop to drop a pending entry.
func (s *Session) cancelCall(key uint64) {
	select {
	case s.chRequest <- &outRequest{cancelKey: key}:
	case <-s.chDone:
	}
}

// RPCRaw performs module:function(args...) on the peer through its rex
// mailbox and returns the reply term unchanged.
func (s *Session) RPCRaw(module, function etf.Atom, args []etf.Term, timeout time.Duration) (etf.Term, error) {
	request := etf.Tuple{etf.AtomCall, module, function, etf.NewList(args...), etf.AtomUser}
	return s.Call(etf.AtomRex, request, timeout)
}

// RPC is RPCRaw plus reply unwrapping: a {rex, Result} envelope yields
// Result, and an {error, Reason} or {badrpc, Reason} shaped result
// surfaces as a remote error.
func (s *Session) RPC(module, function etf.Atom, args []etf.Term, timeout time.Duration) (etf.Term, error) {
	reply, err := s.RPCRaw(module, function, args, timeout)
	if err != nil {
		return nil, err
	}
	envelope, ok := etf.AsTuple(reply, 2)
	if !ok || !etf.IsAtomNamed(envelope[0], etf.AtomRex) {
		return nil, &RpcError{Kind: RpcRemoteError, Reason: reply}
	}
	result := envelope[1]
	if inner, ok := etf.AsTuple(result, 2); ok {
		if etf.IsAtomNamed(inner[0], etf.AtomBadRpc) || etf.IsAtomNamed(inner[0], etf.AtomError) {
			return nil, &RpcError{Kind: RpcRemoteError, Reason: inner[1]}
		}
	}
	return result, nil
}

// Send delivers a one-way message to a remote pid or registered name.
func (s *Session) Send(to etf.Term, msg etf.Term) error {
	var control etf.Term
	switch dest := to.(type) {
	case etf.Pid:
		if s.peer.flags.Has(dist.FlagSendSender) {
			control = dist.SendSenderControl(s.basePid, dest)
		} else {
			control = dist.SendControl(dest)
		}
	case etf.Atom:
		control = dist.RegSendControl(s.basePid, dest)
	default:
		return ErrBadDestination
	}
	return s.sendControl(control, msg)
}

// Link requests a bidirectional link between a local and a remote pid.
// Link state itself lives in the actor layer; the session only frames
// and routes the control messages.
func (s *Session) Link(from, to etf.Pid) error {
	return s.sendControl(dist.LinkControl(from, to), nil)
}

// Unlink dissolves a link. The peer confirms with UNLINK_ID_ACK, routed
// to the handler.
func (s *Session) Unlink(from, to etf.Pid) error {
	id := s.unlinkCounter.Next()
	return s.sendControl(dist.UnlinkIdControl(id, from, to), nil)
}

// Monitor starts monitoring a remote process, by pid or registered
// name, and returns the reference identifying the monitor.
func (s *Session) Monitor(from etf.Pid, target etf.Term) (etf.Ref, error) {
	ref := s.MakeRef()
	if err := s.sendControl(dist.MonitorControl(from, target, ref), nil); err != nil {
		return etf.Ref{}, err
	}
	return ref, nil
}

// Demonitor removes a monitor previously established with ref.
func (s *Session) Demonitor(from etf.Pid, target etf.Term, ref etf.Ref) error {
	return s.sendControl(dist.DemonitorControl(from, target, ref), nil)
}

// SendExit delivers an exit signal to a remote pid. exit2 selects the
// EXIT2 form used by explicit exit requests rather than link breakage.
func (s *Session) SendExit(from, to etf.Pid, reason etf.Term, exit2 bool) error {
	if exit2 {
		return s.sendControl(dist.Exit2Control(from, to, reason), nil)
	}
	return s.sendControl(dist.ExitControl(from, to, reason), nil)
}
