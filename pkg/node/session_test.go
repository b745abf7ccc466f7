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
	"fmt"
	"net"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"erldist/pkg/dist"
	"erldist/pkg/etf"
	nio "erldist/pkg/io"
	"erldist/pkg/util"
)

func testConfig(name string) *Config {
	return &Config{
		NodeName:         name,
		Cookie:           "monster",
		HandshakeTimeout: util.Duration{Duration: 2 * time.Second},
		CallTimeout:      util.Duration{Duration: 2 * time.Second},
	}
}

// newPair wires two live sessions over a loopback TCP connection.
func newPair(t *testing.T, cfgA, cfgB *Config, hA, hB Handler) (*Session, *Session) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	type acceptResult struct {
		s   *Session
		err error
	}
	ch := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			ch <- acceptResult{nil, err}
			return
		}
		s, err := Accept(conn, cfgB, hB)
		ch <- acceptResult{s, err}
	}()

	a, errA := Open(nio.ServiceEndpoint{Addr: ln.Addr().String()}, cfgA, hA)
	r := <-ch
	if errA != nil {
		if r.s != nil {
			r.s.Close()
		}
		t.Fatalf("open: %s", errA)
	}
	if r.err != nil {
		a.Close()
		t.Fatalf("accept: %s", r.err)
	}
	t.Cleanup(func() {
		a.Close()
		r.s.Close()
	})
	return a, r.s
}

// rexResponder answers call requests sent to the rex mailbox.
type rexResponder struct {
	NopHandler
	respond func(request etf.Term) etf.Term
}

func (h *rexResponder) HandleMessage(s *Session, ctrl dist.Control, msg etf.Term) {
	name, ok := ctrl.ToName()
	if !ok || name != etf.AtomRex || h.respond == nil {
		return
	}
	envelope, ok := etf.AsTuple(msg, 2)
	if !ok {
		return
	}
	replyPid, ok := envelope[0].(etf.Pid)
	if !ok {
		return
	}
	reply := h.respond(envelope[1])
	// Callbacks run on the dispatch goroutine; replying must not block it.
	go s.Send(replyPid, reply)
}

func TestHandshakeLoopback(t *testing.T) {
	a, b := newPair(t, testConfig("a@local"), testConfig("b@local"), nil, nil)
	if a.State() != StateConnected || b.State() != StateConnected {
		t.Fatalf("states %s / %s", a.State(), b.State())
	}
	if a.PeerName() != "b@local" || b.PeerName() != "a@local" {
		t.Errorf("peer names %q / %q", a.PeerName(), b.PeerName())
	}
	if !a.PeerFlags().Has(dist.MandatoryFlags) || !b.PeerFlags().Has(dist.MandatoryFlags) {
		t.Error("mandatory capabilities missing after negotiation")
	}
	if a.PeerCreation() != b.Creation() {
		t.Errorf("peer creation %d, want %d", a.PeerCreation(), b.Creation())
	}
}

func TestDigestMismatch(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfgB := testConfig("b@local")
	cfgB.Cookie = "different"
	chErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			chErr <- err
			return
		}
		_, err = Accept(conn, cfgB, nil)
		chErr <- err
	}()

	_, err = Open(nio.ServiceEndpoint{Addr: ln.Addr().String()}, testConfig("a@local"), nil)
	if err == nil {
		t.Fatal("handshake succeeded across cookies")
	}
	if kind := dist.HandshakeErrorOf(<-chErr); kind != dist.DigestMismatch {
		t.Errorf("acceptor error kind %s", kind)
	}
}

func TestRPC(t *testing.T) {
	responder := &rexResponder{respond: func(request etf.Term) etf.Term {
		// {call, M, F, Args, user}
		call, ok := etf.AsTuple(request, 5)
		if !ok || !etf.IsAtomNamed(call[0], etf.AtomCall) {
			return etf.Tuple{etf.AtomRex, etf.Tuple{etf.AtomBadRpc, etf.Atom("bad_request")}}
		}
		return etf.Tuple{etf.AtomRex, etf.OkTuple(call[3])}
	}}
	a, _ := newPair(t, testConfig("a@local"), testConfig("b@local"), nil, responder)

	args := []etf.Term{etf.Int(1), etf.Atom("two")}
	result, err := a.RPC("mymod", "myfun", args, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := etf.OkTuple(etf.NewList(args...))
	// The echoed list came through a codec cycle; compare display forms
	// to ignore pid provenance differences.
	if etf.ToString(result) != etf.ToString(want) {
		t.Errorf("result %s, want %s", etf.ToString(result), etf.ToString(want))
	}
	if a.Stats().Calls.GetStats().NumCalls != 1 {
		t.Error("call not recorded in stats")
	}
}

func TestRPCRemoteError(t *testing.T) {
	responder := &rexResponder{respond: func(etf.Term) etf.Term {
		return etf.Tuple{etf.AtomRex, etf.Tuple{etf.AtomBadRpc, etf.Atom("nodedown")}}
	}}
	a, _ := newPair(t, testConfig("a@local"), testConfig("b@local"), nil, responder)

	_, err := a.RPC("m", "f", nil, 0)
	if RpcErrorOf(err) != RpcRemoteError {
		t.Fatalf("error %v", err)
	}
	if re := err.(*RpcError); !etf.IsAtomNamed(re.Reason, "nodedown") {
		t.Errorf("reason %s", etf.ToString(re.Reason))
	}
}

func TestCallTimeout(t *testing.T) {
	// Nobody consumes rex requests on b.
	a, _ := newPair(t, testConfig("a@local"), testConfig("b@local"), nil, nil)

	const timeout = 150 * time.Millisecond
	timeStart := time.Now()
	_, err := a.Call(etf.AtomRex, etf.Atom("ping"), timeout)
	elapsed := time.Since(timeStart)
	if RpcErrorOf(err) != RpcTimeout {
		t.Fatalf("error %v", err)
	}
	if re := err.(*RpcError); re.Duration != timeout {
		t.Errorf("error carries %s, want %s", re.Duration, timeout)
	}
	if elapsed < timeout {
		t.Errorf("resolved after %s, before the %s timeout", elapsed, timeout)
	}
	if elapsed > timeout+2*time.Second {
		t.Errorf("resolved after %s, far past the %s timeout", elapsed, timeout)
	}
}

func TestCallCancel(t *testing.T) {
	a, _ := newPair(t, testConfig("a@local"), testConfig("b@local"), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	_, err := a.CallContext(ctx, etf.AtomRex, etf.Atom("ping"), time.Minute)
	if err != context.Canceled {
		t.Fatalf("error %v", err)
	}
}

func TestConcurrentCalls(t *testing.T) {
	responder := &rexResponder{respond: func(request etf.Term) etf.Term {
		return request
	}}
	a, _ := newPair(t, testConfig("a@local"), testConfig("b@local"), nil, responder)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			want := etf.Tuple{etf.Atom("req"), etf.Int(i)}
			got, err := a.Call(etf.AtomRex, want, 0)
			if err != nil {
				errs[i] = err
				return
			}
			if !reflect.DeepEqual(got, etf.Term(want)) {
				errs[i] = fmt.Errorf("call %d got %s", i, etf.ToString(got))
			}
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("call %d: %s", i, err)
		}
	}
}

func TestCloseFanOut(t *testing.T) {
	a, _ := newPair(t, testConfig("a@local"), testConfig("b@local"), nil, nil)

	const m = 8
	var wg sync.WaitGroup
	kinds := make([]RpcErrorKind, m)
	wg.Add(m)
	for i := 0; i < m; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := a.Call(etf.AtomRex, etf.Int(i), time.Minute)
			kinds[i] = RpcErrorOf(err)
		}(i)
	}
	// Let the calls reach the pending map before closing.
	time.Sleep(100 * time.Millisecond)
	a.Close()
	wg.Wait()
	for i, kind := range kinds {
		if kind != RpcConnectionClosed {
			t.Errorf("call %d resolved with %s", i, kind)
		}
	}
	if a.tracker.size() != 0 {
		t.Errorf("%d pending calls left after close", a.tracker.size())
	}
	if a.State() != StateClosed {
		t.Errorf("state %s after close", a.State())
	}
}

func TestSendRouting(t *testing.T) {
	chB := make(chan delivered, 4)
	handlerB := &captureHandler{ch: chB}
	a, b := newPair(t, testConfig("a@local"), testConfig("b@local"), nil, handlerB)

	if err := a.Send(etf.Atom("mailbox"), etf.Atom("hello")); err != nil {
		t.Fatal(err)
	}
	got := waitDelivery(t, chB)
	if name, ok := got.ctrl.ToName(); !ok || name != "mailbox" {
		t.Errorf("destination %v", got.ctrl.To)
	}
	if got.msg != etf.Atom("hello") {
		t.Errorf("message %v", got.msg)
	}

	// Cross-node pid destination reaches the peer's handler too.
	if err := a.Send(remotePid(t, b.BasePid()), etf.Atom("direct")); err != nil {
		t.Fatal(err)
	}
	got = waitDelivery(t, chB)
	if got.msg != etf.Atom("direct") {
		t.Errorf("message %v", got.msg)
	}
}

func TestLinkUnlink(t *testing.T) {
	chA := make(chan dist.Control, 4)
	chB := make(chan dist.Control, 4)
	a, b := newPair(t, testConfig("a@local"), testConfig("b@local"),
		&controlHandler{ch: chA}, &controlHandler{ch: chB})

	from := a.BasePid()
	to := remotePid(t, b.BasePid())
	if err := a.Link(from, to); err != nil {
		t.Fatal(err)
	}
	if op := waitControl(t, chB).Op; op != dist.OpLink {
		t.Fatalf("peer saw %s", op)
	}

	if err := a.Unlink(from, to); err != nil {
		t.Fatal(err)
	}
	if op := waitControl(t, chB).Op; op != dist.OpUnlinkId {
		t.Fatalf("peer saw %s", op)
	}
	// The peer's session acks on its own; the ack comes back to us.
	if op := waitControl(t, chA).Op; op != dist.OpUnlinkIdAck {
		t.Fatalf("ack came back as %s", op)
	}
}

func TestMonitorDemonitor(t *testing.T) {
	chB := make(chan dist.Control, 4)
	a, _ := newPair(t, testConfig("a@local"), testConfig("b@local"),
		nil, &controlHandler{ch: chB})

	ref, err := a.Monitor(a.BasePid(), etf.Atom("server"))
	if err != nil {
		t.Fatal(err)
	}
	got := waitControl(t, chB)
	if got.Op != dist.OpMonitorP {
		t.Fatalf("peer saw %s", got.Op)
	}
	gotRef, ok := got.Ref.(etf.Ref)
	if !ok || !reflect.DeepEqual(gotRef.Ids, ref.Ids) {
		t.Errorf("ref %v, want ids %v", got.Ref, ref.Ids)
	}
	if err := a.Demonitor(a.BasePid(), etf.Atom("server"), ref); err != nil {
		t.Fatal(err)
	}
	if op := waitControl(t, chB).Op; op != dist.OpDemonitorP {
		t.Fatalf("peer saw %s", op)
	}
}

func TestFragmentedRPC(t *testing.T) {
	cfgA := testConfig("a@local")
	cfgA.MaxFragmentSize = 64
	cfgB := testConfig("b@local")
	cfgB.MaxFragmentSize = 64

	responder := &rexResponder{respond: func(request etf.Term) etf.Term {
		return request
	}}
	a, _ := newPair(t, cfgA, cfgB, nil, responder)

	big := etf.Binary(strings.Repeat("fragmented payload ", 300))
	got, err := a.Call(etf.AtomRex, big, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, etf.Term(big)) {
		t.Error("fragmented payload did not survive the roundtrip")
	}
}

func TestTickKeepAlive(t *testing.T) {
	cfgA := testConfig("a@local")
	cfgA.TickInterval = util.Duration{Duration: 40 * time.Millisecond}
	cfgA.TickTimeout = util.Duration{Duration: 5 * time.Second}
	cfgB := testConfig("b@local")
	cfgB.TickTimeout = util.Duration{Duration: 300 * time.Millisecond}

	a, b := newPair(t, cfgA, cfgB, nil, nil)
	time.Sleep(600 * time.Millisecond)
	if a.State() != StateConnected || b.State() != StateConnected {
		t.Fatalf("states %s / %s after idle period", a.State(), b.State())
	}
	if b.Stats().TicksIn.Get() == 0 {
		t.Error("no keep-alive ticks received")
	}
}

func TestInactivityClose(t *testing.T) {
	cfgA := testConfig("a@local")
	cfgA.TickTimeout = util.Duration{Duration: 150 * time.Millisecond}
	// The peer stays silent long past our tolerance.
	cfgB := testConfig("b@local")
	cfgB.TickInterval = util.Duration{Duration: time.Hour}

	a, _ := newPair(t, cfgA, cfgB, nil, nil)
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session outlived an unresponsive peer")
	}
	if a.CloseError() == nil {
		t.Error("no close reason recorded")
	}
}

func TestCallAfterClose(t *testing.T) {
	a, _ := newPair(t, testConfig("a@local"), testConfig("b@local"), nil, nil)
	a.Close()
	if _, err := a.Call(etf.AtomRex, etf.Atom("x"), time.Second); RpcErrorOf(err) != RpcConnectionClosed {
		t.Errorf("call on closed session: %v", err)
	}
	if err := a.Send(etf.Atom("mailbox"), etf.Atom("x")); err != ErrNotConnected {
		t.Errorf("send on closed session: %v", err)
	}
}

type captureHandler struct {
	NopHandler
	ch chan delivered
}

type delivered struct {
	ctrl dist.Control
	msg  etf.Term
}

func (h *captureHandler) HandleMessage(_ *Session, ctrl dist.Control, msg etf.Term) {
	h.ch <- delivered{ctrl: ctrl, msg: msg}
}

type controlHandler struct {
	NopHandler
	ch chan dist.Control
}

func (h *controlHandler) HandleControl(_ *Session, ctrl dist.Control) {
	h.ch <- ctrl
}

func waitDelivery(t *testing.T, ch chan delivered) delivered {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("message never delivered")
		return delivered{}
	}
}

func waitControl(t *testing.T, ch chan dist.Control) dist.Control {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("control never delivered")
		return dist.Control{}
	}
}

// remotePid rebuilds a pid the way the peer would see it after a codec
// cycle, so provenance bytes are present.
func remotePid(t *testing.T, p etf.Pid) etf.Pid {
	t.Helper()
	raw, err := etf.AppendTerm(nil, p)
	if err != nil {
		t.Fatal(err)
	}
	term, _, err := etf.DecodeTerm(raw)
	if err != nil {
		t.Fatal(err)
	}
	return term.(etf.Pid)
}
