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
	"errors"
	"testing"
	"time"

	"erldist/pkg/etf"
)

func trackedCall(id, serial uint32, timeout time.Duration) *callContext {
	pid := etf.Pid{Node: "t@local", Id: id, Serial: serial, Creation: 1}
	return newCallContext(pid, etf.AtomRex, timeout)
}

func mustResult(t *testing.T, ctx *callContext) callResult {
	t.Helper()
	select {
	case res := <-ctx.chResponse:
		return res
	default:
		t.Fatal("call not resolved")
		return callResult{}
	}
}

func TestCorrelationKey(t *testing.T) {
	a := etf.Pid{Id: 7, Serial: 0}
	b := etf.Pid{Id: 7, Serial: 1}
	c := etf.Pid{Id: 8, Serial: 0}
	if correlationKey(a) == correlationKey(b) || correlationKey(a) == correlationKey(c) {
		t.Error("distinct pids collapsed to one key")
	}
	if correlationKey(etf.Pid{Id: 7, Serial: 0, Creation: 99}) != correlationKey(a) {
		t.Error("creation must not affect the key")
	}
}

func TestTrackerResponse(t *testing.T) {
	tr := newPendingTracker()
	ctx := trackedCall(1, 0, time.Minute)
	tr.onCallSent(ctx)
	if tr.size() != 1 {
		t.Fatalf("size %d", tr.size())
	}

	tr.onResponse(ctx.key, etf.Atom("reply"))
	if tr.size() != 0 {
		t.Errorf("size %d after response", tr.size())
	}
	res := mustResult(t, ctx)
	if res.err != nil || res.reply != etf.Atom("reply") {
		t.Errorf("result %+v", res)
	}

	// A duplicate reply has nothing to match and is dropped.
	tr.onResponse(ctx.key, etf.Atom("again"))
}

func TestTrackerResolveOnce(t *testing.T) {
	ctx := trackedCall(1, 0, time.Minute)
	if !ctx.resolve(callResult{reply: etf.Atom("first")}) {
		t.Fatal("first resolve rejected")
	}
	if ctx.resolve(callResult{reply: etf.Atom("second")}) {
		t.Error("second resolve accepted")
	}
	if res := mustResult(t, ctx); res.reply != etf.Atom("first") {
		t.Errorf("kept %v", res.reply)
	}
}

func TestTrackerTimeout(t *testing.T) {
	tr := newPendingTracker()
	expired := trackedCall(1, 0, 10*time.Millisecond)
	fresh := trackedCall(2, 0, time.Hour)
	tr.onCallSent(expired)
	tr.onCallSent(fresh)

	tr.onTimeout(time.Now().Add(time.Second))
	if tr.size() != 1 {
		t.Fatalf("size %d, want the fresh call only", tr.size())
	}
	res := mustResult(t, expired)
	if RpcErrorOf(res.err) != RpcTimeout {
		t.Fatalf("error %v", res.err)
	}
	if res.err.(*RpcError).Duration != 10*time.Millisecond {
		t.Errorf("duration %s", res.err.(*RpcError).Duration)
	}
	select {
	case <-fresh.chResponse:
		t.Error("fresh call resolved early")
	default:
	}
}

func TestTrackerRemove(t *testing.T) {
	tr := newPendingTracker()
	ctx := trackedCall(1, 0, time.Minute)
	tr.onCallSent(ctx)
	tr.remove(ctx.key)
	if tr.size() != 0 {
		t.Fatalf("size %d", tr.size())
	}
	// The late reply for a cancelled call is discarded silently.
	tr.onResponse(ctx.key, etf.Atom("late"))
	select {
	case <-ctx.chResponse:
		t.Error("cancelled call resolved")
	default:
	}
}

func TestTrackerClearOnError(t *testing.T) {
	tr := newPendingTracker()
	cause := errors.New("connection lost")
	calls := []*callContext{
		trackedCall(1, 0, time.Minute),
		trackedCall(2, 0, time.Minute),
		trackedCall(3, 0, time.Minute),
	}
	for _, ctx := range calls {
		tr.onCallSent(ctx)
	}
	tr.clearOnError(cause)
	if tr.size() != 0 {
		t.Fatalf("size %d after clear", tr.size())
	}
	for i, ctx := range calls {
		if res := mustResult(t, ctx); res.err != cause {
			t.Errorf("call %d error %v", i, res.err)
		}
	}
}

func TestTrackerTimerFires(t *testing.T) {
	tr := newPendingTracker()
	ctx := trackedCall(1, 0, 20*time.Millisecond)
	tr.onCallSent(ctx)
	select {
	case now := <-tr.getTimeoutCh():
		tr.onTimeout(now)
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	if RpcErrorOf(mustResult(t, ctx).err) != RpcTimeout {
		t.Error("call not expired by its own timer")
	}
}
