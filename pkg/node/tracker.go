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
	"time"

	uuid "github.com/satori/go.uuid"

	"erldist/pkg/etf"
	"erldist/pkg/util"
	"erldist/third_party/forked/golang/glog"
)

type callResult struct {
	reply etf.Term
	err   error
}

// callContext is one in-flight call. chResponse holds exactly one
// result; whoever resolves first wins and later outcomes are dropped.
type callContext struct {
	key        uint64
	replyPid   etf.Pid
	mailbox    etf.Atom
	reqId      string
	timeout    time.Duration
	deadline   time.Time
	timeStart  time.Time
	chResponse chan callResult
}

func newCallContext(replyPid etf.Pid, mailbox etf.Atom, timeout time.Duration) *callContext {
	now := time.Now()
	return &callContext{
		key:        correlationKey(replyPid),
		replyPid:   replyPid,
		mailbox:    mailbox,
		reqId:      uuid.NewV4().String(),
		timeout:    timeout,
		deadline:   now.Add(timeout),
		timeStart:  now,
		chResponse: make(chan callResult, 1),
	}
}

// resolve delivers the call's single outcome. Reports false when the
// call was already resolved.
func (c *callContext) resolve(res callResult) bool {
	select {
	case c.chResponse <- res:
		return true
	default:
		return false
	}
}

// correlationKey condenses a reply pid into the map key replies are
// matched on. Id and serial are unique per session, so the pair
// identifies the call.
func correlationKey(p etf.Pid) uint64 {
	return uint64(p.Serial)<<32 | uint64(p.Id)
}

// pendingTracker owns the pending-call map. It is used only from the
// session's dispatch goroutine and needs no locking.
type pendingTracker struct {
	pending map[uint64]*callContext
	timer   *util.TimerWrapper
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{
		pending: make(map[uint64]*callContext),
		timer:   util.NewTimerWrapper(time.Hour),
	}
}

func (t *pendingTracker) getTimeoutCh() <-chan time.Time {
	return t.timer.GetTimeoutCh()
}

func (t *pendingTracker) size() int { return len(t.pending) }

// onCallSent registers a call after its request hit the wire.
func (t *pendingTracker) onCallSent(ctx *callContext) {
	t.pending[ctx.key] = ctx
	t.rearm()
}

// onResponse matches an inbound reply to its call. An unknown key is a
// late or duplicate reply and is dropped without comment.
func (t *pendingTracker) onResponse(key uint64, reply etf.Term) {
	ctx, ok := t.pending[key]
	if !ok {
		if glog.LOG_VERBOSE {
			glog.Verbosef("discard reply for resolved call key=%d", key)
		}
		return
	}
	delete(t.pending, key)
	ctx.resolve(callResult{reply: reply})
	if glog.LOG_DEBUG {
		glog.Debugf("rid=%s resolved in %s", ctx.reqId, time.Since(ctx.timeStart))
	}
	t.rearm()
}

// onTimeout expires every call whose deadline has passed.
func (t *pendingTracker) onTimeout(now time.Time) {
	for key, ctx := range t.pending {
		if ctx.deadline.After(now) {
			continue
		}
		delete(t.pending, key)
		ctx.resolve(callResult{err: &RpcError{Kind: RpcTimeout, Duration: ctx.timeout}})
		if glog.LOG_DEBUG {
			glog.Debugf("rid=%s timed out after %s", ctx.reqId, ctx.timeout)
		}
	}
	t.rearm()
}

// remove cancels a call; a reply arriving afterwards is discarded.
func (t *pendingTracker) remove(key uint64) {
	if _, ok := t.pending[key]; ok {
		delete(t.pending, key)
		t.rearm()
	}
}

// clearOnError fails every outstanding call, leaving no residual state.
func (t *pendingTracker) clearOnError(err error) {
	for key, ctx := range t.pending {
		delete(t.pending, key)
		ctx.resolve(callResult{err: err})
	}
	t.timer.Stop()
}

func (t *pendingTracker) rearm() {
	if len(t.pending) == 0 {
		t.timer.Stop()
		return
	}
	var nearest time.Time
	for _, ctx := range t.pending {
		if nearest.IsZero() || ctx.deadline.Before(nearest) {
			nearest = ctx.deadline
		}
	}
	d := time.Until(nearest)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	t.timer.Reset(d)
}

func (t *pendingTracker) String() string {
	return fmt.Sprintf("pendingTracker{calls: %d}", len(t.pending))
}
