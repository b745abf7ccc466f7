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

// Package node implements distribution sessions: the handshake-driven
// connection lifecycle, frame dispatch, and the call correlation layer
// on top of it.
package node

import (
	"fmt"
	stdio "io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"erldist/pkg/dist"
	"erldist/pkg/etf"
	"erldist/pkg/io"
	"erldist/pkg/stats"
	"erldist/pkg/util"
	"erldist/third_party/forked/golang/glog"
)

type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateNameSent
	StatePeerNameReceived
	StateChallengeSent
	StateChallengeReplyReceived
	StateConnected
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateNameSent:
		return "NameSent"
	case StatePeerNameReceived:
		return "PeerNameReceived"
	case StateChallengeSent:
		return "ChallengeSent"
	case StateChallengeReplyReceived:
		return "ChallengeReplyReceived"
	case StateConnected:
		return "Connected"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	}
	return "Unknown"
}

// Handler receives inbound traffic the correlation layer does not
// consume. All callbacks run on the session's dispatch goroutine; they
// must not block and must not call back into blocking session methods.
type Handler interface {
	// HandleMessage gets SEND/REG_SEND/SEND_SENDER payloads addressed to
	// something other than a pending call.
	HandleMessage(s *Session, ctrl dist.Control, msg etf.Term)
	// HandleControl gets link/unlink/monitor/exit traffic. The session
	// has already acknowledged UNLINK_ID before this is called.
	HandleControl(s *Session, ctrl dist.Control)
	// HandleClosed runs once, after the session reached Closed.
	HandleClosed(s *Session, err error)
}

// NopHandler discards everything. Embed it to implement part of Handler.
type NopHandler struct{}

func (NopHandler) HandleMessage(*Session, dist.Control, etf.Term) {}
func (NopHandler) HandleControl(*Session, dist.Control)           {}
func (NopHandler) HandleClosed(*Session, error)                   {}

// outRequest funnels writers onto the dispatch goroutine, the
// connection's only writer.
type outRequest struct {
	frames    [][]byte
	ctx       *callContext // non-nil registers a pending call after the write
	chErr     chan error   // non-nil receives the write outcome
	cancelKey uint64       // non-zero removes a pending call instead
}

// Session is one authenticated connection to a peer node. All exported
// methods are safe for concurrent use.
type Session struct {
	config  Config
	handler Handler
	conn    net.Conn

	creation uint32
	peer     peerInfo
	state    int32

	basePid       etf.Pid
	pidCounter    util.AtomicCounter
	refCounter    util.AtomicCounter
	seqCounter    util.AtomicUint64Counter
	unlinkCounter util.AtomicUint64Counter

	chRequest   chan *outRequest
	chFrame     chan []byte
	chReaderErr chan error
	chClose     chan struct{}
	chDone      chan struct{}
	closeOnce   sync.Once

	tracker  *pendingTracker
	reasm    *dist.Reassembler
	bufPool  util.BufferPool
	lastRecv time.Time

	stats    stats.SessionStats
	closeErr error
}

// Open connects to a peer's distribution endpoint and runs the
// initiator side of the handshake. handler may be nil.
func Open(endpoint io.ServiceEndpoint, config *Config, handler Handler) (*Session, error) {
	cfg := *config
	cfg.SetDefaultIfNotDefined()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := io.Connect(&endpoint, &io.ConnectConfig{
		ConnectTimeout: cfg.ConnectTimeout.Duration,
		TLS:            cfg.TLS,
	})
	if err != nil {
		return nil, err
	}
	s := newSession(conn, cfg, handler)
	s.setState(StateNameSent)
	peer, err := s.initiatorHandshake()
	if err != nil {
		conn.Close()
		s.setState(StateClosed)
		return nil, err
	}
	s.start(peer)
	return s, nil
}

// Accept runs the acceptor side of the handshake on an already
// established transport connection, e.g. one from io.NewListener.
func Accept(conn net.Conn, config *Config, handler Handler) (*Session, error) {
	cfg := *config
	cfg.SetDefaultIfNotDefined()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := newSession(conn, cfg, handler)
	peer, err := s.acceptorHandshake()
	if err != nil {
		conn.Close()
		s.setState(StateClosed)
		return nil, err
	}
	s.start(peer)
	return s, nil
}

func newSession(conn net.Conn, config Config, handler Handler) *Session {
	if handler == nil {
		handler = NopHandler{}
	}
	s := &Session{
		config:      config,
		handler:     handler,
		conn:        conn,
		creation:    config.creation(),
		chRequest:   make(chan *outRequest, config.RequestChanSize),
		chFrame:     make(chan []byte, config.FrameChanSize),
		chReaderErr: make(chan error, 1),
		chClose:     make(chan struct{}),
		chDone:      make(chan struct{}),
		tracker:     newPendingTracker(),
		reasm:       dist.NewReassembler(config.MaxAssembledSize),
		bufPool:     util.GetBufferPool(config.MaxFragmentSize),
	}
	s.seqCounter.Set(util.SequenceSeed(config.NodeName, s.creation))
	s.basePid = s.allocPid()
	return s
}

func (s *Session) start(peer *peerInfo) {
	s.peer = *peer
	s.lastRecv = time.Now()
	s.setState(StateConnected)
	go s.reader()
	go s.dispatchLoop()
}

func (s *Session) setState(st SessionState) {
	atomic.StoreInt32(&s.state, int32(st))
}

func (s *Session) State() SessionState {
	return SessionState(atomic.LoadInt32(&s.state))
}

func (s *Session) Name() string          { return s.config.NodeName }
func (s *Session) PeerName() string      { return s.peer.name }
func (s *Session) PeerFlags() dist.Flags { return s.peer.flags }
func (s *Session) PeerCreation() uint32  { return s.peer.creation }
func (s *Session) Creation() uint32      { return s.creation }

// Stats exposes the session's traffic and latency counters.
func (s *Session) Stats() *stats.SessionStats { return &s.stats }

func (s *Session) WriteStats(w stdio.Writer, indent int) {
	s.stats.WriteStats(w, indent)
}

// Done is closed once the session has fully shut down.
func (s *Session) Done() <-chan struct{} { return s.chDone }

// CloseError reports why the session closed. Valid after Done.
func (s *Session) CloseError() error { return s.closeErr }

// Close shuts the session down. Every outstanding call fails with a
// connection-closed error. Blocks until teardown completes.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.chClose) })
	<-s.chDone
	return nil
}

// allocPid mints a fresh local pid, used as a call's reply address.
func (s *Session) allocPid() etf.Pid {
	n := s.pidCounter.Next()
	return etf.Pid{
		Node:     etf.Atom(s.config.NodeName),
		Id:       n & 0x7FFFFFFF,
		Serial:   n >> 31,
		Creation: s.creation,
	}
}

// BasePid is the session's own stable pid, used as the sender of plain
// messages. Inbound messages addressed to it reach the handler.
func (s *Session) BasePid() etf.Pid { return s.basePid }

// MakeRef mints a fresh local reference for monitor requests.
func (s *Session) MakeRef() etf.Ref {
	n := s.refCounter.Next()
	return etf.Ref{
		Node:     etf.Atom(s.config.NodeName),
		Creation: s.creation,
		Ids:      []uint32{n, uint32(s.seqCounter.Get()), 0},
	}
}

// submit hands frames to the dispatch goroutine and waits for the write
// outcome.
func (s *Session) submit(req *outRequest) error {
	if s.State() != StateConnected {
		return ErrNotConnected
	}
	select {
	case s.chRequest <- req:
	case <-s.chDone:
		return ErrClosed
	}
	if req.chErr == nil {
		return nil
	}
	select {
	case err := <-req.chErr:
		return err
	case <-s.chDone:
		return ErrClosed
	}
}

// sendControl frames and submits one control message with optional
// payload, fragmenting when it exceeds the configured fragment size.
func (s *Session) sendControl(control, payload etf.Term) error {
	frames, err := dist.FragmentMessage(s.seqCounter.Next(), control, payload, s.config.MaxFragmentSize)
	if err != nil {
		return err
	}
	return s.submit(&outRequest{frames: frames, chErr: make(chan error, 1)})
}

// reader owns all socket reads, feeding frame bodies to the dispatch
// loop in arrival order.
func (s *Session) reader() {
	for {
		body, err := dist.ReadFrame(s.conn, s.config.MaxFrameSize)
		if err != nil {
			select {
			case s.chReaderErr <- err:
			case <-s.chDone:
			}
			return
		}
		if body == nil {
			// Ticks must still reach the loop to reset inactivity, but a
			// nil on the channel is indistinguishable from a zero value,
			// so share a sentinel.
			body = tickBody
		}
		select {
		case s.chFrame <- body:
		case <-s.chDone:
			return
		}
	}
}

// tickBody marks an inbound keep-alive on chFrame.
var tickBody = make([]byte, 0)

// dispatchLoop is the single owner of the write path, the reassembler
// and the pending-call map.
func (s *Session) dispatchLoop() {
	tickTimer := util.NewTimerWrapper(s.config.TickInterval.Duration)
	inactivityTimer := util.NewTimerWrapper(s.config.TickTimeout.Duration)
	tickTimer.Reset(s.config.TickInterval.Duration)
	inactivityTimer.Reset(s.config.TickTimeout.Duration)
	defer tickTimer.Stop()
	defer inactivityTimer.Stop()

	var fatal error
loop:
	for {
		select {
		case req := <-s.chRequest:
			if err := s.handleRequest(req); err != nil {
				fatal = err
				break loop
			}

		case body := <-s.chFrame:
			if err := s.handleFrame(body); err != nil {
				fatal = err
				break loop
			}

		case err := <-s.chReaderErr:
			if err == stdio.EOF {
				fatal = ErrClosed
			} else {
				fatal = err
			}
			break loop

		case <-tickTimer.GetTimeoutCh():
			s.stats.TicksOut.Next()
			if err := dist.WriteTick(s.conn); err != nil {
				fatal = err
				break loop
			}
			tickTimer.Reset(s.config.TickInterval.Duration)

		case <-inactivityTimer.GetTimeoutCh():
			idle := time.Since(s.lastRecv)
			if idle >= s.config.TickTimeout.Duration {
				fatal = fmt.Errorf("node: peer %s unresponsive for %s", s.peer.name, idle)
				break loop
			}
			inactivityTimer.Reset(s.config.TickTimeout.Duration - idle)

		case <-s.tracker.getTimeoutCh():
			s.tracker.onTimeout(time.Now())

		case <-s.chClose:
			break loop
		}
	}
	s.teardown(fatal)
}

func (s *Session) teardown(fatal error) {
	s.setState(StateClosing)
	if fatal != nil && fatal != ErrClosed {
		glog.Errorf("session to %s failed: %s", s.peer.name, fatal)
	}
	s.conn.Close()
	s.tracker.clearOnError(&RpcError{Kind: RpcConnectionClosed})
	s.reasm.Reset()
	s.closeErr = fatal
	s.setState(StateClosed)
	s.closeOnce.Do(func() { close(s.chClose) })
	close(s.chDone)
	s.handler.HandleClosed(s, fatal)
}

// handleRequest writes the request's frames; write failures kill the
// connection since framing state is unknowable afterwards.
func (s *Session) handleRequest(req *outRequest) error {
	if req.cancelKey != 0 {
		s.tracker.remove(req.cancelKey)
		return nil
	}
	var err error
	for _, body := range req.frames {
		if err = s.writeFrame(body); err != nil {
			break
		}
	}
	if req.chErr != nil {
		req.chErr <- err
	}
	if err != nil {
		return err
	}
	if req.ctx != nil {
		s.tracker.onCallSent(req.ctx)
	}
	return nil
}

func (s *Session) writeFrame(body []byte) error {
	buf := s.bufPool.Get()
	defer s.bufPool.Put(buf)
	buf.Resize(4 + len(body))
	out := buf.Bytes()
	etf.EncByteOrder.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	if _, err := s.conn.Write(out); err != nil {
		return err
	}
	s.stats.FramesOut.Next()
	s.stats.BytesOut.Add(uint64(len(out)))
	return nil
}

func (s *Session) handleFrame(body []byte) error {
	s.lastRecv = time.Now()
	s.stats.FramesIn.Next()
	s.stats.BytesIn.Add(uint64(len(body)) + 4)
	if len(body) == 0 {
		s.stats.TicksIn.Next()
		return nil
	}
	complete, err := s.reasm.Feed(body)
	if err != nil {
		return err
	}
	if complete == nil {
		return nil
	}
	frame, err := dist.DecodeMessage(complete)
	if err != nil {
		return err
	}
	ctrl, err := dist.ParseControl(frame.Control)
	if err != nil {
		return err
	}
	if glog.LOG_VERBOSE {
		glog.Verbosef("recv %s from %s", ctrl.Op, s.peer.name)
	}
	s.route(ctrl, frame.Payload)
	return nil
}

// route delivers one inbound message: replies resolve their pending
// call, everything else goes to the handler.
func (s *Session) route(ctrl dist.Control, payload etf.Term) {
	switch ctrl.Op {
	case dist.OpSend, dist.OpSendSender:
		// A local pid destination other than the base pid was minted for
		// a call; resolve it or, if the call is already gone, drop the
		// late reply.
		if pid, ok := ctrl.ToPid(); ok &&
			pid.Node == etf.Atom(s.config.NodeName) &&
			correlationKey(pid) != correlationKey(s.basePid) {
			s.tracker.onResponse(correlationKey(pid), payload)
			return
		}
		s.handler.HandleMessage(s, ctrl, payload)

	case dist.OpRegSend:
		s.handler.HandleMessage(s, ctrl, payload)

	case dist.OpUnlinkId:
		// Protocol-level ack; the handler sees the unlink afterwards.
		from, okFrom := ctrl.From.(etf.Pid)
		to, okTo := ctrl.ToPid()
		if okFrom && okTo {
			ack, err := dist.EncodeMessage(dist.UnlinkIdAckControl(ctrl.Id, to, from), nil)
			if err == nil {
				if err = s.writeFrame(ack); err != nil {
					glog.Warningf("unlink ack to %s failed: %s", s.peer.name, err)
				}
			}
		}
		s.handler.HandleControl(s, ctrl)

	default:
		s.handler.HandleControl(s, ctrl)
	}
}
