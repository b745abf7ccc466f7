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

// Package stats records per-session call latency and traffic counters.
package stats

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"erldist/pkg/util"
)

type (
	// CallStats tracks completed call latencies in a histogram. Safe for
	// concurrent callers.
	CallStats struct {
		mtx         sync.Mutex
		hist        *hdrhistogram.Histogram
		total       time.Duration
		numErrors   int64
		numTimeouts int64
	}

	StatsData struct {
		NumCalls    int64
		NumErrors   int64
		NumTimeouts int64
		AvgLatency  time.Duration
		MinLatency  time.Duration
		MaxLatency  time.Duration
		P50Latency  time.Duration
		P95Latency  time.Duration
		P99Latency  time.Duration
	}

	// SessionStats aggregates one connection's traffic counters with its
	// call latency histogram.
	SessionStats struct {
		Calls     CallStats
		FramesIn  util.AtomicUint64Counter
		FramesOut util.AtomicUint64Counter
		BytesIn   util.AtomicUint64Counter
		BytesOut  util.AtomicUint64Counter
		TicksIn   util.AtomicUint64Counter
		TicksOut  util.AtomicUint64Counter
	}
)

func (s *CallStats) Init() {
	s.mtx.Lock()
	s.initLocked()
	s.mtx.Unlock()
}

// initLocked lazily creates the histogram. Callers hold s.mtx.
func (s *CallStats) initLocked() {
	if s.hist == nil {
		s.hist = hdrhistogram.New(1, int64(3600*time.Second), 3)
	}
}

// Put records one completed call. timedOut calls also count as errors.
func (s *CallStats) Put(tm time.Duration, failed bool, timedOut bool) {
	s.mtx.Lock()
	s.initLocked()
	s.hist.RecordValues(int64(tm), 1)
	s.total += tm
	if failed {
		s.numErrors++
	}
	if timedOut {
		s.numTimeouts++
	}
	s.mtx.Unlock()
}

func (s *CallStats) GetStats() (stat StatsData) {
	s.mtx.Lock()
	s.initLocked()
	stat.NumCalls = s.hist.TotalCount()
	stat.NumErrors = s.numErrors
	stat.NumTimeouts = s.numTimeouts
	stat.MinLatency = time.Duration(s.hist.Min())
	stat.MaxLatency = time.Duration(s.hist.Max())
	stat.P50Latency = time.Duration(s.hist.ValueAtQuantile(50.))
	stat.P95Latency = time.Duration(s.hist.ValueAtQuantile(95.))
	stat.P99Latency = time.Duration(s.hist.ValueAtQuantile(99.))
	total := s.total
	s.mtx.Unlock()

	if stat.NumCalls != 0 {
		stat.AvgLatency = time.Duration(int64(total) / stat.NumCalls)
	}
	return
}

func (s *CallStats) Reset() {
	s.mtx.Lock()
	s.initLocked()
	s.hist.Reset()
	s.numErrors = 0
	s.numTimeouts = 0
	s.total = 0
	s.mtx.Unlock()
}

// WriteStats dumps the latency summary, one field per line.
func (s *CallStats) WriteStats(w io.Writer, indent int) {
	stat := s.GetStats()
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(w, "%scalls      : %d\n", pad, stat.NumCalls)
	fmt.Fprintf(w, "%serrors     : %d\n", pad, stat.NumErrors)
	fmt.Fprintf(w, "%stimeouts   : %d\n", pad, stat.NumTimeouts)
	if stat.NumCalls == 0 {
		return
	}
	fmt.Fprintf(w, "%savg latency: %s\n", pad, stat.AvgLatency)
	fmt.Fprintf(w, "%smin latency: %s\n", pad, stat.MinLatency)
	fmt.Fprintf(w, "%smax latency: %s\n", pad, stat.MaxLatency)
	fmt.Fprintf(w, "%sp50 latency: %s\n", pad, stat.P50Latency)
	fmt.Fprintf(w, "%sp95 latency: %s\n", pad, stat.P95Latency)
	fmt.Fprintf(w, "%sp99 latency: %s\n", pad, stat.P99Latency)
}

func (s *SessionStats) WriteStats(w io.Writer, indent int) {
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(w, "%sframes in  : %d (%d bytes)\n", pad, s.FramesIn.Get(), s.BytesIn.Get())
	fmt.Fprintf(w, "%sframes out : %d (%d bytes)\n", pad, s.FramesOut.Get(), s.BytesOut.Get())
	fmt.Fprintf(w, "%sticks      : %d in, %d out\n", pad, s.TicksIn.Get(), s.TicksOut.Get())
	s.Calls.WriteStats(w, indent)
}
