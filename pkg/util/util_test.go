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

package util

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

func TestAtomicCounter(t *testing.T) {
	var c AtomicCounter
	if c.Next() != 1 || c.Next() != 2 || c.Get() != 2 {
		t.Error("sequential Next broken")
	}
	c.Set(100)
	if c.Next() != 101 {
		t.Error("Set not honored")
	}

	var c64 AtomicUint64Counter
	c64.Set(1 << 40)
	if c64.Next() != 1<<40+1 {
		t.Error("64-bit Next broken")
	}
	if c64.Add(9) != 1<<40+10 {
		t.Error("Add broken")
	}
}

func TestAtomicCounterConcurrent(t *testing.T) {
	var c AtomicCounter
	var wg sync.WaitGroup
	const workers, rounds = 8, 1000
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				c.Next()
			}
		}()
	}
	wg.Wait()
	if c.Get() != workers*rounds {
		t.Errorf("count %d, want %d", c.Get(), workers*rounds)
	}
}

func TestPPBuffer(t *testing.T) {
	var b PPBuffer
	b.Write([]byte("hello"))
	b.WriteByte(' ')
	b.Write([]byte("world"))
	if !bytes.Equal(b.Bytes(), []byte("hello world")) {
		t.Errorf("got %q", b.Bytes())
	}
	if b.Len() != 11 {
		t.Errorf("len %d", b.Len())
	}

	b.Resize(4)
	if b.Len() != 4 {
		t.Errorf("after shrink: len %d", b.Len())
	}
	b.Resize(64)
	if b.Len() != 64 {
		t.Errorf("after grow: len %d", b.Len())
	}

	b.Reset()
	if b.Len() != 0 || b.Cap() == 0 {
		t.Error("Reset must keep capacity")
	}
}

func TestBufferPoolReuse(t *testing.T) {
	p := NewSyncBufferPool(128)
	buf := p.Get()
	buf.Write([]byte("leftover"))
	p.Put(buf)
	if got := p.Get(); got.Len() != 0 {
		t.Errorf("pooled buffer not reset, len %d", got.Len())
	}
}

func TestGetBufferPoolSingleton(t *testing.T) {
	if GetBufferPool(1024) != GetBufferPool(1024) {
		t.Error("same size class must share one pool")
	}
}

func TestTimerWrapper(t *testing.T) {
	tm := NewTimerWrapper(10 * time.Millisecond)
	if !tm.IsStopped() {
		t.Error("fresh timer not stopped")
	}
	tm.Reset(10 * time.Millisecond)
	select {
	case <-tm.GetTimeoutCh():
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	tm.Reset(time.Hour)
	tm.Stop()
	if !tm.IsStopped() {
		t.Error("Stop not observed")
	}
	// Stopping twice must not panic or block.
	tm.Stop()
}

func TestSequenceSeed(t *testing.T) {
	a := SequenceSeed("a@local", 1)
	if a != SequenceSeed("a@local", 1) {
		t.Error("seed not stable")
	}
	if a == SequenceSeed("b@local", 1) || a == SequenceSeed("a@local", 2) {
		t.Error("seed ignores identity")
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("parsed %s", d.Duration)
	}
	text, err := d.MarshalText()
	if err != nil || string(text) != "1m30s" {
		t.Errorf("marshaled %q, err %v", text, err)
	}
	if err := d.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("bad duration accepted")
	}
}
