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
	"erldist/pkg/etf"
)

// Reassembler rebuilds complete frame bodies from fragment frames. It is
// owned by one connection's dispatch goroutine and never locked.
//
// Accumulation per sequence id is bounded by maxAssembled bytes,
// cumulative over all fragments of that sequence. A peer exceeding the
// bound is cut off rather than allowed to grow memory without limit.
type Reassembler struct {
	entries      map[uint64]*assembly
	maxAssembled int
}

type assembly struct {
	data      []byte
	countdown uint64
}

func NewReassembler(maxAssembled int) *Reassembler {
	return &Reassembler{
		entries:      make(map[uint64]*assembly),
		maxAssembled: maxAssembled,
	}
}

// Pending returns the number of sequences currently mid-assembly.
func (r *Reassembler) Pending() int { return len(r.entries) }

// Reset drops all in-flight assemblies.
func (r *Reassembler) Reset() {
	r.entries = make(map[uint64]*assembly)
}

// Feed consumes one frame body. Non-fragment bodies pass through whole.
// Fragment bodies accumulate; the completing fragment returns the
// reassembled body, any other returns nil. All errors are fatal to the
// connection.
func (r *Reassembler) Feed(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, nil
	}
	switch body[0] {
	case kFragHeaderType:
		return r.first(body)
	case kFragContType:
		return r.continuation(body)
	}
	return body, nil
}

func (r *Reassembler) first(body []byte) ([]byte, error) {
	if len(body) < kFragHeaderLen {
		return nil, &FragmentError{Kind: BadFragmentHeader}
	}
	seq := etf.EncByteOrder.Uint64(body[1:])
	countdown := etf.EncByteOrder.Uint64(body[9:])
	if countdown == 0 {
		return nil, &FragmentError{Kind: BadFragmentHeader, SequenceId: seq}
	}
	if _, exists := r.entries[seq]; exists {
		// A second opening fragment for a live sequence means the peer
		// and we disagree about stream state.
		return nil, &FragmentError{Kind: OutOfOrder, SequenceId: seq}
	}
	chunk := body[kFragHeaderLen:]
	if r.maxAssembled > 0 && len(chunk) > r.maxAssembled {
		return nil, &FragmentError{Kind: SizeLimitExceeded, SequenceId: seq}
	}
	if countdown == 1 {
		return r.complete(chunk), nil
	}
	data := make([]byte, len(chunk))
	copy(data, chunk)
	r.entries[seq] = &assembly{data: data, countdown: countdown}
	return nil, nil
}

func (r *Reassembler) continuation(body []byte) ([]byte, error) {
	if len(body) < kFragHeaderLen {
		return nil, &FragmentError{Kind: BadFragmentHeader}
	}
	seq := etf.EncByteOrder.Uint64(body[1:])
	countdown := etf.EncByteOrder.Uint64(body[9:])
	entry, ok := r.entries[seq]
	if !ok {
		return nil, &FragmentError{Kind: UnknownSequence, SequenceId: seq}
	}
	if countdown != entry.countdown-1 {
		return nil, &FragmentError{Kind: OutOfOrder, SequenceId: seq}
	}
	chunk := body[kFragHeaderLen:]
	if r.maxAssembled > 0 && len(entry.data)+len(chunk) > r.maxAssembled {
		delete(r.entries, seq)
		return nil, &FragmentError{Kind: SizeLimitExceeded, SequenceId: seq}
	}
	entry.data = append(entry.data, chunk...)
	entry.countdown = countdown
	if countdown == 1 {
		delete(r.entries, seq)
		return r.complete(entry.data), nil
	}
	return nil, nil
}

// complete rebuilds a plain dist-header body from the accumulated data,
// which already starts with the atom cache ref count byte.
func (r *Reassembler) complete(data []byte) []byte {
	out := make([]byte, 0, 1+len(data))
	out = append(out, kDistHeaderType)
	return append(out, data...)
}
