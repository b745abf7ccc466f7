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
	"fmt"
	"io"

	"erldist/pkg/etf"
)

// Frame type bytes, the first byte of every non-tick frame body.
const (
	kDistHeaderType  byte = 68  // 'D'
	kFragHeaderType  byte = 69  // 'E'
	kFragContType    byte = 70  // 'F'
	kPassThroughType byte = 112 // 'p', inbound only
	kFragHeaderLen        = 17  // type + sequence id + fragment countdown
)

// Frame is one decoded session message.
type Frame struct {
	Control etf.Term
	Payload etf.Term // nil when the control op carries none
}

// WriteFrame emits one 4-byte length prefixed frame.
func WriteFrame(w io.Writer, body []byte) error {
	buf := make([]byte, 4+len(body))
	etf.EncByteOrder.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	_, err := w.Write(buf)
	return err
}

// WriteTick emits the zero-length keep-alive frame.
func WriteTick(w io.Writer) error {
	_, err := w.Write([]byte{0, 0, 0, 0})
	return err
}

// ReadFrame reads one frame body. A nil body with nil error is a tick.
// Bodies above maxSize abort without reading the remainder.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	size := etf.EncByteOrder.Uint32(hdr[:])
	if size == 0 {
		return nil, nil
	}
	if maxSize != 0 && size > maxSize {
		return nil, fmt.Errorf("dist: frame of %d bytes exceeds limit %d", size, maxSize)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// EncodeMessage builds a single unfragmented frame body: the dist header
// with an empty atom cache, the control term, then the payload if any.
func EncodeMessage(control, payload etf.Term) ([]byte, error) {
	body, err := encodeMessageData(control, payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(body))
	out = append(out, kDistHeaderType)
	return append(out, body...), nil
}

// encodeMessageData builds everything after the frame type byte: the
// atom cache ref count (always zero on send) and the bare terms.
func encodeMessageData(control, payload etf.Term) ([]byte, error) {
	body := []byte{0}
	var err error
	if body, err = etf.AppendTerm(body, control); err != nil {
		return nil, err
	}
	if payload != nil {
		if body, err = etf.AppendTerm(body, payload); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// FragmentMessage builds the frame bodies for one message, splitting the
// data across fragments of at most maxFragSize bytes. A message that fits
// whole comes back as a single dist-header frame. The first fragment
// carries the total fragment count; each continuation counts down to 1.
func FragmentMessage(sequenceId uint64, control, payload etf.Term, maxFragSize int) ([][]byte, error) {
	data, err := encodeMessageData(control, payload)
	if err != nil {
		return nil, err
	}
	if maxFragSize <= 0 || len(data) <= maxFragSize {
		out := make([]byte, 0, 1+len(data))
		out = append(out, kDistHeaderType)
		return [][]byte{append(out, data...)}, nil
	}
	n := (len(data) + maxFragSize - 1) / maxFragSize
	frames := make([][]byte, 0, n)
	countdown := uint64(n)
	for off := 0; off < len(data); off += maxFragSize {
		end := off + maxFragSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		frame := make([]byte, 0, kFragHeaderLen+len(chunk))
		if off == 0 {
			frame = append(frame, kFragHeaderType)
		} else {
			frame = append(frame, kFragContType)
		}
		frame = appendU64(frame, sequenceId)
		frame = appendU64(frame, countdown)
		frames = append(frames, append(frame, chunk...))
		countdown--
	}
	return frames, nil
}

// DecodeMessage parses a complete (reassembled) frame body into its
// control term and optional payload.
func DecodeMessage(body []byte) (Frame, error) {
	var f Frame
	if len(body) == 0 {
		return f, fmt.Errorf("dist: empty frame body")
	}
	switch body[0] {
	case kDistHeaderType:
		if len(body) < 2 {
			return f, fmt.Errorf("dist: truncated dist header")
		}
		if body[1] != 0 {
			// Atom cache support is never advertised, so a peer using it
			// has violated the negotiated flags.
			return f, fmt.Errorf("dist: peer sent %d atom cache refs", body[1])
		}
		return decodeFrameTerms(body[2:], false)
	case kPassThroughType:
		return decodeFrameTerms(body[1:], true)
	case kFragHeaderType, kFragContType:
		return f, fmt.Errorf("dist: fragment fed past the reassembler")
	}
	return f, fmt.Errorf("dist: unknown frame type %d", body[0])
}

func decodeFrameTerms(b []byte, versioned bool) (Frame, error) {
	var f Frame
	next := func() (etf.Term, error) {
		if versioned {
			if len(b) == 0 || b[0] != 131 {
				return nil, fmt.Errorf("dist: missing term version byte")
			}
			b = b[1:]
		}
		t, n, err := etf.DecodeTerm(b)
		if err != nil {
			return nil, err
		}
		b = b[n:]
		return t, nil
	}
	control, err := next()
	if err != nil {
		return f, err
	}
	f.Control = control
	if len(b) > 0 {
		if f.Payload, err = next(); err != nil {
			return f, err
		}
	}
	if len(b) != 0 {
		return f, fmt.Errorf("dist: %d trailing bytes after payload", len(b))
	}
	return f, nil
}
