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

package etf

import (
	"bytes"
	"compress/zlib"
	"io"
	"math"
	"math/big"
	"strconv"
	"unicode/utf8"
)

// Decode deserializes a complete term buffer: version byte first,
// optionally a compressed envelope. Trailing bytes are an error.
func Decode(b []byte) (Term, error) {
	if len(b) == 0 {
		return nil, &DecodeError{Kind: Truncated, Offset: 0}
	}
	if b[0] != kVersionMagic {
		return nil, &DecodeError{Kind: BadVersion, Tag: b[0], Offset: 0}
	}
	body := b[1:]
	if len(body) > 0 && body[0] == kCompressedTag {
		inflated, err := inflate(body[1:])
		if err != nil {
			return nil, err
		}
		body = inflated
	}
	t, n, err := DecodeTerm(body)
	if err != nil {
		return nil, err
	}
	if n != len(body) {
		return nil, &DecodeError{Kind: InvalidLength, Offset: n}
	}
	return t, nil
}

// DecodeTerm deserializes one term from the front of b, with no version
// byte, and returns the number of bytes consumed. Distribution frames
// carry terms back to back in this form.
func DecodeTerm(b []byte) (Term, int, error) {
	d := decoder{buf: b}
	t, err := d.term()
	if err != nil {
		return nil, d.pos, err
	}
	return t, d.pos, nil
}

// inflate unpacks a compressed envelope body: the uncompressed size then
// the deflated payload. The size must match exactly.
func inflate(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, &DecodeError{Kind: Truncated, Tag: kCompressedTag, Offset: 1}
	}
	size := EncByteOrder.Uint32(b)
	zr, err := zlib.NewReader(bytes.NewReader(b[4:]))
	if err != nil {
		return nil, &DecodeError{Kind: DecompressionFailed, Tag: kCompressedTag, Offset: 5}
	}
	defer zr.Close()
	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, &DecodeError{Kind: DecompressionFailed, Tag: kCompressedTag, Offset: 5}
	}
	var extra [1]byte
	if n, _ := zr.Read(extra[:]); n != 0 {
		return nil, &DecodeError{Kind: DecompressionFailed, Tag: kCompressedTag, Offset: 5}
	}
	return out, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) fail(kind DecodeErrorKind, tag byte) error {
	return &DecodeError{Kind: kind, Tag: tag, Offset: d.pos}
}

func (d *decoder) readByte(tag byte) (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, d.fail(Truncated, tag)
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) take(n int, tag byte) ([]byte, error) {
	if n < 0 || len(d.buf)-d.pos < n {
		return nil, d.fail(Truncated, tag)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readU16(tag byte) (uint16, error) {
	b, err := d.take(2, tag)
	if err != nil {
		return 0, err
	}
	return EncByteOrder.Uint16(b), nil
}

func (d *decoder) readU32(tag byte) (uint32, error) {
	b, err := d.take(4, tag)
	if err != nil {
		return 0, err
	}
	return EncByteOrder.Uint32(b), nil
}

func (d *decoder) readU64(tag byte) (uint64, error) {
	b, err := d.take(8, tag)
	if err != nil {
		return 0, err
	}
	return EncByteOrder.Uint64(b), nil
}

func (d *decoder) term() (Term, error) {
	tag, err := d.readByte(0)
	if err != nil {
		return nil, err
	}
	switch tag {
	case kSmallIntegerTag:
		b, err := d.readByte(tag)
		if err != nil {
			return nil, err
		}
		return Int(b), nil

	case kIntegerTag:
		v, err := d.readU32(tag)
		if err != nil {
			return nil, err
		}
		return Int(int32(v)), nil

	case kNewFloatTag:
		bits, err := d.readU64(tag)
		if err != nil {
			return nil, err
		}
		return Float(math.Float64frombits(bits)), nil

	case kFloatTag:
		b, err := d.take(31, tag)
		if err != nil {
			return nil, err
		}
		s := string(bytes.TrimRight(b, "\x00"))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, d.fail(InvalidLength, tag)
		}
		return Float(f), nil

	case kSmallAtomUtf8Tag, kSmallAtomTag:
		n, err := d.readByte(tag)
		if err != nil {
			return nil, err
		}
		return d.atomBody(tag, int(n))

	case kAtomUtf8Tag, kAtomTag:
		n, err := d.readU16(tag)
		if err != nil {
			return nil, err
		}
		return d.atomBody(tag, int(n))

	case kSmallTupleTag:
		n, err := d.readByte(tag)
		if err != nil {
			return nil, err
		}
		return d.tupleBody(tag, int(n))

	case kLargeTupleTag:
		n, err := d.readU32(tag)
		if err != nil {
			return nil, err
		}
		return d.tupleBody(tag, int(n))

	case kNilTag:
		return Nil{}, nil

	case kStringTag:
		n, err := d.readU16(tag)
		if err != nil {
			return nil, err
		}
		b, err := d.take(int(n), tag)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return Nil{}, nil
		}
		elems := make([]Term, n)
		for i, c := range b {
			elems[i] = Int(c)
		}
		return List{Elems: elems}, nil

	case kListTag:
		return d.listBody(tag)

	case kBinaryTag:
		n, err := d.readU32(tag)
		if err != nil {
			return nil, err
		}
		b, err := d.take(int(n), tag)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, b)
		return Binary(out), nil

	case kBitBinaryTag:
		n, err := d.readU32(tag)
		if err != nil {
			return nil, err
		}
		bits, err := d.readByte(tag)
		if err != nil {
			return nil, err
		}
		if n == 0 || bits < 1 || bits > 8 {
			return nil, d.fail(InvalidLength, tag)
		}
		b, err := d.take(int(n), tag)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, b)
		return BitBinary{Bytes: out, Bits: bits}, nil

	case kSmallBigTag:
		n, err := d.readByte(tag)
		if err != nil {
			return nil, err
		}
		return d.bigBody(tag, int(n))

	case kLargeBigTag:
		n, err := d.readU32(tag)
		if err != nil {
			return nil, err
		}
		return d.bigBody(tag, int(n))

	case kMapTag:
		n, err := d.readU32(tag)
		if err != nil {
			return nil, err
		}
		pairs := make(Map, 0, min(int(n), 64))
		for i := uint32(0); i < n; i++ {
			k, err := d.term()
			if err != nil {
				return nil, err
			}
			v, err := d.term()
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, MapPair{Key: k, Value: v})
		}
		return pairs, nil

	case kPidTag, kNewPidTag:
		return d.pidBody(tag)

	case kPortTag, kNewPortTag, kV4PortTag:
		return d.portBody(tag)

	case kReferenceTag:
		return d.legacyRefBody(tag)

	case kNewReferenceTag, kNewerReferenceTag:
		return d.refBody(tag)

	case kNewFunTag:
		return d.funBody(tag)

	case kExportTag:
		return d.exportBody(tag)

	case kAtomCacheRefTag:
		d.pos--
		return nil, d.fail(UnknownTag, tag)
	}
	d.pos--
	return nil, d.fail(UnknownTag, tag)
}

func (d *decoder) atomBody(tag byte, n int) (Term, error) {
	if n > kMaxAtomLen {
		return nil, d.fail(InvalidLength, tag)
	}
	b, err := d.take(n, tag)
	if err != nil {
		return nil, err
	}
	if tag == kAtomTag || tag == kSmallAtomTag {
		// Legacy atoms are latin-1; widen each byte to its code point.
		var sb []byte
		for _, c := range b {
			sb = utf8.AppendRune(sb, rune(c))
		}
		return Atom(sb), nil
	}
	if !utf8.Valid(b) {
		return nil, d.fail(InvalidUtf8, tag)
	}
	return Atom(b), nil
}

func (d *decoder) tupleBody(tag byte, n int) (Term, error) {
	elems := make(Tuple, 0, min(n, 64))
	for i := 0; i < n; i++ {
		e, err := d.term()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return elems, nil
}

func (d *decoder) listBody(tag byte) (Term, error) {
	n, err := d.readU32(tag)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, d.fail(InvalidLength, tag)
	}
	elems := make([]Term, 0, min(int(n), 64))
	for i := uint32(0); i < n; i++ {
		e, err := d.term()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	tail, err := d.term()
	if err != nil {
		return nil, err
	}
	out := List{Elems: elems}
	proper := false
	if _, isNil := tail.(Nil); isNil {
		proper = true
	} else {
		out.Tail = tail
	}
	if proper {
		if err := rejectSurrogateCharlist(elems, d.pos, tag); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// rejectSurrogateCharlist fails a proper list of code points that contains
// a UTF-16 surrogate. Such a list can never render as a valid string, and
// accepting it would let the value round-trip into text handling later.
func rejectSurrogateCharlist(elems []Term, offset int, tag byte) error {
	allCodePoints := true
	hasSurrogate := false
	for _, e := range elems {
		i, ok := e.(Int)
		if !ok || i < 0 || i > 0x10FFFF {
			allCodePoints = false
			break
		}
		if i >= 0xD800 && i <= 0xDFFF {
			hasSurrogate = true
		}
	}
	if allCodePoints && hasSurrogate {
		return &DecodeError{Kind: SurrogateInCharlist, Tag: tag, Offset: offset}
	}
	return nil
}

func (d *decoder) bigBody(tag byte, n int) (Term, error) {
	if n == 0 {
		return nil, d.fail(InvalidLength, tag)
	}
	sign, err := d.readByte(tag)
	if err != nil {
		return nil, err
	}
	if sign > 1 {
		return nil, d.fail(InvalidLength, tag)
	}
	mag, err := d.take(n, tag)
	if err != nil {
		return nil, err
	}
	// Wire magnitude is little-endian; big.Int wants big-endian.
	be := make([]byte, n)
	for i, c := range mag {
		be[n-1-i] = c
	}
	v := new(big.Int).SetBytes(be)
	if sign == 1 {
		v.Neg(v)
	}
	return BigInt{Value: v}, nil
}

func (d *decoder) nodeAtom(tag byte) (Atom, error) {
	t, err := d.term()
	if err != nil {
		return "", err
	}
	a, ok := t.(Atom)
	if !ok {
		return "", d.fail(InvalidLength, tag)
	}
	return a, nil
}

// cloneRaw snapshots the wire bytes of an identifier term, tag included,
// so re-encoding can replay them byte for byte.
func (d *decoder) cloneRaw(start int) []byte {
	raw := make([]byte, d.pos-start)
	copy(raw, d.buf[start:d.pos])
	return raw
}

func (d *decoder) pidBody(tag byte) (Term, error) {
	start := d.pos - 1
	node, err := d.nodeAtom(tag)
	if err != nil {
		return nil, err
	}
	id, err := d.readU32(tag)
	if err != nil {
		return nil, err
	}
	serial, err := d.readU32(tag)
	if err != nil {
		return nil, err
	}
	var creation uint32
	if tag == kPidTag {
		c, err := d.readByte(tag)
		if err != nil {
			return nil, err
		}
		creation = uint32(c)
	} else {
		if creation, err = d.readU32(tag); err != nil {
			return nil, err
		}
	}
	return Pid{Node: node, Id: id, Serial: serial, Creation: creation, raw: d.cloneRaw(start)}, nil
}

func (d *decoder) portBody(tag byte) (Term, error) {
	start := d.pos - 1
	node, err := d.nodeAtom(tag)
	if err != nil {
		return nil, err
	}
	var id uint64
	if tag == kV4PortTag {
		if id, err = d.readU64(tag); err != nil {
			return nil, err
		}
	} else {
		id32, err := d.readU32(tag)
		if err != nil {
			return nil, err
		}
		id = uint64(id32)
	}
	var creation uint32
	if tag == kPortTag {
		c, err := d.readByte(tag)
		if err != nil {
			return nil, err
		}
		creation = uint32(c)
	} else {
		if creation, err = d.readU32(tag); err != nil {
			return nil, err
		}
	}
	return Port{Node: node, Id: id, Creation: creation, raw: d.cloneRaw(start)}, nil
}

func (d *decoder) legacyRefBody(tag byte) (Term, error) {
	start := d.pos - 1
	node, err := d.nodeAtom(tag)
	if err != nil {
		return nil, err
	}
	id, err := d.readU32(tag)
	if err != nil {
		return nil, err
	}
	c, err := d.readByte(tag)
	if err != nil {
		return nil, err
	}
	return Ref{Node: node, Creation: uint32(c), Ids: []uint32{id}, raw: d.cloneRaw(start)}, nil
}

func (d *decoder) refBody(tag byte) (Term, error) {
	start := d.pos - 1
	n, err := d.readU16(tag)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, d.fail(InvalidLength, tag)
	}
	node, err := d.nodeAtom(tag)
	if err != nil {
		return nil, err
	}
	var creation uint32
	if tag == kNewReferenceTag {
		c, err := d.readByte(tag)
		if err != nil {
			return nil, err
		}
		creation = uint32(c)
	} else {
		if creation, err = d.readU32(tag); err != nil {
			return nil, err
		}
	}
	ids := make([]uint32, n)
	for i := range ids {
		if ids[i], err = d.readU32(tag); err != nil {
			return nil, err
		}
	}
	return Ref{Node: node, Creation: creation, Ids: ids, raw: d.cloneRaw(start)}, nil
}

func (d *decoder) funBody(tag byte) (Term, error) {
	sizeStart := d.pos
	size, err := d.readU32(tag)
	if err != nil {
		return nil, err
	}
	arity, err := d.readByte(tag)
	if err != nil {
		return nil, err
	}
	uniq, err := d.take(16, tag)
	if err != nil {
		return nil, err
	}
	var f Fun
	f.Arity = arity
	copy(f.Uniq[:], uniq)
	if f.Index, err = d.readU32(tag); err != nil {
		return nil, err
	}
	numFree, err := d.readU32(tag)
	if err != nil {
		return nil, err
	}
	if f.Module, err = d.nodeAtom(tag); err != nil {
		return nil, err
	}
	oldIndex, err := d.smallishInt(tag)
	if err != nil {
		return nil, err
	}
	f.OldIndex = uint32(oldIndex)
	oldUniq, err := d.smallishInt(tag)
	if err != nil {
		return nil, err
	}
	f.OldUniq = uint32(oldUniq)
	pt, err := d.term()
	if err != nil {
		return nil, err
	}
	pid, ok := pt.(Pid)
	if !ok {
		return nil, d.fail(InvalidLength, tag)
	}
	f.Pid = pid
	for i := uint32(0); i < numFree; i++ {
		fv, err := d.term()
		if err != nil {
			return nil, err
		}
		f.FreeVars = append(f.FreeVars, fv)
	}
	// Size spans its own four bytes through the last free variable.
	if d.pos-sizeStart != int(size) {
		return nil, d.fail(InvalidLength, tag)
	}
	return f, nil
}

func (d *decoder) smallishInt(tag byte) (int64, error) {
	t, err := d.term()
	if err != nil {
		return 0, err
	}
	i, ok := t.(Int)
	if !ok {
		return 0, d.fail(InvalidLength, tag)
	}
	return int64(i), nil
}

func (d *decoder) exportBody(tag byte) (Term, error) {
	mod, err := d.nodeAtom(tag)
	if err != nil {
		return nil, err
	}
	fn, err := d.nodeAtom(tag)
	if err != nil {
		return nil, err
	}
	arity, err := d.smallishInt(tag)
	if err != nil {
		return nil, err
	}
	if arity < 0 || arity > 255 {
		return nil, d.fail(InvalidLength, tag)
	}
	return ExportFun{Module: mod, Function: fn, Arity: uint8(arity)}, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
