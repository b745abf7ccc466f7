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
	"fmt"
	"math"
	"unicode/utf8"
)

// Encode serializes a term with the leading version byte.
func Encode(t Term) ([]byte, error) {
	dst := make([]byte, 1, 64)
	dst[0] = kVersionMagic
	return AppendTerm(dst, t)
}

// AppendTerm serializes a term without the version byte and appends it to
// dst. This is the form embedded in distribution frames.
func AppendTerm(dst []byte, t Term) ([]byte, error) {
	return appendTerm(dst, t)
}

// EncodeCompressed serializes a term as a COMPRESSED envelope: version
// byte, compressed tag, the uncompressed payload size, then the zlib
// deflated payload.
func EncodeCompressed(t Term) ([]byte, error) {
	payload, err := appendTerm(nil, t)
	if err != nil {
		return nil, err
	}
	if len(payload) > math.MaxUint32 {
		return nil, fmt.Errorf("etf: term of %d bytes exceeds compressed envelope", len(payload))
	}
	var deflated bytes.Buffer
	zw := zlib.NewWriter(&deflated)
	zw.Write(payload)
	if err := zw.Close(); err != nil {
		return nil, err
	}
	dst := make([]byte, 0, 6+deflated.Len())
	dst = append(dst, kVersionMagic, kCompressedTag)
	dst = appendU32(dst, uint32(len(payload)))
	return append(dst, deflated.Bytes()...), nil
}

func appendU16(dst []byte, v uint16) []byte {
	var b [2]byte
	EncByteOrder.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	EncByteOrder.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendU64(dst []byte, v uint64) []byte {
	var b [8]byte
	EncByteOrder.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func appendTerm(dst []byte, t Term) ([]byte, error) {
	var err error
	switch v := t.(type) {
	case Atom:
		return appendAtom(dst, v)
	case Int:
		return appendInt(dst, int64(v)), nil
	case Float:
		dst = append(dst, kNewFloatTag)
		return appendU64(dst, math.Float64bits(float64(v))), nil
	case BigInt:
		return appendBig(dst, v)
	case Binary:
		if len(v) > math.MaxUint32 {
			return nil, fmt.Errorf("etf: binary of %d bytes too large", len(v))
		}
		dst = append(dst, kBinaryTag)
		dst = appendU32(dst, uint32(len(v)))
		return append(dst, v...), nil
	case BitBinary:
		if v.Bits < 1 || v.Bits > 8 {
			return nil, fmt.Errorf("etf: bit binary with %d trailing bits", v.Bits)
		}
		if len(v.Bytes) == 0 {
			return nil, fmt.Errorf("etf: bit binary with no bytes")
		}
		dst = append(dst, kBitBinaryTag)
		dst = appendU32(dst, uint32(len(v.Bytes)))
		dst = append(dst, v.Bits)
		return append(dst, v.Bytes...), nil
	case Nil:
		return append(dst, kNilTag), nil
	case Tuple:
		if len(v) <= kMaxSmallTuple {
			dst = append(dst, kSmallTupleTag, byte(len(v)))
		} else {
			dst = append(dst, kLargeTupleTag)
			dst = appendU32(dst, uint32(len(v)))
		}
		for _, e := range v {
			if dst, err = appendTerm(dst, e); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case List:
		return appendList(dst, v)
	case Map:
		dst = append(dst, kMapTag)
		dst = appendU32(dst, uint32(len(v)))
		for _, p := range v {
			if dst, err = appendTerm(dst, p.Key); err != nil {
				return nil, err
			}
			if dst, err = appendTerm(dst, p.Value); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case Pid:
		if v.raw != nil {
			return append(dst, v.raw...), nil
		}
		dst = append(dst, kNewPidTag)
		if dst, err = appendAtom(dst, v.Node); err != nil {
			return nil, err
		}
		dst = appendU32(dst, v.Id)
		dst = appendU32(dst, v.Serial)
		return appendU32(dst, v.Creation), nil
	case Port:
		if v.raw != nil {
			return append(dst, v.raw...), nil
		}
		if v.Id > math.MaxUint32 {
			dst = append(dst, kV4PortTag)
			if dst, err = appendAtom(dst, v.Node); err != nil {
				return nil, err
			}
			dst = appendU64(dst, v.Id)
			return appendU32(dst, v.Creation), nil
		}
		dst = append(dst, kNewPortTag)
		if dst, err = appendAtom(dst, v.Node); err != nil {
			return nil, err
		}
		dst = appendU32(dst, uint32(v.Id))
		return appendU32(dst, v.Creation), nil
	case Ref:
		if v.raw != nil {
			return append(dst, v.raw...), nil
		}
		if len(v.Ids) == 0 || len(v.Ids) > math.MaxUint16 {
			return nil, fmt.Errorf("etf: reference with %d id words", len(v.Ids))
		}
		dst = append(dst, kNewerReferenceTag)
		dst = appendU16(dst, uint16(len(v.Ids)))
		if dst, err = appendAtom(dst, v.Node); err != nil {
			return nil, err
		}
		dst = appendU32(dst, v.Creation)
		for _, id := range v.Ids {
			dst = appendU32(dst, id)
		}
		return dst, nil
	case Fun:
		return appendFun(dst, v)
	case ExportFun:
		dst = append(dst, kExportTag)
		if dst, err = appendAtom(dst, v.Module); err != nil {
			return nil, err
		}
		if dst, err = appendAtom(dst, v.Function); err != nil {
			return nil, err
		}
		return append(dst, kSmallIntegerTag, v.Arity), nil
	case nil:
		return nil, fmt.Errorf("etf: cannot encode nil term")
	}
	return nil, fmt.Errorf("etf: cannot encode %T", t)
}

func appendAtom(dst []byte, a Atom) ([]byte, error) {
	n := len(a)
	if n > kMaxAtomLen {
		return nil, fmt.Errorf("etf: atom of %d bytes too long", n)
	}
	if !utf8.ValidString(string(a)) {
		return nil, fmt.Errorf("etf: atom is not valid utf-8")
	}
	if n <= kMaxSmallAtom {
		dst = append(dst, kSmallAtomUtf8Tag, byte(n))
	} else {
		dst = append(dst, kAtomUtf8Tag)
		dst = appendU16(dst, uint16(n))
	}
	return append(dst, a...), nil
}

func appendInt(dst []byte, v int64) []byte {
	if v >= 0 && v <= kMaxSmallInt {
		return append(dst, kSmallIntegerTag, byte(v))
	}
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		dst = append(dst, kIntegerTag)
		return appendU32(dst, uint32(int32(v)))
	}
	// Magnitude fits in 8 bytes so this is always a small big.
	var mag [8]byte
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	n := 0
	for u > 0 {
		mag[n] = byte(u)
		u >>= 8
		n++
	}
	dst = append(dst, kSmallBigTag, byte(n))
	if neg {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	return append(dst, mag[:n]...)
}

func appendBig(dst []byte, v BigInt) ([]byte, error) {
	if v.Value == nil {
		return nil, fmt.Errorf("etf: big integer with nil value")
	}
	mag := v.Value.Bytes() // big-endian magnitude
	n := len(mag)
	if n == 0 {
		mag = []byte{0}
		n = 1
	}
	if n <= math.MaxUint8 {
		dst = append(dst, kSmallBigTag, byte(n))
	} else if n <= math.MaxUint32 {
		dst = append(dst, kLargeBigTag)
		dst = appendU32(dst, uint32(n))
	} else {
		return nil, fmt.Errorf("etf: big integer with %d magnitude bytes", n)
	}
	if v.Value.Sign() < 0 {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	// Wire magnitude is little-endian.
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, mag[i])
	}
	return dst, nil
}

func appendList(dst []byte, v List) ([]byte, error) {
	properTail := v.Tail == nil
	if !properTail {
		_, properTail = v.Tail.(Nil)
	}
	if len(v.Elems) == 0 {
		if properTail {
			return append(dst, kNilTag), nil
		}
		return nil, fmt.Errorf("etf: improper list with no elements")
	}
	if properTail && len(v.Elems) <= kMaxStringLen && isByteList(v.Elems) {
		dst = append(dst, kStringTag)
		dst = appendU16(dst, uint16(len(v.Elems)))
		for _, e := range v.Elems {
			dst = append(dst, byte(e.(Int)))
		}
		return dst, nil
	}
	dst = append(dst, kListTag)
	dst = appendU32(dst, uint32(len(v.Elems)))
	var err error
	for _, e := range v.Elems {
		if dst, err = appendTerm(dst, e); err != nil {
			return nil, err
		}
	}
	if properTail {
		return append(dst, kNilTag), nil
	}
	return appendTerm(dst, v.Tail)
}

func isByteList(elems []Term) bool {
	for _, e := range elems {
		i, ok := e.(Int)
		if !ok || i < 0 || i > 255 {
			return false
		}
	}
	return true
}

func appendFun(dst []byte, v Fun) ([]byte, error) {
	body := make([]byte, 0, 64)
	body = append(body, v.Arity)
	body = append(body, v.Uniq[:]...)
	body = appendU32(body, v.Index)
	body = appendU32(body, uint32(len(v.FreeVars)))
	var err error
	if body, err = appendAtom(body, v.Module); err != nil {
		return nil, err
	}
	body = appendInt(body, int64(v.OldIndex))
	body = appendInt(body, int64(v.OldUniq))
	if body, err = appendTerm(body, v.Pid); err != nil {
		return nil, err
	}
	for _, fv := range v.FreeVars {
		if body, err = appendTerm(body, fv); err != nil {
			return nil, err
		}
	}
	// Size counts its own four bytes plus the body, not the tag.
	dst = append(dst, kNewFunTag)
	dst = appendU32(dst, uint32(4+len(body)))
	return append(dst, body...), nil
}
