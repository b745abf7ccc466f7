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

// Package etf implements the external term format: a tree model of Erlang
// terms and a byte-exact binary codec for them.
package etf

import (
	"fmt"
	"math/big"
	"strings"
)

// Term is one node of a term tree. Concrete types: Atom, Int, BigInt,
// Float, Binary, BitBinary, Tuple, List, Nil, Map, Pid, Port, Ref, Fun,
// ExportFun.
type Term interface {
	isTerm()
}

type (
	Atom  string
	Int   int64
	Float float64

	// BigInt holds an integer outside the 32-bit range. Sign and magnitude
	// live in Value.
	BigInt struct {
		Value *big.Int
	}

	Binary []byte

	// BitBinary is a byte sequence whose last byte carries only Bits
	// significant bits.
	BitBinary struct {
		Bytes []byte
		Bits  uint8
	}

	Tuple []Term

	// List is a cons sequence. A nil Tail means a proper list; a non-nil
	// Tail that is not Nil makes the list improper.
	List struct {
		Elems []Term
		Tail  Term
	}

	Nil struct{}

	MapPair struct {
		Key   Term
		Value Term
	}

	// Map preserves pair order as transmitted. No uniqueness or sorting is
	// implied.
	Map []MapPair

	// Pid is a process identifier. A Pid obtained from Decode carries the
	// exact bytes that produced it; re-encoding emits them verbatim.
	Pid struct {
		Node     Atom
		Id       uint32
		Serial   uint32
		Creation uint32
		raw      []byte
	}

	Port struct {
		Node     Atom
		Id       uint64
		Creation uint32
		raw      []byte
	}

	Ref struct {
		Node     Atom
		Creation uint32
		Ids      []uint32
		raw      []byte
	}

	// Fun is an internal fun (NEW_FUN_EXT).
	Fun struct {
		Arity    uint8
		Uniq     [16]byte
		Index    uint32
		Module   Atom
		OldIndex uint32
		OldUniq  uint32
		Pid      Pid
		FreeVars []Term
	}

	// ExportFun is fun M:F/A.
	ExportFun struct {
		Module   Atom
		Function Atom
		Arity    uint8
	}
)

func (Atom) isTerm()      {}
func (Int) isTerm()       {}
func (Float) isTerm()     {}
func (BigInt) isTerm()    {}
func (Binary) isTerm()    {}
func (BitBinary) isTerm() {}
func (Tuple) isTerm()     {}
func (List) isTerm()      {}
func (Nil) isTerm()       {}
func (Map) isTerm()       {}
func (Pid) isTerm()       {}
func (Port) isTerm()      {}
func (Ref) isTerm()       {}
func (Fun) isTerm()       {}
func (ExportFun) isTerm() {}

// Well-known atoms.
const (
	AtomOk        = Atom("ok")
	AtomError     = Atom("error")
	AtomTrue      = Atom("true")
	AtomFalse     = Atom("false")
	AtomUndefined = Atom("undefined")
	AtomNormal    = Atom("normal")
	AtomShutdown  = Atom("shutdown")
	AtomBadRpc    = Atom("badrpc")
	AtomRex       = Atom("rex")
	AtomCall      = Atom("call")
	AtomUser      = Atom("user")
)

// HasProvenance reports whether the pid was produced by Decode and still
// carries its original wire bytes.
func (p Pid) HasProvenance() bool { return p.raw != nil }

func (p Port) HasProvenance() bool { return p.raw != nil }

func (r Ref) HasProvenance() bool { return r.raw != nil }

func Boolean(v bool) Atom {
	if v {
		return AtomTrue
	}
	return AtomFalse
}

// OkTuple builds {ok, Value}.
func OkTuple(value Term) Tuple { return Tuple{AtomOk, value} }

// ErrorTuple builds {error, Reason}.
func ErrorTuple(reason Term) Tuple { return Tuple{AtomError, reason} }

// Mfa builds the {Module, Function, Args} triple used by call requests.
func Mfa(module, function Atom, args []Term) Tuple {
	return Tuple{module, function, NewList(args...)}
}

// NewList builds a proper list.
func NewList(elems ...Term) Term {
	if len(elems) == 0 {
		return Nil{}
	}
	return List{Elems: elems}
}

// Charlist builds a proper list of the Unicode code points of s.
func Charlist(s string) Term {
	if len(s) == 0 {
		return Nil{}
	}
	var elems []Term
	for _, r := range s {
		elems = append(elems, Int(r))
	}
	return List{Elems: elems}
}

// IsCharlist reports whether t is a proper list of Unicode scalar values.
func IsCharlist(t Term) bool {
	switch v := t.(type) {
	case Nil:
		return true
	case List:
		if v.Tail != nil {
			if _, isNil := v.Tail.(Nil); !isNil {
				return false
			}
		}
		for _, e := range v.Elems {
			i, ok := e.(Int)
			if !ok || i < 0 || i > 0x10FFFF || (i >= 0xD800 && i <= 0xDFFF) {
				return false
			}
		}
		return true
	}
	return false
}

// CharlistString decodes a charlist term back to a string, if it is one.
func CharlistString(t Term) (string, bool) {
	switch v := t.(type) {
	case Nil:
		return "", true
	case List:
		if !IsCharlist(t) {
			return "", false
		}
		var b strings.Builder
		for _, e := range v.Elems {
			b.WriteRune(rune(e.(Int)))
		}
		return b.String(), true
	}
	return "", false
}

// AsAtom extracts an atom.
func AsAtom(t Term) (Atom, bool) {
	a, ok := t.(Atom)
	return a, ok
}

// AsInt extracts an integer.
func AsInt(t Term) (int64, bool) {
	i, ok := t.(Int)
	return int64(i), ok
}

// AsTuple extracts a tuple of exactly n elements; n < 0 accepts any arity.
func AsTuple(t Term, n int) (Tuple, bool) {
	tup, ok := t.(Tuple)
	if !ok || (n >= 0 && len(tup) != n) {
		return nil, false
	}
	return tup, ok
}

// IsAtomNamed reports whether t is the given atom.
func IsAtomNamed(t Term, name Atom) bool {
	a, ok := t.(Atom)
	return ok && a == name
}

// ToString renders a term in Erlang-ish display syntax for logs.
func ToString(t Term) string {
	var b strings.Builder
	writeTerm(&b, t)
	return b.String()
}

func writeTerm(b *strings.Builder, t Term) {
	switch v := t.(type) {
	case Atom:
		b.WriteString(string(v))
	case Int:
		fmt.Fprintf(b, "%d", int64(v))
	case Float:
		fmt.Fprintf(b, "%g", float64(v))
	case BigInt:
		b.WriteString(v.Value.String())
	case Binary:
		fmt.Fprintf(b, "<<%d bytes>>", len(v))
	case BitBinary:
		fmt.Fprintf(b, "<<%d bytes,%d bits>>", len(v.Bytes), v.Bits)
	case Nil:
		b.WriteString("[]")
	case Tuple:
		b.WriteByte('{')
		for i, e := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			writeTerm(b, e)
		}
		b.WriteByte('}')
	case List:
		b.WriteByte('[')
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteByte(',')
			}
			writeTerm(b, e)
		}
		if v.Tail != nil {
			if _, isNil := v.Tail.(Nil); !isNil {
				b.WriteByte('|')
				writeTerm(b, v.Tail)
			}
		}
		b.WriteByte(']')
	case Map:
		b.WriteString("#{")
		for i, p := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			writeTerm(b, p.Key)
			b.WriteString("=>")
			writeTerm(b, p.Value)
		}
		b.WriteByte('}')
	case Pid:
		fmt.Fprintf(b, "<%s.%d.%d>", v.Node, v.Id, v.Serial)
	case Port:
		fmt.Fprintf(b, "#Port<%s.%d>", v.Node, v.Id)
	case Ref:
		fmt.Fprintf(b, "#Ref<%s.%v>", v.Node, v.Ids)
	case Fun:
		fmt.Fprintf(b, "#Fun<%s.%d.%d>", v.Module, v.OldIndex, v.OldUniq)
	case ExportFun:
		fmt.Fprintf(b, "fun %s:%s/%d", v.Module, v.Function, v.Arity)
	default:
		b.WriteString("?")
	}
}
