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

import "fmt"

type HandshakeErrorKind uint8

const (
	NameMismatch HandshakeErrorKind = iota + 1
	DigestMismatch
	IncompatibleFlags
	UnexpectedMessage
	PeerRejected
	HandshakeTimeout
)

func (k HandshakeErrorKind) String() string {
	switch k {
	case NameMismatch:
		return "NameMismatch"
	case DigestMismatch:
		return "DigestMismatch"
	case IncompatibleFlags:
		return "IncompatibleFlags"
	case UnexpectedMessage:
		return "UnexpectedMessage"
	case PeerRejected:
		return "PeerRejected"
	case HandshakeTimeout:
		return "HandshakeTimeout"
	}
	return "Unknown"
}

// HandshakeError aborts connection establishment. It is never retried
// here; retry policy belongs to the caller.
type HandshakeError struct {
	Kind   HandshakeErrorKind
	Detail string
}

func (e *HandshakeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("dist: handshake failed: %s", e.Kind)
	}
	return fmt.Sprintf("dist: handshake failed: %s (%s)", e.Kind, e.Detail)
}

// HandshakeErrorOf returns the handshake error kind, or 0.
func HandshakeErrorOf(err error) HandshakeErrorKind {
	if he, ok := err.(*HandshakeError); ok {
		return he.Kind
	}
	return 0
}

type FragmentErrorKind uint8

const (
	UnknownSequence FragmentErrorKind = iota + 1
	SizeLimitExceeded
	OutOfOrder
	BadFragmentHeader
)

func (k FragmentErrorKind) String() string {
	switch k {
	case UnknownSequence:
		return "UnknownSequence"
	case SizeLimitExceeded:
		return "SizeLimitExceeded"
	case OutOfOrder:
		return "OutOfOrder"
	case BadFragmentHeader:
		return "BadFragmentHeader"
	}
	return "Unknown"
}

// FragmentError is a protocol desynchronization. The connection cannot
// be trusted afterwards and must be torn down.
type FragmentError struct {
	Kind       FragmentErrorKind
	SequenceId uint64
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("dist: fragment %s (sequence %d)", e.Kind, e.SequenceId)
}

// FragmentErrorOf returns the fragment error kind, or 0.
func FragmentErrorOf(err error) FragmentErrorKind {
	if fe, ok := err.(*FragmentError); ok {
		return fe.Kind
	}
	return 0
}
