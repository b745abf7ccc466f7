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
	"fmt"
)

type DecodeErrorKind uint8

const (
	UnknownTag DecodeErrorKind = iota + 1
	Truncated
	InvalidLength
	InvalidUtf8
	SurrogateInCharlist
	DecompressionFailed
	BadVersion
)

func (k DecodeErrorKind) String() string {
	switch k {
	case UnknownTag:
		return "UnknownTag"
	case Truncated:
		return "Truncated"
	case InvalidLength:
		return "InvalidLength"
	case InvalidUtf8:
		return "InvalidUtf8"
	case SurrogateInCharlist:
		return "SurrogateInCharlist"
	case DecompressionFailed:
		return "DecompressionFailed"
	case BadVersion:
		return "BadVersion"
	}
	return "Unknown"
}

// DecodeError reports why a buffer could not be decoded, carrying the tag
// and byte offset at which decoding stopped.
type DecodeError struct {
	Kind   DecodeErrorKind
	Tag    byte
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("etf: %s at offset %d (tag %d)", e.Kind, e.Offset, e.Tag)
}

// DecodeErrorOf returns the decode error kind, or 0 if err is not a DecodeError.
func DecodeErrorOf(err error) DecodeErrorKind {
	if de, ok := err.(*DecodeError); ok {
		return de.Kind
	}
	return 0
}
