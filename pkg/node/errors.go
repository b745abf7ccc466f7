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

package node

import (
	"errors"
	"fmt"
	"time"

	"erldist/pkg/etf"
)

var (
	ErrClosed         = errors.New("node: session closed")
	ErrNotConnected   = errors.New("node: session not connected")
	ErrBadDestination = errors.New("node: destination must be a pid or registered name")
)

type RpcErrorKind uint8

const (
	RpcTimeout RpcErrorKind = iota + 1
	RpcConnectionClosed
	RpcRemoteError
)

func (k RpcErrorKind) String() string {
	switch k {
	case RpcTimeout:
		return "Timeout"
	case RpcConnectionClosed:
		return "ConnectionClosed"
	case RpcRemoteError:
		return "RemoteError"
	}
	return "Unknown"
}

// RpcError resolves a single call. Timeout carries the configured
// duration; RemoteError carries the peer's reason term.
type RpcError struct {
	Kind     RpcErrorKind
	Duration time.Duration
	Reason   etf.Term
}

func (e *RpcError) Error() string {
	switch e.Kind {
	case RpcTimeout:
		return fmt.Sprintf("node: call timed out after %s", e.Duration)
	case RpcConnectionClosed:
		return "node: call failed, connection closed"
	case RpcRemoteError:
		return fmt.Sprintf("node: remote error: %s", etf.ToString(e.Reason))
	}
	return "node: rpc error"
}

// RpcErrorOf returns the rpc error kind, or 0.
func RpcErrorOf(err error) RpcErrorKind {
	if re, ok := err.(*RpcError); ok {
		return re.Kind
	}
	return 0
}
