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

package io

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"erldist/third_party/forked/golang/glog"
)

// ConnectConfig tunes the dial path.
type ConnectConfig struct {
	ConnectTimeout  time.Duration
	KeepAlivePeriod time.Duration
	TLS             *tls.Config // nil unless the endpoint is SSL enabled
}

var DefaultConnectConfig = ConnectConfig{
	ConnectTimeout:  5 * time.Second,
	KeepAlivePeriod: 30 * time.Second,
}

// Connect dials the endpoint. An SSL endpoint performs the TLS handshake
// within the connect timeout before the connection is handed back.
func Connect(endpoint *ServiceEndpoint, config *ConnectConfig) (net.Conn, error) {
	if config == nil {
		config = &DefaultConnectConfig
	}
	timeStart := time.Now()
	conn, err := net.DialTimeout(endpoint.GetNetwork(), endpoint.Addr, config.ConnectTimeout)
	if err != nil {
		glog.ErrorDepth(1, fmt.Sprintf("fail to connect %s error: %s", endpoint.GetConnString(), err))
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
		if config.KeepAlivePeriod > 0 {
			tc.SetKeepAlive(true)
			tc.SetKeepAlivePeriod(config.KeepAlivePeriod)
		}
	}
	if endpoint.SSLEnabled {
		tlsCfg := config.TLS
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		}
		tlsConn := tls.Client(conn, tlsCfg)
		tlsConn.SetDeadline(time.Now().Add(config.ConnectTimeout))
		if err = tlsConn.Handshake(); err != nil {
			glog.ErrorDepth(1, fmt.Sprintf("tls handshake with %s failed: %s", endpoint.GetConnString(), err))
			tlsConn.Close()
			return nil, err
		}
		tlsConn.SetDeadline(time.Time{})
		conn = tlsConn
	}
	if glog.LOG_DEBUG {
		glog.DebugDepth(1, fmt.Sprintf("connected to %s in %s", endpoint.GetConnString(), time.Since(timeStart)))
	}
	return conn, nil
}
