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

	"erldist/third_party/forked/golang/glog"
)

// NewListener opens the endpoint for inbound connections. An SSL
// endpoint requires a server TLS config with at least one certificate.
func NewListener(endpoint *ServiceEndpoint, tlsCfg *tls.Config) (net.Listener, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}
	ln, err := net.Listen(endpoint.GetNetwork(), endpoint.Addr)
	if err != nil {
		return nil, err
	}
	if endpoint.SSLEnabled {
		if tlsCfg == nil || len(tlsCfg.Certificates) == 0 && tlsCfg.GetCertificate == nil {
			ln.Close()
			return nil, fmt.Errorf("io: ssl endpoint %s has no server certificate", endpoint.GetConnString())
		}
		ln = tls.NewListener(ln, tlsCfg)
	}
	if glog.LOG_DEBUG {
		glog.Debugf("listening on %s", ln.Addr())
	}
	return ln, nil
}
