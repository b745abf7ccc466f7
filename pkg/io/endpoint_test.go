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

import "testing"

func TestConnString(t *testing.T) {
	var ep ServiceEndpoint
	if err := ep.SetFromConnString("ssl:host1:9100"); err != nil {
		t.Fatal(err)
	}
	if !ep.SSLEnabled || ep.Addr != "host1:9100" {
		t.Errorf("parsed %+v", ep)
	}
	if ep.GetConnString() != "ssl:host1:9100" {
		t.Errorf("conn string %q", ep.GetConnString())
	}

	ep = ServiceEndpoint{}
	if err := ep.SetFromConnString("9200"); err != nil {
		t.Fatal(err)
	}
	if ep.SSLEnabled || ep.Addr != ":9200" {
		t.Errorf("parsed %+v", ep)
	}
	if ep.GetNetwork() != "tcp" {
		t.Errorf("network %q", ep.GetNetwork())
	}
}

func TestValidate(t *testing.T) {
	var ep ServiceEndpoint
	if err := ep.Validate(); err == nil {
		t.Error("empty endpoint validated")
	}
}

func TestConnectAndListen(t *testing.T) {
	ep := ServiceEndpoint{Addr: "127.0.0.1:0"}
	ln, err := NewListener(&ep, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	accepted := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
		accepted <- err
	}()
	remote := ServiceEndpoint{Addr: ln.Addr().String()}
	conn, err := Connect(&remote, nil)
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
	if err := <-accepted; err != nil {
		t.Fatal(err)
	}
}
