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

// Package cli implements the erlcli subcommands.
package cli

import (
	"fmt"
	"os"
	"time"

	"erldist/pkg/cmd"
	"erldist/pkg/etf"
	nio "erldist/pkg/io"
	"erldist/pkg/node"
	"erldist/pkg/util"
	"erldist/third_party/forked/golang/glog"
)

const (
	kDefaultServerAddress = "127.0.0.1:7777"
	kDefaultNodeName      = "erlcli@localhost"
)

type (
	// sessionCommandT carries the options every subcommand that talks
	// to a peer node needs.
	sessionCommandT struct {
		cmd.Command
		node.Config

		optServerAddr string
		optSSLEnabled bool
		optNodeName   string
		optCookie     string
		optCfgFile    string
		optLogLevel   string
		optTimeout    time.Duration
	}

	cmdPingT struct {
		sessionCommandT
	}

	cmdCallT struct {
		sessionCommandT
		optShowStats bool
	}

	cmdSendT struct {
		sessionCommandT
	}
)

func (c *sessionCommandT) Init(name string, desc string) {
	c.Command.Init(name, desc)
	c.StringOption(&c.optServerAddr, "s|server", kDefaultServerAddress, "specify the peer node's distribution address")
	c.StringOption(&c.optNodeName, "name", kDefaultNodeName, "specify this node's name, alive@host")
	c.StringOption(&c.optCookie, "cookie", "", "specify the shared cookie")
	c.StringOption(&c.optCfgFile, "c|config", "", "specify toml configuration file name")
	c.StringOption(&c.optLogLevel, "log-level", "warning", "specify log level")
	c.BoolOption(&c.optSSLEnabled, "ssl", false, "SSL")
	c.DurationOption(&c.optTimeout, "t|timeout", 10*time.Second, "specify the call timeout")
}

func (c *sessionCommandT) Parse(args []string) (err error) {
	if err = c.Command.Parse(args); err != nil {
		return
	}
	glog.InitLogging(c.optLogLevel, " [erlcli] ")
	if len(c.optCfgFile) != 0 {
		var loaded *node.Config
		if loaded, err = node.LoadConfig(c.optCfgFile); err != nil {
			glog.Exitf("failed to load config file %s. %s", c.optCfgFile, err)
		}
		c.Config = *loaded
	}
	if c.Config.NodeName == "" || c.optNodeName != kDefaultNodeName {
		c.Config.NodeName = c.optNodeName
	}
	if c.optCookie != "" {
		c.Config.Cookie = c.optCookie
	}
	if c.optTimeout != 0 {
		c.Config.CallTimeout = util.Duration{Duration: c.optTimeout}
	}
	return
}

func (c *sessionCommandT) open() *node.Session {
	endpoint := nio.ServiceEndpoint{Addr: c.optServerAddr, SSLEnabled: c.optSSLEnabled}
	s, err := node.Open(endpoint, &c.Config, nil)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return s
}

func (c *cmdPingT) Exec() {
	c.Command.Validate()
	s := c.open()
	defer s.Close()

	fmt.Printf("connected to %s\n", s.PeerName())
	fmt.Printf("  creation : %d\n", s.PeerCreation())
	fmt.Printf("  flags    : %s\n", s.PeerFlags())
}

func (c *cmdCallT) Init(name string, desc string) {
	c.sessionCommandT.Init(name, desc)
	c.BoolOption(&c.optShowStats, "stats", false, "print call latency stats on exit")
	c.SetSynopsis("[option] <module> <function> [<args>...]")
	c.AddExample("erlcli call -s 127.0.0.1:7777 -cookie secret erlang node", "ask the peer for its own node name")
}

func (c *cmdCallT) Exec() {
	c.Command.Validate()
	if c.NArg() < 2 {
		fmt.Println("missing module and function")
		os.Exit(1)
	}
	module := etf.Atom(c.Arg(0))
	function := etf.Atom(c.Arg(1))
	var args []etf.Term
	for i := 2; i < c.NArg(); i++ {
		args = append(args, parseTermArg(c.Arg(i)))
	}

	s := c.open()
	defer s.Close()

	result, err := s.RPC(module, function, args, c.optTimeout)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println(etf.ToString(result))
	if c.optShowStats {
		s.WriteStats(os.Stdout, 2)
	}
}

func (c *cmdSendT) Init(name string, desc string) {
	c.sessionCommandT.Init(name, desc)
	c.SetSynopsis("[option] <mailbox> <message>")
}

func (c *cmdSendT) Exec() {
	c.Command.Validate()
	if c.NArg() < 2 {
		fmt.Println("missing mailbox and message")
		os.Exit(1)
	}
	s := c.open()
	defer s.Close()

	if err := s.Send(etf.Atom(c.Arg(0)), parseTermArg(c.Arg(1))); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	ping := &cmdPingT{}
	ping.Init("ping", "handshake with a peer node and report its identity")
	cmd.Register(ping)

	call := &cmdCallT{}
	call.Init("call", "invoke module:function(args) on the peer node")
	cmd.Register(call)

	send := &cmdSendT{}
	send.Init("send", "send a one-way message to a registered mailbox")
	cmd.Register(send)
}
