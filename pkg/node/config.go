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
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"erldist/pkg/cfg"
	"erldist/pkg/dist"
	"erldist/pkg/util"
)

// Config carries one node's identity and session tunables.
type Config struct {
	// NodeName is the full name, "alive@host".
	NodeName string
	// Cookie is the shared secret for challenge/response authentication.
	Cookie string
	// Creation distinguishes node incarnations; 0 derives one from the
	// clock at session setup.
	Creation uint32
	// Hidden nodes do not request publication in the peer's node table.
	Hidden bool
	// Flags overrides the advertised capability set when non-zero.
	Flags dist.Flags

	ConnectTimeout   util.Duration
	HandshakeTimeout util.Duration
	// CallTimeout applies when a call passes timeout 0.
	CallTimeout util.Duration
	// TickInterval is how often a keep-alive tick is written when the
	// connection is otherwise idle.
	TickInterval util.Duration
	// TickTimeout closes the connection when nothing, ticks included,
	// arrives for this long.
	TickTimeout util.Duration

	// MaxFragmentSize caps one outbound fragment's data bytes; messages
	// above it are split.
	MaxFragmentSize int
	// MaxAssembledSize caps cumulative reassembly per sequence id.
	MaxAssembledSize int
	// MaxFrameSize caps one inbound physical frame.
	MaxFrameSize uint32

	RequestChanSize int
	FrameChanSize   int

	// TLS applies when dialing an SSL endpoint. Not loadable from TOML.
	TLS *tls.Config `toml:"-"`
}

var DefaultConfig = Config{
	ConnectTimeout:   util.Duration{Duration: 5 * time.Second},
	HandshakeTimeout: util.Duration{Duration: 5 * time.Second},
	CallTimeout:      util.Duration{Duration: 10 * time.Second},
	TickInterval:     util.Duration{Duration: 15 * time.Second},
	TickTimeout:      util.Duration{Duration: 60 * time.Second},
	MaxFragmentSize:  64 * 1024,
	MaxAssembledSize: 64 * 1024 * 1024,
	MaxFrameSize:     128 * 1024 * 1024,
	RequestChanSize:  256,
	FrameChanSize:    256,
}

func (c *Config) Validate() error {
	if len(c.NodeName) == 0 {
		return fmt.Errorf("node: NodeName not specified")
	}
	if !strings.Contains(c.NodeName, "@") {
		return fmt.Errorf("node: NodeName %q is not alive@host", c.NodeName)
	}
	if len(c.Cookie) == 0 {
		return fmt.Errorf("node: Cookie not specified")
	}
	return nil
}

// SetDefaultIfNotDefined fills zero-valued tunables from DefaultConfig.
func (c *Config) SetDefaultIfNotDefined() {
	if c.ConnectTimeout.Duration == 0 {
		c.ConnectTimeout = DefaultConfig.ConnectTimeout
	}
	if c.HandshakeTimeout.Duration == 0 {
		c.HandshakeTimeout = DefaultConfig.HandshakeTimeout
	}
	if c.CallTimeout.Duration == 0 {
		c.CallTimeout = DefaultConfig.CallTimeout
	}
	if c.TickInterval.Duration == 0 {
		c.TickInterval = DefaultConfig.TickInterval
	}
	if c.TickTimeout.Duration == 0 {
		c.TickTimeout = DefaultConfig.TickTimeout
	}
	if c.MaxFragmentSize == 0 {
		c.MaxFragmentSize = DefaultConfig.MaxFragmentSize
	}
	if c.MaxAssembledSize == 0 {
		c.MaxAssembledSize = DefaultConfig.MaxAssembledSize
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = DefaultConfig.MaxFrameSize
	}
	if c.RequestChanSize == 0 {
		c.RequestChanSize = DefaultConfig.RequestChanSize
	}
	if c.FrameChanSize == 0 {
		c.FrameChanSize = DefaultConfig.FrameChanSize
	}
}

// advertisedFlags resolves the capability set sent during the handshake.
func (c *Config) advertisedFlags() dist.Flags {
	flags := c.Flags
	if flags == 0 {
		flags = dist.DefaultFlags
	}
	if !c.Hidden {
		flags |= dist.FlagPublished
	}
	return flags
}

func (c *Config) creation() uint32 {
	if c.Creation != 0 {
		return c.Creation
	}
	// Small creations collide with the legacy 2-bit space; offset away.
	return uint32(time.Now().Unix())&0x7FFFFFFF | 0x10000
}

// LoadConfig layers TOML files over DefaultConfig, later files winning,
// and validates the result.
func LoadConfig(files ...string) (*Config, error) {
	var layered cfg.Config
	if err := layered.ReadFrom(&DefaultConfig); err != nil {
		return nil, err
	}
	for _, file := range files {
		var overlay cfg.Config
		if err := overlay.ReadFromTomlFile(file); err != nil {
			return nil, err
		}
		if err := layered.Merge(&overlay); err != nil {
			return nil, err
		}
	}
	config := &Config{}
	if err := layered.WriteTo(config); err != nil {
		return nil, err
	}
	config.SetDefaultIfNotDefined()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
