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

package cmd

import (
	"flag"
	"fmt"
	"strings"
	"time"
)

// Option wraps flag.FlagSet with "-long|-short" aliased registration
// and collects option descriptions for the usage template.
type Option struct {
	flag.FlagSet
	optsDesc string
}

// eachName registers one flag under each |-separated alias and returns
// the "-a, -b" display form.
func eachName(name string, register func(n string)) string {
	var opt string
	for _, n := range strings.Split(name, "|") {
		if n == "" {
			continue
		}
		register(n)
		if opt != "" {
			opt += ", "
		}
		opt += "-" + n
	}
	return opt
}

func (o *Option) StringOption(p *string, name string, value string, usage string) {
	if name == "" {
		return
	}
	opt := eachName(name, func(n string) { o.StringVar(p, n, value, "") })
	o.optsDesc += fmt.Sprintf("  %s string\n    \t(default %q)\n    \t%s\n\n", opt, value, usage)
}

func (o *Option) BoolOption(p *bool, name string, value bool, usage string) {
	if name == "" {
		return
	}
	opt := eachName(name, func(n string) { o.BoolVar(p, n, value, "") })
	o.optsDesc += fmt.Sprintf("  %s\n    \t(default %v)\n    \t%s\n\n", opt, value, usage)
}

func (o *Option) UintOption(p *uint, name string, value uint, usage string) {
	if name == "" {
		return
	}
	opt := eachName(name, func(n string) { o.UintVar(p, n, value, "") })
	o.optsDesc += fmt.Sprintf("  %s uint\n    \t(default %v)\n    \t%s\n\n", opt, value, usage)
}

func (o *Option) IntOption(p *int, name string, value int, usage string) {
	if name == "" {
		return
	}
	opt := eachName(name, func(n string) { o.IntVar(p, n, value, "") })
	o.optsDesc += fmt.Sprintf("  %s int\n    \t(default %v)\n    \t%s\n\n", opt, value, usage)
}

func (o *Option) DurationOption(p *time.Duration, name string, value time.Duration, usage string) {
	if name == "" {
		return
	}
	opt := eachName(name, func(n string) { o.DurationVar(p, n, value, "") })
	o.optsDesc += fmt.Sprintf("  %s duration\n    \t(default %v)\n    \t%s\n\n", opt, value, usage)
}

func (o *Option) GetOptionDesc() string {
	return o.optsDesc
}
