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

package cli

import (
	"strconv"
	"strings"

	"erldist/pkg/etf"
)

// parseTermArg maps a command line argument to a term: an integer
// literal becomes an integer, "..." a binary, '...' an atom, and
// anything else an atom.
func parseTermArg(arg string) etf.Term {
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return etf.Int(n)
	}
	if len(arg) >= 2 && strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) {
		return etf.Binary(arg[1 : len(arg)-1])
	}
	if len(arg) >= 2 && strings.HasPrefix(arg, "'") && strings.HasSuffix(arg, "'") {
		return etf.Atom(arg[1 : len(arg)-1])
	}
	return etf.Atom(arg)
}
