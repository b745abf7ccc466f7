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
	"reflect"
	"testing"

	"erldist/pkg/etf"
)

func TestParseTermArg(t *testing.T) {
	cases := []struct {
		arg  string
		want etf.Term
	}{
		{"42", etf.Int(42)},
		{"-7", etf.Int(-7)},
		{"ok", etf.Atom("ok")},
		{`"bytes"`, etf.Binary("bytes")},
		{"'quoted atom'", etf.Atom("quoted atom")},
		{"1.5x", etf.Atom("1.5x")},
	}
	for _, tc := range cases {
		if got := parseTermArg(tc.arg); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseTermArg(%q) = %#v, want %#v", tc.arg, got, tc.want)
		}
	}
}
