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

package cfg

import (
	"strings"
	"testing"
)

type sampleConfig struct {
	Name    string
	Retries int
	Nested  struct {
		Addr string
	}
}

func TestReadFromStruct(t *testing.T) {
	src := sampleConfig{Name: "node", Retries: 3}
	src.Nested.Addr = "127.0.0.1:4369"

	var c Config
	if err := c.ReadFrom(&src); err != nil {
		t.Fatal(err)
	}
	if got := c.GetValue("Name"); got != "node" {
		t.Errorf("Name = %v", got)
	}
	if got := c.GetValue("Nested.Addr"); got != "127.0.0.1:4369" {
		t.Errorf("Nested.Addr = %v", got)
	}
	if got := c.GetValue("Absent"); got != nil {
		t.Errorf("absent key = %v", got)
	}
}

func TestMergeOverrides(t *testing.T) {
	var base, overlay Config
	if err := base.ReadFromToml(strings.NewReader(`
Name = "base"
Retries = 3
[Nested]
Addr = "a"
`)); err != nil {
		t.Fatal(err)
	}
	if err := overlay.ReadFromToml(strings.NewReader(`
Name = "overlay"
[Nested]
Addr = "b"
`)); err != nil {
		t.Fatal(err)
	}
	if err := base.Merge(&overlay); err != nil {
		t.Fatal(err)
	}

	var out sampleConfig
	if err := base.WriteTo(&out); err != nil {
		t.Fatal(err)
	}
	if out.Name != "overlay" || out.Nested.Addr != "b" {
		t.Errorf("overrides lost: %+v", out)
	}
	if out.Retries != 3 {
		t.Errorf("base-only value lost: %d", out.Retries)
	}
}

func TestTomlRoundTrip(t *testing.T) {
	src := sampleConfig{Name: "rt", Retries: 7}
	var c Config
	if err := c.ReadFrom(&src); err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	if err := c.WriteToToml(&sb); err != nil {
		t.Fatal(err)
	}

	var back Config
	if err := back.ReadFromToml(strings.NewReader(sb.String())); err != nil {
		t.Fatal(err)
	}
	var out sampleConfig
	if err := back.WriteTo(&out); err != nil {
		t.Fatal(err)
	}
	if out.Name != "rt" || out.Retries != 7 {
		t.Errorf("roundtrip lost values: %+v", out)
	}
}
