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
	"os"
	"path/filepath"
	"testing"
	"time"

	"erldist/pkg/dist"
)

func TestConfigValidate(t *testing.T) {
	good := Config{NodeName: "a@local", Cookie: "secret"}
	if err := good.Validate(); err != nil {
		t.Error(err)
	}
	bad := []Config{
		{Cookie: "secret"},
		{NodeName: "nohost", Cookie: "secret"},
		{NodeName: "a@local"},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("config %d accepted", i)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{NodeName: "a@local", Cookie: "secret"}
	c.SetDefaultIfNotDefined()
	if c.CallTimeout != DefaultConfig.CallTimeout {
		t.Errorf("CallTimeout %s", c.CallTimeout.Duration)
	}
	if c.MaxFragmentSize != DefaultConfig.MaxFragmentSize {
		t.Errorf("MaxFragmentSize %d", c.MaxFragmentSize)
	}

	// Explicit settings survive.
	c = Config{NodeName: "a@local", Cookie: "secret", MaxFragmentSize: 128}
	c.SetDefaultIfNotDefined()
	if c.MaxFragmentSize != 128 {
		t.Errorf("MaxFragmentSize %d overwritten", c.MaxFragmentSize)
	}
}

func TestAdvertisedFlags(t *testing.T) {
	c := Config{NodeName: "a@local", Cookie: "secret"}
	if flags := c.advertisedFlags(); !flags.Has(dist.FlagPublished) {
		t.Error("visible node not advertised as published")
	}
	c.Hidden = true
	if flags := c.advertisedFlags(); flags.Has(dist.FlagPublished) {
		t.Error("hidden node advertised as published")
	}
	c.Flags = dist.MandatoryFlags
	if flags := c.advertisedFlags(); flags != dist.MandatoryFlags {
		t.Errorf("override ignored, got %s", flags)
	}
}

func TestConfigCreation(t *testing.T) {
	c := Config{Creation: 42}
	if c.creation() != 42 {
		t.Errorf("creation %d", c.creation())
	}
	c.Creation = 0
	if got := c.creation(); got < 0x10000 {
		t.Errorf("derived creation %d inside the legacy range", got)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")
	writeFile(t, base, `
NodeName = "a@local"
Cookie = "secret"
CallTimeout = "3s"
MaxFragmentSize = 4096
`)
	writeFile(t, override, `
Cookie = "rotated"
CallTimeout = "7s"
`)

	c, err := LoadConfig(base, override)
	if err != nil {
		t.Fatal(err)
	}
	if c.NodeName != "a@local" || c.Cookie != "rotated" {
		t.Errorf("identity %q / %q", c.NodeName, c.Cookie)
	}
	if c.CallTimeout.Duration != 7*time.Second {
		t.Errorf("CallTimeout %s, want the override", c.CallTimeout.Duration)
	}
	if c.MaxFragmentSize != 4096 {
		t.Errorf("MaxFragmentSize %d, want the base file's", c.MaxFragmentSize)
	}
	if c.TickInterval != DefaultConfig.TickInterval {
		t.Errorf("TickInterval %s, want the default", c.TickInterval.Duration)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("missing file accepted")
	}
	incomplete := filepath.Join(t.TempDir(), "incomplete.toml")
	writeFile(t, incomplete, `NodeName = "a@local"`)
	if _, err := LoadConfig(incomplete); err == nil {
		t.Error("config without a cookie accepted")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
