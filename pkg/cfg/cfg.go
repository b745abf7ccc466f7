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

// package cfg implements functionalities for TOML configuration handling,
// primarily layering file-supplied properties over in-code defaults.
package cfg

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

type (
	// Config holds configuration properties as a case-insensitive key tree.
	// It is not goroutine safe; it is meant for startup-time wiring only.
	Config struct {
		kvMap map[string]keyValue
	}
	keyValue struct {
		key   string
		value interface{}
	}
)

// ReadFrom reads configuration properties from i, a struct or a map.
func (c *Config) ReadFrom(i interface{}) (err error) {
	var buf bytes.Buffer
	if i != nil {
		enc := toml.NewEncoder(&buf)
		if err = enc.Encode(i); err != nil {
			return err
		}
	}
	return c.ReadFromToml(&buf)
}

// ReadFromToml reads configuration properties in TOML format.
func (c *Config) ReadFromToml(r io.Reader) (err error) {
	m := make(map[string]interface{})
	if _, err = toml.NewDecoder(r).Decode(&m); err == nil {
		c.setFrom(m)
	}
	return
}

// ReadFromTomlFile reads configuration properties from a TOML file.
func (c *Config) ReadFromTomlFile(file string) (err error) {
	m := make(map[string]interface{})
	if _, err = toml.DecodeFile(file, &m); err == nil {
		c.setFrom(m)
	}
	return
}

// WriteToToml writes the configuration properties in TOML format.
func (c *Config) WriteToToml(w io.Writer) (err error) {
	m := make(map[string]interface{})
	setMap(m, c.kvMap)
	return toml.NewEncoder(w).Encode(m)
}

// WriteTo writes the configuration properties into v, a struct or map.
func (c *Config) WriteTo(v interface{}) (err error) {
	var buf bytes.Buffer
	if err = c.WriteToToml(&buf); err != nil {
		return
	}
	_, err = toml.Decode(buf.String(), v)
	return
}

// Merge layers the properties from overrides on top of c. Keys are matched
// case-insensitively; scalar values for an existing key are replaced.
func (c *Config) Merge(overrides *Config) error {
	if c.kvMap == nil {
		c.kvMap = make(map[string]keyValue)
	}
	return merge(c.kvMap, overrides.kvMap)
}

// GetValue returns the value associated with a dot-delimited key.
func (c *Config) GetValue(dotDelimitedKey string) interface{} {
	return getValueFromMap(c.kvMap, strings.Split(dotDelimitedKey, "."))
}

func (c *Config) setFrom(m map[string]interface{}) {
	c.kvMap = make(map[string]keyValue)
	setKvMap(c.kvMap, m)
}

func setKvMap(kvMap map[string]keyValue, from map[string]interface{}) {
	for k, v := range from {
		lk := strings.ToLower(k)
		if vm, ok := v.(map[string]interface{}); ok {
			nmap := make(map[string]keyValue)
			setKvMap(nmap, vm)
			kvMap[lk] = keyValue{k, nmap}
		} else {
			kvMap[lk] = keyValue{k, v}
		}
	}
}

func setMap(to map[string]interface{}, from map[string]keyValue) {
	for _, v := range from {
		if vm, ok := v.value.(map[string]keyValue); ok {
			nmap := make(map[string]interface{})
			setMap(nmap, vm)
			to[v.key] = nmap
		} else {
			to[v.key] = v.value
		}
	}
}

func merge(to, from map[string]keyValue) error {
	for k, v := range from {
		vm, vIsMap := v.value.(map[string]keyValue)
		toV, found := to[k]
		if !found {
			if vIsMap {
				nmap := make(map[string]keyValue)
				to[k] = keyValue{v.key, nmap}
				merge(nmap, vm)
			} else {
				to[k] = v
			}
			continue
		}
		toMap, toIsMap := toV.value.(map[string]keyValue)
		switch {
		case toIsMap && vIsMap:
			merge(toMap, vm)
		case !toIsMap && !vIsMap:
			to[k] = v
		default:
			return fmt.Errorf("type mismatch for key %s", v.key)
		}
	}
	return nil
}

func getValueFromMap(kvMap map[string]keyValue, keys []string) interface{} {
	if len(keys) == 0 || kvMap == nil {
		return nil
	}
	v, ok := kvMap[strings.ToLower(keys[0])]
	if !ok {
		return nil
	}
	if len(keys) == 1 {
		return v.value
	}
	if vm, ok := v.value.(map[string]keyValue); ok {
		return getValueFromMap(vm, keys[1:])
	}
	return nil
}
