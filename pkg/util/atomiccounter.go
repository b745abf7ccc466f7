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

package util

import (
	"sync/atomic"
)

type AtomicCounter struct {
	cnt uint32
}

func (c *AtomicCounter) Get() uint32 {
	return atomic.LoadUint32(&c.cnt)
}

// Next increments the counter and returns the new value.
func (c *AtomicCounter) Next() uint32 {
	return atomic.AddUint32(&c.cnt, 1)
}

func (c *AtomicCounter) Set(cnt uint32) {
	atomic.StoreUint32(&c.cnt, cnt)
}

type AtomicUint64Counter struct {
	cnt uint64
}

func (c *AtomicUint64Counter) Get() uint64 {
	return atomic.LoadUint64(&c.cnt)
}

func (c *AtomicUint64Counter) Next() uint64 {
	return atomic.AddUint64(&c.cnt, 1)
}

func (c *AtomicUint64Counter) Set(cnt uint64) {
	atomic.StoreUint64(&c.cnt, cnt)
}

func (c *AtomicUint64Counter) Add(delta uint64) uint64 {
	return atomic.AddUint64(&c.cnt, delta)
}
