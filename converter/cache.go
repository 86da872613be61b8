// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package converter

import (
	"maps"
	"reflect"
	"sync"
	"sync/atomic"
)

// typeCache memoizes per-type metadata.
//
// Reads are lock-free against an immutable map. Misses take the write lock
// and check again, so concurrent first lookups of one type build it once.
type typeCache struct {
	entries atomic.Pointer[map[reflect.Type]*xmlTypeInfo]
	mu      sync.Mutex
	build   func(reflect.Type) *xmlTypeInfo
}

func newTypeCache(build func(reflect.Type) *xmlTypeInfo) *typeCache {
	c := &typeCache{build: build}
	m := make(map[reflect.Type]*xmlTypeInfo)
	c.entries.Store(&m)
	return c
}

func (c *typeCache) get(t reflect.Type) *xmlTypeInfo {
	if info, ok := (*c.entries.Load())[t]; ok {
		return info
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.entries.Load()
	if info, ok := (*m)[t]; ok {
		return info
	}

	info := c.build(t)

	// Copy-on-write
	next := make(map[reflect.Type]*xmlTypeInfo, len(*m)+1)
	maps.Copy(next, *m)
	next[t] = info
	c.entries.Store(&next)

	return info
}

func (c *typeCache) size() int {
	return len(*c.entries.Load())
}
