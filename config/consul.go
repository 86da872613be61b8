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

package config

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/consul/api"
)

// ConsulKV is the part of the Consul KV API a [ConsulSource] reads.
// *api.KV implements it.
type ConsulKV interface {
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
}

// ConsulSource reads one Consul KV entry holding a whole document. A
// missing key yields nothing.
type ConsulSource struct {
	Key    string
	Format Format
	KV     ConsulKV

	lastIndex atomic.Uint64
}

// NewConsulSource creates a source for key. A nil kv connects with the
// Consul client defaults, which honour CONSUL_HTTP_ADDR and
// CONSUL_HTTP_TOKEN.
func NewConsulSource(key string, f Format, kv ConsulKV) (*ConsulSource, error) {
	if kv == nil {
		client, err := api.NewClient(api.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create consul client: %w", err)
		}
		kv = client.KV()
	}
	return &ConsulSource{Key: key, Format: f, KV: kv}, nil
}

// Name implements [Source].
func (s *ConsulSource) Name() string { return "consul:" + s.Key }

// Load implements [Source].
func (s *ConsulSource) Load(ctx context.Context) (map[string]any, error) {
	pair, meta, err := s.KV.Get(s.Key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get consul key: %w", err)
	}
	if meta != nil {
		s.lastIndex.Store(meta.LastIndex)
	}
	if pair == nil {
		return map[string]any{}, nil
	}
	return decode(s.Format, pair.Value)
}

// LastIndex returns the Consul index seen by the last load.
func (s *ConsulSource) LastIndex() uint64 { return s.lastIndex.Load() }

// WithConsul appends the Consul KV entry at key, decoded by the key's
// extension ("services/orders.yaml").
func WithConsul(key string) Option {
	return func(c *Config) error {
		f, err := FormatOf(key)
		if err != nil {
			return newError("consul:"+key, "detect format", err)
		}
		s, err := NewConsulSource(key, f, nil)
		if err != nil {
			return newError("consul:"+key, "connect", err)
		}
		c.sources = append(c.sources, s)
		return nil
	}
}
