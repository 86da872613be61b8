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

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/rest/pipeline"
	"rivaas.dev/rest/response"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLimiter(clock *fakeClock, opts ...Option) *Limiter {
	l := New(opts...)
	l.now = clock.Now
	return l
}

func fromIP(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":4242"
	return req
}

func TestAllow_Burst(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newLimiter(clock, WithRequestsPerSecond(5), WithBurst(5))

	for i := range 5 {
		ok, _ := l.Allow(fromIP("10.0.0.1"))
		assert.True(t, ok, "request %d", i+1)
	}
	ok, wait := l.Allow(fromIP("10.0.0.1"))
	assert.False(t, ok)
	assert.Equal(t, 200*time.Millisecond, wait)

	ok, _ = l.Allow(fromIP("10.0.0.2"))
	assert.True(t, ok, "other clients have their own bucket")

	clock.Advance(200 * time.Millisecond)
	ok, _ = l.Allow(fromIP("10.0.0.1"))
	assert.True(t, ok)
}

func TestKeyFunc(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newLimiter(clock, WithRequestsPerSecond(1), WithKeyFunc(func(r *http.Request) string {
		return r.Header.Get("X-User")
	}))

	a := fromIP("10.0.0.1")
	a.Header.Set("X-User", "ann")
	b := fromIP("10.0.0.1")
	b.Header.Set("X-User", "bob")

	okA, _ := l.Allow(a)
	okB, _ := l.Allow(b)
	assert.True(t, okA)
	assert.True(t, okB)
	okA, _ = l.Allow(a)
	assert.False(t, okA)
}

func TestIdleBucketsEvicted(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newLimiter(clock, WithIdleTTL(time.Minute))

	l.Allow(fromIP("10.0.0.1"))
	l.Allow(fromIP("10.0.0.2"))
	require.Equal(t, 2, l.Len())

	clock.Advance(2 * time.Minute)
	l.Allow(fromIP("10.0.0.3"))
	assert.Equal(t, 1, l.Len())
}

func TestStage(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := newLimiter(clock, WithRequestsPerSecond(0.5), WithBurst(1))
	p := pipeline.MustNew()
	calls := 0
	next := pipeline.HandlerFunc(func(*pipeline.Exchange) (*response.Response, error) {
		calls++
		return response.NoContent(), nil
	})

	resp, err := l.Stage().Handle(p.NewExchange(fromIP("10.0.0.1")), next)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	resp, err = l.Stage().Handle(p.NewExchange(fromIP("10.0.0.1")), next)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode())
	assert.Equal(t, "2", resp.Header().Get(HeaderRetryAfter))
	assert.Equal(t, "0.5", resp.Header().Get(HeaderLimit))
	assert.Equal(t, 1, calls)
}

func TestRemoteIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", RemoteIP(req))
	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", RemoteIP(req))
}
