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
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rivaas.dev/rest/pipeline"
	"rivaas.dev/rest/response"
)

// Header names.
const (
	HeaderRetryAfter = "Retry-After"
	HeaderLimit      = "X-RateLimit-Limit"
)

// Defaults of [Limiter].
const (
	DefaultRequestsPerSecond = 100
	DefaultIdleTTL           = 10 * time.Minute
)

// KeyFunc returns the bucket key of a request.
type KeyFunc func(r *http.Request) string

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key. It is safe for concurrent use.
type Limiter struct {
	rps     float64
	burst   int
	keyFunc KeyFunc
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lastGC  time.Time
}

// Option configures a [Limiter].
type Option func(*Limiter)

// WithRequestsPerSecond sets the refill rate. Default: 100.
func WithRequestsPerSecond(rps float64) Option {
	return func(l *Limiter) { l.rps = rps }
}

// WithBurst sets the bucket size. Default: the requests per second,
// rounded up.
func WithBurst(n int) Option {
	return func(l *Limiter) { l.burst = n }
}

// WithKeyFunc sets how requests are grouped. Default: [RemoteIP].
func WithKeyFunc(fn KeyFunc) Option {
	return func(l *Limiter) { l.keyFunc = fn }
}

// WithIdleTTL sets how long an unused bucket is kept. Default: 10m.
func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) { l.idleTTL = d }
}

// New creates a Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		rps:     DefaultRequestsPerSecond,
		keyFunc: RemoteIP,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.burst <= 0 {
		l.burst = max(1, int(math.Ceil(l.rps)))
	}
	return l
}

// Allow reports whether the request may proceed now, and otherwise how
// long the client should wait.
func (l *Limiter) Allow(r *http.Request) (bool, time.Duration) {
	now := l.now()
	b := l.bucket(l.keyFunc(r), now)
	res := b.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Stage returns the pipeline stage enforcing the limit.
func (l *Limiter) Stage() pipeline.Stage {
	limit := strconv.FormatFloat(l.rps, 'f', -1, 64)
	return pipeline.StageFunc(func(x *pipeline.Exchange, next pipeline.Handler) (*response.Response, error) {
		ok, wait := l.Allow(x.Request)
		if ok {
			return next.Handle(x)
		}
		x.Logger.Info("rate limit exceeded",
			"key", l.keyFunc(x.Request),
			"retry_after", wait,
		)
		resp := response.WithStatus(http.StatusTooManyRequests)
		resp.Header().Set(HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		resp.Header().Set(HeaderLimit, limit)
		return resp, nil
	})
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) bucket(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) >= l.idleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastGC = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// RemoteIP keys requests by the host part of RemoteAddr.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
