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

package accesslog

import (
	"crypto/sha256"
	"encoding/binary"
	"net"
	"net/http"
	"strings"
	"time"

	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/pipeline"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

// Finisher is a [pipeline.Finisher] writing access log entries.
type Finisher struct {
	logger          *logging.Logger
	excludePaths    map[string]bool
	excludePrefixes []string
	sampleRate      float64
	errorsOnly      bool
	slowThreshold   time.Duration
}

var _ pipeline.Finisher = (*Finisher)(nil)

// New creates an access log finisher.
func New(opts ...Option) *Finisher {
	f := &Finisher{
		excludePaths: make(map[string]bool),
		sampleRate:   1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Finish implements [pipeline.Finisher].
func (f *Finisher) Finish(req *http.Request, resp *response.Response, rc *resource.RequestContext) {
	if f.logger == nil || f.excluded(req.URL.Path) {
		return
	}

	duration := rc.Elapsed()
	status := resp.StatusCode()
	isError := status >= http.StatusBadRequest
	isSlow := f.slowThreshold > 0 && duration >= f.slowThreshold
	if !isError && !isSlow {
		if f.errorsOnly || (f.sampleRate < 1 && !sampleByHash(rc.RequestID(), f.sampleRate)) {
			return
		}
	}

	fields := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"bytes_sent", max(resp.ContentLength(), 0),
		"client_ip", clientIP(req),
		"user_agent", req.UserAgent(),
		"host", req.Host,
		"proto", req.Proto,
		"outcome", pipeline.OutcomeOf(rc.Err()).String(),
	}
	if d := rc.Descriptor(); d != nil {
		fields = append(fields, "resource", d.Path())
	}
	if isSlow {
		fields = append(fields, "slow", true)
	}

	log := logging.NewContextLogger(req.Context(), f.logger).WithRequestID(rc.RequestID())
	switch {
	case status >= http.StatusInternalServerError:
		log.Error("access", fields...)
	case isError, isSlow:
		log.Warn("access", fields...)
	default:
		log.Info("access", fields...)
	}
}

func (f *Finisher) excluded(path string) bool {
	if f.excludePaths[path] {
		return true
	}
	for _, prefix := range f.excludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// sampleByHash maps id onto [0, 2^64) and keeps it when it falls under
// rate. An empty id is always kept; rate 1 keeps everything and rate 0
// nothing.
func sampleByHash(id string, rate float64) bool {
	switch {
	case id == "" || rate >= 1:
		return true
	case rate <= 0:
		return false
	}
	h := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint64(h[:8]) <= uint64(rate*float64(^uint64(0)))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
