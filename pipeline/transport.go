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

package pipeline

import (
	"net/http"
)

// Transport is where the finalizer writes a response. The status is set
// before any header, and is sent no later than the first body write or
// [Transport.Commit].
type Transport interface {
	SetStatus(code int)
	// SetHeader replaces all values of key.
	SetHeader(key string, values []string)
	Write(p []byte) (int, error)
	// Commit sends the status and headers if no body write did yet.
	Commit() error
}

// HTTPTransport adapts an [http.ResponseWriter]. Because net/http sends
// headers together with the status, the status is held back until the
// headers are complete.
type HTTPTransport struct {
	w         http.ResponseWriter
	status    int
	committed bool
}

// NewHTTPTransport wraps w.
func NewHTTPTransport(w http.ResponseWriter) *HTTPTransport {
	return &HTTPTransport{w: w, status: http.StatusOK}
}

// SetStatus implements [Transport]. It has no effect once committed.
func (t *HTTPTransport) SetStatus(code int) {
	if !t.committed {
		t.status = code
	}
}

// SetHeader implements [Transport]. Headers set after the status was
// sent are ignored by net/http.
func (t *HTTPTransport) SetHeader(key string, values []string) {
	t.w.Header()[http.CanonicalHeaderKey(key)] = values
}

// Write implements [Transport].
func (t *HTTPTransport) Write(p []byte) (int, error) {
	t.commit()
	return t.w.Write(p)
}

// Commit implements [Transport].
func (t *HTTPTransport) Commit() error {
	t.commit()
	return nil
}

// Status returns the status that was or will be sent.
func (t *HTTPTransport) Status() int { return t.status }

// Unwrap lets [http.ResponseController] reach the underlying writer.
func (t *HTTPTransport) Unwrap() http.ResponseWriter { return t.w }

func (t *HTTPTransport) commit() {
	if t.committed {
		return
	}
	t.committed = true
	t.w.WriteHeader(t.status)
}
