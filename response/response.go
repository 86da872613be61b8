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

package response

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Header names the pipeline writes explicitly.
const (
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderVary          = "Vary"
)

// Status is an HTTP status code with a presence flag.
// The zero value is unset, which is distinct from any explicit code.
type Status struct {
	code int
	set  bool
}

// StatusOf returns a Status explicitly set to code.
func StatusOf(code int) Status {
	return Status{code: code, set: true}
}

// Code returns the status code and whether it was explicitly set.
func (s Status) Code() (int, bool) {
	return s.code, s.set
}

// IsSet reports whether the status was explicitly set.
func (s Status) IsSet() bool {
	return s.set
}

// Response is an encoded HTTP response: status, headers and a body source.
//
// A Response is owned by a single request. Body sources are read once,
// forward only, and closed by [Response.Close].
type Response struct {
	status Status
	header http.Header
	body   io.Reader
	length int64
	closed bool
}

// New returns an empty response with no status, no headers and no body.
func New() *Response {
	return &Response{
		header: make(http.Header),
		length: -1,
	}
}

// WithStatus returns a bodyless response with the given status.
func WithStatus(code int) *Response {
	r := New()
	r.SetStatus(code)
	r.SetBodyBytes(nil)
	return r
}

// NoContent returns a bodyless 204 response.
func NoContent() *Response {
	return WithStatus(http.StatusNoContent)
}

// SetStatus explicitly sets the status code.
func (r *Response) SetStatus(code int) {
	r.status = StatusOf(code)
}

// Status returns the status code and whether it was explicitly set.
func (r *Response) Status() (int, bool) {
	return r.status.Code()
}

// StatusCode returns the status to write: the explicit one, or 200 when unset.
func (r *Response) StatusCode() int {
	if code, ok := r.status.Code(); ok {
		return code
	}
	return http.StatusOK
}

// Header returns the header map. Keys are canonicalized, so lookups are
// case-insensitive when done through [http.Header] methods.
func (r *Response) Header() http.Header {
	return r.header
}

// ContentType returns the Content-Type header value.
func (r *Response) ContentType() string {
	return r.header.Get(HeaderContentType)
}

// SetContentType sets the Content-Type header.
func (r *Response) SetContentType(mediaType string) {
	if mediaType == "" {
		r.header.Del(HeaderContentType)
		return
	}
	r.header.Set(HeaderContentType, mediaType)
}

// SetBodyBytes sets an in-memory body and its exact length.
func (r *Response) SetBodyBytes(b []byte) {
	r.body = bytes.NewReader(b)
	r.length = int64(len(b))
}

// SetBody sets a streaming body source. Pass -1 when the length is unknown.
// If src implements [io.Closer] it is closed by [Response.Close].
func (r *Response) SetBody(src io.Reader, length int64) {
	r.body = src
	r.length = length
}

// Body returns the body source, which may be nil for a bodyless response.
func (r *Response) Body() io.Reader {
	return r.body
}

// ContentLength returns the body length, or -1 when it is not known.
func (r *Response) ContentLength() int64 {
	if r.body == nil {
		return 0
	}
	return r.length
}

// ContentLengthHeader returns the Content-Length value to write, if known.
func (r *Response) ContentLengthHeader() (string, bool) {
	n := r.ContentLength()
	if n < 0 {
		return "", false
	}
	return strconv.FormatInt(n, 10), true
}

// Close releases the body source. It is safe to call more than once.
func (r *Response) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if c, ok := r.body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// AddVary adds value to the Vary header of h unless it is already listed,
// compared case-insensitively.
func AddVary(h http.Header, value string) {
	for _, line := range h.Values(HeaderVary) {
		for item := range strings.SplitSeq(line, ",") {
			if strings.EqualFold(strings.TrimSpace(item), value) {
				return
			}
		}
	}
	h.Add(HeaderVary, value)
}
