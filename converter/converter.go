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
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/response"
)

// DefaultMaxBodyBytes is the request body limit applied when
// [WithMaxBodyBytes] is not used.
const DefaultMaxBodyBytes int64 = 10 << 20

// Converter encodes and decodes one wire format.
//
// Implementations must be safe for concurrent use.
type Converter interface {
	// Supports reports whether the converter handles mediaType.
	Supports(mediaType string) bool

	// Read decodes the request body. A nil target decodes into a generic
	// value; a pointer type yields a new pointer; any other type yields a
	// value of that type.
	Read(r *http.Request, target reflect.Type) (any, error)

	// Write encodes v into a response whose Content-Type is mediaType.
	Write(v any, mediaType string) (*response.Response, error)
}

// Option configures a converter.
type Option func(*Settings)

// Settings holds the options shared by every converter, including the
// ones in subpackages.
type Settings struct {
	// MaxBodyBytes caps the number of request body bytes read.
	MaxBodyBytes int64

	// Strict rejects unknown fields where the format supports it.
	Strict bool
}

// WithMaxBodyBytes limits how many request body bytes a converter reads.
// Non-positive values keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Settings) {
		if n > 0 {
			s.MaxBodyBytes = n
		}
	}
}

// WithStrict rejects unknown fields where the wire format supports it.
func WithStrict() Option {
	return func(s *Settings) {
		s.Strict = true
	}
}

// NewSettings applies opts over the defaults.
func NewSettings(opts ...Option) Settings {
	s := Settings{MaxBodyBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// ReadBody reads the whole request body within the configured limit.
// A missing body reads as empty.
func (s Settings) ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, s.MaxBodyBytes))
	if err != nil {
		return nil, BodyError(err)
	}
	return data, nil
}

// BodyError maps a failure reading the request body to an application
// error. Oversized bodies report 413.
func BodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return rerrors.WithStatus(
			rerrors.WrapApplicationError("request body too large", err).WithCode("body_too_large"),
			http.StatusRequestEntityTooLarge,
		)
	}
	return rerrors.WrapApplicationError("reading request body", err).WithCode("bad_body")
}

// DecodeError marks a decoding failure as a recoverable application error.
func DecodeError(mediaType string, err error) error {
	return rerrors.WrapApplicationError(fmt.Sprintf("malformed %s body", BaseType(mediaType)), err).
		WithCode("bad_format")
}

// Allocate returns a destination to decode into for target and a function
// returning the decoded value in the shape target asks for.
func Allocate(target reflect.Type) (dst any, result func() any) {
	switch {
	case target == nil:
		var v any
		return &v, func() any { return v }
	case target.Kind() == reflect.Pointer:
		p := reflect.New(target.Elem())
		return p.Interface(), func() any { return p.Interface() }
	default:
		p := reflect.New(target)
		return p.Interface(), func() any { return p.Elem().Interface() }
	}
}

// Encoded wraps data in a response with the given Content-Type.
func Encoded(mediaType string, data []byte) *response.Response {
	r := response.New()
	r.SetContentType(mediaType)
	r.SetBodyBytes(data)
	return r
}

// CheckCharset rejects a charset parameter other than UTF-8 (or its ASCII
// subset) on a request Content-Type.
func CheckCharset(contentType string) error {
	if contentType == "" {
		return nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	charset, ok := params["charset"]
	if !ok {
		return nil
	}
	switch strings.ToLower(charset) {
	case "utf-8", "utf8", "us-ascii":
		return nil
	default:
		return rerrors.NewApplicationError(fmt.Sprintf("unsupported charset %q", charset)).
			WithCode("bad_charset")
	}
}

// BaseType returns the lower-cased type/subtype of mediaType with any
// parameters removed.
func BaseType(mediaType string) string {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// Matches reports whether mediaType matches one of candidates. Comparison
// ignores case and parameters. A candidate of the form "type/*" matches any
// subtype, and one of the form "+suffix" matches a structured syntax suffix
// such as "application/problem+json".
func Matches(mediaType string, candidates ...string) bool {
	base := BaseType(mediaType)
	if base == "" {
		return false
	}
	for _, c := range candidates {
		c = BaseType(c)
		switch {
		case c == base:
			return true
		case strings.HasPrefix(c, "+"):
			if strings.HasSuffix(base, c) {
				return true
			}
		case strings.HasSuffix(c, "/*"):
			if strings.HasPrefix(base, c[:len(c)-1]) {
				return true
			}
		}
	}
	return false
}
