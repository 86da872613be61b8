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

package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"

	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/pipeline"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/response"
)

// Content codings.
const (
	EncodingBrotli = "br"
	EncodingGzip   = "gzip"
)

// Header names.
const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
)

// Defaults of [Compressor].
const (
	DefaultBrotliLevel = 4
	DefaultMinSize     = 1024
)

// alwaysSkipped content types are streamed or already compressed.
var alwaysSkipped = []string{
	"text/event-stream",
	"application/grpc",
	"application/octet-stream",
	"application/zip",
	"image/",
	"video/",
	"audio/",
}

// Compressor is a [pipeline.Finisher] compressing response bodies.
// It is safe for concurrent use.
type Compressor struct {
	gzipLevel    int
	brotliLevel  int
	minSize      int64
	enableGzip   bool
	enableBrotli bool
	excluded     []string
	logger       *logging.Logger

	gzipPool   sync.Pool
	brotliPool sync.Pool
}

var _ pipeline.Finisher = (*Compressor)(nil)

// Option configures a [Compressor].
type Option func(*Compressor)

// WithGzipLevel sets the gzip level (gzip.HuffmanOnly to gzip.BestCompression).
// Default: gzip.DefaultCompression.
func WithGzipLevel(level int) Option {
	return func(c *Compressor) { c.gzipLevel = level }
}

// WithBrotliLevel sets the Brotli quality (0-11). Default: 4, which keeps
// CPU cost low for dynamic content.
func WithBrotliLevel(level int) Option {
	return func(c *Compressor) { c.brotliLevel = level }
}

// WithGzipDisabled turns gzip off.
func WithGzipDisabled() Option {
	return func(c *Compressor) { c.enableGzip = false }
}

// WithBrotliDisabled turns Brotli off.
func WithBrotliDisabled() Option {
	return func(c *Compressor) { c.enableBrotli = false }
}

// WithMinSize sets the smallest body, in bytes, worth compressing.
// Bodies of unknown length are always compressed. Default: 1024.
func WithMinSize(n int64) Option {
	return func(c *Compressor) { c.minSize = n }
}

// WithExcludeContentTypes skips responses whose Content-Type contains one
// of the given values.
func WithExcludeContentTypes(contentTypes ...string) Option {
	return func(c *Compressor) {
		for _, ct := range contentTypes {
			c.excluded = append(c.excluded, strings.ToLower(ct))
		}
	}
}

// WithLogger sets the logger for compression failures.
func WithLogger(l *logging.Logger) Option {
	return func(c *Compressor) { c.logger = l }
}

// New creates a Compressor.
//
// Example:
//
//	c := compress.New(
//	    compress.WithBrotliLevel(5),
//	    compress.WithExcludeContentTypes("application/x-protobuf"),
//	)
func New(opts ...Option) *Compressor {
	c := &Compressor{
		gzipLevel:    gzip.DefaultCompression,
		brotliLevel:  DefaultBrotliLevel,
		minSize:      DefaultMinSize,
		enableGzip:   true,
		enableBrotli: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	c.gzipPool.New = func() any {
		w, err := gzip.NewWriterLevel(io.Discard, c.gzipLevel)
		if err != nil {
			w = gzip.NewWriter(io.Discard)
		}
		return w
	}
	c.brotliPool.New = func() any {
		return brotli.NewWriterLevel(io.Discard, c.brotliLevel)
	}
	return c
}

// Finish implements [pipeline.Finisher].
func (c *Compressor) Finish(req *http.Request, resp *response.Response, rc *resource.RequestContext) {
	if !c.eligible(resp) {
		return
	}
	// The representation depends on Accept-Encoding even when we end up
	// not compressing.
	response.AddVary(resp.Header(), HeaderAcceptEncoding)

	encoding := c.choose(req.Header.Get(HeaderAcceptEncoding))
	if encoding == "" {
		return
	}

	src := resp.Body()
	raw, err := io.ReadAll(src)
	if err != nil {
		resp.SetBody(&failedBody{err: err, src: src}, -1)
		return
	}
	if int64(len(raw)) < c.minSize {
		resp.SetBody(&replacedBody{Reader: bytes.NewReader(raw), src: src}, int64(len(raw)))
		return
	}

	compressed, err := c.encode(encoding, raw)
	if err != nil {
		logging.NewContextLogger(req.Context(), c.logger).
			WithRequestID(rc.RequestID()).
			Warn("compressing response failed", "encoding", encoding, logging.ErrorAttr(err))
		resp.SetBody(&replacedBody{Reader: bytes.NewReader(raw), src: src}, int64(len(raw)))
		return
	}
	resp.Header().Set(HeaderContentEncoding, encoding)
	resp.SetBody(&replacedBody{Reader: bytes.NewReader(compressed), src: src}, int64(len(compressed)))
}

func (c *Compressor) eligible(resp *response.Response) bool {
	if resp.Body() == nil || resp.Header().Get(HeaderContentEncoding) != "" {
		return false
	}
	switch status := resp.StatusCode(); {
	case status < 200, status == http.StatusNoContent,
		status == http.StatusNotModified, status == http.StatusPartialContent:
		return false
	}
	if n := resp.ContentLength(); n >= 0 && n < c.minSize {
		return false
	}
	ct := strings.ToLower(resp.ContentType())
	for _, skip := range alwaysSkipped {
		if strings.Contains(ct, skip) {
			return false
		}
	}
	for _, skip := range c.excluded {
		if strings.Contains(ct, skip) {
			return false
		}
	}
	return true
}

// choose picks an encoding from an Accept-Encoding value using q-values.
// Brotli wins ties.
func (c *Compressor) choose(acceptEncoding string) string {
	if acceptEncoding == "" {
		return ""
	}
	q := qualities(acceptEncoding)
	br, gz := q.of(EncodingBrotli), q.of(EncodingGzip)
	switch {
	case c.enableBrotli && br > 0 && br >= gz:
		return EncodingBrotli
	case c.enableGzip && gz > 0:
		return EncodingGzip
	case c.enableBrotli && br > 0:
		return EncodingBrotli
	}
	return ""
}

func (c *Compressor) encode(encoding string, raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch encoding {
	case EncodingBrotli:
		w := c.brotliPool.Get().(*brotli.Writer)
		defer c.brotliPool.Put(w)
		w.Reset(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case EncodingGzip:
		w := c.gzipPool.Get().(*gzip.Writer)
		defer c.gzipPool.Put(w)
		w.Reset(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("compress: unknown encoding %q", encoding)
	}
	return buf.Bytes(), nil
}

// acceptQualities maps codings to q-values; "*" covers unlisted codings.
type acceptQualities map[string]float64

func qualities(header string) acceptQualities {
	q := make(acceptQualities)
	for part := range strings.SplitSeq(strings.ToLower(header), ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.TrimSpace(coding)
		if coding == "" {
			continue
		}
		value := 1.0
		for param := range strings.SplitSeq(params, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				value = f
			}
		}
		q[coding] = value
	}
	return q
}

func (q acceptQualities) of(coding string) float64 {
	if v, ok := q[coding]; ok {
		return v
	}
	if v, ok := q["*"]; ok {
		return v
	}
	return 0
}

// replacedBody serves new bytes and closes the original body.
type replacedBody struct {
	*bytes.Reader
	src io.Reader
}

func (b *replacedBody) Close() error { return closeSource(b.src) }

// failedBody reports a read error from the original body on first read.
type failedBody struct {
	err error
	src io.Reader
}

func (b *failedBody) Read([]byte) (int, error) { return 0, b.err }

func (b *failedBody) Close() error { return closeSource(b.src) }

func closeSource(src io.Reader) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
