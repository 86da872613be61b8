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
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"

	"rivaas.dev/rest/response"
)

// MediaTypeJSON is the JSON media type.
const MediaTypeJSON = "application/json"

// JSON converts "application/json" and "+json" media types.
type JSON struct {
	settings Settings
}

// NewJSON creates a JSON converter. [WithStrict] disallows unknown fields.
func NewJSON(opts ...Option) *JSON {
	return &JSON{settings: NewSettings(opts...)}
}

// Supports implements [Converter].
func (c *JSON) Supports(mediaType string) bool {
	return Matches(mediaType, MediaTypeJSON, "+json")
}

// Read implements [Converter].
func (c *JSON) Read(r *http.Request, target reflect.Type) (any, error) {
	contentType := r.Header.Get(response.HeaderContentType)
	if err := CheckCharset(contentType); err != nil {
		return nil, err
	}
	body, err := c.settings.ReadBody(r)
	if err != nil {
		return nil, err
	}

	dst, result := Allocate(target)
	dec := json.NewDecoder(bytes.NewReader(body))
	if c.settings.Strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, DecodeError(MediaTypeJSON, err)
	}
	if dec.More() {
		return nil, DecodeError(MediaTypeJSON, errors.New("trailing data after JSON value"))
	}
	return result(), nil
}

// Write implements [Converter].
func (c *JSON) Write(v any, mediaType string) (*response.Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Encoded(mediaType, data), nil
}
