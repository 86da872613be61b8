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

// Package toml provides a TOML converter using github.com/BurntSushi/toml.
package toml

import (
	"bytes"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"

	"rivaas.dev/rest/converter"
	"rivaas.dev/rest/response"
)

// MediaType is the TOML media type.
const MediaType = "application/toml"

// Converter converts "application/toml" bodies. A nil target decodes into
// map[string]any. [converter.WithStrict] rejects keys the target does not
// declare.
type Converter struct {
	settings converter.Settings
}

// New creates a TOML converter.
func New(opts ...converter.Option) *Converter {
	return &Converter{settings: converter.NewSettings(opts...)}
}

// Supports implements [converter.Converter].
func (c *Converter) Supports(mediaType string) bool {
	return converter.Matches(mediaType, MediaType, "+toml")
}

// Read implements [converter.Converter].
func (c *Converter) Read(r *http.Request, target reflect.Type) (any, error) {
	if err := converter.CheckCharset(r.Header.Get(response.HeaderContentType)); err != nil {
		return nil, err
	}
	body, err := c.settings.ReadBody(r)
	if err != nil {
		return nil, err
	}

	if target == nil {
		target = reflect.TypeFor[map[string]any]()
	}
	dst, result := converter.Allocate(target)
	meta, err := toml.Decode(string(body), dst)
	if err != nil {
		return nil, converter.DecodeError(MediaType, err)
	}
	if c.settings.Strict {
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, converter.DecodeError(MediaType,
				fmt.Errorf("unknown keys: %s", strings.Join(keys, ", ")))
		}
	}
	return result(), nil
}

// Write implements [converter.Converter]. v must be a struct or a map.
func (c *Converter) Write(v any, mediaType string) (*response.Response, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return converter.Encoded(mediaType, buf.Bytes()), nil
}
