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
	"net/http"
	"reflect"

	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/response"
)

// DefaultMultipartMemory is the part of a multipart body kept in memory;
// the rest spills to temporary files.
const DefaultMultipartMemory int64 = 32 << 20

// Multipart accepts every "multipart/*" request and hands the parsed
// [*multipart.Form] to the resource method, which takes over the parts.
// It never writes responses.
type Multipart struct {
	settings Settings
}

// NewMultipart creates a multipart converter.
func NewMultipart(opts ...Option) *Multipart {
	return &Multipart{settings: NewSettings(opts...)}
}

// Supports implements [Converter].
func (c *Multipart) Supports(mediaType string) bool {
	return Matches(mediaType, "multipart/*")
}

// Read implements [Converter]. The target type is ignored.
func (c *Multipart) Read(r *http.Request, _ reflect.Type) (any, error) {
	if r.Body != nil && r.Body != http.NoBody {
		r.Body = http.MaxBytesReader(nil, r.Body, c.settings.MaxBodyBytes)
	}
	if err := r.ParseMultipartForm(min(DefaultMultipartMemory, c.settings.MaxBodyBytes)); err != nil {
		return nil, BodyError(err)
	}
	return r.MultipartForm, nil
}

// Write implements [Converter] and always fails with
// [rerrors.UnsupportedOperationError].
func (c *Multipart) Write(_ any, mediaType string) (*response.Response, error) {
	return nil, &rerrors.UnsupportedOperationError{Op: "write", MediaType: mediaType}
}
