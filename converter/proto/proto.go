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

// Package proto provides a Protocol Buffers converter using
// google.golang.org/protobuf.
//
// Targets and results must implement [proto.Message]:
//
//	res.MustHandle("create", func(in *pb.CreateOrder) (*pb.Order, error) { ... },
//	    resource.Consumes(proto.MediaType), resource.Produces(proto.MediaType))
package proto

import (
	"fmt"
	"net/http"
	"reflect"

	"google.golang.org/protobuf/proto"

	"rivaas.dev/rest/converter"
	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/response"
)

// MediaType is the Protocol Buffers media type written by default.
const MediaType = "application/x-protobuf"

var messageType = reflect.TypeFor[proto.Message]()

// Converter converts binary Protocol Buffers bodies. Unknown fields are
// discarded unless [converter.WithStrict] is set, in which case they are
// kept on the message.
type Converter struct {
	settings converter.Settings
}

// New creates a Protocol Buffers converter.
func New(opts ...converter.Option) *Converter {
	return &Converter{settings: converter.NewSettings(opts...)}
}

// Supports implements [converter.Converter].
func (c *Converter) Supports(mediaType string) bool {
	return converter.Matches(mediaType, MediaType, "application/protobuf", "application/vnd.google.protobuf")
}

// Read implements [converter.Converter]. target must be a pointer type
// implementing [proto.Message]; generic decoding is not possible.
func (c *Converter) Read(r *http.Request, target reflect.Type) (any, error) {
	if target == nil || target.Kind() != reflect.Pointer || !target.Implements(messageType) {
		return nil, &rerrors.UnsupportedOperationError{
			Op:        fmt.Sprintf("decoding into %v", target),
			MediaType: MediaType,
		}
	}
	body, err := c.settings.ReadBody(r)
	if err != nil {
		return nil, err
	}

	msg, _ := reflect.New(target.Elem()).Interface().(proto.Message)
	opts := proto.UnmarshalOptions{DiscardUnknown: !c.settings.Strict}
	if err := opts.Unmarshal(body, msg); err != nil {
		return nil, converter.DecodeError(MediaType, err)
	}
	return msg, nil
}

// Write implements [converter.Converter].
func (c *Converter) Write(v any, mediaType string) (*response.Response, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, &rerrors.UnsupportedOperationError{
			Op:        fmt.Sprintf("encoding %T", v),
			MediaType: mediaType,
		}
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return converter.Encoded(mediaType, data), nil
}
