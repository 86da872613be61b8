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
	"errors"
	"fmt"
	"strings"

	"rivaas.dev/rest/converter"
	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/response"
)

var errNoMethod = errors.New("no resource method bound to the request")

// ContentNegotiator decodes the request body for the bound method, calls
// the invoker and encodes its result.
//
// Decoding: a present Content-Type must contain the declared consumes type
// as a case-insensitive substring ("application/json; charset=utf-8"
// matches "application/json"); an absent Content-Type requires an absent
// consumes type. The body is read only when consumes is declared.
//
// Encoding picks the effective produces type from either an
// [response.Entity]'s own Content-Type or the declared produces type;
// having both is a [rerrors.ConfigurationConflictError]. Without a
// produces type, nil becomes 204, an entity without a payload becomes a
// bodyless response carrying its metadata, and a [*response.Response]
// passes through.
type ContentNegotiator struct {
	Registry *converter.Registry
	Invoker  Invoker
}

// Handle implements [Handler].
func (n *ContentNegotiator) Handle(x *Exchange) (*response.Response, error) {
	if err := n.decode(x); err != nil {
		return nil, err
	}
	result, err := n.Invoker.Invoke(x)
	if err != nil {
		return nil, err
	}
	return n.encode(x, result)
}

// ConsumesMatches reports whether a request Content-Type satisfies a
// declared consumes type.
func ConsumesMatches(contentType, consumes string) bool {
	if contentType == "" {
		return consumes == ""
	}
	return consumes != "" && strings.Contains(strings.ToLower(contentType), strings.ToLower(consumes))
}

func (n *ContentNegotiator) decode(x *Exchange) error {
	desc := x.Context.Descriptor()
	if desc == nil {
		return rerrors.NewInternalError("decode", errNoMethod)
	}
	contentType := x.Request.Header.Get(response.HeaderContentType)
	consumes := desc.Consumes()

	if !ConsumesMatches(contentType, consumes) {
		x.Logger.Info("unsupported media type",
			"method", desc.Path(),
			"http_method", x.Request.Method,
			"uri", x.Request.URL.RequestURI(),
			"content_type", contentType,
			"consumes", consumes,
		)
		return &rerrors.UnsupportedMediaTypeError{
			Method:      desc.Path(),
			ContentType: contentType,
			Consumes:    consumes,
		}
	}
	if consumes == "" {
		return nil
	}

	// The converter is chosen by the declared type; the header only has to
	// contain it.
	c, err := n.Registry.Find(consumes)
	if err != nil {
		var unsupported *rerrors.UnsupportedMediaTypeError
		if errors.As(err, &unsupported) {
			unsupported.Method = desc.Path()
			unsupported.Consumes = consumes
		}
		return err
	}
	body, err := c.Read(x.Request, desc.BodyType())
	if err != nil {
		return err
	}
	return x.Context.SetBody(body)
}

func (n *ContentNegotiator) encode(x *Exchange, result any) (*response.Response, error) {
	desc := x.Context.Descriptor()
	produces := desc.Produces()

	entity, isEntity := result.(*response.Entity)
	if isEntity && entity == nil {
		isEntity = false
		result = nil
	}

	if isEntity && entity.HasContentType() && produces != "" {
		return nil, &rerrors.ConfigurationConflictError{
			Method: desc.Path(),
			Reason: fmt.Sprintf("result sets Content-Type %q and the method declares produces %q", entity.ContentType(), produces),
		}
	}

	effective := produces
	if isEntity && entity.HasContentType() {
		effective = entity.ContentType()
	}

	if effective != "" {
		payload := result
		if isEntity {
			payload = entity.Value
		}
		c, err := n.Registry.Find(effective)
		if err != nil {
			return nil, err
		}
		resp, err := c.Write(payload, effective)
		if err != nil {
			return nil, err
		}
		if isEntity {
			entity.MergeInto(resp)
		}
		return resp, nil
	}

	if isEntity && entity.Value == nil {
		resp := response.NoContent()
		entity.MergeInto(resp)
		return resp, nil
	}

	switch v := result.(type) {
	case nil:
		return response.NoContent(), nil
	case *response.Response:
		if v == nil {
			return response.NoContent(), nil
		}
		return v, nil
	default:
		return nil, &rerrors.ConfigurationConflictError{
			Method: desc.Path(),
			Reason: fmt.Sprintf("result of type %T needs a produces media type or must be a *response.Response", result),
		}
	}
}
