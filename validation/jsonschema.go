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

package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	rerrors "rivaas.dev/rest/errors"
)

// JSONSchemaProvider is implemented by types that carry their own JSON
// Schema. Schemas with a non-empty id are compiled once and cached.
//
// Example:
//
//	func (CreateOrder) JSONSchema() (id, schema string) {
//	    return "create-order-v1", `{
//	        "type": "object",
//	        "properties": {"quantity": {"type": "integer", "minimum": 1}},
//	        "required": ["quantity"]
//	    }`
//	}
type JSONSchemaProvider interface {
	JSONSchema() (id string, schema string)
}

func (v *Validator) validateSchema(val any) ([]rerrors.FieldError, error) {
	provider, ok := val.(JSONSchemaProvider)
	if !ok {
		return nil, nil
	}
	id, doc := provider.JSONSchema()
	if doc == "" {
		return nil, nil
	}

	schema, err := v.schema(id, doc)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("validation: marshal value for schema: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("validation: decode value for schema: %w", err)
	}

	err = schema.Validate(instance)
	if err == nil {
		return nil, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}
	var fields []rerrors.FieldError
	collectSchemaErrors(verr, &fields)
	return fields, nil
}

// schema returns the compiled schema for id, compiling it once. Schemas
// without an id are compiled on every call.
func (v *Validator) schema(id, doc string) (*jsonschema.Schema, error) {
	if id == "" {
		return compileSchema("schema.json", doc)
	}
	if s, ok := (*v.schemas.Load())[id]; ok {
		return s, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	m := v.schemas.Load()
	if s, ok := (*m)[id]; ok {
		return s, nil
	}
	s, err := compileSchema(id, doc)
	if err != nil {
		return nil, err
	}
	next := make(map[string]*jsonschema.Schema, len(*m)+1)
	maps.Copy(next, *m)
	next[id] = s
	v.schemas.Store(&next)
	return s, nil
}

func compileSchema(url, doc string) (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation: invalid schema JSON: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("validation: add schema %q: %w", url, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("validation: compile schema %q: %w", url, err)
	}
	return s, nil
}

// collectSchemaErrors flattens the leaves of a validation error tree.
func collectSchemaErrors(verr *jsonschema.ValidationError, fields *[]rerrors.FieldError) {
	if len(verr.Causes) == 0 {
		*fields = append(*fields, rerrors.FieldError{
			Path:    strings.Join(verr.InstanceLocation, "."),
			Code:    "schema." + schemaKeyword(verr),
			Message: schemaMessage(verr),
		})
		return
	}
	for _, cause := range verr.Causes {
		collectSchemaErrors(cause, fields)
	}
}

var printer = message.NewPrinter(language.English)

func schemaMessage(verr *jsonschema.ValidationError) string {
	if verr.ErrorKind == nil {
		return "is invalid"
	}
	return verr.ErrorKind.LocalizedString(printer)
}

func schemaKeyword(verr *jsonschema.ValidationError) string {
	if verr.ErrorKind == nil {
		return "invalid"
	}
	path := verr.ErrorKind.KeywordPath()
	if len(path) == 0 {
		return "invalid"
	}
	return path[len(path)-1]
}
