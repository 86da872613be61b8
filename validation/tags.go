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
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	rerrors "rivaas.dev/rest/errors"
)

func newTagValidator(tag string, custom map[string]validator.Func) (*validator.Validate, error) {
	tv := validator.New(validator.WithRequiredStructEnabled())
	tv.SetTagName(tag)

	// Report JSON names in paths.
	tv.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		default:
			return name
		}
	})

	for name, fn := range custom {
		if err := tv.RegisterValidation(name, fn); err != nil {
			return nil, fmt.Errorf("register custom tag %q: %w", name, err)
		}
	}
	return tv, nil
}

// validateTags validates structs (or pointers to structs) against tag.
// Other kinds have no tags and always pass.
func (v *Validator) validateTags(val any, tag string) ([]rerrors.FieldError, error) {
	rv := reflect.ValueOf(val)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, nil
	}

	tv, err := v.tagValidator(tag)
	if err != nil {
		return nil, err
	}

	err = tv.Struct(val)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	fields := make([]rerrors.FieldError, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, rerrors.FieldError{
			Path:    fieldPath(e.Namespace()),
			Code:    "tag." + e.Tag(),
			Message: tagMessage(e),
		})
	}
	return fields, nil
}

// fieldPath strips the root struct name from a validator namespace and
// turns index brackets into dotted segments: "Order.items[2].sku" becomes
// "items.2.sku".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	ns = strings.ReplaceAll(ns, "[", ".")
	return strings.ReplaceAll(ns, "]", "")
}

func tagMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", e.Param())
		}
		return fmt.Sprintf("must be at most %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", e.Param())
	default:
		return fmt.Sprintf("failed validation (%s)", e.Tag())
	}
}
