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
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"

	"rivaas.dev/rest/response"
)

// MediaTypeForm is the URL-encoded form media type.
const MediaTypeForm = "application/x-www-form-urlencoded"

// TagForm is the struct tag naming form fields.
const TagForm = "form"

var (
	valuesType   = reflect.TypeFor[url.Values]()
	durationType = reflect.TypeFor[time.Duration]()
)

// Form converts "application/x-www-form-urlencoded" bodies.
//
// Read yields [url.Values] for a nil target, or fills a struct using
// "form" tags (the field name when untagged, "-" to skip):
//
//	type Search struct {
//	    Query string   `form:"q"`
//	    Page  int      `form:"page"`
//	    Tags  []string `form:"tag"`
//	}
//
// Write accepts [url.Values], map[string]string, map[string][]string or a
// tagged struct. With [WithStrict], unknown keys fail decoding.
type Form struct {
	settings Settings
}

// NewForm creates a form converter.
func NewForm(opts ...Option) *Form {
	return &Form{settings: NewSettings(opts...)}
}

// Supports implements [Converter].
func (c *Form) Supports(mediaType string) bool {
	return Matches(mediaType, MediaTypeForm)
}

// Read implements [Converter].
func (c *Form) Read(r *http.Request, target reflect.Type) (any, error) {
	if err := CheckCharset(r.Header.Get(response.HeaderContentType)); err != nil {
		return nil, err
	}
	body, err := c.settings.ReadBody(r)
	if err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, DecodeError(MediaTypeForm, err)
	}

	if target == nil || target == valuesType {
		return values, nil
	}
	if target.Kind() == reflect.Pointer && target.Elem() == valuesType {
		return &values, nil
	}

	base := target
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct {
		return nil, DecodeError(MediaTypeForm, fmt.Errorf("cannot decode form into %s", target))
	}

	dst, result := Allocate(target)
	if err := decodeForm(values, reflect.ValueOf(dst).Elem(), c.settings.Strict); err != nil {
		return nil, DecodeError(MediaTypeForm, err)
	}
	return result(), nil
}

// Write implements [Converter].
func (c *Form) Write(v any, mediaType string) (*response.Response, error) {
	values, err := encodeForm(v)
	if err != nil {
		return nil, err
	}
	return Encoded(mediaType, []byte(values.Encode())), nil
}

func formName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	name, _, _ := strings.Cut(f.Tag.Get(TagForm), ",")
	switch name {
	case "-":
		return "", false
	case "":
		return f.Name, true
	default:
		return name, true
	}
}

func decodeForm(values url.Values, v reflect.Value, strict bool) error {
	t := v.Type()
	known := make(map[string]struct{}, t.NumField())
	for i := range t.NumField() {
		name, ok := formName(t.Field(i))
		if !ok {
			continue
		}
		known[name] = struct{}{}
		raw, present := values[name]
		if !present || len(raw) == 0 {
			continue
		}
		if err := setFormField(v.Field(i), raw); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	if strict {
		for key := range values {
			if _, ok := known[key]; !ok {
				return fmt.Errorf("unknown field %q", key)
			}
		}
	}
	return nil
}

func setFormField(field reflect.Value, raw []string) error {
	if field.Kind() == reflect.Pointer {
		p := reflect.New(field.Type().Elem())
		if err := setFormField(p.Elem(), raw); err != nil {
			return err
		}
		field.Set(p)
		return nil
	}
	if field.Kind() == reflect.Slice {
		s := reflect.MakeSlice(field.Type(), len(raw), len(raw))
		for i, item := range raw {
			if err := setScalar(s.Index(i), item); err != nil {
				return err
			}
		}
		field.Set(s)
		return nil
	}
	return setScalar(field, raw[0])
}

func setScalar(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := cast.ToDurationE(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return err
		}
		if field.OverflowInt(n) {
			return fmt.Errorf("value %s overflows %s", raw, field.Type())
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(raw)
		if err != nil {
			return err
		}
		if field.OverflowUint(n) {
			return fmt.Errorf("value %s overflows %s", raw, field.Type())
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

func encodeForm(v any) (url.Values, error) {
	switch x := v.(type) {
	case nil:
		return url.Values{}, nil
	case url.Values:
		return x, nil
	case *url.Values:
		return *x, nil
	case map[string][]string:
		return url.Values(x), nil
	case map[string]string:
		values := make(url.Values, len(x))
		for k, s := range x {
			values.Set(k, s)
		}
		return values, nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return url.Values{}, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot encode %T as form", v)
	}

	values := make(url.Values)
	t := rv.Type()
	for i := range t.NumField() {
		name, ok := formName(t.Field(i))
		if !ok {
			continue
		}
		field := rv.Field(i)
		if field.Kind() == reflect.Pointer {
			if field.IsNil() {
				continue
			}
			field = field.Elem()
		}
		if field.Kind() == reflect.Slice {
			for j := range field.Len() {
				s, err := cast.ToStringE(field.Index(j).Interface())
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", name, err)
				}
				values.Add(name, s)
			}
			continue
		}
		s, err := cast.ToStringE(field.Interface())
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		values.Set(name, s)
	}
	return values, nil
}
