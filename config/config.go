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

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/cast"
)

// ErrNilSource is returned by [WithSource] for a nil source.
var ErrNilSource = errors.New("config: source is nil")

// Validator is implemented by bound structs that check themselves.
type Validator interface {
	Validate() error
}

// Option configures a [Config].
type Option func(c *Config) error

// Config holds the merged configuration. It is safe for concurrent use;
// [Config.Load] replaces the values atomically.
type Config struct {
	sources    []Source
	binding    any
	tag        string
	schema     *jsonschema.Schema
	validators []func(map[string]any) error

	mu     sync.RWMutex
	values map[string]any
}

// WithSource appends a source.
func WithSource(s Source) Option {
	return func(c *Config) error {
		if s == nil {
			return ErrNilSource
		}
		c.sources = append(c.sources, s)
		return nil
	}
}

// WithFile appends a file source, decoded by extension. ${VAR} references
// in path are expanded.
func WithFile(path string) Option {
	return func(c *Config) error {
		path = os.ExpandEnv(path)
		f, err := FormatOf(path)
		if err != nil {
			return newError("file:"+path, "detect format", err)
		}
		c.sources = append(c.sources, &FileSource{Path: path, Format: f})
		return nil
	}
}

// WithOptionalFile is like [WithFile] but a missing file is not an error.
func WithOptionalFile(path string) Option {
	return func(c *Config) error {
		path = os.ExpandEnv(path)
		f, err := FormatOf(path)
		if err != nil {
			return newError("file:"+path, "detect format", err)
		}
		c.sources = append(c.sources, &FileSource{Path: path, Format: f, Optional: true})
		return nil
	}
}

// WithFileAs appends a file source decoded as f.
func WithFileAs(path string, f Format) Option {
	return WithSource(&FileSource{Path: os.ExpandEnv(path), Format: f})
}

// WithContent appends fixed content decoded as f.
func WithContent(data []byte, f Format) Option {
	return WithSource(&ContentSource{Data: bytes.Clone(data), Format: f})
}

// WithEnv appends the environment variables starting with prefix.
func WithEnv(prefix string) Option {
	return WithSource(&EnvSource{Prefix: prefix})
}

// WithDotEnv appends the variables of a .env file starting with prefix.
// A missing file is ignored.
func WithDotEnv(path, prefix string) Option {
	return WithSource(&DotEnvSource{Path: os.ExpandEnv(path), Prefix: prefix})
}

// WithBinding binds the merged values to target, a pointer to a struct,
// on every successful load.
func WithBinding(target any) Option {
	return func(c *Config) error {
		v := reflect.ValueOf(target)
		if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
			return newError("binding", "configure", fmt.Errorf("target must be a non-nil pointer to a struct, got %T", target))
		}
		c.binding = target
		return nil
	}
}

// WithTag sets the struct tag used for binding. Default: "config".
func WithTag(tag string) Option {
	return func(c *Config) error {
		c.tag = tag
		return nil
	}
}

// WithJSONSchema validates the merged values against schema before
// binding.
func WithJSONSchema(schema []byte) Option {
	return func(c *Config) error {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
		if err != nil {
			return newError("json-schema", "parse", err)
		}
		compiler := jsonschema.NewCompiler()
		if err = compiler.AddResource("config.json", doc); err != nil {
			return newError("json-schema", "add", err)
		}
		compiled, err := compiler.Compile("config.json")
		if err != nil {
			return newError("json-schema", "compile", err)
		}
		c.schema = compiled
		return nil
	}
}

// WithValidator adds a check on the merged values.
func WithValidator(fn func(map[string]any) error) Option {
	return func(c *Config) error {
		if fn != nil {
			c.validators = append(c.validators, fn)
		}
		return nil
	}
}

// New creates a Config. Sources are not read until [Config.Load].
func New(opts ...Option) (*Config, error) {
	c := &Config{tag: "config", values: map[string]any{}}
	var errs []error
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Config {
	c, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads every source, merges them, validates the result and binds it.
// On error the previous values and binding are kept.
//
// Errors:
//   - [*Error] naming the source or step that failed
//   - ctx.Err() when ctx is done between sources
func (c *Config) Load(ctx context.Context) error {
	merged := make(map[string]any)
	for _, s := range c.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		layer, err := s.Load(ctx)
		if err != nil {
			return newError(s.Name(), "load", err)
		}
		if err = mergo.Map(&merged, lowerKeys(layer), mergo.WithOverride); err != nil {
			return newError(s.Name(), "merge", err)
		}
	}

	if c.schema != nil {
		if err := c.schema.Validate(jsonValue(merged)); err != nil {
			return newError("json-schema", "validate", err)
		}
	}
	for i, fn := range c.validators {
		if err := fn(merged); err != nil {
			return newError(fmt.Sprintf("validator[%d]", i), "validate", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.binding != nil {
		if err := c.bind(merged); err != nil {
			return newError("binding", "bind", err)
		}
	}
	c.values = merged
	return nil
}

// MustLoad is like [Config.Load] but panics on error.
func (c *Config) MustLoad(ctx context.Context) {
	if err := c.Load(ctx); err != nil {
		panic(err)
	}
}

// bind decodes values into a fresh copy of the binding, so a failed
// decode or validation leaves the caller's struct untouched.
func (c *Config) bind(values map[string]any) error {
	target := reflect.ValueOf(c.binding).Elem()
	fresh := reflect.New(target.Type())
	if err := applyDefaults(fresh.Elem()); err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          c.tag,
		Result:           fresh.Interface(),
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.DecodeHookFuncType(stringToListHook),
		),
	})
	if err != nil {
		return err
	}
	if err = dec.Decode(values); err != nil {
		return err
	}
	if v, ok := fresh.Interface().(Validator); ok {
		if err = v.Validate(); err != nil {
			return err
		}
	}
	target.Set(fresh.Elem())
	return nil
}

// Values returns a copy of the top level of the merged values.
func (c *Config) Values() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Get returns the value at a dotted, case-insensitive key, or nil.
func (c *Config) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var cur any = c.values
	for part := range strings.SplitSeq(strings.ToLower(key), ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[part]; !ok {
			return nil
		}
	}
	return cur
}

// Has reports whether key is set.
func (c *Config) Has(key string) bool { return c.Get(key) != nil }

// String returns key as a string.
func (c *Config) String(key string) string { return cast.ToString(c.Get(key)) }

// Int returns key as an int.
func (c *Config) Int(key string) int { return cast.ToInt(c.Get(key)) }

// Bool returns key as a bool.
func (c *Config) Bool(key string) bool { return cast.ToBool(c.Get(key)) }

// Duration returns key as a duration. Strings use time.ParseDuration.
func (c *Config) Duration(key string) time.Duration { return cast.ToDuration(c.Get(key)) }

// StringSlice returns key as a string slice. A string is split on commas.
func (c *Config) StringSlice(key string) []string {
	if s, ok := c.Get(key).(string); ok {
		return splitList(s)
	}
	return cast.ToStringSlice(c.Get(key))
}

// StringOr returns key as a string, or def when unset or not convertible.
func (c *Config) StringOr(key, def string) string {
	if v, err := cast.ToStringE(c.Get(key)); err == nil && c.Has(key) {
		return v
	}
	return def
}

// IntOr returns key as an int, or def when unset or not convertible.
func (c *Config) IntOr(key string, def int) int {
	if v, err := cast.ToIntE(c.Get(key)); err == nil && c.Has(key) {
		return v
	}
	return def
}

// DurationOr returns key as a duration, or def when unset or not
// convertible.
func (c *Config) DurationOr(key string, def time.Duration) time.Duration {
	if v, err := cast.ToDurationE(c.Get(key)); err == nil && c.Has(key) {
		return v
	}
	return def
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = lowerKeys(nested)
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

// jsonValue round-trips v through encoding/json so the schema validator
// sees only JSON types, whatever decoder produced v.
func jsonValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	out, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return v
	}
	return out
}

// stringToListHook splits comma-separated strings into string slices,
// trimming blanks.
func stringToListHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	return splitList(data.(string)), nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// applyDefaults sets fields carrying a "default" tag, recursing into
// nested structs.
func applyDefaults(v reflect.Value) error {
	t := v.Type()
	for i := range t.NumField() {
		field, sf := v.Field(i), t.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct && sf.Type != reflect.TypeFor[time.Time]() {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}
		def, ok := sf.Tag.Lookup("default")
		if !ok {
			continue
		}
		if err := setDefault(field, def); err != nil {
			return fmt.Errorf("default of %s: %w", sf.Name, err)
		}
	}
	return nil
}

func setDefault(field reflect.Value, def string) error {
	if field.Type() == reflect.TypeFor[time.Duration]() {
		d, err := time.ParseDuration(def)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(def)
	case reflect.Bool:
		b, err := cast.ToBoolE(def)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(def)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(def)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(def)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		field.Set(reflect.ValueOf(splitList(def)).Convert(field.Type()))
	default:
		return fmt.Errorf("unsupported type %s", field.Type())
	}
	return nil
}
