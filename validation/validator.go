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
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v6"

	rerrors "rivaas.dev/rest/errors"
)

// Default is the group validated when none is given.
const Default = "Default"

// ErrInvalidOption is returned by [New] for invalid configuration.
var ErrInvalidOption = errors.New("validation: invalid option")

// Option configures a [Validator].
type Option func(*config)

type config struct {
	maxErrors  int
	customTags map[string]validator.Func
}

// WithMaxErrors caps the number of field errors reported. Zero means no cap.
func WithMaxErrors(n int) Option {
	return func(c *config) {
		c.maxErrors = n
	}
}

// WithCustomTag registers a custom tag for every group.
//
// Example:
//
//	validation.WithCustomTag("sku", func(fl validator.FieldLevel) bool {
//	    return skuPattern.MatchString(fl.Field().String())
//	})
func WithCustomTag(name string, fn validator.Func) Option {
	return func(c *config) {
		if c.customTags == nil {
			c.customTags = make(map[string]validator.Func)
		}
		c.customTags[name] = fn
	}
}

// Validator validates values against struct tags, JSON Schemas and
// validation methods. It is safe for concurrent use.
type Validator struct {
	cfg *config

	// RCU caches: lock-free reads, insert-once under mu.
	tags    atomic.Pointer[map[string]*validator.Validate]
	schemas atomic.Pointer[map[string]*jsonschema.Schema]
	mu      sync.Mutex
}

// New creates a Validator.
//
// Errors:
//   - [ErrInvalidOption]: negative max errors or an unnamed custom tag
func New(opts ...Option) (*Validator, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxErrors < 0 {
		return nil, fmt.Errorf("%w: max errors must not be negative, got %d", ErrInvalidOption, cfg.maxErrors)
	}
	for name, fn := range cfg.customTags {
		if name == "" || fn == nil {
			return nil, fmt.Errorf("%w: custom tag needs a name and a function", ErrInvalidOption)
		}
	}

	v := &Validator{cfg: cfg}
	tags := make(map[string]*validator.Validate)
	v.tags.Store(&tags)
	schemas := make(map[string]*jsonschema.Schema)
	v.schemas.Store(&schemas)

	// Build the default group eagerly so tag registration errors surface here.
	if _, err := v.tagValidator(TagName(Default)); err != nil {
		return nil, err
	}
	return v, nil
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Validator {
	v, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("validation.MustNew: %v", err))
	}
	return v
}

// TagName returns the struct tag read for group.
func TagName(group string) string {
	if group == "" || group == Default {
		return "validate"
	}
	return "validate_" + strings.ToLower(group)
}

// ConvertGroups returns groups with from replaced by to. An empty groups
// list stands for [Default].
func ConvertGroups(groups []string, from, to string) []string {
	if len(groups) == 0 {
		groups = []string{Default}
	}
	out := make([]string, len(groups))
	for i, g := range groups {
		if g == from || (g == "" && from == Default) {
			g = to
		}
		out[i] = g
	}
	return out
}

// Validate validates v against groups, or [Default] when none are given.
// A nil v is valid.
//
// Validation failures are returned as an [*rerrors.ApplicationError].
func (v *Validator) Validate(ctx context.Context, val any, groups ...string) error {
	if val == nil {
		return nil
	}
	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	if len(groups) == 0 {
		groups = []string{Default}
	}

	var fields []rerrors.FieldError
	for _, g := range groups {
		tagErrs, err := v.validateTags(val, TagName(g))
		if err != nil {
			return err
		}
		fields = append(fields, tagErrs...)
	}

	schemaErrs, err := v.validateSchema(val)
	if err != nil {
		return err
	}
	fields = append(fields, schemaErrs...)
	fields = append(fields, validateMethods(ctx, val)...)

	if len(fields) == 0 {
		return nil
	}
	if v.cfg.maxErrors > 0 && len(fields) > v.cfg.maxErrors {
		fields = fields[:v.cfg.maxErrors]
	}
	return rerrors.NewApplicationError("validation failed", fields...).WithCode("validation_error")
}

// tagValidator returns the validator for tag, building it once.
func (v *Validator) tagValidator(tag string) (*validator.Validate, error) {
	if tv, ok := (*v.tags.Load())[tag]; ok {
		return tv, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	m := v.tags.Load()
	if tv, ok := (*m)[tag]; ok {
		return tv, nil
	}

	tv, err := newTagValidator(tag, v.cfg.customTags)
	if err != nil {
		return nil, err
	}

	next := make(map[string]*validator.Validate, len(*m)+1)
	maps.Copy(next, *m)
	next[tag] = tv
	v.tags.Store(&next)

	return tv, nil
}

// cachedTags returns how many tag validators have been built.
func (v *Validator) cachedTags() int {
	return len(*v.tags.Load())
}
