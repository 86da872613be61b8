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

// Package validation validates decoded request bodies.
//
// Three strategies are applied, in this order, and their failures merged:
//
//   - struct tags through github.com/go-playground/validator
//   - JSON Schema for types implementing [JSONSchemaProvider]
//   - Validate / ValidateContext methods ([ValidatorInterface], [ValidatorWithContext])
//
// # Groups
//
// Tags are grouped by tag name. The [Default] group reads the "validate"
// tag; any other group G reads "validate_g":
//
//	type CreateUser struct {
//	    Email string `json:"email" validate:"required,email"`
//	    ID    string `json:"id" validate_update:"required"`
//	}
//
//	err := v.Validate(ctx, &in, "update")
//
// A tag validator is built the first time its group is used and then
// reused.
//
// # Errors
//
// Failures are returned as a recoverable application error listing one
// field error per violation, so they map to 400 by default. Problems with
// the validation setup itself, such as a schema that does not compile, are
// returned as plain errors.
package validation
