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

import "fmt"

// Error reports which source or step failed while loading.
type Error struct {
	// Source is the failing source, e.g. "file:restd.yaml", "binding".
	Source string
	// Op is the step, e.g. "load", "merge", "validate".
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(source, op string, err error) *Error {
	return &Error{Source: source, Op: op, Err: err}
}
