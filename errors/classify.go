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

package errors

import (
	"errors"
	"net/http"
)

// Kind is the closed two-way classification of pipeline errors.
type Kind int

const (
	// KindUnclassified is a defect: anything not known to be recoverable.
	KindUnclassified Kind = iota
	// KindRecoverable is an expected outcome of business or protocol flow.
	KindRecoverable
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRecoverable:
		return "recoverable"
	default:
		return "unclassified"
	}
}

// Classify returns [KindRecoverable] for application errors and for errors
// declaring an HTTP status below 500, and [KindUnclassified] otherwise.
//
// Configuration-shape errors are always unclassified.
func Classify(err error) Kind {
	if err == nil || IsConfigurationError(err) {
		return KindUnclassified
	}
	if IsApplicationError(err) {
		return KindRecoverable
	}
	if status, ok := StatusOf(err); ok && status < http.StatusInternalServerError {
		return KindRecoverable
	}
	return KindUnclassified
}

// IsApplicationError reports whether err is, or wraps, an [ApplicationError].
func IsApplicationError(err error) bool {
	var appErr *ApplicationError
	return errors.As(err, &appErr)
}

// IsConfigurationError reports whether err is a configuration-shape error:
// ambiguous methods, invalid signatures or configuration conflicts.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrAmbiguousMethod) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrConfigurationConflict)
}
