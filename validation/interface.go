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

	rerrors "rivaas.dev/rest/errors"
)

// ValidatorInterface is implemented by types that validate themselves.
//
// Example:
//
//	func (o *CreateOrder) Validate() error {
//	    if o.Quantity > o.Stock {
//	        return errors.New("quantity exceeds stock")
//	    }
//	    return nil
//	}
type ValidatorInterface interface {
	Validate() error
}

// ValidatorWithContext is like [ValidatorInterface] but receives the
// request context. It is preferred when both are implemented.
type ValidatorWithContext interface {
	ValidateContext(context.Context) error
}

func validateMethods(ctx context.Context, val any) []rerrors.FieldError {
	var err error
	switch x := val.(type) {
	case ValidatorWithContext:
		if ctx == nil {
			ctx = context.Background()
		}
		err = x.ValidateContext(ctx)
	case ValidatorInterface:
		err = x.Validate()
	default:
		return nil
	}
	return asFieldErrors(err)
}

// asFieldErrors keeps the structure of errors that already carry field
// errors and wraps anything else as a single unnamed field error.
func asFieldErrors(err error) []rerrors.FieldError {
	if err == nil {
		return nil
	}
	var appErr *rerrors.ApplicationError
	if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
		return appErr.Fields
	}
	var fe rerrors.FieldError
	if errors.As(err, &fe) {
		return []rerrors.FieldError{fe}
	}
	return []rerrors.FieldError{{Code: "custom", Message: err.Error()}}
}
