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

// Package errors defines the error taxonomy of the request pipeline and the
// formatters used when an error builder opts in to structured error bodies.
//
// # Taxonomy
//
// Protocol outcomes carry their own HTTP status:
//   - [UnsupportedMediaTypeError] (415)
//   - [NotFoundError] (404)
//
// Configuration-shape errors are meant to be fixed by the integrator:
//   - [AmbiguousMethodError]
//   - [InvalidSignatureError]
//   - [ConfigurationConflictError]
//
// Business outcomes use [ApplicationError] (400). Anything else is an
// unclassified failure.
//
// # Classification
//
// [Classify] splits every error into exactly two kinds. [KindRecoverable]
// covers application errors and errors that declare a status below 500.
// Everything else is [KindUnclassified] and is logged as a defect.
//
//	switch errors.Classify(err) {
//	case errors.KindRecoverable:
//	    // expected business or protocol flow
//	case errors.KindUnclassified:
//	    // defect; log at fatal level
//	}
//
// # Structured bodies
//
// Error responses are bodyless by default. A [Formatter] such as [RFC9457]
// or [Simple] turns an error into a status, content type and body:
//
//	formatter := errors.NewRFC9457("https://api.example.com/problems")
//	resp := formatter.Format(req, err)
//
// Domain errors can implement [ErrorType], [ErrorDetails] and [ErrorCode] to
// control status codes and expose structured details.
package errors
