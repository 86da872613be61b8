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

// Package pipeline serves resource methods over HTTP: it negotiates body
// encodings, dispatches to the bound method and finalizes every response.
//
// # Flow
//
//	transport -> stages (e.g. CORS preflight) -> MethodBinder
//	          -> ContentNegotiator (decode) -> invoker -> ContentNegotiator (encode)
//	          -> ResponseFinalizer -> transport
//
// Stages and handlers return (*response.Response, error). Only the
// [ResponseFinalizer] turns errors into responses, so every request ends
// with exactly one written response.
//
// # Errors
//
// Recoverable errors (application errors and errors declaring a status
// below 500, such as 404 and 415) become bodyless responses with that
// status, or 400. Everything else becomes a bodyless 500 and is logged at
// FATAL. Use [FormattingErrorResponseBuilder] for structured bodies.
//
// # Extension points
//
//   - [converter.Converter] through the registry
//   - [ErrorResponseBuilder]
//   - [ErrorLogWriter] and [ApplicationErrorHook]
//   - [Finisher], run in registration order before writing
//   - [Stage] and [InvokerMiddleware]
//
// # Example
//
//	p := pipeline.MustNew(
//	    pipeline.WithLogger(logger),
//	    pipeline.WithStages(cors.PreflightStage(policy)),
//	    pipeline.WithFinishers(cors.Finisher(policy, logger)),
//	)
//	mux.Handle("GET /orders", p.Endpoint(orders, "List"))
package pipeline
