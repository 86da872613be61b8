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

// Package tracing wraps pipeline exchanges in OpenTelemetry server spans.
//
// [Tracer.Stage] extracts the caller's trace context from the request
// headers, starts a span and hands the span's context downstream, so the
// resource method and the request logger both see it. Log entries written
// through the exchange logger carry trace_id and span_id.
//
//	tr := tracing.MustNew(tracing.WithServiceName("orders"), tracing.WithStdout(os.Stderr))
//	defer tr.Shutdown(ctx)
//	p := pipeline.MustNew(pipeline.WithStages(tr.Stage()))
//
// Spans are named after the bound resource method ("Orders.Create"), or
// the HTTP method and path when no method was bound. Unclassified
// failures and 5xx responses mark the span as an error.
package tracing
