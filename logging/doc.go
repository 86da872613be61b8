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

// Package logging provides the structured logger used by the request
// pipeline, built on [log/slog].
//
// # Basic Usage
//
//	logger := logging.MustNew(
//	    logging.WithJSONHandler(),
//	    logging.WithServiceName("orders"),
//	)
//	defer logger.Shutdown(context.Background())
//	logger.Info("listening", "addr", ":8080")
//
// # Levels
//
// Besides the slog levels there is [LevelFatal], rendered as "FATAL". The
// pipeline logs unclassified failures at this level; it never terminates
// the process.
//
// # Redaction
//
// Values of the keys password, token, secret, api_key, authorization and
// cookie are replaced with "***REDACTED***" before any custom
// [WithReplaceAttr] function runs.
//
// # Trace Correlation
//
// [NewContextLogger] adds trace_id and span_id from the OpenTelemetry span
// in the context:
//
//	cl := logging.NewContextLogger(r.Context(), logger).WithRequestID(id)
//	cl.Warn("slow upstream", "elapsed", d)
//
// # Testing
//
// [NewTestHelper] captures JSON output in memory and offers assertions:
//
//	th := logging.NewTestHelper(t)
//	// ... exercise code using th.Logger
//	th.AssertLog(t, "FATAL", "request failed", map[string]any{"status": 500})
package logging
