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

// Package accesslog logs one structured "access" entry per finished
// request.
//
//	p := pipeline.MustNew(pipeline.WithFinishers(
//	    accesslog.New(
//	        accesslog.WithLogger(logger),
//	        accesslog.WithExcludePaths("/livez", "/readyz"),
//	        accesslog.WithSlowThreshold(500*time.Millisecond),
//	    ),
//	))
//
// Entries carry method, path, status, duration_ms, bytes_sent, client_ip,
// user_agent, request_id and, once the method is resolved, the resource
// path ("Orders.Get"). 5xx is logged at ERROR, 4xx and slow requests at
// WARN, everything else at INFO.
//
// Sampling is deterministic by request id, so every replica makes the
// same decision for one request. Errors and slow requests are never
// sampled out.
package accesslog
