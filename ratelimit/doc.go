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

// Package ratelimit limits requests per client with token buckets.
//
// [Limiter.Stage] runs before method binding. A client over its budget
// gets a bodyless 429 with Retry-After and the resource method never runs.
// Clients are keyed by remote IP unless [WithKeyFunc] says otherwise.
//
//	limiter := ratelimit.New(
//	    ratelimit.WithRequestsPerSecond(100),
//	    ratelimit.WithBurst(20),
//	)
//	p := pipeline.MustNew(pipeline.WithStages(limiter.Stage()))
package ratelimit
