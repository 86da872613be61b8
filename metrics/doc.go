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

// Package metrics records request metrics for pipelines with OpenTelemetry
// and exposes them in the Prometheus format.
//
// [Recorder.Stage] tracks in-flight requests; [Recorder.Finisher] records
// the count, duration, response size and failures of every finalized
// exchange, labelled with the resource, method, status and outcome.
//
//	rec := metrics.MustNew(metrics.WithServiceName("orders"))
//	p := pipeline.MustNew(
//	    pipeline.WithStages(rec.Stage()),
//	    pipeline.WithFinishers(rec.Finisher()),
//	)
//	h, _ := rec.Handler()
//	mux.Handle("GET /metrics", h)
//
// By default a private Prometheus registry backs the recorder. Pass
// [WithMeterProvider] to record into an existing provider instead; the
// caller then owns its lifecycle and [Recorder.Handler] is unavailable.
package metrics
