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

package accesslog

import (
	"time"

	"rivaas.dev/rest/logging"
)

// Option configures a [Finisher].
type Option func(*Finisher)

// WithLogger sets the logger. Without one nothing is logged.
func WithLogger(l *logging.Logger) Option {
	return func(f *Finisher) { f.logger = l }
}

// WithExcludePaths skips requests whose path matches exactly.
func WithExcludePaths(paths ...string) Option {
	return func(f *Finisher) {
		for _, p := range paths {
			f.excludePaths[p] = true
		}
	}
}

// WithExcludePrefixes skips requests whose path starts with a prefix.
func WithExcludePrefixes(prefixes ...string) Option {
	return func(f *Finisher) { f.excludePrefixes = append(f.excludePrefixes, prefixes...) }
}

// WithSampleRate logs the given fraction of successful, fast requests.
// The rate is clamped to [0, 1]. Default: 1.
func WithSampleRate(rate float64) Option {
	return func(f *Finisher) { f.sampleRate = max(0, min(rate, 1)) }
}

// WithErrorsOnly logs only requests answered with 4xx or 5xx, plus slow
// ones.
func WithErrorsOnly() Option {
	return func(f *Finisher) { f.errorsOnly = true }
}

// WithSlowThreshold marks requests at or above d as slow. Zero disables it.
func WithSlowThreshold(d time.Duration) Option {
	return func(f *Finisher) { f.slowThreshold = d }
}
