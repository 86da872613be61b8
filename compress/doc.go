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

// Package compress encodes response bodies with Brotli or gzip before
// they are written.
//
// [Compressor] is a pipeline finisher. It picks an encoding from the
// request's Accept-Encoding header, preferring Brotli when the client
// weighs both equally, and replaces the body with its compressed form.
// Bodies below the minimum size, bodiless statuses, already encoded
// responses and excluded content types are left alone.
//
//	p := pipeline.MustNew(
//	    pipeline.WithFinishers(compress.New(compress.WithMinSize(1024))),
//	)
//
// Compression reads the whole body into memory, so it suits the encoded
// payloads produced by converters rather than large streams.
package compress
