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

// Package converter provides media type converters and the ordered
// registry the pipeline uses to pick one.
//
// # Registry
//
// A [Registry] holds converters in priority order. [Registry.Find] returns
// the first converter whose Supports method accepts the media type:
//
//	reg := converter.NewRegistry(
//	    converter.NewJSON(converter.WithStrict()),
//	    converter.NewXML(),
//	    yaml.New(),
//	)
//	c, err := reg.Find("application/json; charset=utf-8")
//
// # Decoding
//
// Read takes the type the resource method wants. A nil type decodes into a
// generic value (map[string]any for JSON, [*Node] for XML, [url.Values] for
// forms). Malformed bodies and unsupported charsets are reported as
// recoverable application errors, so they map to 400. Bodies larger than
// [WithMaxBodyBytes] map to 413.
//
// # Additional formats
//
// The yaml, toml, msgpack and proto subpackages add converters for those
// formats using the same [Option] values.
package converter
