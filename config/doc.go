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

// Package config loads layered settings from files, raw content, Consul KV
// entries, .env files and environment variables, and binds them to structs.
//
// Sources are loaded in the order given; later sources override earlier
// ones key by key. Keys are case-insensitive.
//
//	var s Settings
//	cfg := config.MustNew(
//	    config.WithFile("restd.yaml"),
//	    config.WithDotEnv(".env", "REST_"),
//	    config.WithEnv("REST_"),
//	    config.WithBinding(&s),
//	)
//	if err := cfg.Load(ctx); err != nil {
//	    return err
//	}
//
// # Formats
//
// Files are decoded by extension: .yaml/.yml (goccy/go-yaml), .json and
// .toml (BurntSushi/toml). Use [WithFileAs] or [WithContent] for anything
// else.
//
// # Consul
//
// [WithConsul] reads one KV entry holding a whole document, decoded by the
// key's extension. The client is configured from CONSUL_HTTP_ADDR and the
// other standard Consul variables. A missing key contributes nothing.
//
// # Environment variables
//
// With prefix "REST_", REST_SERVER__ADDR becomes server.addr. A double
// underscore separates levels so single underscores can stay in key names:
// REST_CORS__ALLOW_ORIGINS is cors.allow_origins. Comma separated values
// bind to slices.
//
// # Binding
//
// Struct fields are matched through the "config" tag (see [WithTag]).
// A "default" tag provides the value used when no source sets the key.
// A bound struct implementing [Validator] is validated after binding, and
// nothing is bound if validation fails.
package config
