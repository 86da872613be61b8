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

package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Format names an encoding of configuration content.
type Format string

// Supported formats.
const (
	FormatYAML   Format = "yaml"
	FormatJSON   Format = "json"
	FormatTOML   Format = "toml"
	FormatDotEnv Format = "dotenv"
)

var extensions = map[string]Format{
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".json": FormatJSON,
	".toml": FormatTOML,
	".env":  FormatDotEnv,
}

// FormatOf returns the format implied by the extension of path.
func FormatOf(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" && strings.HasPrefix(filepath.Base(path), ".env") {
		return FormatDotEnv, nil
	}
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unknown configuration extension %q", ext)
}

// decode parses data in format f into a nested map. Dotenv content is
// flat; its keys are nested the same way as environment variables.
func decode(f Format, data []byte) (map[string]any, error) {
	out := make(map[string]any)
	switch f {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	case FormatDotEnv:
		vars, err := godotenv.UnmarshalBytes(data)
		if err != nil {
			return nil, err
		}
		for k, v := range vars {
			setPath(out, envPath(k), v)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
	return out, nil
}

// envPath splits an environment variable name into lower-cased key
// segments on double underscores.
func envPath(name string) []string {
	var parts []string
	for part := range strings.SplitSeq(strings.ToLower(name), "__") {
		if part = strings.Trim(part, "_"); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func setPath(m map[string]any, path []string, value any) {
	if len(path) == 0 {
		return
	}
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[key] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}
