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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Source produces one layer of configuration.
type Source interface {
	// Name identifies the source in errors.
	Name() string
	// Load returns the layer as a nested map.
	Load(ctx context.Context) (map[string]any, error)
}

// FileSource reads a file on every load.
type FileSource struct {
	Path   string
	Format Format
	// Optional sources yield nothing when the file does not exist.
	Optional bool
}

// Name implements [Source].
func (s *FileSource) Name() string { return "file:" + s.Path }

// Load implements [Source].
func (s *FileSource) Load(context.Context) (map[string]any, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if s.Optional && os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	return decode(s.Format, data)
}

// ContentSource decodes fixed content.
type ContentSource struct {
	Data   []byte
	Format Format
}

// Name implements [Source].
func (s *ContentSource) Name() string { return "content:" + string(s.Format) }

// Load implements [Source].
func (s *ContentSource) Load(context.Context) (map[string]any, error) {
	return decode(s.Format, s.Data)
}

// EnvSource reads environment variables starting with Prefix.
type EnvSource struct {
	Prefix string
	// Environ returns "KEY=value" pairs. Defaults to os.Environ.
	Environ func() []string
}

// Name implements [Source].
func (s *EnvSource) Name() string { return "env:" + s.Prefix }

// Load implements [Source].
func (s *EnvSource) Load(context.Context) (map[string]any, error) {
	environ := s.Environ
	if environ == nil {
		environ = os.Environ
	}
	out := make(map[string]any)
	for _, kv := range environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, s.Prefix) {
			continue
		}
		setPath(out, envPath(strings.TrimPrefix(key, s.Prefix)), value)
	}
	return out, nil
}

// DotEnvSource reads a .env file, keeping variables that start with Prefix.
// A missing file yields nothing.
type DotEnvSource struct {
	Path   string
	Prefix string
}

// Name implements [Source].
func (s *DotEnvSource) Name() string { return "dotenv:" + s.Path }

// Load implements [Source].
func (s *DotEnvSource) Load(context.Context) (map[string]any, error) {
	vars, err := godotenv.Read(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.Path, err)
	}
	out := make(map[string]any)
	for key, value := range vars {
		if !strings.HasPrefix(key, s.Prefix) {
			continue
		}
		setPath(out, envPath(strings.TrimPrefix(key, s.Prefix)), value)
	}
	return out, nil
}
