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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverSettings struct {
	Addr    string        `config:"addr" default:":8080"`
	Timeout time.Duration `config:"timeout" default:"5s"`
	Origins []string      `config:"origins"`
	Debug   bool          `config:"debug" default:"true"`
	Limits  struct {
		RPS   float64 `config:"rps" default:"100"`
		Burst int     `config:"burst" default:"10"`
	} `config:"limits"`
}

type checkedSettings struct {
	Name string `config:"name"`
}

func (s *checkedSettings) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "restd.yaml", "server:\n  addr: \":9000\"\n  timeout: 2s\n"},
		{"json", "restd.json", `{"server": {"addr": ":9000", "timeout": "2s"}}`},
		{"toml", "restd.toml", "[server]\naddr = \":9000\"\ntimeout = \"2s\"\n"},
		{"dotenv", "restd.env", "SERVER__ADDR=:9000\nSERVER__TIMEOUT=2s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := MustNew(WithFile(writeFile(t, tt.file, tt.content)))
			require.NoError(t, c.Load(context.Background()))
			assert.Equal(t, ":9000", c.String("server.addr"))
			assert.Equal(t, 2*time.Second, c.Duration("server.timeout"))
		})
	}
}

func TestLoad_LaterSourcesOverride(t *testing.T) {
	t.Parallel()

	c := MustNew(
		WithContent([]byte("server:\n  addr: \":9000\"\n  debug: true\n"), FormatYAML),
		WithSource(&EnvSource{Prefix: "RESTD_", Environ: func() []string {
			return []string{"RESTD_SERVER__ADDR=:7000", "OTHER_SERVER__ADDR=:1"}
		}}),
	)
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, ":7000", c.String("server.addr"))
	assert.True(t, c.Bool("server.debug"), "nested keys from earlier sources survive")
	assert.True(t, c.Has("SERVER.ADDR"), "lookups ignore case")
}

func TestLoad_DotEnvMissingIsIgnored(t *testing.T) {
	t.Parallel()

	c := MustNew(WithDotEnv(filepath.Join(t.TempDir(), ".env"), "RESTD_"))
	require.NoError(t, c.Load(context.Background()))
	assert.Empty(t, c.Values())
}

func TestLoad_DotEnvPrefix(t *testing.T) {
	t.Parallel()

	path := writeFile(t, ".env", "RESTD_LIMITS__RPS=5\nUNRELATED=x\n")
	c := MustNew(WithDotEnv(path, "RESTD_"))
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, 5, c.Int("limits.rps"))
	assert.False(t, c.Has("unrelated"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "absent.yaml")

	err := MustNew(WithFile(missing)).Load(context.Background())
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "file:"+missing, cerr.Source)
	assert.Equal(t, "load", cerr.Op)

	require.NoError(t, MustNew(WithOptionalFile(missing)).Load(context.Background()))
}

func TestNew_UnknownExtension(t *testing.T) {
	t.Parallel()

	_, err := New(WithFile("settings.ini"), WithSource(nil))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNilSource)
	assert.Contains(t, err.Error(), ".ini")
}

func TestBinding_Defaults(t *testing.T) {
	t.Parallel()

	var s serverSettings
	c := MustNew(WithContent([]byte(`{"origins": "https://a.example, https://b.example"}`), FormatJSON), WithBinding(&s))
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, ":8080", s.Addr)
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.True(t, s.Debug)
	assert.InDelta(t, 100.0, s.Limits.RPS, 0)
	assert.Equal(t, 10, s.Limits.Burst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.Origins)
}

func TestBinding_ExplicitZeroBeatsDefault(t *testing.T) {
	t.Parallel()

	var s serverSettings
	c := MustNew(WithContent([]byte("debug: false\nlimits:\n  burst: 0\n"), FormatYAML), WithBinding(&s))
	require.NoError(t, c.Load(context.Background()))

	assert.False(t, s.Debug)
	assert.Equal(t, 0, s.Limits.Burst)
}

func TestBinding_ValidatorFailureKeepsPrevious(t *testing.T) {
	t.Parallel()

	s := checkedSettings{Name: "before"}
	c := MustNew(WithContent([]byte(`{"name": ""}`), FormatJSON), WithBinding(&s))

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Equal(t, "before", s.Name)
	assert.Empty(t, c.Values(), "values are not replaced on failure")
}

func TestWithBinding_RejectsNonStruct(t *testing.T) {
	t.Parallel()

	var n int
	_, err := New(WithBinding(&n))
	require.Error(t, err)
	_, err = New(WithBinding(checkedSettings{}))
	require.Error(t, err)
}

func TestJSONSchema(t *testing.T) {
	t.Parallel()

	schema := []byte(`{
		"type": "object",
		"properties": {"port": {"type": "integer", "minimum": 1}},
		"required": ["port"]
	}`)

	ok := MustNew(WithContent([]byte("port: 8080\n"), FormatYAML), WithJSONSchema(schema))
	require.NoError(t, ok.Load(context.Background()))

	bad := MustNew(WithContent([]byte("port: 0\n"), FormatYAML), WithJSONSchema(schema))
	err := bad.Load(context.Background())
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "json-schema", cerr.Source)

	_, err = New(WithJSONSchema([]byte("{")))
	require.Error(t, err)
}

func TestWithValidator(t *testing.T) {
	t.Parallel()

	c := MustNew(
		WithContent([]byte(`{"mode": "chaos"}`), FormatJSON),
		WithValidator(func(m map[string]any) error {
			if m["mode"] != "strict" {
				return errors.New("mode must be strict")
			}
			return nil
		}),
	)
	err := c.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validator[0]")
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := MustNew(WithContent([]byte("{}"), FormatJSON)).Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGetters(t *testing.T) {
	t.Parallel()

	c := MustNew(WithContent([]byte("port: \"8080\"\nhosts: a, b\nwait: 3s\n"), FormatYAML))
	c.MustLoad(context.Background())

	assert.Equal(t, 8080, c.Int("port"))
	assert.Equal(t, []string{"a", "b"}, c.StringSlice("hosts"))
	assert.Equal(t, 3*time.Second, c.Duration("wait"))
	assert.Equal(t, "fallback", c.StringOr("missing", "fallback"))
	assert.Equal(t, 7, c.IntOr("hosts", 7), "unconvertible values use the default")
	assert.Equal(t, time.Minute, c.DurationOr("missing", time.Minute))
	assert.Nil(t, c.Get("port.deeper"))
}

func TestMustNewPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustNew(WithSource(nil)) })
	assert.Panics(t, func() { MustNew(WithFile("x.txt")).MustLoad(context.Background()) })
}
