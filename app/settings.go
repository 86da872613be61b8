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

package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"rivaas.dev/rest/config"
	"rivaas.dev/rest/logging"
)

// Environments.
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// EnvPrefix prefixes environment variables read by [LoadSettings]:
// RESTD_SERVER__ADDR sets server.addr.
const EnvPrefix = "RESTD_"

// Settings configures an [App]. Field tags name the configuration keys.
type Settings struct {
	Service struct {
		Name        string `config:"name" default:"restd"`
		Version     string `config:"version" default:"dev"`
		Environment string `config:"environment" default:"development"`
	} `config:"service"`

	Server struct {
		Addr              string        `config:"addr" default:":8080"`
		ReadTimeout       time.Duration `config:"read_timeout" default:"10s"`
		ReadHeaderTimeout time.Duration `config:"read_header_timeout" default:"2s"`
		WriteTimeout      time.Duration `config:"write_timeout" default:"10s"`
		IdleTimeout       time.Duration `config:"idle_timeout" default:"60s"`
		ShutdownTimeout   time.Duration `config:"shutdown_timeout" default:"30s"`
		MaxHeaderBytes    int           `config:"max_header_bytes" default:"1048576"`
		ChunkSize         int           `config:"chunk_size" default:"8192"`
	} `config:"server"`

	Logging struct {
		Level  string `config:"level" default:"info"`
		Format string `config:"format" default:"json"`
	} `config:"logging"`

	// RequestIDs is "uuid" or "ulid".
	RequestIDs string `config:"request_ids" default:"uuid"`

	Errors struct {
		// Format is "none" for bodyless errors, "simple" or "rfc9457".
		Format   string `config:"format" default:"none"`
		TypeBase string `config:"type_base"`
	} `config:"errors"`

	Converters struct {
		MaxBodyBytes int64 `config:"max_body_bytes" default:"10485760"`
		Strict       bool  `config:"strict"`
		YAML         bool  `config:"yaml" default:"true"`
		TOML         bool  `config:"toml"`
		MsgPack      bool  `config:"msgpack"`
		Proto        bool  `config:"proto"`
	} `config:"converters"`

	Validation struct {
		Enabled   bool `config:"enabled" default:"true"`
		MaxErrors int  `config:"max_errors" default:"0"`
	} `config:"validation"`

	CORS struct {
		Enabled          bool     `config:"enabled" default:"true"`
		AllowOrigins     []string `config:"allow_origins"`
		AllowMethods     []string `config:"allow_methods"`
		AllowHeaders     []string `config:"allow_headers"`
		ExposeHeaders    []string `config:"expose_headers" default:"X-Request-Id"`
		MaxAge           int      `config:"max_age" default:"-1"`
		AllowCredentials bool     `config:"allow_credentials" default:"true"`
	} `config:"cors"`

	RateLimit struct {
		Enabled           bool          `config:"enabled"`
		RequestsPerSecond float64       `config:"requests_per_second" default:"100"`
		Burst             int           `config:"burst" default:"200"`
		IdleTTL           time.Duration `config:"idle_ttl" default:"10m"`
	} `config:"rate_limit"`

	Compression struct {
		Enabled bool  `config:"enabled" default:"true"`
		MinSize int64 `config:"min_size" default:"1024"`
		Brotli  bool  `config:"brotli" default:"true"`
	} `config:"compression"`

	AccessLog struct {
		Enabled       bool          `config:"enabled" default:"true"`
		SampleRate    float64       `config:"sample_rate" default:"1"`
		ErrorsOnly    bool          `config:"errors_only"`
		SlowThreshold time.Duration `config:"slow_threshold" default:"1s"`
	} `config:"access_log"`

	// Security adds hardening headers, preset by service.environment.
	Security struct {
		Enabled bool `config:"enabled" default:"true"`
	} `config:"security"`

	Metrics struct {
		Enabled bool   `config:"enabled" default:"true"`
		Path    string `config:"path" default:"/metrics"`
		// Stdout and OTLPEndpoint add push exporters next to /metrics.
		Stdout         bool          `config:"stdout"`
		OTLPEndpoint   string        `config:"otlp_endpoint"`
		OTLPInsecure   bool          `config:"otlp_insecure"`
		ExportInterval time.Duration `config:"export_interval" default:"30s"`
	} `config:"metrics"`

	Tracing struct {
		Enabled    bool    `config:"enabled"`
		Stdout     bool    `config:"stdout"`
		SampleRate float64 `config:"sample_rate" default:"1"`
		// OTLPProtocol is empty, "grpc" or "http".
		OTLPProtocol string `config:"otlp_protocol"`
		OTLPEndpoint string `config:"otlp_endpoint"`
		OTLPInsecure bool   `config:"otlp_insecure"`
	} `config:"tracing"`
}

// Validate implements [config.Validator].
func (s *Settings) Validate() error {
	var errs []error
	if s.Service.Name == "" {
		errs = append(errs, errors.New("service.name is required"))
	}
	if !slices.Contains([]string{EnvironmentDevelopment, EnvironmentProduction}, s.Service.Environment) {
		errs = append(errs, fmt.Errorf("service.environment %q must be %q or %q",
			s.Service.Environment, EnvironmentDevelopment, EnvironmentProduction))
	}
	if _, err := logging.ParseLevel(s.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if !slices.Contains([]string{"json", "text", "console"}, s.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format %q must be json, text or console", s.Logging.Format))
	}
	if !slices.Contains([]string{"uuid", "ulid"}, s.RequestIDs) {
		errs = append(errs, fmt.Errorf("request_ids %q must be uuid or ulid", s.RequestIDs))
	}
	if !slices.Contains([]string{"none", "simple", "rfc9457"}, s.Errors.Format) {
		errs = append(errs, fmt.Errorf("errors.format %q must be none, simple or rfc9457", s.Errors.Format))
	}
	if s.Server.ChunkSize <= 0 {
		errs = append(errs, errors.New("server.chunk_size must be positive"))
	}
	if s.RateLimit.Enabled && (s.RateLimit.RequestsPerSecond <= 0 || s.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate_limit needs positive requests_per_second and burst"))
	}
	if s.AccessLog.SampleRate < 0 || s.AccessLog.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("access_log.sample_rate %v must be within [0, 1]", s.AccessLog.SampleRate))
	}
	if s.Tracing.SampleRate < 0 || s.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate %v must be within [0, 1]", s.Tracing.SampleRate))
	}
	if !slices.Contains([]string{"", "grpc", "http"}, s.Tracing.OTLPProtocol) {
		errs = append(errs, fmt.Errorf("tracing.otlp_protocol %q must be grpc or http", s.Tracing.OTLPProtocol))
	}
	if s.Metrics.ExportInterval <= 0 {
		errs = append(errs, errors.New("metrics.export_interval must be positive"))
	}
	return errors.Join(errs...)
}

// LoadSettings loads settings from the given sources, followed by a .env
// file in the working directory and RESTD_* environment variables, which
// take precedence.
//
// Example:
//
//	s, err := app.LoadSettings(ctx, config.WithOptionalFile("restd.yaml"))
func LoadSettings(ctx context.Context, opts ...config.Option) (*Settings, error) {
	s := &Settings{}
	opts = append(slices.Clone(opts),
		config.WithDotEnv(".env", EnvPrefix),
		config.WithEnv(EnvPrefix),
		config.WithBinding(s),
	)
	c, err := config.New(opts...)
	if err != nil {
		return nil, err
	}
	if err = c.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultSettings returns settings holding only the defaults.
func DefaultSettings() *Settings {
	s := &Settings{}
	c := config.MustNew(config.WithBinding(s))
	c.MustLoad(context.Background())
	return s
}
