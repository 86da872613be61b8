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
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"

	"rivaas.dev/rest/accesslog"
	"rivaas.dev/rest/compress"
	"rivaas.dev/rest/converter"
	"rivaas.dev/rest/converter/msgpack"
	"rivaas.dev/rest/converter/proto"
	"rivaas.dev/rest/converter/toml"
	"rivaas.dev/rest/converter/yaml"
	"rivaas.dev/rest/cors"
	rerrors "rivaas.dev/rest/errors"
	"rivaas.dev/rest/logging"
	"rivaas.dev/rest/metrics"
	"rivaas.dev/rest/pipeline"
	"rivaas.dev/rest/ratelimit"
	"rivaas.dev/rest/resource"
	"rivaas.dev/rest/security"
	"rivaas.dev/rest/tracing"
	"rivaas.dev/rest/validation"
)

// Health endpoint paths.
const (
	LivezPath  = "/livez"
	ReadyzPath = "/readyz"
)

// Route is a mounted resource method.
type Route struct {
	Method   string
	Path     string
	Resource string
	Handler  string
}

// App serves resources through one pipeline built from [Settings].
type App struct {
	settings *Settings
	logger   *logging.Logger
	pipeline *pipeline.Pipeline
	router   *mux.Router

	policy  *cors.Basic
	limiter *ratelimit.Limiter
	metrics *metrics.Recorder
	tracer  *tracing.Tracer

	bannerOut   io.Writer
	pipelineOps []pipeline.Option

	mu        sync.Mutex
	routes    []Route
	preflight map[string]bool

	ready atomic.Bool
}

// Option configures an [App].
type Option func(*App)

// WithLogger replaces the logger built from the logging settings.
func WithLogger(l *logging.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithBannerOutput sets where the startup banner is printed. nil disables
// it. Default: os.Stdout.
func WithBannerOutput(w io.Writer) Option {
	return func(a *App) { a.bannerOut = w }
}

// WithPipelineOptions appends pipeline options after the ones derived from
// the settings, so they take precedence.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(a *App) { a.pipelineOps = append(a.pipelineOps, opts...) }
}

// New builds an App. A nil s uses [DefaultSettings].
//
// Errors:
//   - invalid settings
//   - logger, metrics, tracing or pipeline construction failures
func New(s *Settings, opts ...Option) (*App, error) {
	if s == nil {
		s = DefaultSettings()
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	a := &App{
		settings:  s,
		router:    mux.NewRouter(),
		bannerOut: os.Stdout,
		preflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		l, err := newLogger(s)
		if err != nil {
			return nil, err
		}
		a.logger = l
	}

	popts, err := a.buildPipelineOptions()
	if err != nil {
		return nil, err
	}
	if a.pipeline, err = pipeline.New(append(popts, a.pipelineOps...)...); err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	a.mountHealth()
	return a, nil
}

// MustNew is like [New] but panics on error.
func MustNew(s *Settings, opts ...Option) *App {
	a, err := New(s, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

func newLogger(s *Settings) (*logging.Logger, error) {
	level, err := logging.ParseLevel(s.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(
		logging.WithHandlerType(logging.HandlerType(s.Logging.Format)),
		logging.WithLevel(level),
		logging.WithServiceName(s.Service.Name),
		logging.WithServiceVersion(s.Service.Version),
		logging.WithEnvironment(s.Service.Environment),
	)
}

// buildPipelineOptions assembles stages and finishers. Stage order:
// tracing, active-request metrics, CORS preflight, rate limiting.
// Finisher order: security headers, CORS headers, compression, access
// log, metrics.
func (a *App) buildPipelineOptions() ([]pipeline.Option, error) {
	s := a.settings
	opts := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithRegistry(registry(s)),
		pipeline.WithChunkSize(s.Server.ChunkSize),
	}
	if s.RequestIDs == "ulid" {
		opts = append(opts, pipeline.WithULIDRequestIDs())
	}
	switch s.Errors.Format {
	case "simple":
		opts = append(opts, pipeline.WithErrorResponseBuilder(pipeline.FormattingErrorResponseBuilder{
			Formatter: &rerrors.Simple{HideUnclassified: s.Service.Environment == EnvironmentProduction},
		}))
	case "rfc9457":
		opts = append(opts, pipeline.WithErrorResponseBuilder(pipeline.FormattingErrorResponseBuilder{
			Formatter: rerrors.NewRFC9457(s.Errors.TypeBase),
		}))
	}
	if s.Validation.Enabled {
		v, err := validation.New(validation.WithMaxErrors(s.Validation.MaxErrors))
		if err != nil {
			return nil, fmt.Errorf("failed to create validator: %w", err)
		}
		opts = append(opts, pipeline.WithValidator(v))
	} else {
		opts = append(opts, pipeline.WithValidator(nil))
	}

	var (
		stages    []pipeline.Stage
		finishers []pipeline.Finisher
		err       error
	)
	if s.Tracing.Enabled {
		topts := []tracing.Option{
			tracing.WithServiceName(s.Service.Name),
			tracing.WithServiceVersion(s.Service.Version),
			tracing.WithSampleRate(s.Tracing.SampleRate),
			tracing.WithLogger(a.logger),
		}
		if s.Tracing.Stdout {
			topts = append(topts, tracing.WithStdout(os.Stderr))
		}
		if s.Tracing.OTLPProtocol != "" {
			topts = append(topts, tracing.WithOTLP(
				tracing.Protocol(s.Tracing.OTLPProtocol), s.Tracing.OTLPEndpoint, s.Tracing.OTLPInsecure))
		}
		if a.tracer, err = tracing.New(topts...); err != nil {
			return nil, err
		}
		stages = append(stages, a.tracer.Stage())
	}
	if s.Metrics.Enabled {
		mopts := []metrics.Option{
			metrics.WithServiceName(s.Service.Name),
			metrics.WithServiceVersion(s.Service.Version),
			metrics.WithExportInterval(s.Metrics.ExportInterval),
			metrics.WithLogger(a.logger),
		}
		if s.Metrics.Stdout {
			mopts = append(mopts, metrics.WithStdout(os.Stderr))
		}
		if s.Metrics.OTLPEndpoint != "" {
			mopts = append(mopts, metrics.WithOTLP(s.Metrics.OTLPEndpoint, s.Metrics.OTLPInsecure))
		}
		if a.metrics, err = metrics.New(mopts...); err != nil {
			return nil, err
		}
		stages = append(stages, a.metrics.Stage())
	}
	if s.Security.Enabled {
		preset := security.DevelopmentPreset()
		if s.Service.Environment == EnvironmentProduction {
			preset = security.ProductionPreset()
		}
		finishers = append(finishers, security.New(preset))
	}
	if s.CORS.Enabled {
		copts := []cors.Option{
			cors.WithAllowOrigins(s.CORS.AllowOrigins...),
			cors.WithMaxAge(s.CORS.MaxAge),
			cors.WithAllowCredentials(s.CORS.AllowCredentials),
		}
		if len(s.CORS.AllowMethods) > 0 {
			copts = append(copts, cors.WithAllowMethods(s.CORS.AllowMethods...))
		}
		if len(s.CORS.AllowHeaders) > 0 {
			copts = append(copts, cors.WithAllowHeaders(s.CORS.AllowHeaders...))
		}
		if len(s.CORS.ExposeHeaders) > 0 {
			copts = append(copts, cors.WithExposeHeaders(s.CORS.ExposeHeaders...))
		}
		a.policy = cors.New(copts...)
		stages = append(stages, cors.PreflightStage(a.policy))
		finishers = append(finishers, cors.Finisher(a.policy, a.logger))
	}
	if s.RateLimit.Enabled {
		a.limiter = ratelimit.New(
			ratelimit.WithRequestsPerSecond(s.RateLimit.RequestsPerSecond),
			ratelimit.WithBurst(s.RateLimit.Burst),
			ratelimit.WithIdleTTL(s.RateLimit.IdleTTL),
		)
		stages = append(stages, a.limiter.Stage())
	}
	if s.Compression.Enabled {
		copts := []compress.Option{compress.WithMinSize(s.Compression.MinSize), compress.WithLogger(a.logger)}
		if !s.Compression.Brotli {
			copts = append(copts, compress.WithBrotliDisabled())
		}
		finishers = append(finishers, compress.New(copts...))
	}
	if s.AccessLog.Enabled {
		aopts := []accesslog.Option{
			accesslog.WithLogger(a.logger),
			accesslog.WithExcludePaths(LivezPath, ReadyzPath, s.Metrics.Path),
			accesslog.WithSampleRate(s.AccessLog.SampleRate),
			accesslog.WithSlowThreshold(s.AccessLog.SlowThreshold),
		}
		if s.AccessLog.ErrorsOnly {
			aopts = append(aopts, accesslog.WithErrorsOnly())
		}
		finishers = append(finishers, accesslog.New(aopts...))
	}
	if a.metrics != nil {
		finishers = append(finishers, a.metrics.Finisher())
	}
	return append(opts, pipeline.WithStages(stages...), pipeline.WithFinishers(finishers...)), nil
}

func registry(s *Settings) *converter.Registry {
	copts := []converter.Option{converter.WithMaxBodyBytes(s.Converters.MaxBodyBytes)}
	if s.Converters.Strict {
		copts = append(copts, converter.WithStrict())
	}
	reg := converter.Default(copts...)
	var extra []converter.Converter
	if s.Converters.YAML {
		extra = append(extra, yaml.New(copts...))
	}
	if s.Converters.TOML {
		extra = append(extra, toml.New(copts...))
	}
	if s.Converters.MsgPack {
		extra = append(extra, msgpack.New(msgpack.WithSettings(copts...)))
	}
	if s.Converters.Proto {
		extra = append(extra, proto.New(copts...))
	}
	return reg.With(extra...)
}

func (a *App) mountHealth() {
	a.router.HandleFunc(LivezPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet, http.MethodHead)
	a.router.HandleFunc(ReadyzPath, func(w http.ResponseWriter, _ *http.Request) {
		if !a.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet, http.MethodHead)
	if a.metrics != nil {
		if h, err := a.metrics.Handler(); err == nil {
			a.router.Handle(a.settings.Metrics.Path, h).Methods(http.MethodGet)
		}
	}
}

// Mount serves the named method of res at method and path. Paths use
// gorilla/mux templates such as "/orders/{id}"; handlers read the values
// with mux.Vars. With CORS enabled, OPTIONS on the path is routed through
// the same pipeline so preflights are answered.
//
// Example:
//
//	a.Mount(http.MethodPost, "/orders", orders, "Create")
func (a *App) Mount(method, path string, res *resource.Resource, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	endpoint := a.pipeline.Endpoint(res, name)
	a.router.Handle(path, endpoint).Methods(method)
	a.routes = append(a.routes, Route{Method: method, Path: path, Resource: res.Name(), Handler: name})
	if a.policy != nil && method != http.MethodOptions && !a.preflight[path] {
		a.preflight[path] = true
		a.router.Handle(path, endpoint).Methods(http.MethodOptions)
	}
}

// Handler returns the router serving every mounted endpoint.
func (a *App) Handler() http.Handler { return a.router }

// Pipeline returns the request pipeline.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Logger returns the application logger.
func (a *App) Logger() *logging.Logger { return a.logger }

// Settings returns the settings the app was built with.
func (a *App) Settings() *Settings { return a.settings }

// Routes returns the mounted routes in mounting order.
func (a *App) Routes() []Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.routes)
}

// Ready reports whether the server is accepting requests.
func (a *App) Ready() bool { return a.ready.Load() }

var errAlreadyServing = errors.New("app: already serving")
