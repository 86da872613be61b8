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
	"net"
	"net/http"
)

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
//
// Example:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := a.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
func (a *App) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.settings.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.settings.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. The shutdown deadline is
// server.shutdown_timeout, measured from the cancellation.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if !a.ready.CompareAndSwap(false, true) {
		_ = ln.Close()
		return errAlreadyServing
	}
	defer a.ready.Store(false)

	s := a.settings.Server
	server := &http.Server{
		Handler:           a.router,
		ReadTimeout:       s.ReadTimeout,
		ReadHeaderTimeout: s.ReadHeaderTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
		MaxHeaderBytes:    s.MaxHeaderBytes,
	}

	addr := ln.Addr().String()
	a.printStartupBanner(addr)
	a.logger.Info("server starting",
		"address", addr,
		"environment", a.settings.Service.Environment,
		"routes", len(a.Routes()),
		"metrics_enabled", a.metrics != nil,
		"tracing_enabled", a.tracer != nil,
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		a.shutdownObservability(context.Background())
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		a.logger.Info("server shutting down", "reason", context.Cause(ctx))
	}
	a.ready.Store(false)

	// ctx is already done; the deadline needs a fresh parent.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shut down: %w", err))
	}
	a.shutdownObservability(shutdownCtx)
	a.logger.Info("server exited", "address", addr)
	return errors.Join(errs...)
}

func (a *App) shutdownObservability(ctx context.Context) {
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics shutdown failed", "error", err)
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown failed", "error", err)
		}
	}
}
