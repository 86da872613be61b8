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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rivaas.dev/rest/app"
	"rivaas.dev/rest/config"
	"rivaas.dev/rest/internal/orders"
	"rivaas.dev/rest/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// defaultConfigFile is read when present and --config is not given.
const defaultConfigFile = "restd.yaml"

type rootOptions struct {
	configFile string
	consulKey  string
	addr       string
	env        string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:   "restd",
		Short: "Orders REST service",
		Long: `restd serves the orders resource. Settings come from a YAML, JSON or
TOML file, an optional Consul KV entry, a .env file and RESTD_* environment
variables, in that order.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&o.configFile, "config", "c", "", "config file path (default "+defaultConfigFile+" if present)")
	root.PersistentFlags().StringVar(&o.consulKey, "consul", "", "Consul KV key holding a settings document, e.g. services/restd.yaml")
	root.PersistentFlags().StringVar(&o.env, "env", "", "environment override: development or production")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := o.build(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.Start(ctx)
		},
	}
	serve.Flags().StringVar(&o.addr, "addr", "", "listen address, overrides server.addr")

	routes := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := o.build(cmd.Context(), nil, app.WithLogger(logging.Discard()))
			if err != nil {
				return err
			}
			a.PrintRoutes(cmd.OutOrStdout())
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "restd %s\n", root.Version)
		},
	}

	root.AddCommand(serve, routes, versionCmd)
	return root
}

// build loads settings, applies flag overrides and mounts the orders
// resource.
func (o *rootOptions) build(ctx context.Context, banner io.Writer, opts ...app.Option) (*app.App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	file := config.WithOptionalFile(defaultConfigFile)
	if o.configFile != "" {
		file = config.WithFile(o.configFile)
	}
	sources := []config.Option{file}
	if o.consulKey != "" {
		sources = append(sources, config.WithConsul(o.consulKey))
	}
	s, err := app.LoadSettings(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if o.addr != "" {
		s.Server.Addr = o.addr
	}
	if o.env != "" {
		s.Service.Environment = o.env
	}

	a, err := app.New(s, append([]app.Option{app.WithBannerOutput(banner)}, opts...)...)
	if err != nil {
		return nil, err
	}
	res, err := orders.Resource(orders.NewStore())
	if err != nil {
		return nil, err
	}
	for _, r := range orders.Routes {
		a.Mount(r.Method, r.Path, res, r.Name)
	}
	return a, nil
}
