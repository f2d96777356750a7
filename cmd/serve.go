// Copyright (C) 2024 The Dagu Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/metno/rove/internal/catalog"
	"github.com/metno/rove/internal/config"
	"github.com/metno/rove/internal/dag"
	"github.com/metno/rove/internal/logger"
	"github.com/metno/rove/internal/opshttp"
	"github.com/metno/rove/internal/registry"
	"github.com/metno/rove/internal/rpc"
	"github.com/metno/rove/internal/scheduler"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the RPC and ops HTTP surfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), quiet)
		},
	}
}

func runServe(ctx context.Context, quiet bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logOpts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if quiet {
		logOpts = append(logOpts, logger.WithQuiet())
	}
	log := logger.NewLogger(logOpts...)
	ctx = logger.WithLogger(ctx, log)

	cf, err := config.LoadCatalogFile(cfg.CatalogFile)
	if err != nil {
		logger.Warn(ctx, "no catalog file loaded, using compiled-in test battery and no data sources", "error", err)
	}
	sw, err := config.BuildSwitch(ctx, cf)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	regs := registry.Default()
	if len(cf.Tests) > 0 {
		regs, err = config.BuildRegistrations(cf)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	cat, err := catalog.Build(regs)
	if err != nil {
		return fmt.Errorf("serve: build catalog: %w", err)
	}
	d, err := dag.Build(cat)
	if err != nil {
		return fmt.Errorf("serve: build dag: %w", err)
	}

	sc := scheduler.New(cat, d, sw, scheduler.Config{
		IOPoolSize:      cfg.IOPoolSize,
		ComputePoolSize: cfg.ComputePoolSize,
		RequestDeadline: cfg.RequestDeadline,
	})

	grpcServer := grpc.NewServer()
	rpc.RegisterValidationServer(grpcServer, rpc.NewServer(sc))

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("serve: listen %s: %w", cfg.ListenAddress, err)
	}

	opsServer := &http.Server{
		Addr:    cfg.OpsListenAddress,
		Handler: opshttp.NewRouter(cat),
	}

	errc := make(chan error, 2)
	go func() {
		logger.Info(ctx, "rpc surface listening", "addr", cfg.ListenAddress)
		errc <- grpcServer.Serve(lis)
	}()
	go func() {
		logger.Info(ctx, "ops surface listening", "addr", cfg.OpsListenAddress)
		errc <- opsServer.ListenAndServe()
	}()

	listenSignals(func(sig os.Signal) {
		logger.Info(ctx, "shutting down", "signal", sig.String())
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = opsServer.Shutdown(shutdownCtx)
	})

	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func listenSignals(abortFunc func(sig os.Signal)) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		abortFunc(sig)
	}()
}
