// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/suauth/lib/clock"
	"github.com/bureau-foundation/suauth/lib/config"
	"github.com/bureau-foundation/suauth/lib/process"
	"github.com/bureau-foundation/suauth/lib/service"
	"github.com/bureau-foundation/suauth/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to suauth.yaml (default: $"+config.EnvVar+")")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("suauthd %s\n", version.Info())
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	daemon, err := newDaemon(ctx, cfg, clock.Real(), logger)
	if err != nil {
		return err
	}
	defer daemon.Close()

	socketServer := service.NewSocketServer(cfg.Paths.ControlSocket, logger)
	socketServer.AllowUIDs(cfg.Broker.AllowedUIDs...)
	socketServer.SetMode(0o660)
	daemon.registerActions(socketServer)

	logger.Info("suauthd running",
		"version", version.Short(),
		"socket", cfg.Paths.ControlSocket,
		"database", cfg.Paths.Database,
		"allowed_uids", cfg.Broker.AllowedUIDs,
	)

	if err := socketServer.Serve(ctx); err != nil {
		return fmt.Errorf("control socket: %w", err)
	}

	logger.Info("shutting down")
	daemon.Wait()
	return nil
}
