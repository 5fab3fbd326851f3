// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/suauth/cmd/suauth/cli"
	"github.com/bureau-foundation/suauth/cmd/suauth/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own verdict return an exit code
		// without a message.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &commands.Env{
		Context: ctx,
		Stdout:  os.Stdout,
		Logger:  cli.NewCommandLogger(slog.LevelWarn),
	}
	return commands.Root(env).Execute(os.Args[1:])
}
