// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/bureau-foundation/suauth/cmd/suauth/cli"
	"github.com/bureau-foundation/suauth/lib/version"
)

// Root returns the suauth command tree.
func Root(env *Env) *cli.Command {
	env = env.withDefaults()
	return &cli.Command{
		Name:    "suauth",
		Summary: "Manage root access policies and boot image signatures",
		Description: `suauth manages the root request daemon's database: per-app policies,
the audit log, and settings. It also signs and verifies boot images.

Commands that touch the database read the configuration from --config
or $SUAUTH_CONFIG.`,
		Subcommands: []*cli.Command{
			policyCommand(env),
			logCommand(env),
			settingsCommand(env),
			bootCommand(env),
			debugCommand(env),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Fprintf(env.Stdout, "suauth %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
