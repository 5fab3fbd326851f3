// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/suauth/cmd/suauth/cli"
)

func logCommand(env *Env) *cli.Command {
	return &cli.Command{
		Name:    "log",
		Summary: "Show or clear the root request audit log",
		Subcommands: []*cli.Command{
			logListCommand(env),
			logClearCommand(env),
		},
	}
}

func logListCommand(env *Env) *cli.Command {
	var (
		configPath string
		userID     int
		output     cli.JSONOutput
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List audit entries grouped by day, newest first",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			flagSet.IntVar(&userID, "user", 0, "Android user id")
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			stores, err := env.openStores(configPath)
			if err != nil {
				return err
			}
			defer stores.Close()

			days, err := stores.logs.List(env.Context, userID)
			if err != nil {
				return err
			}
			if done, err := output.EmitJSON(env.Stdout, days); done {
				return err
			}
			if len(days) == 0 {
				fmt.Fprintln(env.Stdout, cli.Muted("no entries"))
				return nil
			}
			for i, day := range days {
				if i > 0 {
					fmt.Fprintln(env.Stdout)
				}
				fmt.Fprintln(env.Stdout, cli.Heading(day.Label))
				for _, entry := range day.Entries {
					verdict := "denied "
					if entry.Granted {
						verdict = "granted"
					}
					fmt.Fprintf(env.Stdout, "  %s  %s  %s (uid %d, pid %d) -> uid %d",
						entry.Time.Format("15:04:05"), cli.Verdict(entry.Granted, verdict),
						entry.AppName, entry.FromUID, entry.FromPID, entry.ToUID)
					if entry.Command != "" {
						fmt.Fprintf(env.Stdout, ": %s", entry.Command)
					}
					fmt.Fprintln(env.Stdout)
				}
			}
			return nil
		},
	}
}

func logClearCommand(env *Env) *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "clear",
		Summary: "Delete every audit entry",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("clear", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			return flagSet
		},
		Run: func(args []string) error {
			stores, err := env.openStores(configPath)
			if err != nil {
				return err
			}
			defer stores.Close()
			if err := stores.logs.Clear(env.Context); err != nil {
				return err
			}
			fmt.Fprintln(env.Stdout, "audit log cleared")
			return nil
		},
	}
}
