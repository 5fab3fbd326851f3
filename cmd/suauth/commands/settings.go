// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/suauth/cmd/suauth/cli"
	"github.com/bureau-foundation/suauth/lib/sudb"
)

func settingsCommand(env *Env) *cli.Command {
	return &cli.Command{
		Name:    "settings",
		Summary: "Show and change daemon settings",
		Subcommands: []*cli.Command{
			settingsShowCommand(env),
			settingsSetCommand(env),
			settingsResetCommand(env),
		},
	}
}

// displayValue renders an integer setting by name where it has one.
func displayValue(key string, value int) string {
	switch key {
	case sudb.KeyRootAccess:
		return sudb.RootAccess(value).String()
	case sudb.KeyMultiuserMode:
		return sudb.MultiuserMode(value).String()
	case sudb.KeyMountNamespace:
		return sudb.MountNamespace(value).String()
	case sudb.KeyAutoResponse:
		return sudb.AutoResponse(value).String()
	case sudb.KeyNotification:
		return sudb.NotificationType(value).String()
	case sudb.KeyRequestTimeout:
		return fmt.Sprintf("%ds", value)
	case sudb.KeyLogTimeout:
		return fmt.Sprintf("%d days", value)
	}
	return fmt.Sprint(value)
}

func settingsShowCommand(env *Env) *cli.Command {
	var (
		configPath string
		output     cli.JSONOutput
	)
	return &cli.Command{
		Name:    "show",
		Summary: "Print the effective settings",
		Description: `Print the effective settings. Values stored in the database override the
defaults from the configuration file; overridden keys are marked with *.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			stores, err := env.openStores(configPath)
			if err != nil {
				return err
			}
			defer stores.Close()

			settings := stores.db.LoadSettings(env.Context, stores.defaults)
			if done, err := output.EmitJSON(env.Stdout, settings); done {
				return err
			}
			stored, err := stores.db.AllSettings(env.Context)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(env.Stdout, 2, 0, 2, ' ', 0)
			for _, key := range sudb.IntKeys {
				value, _ := settings.Int(key)
				marker := ""
				if _, ok := stored[key]; ok {
					marker = " *"
				}
				fmt.Fprintf(tw, "%s\t%s%s\n", key, displayValue(key, value), marker)
			}
			fmt.Fprintf(tw, "%s\t%s\n", sudb.KeyRequester, settings.Requester)
			for _, key := range sudb.SortedKeys(stored) {
				if !slices.Contains(sudb.IntKeys, key) {
					fmt.Fprintf(tw, "%s\t%d %s\n", key, stored[key], cli.Muted("(unknown)"))
				}
			}
			return tw.Flush()
		},
	}
}

func settingsSetCommand(env *Env) *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "set",
		Summary: "Store a setting in the database",
		Usage:   "suauth settings set <key> <value> [flags]",
		Examples: []cli.Example{
			{Description: "Deny every request that would prompt", Command: "suauth settings set su_auto_response deny"},
			{Description: "Shorten the prompt countdown", Command: "suauth settings set su_request_timeout 5"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("set", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("usage: suauth settings set <key> <value>")
			}
			key, text := args[0], args[1]

			stores, err := env.openStores(configPath)
			if err != nil {
				return err
			}
			defer stores.Close()

			if key == sudb.KeyRequester {
				if err := stores.db.SetStringSetting(env.Context, key, text); err != nil {
					return err
				}
				fmt.Fprintf(env.Stdout, "%s = %s\n", key, text)
				return nil
			}
			value, err := sudb.ParseValue(key, text)
			if err != nil {
				return err
			}
			if err := stores.db.SetSetting(env.Context, key, value); err != nil {
				return err
			}
			fmt.Fprintf(env.Stdout, "%s = %s\n", key, displayValue(key, value))
			return nil
		},
	}
}

func settingsResetCommand(env *Env) *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "reset",
		Summary: "Remove a stored setting so the configured default applies",
		Usage:   "suauth settings reset <key> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("reset", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: suauth settings reset <key>")
			}
			key := args[0]
			stores, err := env.openStores(configPath)
			if err != nil {
				return err
			}
			defer stores.Close()

			switch {
			case key == sudb.KeyRequester:
				err = stores.db.DeleteStringSetting(env.Context, key)
			case slices.Contains(sudb.IntKeys, key):
				err = stores.db.DeleteSetting(env.Context, key)
			default:
				return fmt.Errorf("unknown setting %q", key)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Stdout, "%s reset\n", key)
			return nil
		},
	}
}
