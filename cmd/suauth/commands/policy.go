// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/suauth/cmd/suauth/cli"
	"github.com/bureau-foundation/suauth/lib/policy"
)

func policyCommand(env *Env) *cli.Command {
	return &cli.Command{
		Name:    "policy",
		Summary: "List and edit per-app root policies",
		Subcommands: []*cli.Command{
			policyListCommand(env),
			policySetCommand(env, "grant", "Allow root for a UID", policy.Allow),
			policySetCommand(env, "deny", "Deny root for a UID", policy.Deny),
			policyRevokeCommand(env),
		},
	}
}

func policyListCommand(env *Env) *cli.Command {
	var (
		configPath string
		userID     int
		output     cli.JSONOutput
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List the policies of one Android user",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			flagSet.IntVar(&userID, "user", 0, "Android user id")
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected arguments: %v", args)
			}
			stores, err := env.openStores(configPath)
			if err != nil {
				return err
			}
			defer stores.Close()

			policies, err := stores.policies.List(env.Context, userID)
			if err != nil {
				return err
			}
			if done, err := output.EmitJSON(env.Stdout, policies); done {
				return err
			}
			if len(policies) == 0 {
				fmt.Fprintln(env.Stdout, cli.Muted("no policies"))
				return nil
			}

			now := env.Clock.Now()
			tw := tabwriter.NewWriter(env.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "UID\tAPP\tPACKAGE\tPOLICY\tEXPIRES\tLOG\tNOTIFY")
			for _, p := range policies {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					p.UID, p.AppName, p.PackageName,
					cli.Verdict(p.Decision == policy.Allow, p.Decision.String()),
					expiry(p, now), onOff(p.Logging), onOff(p.Notification))
			}
			return tw.Flush()
		},
	}
}

func expiry(p policy.Policy, now time.Time) string {
	at, ok := p.ExpiresAt()
	if !ok {
		return "never"
	}
	return humanize.RelTime(at, now, "ago", "from now")
}

func onOff(value bool) string {
	if value {
		return "on"
	}
	return "off"
}

func policySetCommand(env *Env, name, summary string, verdict policy.Decision) *cli.Command {
	var (
		configPath string
		minutes    int
		noLog      bool
		noNotify   bool
	)
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("suauth policy %s <uid> [flags]", name),
		Examples: []cli.Example{
			{Description: "Remember for one hour", Command: fmt.Sprintf("suauth policy %s 10123 --minutes 60", name)},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			flagSet.IntVar(&minutes, "minutes", 0, "expire after this many minutes (0 = forever)")
			flagSet.BoolVar(&noLog, "no-log", false, "do not audit requests matched by this policy")
			flagSet.BoolVar(&noNotify, "no-notify", false, "do not notify for requests matched by this policy")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: suauth policy %s <uid>", name)
			}
			uid, err := strconv.Atoi(args[0])
			if err != nil || uid < 0 {
				return fmt.Errorf("invalid uid %q", args[0])
			}
			if minutes < 0 {
				return fmt.Errorf("--minutes must not be negative")
			}

			stores, err := env.openStores(configPath)
			if err != nil {
				return err
			}
			defer stores.Close()

			p, err := stores.policies.NewPolicy(env.Context, stores.policyKey(env.Context, uid))
			if err != nil {
				return err
			}
			p.Decision = verdict
			p.Logging = !noLog
			p.Notification = !noNotify
			if minutes > 0 {
				p.Until = env.Clock.Now().Add(time.Duration(minutes) * time.Minute).Unix()
			}
			if err := stores.policies.Upsert(env.Context, p); err != nil {
				return err
			}
			fmt.Fprintf(env.Stdout, "%s %s (%d), expires %s\n",
				cli.Verdict(verdict == policy.Allow, verdict.String()), p.PackageName, p.UID, expiry(p, env.Clock.Now()))
			return nil
		},
	}
}

func policyRevokeCommand(env *Env) *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "revoke",
		Summary: "Delete the policy of a UID or every policy of a package",
		Usage:   "suauth policy revoke <uid|package> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("revoke", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: suauth policy revoke <uid|package>")
			}
			stores, err := env.openStores(configPath)
			if err != nil {
				return err
			}
			defer stores.Close()

			if uid, err := strconv.Atoi(args[0]); err == nil {
				if err := stores.policies.Delete(env.Context, stores.policyKey(env.Context, uid)); err != nil {
					return err
				}
				fmt.Fprintf(env.Stdout, "revoked uid %d\n", uid)
				return nil
			}
			removed, err := stores.policies.DeleteByPackage(env.Context, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Stdout, "revoked %d %s for %s\n", removed, plural(removed, "policy", "policies"), args[0])
			return nil
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
