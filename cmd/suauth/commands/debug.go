// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/suauth/cmd/suauth/cli"
	"github.com/bureau-foundation/suauth/lib/codec"
	"github.com/bureau-foundation/suauth/lib/service"
	"github.com/bureau-foundation/suauth/lib/sudb"
	"github.com/bureau-foundation/suauth/lib/suproto"
)

func debugCommand(env *Env) *cli.Command {
	return &cli.Command{
		Name:    "debug",
		Summary: "Talk to a running suauthd",
		Subcommands: []*cli.Command{
			debugRequestCommand(env),
			debugStatusCommand(env),
		},
	}
}

func debugRequestCommand(env *Env) *cli.Command {
	var (
		configPath string
		uid        int
		pid        int
		toUID      int
		command    string
		noTimeout  bool
		wait       time.Duration
	)
	return &cli.Command{
		Name:    "request",
		Summary: "Submit a root request the way the broker does",
		Description: `Create a request socket, ask the daemon to decide it, and print the
verdict. The control socket only accepts broker UIDs, so this normally
runs as root.`,
		Usage: "suauth debug request --uid <uid> [flags]",
		Examples: []cli.Example{
			{Description: "Ask on behalf of Termux", Command: "suauth debug request --uid 10123 --command 'id -u'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("request", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			flagSet.IntVar(&uid, "uid", -1, "requesting UID (required)")
			flagSet.IntVar(&pid, "pid", os.Getpid(), "requesting PID")
			flagSet.IntVar(&toUID, "to-uid", 0, "target UID")
			flagSet.StringVar(&command, "command", "", "command line shown to the user")
			flagSet.BoolVar(&noTimeout, "no-timeout", false, "prompt without a countdown")
			flagSet.DurationVar(&wait, "wait", 5*time.Minute, "how long to wait for the verdict")
			return flagSet
		},
		Run: func(args []string) error {
			if uid < 0 {
				return fmt.Errorf("--uid is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			directory, err := os.MkdirTemp("", "suauth-request-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(directory)
			socketPath := filepath.Join(directory, "request.sock")
			listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: socketPath, Net: "unix"})
			if err != nil {
				return fmt.Errorf("creating request socket: %w", err)
			}
			defer listener.Close()

			control := service.NewClient(cfg.Paths.ControlSocket)
			fields := map[string]any{"socket": socketPath, "timeout": !noTimeout}
			if err := control.Call(env.Context, "request", fields, nil); err != nil {
				return err
			}

			listener.SetDeadline(time.Now().Add(wait))
			conn, err := listener.Accept()
			if err != nil {
				return fmt.Errorf("waiting for the daemon: %w", err)
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(wait))

			if err := suproto.WriteRequest(conn, suproto.RequestFields(uid, pid, toUID, command)); err != nil {
				return err
			}
			allow, err := suproto.ReadVerdict(conn)
			if err != nil {
				return err
			}
			if allow {
				fmt.Fprintln(env.Stdout, cli.Verdict(true, "ALLOW"))
				return nil
			}
			fmt.Fprintln(env.Stdout, cli.Verdict(false, "DENY"))
			return &cli.ExitError{Code: 1}
		},
	}
}

type daemonStatus struct {
	Version       string         `cbor:"version" json:"version"`
	VersionCode   int            `cbor:"version_code" json:"version_code"`
	UptimeSeconds float64        `cbor:"uptime_seconds" json:"uptime_seconds"`
	Pending       int            `cbor:"pending" json:"pending"`
	Waiting       int            `cbor:"waiting" json:"waiting"`
	Settings      map[string]any `cbor:"settings" json:"settings"`
}

func debugStatusCommand(env *Env) *cli.Command {
	var (
		configPath string
		raw        bool
		output     cli.JSONOutput
	)
	return &cli.Command{
		Name:    "status",
		Summary: "Show the daemon's pending requests and settings",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			flagSet.BoolVar(&raw, "raw", false, "print the response in CBOR diagnostic notation")
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			var data codec.RawMessage
			if err := service.NewClient(cfg.Paths.ControlSocket).Call(env.Context, "status", nil, &data); err != nil {
				return err
			}
			if raw {
				notation, err := codec.Diagnose(data)
				if err != nil {
					return err
				}
				fmt.Fprintln(env.Stdout, notation)
				return nil
			}

			var status daemonStatus
			if err := codec.Unmarshal(data, &status); err != nil {
				return fmt.Errorf("decoding status: %w", err)
			}
			if done, err := output.EmitJSON(env.Stdout, status); done {
				return err
			}
			uptime := time.Duration(status.UptimeSeconds * float64(time.Second)).Round(time.Second)
			fmt.Fprintf(env.Stdout, "suauthd %s (code %d)\n", status.Version, status.VersionCode)
			fmt.Fprintf(env.Stdout, "uptime %s, %d pending, %d waiting\n", uptime, status.Pending, status.Waiting)
			tw := tabwriter.NewWriter(env.Stdout, 2, 0, 2, ' ', 0)
			for _, key := range sudb.IntKeys {
				fmt.Fprintf(tw, "  %s\t%v\n", key, status.Settings[key])
			}
			fmt.Fprintf(tw, "  %s\t%v\n", sudb.KeyRequester, status.Settings[sudb.KeyRequester])
			return tw.Flush()
		},
	}
}
