// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "suauth",
		Subcommands: []*Command{
			{
				Name: "policy",
				Subcommands: []*Command{
					{
						Name: "grant",
						Run: func(args []string) error {
							called = "policy grant"
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute([]string{"policy", "grant", "10123"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "policy grant" {
		t.Errorf("dispatched to %q, want %q", called, "policy grant")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "10123" {
		t.Errorf("args = %v, want [10123]", receivedArgs)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var minutes int
	command := &Command{
		Name: "grant",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("grant", pflag.ContinueOnError)
			flagSet.IntVar(&minutes, "minutes", 0, "")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	if err := command.Execute([]string{"--minutes", "30"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if minutes != 30 {
		t.Errorf("minutes = %d, want 30", minutes)
	}
}

func TestCommand_Execute_SuggestsSubcommand(t *testing.T) {
	root := &Command{
		Name:       "suauth",
		HelpOutput: &bytes.Buffer{},
		Subcommands: []*Command{
			{Name: "policy", Run: func([]string) error { return nil }},
			{Name: "settings", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute([]string{"polcy"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "policy"`) {
		t.Fatalf("Execute() error = %v, want a policy suggestion", err)
	}
}

func TestCommand_Execute_SuggestsFlag(t *testing.T) {
	command := &Command{
		Name: "sign",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sign", pflag.ContinueOnError)
			flagSet.String("target", "/boot", "")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	err := command.Execute([]string{"--targt", "/recovery"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --target") {
		t.Fatalf("Execute() error = %v, want a --target suggestion", err)
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	var help bytes.Buffer
	root := &Command{
		Name:       "suauth",
		HelpOutput: &help,
		Subcommands: []*Command{
			{Name: "boot", Summary: "Sign and verify boot images", Run: func([]string) error { return nil }},
		},
	}

	if err := root.Execute(nil); err == nil {
		t.Fatal("Execute() with no args succeeded")
	}
	if !strings.Contains(help.String(), "Sign and verify boot images") {
		t.Errorf("help output missing subcommand summary:\n%s", help.String())
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	command := &Command{
		Name:        "verify",
		Description: "Verify a boot image signature.",
		Examples: []Example{
			{Description: "Verify against the embedded certificate", Command: "suauth boot verify boot.img"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			flagSet.String("cert", "", "trusted certificate")
			return flagSet
		},
	}
	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()
	for _, want := range []string{"Verify a boot image signature.", "--cert", "suauth boot verify boot.img"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q:\n%s", want, output)
		}
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "log", 3},
		{"log", "log", 0},
		{"polcy", "policy", 1},
		{"sign", "size", 2},
		{"verify", "", 6},
	}
	for _, c := range cases {
		if got := levenshtein(c.a, c.b); got != c.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestEmitJSON(t *testing.T) {
	var buffer bytes.Buffer
	output := JSONOutput{}
	if done, _ := output.EmitJSON(&buffer, []int(nil)); done {
		t.Fatal("EmitJSON wrote output without --json")
	}

	output.OutputJSON = true
	done, err := output.EmitJSON(&buffer, []int(nil))
	if !done || err != nil {
		t.Fatalf("EmitJSON = %v, %v", done, err)
	}
	if got := strings.TrimSpace(buffer.String()); got != "[]" {
		t.Fatalf("EmitJSON wrote %q, want []", got)
	}
}
