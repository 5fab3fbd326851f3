// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the suauth command tree. A node either runs
// (Run set) or dispatches to Subcommands by its first argument.
type Command struct {
	Name string

	// Summary is the one-line listing in the parent's help.
	Summary string

	// Description replaces Summary at the top of the command's own
	// help.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	Examples []Example

	// Flags builds the command's flag set. It is called for every
	// parse, so bound variables reset to their defaults each time.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	Run func(args []string) error

	// HelpOutput receives help text. Subcommands inherit it from the
	// root; the default is stderr.
	HelpOutput io.Writer

	parent *Command
}

// Example is a commented command line in help output.
type Example struct {
	Description string
	Command     string
}

// Execute runs the command named by args.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.helpOutput())
		return nil
	}
	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return c.dispatch(args[0], args[1:])
	}
	if c.Run == nil {
		c.PrintHelp(c.helpOutput())
		if len(args) == 0 {
			return errors.New("subcommand required")
		}
		return fmt.Errorf("subcommand required (got flag %q)", args[0])
	}

	positional, err := c.parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		c.PrintHelp(c.helpOutput())
		return nil
	}
	if err != nil {
		return err
	}
	return c.Run(positional)
}

func (c *Command) dispatch(name string, args []string) error {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			sub.parent = c
			return sub.Execute(args)
		}
	}
	if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
		return c.usageErrorf("unknown command %q (did you mean %q?)", name, suggestion)
	}
	return c.usageErrorf("unknown command %q", name)
}

func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	err := flagSet.Parse(args)
	switch {
	case err == nil:
		return flagSet.Args(), nil
	case errors.Is(err, pflag.ErrHelp):
		return nil, err
	}

	message := err.Error()
	if strings.HasPrefix(message, "unknown flag") || strings.HasPrefix(message, "unknown shorthand") {
		if suggestion := suggestFlag(args, c.Flags()); suggestion != "" {
			return nil, c.usageErrorf("%s (did you mean %s?)", message, suggestion)
		}
	}
	return nil, c.usageErrorf("%s", message)
}

// usageErrorf formats an error that points the user at --help.
func (c *Command) usageErrorf(format string, args ...any) error {
	return fmt.Errorf(format+"\n\nRun '%s --help' for usage.", append(args, c.fullName())...)
}

// PrintHelp writes the command's help to w.
func (c *Command) PrintHelp(w io.Writer) {
	name := c.fullName()

	if heading := c.Description; heading != "" || c.Summary != "" {
		if heading == "" {
			heading = c.Summary
		}
		fmt.Fprintf(w, "%s\n\n", heading)
	}

	usage := c.Usage
	if usage == "" {
		usage = name + " [flags]"
		if len(c.Subcommands) > 0 {
			usage = name + " <command> [flags]"
		}
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", usage)

	if len(c.Subcommands) > 0 {
		fmt.Fprint(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		tw.Flush()
	}

	if c.Flags != nil {
		if flagUsage := c.Flags().FlagUsages(); flagUsage != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", flagUsage)
		}
	}

	if len(c.Examples) > 0 {
		fmt.Fprint(w, "\nExamples:\n")
		for i, example := range c.Examples {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

func (c *Command) helpOutput() io.Writer {
	for command := c; command != nil; command = command.parent {
		if command.HelpOutput != nil {
			return command.HelpOutput
		}
	}
	return os.Stderr
}

// fullName is the command path from the root, as in "suauth boot sign".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}
