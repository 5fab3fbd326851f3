// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the suauth
// operator CLI.
//
// The central type is [Command], a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function. The tree is assembled in cmd/suauth/commands and
// dispatched with [Command.Execute], which parses flags, routes
// subcommands, and prints help with examples.
//
// An unknown subcommand or flag gets the closest known name suggested
// when it is within an edit distance of 3 (suggest.go).
//
// Output helpers: [JSONOutput] adds a --json flag, [NewCommandLogger]
// picks a text or JSON slog handler depending on whether stderr is a
// terminal, and the styles in style.go render verdicts and headings
// with lipgloss.
package cli
