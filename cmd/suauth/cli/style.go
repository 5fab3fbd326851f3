// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "github.com/charmbracelet/lipgloss"

var (
	allowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	denyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Verdict renders text green when ok is true and red otherwise.
func Verdict(ok bool, text string) string {
	if ok {
		return allowStyle.Render(text)
	}
	return denyStyle.Render(text)
}

// Heading renders a section heading.
func Heading(text string) string {
	return headingStyle.Render(text)
}

// Muted renders secondary text.
func Muted(text string) string {
	return mutedStyle.Render(text)
}
