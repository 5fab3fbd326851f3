// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Suauth is the operator CLI for the root request manager.
//
//	suauth policy list|grant|deny|revoke   per-app policies
//	suauth log list|clear                  audit log
//	suauth settings show|set|reset         database settings
//	suauth boot size|sign|verify|seal-key  boot image signatures
//	suauth debug request|status            talk to a running suauthd
//	suauth version
//
// Database commands open the su database directly and are safe to run
// while suauthd is running. Run "suauth <command> --help" for flags.
package main
