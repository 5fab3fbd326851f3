// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sudb owns the su database: its schema, its migrations, and
// the generic settings tables.
//
// The database holds four tables:
//
//	policies (uid INT PRIMARY KEY, package_name TEXT, policy INT,
//	          until INT, logging INT, notification INT)
//	logs     (from_uid INT, package_name TEXT, app_name TEXT,
//	          from_pid INT, to_uid INT, action INT, time INT,
//	          command TEXT)
//	settings (key TEXT PRIMARY KEY, value INT)
//	strings  (key TEXT PRIMARY KEY, value TEXT)
//
// The policies and logs tables are read and written by the policy and
// sulog packages through [DB.Read] and [DB.Write]. The settings tables
// are exposed here directly, both as raw key/value access and as the
// typed [Settings] snapshot the decision engine consumes.
//
// # Schema versions
//
// The schema version lives in PRAGMA user_version. Open upgrades older
// databases step by step. A database with a newer version than this
// package knows, or one whose upgrade fails, is dropped and recreated
// empty: a corrupt store resets to defaults rather than taking the
// daemon down.
package sudb
