// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sudb

import (
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SchemaVersion is the version Open brings every database to.
const SchemaVersion = 5

const createTables = `
	CREATE TABLE IF NOT EXISTS policies (
		uid          INT,
		package_name TEXT,
		policy       INT,
		until        INT,
		logging      INT,
		notification INT,
		PRIMARY KEY(uid)
	);
	CREATE TABLE IF NOT EXISTS logs (
		from_uid     INT,
		package_name TEXT,
		app_name     TEXT,
		from_pid     INT,
		to_uid       INT,
		action       INT,
		time         INT,
		command      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_logs_time ON logs(time);
	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT,
		value INT,
		PRIMARY KEY(key)
	);
	CREATE TABLE IF NOT EXISTS strings (
		key   TEXT,
		value TEXT,
		PRIMARY KEY(key)
	);
`

const dropTables = `
	DROP TABLE IF EXISTS policies;
	DROP TABLE IF EXISTS policies_old;
	DROP TABLE IF EXISTS logs;
	DROP TABLE IF EXISTS settings;
	DROP TABLE IF EXISTS strings;
`

// upgrades[n] moves a database from version n to n+1. Version 0 is a
// fresh file and jumps straight to the current schema.
var upgrades = map[int]string{
	// Version 1 stored app_name in policies; it is resolved from the
	// package list now.
	1: `
		ALTER TABLE policies RENAME TO policies_old;
		CREATE TABLE policies (
			uid INT, package_name TEXT, policy INT,
			until INT, logging INT, notification INT,
			PRIMARY KEY(uid)
		);
		INSERT INTO policies SELECT uid, package_name, policy, until, logging, notification FROM policies_old;
		DROP TABLE policies_old;
	`,
	// Version 2 stored log times in seconds.
	2: `UPDATE logs SET time = time * 1000;`,
	3: `CREATE TABLE IF NOT EXISTS strings (key TEXT, value TEXT, PRIMARY KEY(key));`,
	// Version 4 stored full multi-user UIDs for policies.
	4: `UPDATE policies SET uid = uid % 100000;`,
}

func migrate(conn *sqlite.Conn, logger *slog.Logger) error {
	version, err := userVersion(conn)
	if err != nil {
		return err
	}
	if version == SchemaVersion {
		return nil
	}

	if version > SchemaVersion {
		logger.Warn("su database is newer than supported, resetting",
			"version", version,
			"supported", SchemaVersion,
		)
		return reset(conn)
	}

	if err := upgrade(conn, version); err != nil {
		logger.Warn("su database upgrade failed, resetting",
			"from_version", version,
			"error", err,
		)
		return reset(conn)
	}

	logger.Info("su database schema ready", "from_version", version, "version", SchemaVersion)
	return nil
}

func upgrade(conn *sqlite.Conn, version int) error {
	if version == 0 {
		if err := sqlitex.ExecuteScript(conn, createTables, nil); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
		return setUserVersion(conn, SchemaVersion)
	}

	for ; version < SchemaVersion; version++ {
		if err := sqlitex.ExecuteScript(conn, upgrades[version], nil); err != nil {
			return fmt.Errorf("upgrading from version %d: %w", version, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, createTables, nil); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return setUserVersion(conn, SchemaVersion)
}

func reset(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteScript(conn, dropTables, nil); err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}
	if err := sqlitex.ExecuteScript(conn, createTables, nil); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return setUserVersion(conn, SchemaVersion)
}

func userVersion(conn *sqlite.Conn) (int, error) {
	var version int
	err := sqlitex.ExecuteTransient(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("reading user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(conn *sqlite.Conn, version int) error {
	// PRAGMA does not take bound parameters.
	if err := sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA user_version = %d", version), nil); err != nil {
		return fmt.Errorf("setting user_version: %w", err)
	}
	return nil
}
