// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sulog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/suauth/lib/clock"
	"github.com/bureau-foundation/suauth/lib/pkginfo"
	"github.com/bureau-foundation/suauth/lib/sudb"
)

// DefaultDayLayout formats the day labels returned by List.
const DefaultDayLayout = "Jan 2, 2006"

// Entry is one audit record.
type Entry struct {
	FromUID     int    `cbor:"from_uid" json:"from_uid"`
	FromPID     int    `cbor:"from_pid" json:"from_pid"`
	ToUID       int    `cbor:"to_uid" json:"to_uid"`
	PackageName string `cbor:"package_name" json:"package_name"`
	AppName     string `cbor:"app_name" json:"app_name"`
	Command     string `cbor:"command" json:"command"`

	// Granted is true when root was allowed.
	Granted bool `cbor:"granted" json:"granted"`

	// Time is stored with millisecond precision.
	Time time.Time `cbor:"time" json:"time"`
}

// Day groups the entries that share one formatted date.
type Day struct {
	Label   string  `cbor:"label" json:"label"`
	Entries []Entry `cbor:"entries" json:"entries"`
}

// Config holds the dependencies of a Store.
type Config struct {
	DB *sudb.DB

	// DefaultRetentionDays applies when su_log_timeout is unset.
	// Defaults to 14.
	DefaultRetentionDays int

	// Location and DayLayout control day grouping. Defaults are the
	// local zone and DefaultDayLayout.
	Location  *time.Location
	DayLayout string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Store reads and writes the logs table.
type Store struct {
	db            *sudb.DB
	retentionDays int
	location      *time.Location
	dayLayout     string
	clock         clock.Clock
	logger        *slog.Logger
}

// NewStore validates cfg and returns a Store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DB == nil {
		return nil, errors.New("sulog: DB is required")
	}
	store := &Store{
		db:            cfg.DB,
		retentionDays: cfg.DefaultRetentionDays,
		location:      cfg.Location,
		dayLayout:     cfg.DayLayout,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
	}
	if store.retentionDays <= 0 {
		store.retentionDays = sudb.DefaultSettings().LogTimeoutDays
	}
	if store.location == nil {
		store.location = time.Local
	}
	if store.dayLayout == "" {
		store.dayLayout = DefaultDayLayout
	}
	if store.clock == nil {
		store.clock = clock.Real()
	}
	if store.logger == nil {
		store.logger = slog.New(slog.DiscardHandler)
	}
	return store, nil
}

// Append records an entry. A zero Time is stamped with the current
// time.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = s.clock.Now()
	}
	if _, err := s.Purge(ctx); err != nil {
		return err
	}
	err := s.db.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO logs (from_uid, package_name, app_name, from_pid, to_uid, action, time, command)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{
					entry.FromUID, entry.PackageName, entry.AppName, entry.FromPID,
					entry.ToUID, entry.Granted, entry.Time.UnixMilli(), entry.Command,
				},
			})
	})
	if err != nil {
		return fmt.Errorf("sulog: appending entry for uid %d: %w", entry.FromUID, err)
	}
	return nil
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) error {
	err := s.db.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteTransient(conn, "DELETE FROM logs", nil)
	})
	if err != nil {
		return fmt.Errorf("sulog: clearing: %w", err)
	}
	s.logger.Info("audit log cleared")
	return nil
}

// Purge deletes entries older than the retention window and returns
// how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	days := s.db.IntSetting(ctx, sudb.KeyLogTimeout, s.retentionDays)
	cutoff := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()

	var removed int
	err := s.db.Write(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM logs WHERE time < ?", &sqlitex.ExecOptions{
			Args: []any{cutoff},
		}); err != nil {
			return err
		}
		removed = conn.Changes()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sulog: purging: %w", err)
	}
	if removed > 0 {
		s.logger.Debug("old audit entries purged", "count", removed, "retention_days", days)
	}
	return removed, nil
}

// List returns the entries of one Android user, newest first, grouped
// by formatted calendar day.
func (s *Store) List(ctx context.Context, userID int) ([]Day, error) {
	if _, err := s.Purge(ctx); err != nil {
		return nil, err
	}

	var days []Day
	err := s.db.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT from_uid, package_name, app_name, from_pid, to_uid, action, time, command
			 FROM logs WHERE from_uid / ? = ? ORDER BY time DESC`,
			&sqlitex.ExecOptions{
				Args: []any{pkginfo.PerUserRange, userID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					entry := Entry{
						FromUID:     stmt.ColumnInt(0),
						PackageName: stmt.ColumnText(1),
						AppName:     stmt.ColumnText(2),
						FromPID:     stmt.ColumnInt(3),
						ToUID:       stmt.ColumnInt(4),
						Granted:     stmt.ColumnBool(5),
						Time:        time.UnixMilli(stmt.ColumnInt64(6)).In(s.location),
						Command:     stmt.ColumnText(7),
					}
					label := entry.Time.Format(s.dayLayout)
					if len(days) == 0 || days[len(days)-1].Label != label {
						days = append(days, Day{Label: label})
					}
					last := &days[len(days)-1]
					last.Entries = append(last.Entries, entry)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("sulog: listing user %d: %w", userID, err)
	}
	return days, nil
}
