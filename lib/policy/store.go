// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/suauth/lib/clock"
	"github.com/bureau-foundation/suauth/lib/pkginfo"
	"github.com/bureau-foundation/suauth/lib/sudb"
)

// Config holds the dependencies of a Store.
type Config struct {
	DB       *sudb.DB
	Resolver pkginfo.Resolver

	// Clock drives expiry. Defaults to the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Store reads and writes the policies table.
type Store struct {
	db       *sudb.DB
	resolver pkginfo.Resolver
	clock    clock.Clock
	logger   *slog.Logger
}

// NewStore validates cfg and returns a Store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.DB == nil {
		return nil, errors.New("policy: DB is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("policy: Resolver is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		db:       cfg.DB,
		resolver: cfg.Resolver,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}, nil
}

const selectColumns = "uid, package_name, policy, until, logging, notification"

func scanPolicy(stmt *sqlite.Stmt) Policy {
	return Policy{
		UID:          stmt.ColumnInt(0),
		PackageName:  stmt.ColumnText(1),
		Decision:     Decision(stmt.ColumnInt(2)),
		Until:        stmt.ColumnInt64(3),
		Logging:      stmt.ColumnBool(4),
		Notification: stmt.ColumnBool(5),
	}
}

// NewPolicy builds an Interactive policy for uid from the resolved
// package, with logging and notification enabled. Nothing is stored.
func (s *Store) NewPolicy(ctx context.Context, uid int) (Policy, error) {
	pkg, err := s.resolver.Resolve(ctx, uid)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: resolving uid %d: %w", uid, err)
	}
	return Policy{
		UID:          uid,
		PackageName:  pkg.Name,
		AppName:      pkg.Label,
		Decision:     Interactive,
		Logging:      true,
		Notification: true,
	}, nil
}

// Get returns the live policy for uid, or nil if there is none.
// Expired rows are purged first. A row whose package no longer owns
// the UID, or whose decision is out of range, is deleted and reported
// as absent.
func (s *Store) Get(ctx context.Context, uid int) (*Policy, error) {
	if _, err := s.PurgeExpired(ctx); err != nil {
		return nil, err
	}

	var (
		row   Policy
		found bool
	)
	err := s.db.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT "+selectColumns+" FROM policies WHERE uid = ?", &sqlitex.ExecOptions{
			Args: []any{uid},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row = scanPolicy(stmt)
				found = true
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("policy: reading uid %d: %w", uid, err)
	}
	if !found {
		return nil, nil
	}

	live, err := s.revalidate(ctx, row)
	if err != nil {
		return nil, err
	}
	if live == nil {
		if err := s.Delete(ctx, uid); err != nil {
			return nil, err
		}
	}
	return live, nil
}

// revalidate resolves the row's package. It returns nil for a row that
// should be deleted.
func (s *Store) revalidate(ctx context.Context, row Policy) (*Policy, error) {
	if !row.Decision.Valid() {
		s.logger.Warn("dropping malformed policy",
			"uid", row.UID,
			"package", row.PackageName,
			"decision", int(row.Decision),
		)
		return nil, nil
	}

	pkg, err := s.resolver.Resolve(ctx, row.UID)
	if errors.Is(err, pkginfo.ErrUnknownUID) {
		s.logger.Info("dropping policy for uninstalled package", "uid", row.UID, "package", row.PackageName)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("policy: resolving uid %d: %w", row.UID, err)
	}
	if pkg.Name != row.PackageName {
		s.logger.Info("dropping policy for reassigned uid",
			"uid", row.UID,
			"package", row.PackageName,
			"current_package", pkg.Name,
		)
		return nil, nil
	}

	row.AppName = pkg.Label
	return &row, nil
}

// Upsert inserts p, replacing any existing row for p.UID.
func (s *Store) Upsert(ctx context.Context, p Policy) error {
	if !p.Decision.Valid() {
		return fmt.Errorf("policy: invalid decision %d for uid %d", int(p.Decision), p.UID)
	}
	err := s.db.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT OR REPLACE INTO policies ("+selectColumns+") VALUES (?, ?, ?, ?, ?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{p.UID, p.PackageName, int(p.Decision), p.Until, p.Logging, p.Notification},
			})
	})
	if err != nil {
		return fmt.Errorf("policy: writing uid %d: %w", p.UID, err)
	}
	s.logger.Debug("policy stored",
		"uid", p.UID,
		"package", p.PackageName,
		"decision", p.Decision.String(),
		"until", p.Until,
	)
	return nil
}

// Delete removes the policy for uid. Deleting an absent row is not an
// error.
func (s *Store) Delete(ctx context.Context, uid int) error {
	err := s.db.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "DELETE FROM policies WHERE uid = ?", &sqlitex.ExecOptions{
			Args: []any{uid},
		})
	})
	if err != nil {
		return fmt.Errorf("policy: deleting uid %d: %w", uid, err)
	}
	return nil
}

// DeleteByPackage removes every policy recorded for the package and
// returns how many were removed.
func (s *Store) DeleteByPackage(ctx context.Context, packageName string) (int, error) {
	var removed int
	err := s.db.Write(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM policies WHERE package_name = ?", &sqlitex.ExecOptions{
			Args: []any{packageName},
		}); err != nil {
			return err
		}
		removed = conn.Changes()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("policy: deleting package %s: %w", packageName, err)
	}
	return removed, nil
}

// PurgeExpired deletes every policy whose deadline has passed and
// returns the number removed.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	now := s.clock.Now().Unix()
	var removed int
	err := s.db.Write(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM policies WHERE until > 0 AND until < ?", &sqlitex.ExecOptions{
			Args: []any{now},
		}); err != nil {
			return err
		}
		removed = conn.Changes()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("policy: purging expired: %w", err)
	}
	if removed > 0 {
		s.logger.Info("expired policies purged", "count", removed)
	}
	return removed, nil
}

// List returns the live policies of one Android user, sorted by
// application name (case-insensitive) then package name. Rows that no
// longer validate are deleted.
func (s *Store) List(ctx context.Context, userID int) ([]Policy, error) {
	if _, err := s.PurgeExpired(ctx); err != nil {
		return nil, err
	}

	var rows []Policy
	err := s.db.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT "+selectColumns+" FROM policies WHERE uid / ? = ?", &sqlitex.ExecOptions{
			Args: []any{pkginfo.PerUserRange, userID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, scanPolicy(stmt))
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("policy: listing user %d: %w", userID, err)
	}

	policies := make([]Policy, 0, len(rows))
	var stale []int
	for _, row := range rows {
		live, err := s.revalidate(ctx, row)
		if err != nil {
			return nil, err
		}
		if live == nil {
			stale = append(stale, row.UID)
			continue
		}
		policies = append(policies, *live)
	}

	for _, uid := range stale {
		if err := s.Delete(ctx, uid); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(policies, func(i, j int) bool {
		left, right := strings.ToLower(policies[i].AppName), strings.ToLower(policies[j].AppName)
		if left != right {
			return left < right
		}
		return policies[i].PackageName < policies[j].PackageName
	})
	return policies, nil
}
