// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/suauth/lib/clock"
	"github.com/bureau-foundation/suauth/lib/config"
	"github.com/bureau-foundation/suauth/lib/decision"
	"github.com/bureau-foundation/suauth/lib/pkginfo"
	"github.com/bureau-foundation/suauth/lib/policy"
	"github.com/bureau-foundation/suauth/lib/sudb"
	"github.com/bureau-foundation/suauth/lib/sulog"
)

// Env carries what every command needs from the process.
type Env struct {
	Context context.Context
	Stdout  io.Writer
	Logger  *slog.Logger
	Clock   clock.Clock
}

func (e *Env) withDefaults() *Env {
	if e.Context == nil {
		e.Context = context.Background()
	}
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Logger == nil {
		e.Logger = slog.New(slog.DiscardHandler)
	}
	if e.Clock == nil {
		e.Clock = clock.Real()
	}
	return e
}

// configFlag registers --config on flagSet.
func configFlag(flagSet *pflag.FlagSet, path *string) {
	flagSet.StringVar(path, "config", "", "path to suauth.yaml (default: $"+config.EnvVar+")")
}

// loadConfig loads path, or the file named by SUAUTH_CONFIG when path
// is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// stores is the database and the stores opened on it.
type stores struct {
	db       *sudb.DB
	policies *policy.Store
	logs     *sulog.Store
	defaults sudb.Settings
}

func (s *stores) Close() error { return s.db.Close() }

// policyKey maps uid the way the daemon does under the current
// multiuser mode.
func (s *stores) policyKey(ctx context.Context, uid int) int {
	return decision.PolicyKey(uid, s.db.LoadSettings(ctx, s.defaults))
}

// openStores opens the database named by the config at configPath.
func (e *Env) openStores(configPath string) (*stores, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	defaults, err := cfg.Settings()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	location, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.Database), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Policy reads check each row against packages.list, so an
	// unreadable list is fatal rather than silently revoking rows.
	resolver, err := pkginfo.NewPackagesList(pkginfo.PackagesListConfig{
		Path:   cfg.Paths.PackagesList,
		Logger: e.Logger,
	})
	if err != nil {
		return nil, err
	}

	db, err := sudb.Open(e.Context, sudb.Config{Path: cfg.Paths.Database, Logger: e.Logger})
	if err != nil {
		return nil, err
	}
	policies, err := policy.NewStore(policy.Config{
		DB:       db,
		Resolver: resolver,
		Clock:    e.Clock,
		Logger:   e.Logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	logs, err := sulog.NewStore(sulog.Config{
		DB:                   db,
		DefaultRetentionDays: defaults.LogTimeoutDays,
		Location:             location,
		DayLayout:            cfg.Log.DateLayout,
		Clock:                e.Clock,
		Logger:               e.Logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &stores{db: db, policies: policies, logs: logs, defaults: defaults}, nil
}

// writeFileAtomic writes data to a temporary file next to path and
// renames it into place.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(temp.Name())
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return err
	}
	if err := temp.Chmod(mode); err != nil {
		temp.Close()
		return err
	}
	if err := temp.Close(); err != nil {
		return err
	}
	return os.Rename(temp.Name(), path)
}
