// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkginfo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PackagesList resolves UIDs from an Android packages.list file. The
// file is re-read when its size or modification time changes.
type PackagesList struct {
	path   string
	labels map[string]string
	logger *slog.Logger

	mu      sync.Mutex
	modTime time.Time
	size    int64
	byUID   Static
}

// PackagesListConfig configures a PackagesList.
type PackagesListConfig struct {
	// Path is the packages.list file. Required.
	Path string

	// Labels maps package names to display names. packages.list does
	// not carry labels; without an entry the package name is shown.
	Labels map[string]string

	Logger *slog.Logger
}

// NewPackagesList creates a resolver and performs the first load. A
// missing file is an error; a later failed reload keeps the last good
// table.
func NewPackagesList(cfg PackagesListConfig) (*PackagesList, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("pkginfo: packages list path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	list := &PackagesList{path: cfg.Path, labels: cfg.Labels, logger: logger}
	if err := list.reload(); err != nil {
		return nil, err
	}
	return list, nil
}

// Resolve implements Resolver.
func (l *PackagesList) Resolve(ctx context.Context, uid int) (Package, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.reloadLocked(); err != nil {
		l.logger.Warn("reloading packages list failed, using cached table",
			"path", l.path,
			"error", err,
		)
	}
	return l.byUID.Resolve(ctx, uid)
}

func (l *PackagesList) reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reloadLocked()
}

func (l *PackagesList) reloadLocked() error {
	info, err := os.Stat(l.path)
	if err != nil {
		return fmt.Errorf("pkginfo: %w", err)
	}
	if l.byUID != nil && info.ModTime().Equal(l.modTime) && info.Size() == l.size {
		return nil
	}

	file, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("pkginfo: %w", err)
	}
	defer file.Close()

	table, err := ParsePackagesList(file)
	if err != nil {
		return fmt.Errorf("pkginfo: %s: %w", l.path, err)
	}
	for uid, pkg := range table {
		if label, ok := l.labels[pkg.Name]; ok {
			pkg.Label = label
			table[uid] = pkg
		}
	}

	l.byUID = table
	l.modTime = info.ModTime()
	l.size = info.Size()
	l.logger.Debug("packages list loaded", "path", l.path, "packages", len(table))
	return nil
}

// ParsePackagesList parses the packages.list format: one package per
// line, whitespace-separated, name first and uid second. Remaining
// columns are ignored. Packages sharing a UID keep the first entry.
func ParsePackagesList(r io.Reader) (Static, error) {
	table := make(Static)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: want at least 2 fields, got %d", line, len(fields))
		}
		uid, err := strconv.Atoi(fields[1])
		if err != nil || uid < 0 {
			return nil, fmt.Errorf("line %d: invalid uid %q", line, fields[1])
		}
		if _, exists := table[uid]; exists {
			continue
		}
		table[uid] = Package{Name: fields[0], Label: fields[0], UID: uid}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
