// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkginfo

import (
	"context"
	"errors"
)

// PerUserRange is the number of UIDs reserved for each Android user.
const PerUserRange = 100000

// Well-known app ids that never appear in packages.list.
const (
	RootUID  = 0
	ShellUID = 2000
)

// ErrUnknownUID is returned when no package owns the requested UID.
var ErrUnknownUID = errors.New("pkginfo: unknown uid")

// Package describes the owner of a UID.
type Package struct {
	// Name is the package id, e.g. "com.android.shell".
	Name string `cbor:"name" json:"name"`

	// Label is the human-readable application name. Falls back to
	// Name when no label is known.
	Label string `cbor:"label" json:"label"`

	// UID is the app id the package was installed under.
	UID int `cbor:"uid" json:"uid"`
}

// Resolver resolves a UID to its owning package.
type Resolver interface {
	Resolve(ctx context.Context, uid int) (Package, error)
}

// UserID returns the Android user a UID belongs to.
func UserID(uid int) int { return uid / PerUserRange }

// AppID returns the per-user app id of a UID.
func AppID(uid int) int { return uid % PerUserRange }

var builtins = map[int]Package{
	RootUID:  {Name: "root", Label: "root", UID: RootUID},
	ShellUID: {Name: "com.android.shell", Label: "Shell", UID: ShellUID},
}

// Static resolves from a fixed table plus the built-in root and shell
// entries. The zero value resolves only the built-ins.
type Static map[int]Package

// Resolve implements Resolver.
func (s Static) Resolve(_ context.Context, uid int) (Package, error) {
	if pkg, ok := s[AppID(uid)]; ok {
		return withLabel(pkg), nil
	}
	if pkg, ok := builtins[AppID(uid)]; ok {
		return pkg, nil
	}
	return Package{}, ErrUnknownUID
}

func withLabel(pkg Package) Package {
	if pkg.Label == "" {
		pkg.Label = pkg.Name
	}
	return pkg
}
