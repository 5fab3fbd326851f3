// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sudb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Integer setting keys stored in the settings table.
const (
	KeyRootAccess     = "root_access"
	KeyMultiuserMode  = "multiuser_mode"
	KeyMountNamespace = "mnt_ns"
	KeyAutoResponse   = "su_auto_response"
	KeyRequestTimeout = "su_request_timeout"
	KeyNotification   = "su_notification"
	KeyLogTimeout     = "su_log_timeout"
)

// KeyRequester is the string setting naming the manager package.
const KeyRequester = "requester"

// IntKeys lists every integer setting key in display order.
var IntKeys = []string{
	KeyRootAccess,
	KeyMultiuserMode,
	KeyMountNamespace,
	KeyAutoResponse,
	KeyRequestTimeout,
	KeyNotification,
	KeyLogTimeout,
}

// ErrNotFound is returned by Setting and StringSetting for a key with no
// stored row.
var ErrNotFound = errors.New("sudb: setting not found")

// RootAccess selects which callers may obtain root at all.
type RootAccess int

const (
	RootAccessDisabled RootAccess = iota
	RootAccessAppsOnly
	RootAccessAdbOnly
	RootAccessAppsAndAdb
)

// MultiuserMode selects how secondary Android users are handled.
type MultiuserMode int

const (
	MultiuserOwnerOnly MultiuserMode = iota
	MultiuserOwnerManaged
	MultiuserUser
)

// MountNamespace selects the mount namespace the root shell joins. The
// broker applies it; suauth only stores and reports it.
type MountNamespace int

const (
	NamespaceGlobal MountNamespace = iota
	NamespaceRequester
	NamespaceIsolate
)

// AutoResponse short-circuits the interactive prompt.
type AutoResponse int

const (
	AutoResponsePrompt AutoResponse = iota
	AutoResponseDeny
	AutoResponseAllow
)

// NotificationType selects how grant/deny notifications are presented.
type NotificationType int

const (
	NotificationNone NotificationType = iota
	NotificationToast
	NotificationBanner
)

var (
	rootAccessNames   = []string{"disabled", "apps", "adb", "apps_and_adb"}
	multiuserNames    = []string{"owner_only", "owner_managed", "user"}
	namespaceNames    = []string{"global", "requester", "isolate"}
	autoResponseNames = []string{"prompt", "deny", "allow"}
	notificationNames = []string{"none", "toast", "notification"}
)

func enumName(names []string, value int) string {
	if value < 0 || value >= len(names) {
		return strconv.Itoa(value)
	}
	return names[value]
}

func parseEnum(kind string, names []string, text string) (int, error) {
	for index, name := range names {
		if name == text {
			return index, nil
		}
	}
	if value, err := strconv.Atoi(text); err == nil && value >= 0 && value < len(names) {
		return value, nil
	}
	return 0, fmt.Errorf("sudb: unknown %s %q (want one of %v)", kind, text, names)
}

func (r RootAccess) String() string       { return enumName(rootAccessNames, int(r)) }
func (m MultiuserMode) String() string    { return enumName(multiuserNames, int(m)) }
func (n MountNamespace) String() string   { return enumName(namespaceNames, int(n)) }
func (a AutoResponse) String() string     { return enumName(autoResponseNames, int(a)) }
func (n NotificationType) String() string { return enumName(notificationNames, int(n)) }

func (r RootAccess) Valid() bool       { return r >= 0 && int(r) < len(rootAccessNames) }
func (m MultiuserMode) Valid() bool    { return m >= 0 && int(m) < len(multiuserNames) }
func (n MountNamespace) Valid() bool   { return n >= 0 && int(n) < len(namespaceNames) }
func (a AutoResponse) Valid() bool     { return a >= 0 && int(a) < len(autoResponseNames) }
func (n NotificationType) Valid() bool { return n >= 0 && int(n) < len(notificationNames) }

// ParseRootAccess accepts a name ("apps_and_adb") or its stored integer.
func ParseRootAccess(text string) (RootAccess, error) {
	value, err := parseEnum("root access mode", rootAccessNames, text)
	return RootAccess(value), err
}

func ParseMultiuserMode(text string) (MultiuserMode, error) {
	value, err := parseEnum("multiuser mode", multiuserNames, text)
	return MultiuserMode(value), err
}

func ParseMountNamespace(text string) (MountNamespace, error) {
	value, err := parseEnum("mount namespace mode", namespaceNames, text)
	return MountNamespace(value), err
}

func ParseAutoResponse(text string) (AutoResponse, error) {
	value, err := parseEnum("auto response", autoResponseNames, text)
	return AutoResponse(value), err
}

func ParseNotificationType(text string) (NotificationType, error) {
	value, err := parseEnum("notification type", notificationNames, text)
	return NotificationType(value), err
}

// ParseValue converts the textual form of the setting named key into
// its stored integer. Enum settings accept names, the rest integers.
func ParseValue(key, text string) (int, error) {
	switch key {
	case KeyRootAccess:
		value, err := ParseRootAccess(text)
		return int(value), err
	case KeyMultiuserMode:
		value, err := ParseMultiuserMode(text)
		return int(value), err
	case KeyMountNamespace:
		value, err := ParseMountNamespace(text)
		return int(value), err
	case KeyAutoResponse:
		value, err := ParseAutoResponse(text)
		return int(value), err
	case KeyNotification:
		value, err := ParseNotificationType(text)
		return int(value), err
	case KeyRequestTimeout, KeyLogTimeout:
		value, err := strconv.Atoi(text)
		if err != nil || value < 0 {
			return 0, fmt.Errorf("sudb: %s must be a non-negative integer, got %q", key, text)
		}
		return value, nil
	}
	return 0, fmt.Errorf("sudb: unknown setting %q", key)
}

// Settings is a typed snapshot of every setting the decision engine and
// the audit log consult.
type Settings struct {
	RootAccess     RootAccess       `json:"root_access"`
	MultiuserMode  MultiuserMode    `json:"multiuser_mode"`
	MountNamespace MountNamespace   `json:"mnt_ns"`
	AutoResponse   AutoResponse     `json:"su_auto_response"`
	RequestTimeout int              `json:"su_request_timeout"`
	Notification   NotificationType `json:"su_notification"`
	LogTimeoutDays int              `json:"su_log_timeout"`
	Requester      string           `json:"requester"`
}

// DefaultSettings returns the built-in defaults used when neither the
// configuration file nor the database provides a value.
func DefaultSettings() Settings {
	return Settings{
		RootAccess:     RootAccessAppsAndAdb,
		MultiuserMode:  MultiuserOwnerOnly,
		MountNamespace: NamespaceRequester,
		AutoResponse:   AutoResponsePrompt,
		RequestTimeout: 10,
		Notification:   NotificationToast,
		LogTimeoutDays: 14,
	}
}

func (s *Settings) intField(key string) *int {
	switch key {
	case KeyRootAccess:
		return (*int)(&s.RootAccess)
	case KeyMultiuserMode:
		return (*int)(&s.MultiuserMode)
	case KeyMountNamespace:
		return (*int)(&s.MountNamespace)
	case KeyAutoResponse:
		return (*int)(&s.AutoResponse)
	case KeyRequestTimeout:
		return &s.RequestTimeout
	case KeyNotification:
		return (*int)(&s.Notification)
	case KeyLogTimeout:
		return &s.LogTimeoutDays
	}
	return nil
}

// Int returns the integer value of key in the snapshot.
func (s Settings) Int(key string) (int, bool) {
	field := s.intField(key)
	if field == nil {
		return 0, false
	}
	return *field, true
}

// LoadSettings overlays the stored settings on defaults. A read that
// fails leaves the default in place and logs a warning, so a damaged
// store never blocks a decision.
func (db *DB) LoadSettings(ctx context.Context, defaults Settings) Settings {
	settings := defaults
	stored, err := db.AllSettings(ctx)
	if err != nil {
		db.logger.Warn("reading settings failed, using defaults", "error", err)
		return settings
	}
	for key, value := range stored {
		if field := settings.intField(key); field != nil {
			*field = value
		}
	}

	requester, err := db.StringSetting(ctx, KeyRequester)
	switch {
	case err == nil:
		settings.Requester = requester
	case errors.Is(err, ErrNotFound):
	default:
		db.logger.Warn("reading requester failed, using default", "error", err)
	}
	return settings
}

// Setting returns the stored integer for key, or ErrNotFound.
func (db *DB) Setting(ctx context.Context, key string) (int, error) {
	var (
		value int
		found bool
	)
	err := db.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM settings WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = stmt.ColumnInt(0)
				found = true
				return nil
			},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("sudb: reading setting %s: %w", key, err)
	}
	if !found {
		return 0, ErrNotFound
	}
	return value, nil
}

// IntSetting returns the stored integer for key, or fallback when the
// row is absent or unreadable.
func (db *DB) IntSetting(ctx context.Context, key string, fallback int) int {
	value, err := db.Setting(ctx, key)
	if err == nil {
		return value
	}
	if !errors.Is(err, ErrNotFound) {
		db.logger.Warn("reading setting failed, using default",
			"key", key,
			"default", fallback,
			"error", err,
		)
	}
	return fallback
}

// SetSetting stores an integer setting.
func (db *DB) SetSetting(ctx context.Context, key string, value int) error {
	err := db.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", &sqlitex.ExecOptions{
			Args: []any{key, value},
		})
	})
	if err != nil {
		return fmt.Errorf("sudb: writing setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes an integer setting so the default applies again.
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	err := db.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "DELETE FROM settings WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{key},
		})
	})
	if err != nil {
		return fmt.Errorf("sudb: deleting setting %s: %w", key, err)
	}
	return nil
}

// AllSettings returns every stored integer setting.
func (db *DB) AllSettings(ctx context.Context) (map[string]int, error) {
	settings := make(map[string]int)
	err := db.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT key, value FROM settings", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				settings[stmt.ColumnText(0)] = stmt.ColumnInt(1)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("sudb: reading settings: %w", err)
	}
	return settings, nil
}

// StringSetting returns the stored string for key, or ErrNotFound.
func (db *DB) StringSetting(ctx context.Context, key string) (string, error) {
	var (
		value string
		found bool
	)
	err := db.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM strings WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = stmt.ColumnText(0)
				found = true
				return nil
			},
		})
	})
	if err != nil {
		return "", fmt.Errorf("sudb: reading string %s: %w", key, err)
	}
	if !found {
		return "", ErrNotFound
	}
	return value, nil
}

// SetStringSetting stores a string setting.
func (db *DB) SetStringSetting(ctx context.Context, key, value string) error {
	err := db.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "INSERT OR REPLACE INTO strings (key, value) VALUES (?, ?)", &sqlitex.ExecOptions{
			Args: []any{key, value},
		})
	})
	if err != nil {
		return fmt.Errorf("sudb: writing string %s: %w", key, err)
	}
	return nil
}

// DeleteStringSetting removes a string setting.
func (db *DB) DeleteStringSetting(ctx context.Context, key string) error {
	err := db.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "DELETE FROM strings WHERE key = ?", &sqlitex.ExecOptions{
			Args: []any{key},
		})
	})
	if err != nil {
		return fmt.Errorf("sudb: deleting string %s: %w", key, err)
	}
	return nil
}

// SortedKeys returns the keys of settings in IntKeys order, followed by
// any unknown keys alphabetically.
func SortedKeys(settings map[string]int) []string {
	known := make(map[string]bool, len(IntKeys))
	var keys []string
	for _, key := range IntKeys {
		known[key] = true
		if _, ok := settings[key]; ok {
			keys = append(keys, key)
		}
	}
	var extra []string
	for key := range settings {
		if !known[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}
