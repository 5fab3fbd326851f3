// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/suauth/lib/sudb"
)

// EnvVar names the environment variable Load reads.
const EnvVar = "SUAUTH_CONFIG"

// Config is the suauth configuration.
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Manager  ManagerConfig  `yaml:"manager"`
	Broker   BrokerConfig   `yaml:"broker"`
	UI       UIConfig       `yaml:"ui"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Log      LogConfig      `yaml:"log"`
}

// PathsConfig configures file locations.
type PathsConfig struct {
	// Root is the base directory; other paths usually live under it
	// via ${SUAUTH_ROOT}.
	Root string `yaml:"root"`

	// Database is the SQLite file holding policies, logs, and
	// settings.
	Database string `yaml:"database"`

	// ControlSocket is where the daemon listens for the broker and
	// the CLI.
	ControlSocket string `yaml:"control_socket"`

	// PackagesList is the Android packages.list used to resolve
	// UIDs to packages.
	PackagesList string `yaml:"packages_list"`

	// UISocket is the socket of the prompt and notification UI. Empty
	// means no UI: interactive requests fail closed.
	UISocket string `yaml:"ui_socket"`

	// SigningKey is an age-encrypted private key used by
	// "suauth boot sign" when no key is given on the command line.
	SigningKey string `yaml:"signing_key"`

	// SigningCertificate is the certificate matching SigningKey.
	SigningCertificate string `yaml:"signing_certificate"`

	// AgeIdentity is the age identity file that decrypts SigningKey.
	AgeIdentity string `yaml:"age_identity"`
}

// ManagerConfig identifies the manager app itself. Requests from it
// are refused so the manager cannot grant itself root.
type ManagerConfig struct {
	// UID is the manager's Android UID. Zero disables the UID check.
	UID int `yaml:"uid"`

	// Package is the manager's package name. The "requester" string
	// setting overrides it.
	Package string `yaml:"package"`
}

// BrokerConfig configures the broker side of the control socket.
type BrokerConfig struct {
	// AllowedUIDs are the peer UIDs permitted on the control socket.
	AllowedUIDs []int `yaml:"allowed_uids"`

	// HandshakeTimeout bounds reading a request from a broker socket.
	HandshakeTimeout string `yaml:"handshake_timeout"`
}

// UIConfig configures calls to the UI socket.
type UIConfig struct {
	// CallTimeout bounds a notification call. Prompt calls are
	// bounded by the request countdown instead.
	CallTimeout string `yaml:"call_timeout"`
}

// DefaultsConfig seeds the settings table. Enumerated settings take
// their symbolic names (see sudb) or the stored integer.
type DefaultsConfig struct {
	RootAccess     string `yaml:"root_access"`
	MultiuserMode  string `yaml:"multiuser_mode"`
	MountNamespace string `yaml:"mount_namespace"`
	AutoResponse   string `yaml:"auto_response"`
	Notification   string `yaml:"notification"`

	// RequestTimeout is the prompt countdown; "0s" disables it.
	// Whole seconds only.
	RequestTimeout string `yaml:"request_timeout"`

	// LogRetentionDays bounds how long audit entries are kept.
	LogRetentionDays int `yaml:"log_retention_days"`
}

// LogConfig configures diagnostics and log rendering.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// DateLayout is the Go time layout for audit log day headings.
	DateLayout string `yaml:"date_layout"`

	// TimeZone is an IANA zone name for day grouping; empty means
	// the local zone.
	TimeZone string `yaml:"time_zone"`
}

// Default returns the default configuration, used as the base that the
// config file is merged over.
func Default() *Config {
	defaults := sudb.DefaultSettings()
	return &Config{
		Paths: PathsConfig{
			Root:          "/data/adb/suauth",
			Database:      "${SUAUTH_ROOT}/su.db",
			ControlSocket: "${SUAUTH_ROOT}/control.sock",
			PackagesList:  "/data/system/packages.list",
		},
		Broker: BrokerConfig{
			AllowedUIDs:      []int{0},
			HandshakeTimeout: "5s",
		},
		UI: UIConfig{
			CallTimeout: "5s",
		},
		Defaults: DefaultsConfig{
			RootAccess:       defaults.RootAccess.String(),
			MultiuserMode:    defaults.MultiuserMode.String(),
			MountNamespace:   defaults.MountNamespace.String(),
			AutoResponse:     defaults.AutoResponse.String(),
			Notification:     defaults.Notification.String(),
			RequestTimeout:   (time.Duration(defaults.RequestTimeout) * time.Second).String(),
			LogRetentionDays: defaults.LogTimeoutDays,
		},
		Log: LogConfig{
			Level:      "info",
			DateLayout: "Jan 2, 2006",
		},
	}
}

// Load loads configuration from the file named by SUAUTH_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your suauth.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path and validates it.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"SUAUTH_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["SUAUTH_ROOT"] = c.Paths.Root // Update for dependent paths.

	for _, path := range []*string{
		&c.Paths.Database,
		&c.Paths.ControlSocket,
		&c.Paths.PackagesList,
		&c.Paths.UISocket,
		&c.Paths.SigningKey,
		&c.Paths.SigningCertificate,
		&c.Paths.AgeIdentity,
	} {
		*path = expandVars(*path, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Database == "" {
		errs = append(errs, errors.New("paths.database is required"))
	}
	if c.Paths.ControlSocket == "" {
		errs = append(errs, errors.New("paths.control_socket is required"))
	}
	if c.Paths.PackagesList == "" {
		errs = append(errs, errors.New("paths.packages_list is required"))
	}
	if c.Manager.UID < 0 {
		errs = append(errs, fmt.Errorf("manager.uid must not be negative, got %d", c.Manager.UID))
	}
	if len(c.Broker.AllowedUIDs) == 0 {
		errs = append(errs, errors.New("broker.allowed_uids must name at least one uid"))
	}
	if _, err := c.HandshakeTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.UICallTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Settings(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Paths.SigningKey != "" && c.Paths.AgeIdentity == "" {
		errs = append(errs, errors.New("paths.age_identity is required with paths.signing_key"))
	}

	return errors.Join(errs...)
}

func parseDuration(field, text string) (time.Duration, error) {
	duration, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", field, text)
	}
	return duration, nil
}

// HandshakeTimeout returns broker.handshake_timeout.
func (c *Config) HandshakeTimeout() (time.Duration, error) {
	return parseDuration("broker.handshake_timeout", c.Broker.HandshakeTimeout)
}

// UICallTimeout returns ui.call_timeout.
func (c *Config) UICallTimeout() (time.Duration, error) {
	return parseDuration("ui.call_timeout", c.UI.CallTimeout)
}

// Settings converts the defaults section into a settings snapshot.
func (c *Config) Settings() (sudb.Settings, error) {
	var errs []error
	settings := sudb.Settings{
		LogTimeoutDays: c.Defaults.LogRetentionDays,
		Requester:      c.Manager.Package,
	}

	if value, err := sudb.ParseRootAccess(c.Defaults.RootAccess); err != nil {
		errs = append(errs, fmt.Errorf("defaults.root_access: %w", err))
	} else {
		settings.RootAccess = value
	}
	if value, err := sudb.ParseMultiuserMode(c.Defaults.MultiuserMode); err != nil {
		errs = append(errs, fmt.Errorf("defaults.multiuser_mode: %w", err))
	} else {
		settings.MultiuserMode = value
	}
	if value, err := sudb.ParseMountNamespace(c.Defaults.MountNamespace); err != nil {
		errs = append(errs, fmt.Errorf("defaults.mount_namespace: %w", err))
	} else {
		settings.MountNamespace = value
	}
	if value, err := sudb.ParseAutoResponse(c.Defaults.AutoResponse); err != nil {
		errs = append(errs, fmt.Errorf("defaults.auto_response: %w", err))
	} else {
		settings.AutoResponse = value
	}
	if value, err := sudb.ParseNotificationType(c.Defaults.Notification); err != nil {
		errs = append(errs, fmt.Errorf("defaults.notification: %w", err))
	} else {
		settings.Notification = value
	}

	timeout, err := parseDuration("defaults.request_timeout", c.Defaults.RequestTimeout)
	switch {
	case err != nil:
		errs = append(errs, err)
	case timeout%time.Second != 0:
		errs = append(errs, fmt.Errorf("defaults.request_timeout must be whole seconds, got %s", c.Defaults.RequestTimeout))
	default:
		settings.RequestTimeout = int(timeout / time.Second)
	}

	if c.Defaults.LogRetentionDays < 0 {
		errs = append(errs, fmt.Errorf("defaults.log_retention_days must not be negative, got %d", c.Defaults.LogRetentionDays))
	}

	if len(errs) > 0 {
		return sudb.Settings{}, errors.Join(errs...)
	}
	return settings, nil
}

// Location returns the zone audit log days are grouped in.
func (c *Config) Location() (*time.Location, error) {
	if c.Log.TimeZone == "" {
		return time.Local, nil
	}
	location, err := time.LoadLocation(c.Log.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("log.time_zone: %w", err)
	}
	return location, nil
}

// LogLevel returns log.level as a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// EnsurePaths creates the directories that hold the database and the
// control socket.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Database, c.Paths.ControlSocket} {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("config: creating directory for %s: %w", path, err)
		}
	}
	return nil
}
