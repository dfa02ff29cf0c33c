// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads the assetvault configuration file.
//
// The file is a flat list of "key = value" lines; "#" starts a comment.
// Every key can be overridden by an environment variable named
// ASSETVAULT_<KEY>, e.g. ASSETVAULT_MASTERKEY.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "ASSETVAULT"

// Configuration keys as they appear in the file.
const (
	keyDataDir           = "datadir"
	keyListen            = "listen"
	keyBackend           = "backend"
	keyStorageRoot       = "storageroot"
	keyRemoteRootID      = "remoterootid"
	keyDriveClientID     = "driveclientid"
	keyDriveClientSecret = "driveclientsecret"
	keyDriveRefreshToken = "driverefreshtoken"
	keyDriveSharedDrives = "drivesharedrives"
	keyPublicURLTemplate = "publicurltemplate"
	keyMasterKey         = "masterkey"
	keyTokenSecret       = "tokensecret"
	keyTokenTTL          = "tokenttl"
	keyBackendTimeout    = "backendtimeout"
	keyLogLevel          = "loglevel"
	keyLogFile           = "logfile"
)

// Config holds the service configuration.
type Config struct {
	DataDir    string
	ListenAddr string

	Backend           string // "local" or "remote"
	StorageRoot       string // local blob root; defaults to <DataDir>/blobs
	RemoteRootID      string // remote folder owner namespaces are created under
	DriveClientID     string
	DriveClientSecret string
	DriveRefreshToken string
	DriveSharedDrives bool
	PublicURLTemplate string // "{{fileId}}" is replaced by the remote object id

	MasterKey   string // 64 hex chars, or a secret the key is derived from
	TokenSecret string

	TokenTTL       time.Duration
	BackendTimeout time.Duration

	LogLevel string
	LogFile  string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:        DefaultDataDir(),
		ListenAddr:     ":8080",
		Backend:        BackendLocal,
		TokenTTL:       10 * time.Minute,
		BackendTimeout: 30 * time.Second,
		LogLevel:       "info",
	}
}

// DefaultDataDir returns ~/.assetvault, or ./.assetvault when the home
// directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".assetvault"
	}
	return filepath.Join(home, ".assetvault")
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// StoragePath returns the local blob root.
func (c Config) StoragePath() string {
	if c.StorageRoot != "" {
		return c.StorageRoot
	}
	return filepath.Join(c.DataDir, "blobs")
}

// CatalogPath returns the metadata database path.
func (c Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// newViper returns a viper instance seeded with defaults and bound to the
// environment.
func newViper() *viper.Viper {
	d := DefaultConfig()
	v := viper.New()
	v.SetDefault(keyDataDir, d.DataDir)
	v.SetDefault(keyListen, d.ListenAddr)
	v.SetDefault(keyBackend, d.Backend)
	v.SetDefault(keyStorageRoot, d.StorageRoot)
	v.SetDefault(keyRemoteRootID, d.RemoteRootID)
	v.SetDefault(keyDriveClientID, "")
	v.SetDefault(keyDriveClientSecret, "")
	v.SetDefault(keyDriveRefreshToken, "")
	v.SetDefault(keyDriveSharedDrives, false)
	v.SetDefault(keyPublicURLTemplate, "")
	v.SetDefault(keyMasterKey, "")
	v.SetDefault(keyTokenSecret, "")
	v.SetDefault(keyTokenTTL, d.TokenTTL)
	v.SetDefault(keyBackendTimeout, d.BackendTimeout)
	v.SetDefault(keyLogLevel, d.LogLevel)
	v.SetDefault(keyLogFile, d.LogFile)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) Config {
	return Config{
		DataDir:           v.GetString(keyDataDir),
		ListenAddr:        v.GetString(keyListen),
		Backend:           strings.ToLower(v.GetString(keyBackend)),
		StorageRoot:       v.GetString(keyStorageRoot),
		RemoteRootID:      v.GetString(keyRemoteRootID),
		DriveClientID:     v.GetString(keyDriveClientID),
		DriveClientSecret: v.GetString(keyDriveClientSecret),
		DriveRefreshToken: v.GetString(keyDriveRefreshToken),
		DriveSharedDrives: v.GetBool(keyDriveSharedDrives),
		PublicURLTemplate: v.GetString(keyPublicURLTemplate),
		MasterKey:         v.GetString(keyMasterKey),
		TokenSecret:       v.GetString(keyTokenSecret),
		TokenTTL:          v.GetDuration(keyTokenTTL),
		BackendTimeout:    v.GetDuration(keyBackendTimeout),
		LogLevel:          v.GetString(keyLogLevel),
		LogFile:           v.GetString(keyLogFile),
	}
}

// LoadConfig reads a config file, layering it over the defaults and under
// environment overrides. Unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := checkLines(data); err != nil {
		return Config{}, err
	}

	v := newViper()
	v.SetConfigType("env")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfigLine, err)
	}
	return fromViper(v), nil
}

// FromEnv returns the defaults with environment overrides applied. It is
// used when no config file exists.
func FromEnv() Config {
	return fromViper(newViper())
}

// checkLines rejects lines that are neither blank, a comment, nor key = value.
func checkLines(data []byte) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
	}
	return sc.Err()
}

// SaveConfig writes cfg to path, creating parent directories. The file
// holds secrets and is written with mode 0600.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# assetvault configuration\n\n")
	write := func(key, value string) {
		fmt.Fprintf(&b, "%s = %s\n", key, quoteValue(value))
	}
	write(keyDataDir, cfg.DataDir)
	write(keyListen, cfg.ListenAddr)
	b.WriteString("\n# storage\n")
	write(keyBackend, cfg.Backend)
	write(keyStorageRoot, cfg.StorageRoot)
	write(keyRemoteRootID, cfg.RemoteRootID)
	write(keyDriveClientID, cfg.DriveClientID)
	write(keyDriveClientSecret, cfg.DriveClientSecret)
	write(keyDriveRefreshToken, cfg.DriveRefreshToken)
	write(keyDriveSharedDrives, strconv.FormatBool(cfg.DriveSharedDrives))
	write(keyPublicURLTemplate, cfg.PublicURLTemplate)
	write(keyBackendTimeout, cfg.BackendTimeout.String())
	b.WriteString("\n# secrets\n")
	write(keyMasterKey, cfg.MasterKey)
	write(keyTokenSecret, cfg.TokenSecret)
	write(keyTokenTTL, cfg.TokenTTL.String())
	b.WriteString("\n# logging\n")
	write(keyLogLevel, cfg.LogLevel)
	write(keyLogFile, cfg.LogFile)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// quoteValue single-quotes values the dotenv reader would otherwise alter.
func quoteValue(v string) string {
	if v == "" || strings.ContainsRune(v, '\'') {
		return v
	}
	if strings.ContainsAny(v, "#$\"\\") || strings.TrimSpace(v) != v {
		return "'" + v + "'"
	}
	return v
}
