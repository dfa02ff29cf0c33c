// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
//
// The master key and token secret are not checked here: a deployment
// without them still starts, and the health check reports the gap.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	backend := strings.ToLower(cfg.Backend)
	if backend != BackendLocal && backend != BackendRemote {
		return ErrInvalidBackend
	}
	if backend == BackendRemote && (cfg.DriveClientID == "" || cfg.DriveClientSecret == "" || cfg.DriveRefreshToken == "") {
		return ErrMissingDriveCredentials
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.TokenTTL <= 0 {
		return fmt.Errorf("%w: tokenttl", ErrInvalidDuration)
	}
	if cfg.BackendTimeout <= 0 {
		return fmt.Errorf("%w: backendtimeout", ErrInvalidDuration)
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
