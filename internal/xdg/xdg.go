// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

// Package xdg provides XDG Base Directory paths for Mentorlik.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "mentorlik"

// ConfigFileName is the file looked up in ConfigDir when no config is given.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for mentorlik.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns ConfigDir()/config.yaml if it exists and is a
// regular file, otherwise "".
func DefaultConfigFile() string {
	path := filepath.Join(ConfigDir(), ConfigFileName)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return path
}
