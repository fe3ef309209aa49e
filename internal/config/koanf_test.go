// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValues(t *testing.T) {
	d := defaultConfig()

	if d.CacheMaxAge != 30*time.Second {
		t.Errorf("CacheMaxAge = %v, want 30s", d.CacheMaxAge)
	}
	if d.MaxCommonKeySize != 1700 {
		t.Errorf("MaxCommonKeySize = %d, want 1700", d.MaxCommonKeySize)
	}
	if d.BackgroundExecuteTimeout != 180*time.Second {
		t.Errorf("BackgroundExecuteTimeout = %v, want 180s", d.BackgroundExecuteTimeout)
	}
}

func TestFindConfigFile_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("ea_port: 1234\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cleanup := setupTestEnv(t, map[string]string{ConfigPathEnvVar: path})
	defer cleanup()

	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}
}

func TestFindConfigFile_NoneFound(t *testing.T) {
	cleanup := setupTestEnv(t, nil)
	defer cleanup()

	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty", got)
	}
}

func TestLoad_ConfigFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("ea_port: 7000\nea_host: 10.0.0.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cleanup := setupTestEnv(t, map[string]string{
		ConfigPathEnvVar: path,
		"EA_PORT":        "7001", // env wins over file
	})
	defer cleanup()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 7001 {
		t.Errorf("Port = %d, want 7001 (env should win over file)", cfg.Port)
	}
	if cfg.Host != "10.0.0.1" {
		t.Errorf("Host = %q, want 10.0.0.1 (from file)", cfg.Host)
	}
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"EA_MODE": "not-a-real-mode",
	})
	defer cleanup()

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for invalid EA_MODE")
	}
}
