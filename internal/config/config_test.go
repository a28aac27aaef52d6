// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv isolates a test from QUICKR1_* variables in the caller's shell.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"QUICKR1_URL", "QUICKR1_MODEL", "QUICKR1_STORAGE", "QUICKR1_THEME", "QUICKR1_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	t.Setenv("QUICKR1_HOME", t.TempDir())
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:11434", cfg.Backend.URL)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, []string{"You", "Assistant"}, cfg.UI.Participants)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Backend.Model, cfg.Backend.Model)
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[backend]\nmodel = \"llama3\"\n\n[storage]\nbackend = \"bolt\"\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3", cfg.Backend.Model)
	assert.Equal(t, StorageBolt, cfg.Storage.Backend)
	assert.Equal(t, Default().Backend.URL, cfg.Backend.URL)
	assert.Equal(t, 4096, cfg.Backend.StreamChunkSize)
}

func TestLoadFromPath_InvalidValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "[storage]\nbackend = \"redis\"\n\n[ui]\ntheme = \"blue\"\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs), "error should wrap ValidateErrors: %v", err)
	assert.Len(t, verrs, 2)
}

func TestLoadFromPath_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend\nurl="), 0600))

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestReadFile_IgnoresEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend]\nmodel = \"file-model\"\n"), 0600))
	t.Setenv("QUICKR1_MODEL", "env-model")

	cfg, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-model", cfg.Backend.Model)

	cfg, err = LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Backend.Model)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Backend.Model = "qwen2"
	cfg.History.MaxContextMessages = 6
	cfg.UI.Theme = "dark"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty url", func(c *Config) { c.Backend.URL = "" }, "backend.url"},
		{"bad scheme", func(c *Config) { c.Backend.URL = "ftp://host" }, "backend.url"},
		{"empty model", func(c *Config) { c.Backend.Model = "" }, "backend.model"},
		{"negative timeout", func(c *Config) { c.Backend.TimeoutSecs = -1 }, "backend.timeout_secs"},
		{"huge chunk", func(c *Config) { c.Backend.StreamChunkSize = 1 << 21 }, "backend.stream_chunk_size"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"negative history", func(c *Config) { c.History.MaxContextMessages = -2 }, "history.max_context_messages"},
		{"bad theme", func(c *Config) { c.UI.Theme = "sepia" }, "ui.theme"},
		{"one participant", func(c *Config) { c.UI.Participants = []string{"Me"} }, "ui.participants"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs), "Validate() = %v", err)
			require.Len(t, verrs, 1)
			assert.Equal(t, tc.field, verrs[0].Field)
		})
	}
}

func TestValidateErrors_Error(t *testing.T) {
	errs := ValidateErrors{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}
	if got := errs.Error(); got != "a: bad; b: worse" {
		t.Errorf("Error() = %q", got)
	}
}

// =============================================================================
// ENV OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUICKR1_URL", "http://gpu-box:11434")
	t.Setenv("QUICKR1_MODEL", "mistral")
	t.Setenv("QUICKR1_STORAGE", "SQLITE")
	t.Setenv("QUICKR1_THEME", "Light")
	t.Setenv("QUICKR1_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "http://gpu-box:11434", cfg.Backend.URL)
	assert.Equal(t, "mistral", cfg.Backend.Model)
	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// =============================================================================
// GET/SET
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("backend.model", "phi3"))
	require.NoError(t, cfg.Set("backend.timeout_secs", "30"))
	require.NoError(t, cfg.Set("storage.save_rate_per_sec", "0.5"))
	require.NoError(t, cfg.Set("ui.participants", "Me, Bot"))

	v, err := cfg.Get("backend.model")
	require.NoError(t, err)
	assert.Equal(t, "phi3", v)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, 0.5, cfg.Storage.SaveRatePerSec)
	assert.Equal(t, []string{"Me", "Bot"}, cfg.UI.Participants)

	_, err = cfg.Get("backend.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("backend.url.host", "x"))
	assert.Error(t, cfg.Set("backend.timeout_secs", "soon"))
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) failed: %v", key, err)
		}
	}
}

func TestClone_Independent(t *testing.T) {
	cfg := Default()
	c := cfg.Clone()
	c.UI.Participants[0] = "Me"
	assert.Equal(t, "You", cfg.UI.Participants[0])
}

func TestStoragePath_Defaults(t *testing.T) {
	clearEnv(t)
	home := os.Getenv("QUICKR1_HOME")

	cfg := Default()
	for backend, want := range map[string]string{
		StorageFile:   filepath.Join(home, "store"),
		StorageBolt:   filepath.Join(home, "quickr1.bolt"),
		StorageSQLite: filepath.Join(home, "quickr1.db"),
	} {
		cfg.Storage.Backend = backend
		got, err := cfg.StoragePath()
		require.NoError(t, err)
		assert.Equal(t, want, got, backend)
	}

	cfg.Storage.Path = "/explicit"
	got, _ := cfg.StoragePath()
	assert.Equal(t, "/explicit", got)
}

// =============================================================================
// LOGGING
// =============================================================================

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Error("ParseLevel(chatty) should fail")
	}
}

func TestSetupLoggerWithWriters_Fanout(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelWarn)

	logger.Debug("decode skipped", "preview", "{bad")
	logger.Warn("save failed", "key", "conversations")

	assert.NotContains(t, stderr.String(), "decode skipped")
	assert.Contains(t, stderr.String(), "save failed")
	assert.Contains(t, file.String(), `"msg":"decode skipped"`)
	assert.Contains(t, file.String(), `"key":"conversations"`)
}

func TestSetupLogger_WritesFile(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Log.File = filepath.Join(t.TempDir(), "logs", "q.log")

	logger, cleanup := SetupLogger(cfg)
	logger.Debug("hello file")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello file"))
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReloadsOnChange(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	err := Watch(ctx, path, 20*time.Millisecond, nil, func(c *Config) { changes <- c })
	require.NoError(t, err)

	cfg := Default()
	cfg.Backend.Model = "reloaded"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case got := <-changes:
		assert.Equal(t, "reloaded", got.Backend.Model)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}
