// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/quickr1/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete quickr1 configuration.
type Config struct {
	Backend BackendConfig `toml:"backend" json:"backend"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	History HistoryConfig `toml:"history" json:"history"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// BackendConfig describes the generation backend.
type BackendConfig struct {
	// URL is the base URL of the Ollama-compatible server.
	URL string `toml:"url" json:"url"`
	// Model is sent as the "model" field of every request.
	Model string `toml:"model" json:"model"`
	// TimeoutSecs bounds a whole turn, including the streamed body.
	// Zero disables the timeout.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// StreamChunkSize is the read size used when pulling the response body.
	StreamChunkSize int `toml:"stream_chunk_size" json:"stream_chunk_size"`
}

// Timeout returns TimeoutSecs as a duration.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// StorageConfig selects and tunes the local persistence backend.
type StorageConfig struct {
	// Backend is one of "file", "bolt", "sqlite" or "memory".
	Backend string `toml:"backend" json:"backend"`
	// Path is a directory for "file", a database file otherwise.
	// Empty means a default under the data directory.
	Path string `toml:"path" json:"path"`
	// SaveRatePerSec caps how often snapshots are written.
	SaveRatePerSec float64 `toml:"save_rate_per_sec" json:"save_rate_per_sec"`
}

// HistoryConfig controls how much prior conversation is sent as context.
type HistoryConfig struct {
	// MaxContextMessages limits the prompt history; 0 sends everything.
	MaxContextMessages int `toml:"max_context_messages" json:"max_context_messages"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme forces "light" or "dark". Empty uses the saved theme, then
	// terminal background detection.
	Theme        string   `toml:"theme" json:"theme"`
	Participants []string `toml:"participants" json:"participants"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	// File receives JSON logs. Empty means quickr1.log in the data directory.
	File string `toml:"file" json:"file"`
}

// Storage backend names.
const (
	StorageFile   = "file"
	StorageBolt   = "bolt"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:             "http://localhost:11434",
			Model:           "deepseek-r1:1.5b",
			TimeoutSecs:     300,
			StreamChunkSize: 4096,
		},
		Storage: StorageConfig{
			Backend:        StorageFile,
			SaveRatePerSec: 4,
		},
		History: HistoryConfig{
			MaxContextMessages: 20,
		},
		UI: UIConfig{
			Participants: []string{"You", "Assistant"},
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the quickr1 configuration and data directory.
// QUICKR1_HOME overrides the default ~/.quickr1.
func ConfigDir() (string, error) {
	if dir := os.Getenv("QUICKR1_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".quickr1"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// StoragePath resolves the storage location, filling in a per-backend
// default under the data directory when none is configured.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	switch c.Storage.Backend {
	case StorageBolt:
		return filepath.Join(dir, "quickr1.bolt"), nil
	case StorageSQLite:
		return filepath.Join(dir, "quickr1.db"), nil
	default:
		return filepath.Join(dir, "store"), nil
	}
}

// LogPath resolves the JSON log file path.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "quickr1.log"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.quickr1/config.toml if it exists, falling back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation. Keys absent from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ReadFile decodes a TOML file over the defaults without environment
// overrides or validation. Use it to edit a file and save it back.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode TOML config %s: %w", path, err)
	}
	return cfg, nil
}

// SetDefaults replaces zero values that would make the client unusable.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Backend.URL == "" {
		c.Backend.URL = defaults.Backend.URL
	}
	if c.Backend.Model == "" {
		c.Backend.Model = defaults.Backend.Model
	}
	if c.Backend.StreamChunkSize <= 0 {
		c.Backend.StreamChunkSize = defaults.Backend.StreamChunkSize
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Storage.SaveRatePerSec <= 0 {
		c.Storage.SaveRatePerSec = defaults.Storage.SaveRatePerSec
	}
	if len(c.UI.Participants) < 2 {
		c.UI.Participants = defaults.UI.Participants
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# quickr1 configuration file\n")
	buf.WriteString("# Environment variables QUICKR1_* override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns ValidateErrors if any
// field is out of range.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Backend.URL == "" {
		errs = append(errs, ValidationError{Field: "backend.url", Message: "must not be empty"})
	} else if u, err := url.Parse(c.Backend.URL); err != nil {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme),
		})
	}

	if c.Backend.Model == "" {
		errs = append(errs, ValidationError{Field: "backend.model", Message: "must not be empty"})
	}
	if c.Backend.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "backend.timeout_secs", Message: "must be non-negative"})
	}
	if c.Backend.StreamChunkSize < 0 || c.Backend.StreamChunkSize > 1<<20 {
		errs = append(errs, ValidationError{
			Field:   "backend.stream_chunk_size",
			Message: fmt.Sprintf("must be 0-1048576, got %d", c.Backend.StreamChunkSize),
		})
	}

	validBackends := map[string]bool{StorageFile: true, StorageBolt: true, StorageSQLite: true, StorageMemory: true}
	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, bolt, sqlite, memory", c.Storage.Backend),
		})
	}
	if c.Storage.SaveRatePerSec < 0 {
		errs = append(errs, ValidationError{Field: "storage.save_rate_per_sec", Message: "must be non-negative"})
	}

	if c.History.MaxContextMessages < 0 {
		errs = append(errs, ValidationError{Field: "history.max_context_messages", Message: "must be non-negative"})
	}

	validThemes := map[string]bool{"": true, "dark": true, "light": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light", c.UI.Theme),
		})
	}
	if len(c.UI.Participants) != 0 && len(c.UI.Participants) < 2 {
		errs = append(errs, ValidationError{Field: "ui.participants", Message: "needs at least two names"})
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{Field: "log.level", Message: err.Error()})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - QUICKR1_URL: backend.url
//   - QUICKR1_MODEL: backend.model
//   - QUICKR1_STORAGE: storage.backend
//   - QUICKR1_THEME: ui.theme
//   - QUICKR1_LOG_LEVEL: log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("QUICKR1_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("QUICKR1_MODEL"); v != "" {
		c.Backend.Model = v
	}
	if v := os.Getenv("QUICKR1_STORAGE"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("QUICKR1_THEME"); v != "" {
		c.UI.Theme = strings.ToLower(v)
	}
	if v := os.Getenv("QUICKR1_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "backend.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"backend.url",
		"backend.model",
		"backend.timeout_secs",
		"backend.stream_chunk_size",
		"storage.backend",
		"storage.path",
		"storage.save_rate_per_sec",
		"history.max_context_messages",
		"ui.theme",
		"ui.participants",
		"log.level",
		"log.file",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.UI.Participants = append([]string(nil), c.UI.Participants...)
	return &clone
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
