// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and logging setup for quickr1.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Backend URL, model, timeout and read size
//   - StorageConfig: Persistence backend selection and save pacing
//   - ValidateErrors: All validation failures found in one pass
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (QUICKR1_*)
//   - ~/.quickr1/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger, closeLog := config.SetupLogger(cfg)
//	defer closeLog()
package config
