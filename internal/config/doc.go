// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration management for pursuer.
//
// Configuration lives in ~/.pursuer (or $PURSUER_HOME). config.toml is read
// first, config.json second (the format older releases wrote), and built-in
// defaults fill anything left unset. Values from .env files and PURSUER_*
// environment variables are applied last.
//
// # Key Types
//
//   - Config: root settings (api, generation, history, ui, log, telemetry)
//   - ValidationError, ValidateErrors: field-level validation failures
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Printf("config: %v (using defaults)", err)
//	}
//	fmt.Println(cfg.API.Model)
//
// # Environment
//
//   - PURSUER_HOME: configuration directory
//   - PURSUER_API_KEY, PURSUER_MODEL, PURSUER_BASE_URL
//   - PURSUER_HISTORY_FILE, PURSUER_LOG_LEVEL
package config
