// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/pursuer/internal/config"
	"github.com/jeranaias/pursuer/internal/util"
)

// RunConfig handles "pursuer config". It does not need an App, so a broken
// config file can still be inspected and repaired.
func RunConfig(args Args, out, errOut io.Writer) error {
	path, err := config.PathTOML()
	if err != nil {
		return err
	}
	if args.Config != "" {
		path = util.ExpandHome(args.Config)
	}

	switch args.Subcommand {
	case "path":
		fmt.Fprintln(out, path)
		return nil

	case "init", "set":
		if strings.HasSuffix(strings.ToLower(path), ".json") {
			return NewUsageError("Pass a .toml path with --config.", "config %s writes TOML, not %s", args.Subcommand, path)
		}
		if args.Subcommand == "init" {
			return initConfig(path, args.Force, out)
		}
		return setConfig(path, args.ConfigKey, args.ConfigVal, args.Quiet, out)
	}

	cfg, err := loadConfig(args)
	if cfg == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(errOut, "Warning: %v (showing defaults)\n", err)
	}

	if args.Subcommand == "get" {
		value, err := cfg.Get(args.ConfigKey)
		if err != nil {
			return NewUsageError("Keys: "+strings.Join(config.Keys(), ", "), "%v", err)
		}
		if args.ConfigKey == "api.api_key" {
			value = cfg.Redacted().API.APIKey
		}
		if args.JSON {
			return NewJSONResponse("config get", map[string]any{args.ConfigKey: value}).Print(out)
		}
		fmt.Fprintln(out, formatValue(value))
		return nil
	}

	if args.JSON {
		return NewJSONResponse("config show", cfg.Redacted()).Print(out)
	}
	if !args.Quiet {
		fmt.Fprintf(out, "# %s\n", path)
	}
	_, err = io.WriteString(out, cfg.String())
	return err
}

func initConfig(path string, force bool, out io.Writer) error {
	if _, err := os.Stat(path); err == nil && !force {
		return NewUsageError("Use --force to overwrite it.", "config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return &CommandError{Command: "config", Action: "init", Err: err}
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return &CommandError{Command: "config", Action: "init", Err: err}
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
	return nil
}

// setConfig changes one key in the file itself. Environment overrides are
// not applied, so they never end up saved.
func setConfig(path, key, value string, quiet bool, out io.Writer) error {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return &CommandError{Command: "config", Action: "set", Err: err}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return &CommandError{Command: "config", Action: "set", Err: err}
	}

	if err := cfg.Set(key, value); err != nil {
		return NewUsageError("Keys: "+strings.Join(config.Keys(), ", "), "%v", err)
	}

	check := cfg.Clone()
	check.SetDefaults()
	if err := check.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return &CommandError{Command: "config", Action: "set", Err: err}
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return &CommandError{Command: "config", Action: "set", Err: err}
	}
	if !quiet {
		shown := value
		if key == "api.api_key" {
			shown = "[REDACTED]"
		}
		fmt.Fprintf(out, "%s = %s\n", key, shown)
	}
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(val)
	}
}
