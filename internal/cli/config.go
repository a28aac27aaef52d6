// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeranaias/quickr1/internal/config"
)

func newConfigCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit the configuration file",
		Long: `Show or edit ~/.quickr1/config.toml.

QUICKR1_URL, QUICKR1_MODEL, QUICKR1_STORAGE, QUICKR1_THEME and
QUICKR1_LOG_LEVEL override the file, and command-line flags override both.
QUICKR1_HOME moves the whole data directory.`,
	}
	cmd.AddCommand(
		newConfigShowCmd(e),
		newConfigPathCmd(e),
		newConfigInitCmd(e),
		newConfigGetCmd(e),
		newConfigSetCmd(e),
	)
	return cmd
}

func newConfigShowCmd(e *env) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return OutputJSON(e.streams.Out, jsonMode, "config show", func() (interface{}, error) {
				if !jsonMode {
					fmt.Fprint(e.streams.Out, e.cfg.String())
				}
				return e.cfg, nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output JSON")
	return cmd
}

func newConfigPathCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(e.streams.Out, e.cfgPath)
			return nil
		},
	}
}

func newConfigInitCmd(e *env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(e.cfgPath); err == nil && !force {
				return fmt.Errorf("config file already exists: %s (use --force to overwrite)", e.cfgPath)
			}
			if err := os.MkdirAll(filepath.Dir(e.cfgPath), 0700); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.SaveTOML(config.Default(), e.cfgPath); err != nil {
				return err
			}
			fmt.Fprintln(e.streams.Out, "Wrote "+e.cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigGetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "get <key>",
		Short:     "Print one effective setting, e.g. backend.model",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.GetAllKeys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := e.cfg.Get(args[0])
			if err != nil {
				return NewValidationError("key", args[0], err.Error())
			}
			fmt.Fprintln(e.streams.Out, v)
			return nil
		},
	}
}

func newConfigSetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the configuration file",
		Long: `Change one setting in the configuration file. Lists are comma separated.

Examples:
  quickr1 config set backend.model llama3.2
  quickr1 config set storage.backend sqlite
  quickr1 config set ui.participants "Me,Model"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if _, err := os.Stat(e.cfgPath); err == nil {
				read, err := config.ReadFile(e.cfgPath)
				if err != nil {
					return err
				}
				cfg = read
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := cfg.Set(args[0], args[1]); err != nil {
				return NewValidationError("key", args[0], err.Error())
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(e.cfgPath), 0700); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.SaveTOML(cfg, e.cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(e.streams.Out, "%s = %v\n", args[0], args[1])
			return nil
		},
	}
}
