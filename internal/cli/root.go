// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/quickr1/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// IOStreams are the standard streams a command reads and writes.
type IOStreams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams.
func StdStreams() IOStreams {
	return IOStreams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	url        string
	model      string
	storage    string
	theme      string
	verbose    bool
	quiet      bool
}

// env carries what PersistentPreRunE prepared for the running command.
type env struct {
	streams IOStreams
	flags   globalFlags

	cfg      *config.Config
	cfgPath  string
	logger   *slog.Logger
	closeLog func() error

	app *App
}

// Execute runs the command tree on the process streams and returns the
// exit code.
func Execute() int {
	streams := StdStreams()
	if err := Run(streams, os.Args[1:]); err != nil {
		DisplayError(streams.Err, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// Run executes one command line. Storage and the log file are always
// released before it returns, including when the command fails.
func Run(streams IOStreams, args []string) error {
	cmd, e := newRootCommand(streams)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if cerr := e.close(); err == nil {
		err = cerr
	}
	return err
}

// newRootCommand builds the full command tree bound to streams.
func newRootCommand(streams IOStreams) (*cobra.Command, *env) {
	e := &env{streams: streams}

	root := &cobra.Command{
		Use:   "quickr1",
		Short: "Terminal chat client for a local Ollama model",
		Long: `quickr1 chats with a model served by Ollama, streaming each reply as it
is generated and keeping every conversation on disk.

Run without a subcommand to start the interactive chat.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return e.load(!isConfigCommand(cmd))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, e)
		},
	}
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&e.flags.configPath, "config", "", "config file (default ~/.quickr1/config.toml)")
	pf.StringVar(&e.flags.url, "url", "", "Ollama base URL")
	pf.StringVarP(&e.flags.model, "model", "m", "", "model name")
	pf.StringVar(&e.flags.storage, "storage", "", "storage backend: file, bolt, sqlite or memory")
	pf.StringVar(&e.flags.theme, "theme", "", "color theme: light or dark")
	pf.BoolVarP(&e.flags.verbose, "verbose", "v", false, "debug logging on stderr")
	pf.BoolVarP(&e.flags.quiet, "quiet", "q", false, "minimal output")

	root.AddCommand(
		newChatCmd(e),
		newAskCmd(e),
		newHistoryCmd(e),
		newStatusCmd(e),
		newConfigCmd(e),
	)
	return root, e
}

// isConfigCommand reports whether cmd is "config" or one of its children,
// which must run even when the current file does not validate.
func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}

// load reads the config, applies flag overrides and sets up logging.
func (e *env) load(validate bool) error {
	path := e.flags.configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
		path = p
	}
	e.cfgPath = path

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.LoadFromPath(path)
		if err != nil {
			if validate {
				return err
			}
		} else {
			cfg = loaded
		}
	} else {
		cfg.ApplyEnvOverrides()
	}
	e.applyFlags(cfg)
	if validate {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	e.cfg = cfg

	lipgloss.SetColorProfile(colorProfile(e.streams.Out))
	e.logger, e.closeLog = config.SetupLogger(cfg)
	slog.SetDefault(e.logger)
	return nil
}

// applyFlags overlays command-line flags on cfg.
func (e *env) applyFlags(cfg *config.Config) {
	if e.flags.url != "" {
		cfg.Backend.URL = e.flags.url
	}
	if e.flags.model != "" {
		cfg.Backend.Model = e.flags.model
	}
	if e.flags.storage != "" {
		cfg.Storage.Backend = strings.ToLower(e.flags.storage)
	}
	if e.flags.theme != "" {
		cfg.UI.Theme = strings.ToLower(e.flags.theme)
	}
	if e.flags.verbose {
		cfg.Log.Level = "debug"
	}
}

// open returns the application, opening storage on first use.
func (e *env) open() (*App, error) {
	if e.app != nil {
		return e.app, nil
	}
	app, err := OpenApp(e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	e.app = app
	return app, nil
}

// close flushes pending saves and releases storage and the log file.
func (e *env) close() error {
	var firstErr error
	if e.app != nil {
		if err := e.app.Close(); err != nil {
			firstErr = err
		}
		e.app = nil
	}
	if e.closeLog != nil {
		if err := e.closeLog(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.closeLog = nil
	}
	return firstErr
}
