// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/quickr1/internal/ui/styles"
)

// statusTimeout bounds each backend probe.
const statusTimeout = 5 * time.Second

// StatusInfo is the --json form of the status report.
type StatusInfo struct {
	BackendURL     string   `json:"backendUrl"`
	Running        bool     `json:"running"`
	Error          string   `json:"error,omitempty"`
	Model          string   `json:"model"`
	ModelInstalled bool     `json:"modelInstalled"`
	Models         []string `json:"models"`
	Storage        string   `json:"storage"`
	StoragePath    string   `json:"storagePath"`
	Conversations  int      `json:"conversations"`
	Theme          string   `json:"theme"`
}

func newStatusCmd(e *env) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend health, installed models and storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.open()
			if err != nil {
				return err
			}
			return OutputJSON(e.streams.Out, jsonMode, "status", func() (interface{}, error) {
				info := collectStatus(cmd.Context(), app)
				if !jsonMode {
					printStatus(e.streams.Out, app.Theme(), info)
				}
				return info, nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output JSON")
	return cmd
}

// collectStatus probes the backend and summarizes local state. Backend
// failures are reported in the result, not returned.
func collectStatus(ctx context.Context, app *App) StatusInfo {
	cfg := app.Config()
	path, _ := cfg.StoragePath()
	info := StatusInfo{
		BackendURL:    app.Client().BaseURL(),
		Model:         cfg.Backend.Model,
		Models:        []string{},
		Storage:       cfg.Storage.Backend,
		StoragePath:   path,
		Conversations: len(app.Chat().Conversations()),
		Theme:         string(app.ThemeName()),
	}

	pingCtx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	if err := app.Client().CheckRunning(pingCtx); err != nil {
		info.Error = err.Error()
		return info
	}
	info.Running = true

	listCtx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	models, err := app.Client().ListModels(listCtx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	for _, m := range models {
		info.Models = append(info.Models, m.Name)
		if m.Name == cfg.Backend.Model {
			info.ModelInstalled = true
		}
	}
	return info
}

func printStatus(w io.Writer, theme *styles.Theme, info StatusInfo) {
	fmt.Fprintln(w, theme.Subtitle.Render("Backend"))
	fmt.Fprintf(w, "  %-14s %s\n", "URL:", info.BackendURL)
	if info.Running {
		fmt.Fprintf(w, "  %-14s %s\n", "Ollama:", theme.RenderSuccess("running"))
	} else {
		fmt.Fprintf(w, "  %-14s %s\n", "Ollama:", theme.RenderError(info.Error))
	}
	switch {
	case !info.Running:
		fmt.Fprintf(w, "  %-14s %s\n", "Model:", info.Model)
	case info.ModelInstalled:
		fmt.Fprintf(w, "  %-14s %s\n", "Model:", theme.RenderSuccess(info.Model))
	default:
		fmt.Fprintf(w, "  %-14s %s\n", "Model:", theme.RenderWarning(info.Model+" is not installed (ollama pull "+info.Model+")"))
	}
	if len(info.Models) > 0 {
		fmt.Fprintf(w, "  %-14s %d installed\n", "Models:", len(info.Models))
		for _, name := range info.Models {
			fmt.Fprintf(w, "    - %s\n", name)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, theme.Subtitle.Render("Local"))
	fmt.Fprintf(w, "  %-14s %s (%s)\n", "Storage:", info.Storage, info.StoragePath)
	fmt.Fprintf(w, "  %-14s %d\n", "Conversations:", info.Conversations)
	fmt.Fprintf(w, "  %-14s %s\n", "Theme:", info.Theme)
}

