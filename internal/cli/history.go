// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/quickr1/internal/export"
	"github.com/jeranaias/quickr1/internal/model"
	"github.com/jeranaias/quickr1/internal/ui/sidebar"
)

// openExported opens files written by "history export --open". Nil uses the
// platform default application.
var openExported func(path string) error

func newHistoryCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"h"},
		Short:   "Browse, export and delete saved conversations",
		Long: `Browse, export and delete saved conversations.

Conversations are referenced by their number in "history list" or by an id
prefix.`,
	}
	cmd.AddCommand(
		newHistoryListCmd(e),
		newHistoryShowCmd(e),
		newHistoryExportCmd(e),
		newHistorySearchCmd(e),
		newHistoryDeleteCmd(e),
	)
	return cmd
}

// conversationSummary is the --json form of a listing row.
type conversationSummary struct {
	Index        int       `json:"index"`
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Participants []string  `json:"participants"`
	Messages     int       `json:"messages"`
	UnreadCount  int       `json:"unreadCount"`
	IsPinned     bool      `json:"isPinned"`
	LastActivity time.Time `json:"lastActivity"`
}

func summarize(convs []*model.Conversation) []conversationSummary {
	out := make([]conversationSummary, 0, len(convs))
	for i, conv := range convs {
		out = append(out, conversationSummary{
			Index:        i + 1,
			ID:           conv.ID,
			Title:        conv.Title(),
			Participants: conv.Participants,
			Messages:     len(conv.Messages),
			UnreadCount:  conv.UnreadCount,
			IsPinned:     conv.IsPinned,
			LastActivity: sidebar.LastActivity(conv),
		})
	}
	return out
}

func newHistoryListCmd(e *env) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, pinned first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.open()
			if err != nil {
				return err
			}
			return OutputJSON(e.streams.Out, jsonMode, "history list", func() (interface{}, error) {
				convs := app.Listing()
				if !jsonMode {
					printConversationList(e.streams.Out, app.Theme(), convs, "", time.Now())
				}
				return summarize(convs), nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output JSON")
	return cmd
}

func newHistorySearchCmd(e *env) *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find conversations by participant or message content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.open()
			if err != nil {
				return err
			}
			query := joinArgs(args)
			return OutputJSON(e.streams.Out, jsonMode, "history search", func() (interface{}, error) {
				// Numbers refer to the full listing so they work with "show".
				listing := app.Listing()
				var matches []*model.Conversation
				var summaries []conversationSummary
				for i, s := range summarize(listing) {
					if listing[i].Matches(query) {
						matches = append(matches, listing[i])
						summaries = append(summaries, s)
					}
				}
				if !jsonMode {
					if len(matches) == 0 {
						fmt.Fprintln(e.streams.Out, app.Theme().RenderInfo("No conversations match "+query))
					}
					for _, s := range summaries {
						fmt.Fprintf(e.streams.Out, "%4d. %s  %s\n", s.Index, app.Theme().ListMeta.Render(shortID(s.ID)), s.Title)
					}
				}
				return summaries, nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output JSON")
	return cmd
}

func newHistoryShowCmd(e *env) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <n|id>",
		Short: "Render a conversation as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.open()
			if err != nil {
				return err
			}
			conv, err := app.Resolve(args[0])
			if err != nil {
				return err
			}
			app.Chat().MarkRead(conv.ID)

			if raw || !isTerminal(e.streams.Out) {
				md, err := export.NewMarkdownExporter(&export.Options{IncludeTimestamps: true}).Export(conv)
				if err != nil {
					return err
				}
				_, err = e.streams.Out.Write(md)
				return err
			}

			r, err := export.NewRenderer(app.ThemeName(), terminalWidth(e.streams.Out))
			if err != nil {
				return fmt.Errorf("create renderer: %w", err)
			}
			out, err := r.RenderConversation(conv)
			if err != nil {
				return err
			}
			fmt.Fprint(e.streams.Out, out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print Markdown source instead of rendering it")
	return cmd
}

func newHistoryExportCmd(e *env) *cobra.Command {
	var (
		format   string
		outDir   string
		toStdout bool
		noMeta   bool
		openIt   bool
	)
	cmd := &cobra.Command{
		Use:   "export <n|id>",
		Short: "Export a conversation to Markdown or JSON",
		Long: `Export a conversation to a file named after its title.

Examples:
  quickr1 history export 1
  quickr1 history export 3 --format json -o ~/notes
  quickr1 history export 1 --stdout > chat.md
  quickr1 history export 1 --open`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.open()
			if err != nil {
				return err
			}
			conv, err := app.Resolve(args[0])
			if err != nil {
				return err
			}

			opts := export.DefaultOptions()
			opts.OutputDir = outDir
			opts.IncludeMetadata = !noMeta
			opts.OpenAfterExport = openIt
			opts.Opener = openExported
			exporter, err := export.New(format, opts)
			if err != nil {
				return ErrUnsupportedFormat(format, []string{"markdown", "json"})
			}

			if toStdout {
				if openIt {
					return NewValidationError("open", "", "--open needs a file, drop --stdout")
				}
				data, err := exporter.Export(conv)
				if err != nil {
					return err
				}
				_, err = e.streams.Out.Write(data)
				return err
			}

			if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			path, err := export.ExportToFile(conv, exporter, opts)
			if err != nil {
				if path == "" {
					return err
				}
				// The file exists; only opening it failed.
				fmt.Fprintln(e.streams.Out, app.Theme().RenderSuccess("Exported to "+path))
				return err
			}
			fmt.Fprintln(e.streams.Out, app.Theme().RenderSuccess("Exported to "+path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown or json")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "write to stdout instead of a file")
	cmd.Flags().BoolVar(&noMeta, "no-metadata", false, "omit frontmatter and statistics")
	cmd.Flags().BoolVar(&openIt, "open", false, "open the file in the default application")
	return cmd
}

func newHistoryDeleteCmd(e *env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "delete <n|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.open()
			if err != nil {
				return err
			}
			conv, err := app.Resolve(args[0])
			if err != nil {
				return err
			}

			if !force {
				fmt.Fprintf(e.streams.Out, "About to delete: %s (%s, %d messages)\n", conv.Title(), shortID(conv.ID), len(conv.Messages))
				if !confirm(e.streams.In, e.streams.Out, "Continue?") {
					fmt.Fprintln(e.streams.Out, "Cancelled.")
					return nil
				}
			}

			app.Chat().DeleteConversation(conv.ID)
			if ui := app.UIState(); ui.Selected == conv.ID || ui.Expanded[conv.ID] {
				ui.Collapse(conv.ID)
				if ui.Selected == conv.ID {
					ui.Select("")
				}
				app.Store().SaveUIState(ui)
			}
			fmt.Fprintln(e.streams.Out, app.Theme().RenderSuccess("Deleted "+shortID(conv.ID)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}
