// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(e *env) *cobra.Command {
	var continueRef string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question",
		Long: `Send one message and stream the reply to stdout.

The exchange is saved like any other conversation. Without --continue it
starts a new conversation. With no arguments the question is read from
stdin when stdin is not a terminal.

Examples:
  quickr1 ask "What is a goroutine?"
  quickr1 ask -c 1 "And a channel?"
  git diff | quickr1 ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" && !isTerminal(e.streams.In) {
				data, err := io.ReadAll(e.streams.In)
				if err != nil {
					return fmt.Errorf("read question from stdin: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return ErrMissingArgument("question", `quickr1 ask "What is Go?"`)
			}

			app, err := e.open()
			if err != nil {
				return err
			}
			if continueRef != "" {
				conv, err := app.Resolve(continueRef)
				if err != nil {
					return err
				}
				app.Open(conv.ID)
			}

			out := e.streams.Out
			app.SetStreamHandlers(func(text string) { fmt.Fprint(out, text) }, nil)
			defer app.SetStreamHandlers(nil, nil)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res, err := app.Session().Submit(ctx, text)
			reportTurn(out, e.streams.Err, app.Theme(), res, err, e.flags.quiet)
			return err
		},
	}
	cmd.Flags().StringVarP(&continueRef, "continue", "c", "", "continue conversation <n|id>")
	return cmd
}
