package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"forge/internal/agent"
	"forge/internal/thread"
)

func newChatCmd(flags *globalFlags) *cobra.Command {
	var (
		threadID  string
		autoApply bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message to the agent",
		Long: `Send one message and print the run's events. Without a message, read
messages from stdin, one per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctrl, err := a.controller()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			send := func(msg string) error {
				if err := printRun(out, ctrl.Send(cmd.Context(), threadID, msg)); err != nil {
					return err
				}
				if autoApply {
					return applyAll(cmd.Context(), a.threads, threadID, out)
				}
				return nil
			}

			if len(args) > 0 {
				return send(strings.Join(args, " "))
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				msg := strings.TrimSpace(scanner.Text())
				if msg == "" {
					continue
				}
				if err := send(msg); err != nil {
					if cmd.Context().Err() != nil {
						return nil
					}
					fmt.Fprintln(out, "Error:", err)
				}
			}
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "thread id (default is the current thread)")
	cmd.Flags().BoolVar(&autoApply, "auto-apply", false, "accept every pending edit after the run")
	return cmd
}

// printRun renders a run's events as plain text.
func printRun(w io.Writer, events iter.Seq2[agent.Event, error]) error {
	for ev, err := range events {
		if err != nil {
			return err
		}
		switch ev.Kind {
		case agent.KindText:
			fmt.Fprintln(w, ev.Text)
		case agent.KindToolStart:
			fmt.Fprintf(w, "-> %s %s\n", ev.Tool, formatArgs(ev.Args))
		case agent.KindToolEnd:
			fmt.Fprintf(w, "<- %s: %s\n", ev.Tool, firstLine(ev.Result))
		case agent.KindLog:
			fmt.Fprintf(w, "[%s] %s\n", ev.Level, ev.Text)
		case agent.KindSummary:
			s := ev.Summary
			fmt.Fprintf(w, "(%s/%s, %d iterations, %d tool calls, %s)\n",
				s.Provider, s.Model, s.Iterations, s.ToolCalls, s.Duration.Round(time.Millisecond))
		}
	}
	return nil
}

func applyAll(ctx context.Context, threads *thread.Manager, threadID string, w io.Writer) error {
	h, err := threads.Acquire(ctx, threadID)
	if err != nil {
		return err
	}
	defer h.Release()

	s := h.AcceptAll()
	if s.Applied+s.Failed > 0 {
		fmt.Fprintf(w, "applied %d edits, %d failed\n", s.Applied, s.Failed)
	}
	return nil
}

func formatArgs(args map[string]any) string {
	for _, key := range []string{"path", "command", "pattern", "query", "name", "id"} {
		if v, ok := args[key].(string); ok {
			return v
		}
	}
	return ""
}

func firstLine(s string) string {
	line, _, cut := strings.Cut(s, "\n")
	if cut {
		return line + " ..."
	}
	return line
}
