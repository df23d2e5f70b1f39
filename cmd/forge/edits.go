package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"forge/internal/ledger"
	"forge/internal/thread"
)

func newEditsCmd(flags *globalFlags) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "edits",
		Short: "Review staged file edits",
	}
	cmd.PersistentFlags().StringVar(&threadID, "thread", "", "thread id (default is the current thread)")

	// withThread runs fn with the selected thread locked.
	withThread := func(cmd *cobra.Command, fn func(a *app, h *thread.Handle) error) error {
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := a.threads.Acquire(cmd.Context(), threadID)
		if err != nil {
			return err
		}
		defer h.Release()
		return fn(a, h)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List edits and their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withThread(cmd, func(a *app, h *thread.Handle) error {
				edits := h.Edits()
				if len(edits) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no edits")
					return nil
				}
				for i := range edits {
					e := &edits[i]
					added, removed := e.Stats()
					fmt.Fprintf(cmd.OutOrStdout(), "[%d] %-8s %s %s (+%d -%d)\n",
						i, e.Status, e.Type, a.workspace.Rel(e.Path), added, removed)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "diff [index]",
		Short: "Show the diff of one edit, or of every pending edit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withThread(cmd, func(a *app, h *thread.Handle) error {
				edits := h.Edits()
				indexes := edits.Pending()
				if len(args) == 1 {
					i, err := parseIndex(args[0])
					if err != nil {
						return err
					}
					indexes = []int{i}
				}
				for _, i := range indexes {
					e, ok := edits.Get(i)
					if !ok {
						return fmt.Errorf("edit %d: %w", i, ledger.ErrNoSuchEdit)
					}
					fmt.Fprint(cmd.OutOrStdout(), e.Preview(a.workspace.Rel(e.Path)))
				}
				return nil
			})
		},
	})

	resolveCmd := func(use, short string, resolve func(*thread.Handle, int) ledger.Outcome) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <index>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				i, err := parseIndex(args[0])
				if err != nil {
					return err
				}
				return withThread(cmd, func(a *app, h *thread.Handle) error {
					out := resolve(h, i)
					if !out.OK() {
						return out.Err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s %s\n", out.Index, out.Status, a.workspace.Rel(out.Path))
					return nil
				})
			},
		}
	}

	bulkCmd := func(use, short string, resolve func(*thread.Handle) ledger.Summary) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withThread(cmd, func(a *app, h *thread.Handle) error {
					printSummary(cmd.OutOrStdout(), resolve(h))
					return nil
				})
			},
		}
	}

	cmd.AddCommand(
		resolveCmd("accept", "Apply a pending edit to disk", (*thread.Handle).Accept),
		resolveCmd("reject", "Discard a pending edit", (*thread.Handle).Reject),
		bulkCmd("accept-all", "Apply every pending edit", (*thread.Handle).AcceptAll),
		bulkCmd("reject-all", "Discard every pending edit", (*thread.Handle).RejectAll),
	)
	return cmd
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid edit index %q", s)
	}
	return i, nil
}

func printSummary(w io.Writer, s ledger.Summary) {
	for _, out := range s.Outcomes {
		if out.OK() {
			fmt.Fprintf(w, "[%d] %s %s\n", out.Index, out.Status, out.Path)
		} else {
			fmt.Fprintf(w, "[%d] failed: %v\n", out.Index, out.Err)
		}
	}
	fmt.Fprintf(w, "applied %d, rejected %d, failed %d\n", s.Applied, s.Rejected, s.Failed)
}
