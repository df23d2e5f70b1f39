package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// globalFlags are shared by every command.
type globalFlags struct {
	configFile string
	provider   string
	model      string
	workspace  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "Agentic coding assistant",
		Long: `Forge runs a tool-using model against your workspace. File changes are
staged for review and only touch disk once accepted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (default is $HOME/.config/forge/config.yaml)")
	pf.StringVar(&flags.provider, "provider", "", "provider to use: claude, openai, deepseek or ollama")
	pf.StringVar(&flags.model, "model", "", "model name for the selected provider")
	pf.StringVar(&flags.workspace, "workspace", "", "workspace root (default is the working directory)")

	rootCmd.AddCommand(
		newChatCmd(flags),
		newServeCmd(flags),
		newThreadsCmd(flags),
		newEditsCmd(flags),
		newModelsCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "forge version %s\n", version)
			},
		},
	)
	return rootCmd
}
