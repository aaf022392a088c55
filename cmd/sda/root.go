package main

import (
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	env       string
	configDir string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "sda",
		Short: "Retrieval and ranking core of the developer assistant",
		Long: `sda indexes project documents and chat history into a vector index
and returns reranked context for a prompt, optionally with a generated answer.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&g.env, "env", "", "config environment (overrides ENV, default local)")
	cmd.PersistentFlags().StringVar(&g.configDir, "config-dir", "", "directory holding {env}.yaml (overrides CONFIG_DIR)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newServeCmd(g),
		newIngestCmd(g),
		newQueryCmd(g),
		newCollectionCmd(g),
		newVersionCmd(),
	)
	return cmd
}
