// Package commands implements the personabot CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root CLI command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "personabot",
		Short: "Persona-driven Discord chat bot",
		Long: `Personabot is a Discord bot that chats in configurable personas,
keeps per-channel conversation context, and moderates itself with
per-user and per-server rate limits.

Examples:
  personabot serve
  personabot serve --config ./config.yaml
  personabot personas`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newPersonasCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
