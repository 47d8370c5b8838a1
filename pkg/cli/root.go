// Package cli assembles the alctl command tree.
package cli

import (
	"github.com/spf13/cobra"

	internalcli "github.com/agentlaunch-dev/agentlaunch/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "alctl",
	Short: "alctl deploys agent applications and provisions their permissions",
	Long: `alctl builds, packages, and deploys an agent application to its cloud
host, reconciles the resources it needs, and grants the OAuth2 permissions
its MCP tool servers require. Deployment state lives in a YAML
configuration file next to the project.`,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("config", "", "Configuration file path (defaults to ./agentlaunch.yaml)")

	rootCmd.AddCommand(internalcli.DeployCmd)
	rootCmd.AddCommand(internalcli.StatusCmd)
	rootCmd.AddCommand(internalcli.VersionCmd)
}

// Root returns the assembled command tree.
func Root() *cobra.Command {
	return rootCmd
}
