package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// configPath is the optional YAML configuration file, shared by all
// commands. Environment variables override file values.
var configPath string

// rootCmd represents the base command for the dropforward application
var rootCmd = &cobra.Command{
	Use:   "dropforward",
	Short: "Forwards files from a Dropbox folder by email and archives them",
	Long: `dropforward watches a Dropbox folder for deposited files, forwards each
accepted file to a configured address by email, archives a copy to a remote
backup folder, and removes the processed original.

It can run as:
  - A long-running daemon with scheduled polling and an OAuth front door (serve)
  - A one-shot tool for a single poll, token refresh, or authorization`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "dropforward version %s\n" .Version}}`)

	// If no subcommand is provided, run the daemon by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPollCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newAuthorizeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
