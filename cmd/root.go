// Package cmd contains the CLI commands of tgfb-relay.
package cmd

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// rootCmd runs one relay pass when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "tgfb-relay",
	Short: "Republish Telegram channel posts to a Facebook Page in Malay",
	Long: `tgfb-relay reads the latest posts of a Telegram channel, translates them
into Malay captions with Gemini and publishes them, with their photos or
video, to a Facebook Page. Published posts are recorded in a results store
so later runs never publish them twice.

Run it on a schedule (cron, systemd timer); each invocation is one pass.

Example usage:
  tgfb-relay                   # one relay pass using .env / environment
  tgfb-relay history           # list what has been published
  tgfb-relay version           # print version information`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runRelay,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by the CLI.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}
