package main

import (
	"github.com/spf13/cobra"

	"github.com/acclab/go-sdl-utils/logger"
)

var (
	flagConfig  string
	flagHost    string
	flagPort    int
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sdlfile",
	Short: "File transfer between SDL orchestrators and lab devices",
	Long: `sdlfile moves single files between a self-driving-laboratory
orchestrator and a constrained device over the SDL transfer protocol:
one TCP connection per file, three length-prefixed frames (name, size,
content), no retries below the workflow layer.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			logger.SetLevel(logger.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to a TOML configuration file")
	rootCmd.PersistentFlags().StringVarP(&flagHost, "host", "H", "", "remote host (send) or bind address (recv)")
	rootCmd.PersistentFlags().IntVarP(&flagPort, "port", "p", 0, "TCP port")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}
