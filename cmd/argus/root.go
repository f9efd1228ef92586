// Package argus implements the Argus CLI's root command, following the
// teacher's cobra.OnInitialize plus PersistentFlags wiring shape.
package argus

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/arguslabs/argus/obs"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "argus",
	Short: "Argus: a virtual-thread profiler and live dashboard feed",
	Long: `Argus consumes a firehose of virtual-thread, GC, CPU, and allocation
events and fans them out in real time to dashboard clients, while
maintaining rolling pinning, carrier-saturation, GC, and CPU analyses.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command against ctx, so subcommands can
// observe cancellation (e.g. on SIGINT/SIGTERM).
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initLogger)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, use built-in defaults)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

func initLogger() {
	obs.InitLogger(debug)
}
