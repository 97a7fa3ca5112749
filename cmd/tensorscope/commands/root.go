// Package commands implements the tensorscope CLI.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/tensorscope/cmd/tensorscope/commands/config"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile      string
	revision     string
	outputFormat string
	noProgress   bool
	noColor      bool
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tensorscope",
	Short: "tensorscope - Inspect safetensors checkpoints without downloading them",
	Long: `tensorscope lists the tensors of a safetensors checkpoint hosted on a
model hub or mirrored into an S3 bucket. Only the JSON header of each shard is
downloaded, using HTTP range requests, and cached in the Hugging Face hub cache
layout so later runs work offline.

Use "tensorscope [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// SIGINT and SIGTERM cancel the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/tensorscope/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&revision, "revision", "r", "", "branch, tag or commit to inspect (default from config: main)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable the progress spinner")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(shardsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}
