package config

import (
	"fmt"
	"os"

	"github.com/marmos91/tensorscope/internal/cli/output"
	"github.com/marmos91/tensorscope/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the tensorscope configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  tensorscope config validate

  # Validate specific config file
  tensorscope config validate --config ./tensorscope.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Remote.Type == config.RemoteHub && cfg.Remote.Hub.Token == "" {
		warnings = append(warnings, "No hub token configured - gated repositories will be refused")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Textfile == "" && cfg.Metrics.PushGateway == "" {
		warnings = append(warnings, "Metrics enabled without textfile or push_gateway - nothing will be exported")
	}

	w := cmd.OutOrStdout()
	printer := output.NewPrinter(w, output.FormatTable, output.ColorSupported(os.Stdout))
	printer.Printf("Configuration file: %s\n", configPath(cmd))
	printer.Success("Validation: OK")

	if len(warnings) > 0 {
		printer.Println("\nWarnings:")
		for _, msg := range warnings {
			printer.Warning("  - " + msg)
		}
	}

	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir = "(hub cache default)"
	}
	_, _ = fmt.Fprintf(w, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(w, "  Remote type:     %s\n", cfg.Remote.Type)
	_, _ = fmt.Fprintf(w, "  Revision:        %s\n", cfg.Remote.Revision)
	_, _ = fmt.Fprintf(w, "  Cache dir:       %s\n", cacheDir)
	_, _ = fmt.Fprintf(w, "  Max concurrent:  %d\n", cfg.Fetch.MaxConcurrent)
	_, _ = fmt.Fprintf(w, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
