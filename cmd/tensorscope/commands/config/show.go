package config

import (
	"github.com/marmos91/tensorscope/internal/cli/output"
	"github.com/marmos91/tensorscope/pkg/config"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective tensorscope configuration: the file, environment
overrides and defaults merged together.

Outputs YAML unless --output json is given.

Examples:
  # Show default config as YAML
  tensorscope config show

  # Show as JSON
  tensorscope config show --output json

  # Show what an environment override resolves to
  TENSORSCOPE_FETCH_MAX_CONCURRENT=16 tensorscope config show`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("output")
	format, err := output.ParseFormat(name)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
