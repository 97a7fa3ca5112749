package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/marmos91/tensorscope/internal/cli/output"
	"github.com/marmos91/tensorscope/internal/cli/prompt"
	"github.com/marmos91/tensorscope/pkg/config"
	"github.com/spf13/cobra"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Create a tensorscope configuration file populated with defaults.

With --interactive the remote, revision, token and concurrency are asked for
before the file is written.

Examples:
  # Write the default config to $XDG_CONFIG_HOME/tensorscope/config.yaml
  tensorscope config init

  # Answer a few questions first
  tensorscope config init --interactive

  # Overwrite a custom location
  tensorscope config init --config ./tensorscope.yaml --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for the main settings")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	printer := output.NewPrinter(cmd.OutOrStdout(), output.FormatTable, output.ColorSupported(os.Stdout))

	force := initForce
	cfg := config.GetDefaultConfig()
	if initInteractive {
		if _, err := os.Stat(path); err == nil {
			ok, err := prompt.ConfirmWithForce(fmt.Sprintf("%s exists. Overwrite", path), force)
			if err != nil && !prompt.IsAborted(err) {
				return err
			}
			if !ok {
				printer.Println("Aborted.")
				return nil
			}
			force = true
		}
		if err := promptConfig(cfg); err != nil {
			if prompt.IsAborted(err) {
				printer.Println("Aborted.")
				return nil
			}
			return err
		}
	}

	if err := config.WriteConfig(cfg, path, force); err != nil {
		return err
	}

	printer.Success("Configuration file created at: " + path)
	printer.Println("\nNext steps:")
	printer.Println("  1. Edit the configuration with: tensorscope config edit")
	printer.Println("  2. Inspect a checkpoint with: tensorscope inspect <org/name>")
	return nil
}

// promptConfig asks for the settings most users change.
func promptConfig(cfg *config.Config) error {
	remoteType, err := prompt.Select("Where are checkpoints hosted?", []prompt.SelectOption{
		{Label: "Model hub", Value: config.RemoteHub, Description: "A Hugging Face compatible HTTP endpoint"},
		{Label: "S3 bucket", Value: config.RemoteS3, Description: "A repository mirrored into an S3 compatible bucket"},
	})
	if err != nil {
		return err
	}
	cfg.Remote.Type = remoteType

	switch remoteType {
	case config.RemoteHub:
		endpoint, err := prompt.Input("Hub endpoint", cfg.Remote.Hub.Endpoint)
		if err != nil {
			return err
		}
		cfg.Remote.Hub.Endpoint = endpoint

		token, err := prompt.Secret("Access token")
		if err != nil {
			return err
		}
		cfg.Remote.Hub.Token = token
	case config.RemoteS3:
		bucket, err := prompt.InputWithValidation("Bucket", "", func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("bucket is required")
			}
			return nil
		})
		if err != nil {
			return err
		}
		cfg.Remote.S3.Bucket = bucket

		region, err := prompt.InputOptional("Region")
		if err != nil {
			return err
		}
		cfg.Remote.S3.Region = region

		endpoint, err := prompt.InputOptional("Endpoint (empty for AWS)")
		if err != nil {
			return err
		}
		cfg.Remote.S3.Endpoint = endpoint
		cfg.Remote.S3.ForcePathStyle = endpoint != ""

		prefix, err := prompt.InputOptional("Key prefix")
		if err != nil {
			return err
		}
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		cfg.Remote.S3.KeyPrefix = prefix
	}

	rev, err := prompt.Input("Default revision", cfg.Remote.Revision)
	if err != nil {
		return err
	}
	cfg.Remote.Revision = rev

	n, err := prompt.InputInt("Concurrent shard fetches", cfg.Fetch.MaxConcurrent, 1, 64)
	if err != nil {
		return err
	}
	cfg.Fetch.MaxConcurrent = n
	return nil
}
