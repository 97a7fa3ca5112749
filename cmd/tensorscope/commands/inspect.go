package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/tensorscope/internal/logger"
	"github.com/marmos91/tensorscope/pkg/checkpoint"
)

var (
	inspectFilter  string
	inspectSummary bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <repo>",
	Short: "List the tensors of a checkpoint",
	Long: `Fetch the safetensors header of every shard of a checkpoint and print
the merged tensor table.

Headers already present in the local cache are read from disk; nothing else
is downloaded. Tensor payloads are never fetched.

Examples:
  # Inspect the main branch
  tensorscope inspect meta-llama/Llama-2-7b-hf

  # Inspect a tag and keep only attention weights
  tensorscope inspect mistralai/Mistral-7B-v0.1 --revision v1.0 --filter self_attn

  # Machine readable output
  tensorscope inspect openai-community/gpt2 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFilter, "filter", "f", "", "Only show tensors whose name contains this string")
	inspectCmd.Flags().BoolVar(&inspectSummary, "summary", false, "Only print the summary, not the tensor table")
}

func runInspect(cmd *cobra.Command, args []string) error {
	repo := args[0]
	s, err := newSession(cmd, repo)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	headers, err := s.load(ctx)
	if err != nil {
		return err
	}

	model, err := checkpoint.FetchModelConfig(ctx, s.source)
	if err != nil {
		logger.Warn("Failed to read model config", logger.KeyRepo, repo, logger.KeyError, err)
	}

	report := &inspectReport{
		Repo:     repo,
		Revision: s.source.Revision(),
		Commit:   s.commit(),
		Model:    model,
		Summary:  checkpoint.Summarize(headers),
	}
	if !inspectSummary {
		report.Tensors = checkpoint.Filter(checkpoint.Tensors(headers), inspectFilter)
	}
	return s.printer.Print(report)
}
