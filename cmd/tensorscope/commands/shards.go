package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/tensorscope/pkg/checkpoint"
)

var shardsNamesOnly bool

var shardsCmd = &cobra.Command{
	Use:   "shards <repo>",
	Short: "List the shards of a checkpoint",
	Long: `List the shard files of a checkpoint with their tensor count, parameter
count, header size and payload size.

With --names-only only the shard index is read; no shard header is fetched.

Examples:
  # Per-shard breakdown
  tensorscope shards meta-llama/Llama-2-7b-hf

  # Only the file names listed in the index
  tensorscope shards meta-llama/Llama-2-7b-hf --names-only`,
	Args: cobra.ExactArgs(1),
	RunE: runShards,
}

func init() {
	shardsCmd.Flags().BoolVar(&shardsNamesOnly, "names-only", false, "Only list shard names from the index")
}

func runShards(cmd *cobra.Command, args []string) error {
	repo := args[0]
	s, err := newSession(cmd, repo)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if shardsNamesOnly {
		names, err := checkpoint.ResolveShards(ctx, s.source)
		if err != nil {
			return err
		}
		return s.printer.Print(newShardNames(repo, s.source.Revision(), names))
	}

	headers, err := s.load(ctx)
	if err != nil {
		return err
	}
	return s.printer.Print(newShardList(repo, s.source.Revision(), headers))
}
