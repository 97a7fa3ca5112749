package commands

import (
	"context"
	"errors"

	"github.com/marmos91/tensorscope/pkg/cache"
	"github.com/marmos91/tensorscope/pkg/checkpoint"
	"github.com/marmos91/tensorscope/pkg/remote"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitMalformed   = 2
	ExitNotFound    = 3
	ExitNetwork     = 4
	ExitStorage     = 5
	ExitInterrupted = 130
)

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, cache.ErrStorage):
		return ExitStorage
	case errors.Is(err, checkpoint.ErrMalformedIndex),
		errors.Is(err, checkpoint.ErrMalformedHeader),
		errors.Is(err, safetensors.ErrInvalidHeader):
		return ExitMalformed
	case errors.Is(err, remote.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, remote.ErrRemote):
		return ExitNetwork
	default:
		return ExitFailure
	}
}
