package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedIndex is returned when the shard index exists but cannot
	// be interpreted.
	ErrMalformedIndex = errors.New("malformed shard index")

	// ErrMalformedHeader is returned when a remote shard does not start with
	// a valid safetensors header.
	ErrMalformedHeader = errors.New("malformed shard header")
)

// Stage names the step of a shard fetch that failed.
type Stage string

const (
	StageStat      Stage = "stat"
	StageRangeRead Stage = "range-read"
	StageParse     Stage = "parse"
	StageInstall   Stage = "install"
)

// ShardError reports which shard failed and at which stage.
type ShardError struct {
	Shard string
	Stage Stage
	Err   error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %s: %s: %v", e.Shard, e.Stage, e.Err)
}

func (e *ShardError) Unwrap() error {
	return e.Err
}

func shardError(shard string, stage Stage, err error) *ShardError {
	return &ShardError{Shard: shard, Stage: stage, Err: err}
}
