package checkpoint

import "time"

// Where a header was served from.
const (
	SourceCache  = "cache"
	SourceRemote = "remote"
)

// Metrics records checkpoint load activity.
//
// Implementations must be safe for concurrent use. A nil Metrics is valid
// and disables collection.
type Metrics interface {
	// RecordFetch records one shard header fetch served from source.
	RecordFetch(source string, duration time.Duration, err error)

	// RecordRangeRead records one successful range read of bytes bytes.
	RecordRangeRead(bytes int)

	// RecordLoad records one checkpoint load over shards shards.
	RecordLoad(shards int, duration time.Duration, err error)
}

// Progress receives one increment per loaded shard and a completion signal.
type Progress interface {
	Inc(n int)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Inc(int) {}
func (nopProgress) Finish() {}
