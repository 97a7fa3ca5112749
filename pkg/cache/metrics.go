package cache

import "time"

// Metrics records cache activity.
//
// Implementations must be safe for concurrent use. A nil Metrics is valid
// and disables collection; see pkg/metrics for the Prometheus implementation.
type Metrics interface {
	// RecordLookup records one lookup and whether it hit.
	RecordLookup(hit bool)

	// RecordInstall records one install of bytes bytes. err is nil on success.
	RecordInstall(bytes int, duration time.Duration, err error)
}
