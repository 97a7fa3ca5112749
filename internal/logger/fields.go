package logger

import "log/slog"

// Standard field keys. Use these consistently so logs can be aggregated and
// queried across commands.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Repository
	KeyRepo     = "repo"
	KeyRevision = "revision"
	KeyCommit   = "commit"
	KeyShard    = "shard"
	KeyShards   = "shards"
	KeyETag     = "etag"
	KeyBackend  = "backend" // hub, s3

	// I/O
	KeyOffset     = "offset"
	KeyLength     = "length"
	KeyHeaderSize = "header_size"
	KeyTensors    = "tensors"
	KeyStatus     = "status"
	KeyURL        = "url"
	KeyBucket     = "bucket"
	KeyKey        = "key"

	// Cache
	KeyCacheHit = "cache_hit"
	KeyPath     = "path"
	KeyReason   = "reason"

	// Operation metadata
	KeyStage      = "stage"
	KeyBatch      = "batch"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// Repo returns a slog.Attr for the repository identifier
func Repo(id string) slog.Attr {
	return slog.String(KeyRepo, id)
}

// Revision returns a slog.Attr for the requested revision
func Revision(rev string) slog.Attr {
	return slog.String(KeyRevision, rev)
}

// Commit returns a slog.Attr for a resolved commit hash
func Commit(sha string) slog.Attr {
	return slog.String(KeyCommit, sha)
}

// Shard returns a slog.Attr for a checkpoint shard filename
func Shard(name string) slog.Attr {
	return slog.String(KeyShard, name)
}

// ETag returns a slog.Attr for a remote content identity
func ETag(etag string) slog.Attr {
	return slog.String(KeyETag, etag)
}

// Offset returns a slog.Attr for a byte offset
func Offset(off uint64) slog.Attr {
	return slog.Uint64(KeyOffset, off)
}

// Length returns a slog.Attr for a byte length
func Length(n uint64) slog.Attr {
	return slog.Uint64(KeyLength, n)
}

// HeaderSize returns a slog.Attr for a shard header length
func HeaderSize(n uint64) slog.Attr {
	return slog.Uint64(KeyHeaderSize, n)
}

// CacheHit returns a slog.Attr for cache hit indicator
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// Path returns a slog.Attr for a filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Stage returns a slog.Attr for the step of an operation that failed
func Stage(s string) slog.Attr {
	return slog.String(KeyStage, s)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
