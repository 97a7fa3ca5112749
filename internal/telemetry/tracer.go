package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys recorded on checkpoint spans.
const (
	AttrRepo     = "checkpoint.repo"
	AttrRevision = "checkpoint.revision"
	AttrCommit   = "checkpoint.commit"
	AttrShard    = "checkpoint.shard"
	AttrShards   = "checkpoint.shards"
	AttrTensors  = "checkpoint.tensors"

	AttrETag       = "remote.etag"
	AttrBackend    = "remote.backend"
	AttrOffset     = "remote.offset"
	AttrLength     = "remote.length"
	AttrHTTPStatus = "http.response.status_code"

	AttrCacheHit    = "cache.hit"
	AttrHeaderBytes = "safetensors.header_bytes"
)

// Repo returns an attribute for the repository identifier.
func Repo(id string) attribute.KeyValue {
	return attribute.String(AttrRepo, id)
}

// Revision returns an attribute for the requested revision.
func Revision(rev string) attribute.KeyValue {
	return attribute.String(AttrRevision, rev)
}

// Commit returns an attribute for a resolved commit.
func Commit(sha string) attribute.KeyValue {
	return attribute.String(AttrCommit, sha)
}

// Shard returns an attribute for a shard filename.
func Shard(name string) attribute.KeyValue {
	return attribute.String(AttrShard, name)
}

// Shards returns an attribute for a shard count.
func Shards(n int) attribute.KeyValue {
	return attribute.Int(AttrShards, n)
}

// Tensors returns an attribute for a tensor count.
func Tensors(n int) attribute.KeyValue {
	return attribute.Int(AttrTensors, n)
}

// ETag returns an attribute for a remote content identity.
func ETag(etag string) attribute.KeyValue {
	return attribute.String(AttrETag, etag)
}

// Backend returns an attribute naming the remote backend (hub, s3).
func Backend(name string) attribute.KeyValue {
	return attribute.String(AttrBackend, name)
}

// Range returns the offset and length attributes of a byte-range read.
func Range(offset, length uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrOffset, int64(offset)),
		attribute.Int64(AttrLength, int64(length)),
	}
}

// HTTPStatus returns an attribute for an HTTP response status.
func HTTPStatus(code int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatus, code)
}

// CacheHit returns an attribute for cache hit/miss.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// HeaderBytes returns an attribute for the size of a shard header.
func HeaderBytes(n uint64) attribute.KeyValue {
	return attribute.Int64(AttrHeaderBytes, int64(n))
}

// StartLoadSpan starts the root span of a checkpoint load.
func StartLoadSpan(ctx context.Context, repo, revision string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Repo(repo), Revision(revision)}, attrs...)
	return StartSpan(ctx, "checkpoint.load", trace.WithAttributes(all...))
}

// StartShardSpan starts a span for a per-shard operation such as
// "checkpoint.fetch_header".
func StartShardSpan(ctx context.Context, operation, shard string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Shard(shard)}, attrs...)
	return StartSpan(ctx, operation, trace.WithAttributes(all...))
}

// StartRemoteSpan starts a client span for a request to a remote backend.
func StartRemoteSpan(ctx context.Context, backend, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Backend(backend)}, attrs...)
	return StartSpan(ctx, backend+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(all...),
	)
}

// StartCacheSpan starts a span for a local cache operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}
