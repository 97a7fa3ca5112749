// Package s3 reads a model repository mirrored into an S3 bucket.
//
// The bucket uses the same layout as the local hub cache:
//
//	<prefix><org>--<name>/refs/<revision>            text file holding a commit
//	<prefix><org>--<name>/snapshots/<commit>/<file>  repository files
//
// A revision with no refs object is used as the snapshot name directly.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/tensorscope/internal/logger"
	"github.com/marmos91/tensorscope/internal/telemetry"
	"github.com/marmos91/tensorscope/pkg/remote"
)

const (
	backendName = "s3"
	maxGetSize  = 64 << 20
)

// Config holds configuration for the S3 source.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to every key. Should end with "/" if non-empty.
	KeyPrefix string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// MaxRetries overrides the SDK retry attempts when positive.
	MaxRetries int
}

// API is the subset of the S3 client used by Source.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source is a remote.Source backed by an S3 bucket.
type Source struct {
	client   API
	bucket   string
	prefix   string
	repo     string
	revision string

	mu     sync.Mutex
	commit string
}

var _ remote.Source = (*Source)(nil)

// New creates a source for repo at revision using an existing client.
func New(client API, repo, revision string, cfg Config) (*Source, error) {
	if err := remote.ValidateRepo(repo); err != nil {
		return nil, err
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if revision == "" {
		return nil, fmt.Errorf("empty revision")
	}
	return &Source{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.KeyPrefix,
		repo:     repo,
		revision: revision,
	}, nil
}

// NewFromConfig creates an S3 client from cfg and wraps it in a Source.
func NewFromConfig(ctx context.Context, repo, revision string, cfg Config) (*Source, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return New(client, repo, revision, cfg)
}

// Repo implements remote.Source.
func (s *Source) Repo() string { return s.repo }

// Revision implements remote.Source.
func (s *Source) Revision() string { return s.revision }

func (s *Source) repoKey() string {
	return s.prefix + strings.ReplaceAll(s.repo, "/", "--")
}

// RefKey returns the key of the refs object for the requested revision.
func (s *Source) RefKey() string {
	return s.repoKey() + "/refs/" + s.revision
}

// FileKey returns the key of file in the snapshot of commit.
func (s *Source) FileKey(commit, file string) string {
	return s.repoKey() + "/snapshots/" + commit + "/" + file
}

// ResolveRevision reads the refs object of the requested revision. A
// missing refs object means the revision names a snapshot directly.
func (s *Source) ResolveRevision(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commit != "" {
		return s.commit, nil
	}

	ctx, span := telemetry.StartRemoteSpan(ctx, backendName, "resolve_revision",
		telemetry.Repo(s.repo), telemetry.Revision(s.revision))
	defer span.End()

	body, err := s.getObject(ctx, s.RefKey(), nil)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		s.commit = s.revision
	case err != nil:
		telemetry.RecordError(ctx, err)
		return "", err
	default:
		commit := strings.TrimSpace(string(body))
		if commit == "" || strings.Contains(commit, "/") {
			return "", fmt.Errorf("%w: refs object %s holds an invalid commit", remote.ErrRemote, s.RefKey())
		}
		s.commit = commit
	}

	telemetry.SetAttributes(ctx, telemetry.Commit(s.commit))
	logger.DebugCtx(ctx, "s3 revision resolved", logger.KeyRevision, s.revision, logger.KeyCommit, s.commit)
	return s.commit, nil
}

// Stat returns the object ETag and the resolved commit of file.
func (s *Source) Stat(ctx context.Context, file string) (remote.Identity, error) {
	commit, err := s.ResolveRevision(ctx)
	if err != nil {
		return remote.Identity{}, err
	}

	ctx, span := telemetry.StartRemoteSpan(ctx, backendName, "stat", telemetry.Shard(file))
	defer span.End()

	key := s.FileKey(commit, file)
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		err = s.mapError("head object", key, err)
		telemetry.RecordError(ctx, err)
		return remote.Identity{}, err
	}

	etag := remote.NormalizeETag(aws.ToString(out.ETag))
	if etag == "" {
		return remote.Identity{}, fmt.Errorf("%w: object %s has no ETag", remote.ErrRemote, key)
	}
	id := remote.Identity{
		ETag:     etag,
		Revision: commit,
		Size:     aws.ToInt64(out.ContentLength),
	}
	telemetry.SetAttributes(ctx, telemetry.ETag(id.ETag))
	return id, nil
}

// ReadRange fetches bytes [offset, offset+length) of file.
func (s *Source) ReadRange(ctx context.Context, file string, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	commit, err := s.ResolveRevision(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartRemoteSpan(ctx, backendName, "range_read",
		append(telemetry.Range(offset, length), telemetry.Shard(file))...)
	defer span.End()

	key := s.FileKey(commit, file)
	rng := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(rng),
	})
	if err != nil {
		err = s.mapError("get object range", key, err)
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	buf := make([]byte, length)
	n, err := io.ReadFull(resp.Body, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: got %d of %d bytes of %s at %d", remote.ErrShortRead, n, length, key, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read s3 object body: %w", remote.ErrRemote, err)
	}
	return buf, nil
}

// Get downloads a whole file of the resolved snapshot.
func (s *Source) Get(ctx context.Context, file string) ([]byte, error) {
	commit, err := s.ResolveRevision(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartRemoteSpan(ctx, backendName, "get", telemetry.Shard(file))
	defer span.End()

	return s.getObject(ctx, s.FileKey(commit, file), nil)
}

func (s *Source) getObject(ctx context.Context, key string, rng *string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  rng,
	})
	if err != nil {
		return nil, s.mapError("get object", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGetSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read s3 object body: %w", remote.ErrRemote, err)
	}
	if len(data) > maxGetSize {
		return nil, fmt.Errorf("%w: object %s exceeds %d bytes", remote.ErrRemote, key, maxGetSize)
	}
	return data, nil
}

// mapError translates SDK errors onto the remote error taxonomy.
func (s *Source) mapError(op, key string, err error) error {
	switch {
	case isNotFoundError(err):
		return fmt.Errorf("%w: s3://%s/%s", remote.ErrNotFound, s.bucket, key)
	case isInvalidRangeError(err):
		return fmt.Errorf("%w: s3://%s/%s", remote.ErrShortRead, s.bucket, key)
	default:
		return fmt.Errorf("%w: s3 %s %s: %w", remote.ErrRemote, op, key, err)
	}
}

func isNotFoundError(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isInvalidRangeError(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}
