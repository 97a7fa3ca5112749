// Package cache stores safetensors header prefixes on local disk using the
// Hugging Face hub cache layout:
//
//	<dir>/models--<org>--<name>/blobs/<etag>                  prefix + header
//	<dir>/models--<org>--<name>/snapshots/<commit>/<shard>    pointer to a blob
//	<dir>/models--<org>--<name>/refs/<revision>               commit hash
//
// A blob holds the first 8+L bytes of a shard: the little endian header
// length followed by the JSON header. Blobs are content addressed by the
// remote ETag and installed by atomic rename, so concurrent writers and
// interrupted runs never leave a partially written blob under its final name.
// Pointers are relative symlinks where the filesystem supports them and
// plain copies otherwise.
package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/marmos91/tensorscope/internal/logger"
	"github.com/marmos91/tensorscope/pkg/remote"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

// ErrStorage wraps every failure to write to the cache directory.
var ErrStorage = errors.New("cache storage failure")

const (
	blobsDir     = "blobs"
	snapshotsDir = "snapshots"
	refsDir      = "refs"

	incompleteSuffix = ".incomplete"

	defaultDirMode  os.FileMode = 0o755
	defaultFileMode os.FileMode = 0o644
)

// Config configures a Store.
type Config struct {
	// Dir is the cache root shared by every repository. Defaults to DefaultDir().
	Dir string

	// Repo is the repository identifier, "org/name" or "name".
	Repo string

	// Fs is the filesystem the cache lives on. Defaults to the OS filesystem.
	Fs afero.Fs

	// MaxHeaderSize bounds the header length accepted on lookup.
	// Defaults to safetensors.DefaultMaxHeaderSize.
	MaxHeaderSize uint64

	// Metrics receives lookup and install observations. May be nil.
	Metrics Metrics
}

// Store is the on-disk cache of one repository. It is safe for concurrent
// use by multiple goroutines and multiple processes sharing the directory.
type Store struct {
	fs        afero.Fs
	repo      string
	root      string
	maxHeader uint64
	metrics   Metrics
}

// New creates a Store for cfg.Repo under cfg.Dir. Nothing is written until
// the first Install or CreateRef.
func New(cfg Config) (*Store, error) {
	if err := remote.ValidateRepo(cfg.Repo); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		cfg.Dir = dir
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.MaxHeaderSize == 0 {
		cfg.MaxHeaderSize = safetensors.DefaultMaxHeaderSize
	}

	return &Store{
		fs:        cfg.Fs,
		repo:      cfg.Repo,
		root:      filepath.Join(cfg.Dir, RepoFolderName(cfg.Repo)),
		maxHeader: cfg.MaxHeaderSize,
		metrics:   cfg.Metrics,
	}, nil
}

// RepoFolderName returns the directory name of a model repository in the
// hub cache, e.g. "models--org--name".
func RepoFolderName(repo string) string {
	return "models--" + strings.ReplaceAll(repo, "/", "--")
}

// Repo returns the repository identifier the store was created for.
func (s *Store) Repo() string { return s.repo }

// Root returns the repository folder of the store.
func (s *Store) Root() string { return s.root }

// BlobPath returns the path of the blob named etag.
func (s *Store) BlobPath(etag string) string {
	return filepath.Join(s.root, blobsDir, etag)
}

// PointerPath returns the path of the snapshot entry for shard at commit.
func (s *Store) PointerPath(commit, shard string) string {
	return filepath.Join(s.root, snapshotsDir, commit, filepath.FromSlash(shard))
}

// RefPath returns the path of the ref file for revision.
func (s *Store) RefPath(revision string) string {
	return filepath.Join(s.root, refsDir, filepath.FromSlash(revision))
}

// ResolveRef returns the commit recorded for revision.
func (s *Store) ResolveRef(revision string) (string, bool) {
	if remote.ValidateFile(revision) != nil {
		return "", false
	}
	data, err := afero.ReadFile(s.fs, s.RefPath(revision))
	if err != nil {
		return "", false
	}
	commit := strings.TrimSpace(string(data))
	if remote.ValidateFile(commit) != nil || strings.Contains(commit, "/") {
		return "", false
	}
	return commit, true
}

// Lookup returns the cached header of shard at revision. The revision is
// resolved through its ref when one exists and used as a commit otherwise.
// A missing, dangling, truncated or unparsable entry is reported as a miss.
func (s *Store) Lookup(revision, shard string) (*safetensors.Header, bool) {
	h, reason := s.lookup(revision, shard)
	if s.metrics != nil {
		s.metrics.RecordLookup(h != nil)
	}
	if h == nil {
		logger.Debug("cache miss",
			logger.KeyRepo, s.repo,
			logger.KeyRevision, revision,
			logger.KeyShard, shard,
			logger.KeyReason, reason)
		return nil, false
	}
	logger.Debug("cache hit",
		logger.KeyRepo, s.repo,
		logger.KeyRevision, revision,
		logger.KeyShard, shard,
		logger.KeyTensors, len(h.Tensors))
	return h, true
}

func (s *Store) lookup(revision, shard string) (*safetensors.Header, string) {
	if err := remote.ValidateFile(revision); err != nil {
		return nil, err.Error()
	}
	if err := remote.ValidateFile(shard); err != nil {
		return nil, err.Error()
	}

	commit := revision
	if c, ok := s.ResolveRef(revision); ok {
		commit = c
	}

	f, err := s.fs.Open(s.PointerPath(commit, shard))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "no entry"
		}
		return nil, err.Error()
	}
	defer func() { _ = f.Close() }()

	h, err := safetensors.ReadHeader(f, s.maxHeader)
	if err != nil {
		return nil, err.Error()
	}
	return h, ""
}

// Install points snapshots/<commit>/<shard> at the blob for etag, writing
// the blob first unless it already starts with a valid header of
// len(payload) bytes. An existing blob may be a full shard downloaded by
// another tool and is never replaced; a missing or corrupt one is rewritten.
func (s *Store) Install(commit, shard, etag string, payload []byte) (err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordInstall(len(payload)+safetensors.PrefixSize, time.Since(start), err)
		}
	}()

	etag = remote.NormalizeETag(etag)
	if err := validateETag(etag); err != nil {
		return err
	}
	if err := remote.ValidateFile(commit); err != nil || strings.Contains(commit, "/") {
		return fmt.Errorf("%w: invalid commit %q", ErrStorage, commit)
	}
	if err := remote.ValidateFile(shard); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	data := safetensors.EncodePrefix(payload)
	blob := s.BlobPath(etag)
	if s.blobValid(blob, uint64(len(payload))) {
		logger.Debug("cache blob reused", logger.KeyETag, etag, logger.KeyPath, blob)
	} else if err := s.writeAtomic(blob, data); err != nil {
		return err
	}

	pointer := s.PointerPath(commit, shard)
	if err := s.fs.MkdirAll(filepath.Dir(pointer), defaultDirMode); err != nil {
		return fmt.Errorf("%w: create snapshot directory: %w", ErrStorage, err)
	}
	if s.linkPointer(blob, pointer) {
		logger.Debug("cache entry installed",
			logger.KeyShard, shard, logger.KeyETag, etag, logger.KeyCommit, commit)
		return nil
	}
	if err := s.writeAtomic(pointer, data); err != nil {
		return err
	}
	logger.Debug("cache entry installed as copy",
		logger.KeyShard, shard, logger.KeyETag, etag, logger.KeyCommit, commit)
	return nil
}

// CreateRef records that revision points at commit. Writing the commit a
// ref already holds is a no-op.
func (s *Store) CreateRef(revision, commit string) error {
	if err := remote.ValidateFile(revision); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := remote.ValidateFile(commit); err != nil || strings.Contains(commit, "/") {
		return fmt.Errorf("%w: invalid commit %q", ErrStorage, commit)
	}
	if current, ok := s.ResolveRef(revision); ok && current == commit {
		return nil
	}
	if err := s.writeAtomic(s.RefPath(revision), []byte(commit)); err != nil {
		return err
	}
	logger.Debug("cache ref updated", logger.KeyRevision, revision, logger.KeyCommit, commit)
	return nil
}

// blobValid reports whether blob exists and starts with a parsable header
// of length bytes.
func (s *Store) blobValid(blob string, length uint64) bool {
	f, err := s.fs.Open(blob)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	h, err := safetensors.ReadHeader(f, s.maxHeader)
	return err == nil && h.Length == length
}

// writeAtomic writes data to a uniquely named sibling of path and renames it
// into place.
func (s *Store) writeAtomic(path string, data []byte) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return fmt.Errorf("%w: create directory for %s: %w", ErrStorage, path, err)
	}

	tmp := tempName(path)
	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, defaultFileMode)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrStorage, tmp, err)
	}

	_, err = io.Copy(f, bytes.NewReader(data))
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: write %s: %w", ErrStorage, tmp, err)
	}

	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %w", ErrStorage, path, err)
	}
	return nil
}

// linkPointer replaces pointer with a relative symlink to blob. It reports
// false when the filesystem cannot hold symlinks.
func (s *Store) linkPointer(blob, pointer string) bool {
	linker, ok := s.fs.(afero.Linker)
	if !ok {
		return false
	}
	target, err := filepath.Rel(filepath.Dir(pointer), blob)
	if err != nil {
		return false
	}

	tmp := tempName(pointer)
	if err := linker.SymlinkIfPossible(target, tmp); err != nil {
		logger.Debug("symlink unsupported, copying blob", logger.KeyPath, pointer, logger.KeyError, err)
		return false
	}
	if err := s.fs.Rename(tmp, pointer); err != nil {
		_ = s.fs.Remove(tmp)
		logger.Debug("symlink rename failed, copying blob", logger.KeyPath, pointer, logger.KeyError, err)
		return false
	}
	return true
}

func tempName(path string) string {
	return path + "." + uuid.NewString() + incompleteSuffix
}

func validateETag(etag string) error {
	if etag == "" || etag == "." || etag == ".." || strings.ContainsAny(etag, `/\`) {
		return fmt.Errorf("%w: invalid etag %q", ErrStorage, etag)
	}
	return nil
}
