// Package remote defines the byte-range access a checkpoint inspector needs
// from a model repository, independent of where the repository is hosted.
//
// Implementations live in sub-packages: hub talks to a Hugging Face
// compatible HTTP endpoint, s3 reads a repository mirrored into a bucket.
package remote

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned when the requested file does not exist in the
	// repository at the requested revision.
	ErrNotFound = errors.New("remote file not found")

	// ErrRemote wraps transport failures and unexpected responses.
	ErrRemote = errors.New("remote request failed")

	// ErrShortRead is returned when a range read yields fewer bytes than
	// requested. It wraps ErrRemote.
	ErrShortRead = fmt.Errorf("%w: fewer bytes than requested", ErrRemote)
)

// Identity is what the repository reports about one file at one revision.
type Identity struct {
	// ETag is the content identifier of the file. It names the cache blob.
	ETag string
	// Revision is the resolved commit the file was served from.
	Revision string
	// Size is the full file size, or 0 if the backend did not report it.
	Size int64
}

// Source reads files of a single repository at a single requested revision.
// All methods must be safe for concurrent use.
type Source interface {
	// Repo returns the repository identifier, e.g. "org/name".
	Repo() string

	// Revision returns the requested revision (branch, tag or commit).
	Revision() string

	// ResolveRevision returns the commit the requested revision points to.
	ResolveRevision(ctx context.Context) (string, error)

	// Stat returns the identity of file.
	Stat(ctx context.Context, file string) (Identity, error)

	// ReadRange returns exactly length bytes of file starting at offset.
	ReadRange(ctx context.Context, file string, offset, length uint64) ([]byte, error)

	// Get returns the whole content of a small file.
	Get(ctx context.Context, file string) ([]byte, error)
}

// ValidateFile rejects filenames that could escape the repository when
// joined to a local or remote path.
func ValidateFile(name string) error {
	if name == "" {
		return fmt.Errorf("empty file name")
	}
	if strings.ContainsRune(name, '\\') || strings.HasPrefix(name, "/") {
		return fmt.Errorf("file name %q must be a relative slash separated path", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("file name %q contains an invalid path segment", name)
		}
	}
	if path.Clean(name) != name {
		return fmt.Errorf("file name %q is not canonical", name)
	}
	return nil
}

// NormalizeETag strips the weak validator marker and surrounding quotes.
func NormalizeETag(etag string) string {
	etag = strings.TrimSpace(etag)
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}

// ValidateRepo checks that a repository identifier has the "org/name" or
// "name" form.
func ValidateRepo(repo string) error {
	if repo == "" {
		return fmt.Errorf("empty repository identifier")
	}
	parts := strings.Split(repo, "/")
	if len(parts) > 2 {
		return fmt.Errorf("repository %q must have the form org/name", repo)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `\ `) {
			return fmt.Errorf("repository %q contains an invalid component", repo)
		}
	}
	return nil
}
