package provider

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Collections.ChecksumObject when the object does not exist.
var ErrNotFound = errors.New("object not found")

// FileInfo represents the standard metadata for a local file or directory.
type FileInfo interface {
	Name() string
	Size() int64
	IsDir() bool
	ModTime() time.Time
}

// Source lists local files that are candidates for staging.
type Source interface {
	// Stat returns the FileInfo for the given path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the contents of the given directory.
	List(ctx context.Context, path string) ([]FileInfo, error)
}

// Collections is the managed-storage transfer client. Paths are absolute
// collection paths such as /zone/project/lz_uuid/sample/file.bam.
type Collections interface {
	// MakeCollection creates the collection and its parents. It succeeds if
	// the collection already exists.
	MakeCollection(ctx context.Context, path string) error

	// CollectionExists reports whether the collection is visible.
	CollectionExists(ctx context.Context, path string) (bool, error)

	// PutObject uploads the local file to remotePath, overwriting any existing object.
	PutObject(ctx context.Context, localPath, remotePath string) error

	// ChecksumObject returns the hex encoded MD5 of the stored object.
	ChecksumObject(ctx context.Context, remotePath string) (string, error)
}

// ReaderWrapper decorates the stream read from a local file during PutObject.
// It is used for bandwidth limiting.
type ReaderWrapper func(r io.Reader) io.Reader
