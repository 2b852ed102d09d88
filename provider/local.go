package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ensure interfaces are implemented
var (
	_ Source      = (*LocalProvider)(nil)
	_ Collections = (*LocalProvider)(nil)
)

type localFileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
}

func (l *localFileInfo) Name() string       { return l.name }
func (l *localFileInfo) Size() int64        { return l.size }
func (l *localFileInfo) IsDir() bool        { return l.isDir }
func (l *localFileInfo) ModTime() time.Time { return l.modTime }

// WrapOSFileInfo converts an os.FileInfo into a FileInfo.
func WrapOSFileInfo(info os.FileInfo) FileInfo {
	return &localFileInfo{
		name:    info.Name(),
		size:    info.Size(),
		isDir:   info.IsDir(),
		modTime: info.ModTime(),
	}
}

// LocalProvider serves two roles: it lists local source files, and it acts as
// a collection store on a posix filesystem (a mounted landing zone or a
// scratch directory for dry runs).
type LocalProvider struct {
	basePath string
	wrap     ReaderWrapper
}

// NewLocalProvider creates a new LocalProvider rooted at basePath.
// If basePath is empty, it acts upon absolute or relative paths directly.
func NewLocalProvider(basePath string) *LocalProvider {
	return &LocalProvider{
		basePath: basePath,
	}
}

// WithReaderWrapper decorates reads of local files during PutObject.
func (p *LocalProvider) WithReaderWrapper(wrap ReaderWrapper) *LocalProvider {
	p.wrap = wrap
	return p
}

func (p *LocalProvider) resolve(path string) string {
	if p.basePath == "" {
		return path
	}
	return filepath.Join(p.basePath, filepath.Clean("/"+path))
}

func (p *LocalProvider) Stat(ctx context.Context, path string) (FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	info, err := os.Stat(p.resolve(path))
	if err != nil {
		return nil, err
	}
	return WrapOSFileInfo(info), nil
}

func (p *LocalProvider) List(ctx context.Context, path string) ([]FileInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(p.resolve(path))
	if err != nil {
		return nil, err
	}

	var infos []FileInfo
	for _, entry := range entries {
		// Follow symlinks so linked data files are staged like regular ones.
		info, err := os.Stat(filepath.Join(p.resolve(path), entry.Name()))
		if err != nil {
			continue // skip files that disappeared or dangling links
		}
		infos = append(infos, WrapOSFileInfo(info))
	}
	return infos, nil
}

func (p *LocalProvider) MakeCollection(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(p.resolve(path), 0o755)
}

func (p *LocalProvider) CollectionExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(p.resolve(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	}
	return info.IsDir(), nil
}

// PutObject copies the file into a temporary object next to the target and
// renames it into place, so readers never observe a partial object.
func (p *LocalProvider) PutObject(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	stat, err := src.Stat()
	if err != nil {
		return err
	}

	fullPath := p.resolve(remotePath)
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".part-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	var reader io.Reader = src
	if p.wrap != nil {
		reader = p.wrap(reader)
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copy %s: %w", localPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Writing updates mtime; keep the source timestamp.
	_ = os.Chtimes(tmpPath, time.Now(), stat.ModTime())

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (p *LocalProvider) ChecksumObject(ctx context.Context, remotePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(p.resolve(remotePath))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, remotePath)
	}
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest(f)
}
