package engine

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lzerrors "github.com/franksops/lzstage/errors"
)

// SidecarSuffix is appended to a data file name to name its checksum sidecar.
const SidecarSuffix = ".md5"

// sidecarSuffixUpper is the legacy spelling some tools produce.
const sidecarSuffixUpper = ".MD5"

// SidecarPath returns the checksum sidecar path for a data file.
func SidecarPath(dataPath string) string {
	return dataPath + SidecarSuffix
}

// IsSidecar reports whether path names a checksum sidecar, in either case.
func IsSidecar(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), SidecarSuffix)
}

// DataPath returns the data file a sidecar belongs to.
func DataPath(sidecarPath string) string {
	return sidecarPath[:len(sidecarPath)-len(SidecarSuffix)]
}

// FormatSidecar renders the md5sum exchange format: "<hex-digest>  <file-name>".
func FormatSidecar(digest, fileName string) string {
	return digest + "  " + fileName
}

// ChecksumPool manages reusable MD5 hashers to reduce allocations.
type ChecksumPool struct {
	pool sync.Pool
}

// NewChecksumPool creates a new ChecksumPool.
func NewChecksumPool() *ChecksumPool {
	return &ChecksumPool{
		pool: sync.Pool{
			New: func() any {
				return md5.New()
			},
		},
	}
}

// Get retrieves a hasher from the pool.
func (cp *ChecksumPool) Get() hash.Hash {
	return cp.pool.Get().(hash.Hash)
}

// Put returns a hasher to the pool after resetting it.
func (cp *ChecksumPool) Put(h hash.Hash) {
	h.Reset()
	cp.pool.Put(h)
}

var hashers = NewChecksumPool()

// ComputeMD5 returns the hex MD5 digest of the file at path.
// A nil buffer pool falls back to io.Copy's own buffer.
func ComputeMD5(path string, buffers *BufferPool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := hashers.Get()
	defer hashers.Put(h)

	if _, err := buffers.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteSidecar computes the digest of dataPath and writes it to the sidecar.
// A partially written sidecar is removed on failure. It returns the sidecar size.
func WriteSidecar(dataPath string, buffers *BufferPool) (int64, error) {
	sidecar := SidecarPath(dataPath)

	digest, err := ComputeMD5(dataPath, buffers)
	if err != nil {
		return 0, lzerrors.Wrap(lzerrors.CodeChecksum, "md5", dataPath, err)
	}

	content := FormatSidecar(digest, filepath.Base(dataPath))
	if err := os.WriteFile(sidecar, []byte(content), 0o644); err != nil {
		if rmErr := os.Remove(sidecar); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			err = fmt.Errorf("%w (removing partial sidecar: %v)", err, rmErr)
		}
		return 0, lzerrors.Wrap(lzerrors.CodeChecksum, "write sidecar", sidecar, err)
	}
	return int64(len(content)), nil
}

// NormalizeSidecarCase enforces the lower-case sidecar spelling for dataPath.
// If both x.MD5 and x.md5 exist the upper-case one is deleted; if only x.MD5
// exists it is renamed.
func NormalizeSidecarCase(dataPath string, logger *slog.Logger) error {
	upper := dataPath + sidecarSuffixUpper
	lower := SidecarPath(dataPath)

	upperInfo, err := os.Lstat(upper)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	lowerInfo, err := os.Lstat(lower)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("renaming upper case checksum sidecar", "from", upper, "to", lower)
		return os.Rename(upper, lower)
	case err != nil:
		return err
	}

	// On case-insensitive file systems both names resolve to the same file.
	if os.SameFile(upperInfo, lowerInfo) {
		return nil
	}
	logger.Info("removing upper case checksum sidecar", "path", upper, "kept", lower)
	return os.Remove(upper)
}
