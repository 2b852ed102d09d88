package engine

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	lzerrors "github.com/franksops/lzstage/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func TestSidecarHelpers(t *testing.T) {
	require.Equal(t, "/data/a.bam.md5", SidecarPath("/data/a.bam"))
	require.Equal(t, "/data/a.bam", DataPath("/data/a.bam.md5"))
	require.True(t, IsSidecar("/data/a.bam.md5"))
	require.True(t, IsSidecar("/data/a.bam.MD5"))
	require.False(t, IsSidecar("/data/a.bam"))
	require.Equal(t, "abc  a.bam", FormatSidecar("abc", "a.bam"))
}

func TestChecksumPool(t *testing.T) {
	pool := NewChecksumPool()

	h1 := pool.Get()
	h1.Write([]byte("test"))
	checksum1 := h1.Sum(nil)
	pool.Put(h1)

	h2 := pool.Get()
	h2.Write([]byte("test"))
	checksum2 := h2.Sum(nil)

	if !bytes.Equal(checksum1, checksum2) {
		t.Errorf("Expected same checksum after pool reuse: %x vs %x", checksum1, checksum2)
	}
	pool.Put(h2)
}

func TestComputeMD5(t *testing.T) {
	data := bytes.Repeat([]byte("ACGT"), 10000)
	path := filepath.Join(t.TempDir(), "a.bam")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	withPool, err := ComputeMD5(path, NewBufferPool(1024))
	require.NoError(t, err)
	require.Equal(t, md5Hex(data), withPool)

	withoutPool, err := ComputeMD5(path, nil)
	require.NoError(t, err)
	require.Equal(t, withPool, withoutPool)

	_, err = ComputeMD5(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
}

func TestWriteSidecar(t *testing.T) {
	data := []byte("alignment")
	path := filepath.Join(t.TempDir(), "a.bam")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	size, err := WriteSidecar(path, nil)
	require.NoError(t, err)

	content, err := os.ReadFile(path + ".md5")
	require.NoError(t, err)
	require.Equal(t, md5Hex(data)+"  a.bam", string(content))
	require.Equal(t, int64(len(content)), size)
}

func TestWriteSidecar_MissingData(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteSidecar(filepath.Join(dir, "a.bam"), nil)
	require.ErrorIs(t, err, lzerrors.ErrChecksum)

	_, statErr := os.Stat(filepath.Join(dir, "a.bam.md5"))
	require.True(t, os.IsNotExist(statErr))
}

func TestWriteSidecar_UnwritableSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bam")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	// A directory in place of the sidecar makes the write fail.
	require.NoError(t, os.Mkdir(path+".md5", 0o755))

	_, err := WriteSidecar(path, nil)
	require.ErrorIs(t, err, lzerrors.ErrChecksum)
}

func TestNormalizeSidecarCase(t *testing.T) {
	t.Run("only upper", func(t *testing.T) {
		dir := t.TempDir()
		data := filepath.Join(dir, "a.bam")
		require.NoError(t, os.WriteFile(data+".MD5", []byte("upper"), 0o644))

		require.NoError(t, NormalizeSidecarCase(data, discardLogger()))

		content, err := os.ReadFile(data + ".md5")
		require.NoError(t, err)
		require.Equal(t, "upper", string(content))
	})

	t.Run("both", func(t *testing.T) {
		dir := t.TempDir()
		data := filepath.Join(dir, "a.bam")
		require.NoError(t, os.WriteFile(data+".MD5", []byte("upper"), 0o644))
		require.NoError(t, os.WriteFile(data+".md5", []byte("lower"), 0o644))

		require.NoError(t, NormalizeSidecarCase(data, discardLogger()))

		content, err := os.ReadFile(data + ".md5")
		require.NoError(t, err)
		require.Equal(t, "lower", string(content))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("none", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, NormalizeSidecarCase(filepath.Join(dir, "a.bam"), discardLogger()))
	})
}
