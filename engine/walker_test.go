package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	lzerrors "github.com/franksops/lzstage/errors"
	"github.com/franksops/lzstage/provider"
)

type mockFileInfo struct {
	name    string
	size    int64
	isDir   bool
	modTime time.Time
}

func (m mockFileInfo) Name() string       { return m.name }
func (m mockFileInfo) Size() int64        { return m.size }
func (m mockFileInfo) IsDir() bool        { return m.isDir }
func (m mockFileInfo) ModTime() time.Time { return m.modTime }

type mockSource struct {
	files map[string]mockFileInfo
	dirs  map[string][]mockFileInfo
}

func newMockSource() *mockSource {
	return &mockSource{
		files: make(map[string]mockFileInfo),
		dirs:  make(map[string][]mockFileInfo),
	}
}

func (m *mockSource) Stat(ctx context.Context, path string) (provider.FileInfo, error) {
	if info, ok := m.files[path]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("file not found: %s", path)
}

func (m *mockSource) List(ctx context.Context, path string) ([]provider.FileInfo, error) {
	if files, ok := m.dirs[path]; ok {
		res := make([]provider.FileInfo, len(files))
		for i, f := range files {
			res[i] = f
		}
		return res, nil
	}
	return nil, fmt.Errorf("directory not found: %s", path)
}

func (m *mockSource) addFile(path string, size int64) {
	info := mockFileInfo{name: filepath.Base(path), size: size}
	m.files[path] = info
	dir := filepath.Dir(path)
	m.dirs[dir] = append(m.dirs[dir], info)
}

func (m *mockSource) addDir(path string) {
	info := mockFileInfo{name: filepath.Base(path), isDir: true}
	m.files[path] = info
	if _, ok := m.dirs[path]; !ok {
		m.dirs[path] = nil
	}
	parent := filepath.Dir(path)
	m.dirs[parent] = append(m.dirs[parent], info)
}

func newDeepSource() *mockSource {
	src := newMockSource()
	src.files["/run"] = mockFileInfo{name: "run", isDir: true}
	src.addFile("/run/a.bam", 10)
	src.addFile("/run/a.bam.md5", 40)
	src.addDir("/run/sub")
	src.addFile("/run/sub/b.vcf", 20)
	src.addFile("/run/sub/b.vcf.md5", 40)
	src.addDir("/run/sub/deeper")
	src.addFile("/run/sub/deeper/c.txt", 30)
	src.addFile("/run/sub/deeper/c.txt.md5", 40)
	return src
}

func TestWalker_Recursive(t *testing.T) {
	w := &Walker{
		Source:        newDeepSource(),
		Sources:       []string{"/run"},
		Recursive:     true,
		SubCollection: "raw",
		Logger:        discardLogger(),
	}

	set, err := w.Build(context.Background(), "/zone/lz")
	require.NoError(t, err)

	got := map[string]string{}
	for _, job := range set.Jobs() {
		got[job.SourcePath] = job.DestinationPath
	}
	require.Equal(t, map[string]string{
		"/run/a.bam":                "/zone/lz/raw/a.bam",
		"/run/a.bam.md5":            "/zone/lz/raw/a.bam.md5",
		"/run/sub/b.vcf":            "/zone/lz/raw/sub/b.vcf",
		"/run/sub/b.vcf.md5":        "/zone/lz/raw/sub/b.vcf.md5",
		"/run/sub/deeper/c.txt":     "/zone/lz/raw/sub/deeper/c.txt",
		"/run/sub/deeper/c.txt.md5": "/zone/lz/raw/sub/deeper/c.txt.md5",
	}, got)
	require.Equal(t, int64(10+20+30+3*40), set.TotalBytes())
}

func TestWalker_TopLevelOnly(t *testing.T) {
	w := &Walker{Source: newDeepSource(), Sources: []string{"/run"}, Logger: discardLogger()}

	set, err := w.Build(context.Background(), "/zone/lz")
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	require.Equal(t, "/zone/lz/a.bam", set.Jobs()[0].DestinationPath)
}

func TestWalker_SingleFile(t *testing.T) {
	w := &Walker{Source: newDeepSource(), Sources: []string{"/run/sub/b.vcf"}, Logger: discardLogger()}

	set, err := w.Build(context.Background(), "/zone/lz")
	require.NoError(t, err)
	jobs := set.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, "/zone/lz/b.vcf", jobs[0].DestinationPath)
	require.Equal(t, "/zone/lz/b.vcf.md5", jobs[1].DestinationPath)
}

func TestWalker_MissingSource(t *testing.T) {
	w := &Walker{Source: newDeepSource(), Sources: []string{"/nope"}, Logger: discardLogger()}
	_, err := w.Build(context.Background(), "/zone/lz")
	require.ErrorIs(t, err, lzerrors.ErrMissingFile)
}

func TestWalker_MissingSidecar(t *testing.T) {
	src := newMockSource()
	src.files["/run"] = mockFileInfo{name: "run", isDir: true}
	src.addFile("/run/a.bam", 10)

	w := &Walker{Source: src, Sources: []string{"/run"}, Logger: discardLogger()}
	_, err := w.Build(context.Background(), "/zone/lz")
	require.ErrorIs(t, err, lzerrors.ErrMissingFile)

	w.FixChecksums = true
	set, err := w.Build(context.Background(), "/zone/lz")
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
}

func TestWalker_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &Walker{Source: newDeepSource(), Sources: []string{"/run"}, Recursive: true, Logger: discardLogger()}
	_, err := w.Build(ctx, "/zone/lz")
	require.ErrorIs(t, err, context.Canceled)
}

func TestWalker_PrepareNormalizesSidecarCase(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.bam"), "a")
	writeFile(t, filepath.Join(root, "a.bam.MD5"), "d  a.bam")

	w := NewWalker([]string{root}, false)
	w.Logger = discardLogger()

	// Build leaves the sources alone.
	_, err := w.Build(context.Background(), "/zone/lz")
	require.ErrorIs(t, err, lzerrors.ErrMissingFile)
	_, err = os.Stat(filepath.Join(root, "a.bam.MD5"))
	require.NoError(t, err)

	require.NoError(t, w.Prepare(context.Background()))

	set, err := w.Build(context.Background(), "/zone/lz")
	require.NoError(t, err)

	jobs := set.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, filepath.Join(root, "a.bam.md5"), jobs[1].SourcePath)
	require.Equal(t, int64(len("d  a.bam")), jobs[1].Size)

	_, err = os.Stat(filepath.Join(root, "a.bam.MD5"))
	require.True(t, os.IsNotExist(err))
}

func TestWalker_SymlinkCycle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.bam"), "a")
	writeFile(t, filepath.Join(root, "a.bam.md5"), "d  a.bam")
	require.NoError(t, os.Symlink(root, filepath.Join(root, "loop")))

	other := t.TempDir()
	writeFile(t, filepath.Join(other, "b.vcf"), "b")
	writeFile(t, filepath.Join(other, "b.vcf.md5"), "d  b.vcf")
	require.NoError(t, os.Symlink(other, filepath.Join(root, "ext")))

	w := NewWalker([]string{root}, true)
	w.Logger = discardLogger()

	set, err := w.Build(context.Background(), "/zone/lz")
	require.NoError(t, err)

	var dests []string
	for _, job := range set.Jobs() {
		dests = append(dests, job.DestinationPath)
	}
	require.ElementsMatch(t, []string{
		"/zone/lz/a.bam", "/zone/lz/a.bam.md5",
		"/zone/lz/ext/b.vcf", "/zone/lz/ext/b.vcf.md5",
	}, dests)
}
