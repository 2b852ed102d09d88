package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	eventemitter "github.com/vansante/go-event-emitter"

	lzerrors "github.com/franksops/lzstage/errors"
)

func TestSidecarFixer_AfterPatternBuild(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "lib1", "out", "a.bam")
	writeFile(t, data, "ACGTACGT")

	set, err := newPatternBuilder(root, true).Build(context.Background(), "/zone/lz")
	require.NoError(t, err)

	fixer := NewSidecarFixer(0, discardLogger())
	fixed, err := fixer.Fix(context.Background(), set)
	require.NoError(t, err)

	content, err := os.ReadFile(data + ".md5")
	require.NoError(t, err)
	require.Equal(t, md5Hex([]byte("ACGTACGT"))+"  a.bam", string(content))

	jobs := fixed.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, data, jobs[0].SourcePath)
	require.Equal(t, data+".md5", jobs[1].SourcePath)
	require.Equal(t, int64(len(content)), jobs[1].Size)
	require.Equal(t, uint64(8), fixer.Progress.Load())

	// The original set is untouched.
	require.Equal(t, int64(0), set.Jobs()[1].Size)
}

func TestSidecarFixer_Concurrent(t *testing.T) {
	dir := t.TempDir()
	var jobs []TransferJob
	var dataBytes uint64
	for _, name := range []string{"a.bam", "b.bam", "c.bam", "d.bam"} {
		path := filepath.Join(dir, name)
		writeFile(t, path, name+name)
		dataBytes += uint64(2 * len(name))
		jobs = append(jobs,
			TransferJob{SourcePath: path, DestinationPath: "/zone/" + name, Size: int64(2 * len(name))},
			TransferJob{SourcePath: path + ".md5", DestinationPath: "/zone/" + name + ".md5"},
		)
	}
	// One sidecar already exists and must be kept as is.
	writeFile(t, filepath.Join(dir, "a.bam.md5"), "existing  a.bam")
	dataBytes -= uint64(2 * len("a.bam"))

	fixer := NewSidecarFixer(3, discardLogger())
	var mu sync.Mutex
	var events int
	fixer.AddListener(SidecarWrittenEvent, func(args ...interface{}) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	fixed, err := fixer.Fix(context.Background(), NewJobSet(jobs...))
	require.NoError(t, err)
	require.Equal(t, 8, fixed.Len())
	require.Equal(t, dataBytes, fixer.Progress.Load())
	require.Equal(t, 3, events)

	existing, err := os.ReadFile(filepath.Join(dir, "a.bam.md5"))
	require.NoError(t, err)
	require.Equal(t, "existing  a.bam", string(existing))

	for _, job := range fixed.Jobs() {
		if IsSidecar(job.SourcePath) {
			size, err := fileSize(job.SourcePath)
			require.NoError(t, err)
			require.Equal(t, size, job.Size)
		}
	}
}

func TestSidecarFixer_NothingToDo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bam")
	writeFile(t, path, "a")
	set := NewJobSet(TransferJob{SourcePath: path, DestinationPath: "/zone/a.bam", Size: 1})

	fixed, err := (&SidecarFixer{Logger: discardLogger()}).Fix(context.Background(), set)
	require.NoError(t, err)
	require.Equal(t, set, fixed)
}

func TestSidecarFixer_MissingDataFile(t *testing.T) {
	dir := t.TempDir()
	set := NewJobSet(TransferJob{SourcePath: filepath.Join(dir, "gone.bam.md5"), DestinationPath: "/zone/gone.bam.md5"})

	_, err := NewSidecarFixer(0, discardLogger()).Fix(context.Background(), set)
	require.ErrorIs(t, err, lzerrors.ErrMissingFile)

	set = NewJobSet(TransferJob{SourcePath: filepath.Join(dir, "gone.bam"), DestinationPath: "/zone/gone.bam"})
	_, err = NewSidecarFixer(0, discardLogger()).Fix(context.Background(), set)
	require.ErrorIs(t, err, lzerrors.ErrMissingFile)
}

func TestSidecarFixer_WriteFailure(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "a.bam")
	writeFile(t, data, "a")
	ro := filepath.Join(dir, "ro")
	require.NoError(t, os.Mkdir(ro, 0o755))
	writeFile(t, filepath.Join(ro, "b.bam"), "b")
	require.NoError(t, os.Chmod(ro, 0o555))
	t.Cleanup(func() { _ = os.Chmod(ro, 0o755) })

	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	set := NewJobSet(
		TransferJob{SourcePath: filepath.Join(ro, "b.bam.md5"), DestinationPath: "/zone/b.bam.md5"},
	)
	fixer := NewSidecarFixer(0, discardLogger())
	fixer.AddCapturer(func(event eventemitter.EventType, args ...interface{}) {
		t.Fatalf("unexpected event %s", event)
	})

	_, err := fixer.Fix(context.Background(), set)
	require.ErrorIs(t, err, lzerrors.ErrChecksum)
	_, statErr := os.Stat(filepath.Join(ro, "b.bam.md5"))
	require.True(t, os.IsNotExist(statErr))
}
