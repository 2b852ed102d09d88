package engine

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"

	lzerrors "github.com/franksops/lzstage/errors"
	"github.com/franksops/lzstage/provider"
)

// Walker builds jobs from explicit local files and directories. Directories
// are traversed iteratively to avoid deep recursion on very deep trees.
type Walker struct {
	Source  provider.Source
	Sources []string

	// Recursive descends into sub directories; otherwise only the top level
	// files of a directory source are taken.
	Recursive bool

	// SubCollection is an optional collection below the destination.
	SubCollection string

	// FixChecksums allows sidecars to be missing; they are generated later.
	FixChecksums bool

	Logger *slog.Logger
}

var (
	_ Builder  = (*Walker)(nil)
	_ Preparer = (*Walker)(nil)
)

// NewWalker creates a walker over the local file system.
func NewWalker(sources []string, recursive bool) *Walker {
	return &Walker{
		Source:    provider.NewLocalProvider(""),
		Sources:   sources,
		Recursive: recursive,
	}
}

func (w *Walker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

// Build walks every source and maps it below collection.
func (w *Walker) Build(ctx context.Context, collection string) (JobSet, error) {
	var jobs []TransferJob
	err := w.visit(ctx, path.Join(collection, w.SubCollection), func(src, dest string, size int64) error {
		found, err := w.fileJobs(ctx, src, dest, size)
		jobs = append(jobs, found...)
		return err
	})
	if err != nil {
		return JobSet{}, err
	}
	return NewJobSet(jobs...), nil
}

// Prepare renames upper case .MD5 sidecars of every data file to .md5 and
// drops upper case duplicates. It is the only step that changes the sources.
func (w *Walker) Prepare(ctx context.Context) error {
	return w.visit(ctx, "", func(src, _ string, _ int64) error {
		if err := NormalizeSidecarCase(src, w.logger()); err != nil {
			return lzerrors.Wrap(lzerrors.CodeChecksum, "normalize sidecar", src, err)
		}
		return nil
	})
}

// visitFunc receives every data file with its destination path.
type visitFunc func(src, dest string, size int64) error

func (w *Walker) visit(ctx context.Context, target string, fn visitFunc) error {
	for _, src := range w.Sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return lzerrors.Wrap(lzerrors.CodeMissingFile, "walk", src, err)
		}
		if err := w.walk(ctx, abs, target, fn); err != nil {
			return err
		}
	}
	return nil
}

// walk starts an iterative (stack-based) walk of one source. Directories are
// entered once by their real path, so links back to an ancestor end the descent.
func (w *Walker) walk(ctx context.Context, sourcePath, destPath string, fn visitFunc) error {
	stat, err := w.Source.Stat(ctx, sourcePath)
	if err != nil {
		return lzerrors.Wrap(lzerrors.CodeMissingFile, "walk", sourcePath, err)
	}

	// A single file maps directly below the destination.
	if !stat.IsDir() {
		if IsSidecar(sourcePath) {
			w.logger().Debug("skipping sidecar source", "path", sourcePath)
			return nil
		}
		return fn(sourcePath, path.Join(destPath, stat.Name()), stat.Size())
	}

	// Paths on the stack are relative to sourcePath.
	type walkItem struct {
		relPath string
	}

	visited := make(map[string]bool)
	stack := []walkItem{{relPath: ""}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		currentSourcePath := filepath.Join(sourcePath, curr.relPath)
		resolved := realPath(currentSourcePath)
		if visited[resolved] {
			w.logger().Warn("skipping directory that was already walked", "path", currentSourcePath, "target", resolved)
			continue
		}
		visited[resolved] = true

		entries, err := w.Source.List(ctx, currentSourcePath)
		if err != nil {
			return lzerrors.Wrap(lzerrors.CodeMissingFile, "list", currentSourcePath, err)
		}

		for _, entry := range entries {
			entryRelPath := filepath.Join(curr.relPath, entry.Name())

			if entry.IsDir() {
				if w.Recursive {
					stack = append(stack, walkItem{relPath: entryRelPath})
				}
				continue
			}
			if IsSidecar(entry.Name()) {
				continue
			}

			err := fn(filepath.Join(sourcePath, entryRelPath),
				path.Join(destPath, filepath.ToSlash(entryRelPath)),
				entry.Size())
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// realPath resolves symlinks; paths that cannot be resolved stand for themselves.
func realPath(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return p
}

// fileJobs returns the data job and sidecar job for one file.
func (w *Walker) fileJobs(ctx context.Context, src, dest string, size int64) ([]TransferJob, error) {
	var sidecarSize int64
	info, err := w.Source.Stat(ctx, SidecarPath(src))
	switch {
	case err == nil:
		sidecarSize = info.Size()
	case !w.FixChecksums:
		return nil, lzerrors.Wrap(lzerrors.CodeMissingFile, "walk", SidecarPath(src), err)
	}

	return []TransferJob{
		{SourcePath: src, DestinationPath: dest, Size: size},
		{SourcePath: SidecarPath(src), DestinationPath: SidecarPath(dest), Size: sidecarSize},
	}, nil
}
