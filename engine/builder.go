package engine

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	lzerrors "github.com/franksops/lzstage/errors"
)

// DefaultRemoteDirPattern places files below <collection>/<library>/<step>/<date>.
const DefaultRemoteDirPattern = "{library_name}/{step}/{date}"

// DateLayout formats the date stamp of remote directories.
const DateLayout = "2006-01-02"

// Builder produces the job set for a resolved remote collection.
// Building only stats the local file system.
type Builder interface {
	Build(ctx context.Context, collection string) (JobSet, error)
}

// Preparer is implemented by builders whose sources need fixing up on disk.
// Prepare runs once before Build.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// LayoutFunc maps a library name to the local directory holding its files and
// a glob pattern relative to that directory.
type LayoutFunc func(library string) (baseDir, pattern string)

// TemplateLayout expands "{library_name}" in both templates.
func TemplateLayout(baseDirTemplate, patternTemplate string) LayoutFunc {
	return func(library string) (string, string) {
		return strings.ReplaceAll(baseDirTemplate, "{library_name}", library),
			strings.ReplaceAll(patternTemplate, "{library_name}", library)
	}
}

// PatternBuilder builds jobs by globbing a per-library directory.
type PatternBuilder struct {
	Libraries LibraryLister
	Layout    LayoutFunc

	// RemoteDirPattern is expanded with {library_name}, {step} and {date}.
	RemoteDirPattern string
	Step             string
	// Date defaults to today.
	Date string

	// Recursive enables "**" in patterns.
	Recursive bool

	// FixChecksums allows sidecars to be missing; they are generated later.
	FixChecksums bool

	Logger *slog.Logger
}

var _ Builder = (*PatternBuilder)(nil)

func (b *PatternBuilder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

func (b *PatternBuilder) remoteDir(collection, library string) string {
	pattern := b.RemoteDirPattern
	if pattern == "" {
		pattern = DefaultRemoteDirPattern
	}
	date := b.Date
	if date == "" {
		date = time.Now().Format(DateLayout)
	}
	dir := strings.NewReplacer(
		"{library_name}", library,
		"{step}", b.Step,
		"{date}", date,
	).Replace(pattern)
	return path.Join(collection, dir)
}

func (b *PatternBuilder) glob(pattern string) ([]string, error) {
	if b.Recursive {
		return doublestar.FilepathGlob(pattern)
	}
	return filepath.Glob(pattern)
}

// Build expands every library's pattern and pairs each data file with its sidecar.
func (b *PatternBuilder) Build(ctx context.Context, collection string) (JobSet, error) {
	libraries, err := b.Libraries.LibraryNames()
	if err != nil {
		return JobSet{}, lzerrors.Wrap(lzerrors.CodeValidation, "list libraries", "", err)
	}

	var jobs []TransferJob
	for _, library := range libraries {
		if err := ctx.Err(); err != nil {
			return JobSet{}, err
		}

		baseDir, pattern := b.Layout(library)
		pattern = filepath.Join(baseDir, pattern)
		b.logger().Debug("globbing library files", "library", library, "pattern", pattern)

		matches, err := b.glob(pattern)
		if err != nil {
			return JobSet{}, lzerrors.Wrap(lzerrors.CodeValidation, "glob", pattern, err)
		}

		remoteDir := b.remoteDir(collection, library)
		for _, match := range matches {
			libJobs, err := b.jobsForMatch(baseDir, match, remoteDir)
			if err != nil {
				return JobSet{}, err
			}
			jobs = append(jobs, libJobs...)
		}
	}
	return NewJobSet(jobs...), nil
}

func (b *PatternBuilder) jobsForMatch(baseDir, match, remoteDir string) ([]TransferJob, error) {
	rel, err := filepath.Rel(baseDir, match)
	if err != nil {
		return nil, lzerrors.Wrap(lzerrors.CodeValidation, "relative path", match, err)
	}

	// Dangling links name files that do not exist.
	realPath, err := filepath.EvalSymlinks(match)
	if err != nil {
		return nil, lzerrors.Wrap(lzerrors.CodeMissingFile, "resolve", match, err)
	}
	if IsSidecar(realPath) {
		return nil, nil
	}

	info, err := os.Stat(realPath)
	if err != nil {
		return nil, lzerrors.Wrap(lzerrors.CodeMissingFile, "build", realPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}

	sidecarSize, err := fileSize(SidecarPath(realPath))
	if err != nil && !b.FixChecksums {
		return nil, lzerrors.Wrap(lzerrors.CodeMissingFile, "build", SidecarPath(realPath), err)
	}

	dest := path.Join(remoteDir, filepath.ToSlash(rel))
	return []TransferJob{
		{SourcePath: realPath, DestinationPath: dest, Size: info.Size()},
		{SourcePath: SidecarPath(realPath), DestinationPath: SidecarPath(dest), Size: sidecarSize},
	}, nil
}

// fileSize returns the size of path, or 0 and the stat error.
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
