package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	lzerrors "github.com/franksops/lzstage/errors"
)

// DefaultPlaceholder stands for the destination collection in blueprints.
const DefaultPlaceholder = "__SODAR__"

var blockSeparator = regexp.MustCompile(`\n[ \t]*\n`)

// BlueprintBuilder builds jobs from a blueprint file: blocks of transfer
// commands separated by blank lines, each naming one local source and one
// "i:<placeholder>/..." destination.
type BlueprintBuilder struct {
	// Path is the blueprint file. Sources newer than it are rejected.
	Path string

	// Placeholder defaults to DefaultPlaceholder.
	Placeholder string

	Logger *slog.Logger
}

var _ Builder = (*BlueprintBuilder)(nil)

func (b *BlueprintBuilder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

func (b *BlueprintBuilder) placeholder() string {
	if b.Placeholder == "" {
		return DefaultPlaceholder
	}
	return b.Placeholder
}

// Build parses the blueprint and substitutes collection for the placeholder.
func (b *BlueprintBuilder) Build(ctx context.Context, collection string) (JobSet, error) {
	info, err := os.Stat(b.Path)
	if err != nil {
		return JobSet{}, lzerrors.Wrap(lzerrors.CodeMissingFile, "read blueprint", b.Path, err)
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return JobSet{}, lzerrors.Wrap(lzerrors.CodeMissingFile, "read blueprint", b.Path, err)
	}

	placeholder := b.placeholder()
	destPattern := regexp.MustCompile(`i:(` + regexp.QuoteMeta(placeholder) + `/\S+)`)

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	var jobs []TransferJob
	for _, block := range blockSeparator.Split(text, -1) {
		if err := ctx.Err(); err != nil {
			return JobSet{}, err
		}
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		source, err := blockSource(block)
		if err != nil {
			return JobSet{}, err
		}
		dest, err := blockDestination(block, destPattern)
		if err != nil {
			return JobSet{}, err
		}

		resolvedDest := strings.ReplaceAll(dest, placeholder, collection)
		command := strings.ReplaceAll(block, placeholder, collection)

		if IsSidecar(source) {
			b.logger().Debug("skipping sidecar named in blueprint", "path", source)
			continue
		}

		srcInfo, err := os.Stat(source)
		if err != nil {
			return JobSet{}, lzerrors.Wrap(lzerrors.CodeMissingFile, "build", source, err)
		}
		if srcInfo.ModTime().After(info.ModTime()) {
			return JobSet{}, lzerrors.New(lzerrors.CodeStaleInput, "build", source,
				"modified after blueprint %s was written, regenerate the blueprint", b.Path)
		}

		absSource, err := filepath.Abs(source)
		if err != nil {
			return JobSet{}, lzerrors.Wrap(lzerrors.CodeValidation, "build", source, err)
		}

		sidecarSize, _ := fileSize(SidecarPath(absSource))
		// One pass, destination first: the destination may end in the source name.
		sidecarCommand := strings.NewReplacer(
			resolvedDest, SidecarPath(resolvedDest),
			source, SidecarPath(source),
		).Replace(command)

		jobs = append(jobs,
			TransferJob{SourcePath: absSource, DestinationPath: resolvedDest, Size: srcInfo.Size(), Command: command},
			TransferJob{SourcePath: SidecarPath(absSource), DestinationPath: SidecarPath(resolvedDest), Size: sidecarSize, Command: sidecarCommand},
		)
	}
	return NewJobSet(jobs...), nil
}

// blockSource returns the single distinct word of block naming an existing path.
func blockSource(block string) (string, error) {
	var found []string
	for _, word := range strings.Fields(block) {
		if _, err := os.Stat(word); err == nil {
			found = appendUnique(found, word)
		}
	}
	if len(found) != 1 {
		return "", lzerrors.New(lzerrors.CodeValidation, "parse blueprint", "",
			"command block contains %d source files, want exactly one: %q", len(found), block)
	}
	return found[0], nil
}

// blockDestination returns the single distinct destination token of block.
func blockDestination(block string, pattern *regexp.Regexp) (string, error) {
	var found []string
	for _, match := range pattern.FindAllStringSubmatch(block, -1) {
		found = appendUnique(found, match[1])
	}
	if len(found) != 1 {
		return "", lzerrors.New(lzerrors.CodeValidation, "parse blueprint", "",
			"command block contains %d destinations, want exactly one: %q", len(found), block)
	}
	return found[0], nil
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
