package engine

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LibraryLister enumerates the library names a pattern build covers.
type LibraryLister interface {
	LibraryNames() ([]string, error)
}

// StaticLibraries is a fixed list of library names.
type StaticLibraries []string

// LibraryNames returns the names sorted and without duplicates.
func (s StaticLibraries) LibraryNames() ([]string, error) {
	return uniqueSorted(s), nil
}

// LibraryFile reads library names from a file, one per line.
// Blank lines and lines starting with '#' are ignored.
type LibraryFile string

// LibraryNames parses the file.
func (f LibraryFile) LibraryNames() ([]string, error) {
	file, err := os.Open(string(f))
	if err != nil {
		return nil, fmt.Errorf("failed to open library file: %w", err)
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Sample sheet exports carry extra columns; the first one is the name.
		names = append(names, strings.Fields(line)[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read library file %s: %w", f, err)
	}
	return uniqueSorted(names), nil
}

// FilteredLibraries narrows another lister with a predicate, for example to
// keep only index libraries.
type FilteredLibraries struct {
	Lister LibraryLister
	Keep   func(name string) bool
}

// LibraryNames returns the names of the wrapped lister accepted by Keep.
func (f FilteredLibraries) LibraryNames() ([]string, error) {
	names, err := f.Lister.LibraryNames()
	if err != nil {
		return nil, err
	}
	if f.Keep == nil {
		return names, nil
	}
	out := names[:0:0]
	for _, name := range names {
		if f.Keep(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

func uniqueSorted(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
