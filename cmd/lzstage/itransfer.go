package main

import (
	"errors"
	"slices"

	"github.com/spf13/cobra"

	"github.com/franksops/lzstage/engine"
)

var itransferFlags struct {
	stage stageFlags

	libraries        []string
	libraryFile      string
	excludeLibraries []string
	sourceDir        string
	pattern          string
	step             string
	date             string
	remoteDirPattern string
	recursive        bool
}

var itransferCmd = &cobra.Command{
	Use:   "itransfer DESTINATION",
	Short: "Upload pipeline output of each library into a landing zone",
	Long: `Upload the files of each library, matched by a glob pattern below the
library's source directory, into DESTINATION. DESTINATION is a collection path
starting with "/", a project UUID or a landing zone UUID.

Files are placed below {library_name}/{step}/{date} unless --remote-dir-pattern
says otherwise. Every data file is paired with its .md5 sidecar.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &itransferFlags

		libraries, err := libraryLister(f.libraries, f.libraryFile, f.excludeLibraries)
		if err != nil {
			return err
		}
		pattern := cfg.RemoteDirPattern
		if cmd.Flags().Changed("remote-dir-pattern") {
			pattern = f.remoteDirPattern
		}

		builder := &engine.PatternBuilder{
			Libraries:        libraries,
			Layout:           engine.TemplateLayout(f.sourceDir, f.pattern),
			RemoteDirPattern: pattern,
			Step:             f.step,
			Date:             f.date,
			Recursive:        f.recursive,
			FixChecksums:     f.stage.fixChecksums,
			Logger:           logger,
		}

		s, cleanup, err := newStager(cmd.Context(), cmd, f.stage, args[0])
		defer cleanup()
		if err != nil {
			return err
		}
		builder.Logger = s.Logger

		_, err = s.run(cmd.Context(), stageOptions{
			Destination:     args[0],
			AssumeYes:       f.stage.assumeYes,
			Assay:           f.stage.assay,
			Builder:         builder,
			FixChecksums:    f.stage.fixChecksums,
			ValidateAndMove: f.stage.validateAndMove,
		})
		return err
	},
}

// libraryLister combines explicit names and a library file, minus exclusions.
func libraryLister(names []string, file string, exclude []string) (engine.LibraryLister, error) {
	var lister engine.LibraryLister
	switch {
	case len(names) > 0 && file != "":
		return nil, errors.New("use either --library or --library-file")
	case len(names) > 0:
		lister = engine.StaticLibraries(names)
	case file != "":
		lister = engine.LibraryFile(file)
	default:
		return nil, errors.New("no libraries given, use --library or --library-file")
	}
	if len(exclude) == 0 {
		return lister, nil
	}
	return engine.FilteredLibraries{
		Lister: lister,
		Keep: func(name string) bool {
			return !slices.Contains(exclude, name)
		},
	}, nil
}

func init() {
	f := &itransferFlags
	f.stage.register(itransferCmd, false)

	fl := itransferCmd.Flags()
	fl.StringSliceVar(&f.libraries, "library", nil, "Library name to upload (repeatable)")
	fl.StringVar(&f.libraryFile, "library-file", "", "File with one library name per line")
	fl.StringSliceVar(&f.excludeLibraries, "exclude-library", nil, "Library name to skip (repeatable)")
	fl.StringVar(&f.sourceDir, "source-dir", "output/{library_name}", "Local directory of a library's files")
	fl.StringVar(&f.pattern, "pattern", "**", "Glob pattern of the files below the source directory")
	fl.StringVar(&f.step, "step", "", "Pipeline step name used in the remote directory")
	fl.StringVar(&f.date, "remote-dir-date", "", "Date used in the remote directory (default today, YYYY-MM-DD)")
	fl.StringVar(&f.remoteDirPattern, "remote-dir-pattern", engine.DefaultRemoteDirPattern, "Remote directory below the destination")
	fl.BoolVar(&f.recursive, "recursive", true, "Let ** in the pattern match across directories")
	_ = itransferCmd.MarkFlagRequired("step")
}
