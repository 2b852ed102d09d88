package main

import (
	"github.com/spf13/cobra"

	"github.com/franksops/lzstage/engine"
)

var ingestFlags struct {
	stage stageFlags

	recursive  bool
	collection string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest SOURCE... DESTINATION",
	Short: "Upload local files and directories into a landing zone",
	Long: `Upload every SOURCE into DESTINATION. Directories keep their layout below
the destination, single files are placed at its top. Upper-case .MD5 sidecars
are renamed to .md5 before uploading.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &ingestFlags
		sources, destination := args[:len(args)-1], args[len(args)-1]

		s, cleanup, err := newStager(cmd.Context(), cmd, f.stage, destination)
		defer cleanup()
		if err != nil {
			return err
		}

		walker := engine.NewWalker(sources, f.recursive)
		walker.SubCollection = f.collection
		walker.FixChecksums = f.stage.fixChecksums
		walker.Logger = s.Logger

		_, err = s.run(cmd.Context(), stageOptions{
			Destination:     destination,
			AssumeYes:       f.stage.assumeYes,
			Assay:           f.stage.assay,
			Builder:         walker,
			FixChecksums:    f.stage.fixChecksums,
			ValidateAndMove: f.stage.validateAndMove,
		})
		return err
	},
}

func init() {
	f := &ingestFlags
	f.stage.register(ingestCmd, true)

	fl := ingestCmd.Flags()
	fl.BoolVarP(&f.recursive, "recursive", "r", false, "Descend into sub directories")
	fl.StringVar(&f.collection, "collection", "", "Sub collection below the destination")
}
