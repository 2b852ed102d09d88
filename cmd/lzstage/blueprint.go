package main

import (
	"github.com/spf13/cobra"

	"github.com/franksops/lzstage/engine"
)

var blueprintFlags struct {
	stage stageFlags
}

var blueprintCmd = &cobra.Command{
	Use:   "blueprint BLUEPRINT DESTINATION",
	Short: "Upload the files named by a transfer blueprint",
	Long: `Upload the files named by BLUEPRINT, a file of transfer commands separated
by blank lines. Each command names one existing local file and one
"i:<placeholder>/..." destination; the placeholder is replaced by the collection
DESTINATION resolves to. Files modified after the blueprint are rejected.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &blueprintFlags

		s, cleanup, err := newStager(cmd.Context(), cmd, f.stage, args[1])
		defer cleanup()
		if err != nil {
			return err
		}

		_, err = s.run(cmd.Context(), stageOptions{
			Destination: args[1],
			AssumeYes:   f.stage.assumeYes,
			Assay:       f.stage.assay,
			Builder: &engine.BlueprintBuilder{
				Path:        args[0],
				Placeholder: cfg.Placeholder,
				Logger:      s.Logger,
			},
			FixChecksums:    f.stage.fixChecksums,
			ValidateAndMove: f.stage.validateAndMove,
		})
		return err
	},
}

func init() {
	blueprintFlags.stage.register(blueprintCmd, true)
}
