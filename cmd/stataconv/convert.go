package main

import (
	"log"

	"github.com/spf13/cobra"
)

func newConvertCmd(opts *rootOptions, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "convert [files...]",
		Short: "Convert the given .dta files, or every .dta file in the input directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := a.scanner.Resolve(a.cfg.DTADir, args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				logger.Printf("No .dta files to convert in %s.", a.cfg.DTADir)
				return nil
			}
			summary := a.processor.ConvertAll(cmd.Context(), files)
			for _, f := range summary.Failed {
				logger.Printf("  -> FAILED %s: %v", f.Path, f.Err)
			}
			if !summary.OK() {
				return errConversionFailed
			}
			return nil
		},
	}
}
