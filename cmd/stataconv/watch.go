package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/yleoer/stataconv/pkg/scheduler"
)

func newWatchCmd(opts *rootOptions, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Convert existing .dta files, then convert new or changed files as they appear",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ts := scheduler.NewTaskScheduler(a.cfg.DTADir, a.cfg.WatchDebounce, a.scanner, a.processor, logger)
			ts.InitialScan(cmd.Context())
			logger.Println("Application is running. Press Ctrl+C to exit.")
			return ts.Run(cmd.Context())
		},
	}
}
