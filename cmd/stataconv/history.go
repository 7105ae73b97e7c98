package main

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yleoer/stataconv/pkg/database"
)

func newHistoryCmd(opts *rootOptions, logger *log.Logger) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [files...]",
		Short: "Show the recorded conversions of the given .dta files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.noLedger {
				return errors.New("history reads the conversion ledger and cannot be used with --no-ledger")
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			a, err := setup(opts, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := a.scanner.Resolve(a.cfg.DTADir, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range files {
				// 转换记录中保存的是绝对路径
				if abs, err := filepath.Abs(path); err == nil {
					path = abs
				}
				hist, err := a.store.History(path, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, path)
				if len(hist) == 0 {
					fmt.Fprintln(out, "  no conversions recorded")
					continue
				}
				for _, c := range hist {
					fmt.Fprintln(out, "  "+describeConversion(c))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of records to show per file")
	return cmd
}

func describeConversion(c *database.Conversion) string {
	s := fmt.Sprintf("#%d %s %-9s %s", c.ID, c.ConvertedAt.Format("2006-01-02 15:04:05"), c.Status, c.Formats)
	if c.Status == database.StatusSucceeded {
		s += fmt.Sprintf(" rows=%d uids=%d", c.Rows, c.DistinctUIDs)
	} else {
		s += " error=" + c.Error
	}
	return s + " run=" + c.RunID
}
