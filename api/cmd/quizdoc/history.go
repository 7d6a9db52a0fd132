package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"quizdoc/api/internal/store"
)

func newHistoryCmd(f *flags) *cobra.Command {
	var (
		limit int
		purge time.Duration
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := f.load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("history needs DATABASE_URL")
			}
			db, err := store.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			runs := store.NewRunRepo(db, cfg.OCR.Engine, cfg.Model.Name)

			if purge > 0 {
				n, err := runs.PurgeOlderThan(cmd.Context(), purge)
				if err != nil {
					return err
				}
				log.WithField("deleted", n).Info("ledger purged")
			}

			rows, err := runs.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(cmd, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().DurationVar(&purge, "purge-older-than", 0, "delete runs older than this first")
	return cmd
}

func printRuns(cmd *cobra.Command, rows []store.RunRow) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSTATE\tATTEMPTS\tRESULT\tFILE")
	for _, r := range rows {
		result := r.BlockID
		if r.State != "Done" {
			result = r.FailedStage + "/" + r.ErrorKind
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.State, r.Attempts, result, r.File)
	}
	_ = tw.Flush()
}

