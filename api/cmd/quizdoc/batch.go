package main

import (
	"github.com/spf13/cobra"

	"quizdoc/api/internal/pipeline"
)

func newBatchCmd(f *flags) *cobra.Command {
	var first int
	cmd := &cobra.Command{
		Use:   "batch IMAGES...",
		Short: "Publish several questions in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, _, err := f.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			reqs := make([]pipeline.Request, len(args))
			for i, p := range args {
				reqs[i] = pipeline.Request{File: p}
				if first > 0 {
					reqs[i].Number = first + i
				}
			}
			outs := a.Pipeline.RunBatch(cmd.Context(), reqs)

			failed := 0
			code := 0
			for _, o := range outs {
				report(cmd.ErrOrStderr(), o)
				if o.Err != nil {
					failed++
					code = max(code, exitCode(o.Err))
				}
			}
			if failed > 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel runs (overrides WORKERS)")
	cmd.Flags().IntVar(&first, "number-from", 0, "number the questions from this value in argument order")
	return cmd
}
