package main

import (
	"github.com/spf13/cobra"

	"quizdoc/api/internal/handle"
	"quizdoc/api/internal/httpserver"
)

func newServeCmd(f *flags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cfg, log, err := f.build(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			mux := httpserver.NewMux(a.Ping)
			var runs handle.RunLister
			if a.Runs != nil {
				runs = a.Runs
			}
			handle.New(a.Pipeline, a.Interpreter, runs, log).Register(mux)

			if addr == "" {
				addr = ":" + cfg.Port
			}
			return httpserver.New(addr, mux, log).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$PORT)")
	return cmd
}
