package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smartlib/internal/loan/worker"
)

func newOverdueCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Run one overdue sweep against the configured ledger and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			svc, _, closeAll, err := buildLoanService(ctx, rt)
			if err != nil {
				return err
			}
			defer closeAll()

			n, err := worker.NewOverdueWorker(svc, time.Hour, rt.logger).SweepAt(ctx, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d overdue loans\n", n)
			return err
		},
	}
}
