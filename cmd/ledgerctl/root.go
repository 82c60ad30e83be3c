package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
)

// runFunc is a command body that receives an opened app.
type runFunc func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error

func newRootCmd(open appOpener) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "ledgerctl records and inspects code reviews on the review ledger.",
		Long: `A CLI for the review ledger. It opens the store named by REVIEWLEDGER_STORE
(and REVIEWLEDGER_DB_PATH or REVIEWLEDGER_POSTGRES_DSN) directly, so it can be
used for scripting and for repairs while the server is stopped.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRecordCmd(open),
		newUpdateStatusCmd(open),
		newQueryCmd(open),
		newHistoryCmd(open),
		newVerifyCmd(open),
		newLogCmd(open),
		newInvokeCmd(open),
		newCredentialsCmd(open),
	)
	return root
}

// withApp opens the app around run and closes it afterwards.
func withApp(open appOpener, run runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := open(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if a.close == nil {
				return
			}
			if closeErr := a.close(); closeErr != nil {
				slog.Error("error closing store", "error", closeErr)
				err = errors.Join(err, closeErr)
			}
		}()

		return run(ctx, cmd, a, args)
	}
}
