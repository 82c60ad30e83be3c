package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

// errChainBroken is returned by verify when the hash chain does not hold.
var errChainBroken = errors.New("ledger chain is broken")

func newRecordCmd(open appOpener) *cobra.Command {
	var timestamp string

	cmd := &cobra.Command{
		Use:   "record <reviewId> <commitId> <reviewer> <status>",
		Short: "Record a review and print the stored document.",
		Long: `Record files a review under reviewId. Recording an existing id appends a
new version; earlier versions stay in the history. The timestamp defaults to
the current UTC time.`,
		Args: cobra.ExactArgs(4),
		RunE: withApp(open, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			ts := timestamp
			if ts == "" {
				ts = time.Now().UTC().Format(time.RFC3339)
			}

			out, err := a.contract.Invoke(ctx, "recordReview", args[0], args[1], args[2], ts, args[3])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		}),
	}
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "review timestamp (default: now, RFC 3339)")
	return cmd
}

func newUpdateStatusCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "update-status <reviewId> <status>",
		Short: "Change the status of an existing review.",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(open, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			out, err := a.contract.Invoke(ctx, "updateReviewStatus", args[0], args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		}),
	}
}

func newQueryCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "query <reviewId>",
		Short: "Print the current stored document of a review.",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			out, err := a.contract.Invoke(ctx, "queryReview", args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		}),
	}
}

func newHistoryCmd(open appOpener) *cobra.Command {
	var table bool

	cmd := &cobra.Command{
		Use:   "history <reviewId>",
		Short: "Print every version of a review, oldest first.",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if !table {
				out, err := a.contract.Invoke(ctx, "getReviewHistory", args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			}

			versions, err := a.ledger.GetReviewVersions(ctx, args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tSTATUS\tREVIEWER\tTIMESTAMP\tCOMMITTED\tHASH")
			for _, v := range versions {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					v.Entry.Sequence, v.Record.Status, v.Record.Reviewer, v.Record.Timestamp,
					v.Entry.CommittedAt.UTC().Format(time.RFC3339), shortHash(v.Entry.Hash))
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().BoolVar(&table, "table", false, "print a table with ledger metadata instead of JSON")
	return cmd
}

func newVerifyCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the hash chain over the whole ledger.",
		Args:  cobra.NoArgs,
		RunE: withApp(open, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			report, err := a.ledger.VerifyLedger(ctx)
			if err != nil {
				return err
			}

			if report.Valid {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d entries verified\n", report.Length)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "broken at entry %d after %d valid entries: %s\n",
				report.FirstInvalid, report.Length, report.Reason)
			return errChainBroken
		}),
	}
}

func newLogCmd(open appOpener) *cobra.Command {
	var (
		after int64
		limit int
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List ledger entries in commit order.",
		Args:  cobra.NoArgs,
		RunE: withApp(open, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			entries, err := a.ledger.ListEntries(ctx, after, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tKEY\tVERSION\tSTATUS\tCOMMITTED\tHASH")
			for _, e := range entries {
				status := "-"
				if rec, err := model.UnmarshalReview(e.Value); err == nil {
					status = rec.Status
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
					e.Committed, e.Key, e.Sequence, status,
					e.CommittedAt.UTC().Format(time.RFC3339), shortHash(e.Hash))
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().Int64Var(&after, "after", 0, "show entries committed after this ordinal")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries to show (default 50, max 500)")
	return cmd
}

func newInvokeCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "invoke <function> [args...]",
		Short: "Call a ledger contract function by name.",
		Long: `Invoke calls a contract function with string arguments and prints its
serialized result. Functions: initLedger, recordReview, updateReviewStatus,
queryReview, getReviewHistory, verifyLedger.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(open, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			out, err := a.contract.Invoke(ctx, args[0], args[1:]...)
			if err != nil {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(a.contract.Functions(), ", "))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		}),
	}
}

func shortHash(h string) string {
	const n = 12
	if len(h) > n {
		return h[:n]
	}
	return h
}
