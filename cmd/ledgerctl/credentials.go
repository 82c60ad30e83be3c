package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/reviewledger/internal/bootstrap"
	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

const repoFlagUsage = "limit the credential to one owner/repo (default: every repository)"

func newCredentialsCmd(open appOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage encrypted credentials (requires REVIEWLEDGER_SECRET_KEY).",
	}
	cmd.AddCommand(newCredentialsSetCmd(open), newCredentialsDeleteCmd(open), newCredentialsListCmd(open))
	return cmd
}

func newCredentialsSetCmd(open appOpener) *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "set <service> <value>",
		Short: "Store or replace a credential, e.g. `set github ghp_... --repo acme/widgets`.",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(open, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if a.creds == nil {
				return bootstrap.ErrCredentialsUnsupported
			}
			key := model.CredentialKey{Service: args[0], Scope: repo}
			if err := a.creds.Set(ctx, key, args[1]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "stored credential %s\n", key)
			return err
		}),
	}
	cmd.Flags().StringVar(&repo, "repo", "", repoFlagUsage)
	return cmd
}

func newCredentialsDeleteCmd(open appOpener) *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "delete <service>",
		Short: "Remove a stored credential.",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if a.creds == nil {
				return bootstrap.ErrCredentialsUnsupported
			}
			key := model.CredentialKey{Service: args[0], Scope: repo}
			if err := a.creds.Delete(ctx, key); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted credential %s\n", key)
			return err
		}),
	}
	cmd.Flags().StringVar(&repo, "repo", "", repoFlagUsage)
	return cmd
}

func newCredentialsListCmd(open appOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credentials with masked values.",
		Args:  cobra.NoArgs,
		RunE: withApp(open, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if a.creds == nil {
				return bootstrap.ErrCredentialsUnsupported
			}
			creds, err := a.creds.List(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SERVICE\tREPO\tVALUE\tUPDATED")
			for _, c := range creds {
				scope := c.Key.Scope
				if scope == "" {
					scope = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					c.Key.Service, scope, maskSecret(c.Value), c.UpdatedAt.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		}),
	}
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(s string) string {
	const visible = 4
	if len(s) <= visible*2 {
		return "****"
	}
	return "****" + s[len(s)-visible:]
}
