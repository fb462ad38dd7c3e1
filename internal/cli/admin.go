package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/raysh454/sift/internal/app"
)

func workspaceCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage workspaces and their credit balance",
	}

	var (
		name    string
		credits int
	)
	create := &cobra.Command{
		Use:   "create SLUG",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				ws, err := a.Registry.CreateWorkspace(ctx, args[0], name, credits)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d credits\n", ws.ID, ws.Slug, ws.Credits)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "Display name")
	create.Flags().IntVar(&credits, "credits", 0, "Opening credit balance")

	var reason string
	grant := &cobra.Command{
		Use:   "grant WORKSPACE AMOUNT",
		Short: "Add credits to a workspace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("amount must be an integer: %w", err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				balance, err := a.Registry.Grant(ctx, args[0], amount, reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "balance %d\n", balance)
				return nil
			})
		},
	}
	grant.Flags().StringVar(&reason, "reason", "manual grant", "Ledger description")

	var history int
	balance := &cobra.Command{
		Use:   "balance WORKSPACE",
		Short: "Show the credit balance and recent ledger entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				bal, err := a.Registry.Balance(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "balance %d\n", bal)
				if history <= 0 {
					return nil
				}
				entries, err := a.Registry.LedgerEntries(ctx, args[0], history)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%+d\t%d\t%s\n", e.Delta, e.BalanceAfter, mutedStyle.Render(e.Description))
				}
				return nil
			})
		},
	}
	balance.Flags().IntVar(&history, "history", 10, "Number of ledger entries to show")

	cmd.AddCommand(create, grant, balance)
	return cmd
}

func memberCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage workspace membership",
	}

	var role string
	add := &cobra.Command{
		Use:   "add WORKSPACE USER",
		Short: "Add USER to WORKSPACE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				if err := a.Registry.AddMember(ctx, args[0], args[1], role); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s\n", args[1], args[0])
				return nil
			})
		},
	}
	add.Flags().StringVar(&role, "role", "member", "Member role")

	remove := &cobra.Command{
		Use:   "remove WORKSPACE USER",
		Short: "Remove USER from WORKSPACE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				return a.Registry.RemoveMember(ctx, args[0], args[1])
			})
		},
	}

	list := &cobra.Command{
		Use:   "list WORKSPACE",
		Short: "List members of WORKSPACE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				members, err := a.Registry.ListMembers(ctx, args[0])
				if err != nil {
					return err
				}
				for _, m := range members {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.UserID, m.Role)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}

func tokenCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}

	var label string
	issue := &cobra.Command{
		Use:   "issue USER",
		Short: "Issue a bearer token for USER. The token is printed once.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				token, err := a.Registry.IssueToken(ctx, args[0], label)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	issue.Flags().StringVar(&label, "label", "", "Free-form label")

	revoke := &cobra.Command{
		Use:   "revoke TOKEN",
		Short: "Revoke a bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				return a.Registry.RevokeToken(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(issue, revoke)
	return cmd
}
