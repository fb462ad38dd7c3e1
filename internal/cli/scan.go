package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raysh454/sift/internal/app"
	"github.com/raysh454/sift/internal/model"
)

// caller is the identity a local command acts as. The local operator picks a
// user with --user; membership is still enforced.
func caller(user string) (model.Identity, error) {
	if user == "" {
		return model.Identity{}, errors.New("--user is required")
	}
	return model.Identity{UserID: user}, nil
}

// workspaceID resolves a slug or id to the canonical workspace id.
func workspaceID(ctx context.Context, a *app.Application, ref string) (string, error) {
	ws, err := a.Registry.GetWorkspace(ctx, ref)
	if err != nil {
		return "", err
	}
	return ws.ID, nil
}

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func scanCmd(opts *options) *cobra.Command {
	var (
		workspace  string
		user       string
		targetType string
		toolNames  []string
		scanID     string
		asJSON     bool
		quiet      bool
	)
	cmd := &cobra.Command{
		Use:   "scan TARGET",
		Short: "Run a multi-tool scan against TARGET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := caller(user)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				wsID, err := workspaceID(ctx, a, workspace)
				if err != nil {
					return err
				}
				if scanID == "" {
					scanID = uuid.NewString()
				}

				events, unsubscribe := a.Hub.Subscribe(scanID)
				printed := make(chan struct{})
				go func() {
					defer close(printed)
					for ev := range events {
						if !quiet {
							renderEvent(cmd.ErrOrStderr(), ev)
						}
					}
				}()

				run, err := a.Orch.RunScan(ctx, model.ScanRequest{
					Target:      args[0],
					TargetType:  model.TargetType(targetType),
					Tools:       toolNames,
					WorkspaceID: wsID,
					ScanID:      scanID,
				}, identity)
				unsubscribe()
				<-printed

				if run == nil {
					return err
				}
				if asJSON {
					if jerr := writeJSONOut(cmd.OutOrStdout(), run); jerr != nil {
						return jerr
					}
				} else {
					renderRun(cmd.OutOrStdout(), run)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace slug or id to bill (required)")
	cmd.Flags().StringVarP(&user, "user", "u", "", "User id to act as (required)")
	cmd.Flags().StringVarP(&targetType, "type", "t", "username", "Target type: username|email|phone|domain|ip|entity")
	cmd.Flags().StringSliceVar(&toolNames, "tools", nil, "Comma-separated tool ids (see sift tools)")
	cmd.Flags().StringVar(&scanID, "scan-id", "", "Scan id (default: a random UUID)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("tools")
	return cmd
}

func showCmd(opts *options) *cobra.Command {
	var (
		user   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "show SCAN_ID",
		Short: "Show a stored scan run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := caller(user)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				if asJSON {
					raw, err := a.Orch.GetScanRaw(ctx, args[0], identity)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
					return err
				}
				run, err := a.Orch.GetScan(ctx, args[0], identity)
				if err != nil {
					return err
				}
				renderRun(cmd.OutOrStdout(), run)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "User id to act as (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored record verbatim")
	return cmd
}

func listCmd(opts *options) *cobra.Command {
	var (
		workspace string
		user      string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scans of a workspace, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := caller(user)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				wsID, err := workspaceID(ctx, a, workspace)
				if err != nil {
					return err
				}
				list, err := a.Orch.ListScans(ctx, wsID, limit, identity)
				if err != nil {
					return err
				}
				renderSummaries(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace slug or id (required)")
	cmd.Flags().StringVarP(&user, "user", "u", "", "User id to act as (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of scans (0 = all)")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func compareCmd(opts *options) *cobra.Command {
	var (
		user   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "compare BASE_SCAN_ID HEAD_SCAN_ID",
		Short: "Diff two scan runs of the same target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := caller(user)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				cmp, err := a.Orch.CompareScans(ctx, args[0], args[1], identity)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSONOut(cmd.OutOrStdout(), cmp)
				}
				renderComparison(cmd.OutOrStdout(), cmp)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "User id to act as (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the comparison as JSON")
	return cmd
}

func toolsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List available tools, prices and supported target types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				renderTools(cmd.OutOrStdout(), a.Orch.Tools().Describe())
				return nil
			})
		},
	}
}
