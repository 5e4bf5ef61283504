package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNotifyCmd() *cobra.Command {
	var (
		projectID  int64
		updateType string
		details    string
	)
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Email a project update to its verified subscribers",
		Long: `Send a project update through the configured mail transport. Update types
are project_update, status_change, completion and milestone.

Examples:
  portalctl notify --project 12 --type milestone --details "Phase one complete"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID <= 0 {
				return fmt.Errorf("--project must be a positive id")
			}
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.Service.SendProjectUpdate(cmd.Context(), nil, projectID, updateType, details)
			if err != nil {
				return err
			}
			if res.Eligible == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no verified subscribers; nothing sent")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %s: sent %d of %d, %d failed\n", res.BatchID, res.Sent, res.Eligible, res.Failed)
			return nil
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	cmd.Flags().StringVar(&updateType, "type", "project_update", "update type")
	cmd.Flags().StringVar(&details, "details", "", "update text included in the email")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
