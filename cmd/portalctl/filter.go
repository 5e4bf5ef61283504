package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

func newFilterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter <text>",
		Short: "Run the comment filter over text without storing anything",
		Long: `Evaluate text with the configured word lists and language detector and
print the verdict.

Examples:
  portalctl filter "The borehole at the market is dry again"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			v := a.Service.PreviewFilter(cmd.Context(), strings.Join(args, " "))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
}
