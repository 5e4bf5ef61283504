package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"countyportal/internal/wordlist"
)

func newWordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "words",
		Short: "Inspect or replace the banned and flagged word lists",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current word lists as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a.Words.Load(cmd.Context()))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Replace both lists from a JSON document",
		Long: `Replace both word lists from a document shaped like
{"banned_words": [...], "flagged_words": [...]}.

Examples:
  portalctl words import ./banned_and_flagged_words.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var list wordlist.WordList
			if err := json.Unmarshal(raw, &list); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			banned, flagged := wordlist.Normalize(list.Banned), wordlist.Normalize(list.Flagged)
			if err := a.Words.Replace(cmd.Context(), banned, flagged); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d banned and %d flagged terms\n", len(banned), len(flagged))
			return nil
		},
	})
	return cmd
}
