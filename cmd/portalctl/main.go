// Package main implements portalctl, the operator CLI for the county
// project portal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"countyportal/internal/app"
	"countyportal/internal/auth"
	"countyportal/internal/config"
	"countyportal/internal/logging"
	"countyportal/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "portalctl",
		Short: "Operator commands for the county project portal",
		Long: `portalctl runs maintenance tasks against the portal's configured database,
word lists and mail transport. Configuration is read the same way as the
server: CONFIG_FILE plus environment variables.`,
		Version:       version.Current().Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newHashTokenCmd(), newWordsCmd(), newFilterCmd(), newNotifyCmd())
	return root
}

func newHashTokenCmd() *cobra.Command {
	var adminID int64
	cmd := &cobra.Command{
		Use:   "hash-token",
		Short: "Generate an admin API token and its ADMIN_TOKENS entry",
		Long: `Generate a bearer token for an administrator. The token is printed once;
only the hash belongs in configuration.

Examples:
  portalctl hash-token --admin-id 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if adminID <= 0 {
				return fmt.Errorf("--admin-id must be a positive id")
			}
			token, hash, err := auth.NewAdminToken(adminID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "token: %s\n", token)
			fmt.Fprintf(out, "ADMIN_TOKENS entry: %d=%s\n", adminID, hash)
			return nil
		},
	}
	cmd.Flags().Int64Var(&adminID, "admin-id", 0, "administrator id the token belongs to")
	_ = cmd.MarkFlagRequired("admin-id")
	return cmd
}

// setup loads configuration and a logger that writes to stderr so command
// output stays clean.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.NewTo(cfg.LogLevel, "console", os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func openApp() (*app.App, *zap.Logger, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Open(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}
