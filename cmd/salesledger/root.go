package main

import (
	"strings"

	"github.com/smallbiznis/salesledger/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	rulesPath   string
	autoMigrate bool
}

// applyTo overlays command line flags on the environment configuration.
func (o rootOptions) applyTo(cfg config.Config) config.Config {
	if path := strings.TrimSpace(o.rulesPath); path != "" {
		cfg.RulesConfigPath = path
	}
	if o.autoMigrate {
		cfg.AutoMigrate = true
	}
	return cfg
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "salesledger",
		Short: "Aggregate sales line items into ledger transactions",
		Long: `salesledger groups unprocessed sales and refund line items by reference date
and grouping key and commits one ledger transaction per group.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "aggregation rules file or directory (overrides RULES_CONFIG_PATH)")
	root.PersistentFlags().BoolVar(&opts.autoMigrate, "migrate", false, "apply schema migrations on startup")

	root.AddCommand(
		newProcessCmd(opts),
		newPreviewCmd(opts),
		newScheduleCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}
