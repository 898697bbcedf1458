package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	dbPath      string
	databaseURL string
	tenantID    string
	tenantCode  string
	actorID     string
	migrate     bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "importctl",
		Short:         "Operator tool for bulk member imports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.dbPath, "db", "", "Path to a local SQLite directory store")
	pf.StringVar(&flags.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	pf.StringVar(&flags.tenantID, "tenant", "", "Tenant id (required)")
	pf.StringVar(&flags.tenantCode, "tenant-code", "", "Tenant company code checked against companyCode columns")
	pf.StringVar(&flags.actorID, "actor", "importctl", "Actor recorded in the audit journal")
	pf.BoolVar(&flags.migrate, "migrate", false, "Apply Postgres migrations before running")
	_ = cmd.MarkPersistentFlagRequired("tenant")

	cmd.AddCommand(newPreviewCmd(flags))
	cmd.AddCommand(newExecuteCmd(flags))
	cmd.AddCommand(newRetryCmd(flags))
	cmd.AddCommand(newRollbackCmd(flags))
	cmd.AddCommand(newHistoryCmd(flags))
	cmd.AddCommand(newStatsCmd(flags))
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
