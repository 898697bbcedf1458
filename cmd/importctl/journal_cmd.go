package main

import (
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/spf13/cobra"
)

func newRollbackCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <audit-entry-id>",
		Short: "Undo a recorded execution inside the rollback window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeFn, err := openEngine(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := engine.Rollback(cmd.Context(), flags.importContext(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the tenant's audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeFn, err := openEngine(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := engine.GetHistory(cmd.Context(), flags.tenantID)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []domain.AuditEntry{}
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print import statistics for the tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeFn, err := openEngine(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := engine.GetStatistics(cmd.Context(), flags.tenantID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}
