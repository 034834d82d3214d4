package main

import (
	"github.com/spf13/cobra"

	"github.com/adhit-r/fairmind-sub003/internal/store"
	"github.com/adhit-r/fairmind-sub003/internal/synth"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		org     string
		limit   int
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent simulation runs for an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cache store.Store
			if !noCache {
				db, err := store.NewSQLiteStore(g.cfg.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				cache = db
			}

			h := store.NewCachedHistory(g.client(), cache, g.logger(cmd))
			page, err := h.Recent(cmd.Context(), org, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().StringVar(&org, "org", g.cfg.OrgID, "organization id")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultHistoryLimit, "maximum number of runs")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not read or refresh the local history cache")
	return cmd
}

func newEnginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List synthetic data generation engines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), synth.NewDefaultRegistry().List())
		},
	}
}
