package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/procurewatch/riskengine/internal/model"
)

var refreshView string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the flagged-tenders and corruption-stats views",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var results []*model.RefreshResult
		if refreshView != "" {
			res, err := env.Views.Refresh(ctx, refreshView)
			if err != nil {
				return err
			}
			results = append(results, res)
		} else {
			results, err = env.Views.RefreshAll(ctx)
			if err != nil {
				return err
			}
		}

		for _, res := range results {
			fmt.Printf("%-18s %6d rows  %s\n", res.View, res.RowsWritten, res.Duration)
		}
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshView, "view", "", "refresh a single view (flagged_tenders or corruption_stats)")
	rootCmd.AddCommand(refreshCmd)
}
