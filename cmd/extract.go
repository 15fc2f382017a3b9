package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/procurewatch/riskengine/internal/features"
	"github.com/procurewatch/riskengine/internal/model"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract <tender-id>",
	Short: "Extract the feature vector for one tender",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		vec, err := extractCached(ctx, env, args[0])
		if err != nil {
			return err
		}

		if extractJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(vec)
		}

		fmt.Printf("tender   %s\n", vec.TenderID)
		fmt.Printf("title    %s\n", vec.Title)
		fmt.Printf("features %d (engine %s)\n\n", vec.Len(), vec.EngineVersion)
		categories := features.Categories()
		for _, category := range features.CategoryOrder() {
			fmt.Printf("[%s]\n", category)
			for _, name := range categories[category] {
				v, _ := vec.Get(name)
				fmt.Printf("  %-40s %g\n", name, v)
			}
			fmt.Println()
		}
		return nil
	},
}

// extractCached serves the vector from the local cache when enabled, falling
// back to a fresh extraction and writing it back.
func extractCached(ctx context.Context, env *engineEnv, tenderID string) (*model.FeatureVector, error) {
	if env.Cache != nil {
		if vec, err := env.Cache.Get(ctx, tenderID, features.EngineVersion); err != nil {
			zap.L().Warn("vector cache read failed", zap.Error(err))
		} else if vec != nil {
			zap.L().Debug("vector cache hit", zap.String("tender_id", tenderID))
			return vec, nil
		}
	}

	vec, err := env.Extractor.Extract(ctx, tenderID)
	if err != nil {
		return nil, err
	}

	if env.Cache != nil {
		if err := env.Cache.Put(ctx, vec); err != nil {
			zap.L().Warn("vector cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "emit the vector as JSON")
	rootCmd.AddCommand(extractCmd)
}
