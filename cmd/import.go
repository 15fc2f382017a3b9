package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/procurewatch/riskengine/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Seed the dev schema from a register export (XML feed or XLSX dump)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		loader := ingest.NewLoader(env.Store.Pool())
		path := args[0]

		var res *ingest.Result
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xml":
			f, err := os.Open(path)
			if err != nil {
				return eris.Wrapf(err, "open %s", path)
			}
			defer f.Close()
			res, err = loader.LoadXML(ctx, f)
			if err != nil {
				return err
			}
		case ".xlsx":
			res, err = loader.LoadXLSX(ctx, path)
			if err != nil {
				return err
			}
		default:
			return eris.Errorf("unsupported file type %q (want .xml or .xlsx)", filepath.Ext(path))
		}

		zap.L().Info("import complete",
			zap.Int64("tenders", res.Tenders),
			zap.Int64("bidders", res.Bidders),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
