package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/procurewatch/riskengine/internal/model"
	"github.com/procurewatch/riskengine/internal/store"
	"github.com/procurewatch/riskengine/internal/views"
)

var (
	exportOut      string
	exportSeverity string
	exportLimit    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export flagged tenders to an XLSX report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		flagged, err := env.Views.FlaggedTenders(ctx, views.FlaggedFilter{
			Severity: model.Severity(exportSeverity),
			Limit:    exportLimit,
		})
		if err != nil {
			return err
		}

		stats, err := env.Views.Stats(ctx)
		if err != nil && !eris.Is(err, store.ErrNotFound) {
			return err
		}

		if err := writeFlaggedReport(exportOut, flagged, stats); err != nil {
			return err
		}

		zap.L().Info("report written",
			zap.String("path", exportOut),
			zap.Int("tenders", len(flagged)),
		)
		return nil
	},
}

// writeFlaggedReport writes one sheet of flagged tenders and, when stats are
// available, a summary sheet.
func writeFlaggedReport(path string, flagged []model.FlaggedTender, stats *model.CorruptionStats) error {
	printer := message.NewPrinter(language.English)

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Flagged tenders")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Tender", "Title", "Institution", "Winner", "Estimated value",
		"Flags", "Flag types", "Max severity", "Risk score", "Risk level", "Last detected",
	} {
		header.AddCell().Value = h
	}

	for _, ft := range flagged {
		row := sheet.AddRow()
		row.AddCell().Value = ft.TenderID
		row.AddCell().Value = ft.Title
		row.AddCell().Value = ft.Institution
		row.AddCell().Value = ft.Winner
		row.AddCell().Value = printer.Sprintf("%.2f", ft.EstimatedValue)
		row.AddCell().SetInt(ft.FlagCount)
		row.AddCell().Value = strings.Join(ft.FlagTypes, ", ")
		row.AddCell().Value = string(ft.MaxSeverity)
		row.AddCell().SetInt(ft.RiskScore)
		row.AddCell().Value = string(ft.RiskLevel)
		row.AddCell().Value = ft.LastDetectedAt.Format("2006-01-02")
	}

	if stats != nil {
		summary, err := f.AddSheet("Summary")
		if err != nil {
			return eris.Wrap(err, "export: add summary sheet")
		}
		addKV := func(k, v string) {
			row := summary.AddRow()
			row.AddCell().Value = k
			row.AddCell().Value = v
		}
		addKV("Total flags", printer.Sprintf("%d", stats.TotalFlags))
		addKV("Flagged tenders", printer.Sprintf("%d", stats.TotalFlaggedTender))
		addKV("Value at risk", printer.Sprintf("%.2f", stats.TotalValueAtRisk))
		addKV("Generated at", stats.GeneratedAt.Format("2006-01-02 15:04"))
		for severity, n := range stats.BySeverity {
			addKV("Severity "+severity, printer.Sprintf("%d", n))
		}
		for flagType, n := range stats.ByType {
			addKV("Type "+flagType, printer.Sprintf("%d", n))
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "flagged_tenders.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportSeverity, "severity", "", "only tenders at this max severity")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "max rows to export")
	rootCmd.AddCommand(exportCmd)
}
