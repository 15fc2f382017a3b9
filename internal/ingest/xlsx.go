package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// xlsx register dumps carry one tender per row with this fixed column layout.
var xlsxColumns = []string{
	"id", "title", "category", "institution", "published_at", "closing_at",
	"estimated_value", "actual_value", "status", "procedure", "evaluation", "cpv_code",
}

// readTendersXLSX parses an XLSX register dump into feed records. The first
// row must be the header above; bidders are not part of dump files.
func readTendersXLSX(path string) ([]xmlTender, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ingest: %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	var out []xmlTender
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}

		if i == 0 {
			if err := checkHeader(cells); err != nil {
				return nil, err
			}
			continue
		}
		if len(cells) < len(xlsxColumns) || cells[0] == "" {
			continue
		}

		t := xmlTender{
			ID:          cells[0],
			Title:       cells[1],
			Category:    cells[2],
			Institution: cells[3],
			PublishedAt: cells[4],
			ClosingAt:   cells[5],
			Status:      cells[8],
			Procedure:   cells[9],
			Evaluation:  cells[10],
			CPVCode:     cells[11],
		}
		if t.EstimatedValue, err = parseFloat(cells[6]); err != nil {
			return nil, eris.Wrapf(err, "ingest: row %d estimated_value", i+1)
		}
		if t.ActualValue, err = parseFloat(cells[7]); err != nil {
			return nil, eris.Wrapf(err, "ingest: row %d actual_value", i+1)
		}
		out = append(out, t)
	}
	return out, nil
}

func checkHeader(cells []string) error {
	if len(cells) < len(xlsxColumns) {
		return eris.Errorf("ingest: header has %d columns, want %d", len(cells), len(xlsxColumns))
	}
	for i, want := range xlsxColumns {
		if !strings.EqualFold(cells[i], want) {
			return eris.Errorf("ingest: header column %d is %q, want %q", i+1, cells[i], want)
		}
	}
	return nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

// parseTime accepts the date formats seen in register exports. Empty input
// returns the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("ingest: unparseable timestamp %q", s)
}
