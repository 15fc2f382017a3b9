package features

import "github.com/procurewatch/riskengine/internal/model"

var documentNames = []string{
	"document_count",
	"has_documents",
	"extraction_success_count",
	"extraction_success_rate",
	"extraction_failed_count",
	"has_specification",
	"total_content_length",
	"avg_content_length",
	"has_extracted_content",
}

// buildDocument produces the document block from the text-extraction
// pipeline's per-document status.
func buildDocument(d *tenderData) []float64 {
	n := len(d.documents)

	var success, failed int
	var totalLen int64
	hasSpec := false
	for _, doc := range d.documents {
		switch doc.Status {
		case model.ExtractionSuccess:
			success++
			totalLen += doc.ContentLength
		case model.ExtractionFailed:
			failed++
		}
		if doc.IsSpecification {
			hasSpec = true
		}
	}

	successRate, avgLen := 0.0, 0.0
	if n > 0 {
		successRate = float64(success) / float64(n)
	}
	if success > 0 {
		avgLen = float64(totalLen) / float64(success)
	}

	return []float64{
		float64(n),
		b01(n > 0),
		float64(success),
		successRate,
		float64(failed),
		b01(hasSpec),
		float64(totalLen),
		avgLen,
		b01(totalLen > 0),
	}
}
