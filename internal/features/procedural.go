package features

import (
	"strconv"

	"github.com/procurewatch/riskengine/internal/model"
)

var proceduralNames = []string{
	"status_active",
	"status_closed",
	"status_awarded",
	"status_cancelled",
	"evaluation_lowest_price",
	"evaluation_weighted",
	"procedure_open",
	"procedure_restricted",
	"procedure_negotiated",
	"has_lots",
	"lot_count",
	"multi_lot",
	"has_security_deposit",
	"security_deposit_ratio",
	"has_cpv_code",
	"cpv_division",
}

// buildProcedural produces the procedural block: status and procedure
// indicators, lot structure, deposit and CPV classification presence.
func buildProcedural(d *tenderData) []float64 {
	t := d.tender

	depositRatio := 0.0
	if t.SecurityDeposit > 0 {
		depositRatio = ratioOr(t.SecurityDeposit, t.EstimatedValue, SentinelRatio)
	}

	// CPV division is the leading two digits of the code, e.g. 45 for
	// construction works. 0 when absent or malformed.
	cpvDivision := 0.0
	if len(t.CPVCode) >= 2 {
		if div, err := strconv.Atoi(t.CPVCode[:2]); err == nil {
			cpvDivision = float64(div)
		}
	}

	return []float64{
		b01(t.Status == model.TenderStatusActive),
		b01(t.Status == model.TenderStatusClosed),
		b01(t.Status == model.TenderStatusAwarded),
		b01(t.Status == model.TenderStatusCancelled),
		b01(t.Evaluation == model.EvaluationLowestPrice),
		b01(t.Evaluation == model.EvaluationWeighted),
		b01(t.Procedure == model.ProcedureOpen),
		b01(t.Procedure == model.ProcedureRestricted),
		b01(t.Procedure == model.ProcedureNegotiated),
		b01(t.LotCount > 0),
		float64(t.LotCount),
		b01(t.LotCount > 1),
		b01(t.SecurityDeposit > 0),
		depositRatio,
		b01(t.CPVCode != ""),
		cpvDivision,
	}
}
