package features

import "github.com/procurewatch/riskengine/internal/stats"

var historicalNames = []string{
	"tender_age_days",
	"days_since_last_update",
	"update_count",
	"frequently_updated",
	"institution_tenders_this_month",
	"institution_tenders_prev_month",
	"institution_month_spike_ratio",
	"institution_month_spike",
	"award_delay_days",
}

// buildHistorical produces the historical block: record churn and the
// institution's month-on-month publication activity.
func buildHistorical(d *tenderData) []float64 {
	t := d.tender

	age := d.now.Sub(t.PublishedAt).Hours() / 24
	sinceUpdate := d.now.Sub(t.UpdatedAt).Hours() / 24

	spike, spikeOK := stats.SpikeRatio(float64(d.monthCurrent), float64(d.monthPrevious))
	spikeVal := SentinelRatio
	if spikeOK {
		spikeVal = spike
	}

	awardDelay := SentinelRatio
	if t.AwardedAt != nil {
		awardDelay = t.AwardedAt.Sub(t.PublishedAt).Hours() / 24
	}

	return []float64{
		age,
		sinceUpdate,
		float64(t.UpdateCount),
		b01(t.UpdateCount >= 3),
		float64(d.monthCurrent),
		float64(d.monthPrevious),
		spikeVal,
		b01(spikeOK && spike > 2),
		awardDelay,
	}
}
