package features

import "time"

var timingNames = []string{
	"deadline_days",
	"has_deadline",
	"deadline_very_short",
	"deadline_short",
	"published_weekday",
	"published_friday",
	"published_weekend",
	"published_month",
	"published_december",
	"published_q4",
	"amendment_count",
	"has_amendments",
	"multiple_amendments",
	"last_amendment_days_before_close",
	"very_late_amendment",
	"closing_friday",
}

// buildTiming produces the timing block: submission window length, suspicious
// publication timing, and amendment behavior near the deadline.
func buildTiming(d *tenderData) []float64 {
	t := d.tender

	deadlineDays := 0.0
	hasDeadline := t.ClosingAt != nil
	if hasDeadline {
		deadlineDays = t.ClosingAt.Sub(t.PublishedAt).Hours() / 24
	}

	weekday := t.PublishedAt.Weekday()
	month := t.PublishedAt.Month()

	// Days between the last amendment and the closing date. Undefined (no
	// amendment or no deadline) resolves to the ratio sentinel; the
	// very_late indicator fires only when the value is defined.
	amendBeforeClose := SentinelRatio
	amendDefined := t.LastAmendmentAt != nil && hasDeadline
	if amendDefined {
		amendBeforeClose = t.ClosingAt.Sub(*t.LastAmendmentAt).Hours() / 24
	}

	closingFriday := hasDeadline && t.ClosingAt.Weekday() == time.Friday

	return []float64{
		deadlineDays,
		b01(hasDeadline),
		b01(hasDeadline && deadlineDays < 3),
		b01(hasDeadline && deadlineDays < 7),
		float64(weekday),
		b01(weekday == time.Friday),
		b01(weekday == time.Saturday || weekday == time.Sunday),
		float64(month),
		b01(month == time.December),
		b01(month >= time.October),
		float64(t.AmendmentCount),
		b01(t.AmendmentCount > 0),
		b01(t.AmendmentCount >= 2),
		amendBeforeClose,
		b01(amendDefined && amendBeforeClose < 2),
		b01(closingFriday),
	}
}
