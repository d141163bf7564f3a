package reconcile

// BudgetStatus classifies how far actual hours drifted from the plan.
type BudgetStatus string

const (
	BudgetOver      BudgetStatus = "over"
	BudgetOnTrack   BudgetStatus = "on_track"
	BudgetUnder     BudgetStatus = "under"
	BudgetUnplanned BudgetStatus = "unplanned"
)

// Thresholds, in percent of planned hours, beyond which a member is over or
// under budget.
const (
	OverThreshold  = 10.0
	UnderThreshold = -10.0
)

// Classify maps a difference percentage onto a BudgetStatus. A nil
// percentage means there was nothing to compare against.
func Classify(pct *float64) BudgetStatus {
	switch {
	case pct == nil:
		return BudgetUnplanned
	case *pct > OverThreshold:
		return BudgetOver
	case *pct < UnderThreshold:
		return BudgetUnder
	default:
		return BudgetOnTrack
	}
}

// Cost is the planned-versus-actual comparison for one project member.
type Cost struct {
	ActualHours          float64      `json:"actual_total_hours"`
	PlannedHours         *float64     `json:"planned_total_hours"`
	DifferenceHours      *float64     `json:"difference_hours"`
	DifferencePercentage *float64     `json:"difference_percentage"`
	RatePerHour          float64      `json:"rate_per_hour"`
	QuoteAmount          float64      `json:"quote_amount"`
	Amount               float64      `json:"amount"`
	QuoteRemaining       float64      `json:"quote_remaining"`
	BudgetStatus         BudgetStatus `json:"budget_status"`
}

// CostRow reconciles one member. planned is nil when the member has no plan;
// the difference is then nil too. The percentage is nil whenever planned is
// nil or zero.
func CostRow(actual float64, planned *float64, rate, quote float64) Cost {
	c := Cost{
		ActualHours:  actual,
		PlannedHours: planned,
		RatePerHour:  rate,
		QuoteAmount:  quote,
		Amount:       actual * rate,
	}
	c.QuoteRemaining = quote - c.Amount

	if planned != nil {
		diff := actual - *planned
		c.DifferenceHours = &diff
		if *planned != 0 {
			pct := diff / *planned * 100
			c.DifferencePercentage = &pct
		}
	}
	c.BudgetStatus = Classify(c.DifferencePercentage)
	return c
}

// Totals are the column sums of a set of cost rows.
type Totals struct {
	ActualHours          float64      `json:"actual_total_hours"`
	PlannedHours         *float64     `json:"planned_total_hours"`
	DifferenceHours      *float64     `json:"difference_hours"`
	DifferencePercentage *float64     `json:"difference_percentage"`
	Amount               float64      `json:"amount"`
	QuoteAmount          float64      `json:"quote_amount"`
	QuoteRemaining       float64      `json:"quote_remaining"`
	BudgetStatus         BudgetStatus `json:"budget_status"`
}

// Summarize sums rows. Planned hours only include rows that have a plan and
// stay nil when none does; the difference then compares the actual hours of
// planned rows only.
func Summarize(rows []Cost) Totals {
	var t Totals
	var planned, plannedActual float64
	hasPlan := false

	for _, r := range rows {
		t.ActualHours += r.ActualHours
		t.Amount += r.Amount
		t.QuoteAmount += r.QuoteAmount
		t.QuoteRemaining += r.QuoteRemaining
		if r.PlannedHours != nil {
			hasPlan = true
			planned += *r.PlannedHours
			plannedActual += r.ActualHours
		}
	}

	if hasPlan {
		sum := CostRow(plannedActual, &planned, 0, 0)
		t.PlannedHours = sum.PlannedHours
		t.DifferenceHours = sum.DifferenceHours
		t.DifferencePercentage = sum.DifferencePercentage
	}
	t.BudgetStatus = Classify(t.DifferencePercentage)
	return t
}
