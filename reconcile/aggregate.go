package reconcile

import (
	"time"

	"github.com/rs/zerolog"
)

// Entry is one recorded cell of a timesheet.
type Entry struct {
	Date  string
	Hours Hours
}

// Aggregation is a timesheet folded onto the project's day grid.
type Aggregation struct {
	Daily   map[string]float64
	Total   float64
	Dropped int
}

// Aggregate maps entries onto days. Every day starts at 0; entries for
// days outside the range, or with dates that do not parse, are logged and
// dropped. A later entry for the same day overwrites an earlier one.
func Aggregate(entries []Entry, days []time.Time, log zerolog.Logger) Aggregation {
	agg := Aggregation{Daily: make(map[string]float64, len(days))}
	for _, d := range days {
		agg.Daily[d.Format(DateLayout)] = 0
	}

	for _, e := range entries {
		date, err := ParseDate(e.Date)
		if err != nil {
			log.Warn().Str("date", e.Date).Err(err).Msg("dropping entry with unparseable date")
			agg.Dropped++
			continue
		}
		key := date.Format(DateLayout)
		if _, ok := agg.Daily[key]; !ok {
			log.Warn().Str("date", key).Msg("dropping entry outside project range")
			agg.Dropped++
			continue
		}
		hours, ok := e.Hours.Value()
		if !ok {
			log.Warn().Str("date", key).Msg("entry hours are not a number, counting as 0")
		}
		agg.Daily[key] = hours
	}

	for _, d := range days {
		agg.Total += agg.Daily[d.Format(DateLayout)]
	}
	return agg
}
