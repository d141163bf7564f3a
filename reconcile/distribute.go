package reconcile

import (
	"time"
)

// Distribution is a weekly plan spread across individual days.
type Distribution struct {
	// Daily holds planned hours for every day of the range, weekends at 0.
	Daily map[string]float64
	Total float64
	// HasPlan is false when no plan exists at all, which callers must not
	// confuse with a plan of zero hours.
	HasPlan bool
	// Unallocated is planned time for weeks that have no weekday inside
	// the range, so there is no day to attach it to.
	Unallocated float64
}

// Distribute spreads plan (project week -> planned hours) evenly across the
// weekdays of each week that fall inside days. A nil plan means the member
// has none; an empty one is a plan of zero hours.
func Distribute(days []time.Time, projectStart time.Time, plan map[int]float64) Distribution {
	if plan == nil {
		return Distribution{Daily: map[string]float64{}}
	}

	weekdays := make(map[int]int)
	for _, d := range days {
		if IsWeekday(d) {
			weekdays[WeekNumber(d, projectStart)]++
		}
	}

	dist := Distribution{
		Daily:   make(map[string]float64, len(days)),
		HasPlan: true,
	}
	for _, d := range days {
		key := d.Format(DateLayout)
		week := WeekNumber(d, projectStart)
		planned := plan[week]
		if !IsWeekday(d) || planned <= 0 {
			dist.Daily[key] = 0
			continue
		}
		hours := planned / float64(max(weekdays[week], 1))
		dist.Daily[key] = hours
		dist.Total += hours
	}

	for week, planned := range plan {
		if planned > 0 && weekdays[week] == 0 {
			dist.Unallocated += planned
		}
	}
	return dist
}
