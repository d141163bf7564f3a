package timesheet

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"timeledger/errs"
	"timeledger/models"
	"timeledger/reconcile"
)

// cell is one validated (day, hours) pair about to be written.
type cell struct {
	date  time.Time
	hours float64
}

func sortCells(cells []cell) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].date.Before(cells[j].date) })
}

type dayHours struct {
	Date  time.Time
	Hours float64
}

// otherDailyTotals sums, per day between from and to, the hours userID has
// recorded on every timesheet except exclude, whatever the project.
func otherDailyTotals(db *gorm.DB, userID, exclude uuid.UUID, from, to time.Time) (map[string]float64, error) {
	var rows []dayHours
	err := db.Model(&models.TimesheetEntry{}).
		Select("timesheet_entries.date, timesheet_entries.hours").
		Joins("JOIN timesheets ON timesheets.id = timesheet_entries.timesheet_id").
		Where("timesheets.user_id = ? AND timesheets.id <> ?", userID, exclude).
		Where("timesheet_entries.date BETWEEN ? AND ?", from, to).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64)
	for _, r := range rows {
		totals[reconcile.Midnight(r.Date).Format(reconcile.DateLayout)] += r.Hours
	}
	return totals, nil
}

// checkDailyCap validates every cell of a batch against the hours userID
// already has on other timesheets and reports each day that would go over
// DailyCap. The timesheet being written is excluded because its rows are
// about to be replaced.
func checkDailyCap(db *gorm.DB, userID, timesheetID uuid.UUID, cells []cell) (errs.ValidationErrors, error) {
	if len(cells) == 0 {
		return nil, nil
	}

	from, to := cells[0].date, cells[0].date
	for _, c := range cells[1:] {
		if c.date.Before(from) {
			from = c.date
		}
		if c.date.After(to) {
			to = c.date
		}
	}

	other, err := otherDailyTotals(db, userID, timesheetID, from, to)
	if err != nil {
		return nil, err
	}

	var violations errs.ValidationErrors
	for _, c := range cells {
		total := roundHours(other[c.date.Format(reconcile.DateLayout)] + c.hours)
		if total > DailyCap {
			violations = append(violations, errs.NewDailyCapExceeded(c.date, total))
		}
	}
	return violations, nil
}

// roundHours rounds to hundredths so sums like 3.1 + 16.1 + 4.8 land on 24.
func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
