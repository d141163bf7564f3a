// Package export renders reconciliation reports for spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"timeledger/timesheet"
)

var leading = []string{"Email", "Name", "Status"}

var trailing = []string{
	"Actual Hours", "Planned Hours", "Difference Hours", "Difference %",
	"Rate", "Amount", "Quote", "Quote Remaining", "Budget Status",
}

// WriteCSV writes one row per member with their daily actual hours, followed
// by a totals row.
func WriteCSV(w io.Writer, report *timesheet.Report) error {
	writer := csv.NewWriter(w)

	header := make([]string, 0, len(leading)+len(report.DateRange)+len(trailing))
	header = append(header, leading...)
	header = append(header, report.DateRange...)
	header = append(header, trailing...)
	if err := writer.Write(header); err != nil {
		return err
	}

	dayTotals := make([]float64, len(report.DateRange))
	for _, row := range report.Rows {
		record := []string{row.Email, row.FullName, row.Status}
		for i, day := range report.DateRange {
			hours := row.Actual[day]
			dayTotals[i] += hours
			record = append(record, format(hours))
		}
		record = append(record,
			format(row.ActualHours),
			optional(row.PlannedHours),
			optional(row.DifferenceHours),
			optional(row.DifferencePercentage),
			format(row.RatePerHour),
			format(row.Amount),
			format(row.QuoteAmount),
			format(row.QuoteRemaining),
			string(row.BudgetStatus),
		)
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	t := report.Totals
	total := []string{"TOTAL", "", ""}
	for _, hours := range dayTotals {
		total = append(total, format(hours))
	}
	total = append(total,
		format(t.ActualHours),
		optional(t.PlannedHours),
		optional(t.DifferenceHours),
		optional(t.DifferencePercentage),
		"",
		format(t.Amount),
		format(t.QuoteAmount),
		format(t.QuoteRemaining),
		string(t.BudgetStatus),
	)
	if err := writer.Write(total); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

func format(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return format(*v)
}
