package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrInvalidRange         = errors.New("start date is after end date")
	ErrCellOutOfRange       = errors.New("hours must be between 0 and 24")
	ErrDateOutOfRange       = errors.New("date is outside the project range")
	ErrDuplicateDate        = errors.New("date appears more than once")
	ErrDailyCapExceeded     = errors.New("daily hours cap exceeded")
	ErrInvalidTransition    = errors.New("invalid timesheet status transition")
	ErrIncompleteSubmission = errors.New("not every project member has submitted")
	ErrApprovalRaceDetected = errors.New("timesheets changed during approval")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
)

// ErrStatusMap maps domain errors to the HTTP status they are reported with.
// Anything not listed is an infrastructure error.
var ErrStatusMap = map[error]int{
	ErrInvalidRange:         http.StatusUnprocessableEntity,
	ErrCellOutOfRange:       http.StatusUnprocessableEntity,
	ErrDateOutOfRange:       http.StatusUnprocessableEntity,
	ErrDuplicateDate:        http.StatusUnprocessableEntity,
	ErrDailyCapExceeded:     http.StatusUnprocessableEntity,
	ErrInvalidTransition:    http.StatusConflict,
	ErrIncompleteSubmission: http.StatusConflict,
	ErrApprovalRaceDetected: http.StatusConflict,
	ErrNotFound:             http.StatusNotFound,
	ErrForbidden:            http.StatusForbidden,
	ErrInvalidInput:         http.StatusBadRequest,
}

// StatusFor returns the HTTP status for err and whether err is a domain error.
func StatusFor(err error) (int, bool) {
	var batch ValidationErrors
	if errors.As(err, &batch) {
		return http.StatusUnprocessableEntity, true
	}
	for known, status := range ErrStatusMap {
		if errors.Is(err, known) {
			return status, true
		}
	}
	return http.StatusInternalServerError, false
}

const dateLayout = "2006-01-02"

type CellOutOfRange struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}

func (e *CellOutOfRange) Error() string {
	return fmt.Sprintf("%s: %v hours is outside [0, 24]", e.Date, e.Hours)
}

func (e *CellOutOfRange) Unwrap() error { return ErrCellOutOfRange }

type DateOutOfRange struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (e *DateOutOfRange) Error() string {
	return fmt.Sprintf("%s is outside the project range %s..%s", e.Date, e.Start, e.End)
}

func (e *DateOutOfRange) Unwrap() error { return ErrDateOutOfRange }

type DuplicateDate struct {
	Date string `json:"date"`
}

func (e *DuplicateDate) Error() string {
	return fmt.Sprintf("%s appears more than once", e.Date)
}

func (e *DuplicateDate) Unwrap() error { return ErrDuplicateDate }

type DailyCapExceeded struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

func NewDailyCapExceeded(date time.Time, total float64) *DailyCapExceeded {
	return &DailyCapExceeded{Date: date.Format(dateLayout), Total: total}
}

func (e *DailyCapExceeded) Error() string {
	return fmt.Sprintf("%s: total of %v hours across all projects exceeds 24", e.Date, e.Total)
}

func (e *DailyCapExceeded) Unwrap() error { return ErrDailyCapExceeded }

type InvalidTransition struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("cannot move timesheet from %s to %s", e.From, e.To)
}

func (e *InvalidTransition) Unwrap() error { return ErrInvalidTransition }

// PendingMember is a roster entry that blocks project approval.
type PendingMember struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	State  string `json:"state"`
}

type IncompleteSubmission struct {
	Pending      []PendingMember `json:"pending"`
	PendingCount int             `json:"pending_count"`
	TotalMembers int             `json:"total_members"`
}

func (e *IncompleteSubmission) Error() string {
	emails := make([]string, 0, len(e.Pending))
	for _, p := range e.Pending {
		emails = append(emails, p.Email)
	}
	return fmt.Sprintf("%d of %d members have not submitted: %s",
		e.PendingCount, e.TotalMembers, strings.Join(emails, ", "))
}

func (e *IncompleteSubmission) Unwrap() error { return ErrIncompleteSubmission }

// ValidationErrors is the full list of problems found in one batch.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, err := range v {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is and errors.As see every collected error.
func (v ValidationErrors) Unwrap() []error { return v }

// OrNil returns nil for an empty batch so callers can return it directly.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
