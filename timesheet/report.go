package timesheet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"timeledger/errs"
	"timeledger/identity"
	"timeledger/models"
	"timeledger/reconcile"
)

// NotStarted is the reported status of a member without a timesheet.
const NotStarted = "NOT_STARTED"

type roster struct {
	members    []models.ProjectMember
	timesheets map[uuid.UUID]*models.Timesheet
}

func (s *Service) loadRoster(db *gorm.DB, projectID uuid.UUID) (*roster, error) {
	var members []models.ProjectMember
	err := db.Preload("User").
		Joins("JOIN users ON users.id = project_members.user_id").
		Where("project_members.project_id = ?", projectID).
		Order("users.email").
		Find(&members).Error
	if err != nil {
		return nil, err
	}

	var timesheets []models.Timesheet
	if err := db.Where("project_id = ?", projectID).Find(&timesheets).Error; err != nil {
		return nil, err
	}

	r := &roster{members: members, timesheets: make(map[uuid.UUID]*models.Timesheet, len(timesheets))}
	for i := range timesheets {
		r.timesheets[timesheets[i].UserID] = &timesheets[i]
	}
	return r, nil
}

func (r *roster) idsWithStatus(status models.TimesheetStatus) []uuid.UUID {
	var ids []uuid.UUID
	for _, m := range r.members {
		if ts := r.timesheets[m.UserID]; ts != nil && ts.Status == status {
			ids = append(ids, ts.ID)
		}
	}
	return ids
}

// Submission summarizes where a project's roster stands in the approval flow.
type Submission struct {
	TotalMembers int                  `json:"total_members"`
	NotStarted   int                  `json:"not_started"`
	Draft        int                  `json:"draft"`
	Submitted    int                  `json:"submitted"`
	Approved     int                  `json:"approved"`
	PendingCount int                  `json:"pending_count"`
	Pending      []errs.PendingMember `json:"pending"`
	CanApprove   bool                 `json:"can_approve"`
	AllApproved  bool                 `json:"all_approved"`
}

func (r *roster) submission() Submission {
	sub := Submission{TotalMembers: len(r.members), Pending: []errs.PendingMember{}}
	for _, m := range r.members {
		email := ""
		if m.User != nil {
			email = m.User.Email
		}
		pending := errs.PendingMember{UserID: m.UserID.String(), Email: email}

		ts := r.timesheets[m.UserID]
		switch {
		case ts == nil:
			sub.NotStarted++
			pending.State = NotStarted
		case ts.Status == models.StatusDraft:
			sub.Draft++
			pending.State = string(models.StatusDraft)
		case ts.Status == models.StatusSubmitted:
			sub.Submitted++
			continue
		default:
			sub.Approved++
			continue
		}
		sub.Pending = append(sub.Pending, pending)
	}
	sub.PendingCount = len(sub.Pending)
	sub.CanApprove = sub.TotalMembers > 0 && sub.PendingCount == 0 && sub.Submitted > 0
	sub.AllApproved = sub.TotalMembers > 0 && sub.Approved == sub.TotalMembers
	return sub
}

// incomplete returns the roster's pending members as an approval refusal,
// or nil when everyone has at least submitted.
func (r *roster) incomplete() *errs.IncompleteSubmission {
	sub := r.submission()
	if sub.PendingCount == 0 {
		return nil
	}
	return &errs.IncompleteSubmission{
		Pending:      sub.Pending,
		PendingCount: sub.PendingCount,
		TotalMembers: sub.TotalMembers,
	}
}

// Row is one project member in a reconciliation report.
type Row struct {
	UserID      uuid.UUID          `json:"user_id"`
	Email       string             `json:"email"`
	FullName    string             `json:"full_name"`
	Role        models.MemberRole  `json:"role"`
	TimesheetID *uuid.UUID         `json:"timesheet_id"`
	Status      string             `json:"status"`
	Actual      map[string]float64 `json:"actual"`
	// Planned is nil when the member has no weekly plan.
	Planned map[string]float64 `json:"planned"`
	reconcile.Cost
}

// Report is the reconciled view of a project that approval screens and
// exports render.
type Report struct {
	ProjectID   uuid.UUID        `json:"project_id"`
	ProjectName string           `json:"project_name"`
	StartDate   string           `json:"start_date"`
	EndDate     string           `json:"end_date"`
	DateRange   []string         `json:"date_range"`
	Rows        []Row            `json:"rows"`
	Totals      reconcile.Totals `json:"totals"`
	Submission  Submission       `json:"submission_status"`
}

// Reconcile builds the planned-versus-actual report of a project with one
// row per member.
func (s *Service) Reconcile(ctx context.Context, ident identity.Identity, projectID uuid.UUID) (*Report, error) {
	db := s.db.WithContext(ctx)
	project, err := s.loadProject(db, ident, projectID)
	if err != nil {
		return nil, err
	}

	days, err := reconcile.DateRange(project.StartDate, project.EndDate)
	if err != nil {
		return nil, err
	}

	r, err := s.loadRoster(db, projectID)
	if err != nil {
		return nil, err
	}

	var entries []models.TimesheetEntry
	err = db.Joins("JOIN timesheets ON timesheets.id = timesheet_entries.timesheet_id").
		Where("timesheets.project_id = ?", projectID).
		Order("timesheet_entries.date").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	byTimesheet := make(map[uuid.UUID][]reconcile.Entry)
	for _, e := range entries {
		byTimesheet[e.TimesheetID] = append(byTimesheet[e.TimesheetID], reconcile.Entry{
			Date:  e.Date.Format(reconcile.DateLayout),
			Hours: reconcile.Hours(e.Hours),
		})
	}

	var plans []models.WeeklyPlan
	if err := db.Preload("Weeks").Where("project_id = ?", projectID).Find(&plans).Error; err != nil {
		return nil, err
	}
	plansByUser := make(map[uuid.UUID]map[int]float64, len(plans))
	for i := range plans {
		plansByUser[plans[i].UserID] = plans[i].Hours()
	}

	var costings []models.Costing
	if err := db.Where("project_id = ?", projectID).Find(&costings).Error; err != nil {
		return nil, err
	}
	costByUser := make(map[uuid.UUID]models.Costing, len(costings))
	for _, c := range costings {
		costByUser[c.UserID] = c
	}

	report := &Report{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		StartDate:   days[0].Format(reconcile.DateLayout),
		EndDate:     days[len(days)-1].Format(reconcile.DateLayout),
		DateRange:   reconcile.DateKeys(days),
		Rows:        make([]Row, 0, len(r.members)),
		Submission:  r.submission(),
	}

	costs := make([]reconcile.Cost, 0, len(r.members))
	for _, m := range r.members {
		row := Row{UserID: m.UserID, Role: m.Role, Status: NotStarted}
		if m.User != nil {
			row.Email = m.User.Email
			row.FullName = m.User.DisplayName()
		}

		var memberEntries []reconcile.Entry
		if ts := r.timesheets[m.UserID]; ts != nil {
			id := ts.ID
			row.TimesheetID = &id
			row.Status = string(ts.Status)
			memberEntries = byTimesheet[ts.ID]
		}
		actual := reconcile.Aggregate(memberEntries, days, s.log.With().Str("user_id", m.UserID.String()).Logger())
		row.Actual = actual.Daily

		var planned *float64
		dist := reconcile.Distribute(days, project.StartDate, plansByUser[m.UserID])
		if dist.HasPlan {
			total := dist.Total
			planned = &total
			row.Planned = dist.Daily
			if dist.Unallocated > 0 {
				s.log.Warn().
					Str("user_id", m.UserID.String()).
					Float64("hours", dist.Unallocated).
					Msg("planned hours fall in weeks without working days")
			}
		}

		costing := costByUser[m.UserID]
		row.Cost = reconcile.CostRow(actual.Total, planned, costing.RatePerHour, costing.QuoteAmount)
		costs = append(costs, row.Cost)
		report.Rows = append(report.Rows, row)
	}
	report.Totals = reconcile.Summarize(costs)

	return report, nil
}
