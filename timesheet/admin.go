package timesheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timeledger/errs"
	"timeledger/identity"
	"timeledger/models"
	"timeledger/reconcile"
)

type CreateProjectRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	// OrganizationID lets a super admin create a project for another
	// organization. Everyone else always creates in their own.
	OrganizationID *uuid.UUID `json:"organization_id"`
}

func (s *Service) CreateProject(ctx context.Context, ident identity.Identity, req CreateProjectRequest) (*models.Project, error) {
	if !ident.IsAdmin() {
		return nil, fmt.Errorf("create project: %w", errs.ErrForbidden)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrInvalidInput)
	}

	start, err := reconcile.ParseDate(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date must be YYYY-MM-DD", errs.ErrInvalidInput)
	}
	end, err := reconcile.ParseDate(req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: end_date must be YYYY-MM-DD", errs.ErrInvalidInput)
	}
	if start.After(end) {
		return nil, errs.ErrInvalidRange
	}

	orgID := ident.OrganizationID
	if req.OrganizationID != nil && ident.IsSuperAdmin {
		orgID = *req.OrganizationID
	}

	project := models.Project{
		OrganizationID: orgID,
		Name:           req.Name,
		StartDate:      start,
		EndDate:        end,
		Status:         models.ProjectActive,
	}
	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}

	s.log.Info().Str("project_id", project.ID.String()).Str("name", project.Name).Msg("project created")
	return &project, nil
}

func (s *Service) AddMember(ctx context.Context, ident identity.Identity, projectID, userID uuid.UUID, role models.MemberRole) (*models.ProjectMember, error) {
	if !ident.IsAdmin() {
		return nil, fmt.Errorf("add member: %w", errs.ErrForbidden)
	}
	if role == "" {
		role = models.MemberRoleMember
	}
	if role != models.MemberRoleMember && role != models.MemberRoleManager {
		return nil, fmt.Errorf("%w: unknown member role %q", errs.ErrInvalidInput, role)
	}

	db := s.db.WithContext(ctx)
	project, err := s.loadProject(db, ident, projectID)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
		}
		return nil, err
	}
	if user.OrganizationID != project.OrganizationID {
		return nil, fmt.Errorf("%w: user belongs to another organization", errs.ErrInvalidInput)
	}

	var count int64
	err = db.Model(&models.ProjectMember{}).Where("project_id = ? AND user_id = ?", projectID, userID).Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: user is already a member", errs.ErrInvalidInput)
	}

	member := models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
	if err := db.Create(&member).Error; err != nil {
		return nil, err
	}
	member.User = &user
	return &member, nil
}

func (s *Service) RemoveMember(ctx context.Context, ident identity.Identity, projectID, userID uuid.UUID) error {
	if !ident.IsAdmin() {
		return fmt.Errorf("remove member: %w", errs.ErrForbidden)
	}

	db := s.db.WithContext(ctx)
	if _, err := s.loadProject(db, ident, projectID); err != nil {
		return err
	}

	res := db.Where("project_id = ? AND user_id = ?", projectID, userID).Delete(&models.ProjectMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("member %s: %w", userID, errs.ErrNotFound)
	}
	return nil
}

// PlanWeek is one row of a weekly plan as submitted by an admin.
type PlanWeek struct {
	WeekNumber   int     `json:"week_number"`
	PlannedHours float64 `json:"planned_hours"`
}

// SetWeeklyPlan replaces the weekly plan of userID on projectID. Weeks must
// lie inside the project; omitted weeks are planned at zero.
func (s *Service) SetWeeklyPlan(ctx context.Context, ident identity.Identity, projectID, userID uuid.UUID, weeks []PlanWeek) (*models.WeeklyPlan, error) {
	if !ident.IsAdmin() {
		return nil, fmt.Errorf("set weekly plan: %w", errs.ErrForbidden)
	}

	db := s.db.WithContext(ctx)
	project, err := s.loadProject(db, ident, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadMember(db, projectID, userID); err != nil {
		return nil, err
	}

	lastWeek := reconcile.WeekNumber(project.EndDate, project.StartDate)
	var problems errs.ValidationErrors
	seen := make(map[int]bool, len(weeks))
	for _, w := range weeks {
		switch {
		case w.WeekNumber < 1 || w.WeekNumber > lastWeek:
			problems = append(problems, fmt.Errorf("%w: week %d is outside weeks 1..%d", errs.ErrInvalidInput, w.WeekNumber, lastWeek))
		case seen[w.WeekNumber]:
			problems = append(problems, fmt.Errorf("%w: week %d appears more than once", errs.ErrInvalidInput, w.WeekNumber))
		case w.PlannedHours < 0:
			problems = append(problems, fmt.Errorf("%w: week %d has negative hours", errs.ErrInvalidInput, w.WeekNumber))
		}
		seen[w.WeekNumber] = true
	}
	if len(problems) > 0 {
		return nil, problems
	}

	var plan models.WeeklyPlan
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&plan).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			plan = models.WeeklyPlan{ProjectID: projectID, UserID: userID}
			err = tx.Create(&plan).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Where("plan_id = ?", plan.ID).Delete(&models.WeeklyPlanWeek{}).Error; err != nil {
			return err
		}
		plan.Weeks = make([]models.WeeklyPlanWeek, 0, len(weeks))
		for _, w := range weeks {
			plan.Weeks = append(plan.Weeks, models.WeeklyPlanWeek{
				PlanID:       plan.ID,
				WeekNumber:   w.WeekNumber,
				PlannedHours: w.PlannedHours,
			})
		}
		if len(plan.Weeks) > 0 {
			return tx.Create(&plan.Weeks).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

type CostingRequest struct {
	RatePerHour float64 `json:"rate_per_hour"`
	QuoteAmount float64 `json:"quote_amount"`
}

// UpsertCosting stores the rate and quote of userID on projectID and
// recomputes the derived amount from the hours currently recorded.
func (s *Service) UpsertCosting(ctx context.Context, ident identity.Identity, projectID, userID uuid.UUID, req CostingRequest) (*models.Costing, error) {
	if !ident.IsAdmin() {
		return nil, fmt.Errorf("upsert costing: %w", errs.ErrForbidden)
	}
	if req.RatePerHour < 0 || req.QuoteAmount < 0 {
		return nil, fmt.Errorf("%w: rate and quote cannot be negative", errs.ErrInvalidInput)
	}

	db := s.db.WithContext(ctx)
	if _, err := s.loadProject(db, ident, projectID); err != nil {
		return nil, err
	}
	if _, err := s.loadMember(db, projectID, userID); err != nil {
		return nil, err
	}

	var costing models.Costing
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var actual float64
		err := tx.Model(&models.TimesheetEntry{}).
			Select("COALESCE(SUM(timesheet_entries.hours), 0)").
			Joins("JOIN timesheets ON timesheets.id = timesheet_entries.timesheet_id").
			Where("timesheets.project_id = ? AND timesheets.user_id = ?", projectID, userID).
			Scan(&actual).Error
		if err != nil {
			return err
		}

		row := models.Costing{
			ProjectID:   projectID,
			UserID:      userID,
			RatePerHour: req.RatePerHour,
			QuoteAmount: req.QuoteAmount,
			Amount:      actual * req.RatePerHour,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate_per_hour", "quote_amount", "amount", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&costing).Error
	})
	if err != nil {
		return nil, err
	}
	return &costing, nil
}

// GetTimesheet returns a timesheet with its entries. Owners can always read
// their own; admins and approvers can read any in their organization.
func (s *Service) GetTimesheet(ctx context.Context, ident identity.Identity, timesheetID uuid.UUID) (*models.Timesheet, error) {
	db := s.db.WithContext(ctx)

	var ts models.Timesheet
	err := db.Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("date")
	}).First(&ts, "id = ?", timesheetID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("timesheet %s: %w", timesheetID, errs.ErrNotFound)
		}
		return nil, err
	}

	if _, err := s.loadProject(db, ident, ts.ProjectID); err != nil {
		return nil, err
	}
	if ts.UserID != ident.UserID && !ident.CanApprove() {
		return nil, fmt.Errorf("timesheet %s: %w", timesheetID, errs.ErrForbidden)
	}
	return &ts, nil
}
