package timesheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"timeledger/errs"
	"timeledger/identity"
	"timeledger/models"
	"timeledger/reconcile"
)

// validateEntries checks the shape of a draft batch against the project
// range. Every problem is collected; only entries that pass are returned.
func (s *Service) validateEntries(project *models.Project, entries []reconcile.Entry) ([]cell, errs.ValidationErrors) {
	start, end := reconcile.Midnight(project.StartDate), reconcile.Midnight(project.EndDate)
	startKey, endKey := start.Format(reconcile.DateLayout), end.Format(reconcile.DateLayout)

	var problems errs.ValidationErrors
	seen := make(map[string]bool, len(entries))
	cells := make([]cell, 0, len(entries))

	for _, e := range entries {
		date, err := reconcile.ParseDate(e.Date)
		if err != nil {
			problems = append(problems, fmt.Errorf("%w: date %q", errs.ErrInvalidInput, e.Date))
			continue
		}
		key := date.Format(reconcile.DateLayout)

		if date.Before(start) || date.After(end) {
			problems = append(problems, &errs.DateOutOfRange{Date: key, Start: startKey, End: endKey})
			continue
		}
		if seen[key] {
			problems = append(problems, &errs.DuplicateDate{Date: key})
			continue
		}
		seen[key] = true

		hours, ok := e.Hours.Value()
		if !ok {
			problems = append(problems, fmt.Errorf("%w: hours on %s are not a number", errs.ErrInvalidInput, key))
			continue
		}
		if hours < 0 || hours > DailyCap {
			problems = append(problems, &errs.CellOutOfRange{Date: key, Hours: hours})
			continue
		}
		cells = append(cells, cell{date: date, hours: hours})
	}

	sortCells(cells)
	return cells, problems
}

func (s *Service) findTimesheet(db *gorm.DB, projectID, userID uuid.UUID) (*models.Timesheet, error) {
	var ts models.Timesheet
	err := db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&ts).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// SaveDraft replaces every entry of userID's timesheet on projectID with
// entries, creating the timesheet on first save. Only DRAFT timesheets can
// be saved. All validation problems of the batch, including every day that
// would break the daily cap, are returned together as errs.ValidationErrors.
func (s *Service) SaveDraft(ctx context.Context, ident identity.Identity, projectID, userID uuid.UUID, entries []reconcile.Entry) (*models.Timesheet, error) {
	if !ident.CanActFor(userID) {
		return nil, fmt.Errorf("save timesheet of another user: %w", errs.ErrForbidden)
	}

	db := s.db.WithContext(ctx)
	project, err := s.loadProject(db, ident, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadMember(db, projectID, userID); err != nil {
		return nil, err
	}

	existing, err := s.findTimesheet(db, projectID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != models.StatusDraft {
		return nil, &errs.InvalidTransition{From: string(existing.Status), To: string(models.StatusDraft)}
	}

	cells, problems := s.validateEntries(project, entries)
	excludeID := uuid.Nil
	if existing != nil {
		excludeID = existing.ID
	}
	violations, err := checkDailyCap(db, userID, excludeID, cells)
	if err != nil {
		return nil, err
	}
	if err := append(problems, violations...).OrNil(); err != nil {
		return nil, err
	}

	var saved models.Timesheet
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		ts, err := s.findTimesheet(tx, projectID, userID)
		if err != nil {
			return err
		}
		if ts == nil {
			ts = &models.Timesheet{ProjectID: projectID, UserID: userID, Status: models.StatusDraft}
			if err := tx.Create(ts).Error; err != nil {
				return err
			}
		} else if ts.Status != models.StatusDraft {
			return &errs.InvalidTransition{From: string(ts.Status), To: string(models.StatusDraft)}
		}

		// The snapshot check above may be stale by now.
		violations, err := checkDailyCap(tx, userID, ts.ID, cells)
		if err != nil {
			return err
		}
		if err := violations.OrNil(); err != nil {
			return err
		}

		if err := tx.Where("timesheet_id = ?", ts.ID).Delete(&models.TimesheetEntry{}).Error; err != nil {
			return err
		}
		if len(cells) > 0 {
			rows := make([]models.TimesheetEntry, len(cells))
			for i, c := range cells {
				rows[i] = models.TimesheetEntry{TimesheetID: ts.ID, Date: c.date, Hours: c.hours}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(ts).Update("updated_at", s.now()).Error; err != nil {
			return err
		}
		return tx.Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("date")
		}).First(&saved, "id = ?", ts.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("timesheet_id", saved.ID.String()).
		Str("project_id", projectID.String()).
		Int("entries", len(cells)).
		Msg("draft saved")
	return &saved, nil
}

// Submit moves a DRAFT timesheet to SUBMITTED after re-validating every
// stored entry, since other timesheets may have changed since the draft was
// saved.
func (s *Service) Submit(ctx context.Context, ident identity.Identity, timesheetID uuid.UUID) (*models.Timesheet, error) {
	db := s.db.WithContext(ctx)

	var ts models.Timesheet
	if err := db.First(&ts, "id = ?", timesheetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("timesheet %s: %w", timesheetID, errs.ErrNotFound)
		}
		return nil, err
	}
	if !ident.CanActFor(ts.UserID) {
		return nil, fmt.Errorf("submit timesheet of another user: %w", errs.ErrForbidden)
	}
	project, err := s.loadProject(db, ident, ts.ProjectID)
	if err != nil {
		return nil, err
	}
	if ts.Status != models.StatusDraft {
		return nil, &errs.InvalidTransition{From: string(ts.Status), To: string(models.StatusSubmitted)}
	}

	var submitted models.Timesheet
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		var stored []models.TimesheetEntry
		if err := tx.Where("timesheet_id = ?", ts.ID).Find(&stored).Error; err != nil {
			return err
		}

		entries := make([]reconcile.Entry, len(stored))
		for i, e := range stored {
			entries[i] = reconcile.Entry{Date: e.Date.Format(reconcile.DateLayout), Hours: reconcile.Hours(e.Hours)}
		}
		cells, problems := s.validateEntries(project, entries)
		violations, err := checkDailyCap(tx, ts.UserID, ts.ID, cells)
		if err != nil {
			return err
		}
		if err := append(problems, violations...).OrNil(); err != nil {
			return err
		}

		now := s.now()
		res := tx.Model(&models.Timesheet{}).
			Where("id = ? AND status = ?", ts.ID, models.StatusDraft).
			Updates(map[string]any{
				"status":       models.StatusSubmitted,
				"submitted_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current models.Timesheet
			if err := tx.Select("status").First(&current, "id = ?", ts.ID).Error; err != nil {
				return err
			}
			return &errs.InvalidTransition{From: string(current.Status), To: string(models.StatusSubmitted)}
		}

		if err := writeAudit(tx, ts.ProjectID, ident.UserID, models.AuditSubmit, map[string]any{
			"timesheet_id": ts.ID,
			"total_hours":  totalHours(cells),
		}); err != nil {
			return err
		}
		return tx.Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("date")
		}).First(&submitted, "id = ?", ts.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("timesheet_id", submitted.ID.String()).
		Str("project_id", submitted.ProjectID.String()).
		Msg("timesheet submitted")
	return &submitted, nil
}

func totalHours(cells []cell) float64 {
	var total float64
	for _, c := range cells {
		total += c.hours
	}
	return total
}

// ApprovalResult is the outcome of a successful ApproveProject call.
type ApprovalResult struct {
	ProjectID       uuid.UUID  `json:"project_id"`
	ApprovedCount   int        `json:"approved_count"`
	AlreadyApproved bool       `json:"already_approved"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
}

// ApproveProject approves every SUBMITTED timesheet of the project in one
// step. It refuses unless the whole roster is at least SUBMITTED, and is a
// no-op when everything is already APPROVED. The roster is checked again
// inside the transaction, before and after the write, and the transition
// only applies to rows still SUBMITTED at write time. If anything changed
// underneath, nothing is approved: a member who became pending yields
// errs.IncompleteSubmission, a timesheet that left SUBMITTED yields
// errs.ErrApprovalRaceDetected.
func (s *Service) ApproveProject(ctx context.Context, ident identity.Identity, projectID uuid.UUID) (*ApprovalResult, error) {
	if !ident.CanApprove() {
		return nil, fmt.Errorf("approve project: %w", errs.ErrForbidden)
	}

	db := s.db.WithContext(ctx)
	if _, err := s.loadProject(db, ident, projectID); err != nil {
		return nil, err
	}

	roster, err := s.loadRoster(db, projectID)
	if err != nil {
		return nil, err
	}
	if len(roster.members) == 0 {
		return nil, fmt.Errorf("%w: project has no members", errs.ErrInvalidInput)
	}
	if incomplete := roster.incomplete(); incomplete != nil {
		return nil, s.rejectApproval(db, ident, projectID, incomplete)
	}
	if len(roster.idsWithStatus(models.StatusSubmitted)) == 0 {
		return &ApprovalResult{ProjectID: projectID, AlreadyApproved: true}, nil
	}

	now := s.now()
	var ids []uuid.UUID
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		current, err := s.loadRoster(tx, projectID)
		if err != nil {
			return err
		}
		if incomplete := current.incomplete(); incomplete != nil {
			return incomplete
		}
		ids = current.idsWithStatus(models.StatusSubmitted)
		if len(ids) == 0 {
			return nil
		}

		res := tx.Model(&models.Timesheet{}).
			Where("project_id = ? AND id IN ? AND status = ?", projectID, ids, models.StatusSubmitted).
			Updates(map[string]any{
				"status":      models.StatusApproved,
				"approved_at": now,
				"approved_by": ident.UserID,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			s.log.Warn().
				Str("project_id", projectID.String()).
				Int("expected", len(ids)).
				Int64("updated", res.RowsAffected).
				Msg("approval matched fewer timesheets than expected")
			return errs.ErrApprovalRaceDetected
		}

		after, err := s.loadRoster(tx, projectID)
		if err != nil {
			return err
		}
		if incomplete := after.incomplete(); incomplete != nil {
			s.log.Warn().
				Str("project_id", projectID.String()).
				Int("pending", incomplete.PendingCount).
				Msg("roster changed during approval")
			return incomplete
		}

		return writeAudit(tx, projectID, ident.UserID, models.AuditApprove, map[string]any{
			"timesheet_ids": ids,
		})
	})
	var incomplete *errs.IncompleteSubmission
	if errors.As(err, &incomplete) {
		return nil, s.rejectApproval(db, ident, projectID, incomplete)
	}
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &ApprovalResult{ProjectID: projectID, AlreadyApproved: true}, nil
	}

	s.log.Info().
		Str("project_id", projectID.String()).
		Str("approved_by", ident.UserID.String()).
		Int("approved", len(ids)).
		Msg("project timesheets approved")
	return &ApprovalResult{ProjectID: projectID, ApprovedCount: len(ids), ApprovedAt: &now}, nil
}

// rejectApproval records a refused approval and returns the refusal.
func (s *Service) rejectApproval(db *gorm.DB, ident identity.Identity, projectID uuid.UUID, incomplete *errs.IncompleteSubmission) error {
	if err := writeAudit(db, projectID, ident.UserID, models.AuditApproveRejected, incomplete); err != nil {
		s.log.Error().Err(err).Str("project_id", projectID.String()).Msg("failed to record rejected approval")
	}
	return incomplete
}
