// Package timesheet owns the timesheet lifecycle: draft saves guarded by the
// cross-project daily cap, submission, all-or-nothing project approval, and
// the planned-versus-actual reconciliation built on package reconcile.
package timesheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"timeledger/errs"
	"timeledger/identity"
	"timeledger/models"
)

// DailyCap is the most hours one person may record on a single calendar
// day, summed across every project.
const DailyCap = 24.0

type Service struct {
	db  *gorm.DB
	log zerolog.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With().Str("component", "timesheet").Logger(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for submitted_at and approved_at.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// transaction runs fn in one database transaction. On Postgres the
// transaction is serializable and a serialization failure, deadlock or
// unique violation is retried exactly once.
func (s *Service) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var opts []*sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	err := s.db.WithContext(ctx).Transaction(fn, opts...)
	if isWriteConflict(err) {
		s.log.Warn().Err(err).Msg("write conflict, retrying transaction once")
		err = s.db.WithContext(ctx).Transaction(fn, opts...)
	}
	return err
}

func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}

func (s *Service) loadProject(db *gorm.DB, ident identity.Identity, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := db.First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	if !ident.CanAccessOrganization(project.OrganizationID) {
		return nil, fmt.Errorf("project %s: %w", id, errs.ErrForbidden)
	}
	return &project, nil
}

func (s *Service) loadMember(db *gorm.DB, projectID, userID uuid.UUID) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := db.Preload("User").
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s is not a member of project %s: %w", userID, projectID, errs.ErrNotFound)
		}
		return nil, err
	}
	return &member, nil
}

func writeAudit(tx *gorm.DB, projectID, actorID uuid.UUID, action models.AuditAction, detail any) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	return tx.Create(&models.ApprovalAudit{
		ProjectID: projectID,
		ActorID:   actorID,
		Action:    action,
		Detail:    datatypes.JSON(raw),
	}).Error
}
