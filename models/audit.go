package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditSubmit          AuditAction = "SUBMIT"
	AuditApprove         AuditAction = "APPROVE"
	AuditApproveRejected AuditAction = "APPROVE_REJECTED"
)

// ApprovalAudit records every lifecycle transition and every rejected
// project approval attempt.
type ApprovalAudit struct {
	Model
	ProjectID uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	ActorID   uuid.UUID      `gorm:"type:uuid;not null" json:"actor_id"`
	Action    AuditAction    `gorm:"not null;size:30" json:"action"`
	Detail    datatypes.JSON `json:"detail"`
}
