package models

import (
	"github.com/google/uuid"
)

// Costing is the billing rate and quote for one user on one project. Amount
// is derived from actual hours and is recomputed whenever the row is saved.
type Costing struct {
	Model
	ProjectID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_costing_owner" json:"project_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_costing_owner" json:"user_id"`
	RatePerHour float64   `gorm:"not null;default:0" json:"rate_per_hour"`
	QuoteAmount float64   `gorm:"not null;default:0" json:"quote_amount"`
	Amount      float64   `gorm:"not null;default:0" json:"amount"`
}
