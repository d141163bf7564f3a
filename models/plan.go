package models

import (
	"github.com/google/uuid"
)

// WeeklyPlan is the budgeted allocation of one user on one project, expressed
// per project week. Weeks without a row are planned at zero.
type WeeklyPlan struct {
	Model
	ProjectID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_plan_owner" json:"project_id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_plan_owner" json:"user_id"`
	Weeks     []WeeklyPlanWeek `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"weeks"`
}

type WeeklyPlanWeek struct {
	Model
	PlanID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_plan_week" json:"plan_id"`
	WeekNumber   int       `gorm:"not null;uniqueIndex:idx_plan_week" json:"week_number"`
	PlannedHours float64   `gorm:"not null" json:"planned_hours"`
}

// Hours returns the plan as a week number to planned hours map.
func (p *WeeklyPlan) Hours() map[int]float64 {
	hours := make(map[int]float64, len(p.Weeks))
	for _, w := range p.Weeks {
		hours[w.WeekNumber] += w.PlannedHours
	}
	return hours
}
