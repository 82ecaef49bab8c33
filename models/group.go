package models

import (
	"time"
)

// Cadence represents how often a group collects contributions
type Cadence string

const (
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// PeriodLength returns the length of one contribution period
func (c Cadence) PeriodLength() time.Duration {
	if c == CadenceMonthly {
		return 30 * 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// Group represents a rotating-savings group
type Group struct {
	ID                 int64     `db:"id"`
	Name               string    `db:"name"`
	Description        string    `db:"description"`
	ContributionAmount int64     `db:"contribution_amount"` // smallest currency unit
	Cadence            Cadence   `db:"cadence"`
	MaxMembers         int       `db:"max_members"`
	CreatorID          int64     `db:"creator_id"`
	CurrentCycle       int       `db:"current_cycle"`
	StartDate          time.Time `db:"start_date"`
	IsActive           bool      `db:"is_active"`
	TotalContributions int64     `db:"total_contributions"`
	LastAdvancedCycle  int       `db:"last_advanced_cycle"`
	LastAdvancedWeek   int       `db:"last_advanced_week"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// GroupMember represents a user's membership in a group
type GroupMember struct {
	ID       int64     `db:"id"`
	GroupID  int64     `db:"group_id"`
	UserID   int64     `db:"user_id"`
	JoinedAt time.Time `db:"joined_at"`
	IsActive bool      `db:"is_active"`
}

// HasAdvancedTo reports whether the group's new-period broadcast has already
// run for the given period
func (g *Group) HasAdvancedTo(p Period) bool {
	if g.LastAdvancedCycle != p.Cycle {
		return g.LastAdvancedCycle > p.Cycle
	}
	return g.LastAdvancedWeek >= p.Week
}
