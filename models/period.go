package models

import (
	"time"
)

// Period identifies one contribution collection window within a group's
// rotation: cycle counts full round-robin passes, week counts periods within
// the current pass
type Period struct {
	Cycle int
	Week  int
}

// Before reports whether p comes strictly earlier than other
func (p Period) Before(other Period) bool {
	if p.Cycle != other.Cycle {
		return p.Cycle < other.Cycle
	}
	return p.Week < other.Week
}

// SnapshotMember is one active member inside a MemberSnapshot
type SnapshotMember struct {
	UserID     int64
	Name       string
	WhatsappID string
	JoinedAt   time.Time
}

// MemberSnapshot is the ordered set of a group's active members captured at a
// single evaluation point. Completeness checks and recipient selection must
// both read from the same snapshot so a mid-cycle membership change cannot
// split the two decisions.
type MemberSnapshot struct {
	GroupID int64
	Members []*SnapshotMember // stable join order
}

// Count returns the number of active members in the snapshot
func (s *MemberSnapshot) Count() int {
	return len(s.Members)
}

// Contains reports whether the user is an active member in this snapshot
func (s *MemberSnapshot) Contains(userID int64) bool {
	for _, m := range s.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// RecipientFor selects the payout recipient for a week by round-robin over
// the snapshot's join order
func (s *MemberSnapshot) RecipientFor(week int) *SnapshotMember {
	if len(s.Members) == 0 {
		return nil
	}
	return s.Members[(week-1)%len(s.Members)]
}

// PaymentInstructions is what a member needs to complete a pending
// contribution through the external payment channel
type PaymentInstructions struct {
	BankName      string
	AccountNumber string
	AccountName   string
	Reference     string
	Amount        int64
	ExpiresAt     time.Time
}
