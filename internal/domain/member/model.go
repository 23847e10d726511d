package member

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusRejected = "rejected"
	StatusRevoked  = "revoked"
)

// MembershipType carries per-tier byelaws overrides. AnnualLimit and
// FundSharePercent are nil when the tier follows the fund-wide settings.
type MembershipType struct {
	ID               uuid.UUID `json:"id"`
	Key              string    `json:"key"`
	Name             string    `json:"name"`
	EntryFee         int64     `json:"entry_fee"`
	TermYears        int       `json:"term_years"`
	AnnualLimit      *int64    `json:"annual_limit,omitempty"`
	FundSharePercent *int      `json:"fund_share_percent,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type Member struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	FullName         string     `json:"full_name"`
	MembershipTypeID uuid.UUID  `json:"membership_type_id"`
	Status           string     `json:"status"`
	ValidFrom        *time.Time `json:"valid_from,omitempty"`
	ValidTo          *time.Time `json:"valid_to,omitempty"`
	BenefitsFrom     *time.Time `json:"benefits_from,omitempty"`
	NHIFNumber       string     `json:"nhif_number,omitempty"`
	VersionID        int        `json:"version_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ActiveForClaims reports whether the member may have claims adjudicated at
// the given time: active status, a started validity window, and no expiry.
func (m *Member) ActiveForClaims(now time.Time) bool {
	if m.Status != StatusActive {
		return false
	}
	if m.ValidFrom == nil || m.ValidFrom.After(now) {
		return false
	}
	if m.ValidTo != nil && m.ValidTo.Before(now) {
		return false
	}
	return true
}

// Dependant is a declared relation. Dependants define the conflict-of-
// interest boundary for reviewers as well as who may be claimed for.
type Dependant struct {
	ID           uuid.UUID  `json:"id"`
	MemberID     uuid.UUID  `json:"member_id"`
	FullName     string     `json:"full_name"`
	Relationship string     `json:"relationship"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
