package claim

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeOutpatient = "outpatient"
	TypeInpatient  = "inpatient"
	TypeChronic    = "chronic"
)

const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusReviewed  = "reviewed"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusPaid      = "paid"
)

// Item categories accepted on a claim.
var ValidCategories = map[string]bool{
	"consultation":  true,
	"medicine":      true,
	"investigation": true,
	"procedure":     true,
	"inpatient":     true,
	"doctor":        true,
	"other":         true,
}

// ChronicMemberPercent is the byelaws-fixed member share on chronic-medicine
// claims. It is deliberately not part of the settings store.
const ChronicMemberPercent = 60

// OverrideCap is the byelaws ceiling on a committee's discretionary
// override amount.
const OverrideCap int64 = 150000

// Item is one claim line. Position preserves insertion order, which is also
// the audit presentation order.
type Item struct {
	ID          uuid.UUID `json:"id"`
	ClaimID     uuid.UUID `json:"claim_id"`
	Position    int       `json:"position"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Amount      int64     `json:"amount"`
	Quantity    int       `json:"quantity"`
}

func (i *Item) LineTotal() int64 {
	return i.Amount * int64(i.Quantity)
}

// Flags are the member-declared claim attributes that change the split.
type Flags struct {
	CriticalIllness bool `json:"critical_illness"`
	AtClinic        bool `json:"at_clinic"`
}

type Claim struct {
	ID               uuid.UUID  `json:"id"`
	MemberID         uuid.UUID  `json:"member_id"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	Items            []*Item    `json:"items,omitempty"`
	DateOfFirstVisit *time.Time `json:"date_of_first_visit,omitempty"`
	DateOfDischarge  *time.Time `json:"date_of_discharge,omitempty"`
	CriticalIllness  bool       `json:"critical_illness"`
	AtClinic         bool       `json:"at_clinic"`
	TotalClaimed     int64      `json:"total_claimed"`
	TotalPayable     int64      `json:"total_payable"`
	MemberPayable    int64      `json:"member_payable"`
	OverrideAmount   *int64     `json:"override_amount,omitempty"`
	SettingsVersion  int        `json:"settings_version"`
	Notes            string     `json:"notes,omitempty"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`
	VersionID        int        `json:"version_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (c *Claim) flags() Flags {
	return Flags{CriticalIllness: c.CriticalIllness, AtClinic: c.AtClinic}
}

// Totals is the calculator result. Ceiling is the remaining fund ceiling
// the computation ran against, after annual-limit and critical-addon
// adjustment.
type Totals struct {
	Subtotal    int64 `json:"subtotal"`
	Payable     int64 `json:"payable"`
	MemberShare int64 `json:"member_share"`
	Ceiling     int64 `json:"ceiling"`
}

const (
	AppealStatusPending  = "pending"
	AppealStatusResolved = "resolved"
)

const (
	AppealUpheld    = "upheld"
	AppealDismissed = "dismissed"
	AppealPartial   = "partial"
)

// Appeal is a member's challenge of a claim decision. Resolution is
// terminal for the underlying decision: a resolved appeal blocks any
// further appeal of the same decision.
type Appeal struct {
	ID             uuid.UUID  `json:"id"`
	ClaimID        uuid.UUID  `json:"claim_id"`
	MemberID       uuid.UUID  `json:"member_id"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	Decision       string     `json:"decision,omitempty"`
	TrusteeNotes   string     `json:"trustee_notes,omitempty"`
	OverrideAmount *int64     `json:"override_amount,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// PaymentRecord is the treasury collaborator's reconciliation evidence
// required for the approved to paid transition.
type PaymentRecord struct {
	Amount     int64
	Reference  string
	Reconciled bool
}
