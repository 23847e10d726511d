package meeting

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrdinary  = "ordinary"
	TypeEmergency = "emergency"
)

// Meeting lifecycle. Strictly forward: draft → ratified → locked.
const (
	StatusDraft    = "draft"
	StatusRatified = "ratified"
	StatusLocked   = "locked"
)

// Link decisions. Deferred leaves the claim untouched at ratification.
const (
	DecisionDeferred = "deferred"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Meeting is one committee sitting. Once locked it is the fund's forensic
// record of the decisions taken and may never change again.
type Meeting struct {
	ID              uuid.UUID    `json:"id"`
	Date            time.Time    `json:"date"`
	Type            string       `json:"type"`
	Status          string       `json:"status"`
	QuorumConfirmed bool         `json:"quorum_confirmed"`
	Notes           string       `json:"notes,omitempty"`
	VersionID       int          `json:"version_id"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Links           []*ClaimLink `json:"links,omitempty"`
}

// ClaimLink puts a claim on a meeting's adjudication queue. Position keeps
// the queue order stable across reads.
type ClaimLink struct {
	ID        uuid.UUID `json:"id"`
	MeetingID uuid.UUID `json:"meeting_id"`
	ClaimID   uuid.UUID `json:"claim_id"`
	Position  int       `json:"position"`
	Decision  string    `json:"decision"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attendance is one attendee row for the quorum record.
type Attendance struct {
	ID        uuid.UUID `json:"id"`
	MeetingID uuid.UUID `json:"meeting_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Name      string    `json:"name"`
	Present   bool      `json:"present"`
	CreatedAt time.Time `json:"created_at"`
}

func validMeetingType(t string) bool {
	return t == TypeOrdinary || t == TypeEmergency
}

func validDecision(d string) bool {
	return d == DecisionDeferred || d == DecisionApproved || d == DecisionRejected
}
