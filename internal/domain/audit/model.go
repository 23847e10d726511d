package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one append-only audit record. Entries are never updated or
// deleted; Seq breaks ordering ties when timestamps collide.
type Entry struct {
	ID              uuid.UUID  `json:"id"`
	Seq             int64      `json:"seq"`
	ActorID         *uuid.UUID `json:"actor_id,omitempty"`
	ActorLabel      string     `json:"actor_label"`
	Role            string     `json:"role"`
	Action          string     `json:"action"`
	Note            string     `json:"note,omitempty"`
	ClaimID         *uuid.UUID `json:"claim_id,omitempty"`
	MeetingID       *uuid.UUID `json:"meeting_id,omitempty"`
	SettingsVersion *int       `json:"settings_version,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// SystemActorLabel is recorded when no authenticated actor is attached to
// the action (migrations, seeds, internal propagation).
const SystemActorLabel = "system"

// DeniedSuffix marks an authorization attempt that was blocked. Denied
// entries are written outside the failed transaction so that the denial
// survives the rollback.
const DeniedSuffix = ":denied"
