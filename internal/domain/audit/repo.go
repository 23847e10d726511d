package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository is append-only: entries are inserted, never updated or
// deleted. Reads return entries ordered by (created_at, seq).
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	ListByClaim(ctx context.Context, claimID uuid.UUID, desc bool, limit, offset int) ([]*Entry, int, error)
	ListByMeeting(ctx context.Context, meetingID uuid.UUID, desc bool, limit, offset int) ([]*Entry, int, error)
	List(ctx context.Context, desc bool, limit, offset int) ([]*Entry, int, error)
}
