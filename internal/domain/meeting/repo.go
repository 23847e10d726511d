package meeting

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Meeting) error
	GetByID(ctx context.Context, id uuid.UUID) (*Meeting, error)
	// Update applies a compare-and-swap on VersionID and returns
	// ErrVersionConflict when the row moved underneath the caller.
	Update(ctx context.Context, m *Meeting) error
	List(ctx context.Context, status string, limit, offset int) ([]*Meeting, int, error)
	// Lock flips ratified → locked with a conditional update so an
	// in-flight link write and the lock can never both succeed.
	Lock(ctx context.Context, id uuid.UUID) (bool, error)

	// Link writes are conditional on the meeting still being in draft;
	// they return ErrMeetingLocked when the condition no longer holds.
	AddLink(ctx context.Context, l *ClaimLink) error
	GetLink(ctx context.Context, id uuid.UUID) (*ClaimLink, error)
	ListLinks(ctx context.Context, meetingID uuid.UUID) ([]*ClaimLink, error)
	UpdateLink(ctx context.Context, l *ClaimLink) error
	RemoveLink(ctx context.Context, id uuid.UUID) error
	// FindOpenLink returns the claim's link on any unlocked meeting, or
	// nil when the claim is free to be scheduled.
	FindOpenLink(ctx context.Context, claimID uuid.UUID) (*ClaimLink, error)

	AddAttendance(ctx context.Context, a *Attendance) error
	ListAttendance(ctx context.Context, meetingID uuid.UUID) ([]*Attendance, error)
}
