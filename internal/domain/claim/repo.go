package claim

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create stores the claim and its items.
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	// Update applies a compare-and-swap on VersionID and returns
	// ErrVersionConflict when the row moved underneath the caller. Items
	// are not touched.
	Update(ctx context.Context, c *Claim) error
	ReplaceItems(ctx context.Context, claimID uuid.UUID, items []*Item) error
	ListByMember(ctx context.Context, memberID uuid.UUID, status string, limit, offset int) ([]*Claim, int, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Claim, int, error)
	// SumPayableForMember totals approved and paid fund payables for the
	// member over [from, to). Run inside the approval transaction it is
	// the double-spend guard on the annual ceiling.
	SumPayableForMember(ctx context.Context, memberID uuid.UUID, from, to time.Time) (int64, error)
}

type AppealRepository interface {
	Create(ctx context.Context, a *Appeal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appeal, error)
	ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*Appeal, error)
	Update(ctx context.Context, a *Appeal) error
	ListPending(ctx context.Context, limit, offset int) ([]*Appeal, int, error)
}
