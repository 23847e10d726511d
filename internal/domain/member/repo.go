package member

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Member, error)
	// Update applies a compare-and-swap on VersionID; it returns
	// ErrVersionConflict when the row moved underneath the caller.
	Update(ctx context.Context, m *Member) error
	List(ctx context.Context, status string, limit, offset int) ([]*Member, int, error)
}

type TypeRepository interface {
	Create(ctx context.Context, t *MembershipType) error
	GetByID(ctx context.Context, id uuid.UUID) (*MembershipType, error)
	List(ctx context.Context) ([]*MembershipType, error)
}

type DependantRepository interface {
	Add(ctx context.Context, d *Dependant) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]*Dependant, error)
	Remove(ctx context.Context, id uuid.UUID) error
}
