package settings

import "context"

type Repository interface {
	GetActive(ctx context.Context) (*Snapshot, error)
	GetVersion(ctx context.Context, version int) (*Snapshot, error)
	List(ctx context.Context, limit, offset int) ([]*Snapshot, int, error)
	// Insert assigns the next version number and stores the snapshot.
	Insert(ctx context.Context, s *Snapshot) error
	DeactivateAll(ctx context.Context) error
}
