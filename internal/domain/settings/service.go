package settings

import (
	"context"
	"fmt"

	"github.com/sgss/medfund/internal/domain/audit"
	"github.com/sgss/medfund/internal/platform/apperror"
	"github.com/sgss/medfund/internal/platform/auth"
	"github.com/sgss/medfund/internal/platform/db"
)

type Service struct {
	repo  Repository
	audit *audit.Service
	tx    db.TxRunner
}

func NewService(repo Repository, auditSvc *audit.Service, tx db.TxRunner) *Service {
	return &Service{repo: repo, audit: auditSvc, tx: tx}
}

// GetActive returns the currently active snapshot. The value is immutable;
// callers record its Version alongside any computation they derive from it.
func (s *Service) GetActive(ctx context.Context) (*Snapshot, error) {
	snap, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active settings: %w", err)
	}
	return snap, nil
}

func (s *Service) GetVersion(ctx context.Context, version int) (*Snapshot, error) {
	snap, err := s.repo.GetVersion(ctx, version)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "SettingsVersionNotFound",
			fmt.Sprintf("settings version %d not found", version))
	}
	return snap, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Snapshot, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Publish stores the snapshot as the next version and flips it active,
// atomically deactivating the previous version.
func (s *Service) Publish(ctx context.Context, actor auth.Actor, snap *Snapshot) (*Snapshot, error) {
	if !actor.HasRole(auth.RoleTrustee, auth.RoleAdmin) {
		return nil, apperror.New(apperror.Authorization, "InsufficientRole",
			"publishing settings requires trustee or admin")
	}
	if err := snap.Validate(); err != nil {
		return nil, apperror.New(apperror.Validation, "InvalidSettings", err.Error())
	}

	snap.Active = true
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.DeactivateAll(ctx); err != nil {
			return fmt.Errorf("deactivating previous settings: %w", err)
		}
		if err := s.repo.Insert(ctx, snap); err != nil {
			return fmt.Errorf("storing settings snapshot: %w", err)
		}
		v := snap.Version
		return s.audit.Append(ctx, actor, audit.Record{
			Action:          "settings:published",
			SettingsVersion: &v,
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Seed publishes the byelaws defaults when no snapshot exists yet.
func (s *Service) Seed(ctx context.Context) (*Snapshot, error) {
	if snap, err := s.repo.GetActive(ctx); err == nil {
		return snap, nil
	}
	return s.Publish(ctx, auth.System(), Defaults())
}
