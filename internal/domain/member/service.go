package member

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sgss/medfund/internal/domain/audit"
	"github.com/sgss/medfund/internal/domain/settings"
	"github.com/sgss/medfund/internal/platform/apperror"
	"github.com/sgss/medfund/internal/platform/auth"
	"github.com/sgss/medfund/internal/platform/db"
)

// SettingsSource provides the active byelaws snapshot. Approvals read the
// waiting period from it so that byelaws amendments need no redeploy.
type SettingsSource interface {
	GetActive(ctx context.Context) (*settings.Snapshot, error)
}

type Service struct {
	members    Repository
	types      TypeRepository
	dependants DependantRepository
	settings   SettingsSource
	audit      *audit.Service
	tx         db.TxRunner
	now        func() time.Time
}

func NewService(members Repository, types TypeRepository, dependants DependantRepository,
	settingsSrc SettingsSource, auditSvc *audit.Service, tx db.TxRunner) *Service {
	return &Service{
		members:    members,
		types:      types,
		dependants: dependants,
		settings:   settingsSrc,
		audit:      auditSvc,
		tx:         tx,
		now:        time.Now,
	}
}

// Register creates a pending member awaiting committee approval.
func (s *Service) Register(ctx context.Context, actor auth.Actor, m *Member) error {
	if m.FullName == "" {
		return apperror.New(apperror.Validation, "MissingName", "full_name is required")
	}
	if m.MembershipTypeID == uuid.Nil {
		return apperror.New(apperror.Validation, "MissingMembershipType", "membership_type_id is required")
	}
	if _, err := s.types.GetByID(ctx, m.MembershipTypeID); err != nil {
		return apperror.New(apperror.Validation, "UnknownMembershipType", "membership type does not exist")
	}
	m.Status = StatusPending

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.members.Create(ctx, m); err != nil {
			return fmt.Errorf("creating member: %w", err)
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action: "member:registered",
			Note:   m.FullName,
		})
	})
}

// Approve activates a pending membership. The validity window follows the
// tier's term and the benefits-start date follows the byelaws waiting
// period, both anchored on the approval date.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, memberID uuid.UUID) (*Member, error) {
	return s.decide(ctx, actor, memberID, "member:approved", func(m *Member, mt *MembershipType, snap *settings.Snapshot) error {
		if m.Status != StatusPending {
			return apperror.New(apperror.State, "InvalidTransition",
				fmt.Sprintf("cannot approve member in status %q", m.Status))
		}
		today := s.now()
		m.Status = StatusActive
		m.ValidFrom = &today
		if mt.TermYears > 0 {
			validTo := today.AddDate(mt.TermYears, 0, 0)
			m.ValidTo = &validTo
		}
		benefitsFrom := today.AddDate(0, 0, snap.WaitingPeriodDays)
		m.BenefitsFrom = &benefitsFrom
		return nil
	})
}

// Reject turns down a pending membership application.
func (s *Service) Reject(ctx context.Context, actor auth.Actor, memberID uuid.UUID) (*Member, error) {
	return s.decide(ctx, actor, memberID, "member:rejected", func(m *Member, _ *MembershipType, _ *settings.Snapshot) error {
		if m.Status != StatusPending {
			return apperror.New(apperror.State, "InvalidTransition",
				fmt.Sprintf("cannot reject member in status %q", m.Status))
		}
		m.Status = StatusRejected
		return nil
	})
}

// Revoke terminates an active membership.
func (s *Service) Revoke(ctx context.Context, actor auth.Actor, memberID uuid.UUID) (*Member, error) {
	return s.decide(ctx, actor, memberID, "member:revoked", func(m *Member, _ *MembershipType, _ *settings.Snapshot) error {
		if m.Status != StatusActive {
			return apperror.New(apperror.State, "InvalidTransition",
				fmt.Sprintf("cannot revoke member in status %q", m.Status))
		}
		m.Status = StatusRevoked
		return nil
	})
}

func (s *Service) decide(ctx context.Context, actor auth.Actor, memberID uuid.UUID,
	action string, mutate func(*Member, *MembershipType, *settings.Snapshot) error) (*Member, error) {

	if !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) {
		return nil, apperror.New(apperror.Authorization, "InsufficientRole",
			"membership decisions require committee or admin")
	}

	var m *Member
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.members.GetByID(ctx, memberID)
		if err != nil {
			return apperror.New(apperror.NotFound, "MemberNotFound", "member not found")
		}
		mt, err := s.types.GetByID(ctx, m.MembershipTypeID)
		if err != nil {
			return fmt.Errorf("loading membership type: %w", err)
		}
		snap, err := s.settings.GetActive(ctx)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		if err := mutate(m, mt, snap); err != nil {
			return err
		}
		if err := s.members.Update(ctx, m); err != nil {
			return err
		}
		v := snap.Version
		return s.audit.Append(ctx, actor, audit.Record{
			Action:          action,
			Note:            m.FullName,
			SettingsVersion: &v,
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Member, error) {
	m, err := s.members.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "MemberNotFound", "member not found")
	}
	return m, nil
}

func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*Member, error) {
	m, err := s.members.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "MemberNotFound", "member not found")
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Member, int, error) {
	return s.members.List(ctx, status, limit, offset)
}

// -- Membership types --

func (s *Service) CreateType(ctx context.Context, actor auth.Actor, t *MembershipType) error {
	if !actor.HasRole(auth.RoleTrustee, auth.RoleAdmin) {
		return apperror.New(apperror.Authorization, "InsufficientRole",
			"membership types are managed by trustees")
	}
	if t.Key == "" || t.Name == "" {
		return apperror.New(apperror.Validation, "InvalidMembershipType", "key and name are required")
	}
	if t.FundSharePercent != nil && (*t.FundSharePercent < 0 || *t.FundSharePercent > 100) {
		return apperror.New(apperror.Validation, "InvalidMembershipType",
			"fund_share_percent must be between 0 and 100")
	}
	return s.types.Create(ctx, t)
}

func (s *Service) ListTypes(ctx context.Context) ([]*MembershipType, error) {
	return s.types.List(ctx)
}

// -- Dependants --

func (s *Service) AddDependant(ctx context.Context, actor auth.Actor, d *Dependant) error {
	if d.FullName == "" || d.Relationship == "" {
		return apperror.New(apperror.Validation, "InvalidDependant",
			"full_name and relationship are required")
	}
	if _, err := s.members.GetByID(ctx, d.MemberID); err != nil {
		return apperror.New(apperror.NotFound, "MemberNotFound", "member not found")
	}
	// Members may only declare their own dependants.
	if !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) && !actor.RelatedTo(d.MemberID) {
		return apperror.New(apperror.Authorization, "InsufficientRole",
			"members may only declare their own dependants")
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.dependants.Add(ctx, d); err != nil {
			return fmt.Errorf("adding dependant: %w", err)
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action: "dependant:added",
			Note:   d.FullName,
		})
	})
}

func (s *Service) ListDependants(ctx context.Context, memberID uuid.UUID) ([]*Dependant, error) {
	return s.dependants.ListByMember(ctx, memberID)
}

func (s *Service) RemoveDependant(ctx context.Context, actor auth.Actor, memberID, dependantID uuid.UUID) error {
	if !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) && !actor.RelatedTo(memberID) {
		return apperror.New(apperror.Authorization, "InsufficientRole",
			"members may only remove their own dependants")
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.dependants.Remove(ctx, dependantID); err != nil {
			return fmt.Errorf("removing dependant: %w", err)
		}
		return s.audit.Append(ctx, actor, audit.Record{Action: "dependant:removed"})
	})
}
