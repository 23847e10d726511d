package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sgss/medfund/internal/domain/audit"
	"github.com/sgss/medfund/internal/platform/apperror"
	"github.com/sgss/medfund/internal/platform/auth"
)

// OpenAppeal lets the claim's member challenge an approved or rejected
// decision within the byelaws appeal window.
func (s *Service) OpenAppeal(ctx context.Context, actor auth.Actor, claimID uuid.UUID, reason string) (*Appeal, error) {
	if reason == "" {
		return nil, apperror.New(apperror.Validation, "MissingReason", "an appeal needs a reason")
	}

	var a *Appeal
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.claims.GetByID(ctx, claimID)
		if err != nil {
			return apperror.New(apperror.NotFound, "ClaimNotFound", "claim not found")
		}
		if !actor.RelatedTo(c.MemberID) {
			return ErrInsufficientRole
		}
		if c.Status != StatusApproved && c.Status != StatusRejected {
			return apperror.New(apperror.State, "InvalidTransition",
				"only approved or rejected claims can be appealed")
		}
		if c.DecidedAt == nil {
			return apperror.New(apperror.State, "InvalidTransition",
				"claim has no recorded decision to appeal")
		}

		snap, err := s.settings.GetActive(ctx)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		now := s.now()
		window := time.Duration(snap.AppealWindowDays) * 24 * time.Hour
		if now.Sub(*c.DecidedAt) > window {
			return ErrAppealWindowExpired
		}

		existing, err := s.appeals.ListByClaim(ctx, claimID)
		if err != nil {
			return fmt.Errorf("loading appeals: %w", err)
		}
		for _, prev := range existing {
			if prev.Status == AppealStatusPending {
				return ErrAppealPending
			}
			// A resolved appeal is terminal for the decision it targeted.
			if prev.Status == AppealStatusResolved && !prev.CreatedAt.Before(*c.DecidedAt) {
				return ErrAppealAlreadyResolved
			}
		}

		a = &Appeal{
			ClaimID:  claimID,
			MemberID: c.MemberID,
			Reason:   reason,
			Status:   AppealStatusPending,
		}
		if err := s.appeals.Create(ctx, a); err != nil {
			return fmt.Errorf("creating appeal: %w", err)
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action:  "appeal:opened",
			Note:    reason,
			ClaimID: &claimID,
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ResolveAppeal records the trustee's terminal decision. An upheld appeal
// re-adjudicates the claim to approved through the state machine; history
// stays additive; the original decision's audit entries are untouched. A
// partial decision approves with a trustee-set override amount.
func (s *Service) ResolveAppeal(ctx context.Context, actor auth.Actor, appealID uuid.UUID,
	decision, notes string, overrideAmount *int64) (*Appeal, error) {

	if decision != AppealUpheld && decision != AppealDismissed && decision != AppealPartial {
		return nil, apperror.New(apperror.Validation, "InvalidDecision",
			fmt.Sprintf("unknown appeal decision %q", decision))
	}
	if decision == AppealPartial {
		if overrideAmount == nil {
			return nil, apperror.New(apperror.Validation, "MissingOverrideAmount",
				"a partial resolution needs an override amount")
		}
		if *overrideAmount < 0 || *overrideAmount > OverrideCap {
			return nil, apperror.New(apperror.Validation, "OverrideExceedsCap",
				fmt.Sprintf("override amount must be between 0 and %d", OverrideCap))
		}
	}

	var a *Appeal
	var claimID uuid.UUID
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.appeals.GetByID(ctx, appealID)
		if err != nil {
			return apperror.New(apperror.NotFound, "AppealNotFound", "appeal not found")
		}
		claimID = a.ClaimID
		if !actor.HasRole(auth.RoleTrustee, auth.RoleAdmin) {
			return ErrInsufficientRole
		}
		if actor.RelatedTo(a.MemberID) {
			return ErrConflictOfInterest
		}
		if a.Status != AppealStatusPending {
			return ErrAppealAlreadyResolved
		}

		c, err := s.claims.GetByID(ctx, a.ClaimID)
		if err != nil {
			return fmt.Errorf("loading appealed claim: %w", err)
		}

		now := s.now()
		switch decision {
		case AppealUpheld:
			if err := s.approve(ctx, c, now); err != nil {
				return err
			}
			if err := s.claims.Update(ctx, c); err != nil {
				return err
			}
			v := c.SettingsVersion
			if err := s.audit.Append(ctx, actor, audit.Record{
				Action:          "claim:approved",
				Note:            "appeal upheld",
				ClaimID:         &c.ID,
				SettingsVersion: &v,
			}); err != nil {
				return err
			}
		case AppealPartial:
			c.Status = StatusApproved
			c.DecidedAt = &now
			if err := s.applyOverride(ctx, actor, c, *overrideAmount, "appeal partial resolution"); err != nil {
				return err
			}
			a.OverrideAmount = overrideAmount
		}

		a.Status = AppealStatusResolved
		a.Decision = decision
		a.TrusteeNotes = notes
		a.DecidedAt = &now
		if err := s.appeals.Update(ctx, a); err != nil {
			return fmt.Errorf("updating appeal: %w", err)
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action:  "appeal:resolved",
			Note:    decision,
			ClaimID: &a.ClaimID,
		})
	})
	if err != nil {
		s.recordDenial(ctx, actor, claimID, "appeal:resolved", err)
		return nil, err
	}
	return a, nil
}

func (s *Service) GetAppeal(ctx context.Context, id uuid.UUID) (*Appeal, error) {
	a, err := s.appeals.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "AppealNotFound", "appeal not found")
	}
	return a, nil
}

func (s *Service) ListAppealsByClaim(ctx context.Context, claimID uuid.UUID) ([]*Appeal, error) {
	return s.appeals.ListByClaim(ctx, claimID)
}

func (s *Service) ListPendingAppeals(ctx context.Context, limit, offset int) ([]*Appeal, int, error) {
	return s.appeals.ListPending(ctx, limit, offset)
}
