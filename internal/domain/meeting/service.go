package meeting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sgss/medfund/internal/domain/audit"
	"github.com/sgss/medfund/internal/domain/claim"
	"github.com/sgss/medfund/internal/platform/apperror"
	"github.com/sgss/medfund/internal/platform/auth"
	"github.com/sgss/medfund/internal/platform/db"
)

// ClaimEngine is the slice of the claim domain the meeting workflow needs:
// reading claims when scheduling and driving their state machine at
// ratification. Each propagated transition carries the full guard set,
// conflict-of-interest included.
type ClaimEngine interface {
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*claim.Claim, error)
	Transition(ctx context.Context, actor auth.Actor, claimID uuid.UUID,
		target string, opts claim.TransitionOpts) (*claim.Claim, error)
}

type Service struct {
	repo   Repository
	claims ClaimEngine
	audit  *audit.Service
	tx     db.TxRunner
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, claims ClaimEngine, auditSvc *audit.Service,
	tx db.TxRunner, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		claims: claims,
		audit:  auditSvc,
		tx:     tx,
		log:    log,
		now:    time.Now,
	}
}

func staffOnly(actor auth.Actor) error {
	if !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) {
		return ErrInsufficientRole
	}
	return nil
}

// CreateMeeting opens a new draft sitting.
func (s *Service) CreateMeeting(ctx context.Context, actor auth.Actor,
	date time.Time, meetingType, notes string) (*Meeting, error) {

	if !validMeetingType(meetingType) {
		return nil, apperror.New(apperror.Validation, "InvalidMeetingType",
			fmt.Sprintf("unknown meeting type %q", meetingType))
	}
	if err := staffOnly(actor); err != nil {
		s.recordDenial(ctx, actor, nil, "meeting:created", err)
		return nil, err
	}

	m := &Meeting{
		Date:   date,
		Type:   meetingType,
		Status: StatusDraft,
		Notes:  notes,
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, m); err != nil {
			return fmt.Errorf("creating meeting: %w", err)
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action:    "meeting:created",
			Note:      meetingType,
			MeetingID: &m.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// LinkClaim appends a claim to a draft meeting's adjudication queue. A claim
// on the queue of any other unlocked meeting cannot be scheduled again.
func (s *Service) LinkClaim(ctx context.Context, actor auth.Actor,
	meetingID, claimID uuid.UUID) (*ClaimLink, error) {

	var link *ClaimLink
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		m, err := s.getMeeting(ctx, meetingID)
		if err != nil {
			return err
		}
		if err := staffOnly(actor); err != nil {
			return err
		}
		if m.Status != StatusDraft {
			return errNotDraft(m.Status, "linking a claim")
		}

		c, err := s.claims.Get(ctx, actor, claimID)
		if err != nil {
			return err
		}
		if c.Status != claim.StatusSubmitted && c.Status != claim.StatusReviewed {
			return apperror.New(apperror.State, "InvalidTransition",
				fmt.Sprintf("only submitted or reviewed claims can be scheduled, claim is %q", c.Status))
		}

		existing, err := s.repo.FindOpenLink(ctx, claimID)
		if err != nil {
			return fmt.Errorf("checking existing links: %w", err)
		}
		if existing != nil {
			return ErrAlreadyScheduled
		}

		link = &ClaimLink{
			MeetingID: meetingID,
			ClaimID:   claimID,
			Decision:  DecisionDeferred,
		}
		if err := s.repo.AddLink(ctx, link); err != nil {
			return err
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action:    "meeting:claim_linked",
			ClaimID:   &claimID,
			MeetingID: &meetingID,
		})
	})
	if err != nil {
		s.recordDenial(ctx, actor, &meetingID, "meeting:claim_linked", err)
		return nil, err
	}
	return link, nil
}

// UnlinkClaim removes a claim from a draft meeting's queue.
func (s *Service) UnlinkClaim(ctx context.Context, actor auth.Actor,
	meetingID, linkID uuid.UUID) error {

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := staffOnly(actor); err != nil {
			return err
		}
		link, err := s.getLink(ctx, linkID)
		if err != nil {
			return err
		}
		if link.MeetingID != meetingID {
			return apperror.New(apperror.NotFound, "LinkNotFound",
				"link does not belong to this meeting")
		}
		m, err := s.getMeeting(ctx, meetingID)
		if err != nil {
			return err
		}
		if m.Status != StatusDraft {
			return errNotDraft(m.Status, "unlinking a claim")
		}
		if err := s.repo.RemoveLink(ctx, linkID); err != nil {
			return err
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action:    "meeting:claim_unlinked",
			ClaimID:   &link.ClaimID,
			MeetingID: &meetingID,
		})
	})
	if err != nil {
		s.recordDenial(ctx, actor, &meetingID, "meeting:claim_unlinked", err)
	}
	return err
}

// SetDecision records the committee's provisional decision on a queued
// claim. Decisions stay mutable until the meeting leaves draft; only
// ratification makes them real.
func (s *Service) SetDecision(ctx context.Context, actor auth.Actor,
	linkID uuid.UUID, decision, notes string) (*ClaimLink, error) {

	if !validDecision(decision) {
		return nil, apperror.New(apperror.Validation, "InvalidDecision",
			fmt.Sprintf("unknown link decision %q", decision))
	}

	var link *ClaimLink
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := staffOnly(actor); err != nil {
			return err
		}
		var err error
		link, err = s.getLink(ctx, linkID)
		if err != nil {
			return err
		}
		m, err := s.getMeeting(ctx, link.MeetingID)
		if err != nil {
			return err
		}
		if m.Status != StatusDraft {
			return errNotDraft(m.Status, "setting a decision")
		}

		link.Decision = decision
		link.Notes = notes
		if err := s.repo.UpdateLink(ctx, link); err != nil {
			return err
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action:    "meeting:decision_set",
			Note:      decision,
			ClaimID:   &link.ClaimID,
			MeetingID: &m.ID,
		})
	})
	if err != nil {
		s.recordDenial(ctx, actor, nil, "meeting:decision_set", err)
		return nil, err
	}
	return link, nil
}

// RecordAttendance upserts one attendee row on a draft meeting.
func (s *Service) RecordAttendance(ctx context.Context, actor auth.Actor,
	meetingID, attendeeID uuid.UUID, name string, present bool) (*Attendance, error) {

	a := &Attendance{
		MeetingID: meetingID,
		ActorID:   attendeeID,
		Name:      name,
		Present:   present,
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := staffOnly(actor); err != nil {
			return err
		}
		m, err := s.getMeeting(ctx, meetingID)
		if err != nil {
			return err
		}
		if m.Status != StatusDraft {
			return errNotDraft(m.Status, "recording attendance")
		}
		if err := s.repo.AddAttendance(ctx, a); err != nil {
			return err
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action:    "meeting:attendance_recorded",
			Note:      name,
			MeetingID: &meetingID,
		})
	})
	if err != nil {
		s.recordDenial(ctx, actor, &meetingID, "meeting:attendance_recorded", err)
		return nil, err
	}
	return a, nil
}

// ConfirmQuorum marks the draft meeting as quorate; Ratify refuses to run
// without it.
func (s *Service) ConfirmQuorum(ctx context.Context, actor auth.Actor,
	meetingID uuid.UUID) (*Meeting, error) {

	var m *Meeting
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := staffOnly(actor); err != nil {
			return err
		}
		var err error
		m, err = s.getMeeting(ctx, meetingID)
		if err != nil {
			return err
		}
		if m.Status != StatusDraft {
			return errNotDraft(m.Status, "confirming quorum")
		}
		m.QuorumConfirmed = true
		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action:    "meeting:quorum_confirmed",
			MeetingID: &meetingID,
		})
	})
	if err != nil {
		s.recordDenial(ctx, actor, &meetingID, "meeting:quorum_confirmed", err)
		return nil, err
	}
	return m, nil
}

// Ratify makes the queue's decisions binding. Every non-deferred link drives
// the claim state machine with the ratifying actor, so conflict-of-interest
// and role guards apply per claim; any refusal rolls the whole ratification
// back. Deferred links leave their claims unchanged for a future meeting.
func (s *Service) Ratify(ctx context.Context, actor auth.Actor,
	meetingID uuid.UUID) (*Meeting, error) {

	var m *Meeting
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := staffOnly(actor); err != nil {
			return err
		}
		var err error
		m, err = s.getMeeting(ctx, meetingID)
		if err != nil {
			return err
		}
		if m.Status == StatusRatified || m.Status == StatusLocked {
			return ErrAlreadyRatified
		}
		if !m.QuorumConfirmed {
			return ErrQuorumNotConfirmed
		}

		links, err := s.repo.ListLinks(ctx, meetingID)
		if err != nil {
			return fmt.Errorf("loading queue: %w", err)
		}
		for _, link := range links {
			if link.Decision == DecisionDeferred {
				continue
			}
			note := "ratified in meeting " + meetingID.String()
			if link.Notes != "" {
				note = link.Notes
			}
			if _, err := s.claims.Transition(ctx, actor, link.ClaimID,
				link.Decision, claim.TransitionOpts{Note: note}); err != nil {
				return fmt.Errorf("applying decision %q to claim %s: %w",
					link.Decision, link.ClaimID, err)
			}
		}

		m.Status = StatusRatified
		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}

		s.log.Info().
			Str("meeting_id", meetingID.String()).
			Int("queued", len(links)).
			Msg("meeting ratified")

		return s.audit.Append(ctx, actor, audit.Record{
			Action:    "meeting:ratified",
			MeetingID: &meetingID,
		})
	})
	if err != nil {
		s.recordDenial(ctx, actor, &meetingID, "meeting:ratified", err)
		return nil, err
	}
	return m, nil
}

// Lock seals a ratified meeting for good.
func (s *Service) Lock(ctx context.Context, actor auth.Actor,
	meetingID uuid.UUID) (*Meeting, error) {

	var m *Meeting
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := staffOnly(actor); err != nil {
			return err
		}
		var err error
		m, err = s.getMeeting(ctx, meetingID)
		if err != nil {
			return err
		}
		if m.Status != StatusRatified {
			return errInvalidTransition(m.Status, StatusLocked)
		}
		locked, err := s.repo.Lock(ctx, meetingID)
		if err != nil {
			return err
		}
		if !locked {
			return ErrVersionConflict
		}
		m.Status = StatusLocked
		return s.audit.Append(ctx, actor, audit.Record{
			Action:    "meeting:locked",
			MeetingID: &meetingID,
		})
	})
	if err != nil {
		s.recordDenial(ctx, actor, &meetingID, "meeting:locked", err)
		return nil, err
	}
	return m, nil
}

// -- Queries --

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	m, err := s.getMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Links, err = s.repo.ListLinks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading queue: %w", err)
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Meeting, int, error) {
	return s.repo.List(ctx, status, limit, offset)
}

func (s *Service) Attendance(ctx context.Context, meetingID uuid.UUID) ([]*Attendance, error) {
	return s.repo.ListAttendance(ctx, meetingID)
}

func (s *Service) getMeeting(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "MeetingNotFound", "meeting not found")
	}
	return m, nil
}

func (s *Service) getLink(ctx context.Context, id uuid.UUID) (*ClaimLink, error) {
	l, err := s.repo.GetLink(ctx, id)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "LinkNotFound", "meeting claim link not found")
	}
	return l, nil
}

// recordDenial logs blocked authorization attempts outside the rolled-back
// transaction, mirroring the claim engine's denial trail.
func (s *Service) recordDenial(ctx context.Context, actor auth.Actor,
	meetingID *uuid.UUID, action string, err error) {
	code := apperror.CodeOf(err)
	if code != "ConflictOfInterest" && code != "InsufficientRole" {
		return
	}
	if auditErr := s.audit.AppendDenied(ctx, actor, audit.Record{
		Action:    action,
		Note:      code,
		MeetingID: meetingID,
	}); auditErr != nil {
		s.log.Error().Err(auditErr).Msg("failed to record denied attempt")
	}
}
