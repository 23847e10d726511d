package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sgss/medfund/internal/platform/auth"
)

// Record captures everything about one auditable action except the
// server-assigned id, sequence and timestamp.
type Record struct {
	Action          string
	Note            string
	ClaimID         *uuid.UUID
	MeetingID       *uuid.UUID
	SettingsVersion *int
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Append writes one audit entry for the given actor. Called inside the
// mutating transaction so that entry and mutation commit or roll back
// together.
func (s *Service) Append(ctx context.Context, actor auth.Actor, rec Record) error {
	if rec.Action == "" {
		return fmt.Errorf("audit action is required")
	}
	e := &Entry{
		ActorLabel:      actor.Name,
		Role:            actor.PrimaryRole(),
		Action:          rec.Action,
		Note:            rec.Note,
		ClaimID:         rec.ClaimID,
		MeetingID:       rec.MeetingID,
		SettingsVersion: rec.SettingsVersion,
	}
	if actor.ID != uuid.Nil {
		id := actor.ID
		e.ActorID = &id
	}
	if e.ActorLabel == "" {
		e.ActorLabel = SystemActorLabel
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// AppendDenied records a blocked authorization attempt. Callers invoke it
// with the request context, not the failed transaction's context, so the
// denial is durable even though the guarded mutation rolled back.
func (s *Service) AppendDenied(ctx context.Context, actor auth.Actor, rec Record) error {
	rec.Action += DeniedSuffix
	return s.Append(ctx, actor, rec)
}

func (s *Service) TrailForClaim(ctx context.Context, claimID uuid.UUID, desc bool, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByClaim(ctx, claimID, desc, limit, offset)
}

func (s *Service) TrailForMeeting(ctx context.Context, meetingID uuid.UUID, desc bool, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByMeeting(ctx, meetingID, desc, limit, offset)
}

func (s *Service) Trail(ctx context.Context, desc bool, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, desc, limit, offset)
}
