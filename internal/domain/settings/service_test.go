package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sgss/medfund/internal/domain/audit"
	"github.com/sgss/medfund/internal/platform/apperror"
	"github.com/sgss/medfund/internal/platform/auth"
	"github.com/sgss/medfund/internal/platform/db"
)

type mockRepo struct {
	snapshots []*Snapshot
}

func (m *mockRepo) GetActive(ctx context.Context) (*Snapshot, error) {
	for _, s := range m.snapshots {
		if s.Active {
			return s, nil
		}
	}
	return nil, errors.New("no active snapshot")
}

func (m *mockRepo) GetVersion(ctx context.Context, version int) (*Snapshot, error) {
	for _, s := range m.snapshots {
		if s.Version == version {
			return s, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Snapshot, int, error) {
	return m.snapshots, len(m.snapshots), nil
}

func (m *mockRepo) Insert(ctx context.Context, s *Snapshot) error {
	s.ID = uuid.New()
	s.Version = len(m.snapshots) + 1
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *mockRepo) DeactivateAll(ctx context.Context) error {
	for _, s := range m.snapshots {
		s.Active = false
	}
	return nil
}

type mockAuditRepo struct{ entries []*audit.Entry }

func (m *mockAuditRepo) Insert(ctx context.Context, e *audit.Entry) error {
	e.Seq = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}
func (m *mockAuditRepo) ListByClaim(ctx context.Context, claimID uuid.UUID, desc bool, limit, offset int) ([]*audit.Entry, int, error) {
	return nil, 0, nil
}
func (m *mockAuditRepo) ListByMeeting(ctx context.Context, meetingID uuid.UUID, desc bool, limit, offset int) ([]*audit.Entry, int, error) {
	return nil, 0, nil
}
func (m *mockAuditRepo) List(ctx context.Context, desc bool, limit, offset int) ([]*audit.Entry, int, error) {
	return m.entries, len(m.entries), nil
}

func newTestService() (*Service, *mockRepo, *mockAuditRepo) {
	repo := &mockRepo{}
	auditRepo := &mockAuditRepo{}
	svc := NewService(repo, audit.NewService(auditRepo), db.PassthroughTxRunner{})
	return svc, repo, auditRepo
}

func trustee() auth.Actor {
	return auth.Actor{ID: uuid.New(), Name: "trustee", Roles: []string{auth.RoleTrustee}}
}

func TestPublishActivatesNewVersion(t *testing.T) {
	svc, repo, auditRepo := newTestService()

	first, err := svc.Publish(context.Background(), trustee(), Defaults())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if first.Version != 1 || !first.Active {
		t.Errorf("unexpected first snapshot %+v", first)
	}

	next := Defaults()
	next.AnnualLimit = 300000
	second, err := svc.Publish(context.Background(), trustee(), next)
	if err != nil {
		t.Fatalf("Publish second: %v", err)
	}
	if second.Version != 2 {
		t.Errorf("expected version 2, got %d", second.Version)
	}
	if repo.snapshots[0].Active {
		t.Error("previous version should be deactivated")
	}

	active, err := svc.GetActive(context.Background())
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.AnnualLimit != 300000 {
		t.Errorf("active snapshot is not the new version: %+v", active)
	}

	if len(auditRepo.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(auditRepo.entries))
	}
	if auditRepo.entries[0].Action != "settings:published" {
		t.Errorf("unexpected audit action %q", auditRepo.entries[0].Action)
	}
}

func TestPublishRequiresTrustee(t *testing.T) {
	svc, _, _ := newTestService()
	member := auth.Actor{ID: uuid.New(), Roles: []string{auth.RoleMember}}

	_, err := svc.Publish(context.Background(), member, Defaults())
	if kind, _ := apperror.KindOf(err); kind != apperror.Authorization {
		t.Errorf("expected authorization error, got %v", err)
	}
}

func TestPublishRejectsBadScales(t *testing.T) {
	svc, _, _ := newTestService()

	bad := Defaults()
	bad.Scales[0].FundShare = 70 // 70 + 20 != 100
	_, err := svc.Publish(context.Background(), trustee(), bad)
	if kind, _ := apperror.KindOf(err); kind != apperror.Validation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService()

	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("Seed twice: %v", err)
	}
	if len(repo.snapshots) != 1 {
		t.Errorf("expected a single seeded snapshot, got %d", len(repo.snapshots))
	}
}

func TestScaleFor(t *testing.T) {
	s := Defaults()
	sc, ok := s.ScaleFor("inpatient")
	if !ok || sc.FundShare != 85 {
		t.Errorf("unexpected inpatient scale %+v ok=%v", sc, ok)
	}
	if _, ok := s.ScaleFor("dental"); ok {
		t.Error("expected no scale for unknown type")
	}
}
