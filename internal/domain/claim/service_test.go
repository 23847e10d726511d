package claim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sgss/medfund/internal/domain/audit"
	"github.com/sgss/medfund/internal/domain/member"
	"github.com/sgss/medfund/internal/domain/settings"
	"github.com/sgss/medfund/internal/platform/apperror"
	"github.com/sgss/medfund/internal/platform/auth"
	"github.com/sgss/medfund/internal/platform/db"
)

// -- mocks --

type mockClaimRepo struct {
	claims map[uuid.UUID]*Claim
}

func newMockClaimRepo() *mockClaimRepo {
	return &mockClaimRepo{claims: make(map[uuid.UUID]*Claim)}
}

func copyClaim(c *Claim) *Claim {
	cp := *c
	cp.Items = append([]*Item(nil), c.Items...)
	return &cp
}

func (m *mockClaimRepo) Create(ctx context.Context, c *Claim) error {
	c.ID = uuid.New()
	c.VersionID = 1
	c.CreatedAt = time.Now()
	m.claims[c.ID] = copyClaim(c)
	return nil
}

func (m *mockClaimRepo) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, ok := m.claims[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return copyClaim(c), nil
}

func (m *mockClaimRepo) Update(ctx context.Context, c *Claim) error {
	stored, ok := m.claims[c.ID]
	if !ok {
		return errors.New("not found")
	}
	if stored.VersionID != c.VersionID {
		return ErrVersionConflict
	}
	c.VersionID++
	m.claims[c.ID] = copyClaim(c)
	return nil
}

func (m *mockClaimRepo) ReplaceItems(ctx context.Context, claimID uuid.UUID, items []*Item) error {
	c, ok := m.claims[claimID]
	if !ok {
		return errors.New("not found")
	}
	c.Items = items
	return nil
}

func (m *mockClaimRepo) ListByMember(ctx context.Context, memberID uuid.UUID, status string, limit, offset int) ([]*Claim, int, error) {
	var out []*Claim
	for _, c := range m.claims {
		if c.MemberID == memberID && (status == "" || c.Status == status) {
			out = append(out, copyClaim(c))
		}
	}
	return out, len(out), nil
}

func (m *mockClaimRepo) List(ctx context.Context, status string, limit, offset int) ([]*Claim, int, error) {
	var out []*Claim
	for _, c := range m.claims {
		if status == "" || c.Status == status {
			out = append(out, copyClaim(c))
		}
	}
	return out, len(out), nil
}

func (m *mockClaimRepo) SumPayableForMember(ctx context.Context, memberID uuid.UUID, from, to time.Time) (int64, error) {
	var sum int64
	for _, c := range m.claims {
		if c.MemberID != memberID || c.DecidedAt == nil {
			continue
		}
		if c.Status != StatusApproved && c.Status != StatusPaid {
			continue
		}
		if c.DecidedAt.Before(from) || !c.DecidedAt.Before(to) {
			continue
		}
		sum += c.TotalPayable
	}
	return sum, nil
}

type mockAppealRepo struct {
	appeals map[uuid.UUID]*Appeal
}

func newMockAppealRepo() *mockAppealRepo {
	return &mockAppealRepo{appeals: make(map[uuid.UUID]*Appeal)}
}

func (m *mockAppealRepo) Create(ctx context.Context, a *Appeal) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	cp := *a
	m.appeals[a.ID] = &cp
	return nil
}

func (m *mockAppealRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appeal, error) {
	a, ok := m.appeals[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppealRepo) ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*Appeal, error) {
	var out []*Appeal
	for _, a := range m.appeals {
		if a.ClaimID == claimID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockAppealRepo) Update(ctx context.Context, a *Appeal) error {
	cp := *a
	m.appeals[a.ID] = &cp
	return nil
}

func (m *mockAppealRepo) ListPending(ctx context.Context, limit, offset int) ([]*Appeal, int, error) {
	var out []*Appeal
	for _, a := range m.appeals {
		if a.Status == AppealStatusPending {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

type mockMemberSource struct {
	members map[uuid.UUID]*member.Member
}

func (m *mockMemberSource) GetByID(ctx context.Context, id uuid.UUID) (*member.Member, error) {
	mem, ok := m.members[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return mem, nil
}

type mockTypeSource struct {
	types map[uuid.UUID]*member.MembershipType
}

func (m *mockTypeSource) GetByID(ctx context.Context, id uuid.UUID) (*member.MembershipType, error) {
	t, ok := m.types[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return t, nil
}

type mockSettingsSource struct{ snap *settings.Snapshot }

func (m *mockSettingsSource) GetActive(ctx context.Context) (*settings.Snapshot, error) {
	return m.snap, nil
}

func (m *mockSettingsSource) GetVersion(ctx context.Context, version int) (*settings.Snapshot, error) {
	if m.snap.Version == version {
		return m.snap, nil
	}
	return nil, errors.New("not found")
}

type mockAttachments struct{ hasDischarge bool }

func (m *mockAttachments) HasRequiredAttachment(ctx context.Context, claimID uuid.UUID, kind string) (bool, error) {
	return m.hasDischarge, nil
}

type mockPayments struct {
	records map[string]*PaymentRecord
}

func (m *mockPayments) GetPaymentRecord(ctx context.Context, ref string) (*PaymentRecord, error) {
	rec, ok := m.records[ref]
	if !ok {
		return nil, errors.New("payment record not found")
	}
	return rec, nil
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

func (m *mockAuditRepo) actions() []string {
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// -- fixture --

type fixture struct {
	svc         *Service
	claims      *mockClaimRepo
	appeals     *mockAppealRepo
	members     *mockMemberSource
	types       *mockTypeSource
	attachments *mockAttachments
	payments    *mockPayments
	auditRepo   *mockAuditRepo
	memberID    uuid.UUID
	tierID      uuid.UUID
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	validFrom := now.AddDate(0, -6, 0)
	benefits := validFrom.AddDate(0, 0, 60)
	memberID := uuid.New()
	tierID := uuid.New()
	members := &mockMemberSource{members: map[uuid.UUID]*member.Member{
		memberID: {
			ID:               memberID,
			Status:           member.StatusActive,
			MembershipTypeID: tierID,
			ValidFrom:        &validFrom,
			BenefitsFrom:     &benefits,
		},
	}}
	types := &mockTypeSource{types: map[uuid.UUID]*member.MembershipType{
		tierID: {ID: tierID, Key: "ordinary", Name: "Ordinary"},
	}}

	snap := settings.Defaults()
	snap.Version = 1

	f := &fixture{
		claims:      newMockClaimRepo(),
		appeals:     newMockAppealRepo(),
		members:     members,
		types:       types,
		attachments: &mockAttachments{hasDischarge: true},
		payments:    &mockPayments{records: make(map[string]*PaymentRecord)},
		auditRepo:   &mockAuditRepo{},
		memberID:    memberID,
		tierID:      tierID,
		now:         now,
	}
	f.svc = NewService(f.claims, f.appeals, f.members, f.types,
		&mockSettingsSource{snap}, f.attachments, f.payments,
		audit.NewService(f.auditRepo), db.PassthroughTxRunner{}, zerolog.Nop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) submitInput() SubmitInput {
	anchor := f.now.AddDate(0, 0, -10)
	return SubmitInput{
		MemberID:   f.memberID,
		Type:       TypeOutpatient,
		Items:      []*Item{{Category: "consultation", Amount: 2000, Quantity: 1}},
		FirstVisit: &anchor,
	}
}

func (f *fixture) submittedClaim(t *testing.T) *Claim {
	t.Helper()
	c, err := f.svc.SubmitClaim(context.Background(), f.ownerActor(), f.submitInput())
	if err != nil {
		t.Fatalf("SubmitClaim: %v", err)
	}
	return c
}

func (f *fixture) ownerActor() auth.Actor {
	return auth.Actor{ID: uuid.New(), Name: "owner", Roles: []string{auth.RoleMember}, MemberID: &f.memberID}
}

func reviewer() auth.Actor {
	return auth.Actor{ID: uuid.New(), Name: "reviewer", Roles: []string{auth.RoleCommittee}}
}

func treasurer() auth.Actor {
	return auth.Actor{ID: uuid.New(), Name: "treasurer", Roles: []string{auth.RoleTreasurer}}
}

func trustee() auth.Actor {
	return auth.Actor{ID: uuid.New(), Name: "trustee", Roles: []string{auth.RoleTrustee}}
}

// -- submission --

func TestSubmitClaimComputesTotals(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)

	if c.Status != StatusSubmitted {
		t.Errorf("status = %q, want submitted", c.Status)
	}
	if c.TotalClaimed != 2000 || c.TotalPayable != 1600 || c.MemberPayable != 400 {
		t.Errorf("totals = %d/%d/%d, want 2000/1600/400",
			c.TotalClaimed, c.TotalPayable, c.MemberPayable)
	}
	if c.SettingsVersion != 1 {
		t.Errorf("settings version = %d, want 1", c.SettingsVersion)
	}
	if c.SubmittedAt == nil {
		t.Error("submitted_at not set")
	}
	actions := f.auditRepo.actions()
	if len(actions) != 2 || actions[0] != "claim:created" || actions[1] != "claim:submitted" {
		t.Errorf("unexpected audit actions %v", actions)
	}
}

func TestSubmitClaimTierAnnualLimitCapsPayable(t *testing.T) {
	f := newFixture(t)
	limit := int64(1000)
	f.types.types[f.tierID].AnnualLimit = &limit

	c := f.submittedClaim(t)
	if c.TotalPayable != 1000 || c.MemberPayable != 1000 {
		t.Errorf("totals = %d/%d, want payable capped at the tier limit 1000/1000",
			c.TotalPayable, c.MemberPayable)
	}
}

func TestSubmitClaimTierFundShareOverridesScale(t *testing.T) {
	f := newFixture(t)
	share := 50
	f.types.types[f.tierID].FundSharePercent = &share

	c := f.submittedClaim(t)
	if c.TotalPayable != 1000 || c.MemberPayable != 1000 {
		t.Errorf("totals = %d/%d, want the tier's 50%% split 1000/1000",
			c.TotalPayable, c.MemberPayable)
	}
}

func TestApprovalRecomputesWithTierLimit(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)

	// The tier limit tightens between submission and approval; the
	// approval recompute honors it.
	limit := int64(1000)
	f.types.types[f.tierID].AnnualLimit = &limit

	a, err := f.svc.Transition(context.Background(), reviewer(), c.ID, StatusApproved, TransitionOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if a.TotalPayable != 1000 || a.MemberPayable != 1000 {
		t.Errorf("totals = %d/%d, want 1000/1000", a.TotalPayable, a.MemberPayable)
	}
}

func TestSubmitClaimWaitingPeriod(t *testing.T) {
	f := newFixture(t)
	// Member joined 10 days ago.
	validFrom := f.now.AddDate(0, 0, -10)
	benefits := validFrom.AddDate(0, 0, 60)
	f.members.members[f.memberID].ValidFrom = &validFrom
	f.members.members[f.memberID].BenefitsFrom = &benefits

	_, err := f.svc.SubmitClaim(context.Background(), f.ownerActor(), f.submitInput())
	if !errors.Is(err, ErrWaitingPeriodNotMet) {
		t.Errorf("got %v, want ErrWaitingPeriodNotMet", err)
	}
}

func TestSubmitClaimRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	stranger := auth.Actor{ID: uuid.New(), Roles: []string{auth.RoleMember}}
	_, err := f.svc.SubmitClaim(context.Background(), stranger, f.submitInput())
	if !errors.Is(err, ErrInsufficientRole) {
		t.Errorf("got %v, want ErrInsufficientRole", err)
	}
}

func TestSubmitClaimRejectsEmpty(t *testing.T) {
	f := newFixture(t)
	in := f.submitInput()
	in.Items = nil
	_, err := f.svc.SubmitClaim(context.Background(), f.ownerActor(), in)
	if !errors.Is(err, ErrEmptyClaim) {
		t.Errorf("got %v, want ErrEmptyClaim", err)
	}
}

func TestSubmitInpatientNeedsDischargeSummary(t *testing.T) {
	f := newFixture(t)
	f.attachments.hasDischarge = false
	discharge := f.now.AddDate(0, 0, -5)
	in := SubmitInput{
		MemberID:  f.memberID,
		Type:      TypeInpatient,
		Items:     []*Item{{Category: "inpatient", Amount: 5000, Quantity: 1}},
		Discharge: &discharge,
	}
	_, err := f.svc.SubmitClaim(context.Background(), f.ownerActor(), in)
	if !errors.Is(err, ErrMissingDischargeSummary) {
		t.Errorf("got %v, want ErrMissingDischargeSummary", err)
	}
}

// -- transitions --

func TestTransitionHappyPathToPaid(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)

	c2, err := f.svc.Transition(context.Background(), reviewer(), c.ID, StatusReviewed, TransitionOpts{})
	if err != nil {
		t.Fatalf("to reviewed: %v", err)
	}
	if c2.Status != StatusReviewed {
		t.Fatalf("status = %q, want reviewed", c2.Status)
	}

	c3, err := f.svc.Transition(context.Background(), reviewer(), c.ID, StatusApproved, TransitionOpts{Note: "ok"})
	if err != nil {
		t.Fatalf("to approved: %v", err)
	}
	if c3.Status != StatusApproved || c3.DecidedAt == nil {
		t.Fatalf("approved claim not decided: %+v", c3)
	}

	f.payments.records["PAY-1"] = &PaymentRecord{Amount: c3.TotalPayable, Reference: "PAY-1", Reconciled: true}
	c4, err := f.svc.Transition(context.Background(), treasurer(), c.ID, StatusPaid, TransitionOpts{PaymentRef: "PAY-1"})
	if err != nil {
		t.Fatalf("to paid: %v", err)
	}
	if c4.Status != StatusPaid {
		t.Errorf("status = %q, want paid", c4.Status)
	}
}

func TestTransitionInvalidFromPaid(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)
	_, _ = f.svc.Transition(context.Background(), reviewer(), c.ID, StatusApproved, TransitionOpts{})
	f.payments.records["PAY-1"] = &PaymentRecord{Amount: 1600, Reference: "PAY-1", Reconciled: true}
	_, _ = f.svc.Transition(context.Background(), treasurer(), c.ID, StatusPaid, TransitionOpts{PaymentRef: "PAY-1"})

	_, err := f.svc.Transition(context.Background(), reviewer(), c.ID, StatusApproved, TransitionOpts{})
	if kind, _ := apperror.KindOf(err); kind != apperror.State {
		t.Errorf("approving a paid claim: got %v, want state error", err)
	}
}

func TestTransitionConflictOfInterest(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)

	// Committee member who is also the claim's member.
	conflicted := auth.Actor{ID: uuid.New(), Name: "self-dealer",
		Roles: []string{auth.RoleCommittee}, MemberID: &f.memberID}

	_, err := f.svc.Transition(context.Background(), conflicted, c.ID, StatusApproved, TransitionOpts{})
	if !errors.Is(err, ErrConflictOfInterest) {
		t.Fatalf("got %v, want ErrConflictOfInterest", err)
	}

	stored, _ := f.claims.GetByID(context.Background(), c.ID)
	if stored.Status != StatusSubmitted {
		t.Errorf("claim status changed to %q on denied attempt", stored.Status)
	}

	// No executed "claim:approved" entry; a denied entry is logged instead.
	for _, a := range f.auditRepo.actions() {
		if a == "claim:approved" {
			t.Error("approved audit entry written for denied attempt")
		}
	}
	last := f.auditRepo.entries[len(f.auditRepo.entries)-1]
	if !strings.HasSuffix(last.Action, audit.DeniedSuffix) {
		t.Errorf("expected denied audit entry, got %q", last.Action)
	}
}

func TestTransitionRoleGuards(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)

	memberActor := f.ownerActor()
	if _, err := f.svc.Transition(context.Background(), memberActor, c.ID, StatusApproved, TransitionOpts{}); !errors.Is(err, ErrInsufficientRole) {
		t.Errorf("member approving: got %v, want ErrInsufficientRole", err)
	}

	_, _ = f.svc.Transition(context.Background(), reviewer(), c.ID, StatusApproved, TransitionOpts{})
	if _, err := f.svc.Transition(context.Background(), reviewer(), c.ID, StatusPaid, TransitionOpts{PaymentRef: "x"}); !errors.Is(err, ErrInsufficientRole) {
		t.Errorf("committee paying: got %v, want ErrInsufficientRole", err)
	}
}

func TestTransitionPaidRequiresReconciledPayment(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)
	_, _ = f.svc.Transition(context.Background(), reviewer(), c.ID, StatusApproved, TransitionOpts{})

	if _, err := f.svc.Transition(context.Background(), treasurer(), c.ID, StatusPaid, TransitionOpts{}); err == nil {
		t.Error("expected error without payment ref")
	}

	f.payments.records["PAY-1"] = &PaymentRecord{Amount: 1600, Reference: "PAY-1", Reconciled: false}
	if _, err := f.svc.Transition(context.Background(), treasurer(), c.ID, StatusPaid, TransitionOpts{PaymentRef: "PAY-1"}); !errors.Is(err, ErrPaymentNotReconciled) {
		t.Errorf("got %v, want ErrPaymentNotReconciled", err)
	}

	f.payments.records["PAY-2"] = &PaymentRecord{Amount: 999, Reference: "PAY-2", Reconciled: true}
	if _, err := f.svc.Transition(context.Background(), treasurer(), c.ID, StatusPaid, TransitionOpts{PaymentRef: "PAY-2"}); !errors.Is(err, ErrPaymentMismatch) {
		t.Errorf("got %v, want ErrPaymentMismatch", err)
	}
}

func TestTransitionInactiveMemberBlocked(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)
	f.members.members[f.memberID].Status = member.StatusRevoked

	_, err := f.svc.Transition(context.Background(), reviewer(), c.ID, StatusApproved, TransitionOpts{})
	if apperror.CodeOf(err) != "MemberNotActive" {
		t.Errorf("got %v, want MemberNotActive", err)
	}
}

func TestApprovalConsumesAnnualCeiling(t *testing.T) {
	f := newFixture(t)

	big := f.submitInput()
	big.Items = []*Item{{Category: "investigation", Amount: 300000, Quantity: 1}}
	c1, err := f.svc.SubmitClaim(context.Background(), f.ownerActor(), big)
	if err != nil {
		t.Fatal(err)
	}
	a1, err := f.svc.Transition(context.Background(), reviewer(), c1.ID, StatusApproved, TransitionOpts{})
	if err != nil {
		t.Fatal(err)
	}
	// 80% of 300000 = 240000, inside the 250000 annual limit.
	if a1.TotalPayable != 240000 {
		t.Fatalf("first payable = %d, want 240000", a1.TotalPayable)
	}

	c2, err := f.svc.SubmitClaim(context.Background(), f.ownerActor(), big)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := f.svc.Transition(context.Background(), reviewer(), c2.ID, StatusApproved, TransitionOpts{})
	if err != nil {
		t.Fatal(err)
	}
	// Remaining ceiling is 10000; the second approval clips to it.
	if a2.TotalPayable != 10000 {
		t.Errorf("second payable = %d, want 10000", a2.TotalPayable)
	}
	if a2.TotalPayable+a2.MemberPayable != a2.TotalClaimed {
		t.Errorf("split invariant broken: %d + %d != %d",
			a2.TotalPayable, a2.MemberPayable, a2.TotalClaimed)
	}
}

// -- override --

func TestSetOverride(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)
	_, _ = f.svc.Transition(context.Background(), reviewer(), c.ID, StatusApproved, TransitionOpts{})

	o, err := f.svc.SetOverride(context.Background(), reviewer(), c.ID, 1800, "hardship uplift")
	if err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if o.TotalPayable != 1800 || o.MemberPayable != 200 {
		t.Errorf("override totals = %d/%d, want 1800/200", o.TotalPayable, o.MemberPayable)
	}
	if o.OverrideAmount == nil || *o.OverrideAmount != 1800 {
		t.Error("override amount not recorded")
	}

	found := false
	for _, a := range f.auditRepo.actions() {
		if a == "claim:override_set" {
			found = true
		}
	}
	if !found {
		t.Error("expected claim:override_set audit entry")
	}
}

func TestSetOverrideClampsMemberPayable(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)
	_, _ = f.svc.Transition(context.Background(), reviewer(), c.ID, StatusApproved, TransitionOpts{})

	o, err := f.svc.SetOverride(context.Background(), reviewer(), c.ID, 5000, "")
	if err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if o.MemberPayable != 0 {
		t.Errorf("member payable = %d, want 0 when override exceeds claimed", o.MemberPayable)
	}
}

func TestSetOverrideGuards(t *testing.T) {
	f := newFixture(t)
	c := f.submittedClaim(t)

	if _, err := f.svc.SetOverride(context.Background(), reviewer(), c.ID, 100, ""); err == nil {
		t.Error("expected error overriding a submitted claim")
	}

	_, _ = f.svc.Transition(context.Background(), reviewer(), c.ID, StatusApproved, TransitionOpts{})

	if _, err := f.svc.SetOverride(context.Background(), reviewer(), c.ID, OverrideCap+1, ""); apperror.CodeOf(err) != "OverrideExceedsCap" {
		t.Errorf("got %v, want OverrideExceedsCap", err)
	}

	conflicted := auth.Actor{ID: uuid.New(), Roles: []string{auth.RoleCommittee}, MemberID: &f.memberID}
	if _, err := f.svc.SetOverride(context.Background(), conflicted, c.ID, 100, ""); !errors.Is(err, ErrConflictOfInterest) {
		t.Errorf("got %v, want ErrConflictOfInterest", err)
	}
}

// -- appeals --

func rejectedClaim(t *testing.T, f *fixture) *Claim {
	t.Helper()
	c := f.submittedClaim(t)
	rc, err := f.svc.Transition(context.Background(), reviewer(), c.ID, StatusRejected, TransitionOpts{Note: "not covered"})
	if err != nil {
		t.Fatal(err)
	}
	return rc
}

func TestOpenAppeal(t *testing.T) {
	f := newFixture(t)
	c := rejectedClaim(t, f)

	a, err := f.svc.OpenAppeal(context.Background(), f.ownerActor(), c.ID, "treatment was medically necessary")
	if err != nil {
		t.Fatalf("OpenAppeal: %v", err)
	}
	if a.Status != AppealStatusPending {
		t.Errorf("status = %q, want pending", a.Status)
	}
}

func TestOpenAppealWindowExpired(t *testing.T) {
	f := newFixture(t)
	c := rejectedClaim(t, f)

	f.now = f.now.AddDate(0, 0, 31) // appeal window is 30 days
	_, err := f.svc.OpenAppeal(context.Background(), f.ownerActor(), c.ID, "late")
	if !errors.Is(err, ErrAppealWindowExpired) {
		t.Errorf("got %v, want ErrAppealWindowExpired", err)
	}
}

func TestOpenAppealOnlyByOwner(t *testing.T) {
	f := newFixture(t)
	c := rejectedClaim(t, f)

	_, err := f.svc.OpenAppeal(context.Background(), reviewer(), c.ID, "reason")
	if !errors.Is(err, ErrInsufficientRole) {
		t.Errorf("got %v, want ErrInsufficientRole", err)
	}
}

func TestOpenAppealDuplicateBlocked(t *testing.T) {
	f := newFixture(t)
	c := rejectedClaim(t, f)

	if _, err := f.svc.OpenAppeal(context.Background(), f.ownerActor(), c.ID, "first"); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.OpenAppeal(context.Background(), f.ownerActor(), c.ID, "second")
	if !errors.Is(err, ErrAppealPending) {
		t.Errorf("got %v, want ErrAppealPending", err)
	}
}

func TestResolveAppealUpheld(t *testing.T) {
	f := newFixture(t)
	c := rejectedClaim(t, f)
	a, err := f.svc.OpenAppeal(context.Background(), f.ownerActor(), c.ID, "reason")
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := f.svc.ResolveAppeal(context.Background(), trustee(), a.ID, AppealUpheld, "committee erred", nil)
	if err != nil {
		t.Fatalf("ResolveAppeal: %v", err)
	}
	if resolved.Status != AppealStatusResolved || resolved.Decision != AppealUpheld {
		t.Errorf("unexpected resolution %+v", resolved)
	}

	stored, _ := f.claims.GetByID(context.Background(), c.ID)
	if stored.Status != StatusApproved {
		t.Errorf("claim status = %q, want approved after upheld appeal", stored.Status)
	}
}

func TestResolveAppealPartial(t *testing.T) {
	f := newFixture(t)
	c := rejectedClaim(t, f)
	a, _ := f.svc.OpenAppeal(context.Background(), f.ownerActor(), c.ID, "reason")

	amount := int64(1000)
	resolved, err := f.svc.ResolveAppeal(context.Background(), trustee(), a.ID, AppealPartial, "half covered", &amount)
	if err != nil {
		t.Fatalf("ResolveAppeal: %v", err)
	}
	if resolved.OverrideAmount == nil || *resolved.OverrideAmount != 1000 {
		t.Error("partial override amount not recorded on appeal")
	}

	stored, _ := f.claims.GetByID(context.Background(), c.ID)
	if stored.Status != StatusApproved || stored.TotalPayable != 1000 {
		t.Errorf("claim = %q payable %d, want approved/1000", stored.Status, stored.TotalPayable)
	}
}

func TestResolveAppealTerminal(t *testing.T) {
	f := newFixture(t)
	c := rejectedClaim(t, f)
	a, _ := f.svc.OpenAppeal(context.Background(), f.ownerActor(), c.ID, "reason")
	if _, err := f.svc.ResolveAppeal(context.Background(), trustee(), a.ID, AppealDismissed, "", nil); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.ResolveAppeal(context.Background(), trustee(), a.ID, AppealUpheld, "", nil); !errors.Is(err, ErrAppealAlreadyResolved) {
		t.Errorf("got %v, want ErrAppealAlreadyResolved", err)
	}

	// The dismissed appeal is terminal for this decision.
	_, err := f.svc.OpenAppeal(context.Background(), f.ownerActor(), c.ID, "again")
	if !errors.Is(err, ErrAppealAlreadyResolved) {
		t.Errorf("got %v, want ErrAppealAlreadyResolved", err)
	}
}

func TestResolveAppealGuards(t *testing.T) {
	f := newFixture(t)
	c := rejectedClaim(t, f)
	a, _ := f.svc.OpenAppeal(context.Background(), f.ownerActor(), c.ID, "reason")

	if _, err := f.svc.ResolveAppeal(context.Background(), reviewer(), a.ID, AppealUpheld, "", nil); !errors.Is(err, ErrInsufficientRole) {
		t.Errorf("committee resolving: got %v, want ErrInsufficientRole", err)
	}

	conflicted := auth.Actor{ID: uuid.New(), Roles: []string{auth.RoleTrustee}, MemberID: &f.memberID}
	if _, err := f.svc.ResolveAppeal(context.Background(), conflicted, a.ID, AppealUpheld, "", nil); !errors.Is(err, ErrConflictOfInterest) {
		t.Errorf("conflicted trustee: got %v, want ErrConflictOfInterest", err)
	}

	if _, err := f.svc.ResolveAppeal(context.Background(), trustee(), a.ID, AppealPartial, "", nil); apperror.CodeOf(err) != "MissingOverrideAmount" {
		t.Errorf("partial without amount: got %v", err)
	}
}
