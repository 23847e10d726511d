package claim

import (
	"context"
	"fmt"
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

// MemberSource is the slice of the member domain the engine needs.
type MemberSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*member.Member, error)
}

// TypeSource resolves a member's tier; tiers may override the fund-wide
// annual limit and fund share.
type TypeSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*member.MembershipType, error)
}

// SettingsSource supplies byelaws snapshots. GetVersion lets approvals
// replay the exact policy a claim was computed under.
type SettingsSource interface {
	GetActive(ctx context.Context) (*settings.Snapshot, error)
	GetVersion(ctx context.Context, version int) (*settings.Snapshot, error)
}

// AttachmentChecker is the attachment collaborator boundary; the engine
// only sees a boolean signal, never file content.
type AttachmentChecker interface {
	HasRequiredAttachment(ctx context.Context, claimID uuid.UUID, kind string) (bool, error)
}

// PaymentVerifier is the treasury collaborator boundary.
type PaymentVerifier interface {
	GetPaymentRecord(ctx context.Context, ref string) (*PaymentRecord, error)
}

const dischargeSummaryKind = "discharge_summary"

type Service struct {
	claims      Repository
	appeals     AppealRepository
	members     MemberSource
	types       TypeSource
	settings    SettingsSource
	attachments AttachmentChecker
	payments    PaymentVerifier
	audit       *audit.Service
	tx          db.TxRunner
	log         zerolog.Logger
	now         func() time.Time
}

func NewService(claims Repository, appeals AppealRepository, members MemberSource,
	types TypeSource, settingsSrc SettingsSource, attachments AttachmentChecker,
	payments PaymentVerifier, auditSvc *audit.Service, tx db.TxRunner,
	log zerolog.Logger) *Service {
	return &Service{
		claims:      claims,
		appeals:     appeals,
		members:     members,
		types:       types,
		settings:    settingsSrc,
		attachments: attachments,
		payments:    payments,
		audit:       auditSvc,
		tx:          tx,
		log:         log,
		now:         time.Now,
	}
}

// SubmitInput is the member-facing claim submission payload.
type SubmitInput struct {
	MemberID   uuid.UUID  `json:"member_id"`
	Type       string     `json:"type"`
	Items      []*Item    `json:"items"`
	FirstVisit *time.Time `json:"date_of_first_visit,omitempty"`
	Discharge  *time.Time `json:"date_of_discharge,omitempty"`
	Flags      Flags      `json:"flags"`
	Notes      string     `json:"notes,omitempty"`
}

func validType(t string) bool {
	return t == TypeOutpatient || t == TypeInpatient || t == TypeChronic
}

// CreateDraft stores a claim in draft without running eligibility. Members
// draft their own claims; committee and admin may draft on their behalf.
func (s *Service) CreateDraft(ctx context.Context, actor auth.Actor, in SubmitInput) (*Claim, error) {
	if !validType(in.Type) {
		return nil, apperror.New(apperror.Validation, "InvalidClaimType",
			fmt.Sprintf("unknown claim type %q", in.Type))
	}
	if !actor.RelatedTo(in.MemberID) && !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) {
		return nil, ErrInsufficientRole
	}
	if _, err := s.members.GetByID(ctx, in.MemberID); err != nil {
		return nil, ErrMemberNotFound
	}
	for _, item := range in.Items {
		if !ValidCategories[item.Category] {
			return nil, apperror.New(apperror.Validation, "InvalidCategory",
				fmt.Sprintf("unknown item category %q", item.Category))
		}
		if item.Amount < 0 || item.Quantity <= 0 {
			return nil, ErrInvalidAmount
		}
	}

	c := &Claim{
		MemberID:         in.MemberID,
		Type:             in.Type,
		Status:           StatusDraft,
		Items:            in.Items,
		DateOfFirstVisit: in.FirstVisit,
		DateOfDischarge:  in.Discharge,
		CriticalIllness:  in.Flags.CriticalIllness,
		AtClinic:         in.Flags.AtClinic,
		Notes:            in.Notes,
	}
	for _, item := range in.Items {
		c.TotalClaimed += item.LineTotal()
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.claims.Create(ctx, c); err != nil {
			return fmt.Errorf("creating claim: %w", err)
		}
		return s.audit.Append(ctx, actor, audit.Record{
			Action:  "claim:created",
			ClaimID: &c.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SubmitClaim creates and submits a claim in one transaction. Any
// eligibility failure rolls the whole thing back, so no claim record
// survives a refused submission.
func (s *Service) SubmitClaim(ctx context.Context, actor auth.Actor, in SubmitInput) (*Claim, error) {
	var c *Claim
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.CreateDraft(ctx, actor, in)
		if err != nil {
			return err
		}
		return s.submit(ctx, actor, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Submit moves an existing draft to submitted after the byelaws gates.
func (s *Service) Submit(ctx context.Context, actor auth.Actor, claimID uuid.UUID) (*Claim, error) {
	var c *Claim
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.claims.GetByID(ctx, claimID)
		if err != nil {
			return apperror.New(apperror.NotFound, "ClaimNotFound", "claim not found")
		}
		if !actor.RelatedTo(c.MemberID) && !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) {
			return ErrInsufficientRole
		}
		return s.submit(ctx, actor, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// submit runs the draft → submitted gate inside the caller's transaction.
func (s *Service) submit(ctx context.Context, actor auth.Actor, c *Claim) error {
	if c.Status != StatusDraft {
		return errInvalidTransition(c.Status, StatusSubmitted)
	}

	m, err := s.members.GetByID(ctx, c.MemberID)
	if err != nil {
		return ErrMemberNotFound
	}
	snap, err := s.settings.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	now := s.now()
	hasDischarge := false
	if c.Type == TypeInpatient {
		hasDischarge, err = s.attachments.HasRequiredAttachment(ctx, c.ID, dischargeSummaryKind)
		if err != nil {
			return fmt.Errorf("checking discharge summary: %w", err)
		}
	}
	if err := CheckEligibility(m, EligibilityInput{
		ClaimType:           c.Type,
		FirstVisit:          c.DateOfFirstVisit,
		Discharge:           c.DateOfDischarge,
		HasDischargeSummary: hasDischarge,
		Items:               c.Items,
	}, RulesFromSnapshot(snap), now); err != nil {
		return err
	}

	pol, err := s.tierPolicy(ctx, m, snap)
	if err != nil {
		return err
	}
	used, err := s.usedBalance(ctx, c.MemberID, now)
	if err != nil {
		return err
	}
	totals, err := Compute(c.Items, c.Type, c.flags(), pol, used)
	if err != nil {
		return err
	}
	if totals.Subtotal <= 0 {
		return ErrEmptyClaim
	}

	c.TotalClaimed = totals.Subtotal
	c.TotalPayable = totals.Payable
	c.MemberPayable = totals.MemberShare
	c.SettingsVersion = snap.Version
	c.Status = StatusSubmitted
	c.SubmittedAt = &now
	if err := s.claims.Update(ctx, c); err != nil {
		return err
	}

	s.log.Info().
		Str("claim_id", c.ID.String()).
		Int("settings_version", snap.Version).
		Int64("payable", c.TotalPayable).
		Msg("claim submitted")

	v := snap.Version
	return s.audit.Append(ctx, actor, audit.Record{
		Action:          "claim:submitted",
		ClaimID:         &c.ID,
		SettingsVersion: &v,
	})
}

// TransitionOpts carries the optional inputs of a status transition.
type TransitionOpts struct {
	Note       string
	PaymentRef string
}

// Transition drives the claim state machine. Guards run inside one
// transaction together with the update and the audit write; a failed
// guard leaves no trace except a separately logged denial for
// authorization failures.
func (s *Service) Transition(ctx context.Context, actor auth.Actor, claimID uuid.UUID,
	target string, opts TransitionOpts) (*Claim, error) {

	var c *Claim
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.claims.GetByID(ctx, claimID)
		if err != nil {
			return apperror.New(apperror.NotFound, "ClaimNotFound", "claim not found")
		}
		return s.applyTransition(ctx, actor, c, target, opts)
	})
	if err != nil {
		s.recordDenial(ctx, actor, claimID, "claim:"+target, err)
		return nil, err
	}
	return c, nil
}

func (s *Service) applyTransition(ctx context.Context, actor auth.Actor, c *Claim,
	target string, opts TransitionOpts) error {

	now := s.now()

	switch target {
	case StatusSubmitted:
		if !actor.RelatedTo(c.MemberID) && !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) {
			return ErrInsufficientRole
		}
		return s.submit(ctx, actor, c)

	case StatusReviewed:
		if c.Status != StatusSubmitted {
			return errInvalidTransition(c.Status, target)
		}
		if !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) {
			return ErrInsufficientRole
		}
		if err := s.requireActiveMember(ctx, c, now); err != nil {
			return err
		}
		c.Status = StatusReviewed

	case StatusApproved:
		if c.Status != StatusSubmitted && c.Status != StatusReviewed {
			return errInvalidTransition(c.Status, target)
		}
		if !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) {
			return ErrInsufficientRole
		}
		if actor.RelatedTo(c.MemberID) {
			return ErrConflictOfInterest
		}
		if err := s.requireActiveMember(ctx, c, now); err != nil {
			return err
		}
		if err := s.approve(ctx, c, now); err != nil {
			return err
		}

	case StatusRejected:
		if c.Status != StatusSubmitted && c.Status != StatusReviewed {
			return errInvalidTransition(c.Status, target)
		}
		if !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) {
			return ErrInsufficientRole
		}
		if actor.RelatedTo(c.MemberID) {
			return ErrConflictOfInterest
		}
		if err := s.requireActiveMember(ctx, c, now); err != nil {
			return err
		}
		c.Status = StatusRejected
		c.DecidedAt = &now

	case StatusPaid:
		if c.Status != StatusApproved {
			return errInvalidTransition(c.Status, target)
		}
		if !actor.HasRole(auth.RoleTreasurer, auth.RoleAdmin) {
			return ErrInsufficientRole
		}
		if actor.RelatedTo(c.MemberID) {
			return ErrConflictOfInterest
		}
		if opts.PaymentRef == "" {
			return apperror.New(apperror.Validation, "MissingPaymentRef",
				"paying a claim requires a payment record reference")
		}
		rec, err := s.payments.GetPaymentRecord(ctx, opts.PaymentRef)
		if err != nil {
			return fmt.Errorf("fetching payment record %q: %w", opts.PaymentRef, err)
		}
		if !rec.Reconciled {
			return ErrPaymentNotReconciled
		}
		if rec.Amount != c.TotalPayable {
			return ErrPaymentMismatch
		}
		c.Status = StatusPaid
		if opts.Note == "" {
			opts.Note = "payment " + rec.Reference
		}

	default:
		return errInvalidTransition(c.Status, target)
	}

	if err := s.claims.Update(ctx, c); err != nil {
		return err
	}

	v := c.SettingsVersion
	return s.audit.Append(ctx, actor, audit.Record{
		Action:          "claim:" + target,
		Note:            opts.Note,
		ClaimID:         &c.ID,
		SettingsVersion: &v,
	})
}

// approve recomputes the totals against the recorded policy version and
// the member's balance read inside this transaction, so two concurrent
// approvals cannot both spend the same remaining ceiling.
func (s *Service) approve(ctx context.Context, c *Claim, now time.Time) error {
	snap, err := s.settings.GetVersion(ctx, c.SettingsVersion)
	if err != nil {
		snap, err = s.settings.GetActive(ctx)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
	}
	m, err := s.members.GetByID(ctx, c.MemberID)
	if err != nil {
		return ErrMemberNotFound
	}
	pol, err := s.tierPolicy(ctx, m, snap)
	if err != nil {
		return err
	}
	used, err := s.usedBalance(ctx, c.MemberID, now)
	if err != nil {
		return err
	}
	totals, err := Compute(c.Items, c.Type, c.flags(), pol, used)
	if err != nil {
		return err
	}
	c.TotalClaimed = totals.Subtotal
	c.TotalPayable = totals.Payable
	c.MemberPayable = totals.MemberShare
	c.SettingsVersion = snap.Version
	c.Status = StatusApproved
	c.DecidedAt = &now
	return nil
}

// tierPolicy returns the snapshot with the member's tier overrides applied.
// A nil tier value falls through to the fund-wide default.
func (s *Service) tierPolicy(ctx context.Context, m *member.Member,
	snap *settings.Snapshot) (*settings.Snapshot, error) {

	t, err := s.types.GetByID(ctx, m.MembershipTypeID)
	if err != nil {
		return nil, fmt.Errorf("loading membership type: %w", err)
	}
	if t.AnnualLimit == nil && t.FundSharePercent == nil {
		return snap, nil
	}
	pol := *snap
	if t.AnnualLimit != nil {
		pol.AnnualLimit = *t.AnnualLimit
	}
	if t.FundSharePercent != nil {
		// The tier share replaces the scale-derived share; the clinic
		// 100% rule still wins.
		pol.FundSharePercent = *t.FundSharePercent
		pol.Scales = nil
	}
	return &pol, nil
}

func (s *Service) requireActiveMember(ctx context.Context, c *Claim, now time.Time) error {
	m, err := s.members.GetByID(ctx, c.MemberID)
	if err != nil {
		return ErrMemberNotFound
	}
	if !m.ActiveForClaims(now) {
		return apperror.New(apperror.State, "MemberNotActive",
			"claims of inactive members cannot move past submitted")
	}
	return nil
}

// usedBalance totals the fund payable already consumed this benefit year.
// The benefit year is the calendar year.
func (s *Service) usedBalance(ctx context.Context, memberID uuid.UUID, at time.Time) (int64, error) {
	from := time.Date(at.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	used, err := s.claims.SumPayableForMember(ctx, memberID, from, to)
	if err != nil {
		return 0, fmt.Errorf("summing used balance: %w", err)
	}
	return used, nil
}

// SetOverride records a committee's discretionary payable on a decided
// claim. The override supersedes the computed totals and is audited as its
// own action, separate from any status transition.
func (s *Service) SetOverride(ctx context.Context, actor auth.Actor, claimID uuid.UUID,
	amount int64, note string) (*Claim, error) {

	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if amount > OverrideCap {
		return nil, apperror.New(apperror.Validation, "OverrideExceedsCap",
			fmt.Sprintf("override amount exceeds the byelaws cap of %d", OverrideCap))
	}

	var c *Claim
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.claims.GetByID(ctx, claimID)
		if err != nil {
			return apperror.New(apperror.NotFound, "ClaimNotFound", "claim not found")
		}
		if !actor.HasRole(auth.RoleCommittee, auth.RoleAdmin) {
			return ErrInsufficientRole
		}
		if actor.RelatedTo(c.MemberID) {
			return ErrConflictOfInterest
		}
		if c.Status != StatusApproved && c.Status != StatusPaid {
			return apperror.New(apperror.State, "InvalidTransition",
				"overrides apply to approved or paid claims only")
		}
		return s.applyOverride(ctx, actor, c, amount, note)
	})
	if err != nil {
		s.recordDenial(ctx, actor, claimID, "claim:override_set", err)
		return nil, err
	}
	return c, nil
}

func (s *Service) applyOverride(ctx context.Context, actor auth.Actor, c *Claim,
	amount int64, note string) error {
	c.OverrideAmount = &amount
	c.TotalPayable = amount
	c.MemberPayable = c.TotalClaimed - amount
	if c.MemberPayable < 0 {
		c.MemberPayable = 0
	}
	if err := s.claims.Update(ctx, c); err != nil {
		return err
	}
	return s.audit.Append(ctx, actor, audit.Record{
		Action:  "claim:override_set",
		Note:    note,
		ClaimID: &c.ID,
	})
}

// recordDenial logs blocked authorization attempts on the request context,
// outside the rolled-back transaction.
func (s *Service) recordDenial(ctx context.Context, actor auth.Actor, claimID uuid.UUID,
	action string, err error) {
	code := apperror.CodeOf(err)
	if code != "ConflictOfInterest" && code != "InsufficientRole" {
		return
	}
	if auditErr := s.audit.AppendDenied(ctx, actor, audit.Record{
		Action:  action,
		Note:    code,
		ClaimID: &claimID,
	}); auditErr != nil {
		s.log.Error().Err(auditErr).Str("claim_id", claimID.String()).
			Msg("failed to record denied attempt")
	}
}

// -- Queries --

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Claim, error) {
	c, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.New(apperror.NotFound, "ClaimNotFound", "claim not found")
	}
	if !actor.RelatedTo(c.MemberID) &&
		!actor.HasRole(auth.RoleCommittee, auth.RoleTreasurer, auth.RoleTrustee, auth.RoleAdmin) {
		return nil, ErrInsufficientRole
	}
	return c, nil
}

func (s *Service) ListByMember(ctx context.Context, actor auth.Actor, memberID uuid.UUID,
	status string, limit, offset int) ([]*Claim, int, error) {
	if !actor.RelatedTo(memberID) &&
		!actor.HasRole(auth.RoleCommittee, auth.RoleTreasurer, auth.RoleTrustee, auth.RoleAdmin) {
		return nil, 0, ErrInsufficientRole
	}
	return s.claims.ListByMember(ctx, memberID, status, limit, offset)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Claim, int, error) {
	return s.claims.List(ctx, status, limit, offset)
}

// UsedBalance exposes the benefit-year aggregate for reporting.
func (s *Service) UsedBalance(ctx context.Context, memberID uuid.UUID) (int64, error) {
	return s.usedBalance(ctx, memberID, s.now())
}
