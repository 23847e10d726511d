package claim

import (
	"fmt"

	"github.com/sgss/medfund/internal/platform/apperror"
)

// Validation errors: caller-fixable, no partial state written.
var (
	ErrMemberNotFound = apperror.New(apperror.Validation, "MemberNotFound",
		"member not found or membership has not started")
	ErrWaitingPeriodNotMet = apperror.New(apperror.Validation, "WaitingPeriodNotMet",
		"the byelaws waiting period has not elapsed")
	ErrMembershipExpired = apperror.New(apperror.Validation, "MembershipExpired",
		"membership has expired")
	ErrSubmissionWindowExpired = apperror.New(apperror.Validation, "SubmissionWindowExpired",
		"claim was submitted after the byelaws submission window")
	ErrMissingServiceDate = apperror.New(apperror.Validation, "MissingServiceDate",
		"the anchoring service date is missing")
	ErrMissingDischargeSummary = apperror.New(apperror.Validation, "MissingDischargeSummary",
		"inpatient claims require a discharge summary attachment")
	ErrExcludedCategory = apperror.New(apperror.Validation, "ExcludedCategory",
		"claim contains items excluded by the byelaws")
	ErrInvalidAmount = apperror.New(apperror.Validation, "InvalidAmount",
		"item amounts must be non-negative and quantities positive")
	ErrEmptyClaim = apperror.New(apperror.Validation, "EmptyClaim",
		"a claim must have at least one item to be submitted")
)

// Authorization errors.
var (
	ErrConflictOfInterest = apperror.New(apperror.Authorization, "ConflictOfInterest",
		"reviewers may not adjudicate their own or a relation's claim")
	ErrInsufficientRole = apperror.New(apperror.Authorization, "InsufficientRole",
		"actor lacks the role required for this action")
)

// State errors.
var (
	ErrAppealWindowExpired = apperror.New(apperror.State, "AppealWindowExpired",
		"the appeal window for this decision has closed")
	ErrAppealAlreadyResolved = apperror.New(apperror.State, "AppealAlreadyResolved",
		"this claim decision already has a resolved appeal")
	ErrAppealPending = apperror.New(apperror.State, "AppealPending",
		"an appeal is already pending on this claim")
)

// Consistency errors.
var (
	ErrVersionConflict = apperror.New(apperror.Conflict, "VersionConflict",
		"claim was modified concurrently, reload and retry")
	ErrPaymentNotReconciled = apperror.New(apperror.State, "PaymentNotReconciled",
		"payment record is not reconciled")
	ErrPaymentMismatch = apperror.New(apperror.Conflict, "PaymentMismatch",
		"payment record amount does not match the claim payable")
)

func errInvalidTransition(from, to string) error {
	return apperror.New(apperror.State, "InvalidTransition",
		fmt.Sprintf("cannot transition claim from %q to %q", from, to))
}
