package meeting

import (
	"fmt"

	"github.com/sgss/medfund/internal/platform/apperror"
)

var (
	// ErrMeetingLocked guards the one-way barrier: nothing on a locked
	// meeting may change, ever.
	ErrMeetingLocked = apperror.New(apperror.State, "MeetingLocked",
		"meeting is locked and can no longer be modified")

	// ErrAlreadyScheduled rejects linking a claim that already sits on
	// another unlocked meeting's queue.
	ErrAlreadyScheduled = apperror.New(apperror.State, "AlreadyScheduled",
		"claim is already linked to an unlocked meeting")

	ErrQuorumNotConfirmed = apperror.New(apperror.State, "QuorumNotConfirmed",
		"meeting cannot be ratified before quorum is confirmed")

	// ErrAlreadyRatified makes a second Ratify an explicit error instead
	// of re-applying claim transitions.
	ErrAlreadyRatified = apperror.New(apperror.State, "AlreadyRatified",
		"meeting has already been ratified")

	ErrInsufficientRole = apperror.New(apperror.Authorization, "InsufficientRole",
		"actor's role does not permit this action")

	// ErrVersionConflict reports a lost optimistic-concurrency race on a
	// meeting row.
	ErrVersionConflict = apperror.New(apperror.Conflict, "VersionConflict",
		"meeting was modified concurrently, reload and retry")
)

func errInvalidTransition(from, to string) error {
	return apperror.New(apperror.State, "InvalidTransition",
		fmt.Sprintf("meeting cannot move from %q to %q", from, to))
}

func errNotDraft(status, what string) error {
	if status == StatusLocked {
		return ErrMeetingLocked
	}
	return apperror.New(apperror.State, "InvalidTransition",
		fmt.Sprintf("%s requires a draft meeting, status is %q", what, status))
}
