package auth

import (
	"context"

	"github.com/google/uuid"
)

// Fund roles. An actor's capability set is resolved once per request from the
// token's roles claim and passed into every engine call.
const (
	RoleMember    = "member"
	RoleCommittee = "committee"
	RoleTreasurer = "treasurer"
	RoleTrustee   = "trustee"
	RoleAdmin     = "admin"
)

// Actor is the authenticated caller as seen by the adjudication engine.
// MemberID links a user account to their fund membership; RelatedMemberIDs
// lists memberships the actor is a declared dependant or guardian of. Both
// feed the conflict-of-interest guard.
type Actor struct {
	ID               uuid.UUID
	Name             string
	Roles            []string
	MemberID         *uuid.UUID
	RelatedMemberIDs []uuid.UUID
}

// System is the actor recorded for engine-initiated actions.
func System() Actor {
	return Actor{Name: "system", Roles: []string{RoleAdmin}}
}

// HasRole reports whether the actor holds any of the given roles. Admin
// satisfies every role check, mirroring the fund's superuser convention.
func (a Actor) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range a.Roles {
			if have == want || have == RoleAdmin {
				return true
			}
		}
	}
	return false
}

// RelatedTo reports whether the actor is the member or a declared relation of
// the member; such actors must not adjudicate that member's claims.
func (a Actor) RelatedTo(memberID uuid.UUID) bool {
	if a.MemberID != nil && *a.MemberID == memberID {
		return true
	}
	for _, id := range a.RelatedMemberIDs {
		if id == memberID {
			return true
		}
	}
	return false
}

// PrimaryRole returns the role recorded on audit entries, preferring the most
// privileged one the actor holds.
func (a Actor) PrimaryRole() string {
	order := []string{RoleAdmin, RoleTrustee, RoleTreasurer, RoleCommittee, RoleMember}
	for _, r := range order {
		for _, have := range a.Roles {
			if have == r {
				return r
			}
		}
	}
	if len(a.Roles) > 0 {
		return a.Roles[0]
	}
	return "system"
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a context carrying the resolved actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext retrieves the actor placed in the context by the auth
// middleware. ok is false for unauthenticated contexts.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
