package claim

import (
	"strings"
	"time"

	"github.com/sgss/medfund/internal/domain/member"
	"github.com/sgss/medfund/internal/domain/settings"
)

// Rules are the byelaws values eligibility is judged against, extracted
// from a settings snapshot so the check itself stays pure.
type Rules struct {
	WaitingPeriodDays    int
	SubmissionWindowDays int
	Exclusions           []string
}

// DefaultExclusions lists the treatments the byelaws never reimburse.
// Matching is on lowercase substrings of item categories and descriptions.
var DefaultExclusions = []string{"cosmetic", "infertility", "transport", "mortuary"}

func RulesFromSnapshot(s *settings.Snapshot) Rules {
	return Rules{
		WaitingPeriodDays:    s.WaitingPeriodDays,
		SubmissionWindowDays: s.SubmissionWindowDays,
		Exclusions:           DefaultExclusions,
	}
}

// EligibilityInput is everything the checker needs besides the member
// record. HasDischargeSummary is the attachment collaborator's signal, not
// the file itself.
type EligibilityInput struct {
	ClaimType           string
	FirstVisit          *time.Time
	Discharge           *time.Time
	HasDischargeSummary bool
	Items               []*Item
}

// CheckEligibility validates a prospective claim against the byelaws.
// Rules run in order and the first failure wins; the check is pure and
// writes nothing.
func CheckEligibility(m *member.Member, in EligibilityInput, rules Rules, now time.Time) error {
	// 1. Membership must exist and have started.
	if m == nil || m.ValidFrom == nil || m.ValidFrom.After(now) {
		return ErrMemberNotFound
	}

	// 2. Waiting period. BenefitsFrom is authoritative when set; otherwise
	// it is derived from the validity start.
	benefitsFrom := m.ValidFrom.AddDate(0, 0, rules.WaitingPeriodDays)
	if m.BenefitsFrom != nil {
		benefitsFrom = *m.BenefitsFrom
	}
	if now.Before(benefitsFrom) {
		return ErrWaitingPeriodNotMet
	}

	// 3. Membership must not be expired.
	if m.ValidTo != nil && m.ValidTo.Before(now) {
		return ErrMembershipExpired
	}

	// 4. Submission window, anchored on the first visit for outpatient and
	// chronic claims, the discharge date for inpatient ones.
	anchor := in.FirstVisit
	if in.ClaimType == TypeInpatient {
		anchor = in.Discharge
	}
	if anchor == nil {
		return ErrMissingServiceDate
	}
	if now.Sub(*anchor) > time.Duration(rules.SubmissionWindowDays)*24*time.Hour {
		return ErrSubmissionWindowExpired
	}

	// 5. Inpatient claims need the discharge summary declared.
	if in.ClaimType == TypeInpatient && !in.HasDischargeSummary {
		return ErrMissingDischargeSummary
	}

	// 6. Exclusion list.
	for _, item := range in.Items {
		if matchesExclusion(item, rules.Exclusions) {
			return ErrExcludedCategory
		}
	}

	return nil
}

func matchesExclusion(item *Item, exclusions []string) bool {
	category := strings.ToLower(item.Category)
	description := strings.ToLower(item.Description)
	for _, ex := range exclusions {
		if strings.Contains(category, ex) || strings.Contains(description, ex) {
			return true
		}
	}
	return false
}
