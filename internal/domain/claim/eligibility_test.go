package claim

import (
	"errors"
	"testing"
	"time"

	"github.com/sgss/medfund/internal/domain/member"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func activeMember(validFrom time.Time) *member.Member {
	benefits := validFrom.AddDate(0, 0, 60)
	return &member.Member{
		Status:       member.StatusActive,
		ValidFrom:    &validFrom,
		BenefitsFrom: &benefits,
	}
}

func testRules() Rules {
	return Rules{WaitingPeriodDays: 60, SubmissionWindowDays: 90, Exclusions: DefaultExclusions}
}

func outpatientInput(anchor time.Time) EligibilityInput {
	return EligibilityInput{
		ClaimType:  TypeOutpatient,
		FirstVisit: &anchor,
		Items:      []*Item{{Category: "consultation", Amount: 500, Quantity: 1}},
	}
}

func TestEligibilityPasses(t *testing.T) {
	m := activeMember(testNow.AddDate(0, -6, 0))
	if err := CheckEligibility(m, outpatientInput(testNow.AddDate(0, 0, -10)), testRules(), testNow); err != nil {
		t.Errorf("expected eligible, got %v", err)
	}
}

func TestEligibilityMemberNotFound(t *testing.T) {
	if err := CheckEligibility(nil, outpatientInput(testNow), testRules(), testNow); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("nil member: got %v", err)
	}

	future := testNow.AddDate(0, 1, 0)
	m := &member.Member{Status: member.StatusActive, ValidFrom: &future}
	if err := CheckEligibility(m, outpatientInput(testNow), testRules(), testNow); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("future valid_from: got %v", err)
	}
}

func TestEligibilityWaitingPeriod(t *testing.T) {
	// Joined 10 days ago with a 60-day waiting period.
	m := activeMember(testNow.AddDate(0, 0, -10))
	err := CheckEligibility(m, outpatientInput(testNow.AddDate(0, 0, -1)), testRules(), testNow)
	if !errors.Is(err, ErrWaitingPeriodNotMet) {
		t.Errorf("got %v, want ErrWaitingPeriodNotMet", err)
	}
}

func TestEligibilityDerivedBenefitsDate(t *testing.T) {
	// No explicit benefits_from; derived from valid_from + waiting period.
	validFrom := testNow.AddDate(0, 0, -30)
	m := &member.Member{Status: member.StatusActive, ValidFrom: &validFrom}
	err := CheckEligibility(m, outpatientInput(testNow.AddDate(0, 0, -1)), testRules(), testNow)
	if !errors.Is(err, ErrWaitingPeriodNotMet) {
		t.Errorf("got %v, want ErrWaitingPeriodNotMet", err)
	}
}

func TestEligibilityMembershipExpired(t *testing.T) {
	m := activeMember(testNow.AddDate(-3, 0, 0))
	expired := testNow.AddDate(0, -1, 0)
	m.ValidTo = &expired
	err := CheckEligibility(m, outpatientInput(testNow.AddDate(0, 0, -5)), testRules(), testNow)
	if !errors.Is(err, ErrMembershipExpired) {
		t.Errorf("got %v, want ErrMembershipExpired", err)
	}
}

func TestEligibilitySubmissionWindow(t *testing.T) {
	m := activeMember(testNow.AddDate(-1, 0, 0))

	err := CheckEligibility(m, outpatientInput(testNow.AddDate(0, 0, -120)), testRules(), testNow)
	if !errors.Is(err, ErrSubmissionWindowExpired) {
		t.Errorf("stale visit: got %v, want ErrSubmissionWindowExpired", err)
	}

	in := outpatientInput(testNow)
	in.FirstVisit = nil
	if err := CheckEligibility(m, in, testRules(), testNow); !errors.Is(err, ErrMissingServiceDate) {
		t.Errorf("missing anchor: got %v, want ErrMissingServiceDate", err)
	}
}

func TestEligibilityInpatientAnchorsOnDischarge(t *testing.T) {
	m := activeMember(testNow.AddDate(-1, 0, 0))
	oldVisit := testNow.AddDate(0, 0, -200)
	discharge := testNow.AddDate(0, 0, -10)

	in := EligibilityInput{
		ClaimType:           TypeInpatient,
		FirstVisit:          &oldVisit,
		Discharge:           &discharge,
		HasDischargeSummary: true,
		Items:               []*Item{{Category: "inpatient", Amount: 5000, Quantity: 1}},
	}
	if err := CheckEligibility(m, in, testRules(), testNow); err != nil {
		t.Errorf("discharge within window should pass despite old first visit: %v", err)
	}
}

func TestEligibilityMissingDischargeSummary(t *testing.T) {
	m := activeMember(testNow.AddDate(-1, 0, 0))
	discharge := testNow.AddDate(0, 0, -10)
	in := EligibilityInput{
		ClaimType: TypeInpatient,
		Discharge: &discharge,
		Items:     []*Item{{Category: "inpatient", Amount: 5000, Quantity: 1}},
	}
	if err := CheckEligibility(m, in, testRules(), testNow); !errors.Is(err, ErrMissingDischargeSummary) {
		t.Errorf("got %v, want ErrMissingDischargeSummary", err)
	}
}

func TestEligibilityExclusions(t *testing.T) {
	m := activeMember(testNow.AddDate(-1, 0, 0))
	anchor := testNow.AddDate(0, 0, -5)

	cases := []*Item{
		{Category: "other", Description: "Cosmetic surgery consultation", Amount: 100, Quantity: 1},
		{Category: "transport", Description: "ambulance", Amount: 100, Quantity: 1},
		{Category: "other", Description: "Infertility treatment", Amount: 100, Quantity: 1},
		{Category: "other", Description: "mortuary fees", Amount: 100, Quantity: 1},
	}
	for _, item := range cases {
		in := EligibilityInput{ClaimType: TypeOutpatient, FirstVisit: &anchor, Items: []*Item{item}}
		if err := CheckEligibility(m, in, testRules(), testNow); !errors.Is(err, ErrExcludedCategory) {
			t.Errorf("%s/%s: got %v, want ErrExcludedCategory", item.Category, item.Description, err)
		}
	}
}

func TestEligibilityFirstFailureWins(t *testing.T) {
	// Member within waiting period AND an excluded item: the waiting-period
	// rule fires first.
	m := activeMember(testNow.AddDate(0, 0, -10))
	anchor := testNow.AddDate(0, 0, -5)
	in := EligibilityInput{
		ClaimType:  TypeOutpatient,
		FirstVisit: &anchor,
		Items:      []*Item{{Category: "other", Description: "cosmetic filler", Amount: 100, Quantity: 1}},
	}
	if err := CheckEligibility(m, in, testRules(), testNow); !errors.Is(err, ErrWaitingPeriodNotMet) {
		t.Errorf("got %v, want ErrWaitingPeriodNotMet first", err)
	}
}
