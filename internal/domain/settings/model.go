package settings

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scale is the per-claim-type reimbursement split. Shares are whole
// percents and must sum to 100; Ceiling caps the fund payable for a single
// claim of that type.
type Scale struct {
	ClaimType   string `json:"claim_type"`
	FundShare   int    `json:"fund_share"`
	MemberShare int    `json:"member_share"`
	Ceiling     int64  `json:"ceiling"`
}

// Snapshot is one immutable version of the byelaws reimbursement
// configuration. Publishing creates a new version; existing versions are
// never edited, so any computation can be replayed under the version it
// recorded.
type Snapshot struct {
	ID                      uuid.UUID        `json:"id"`
	Version                 int              `json:"version"`
	AnnualLimit             int64            `json:"annual_limit"`
	CriticalAddon           int64            `json:"critical_addon"`
	FundSharePercent        int              `json:"fund_share_percent"`
	ClinicOutpatientPercent int              `json:"clinic_outpatient_percent"`
	WaitingPeriodDays       int              `json:"waiting_period_days"`
	SubmissionWindowDays    int              `json:"submission_window_days"`
	AppealWindowDays        int              `json:"appeal_window_days"`
	Scales                  []Scale          `json:"scales"`
	ProcedureTiers          map[string]int64 `json:"procedure_tiers,omitempty"`
	Active                  bool             `json:"active"`
	CreatedAt               time.Time        `json:"created_at"`
}

// ScaleFor returns the scale row for the claim type, if configured.
func (s *Snapshot) ScaleFor(claimType string) (Scale, bool) {
	for _, sc := range s.Scales {
		if sc.ClaimType == claimType {
			return sc, true
		}
	}
	return Scale{}, false
}

// Validate checks the snapshot before publication.
func (s *Snapshot) Validate() error {
	if s.AnnualLimit <= 0 {
		return fmt.Errorf("annual_limit must be positive")
	}
	if s.CriticalAddon < 0 {
		return fmt.Errorf("critical_addon must not be negative")
	}
	if s.FundSharePercent < 0 || s.FundSharePercent > 100 {
		return fmt.Errorf("fund_share_percent must be between 0 and 100")
	}
	if s.ClinicOutpatientPercent < 0 || s.ClinicOutpatientPercent > 100 {
		return fmt.Errorf("clinic_outpatient_percent must be between 0 and 100")
	}
	if s.WaitingPeriodDays < 0 || s.SubmissionWindowDays <= 0 || s.AppealWindowDays <= 0 {
		return fmt.Errorf("byelaws windows must be positive")
	}
	for _, sc := range s.Scales {
		if sc.FundShare+sc.MemberShare != 100 {
			return fmt.Errorf("scale %q shares must sum to 100", sc.ClaimType)
		}
		if sc.Ceiling < 0 {
			return fmt.Errorf("scale %q ceiling must not be negative", sc.ClaimType)
		}
	}
	return nil
}

// Defaults returns the byelaws configuration the fund started with, used
// for seeding a fresh database.
func Defaults() *Snapshot {
	return &Snapshot{
		AnnualLimit:             250000,
		CriticalAddon:           200000,
		FundSharePercent:        80,
		ClinicOutpatientPercent: 100,
		WaitingPeriodDays:       60,
		SubmissionWindowDays:    90,
		AppealWindowDays:        30,
		Scales: []Scale{
			{ClaimType: "outpatient", FundShare: 80, MemberShare: 20, Ceiling: 50000},
			{ClaimType: "inpatient", FundShare: 85, MemberShare: 15, Ceiling: 200000},
			{ClaimType: "chronic", FundShare: 60, MemberShare: 40, Ceiling: 120000},
		},
	}
}
