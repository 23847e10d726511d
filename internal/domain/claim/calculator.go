package claim

import (
	"github.com/sgss/medfund/internal/domain/settings"
)

// Compute derives the fund/member split for a claim. usedBalance is the
// member's fund payable already consumed this benefit year; the remaining
// ceiling is derived here so callers pass the raw aggregate.
//
// Rounding is always fund-favorable: fund payable floors, member payable
// ceils, and payable + memberShare == subtotal holds exactly after
// clipping.
func Compute(items []*Item, claimType string, flags Flags, snap *settings.Snapshot, usedBalance int64) (Totals, error) {
	var subtotal int64
	for _, item := range items {
		if item.Amount < 0 || item.Quantity <= 0 {
			return Totals{}, ErrInvalidAmount
		}
		subtotal += item.LineTotal()
	}

	ceiling := snap.AnnualLimit
	if flags.CriticalIllness {
		ceiling += snap.CriticalAddon
	}
	ceiling -= usedBalance
	if ceiling < 0 {
		ceiling = 0
	}

	var payable, memberShare int64
	if claimType == TypeChronic {
		// Fixed byelaws split, independent of the settings scales. The
		// member share rounds up so the fund never over-pays a fraction.
		memberShare = ceilPercent(subtotal, ChronicMemberPercent)
		payable = subtotal - memberShare
	} else {
		pct := snap.FundSharePercent
		if flags.AtClinic {
			pct = snap.ClinicOutpatientPercent
		} else if scale, ok := snap.ScaleFor(claimType); ok {
			pct = scale.FundShare
		}
		payable = subtotal * int64(pct) / 100
		memberShare = subtotal - payable
	}

	if payable > ceiling {
		memberShare += payable - ceiling
		payable = ceiling
	}

	return Totals{
		Subtotal:    subtotal,
		Payable:     payable,
		MemberShare: memberShare,
		Ceiling:     ceiling,
	}, nil
}

func ceilPercent(amount int64, pct int) int64 {
	return (amount*int64(pct) + 99) / 100
}
