package waterfall

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrNegativeAmount is returned when a run is attempted with a negative
	// distribution amount.
	ErrNegativeAmount = errors.New("distribution amount must not be negative")

	// ErrInvalidFeeRate is returned when the management fee rate is outside
	// 0..100. A negative rate would inflate the net pool past the cash on
	// hand; a rate above 100 would drive it negative.
	ErrInvalidFeeRate = errors.New("management fee rate must be between 0 and 100")

	// ErrInconsistentAllocation indicates the tier fills failed to reconcile
	// with the distributable amount. This is an internal arithmetic fault and
	// the result must never be persisted.
	ErrInconsistentAllocation = errors.New("tier allocations do not sum to the distributable amount")
)

const daysPerYear = 365.25

// RunInput carries everything a waterfall pass needs: the distribution
// amount, the structure's active ladder and its cumulative ledger state.
type RunInput struct {
	// TotalAmount is the gross cash being distributed.
	TotalAmount float64

	// ManagementFeePct is the structure's fee rate. The fee is carved out of
	// the gross amount before the tiers run; zero means no fee.
	ManagementFeePct float64

	// Tiers is the structure's active 4-tier ladder.
	Tiers []Tier

	// CapitalContributed is total capital called and paid in to date.
	CapitalContributed float64

	// CapitalReturned is cumulative tier-1 dollars from prior distributions.
	CapitalReturned float64

	// PreferredPaid is cumulative tier-2 dollars from prior distributions.
	PreferredPaid float64

	// CatchUpPaid is cumulative tier-3 dollars from prior distributions.
	CatchUpPaid float64

	// FirstCallDate anchors the hurdle accrual clock. A zero value means no
	// capital has been called and the preferred-return target is zero.
	FirstCallDate time.Time

	// AsOf is the distribution date the hurdle accrues to.
	AsOf time.Time
}

// Result is a completed waterfall pass.
type Result struct {
	TierAmounts   [NumTiers]float64 `json:"tier_amounts"`
	LPTotal       float64           `json:"lp_total"`
	GPTotal       float64           `json:"gp_total"`
	ManagementFee float64           `json:"management_fee"`

	// NetAmount is the distributable amount after the fee carve-out. The
	// tier amounts always sum to it exactly.
	NetAmount float64 `json:"net_amount"`
}

// PreferredReturnTarget converts an IRR hurdle into the cumulative dollar
// amount of preferred return owed: contributed capital compounded annually at
// the hurdle rate over the elapsed years, minus the principal itself.
func PreferredReturnTarget(contributed, hurdleRatePct, years float64) float64 {
	if contributed <= 0 || hurdleRatePct <= 0 || years <= 0 {
		return 0
	}
	return contributed * (math.Pow(1+hurdleRatePct/100, years) - 1)
}

// CatchUpTarget is the cumulative GP catch-up owed so that the GP holds its
// carry fraction of post-capital profit: carry/(1-carry) times the cumulative
// preferred return.
func CatchUpTarget(carryFraction, cumulativePreferred float64) float64 {
	if carryFraction <= 0 || cumulativePreferred <= 0 {
		return 0
	}
	if carryFraction >= 1 {
		return math.MaxFloat64
	}
	return carryFraction / (1 - carryFraction) * cumulativePreferred
}

// ElapsedYears measures the hurdle accrual period between two dates.
func ElapsedYears(from, to time.Time) float64 {
	if from.IsZero() || !to.After(from) {
		return 0
	}
	return to.Sub(from).Hours() / 24 / daysPerYear
}

// Run executes one waterfall pass. Tiers fill in ladder order, each consuming
// min(remaining, capacity); tier 4 has no cap and absorbs the residual. All
// amounts are rounded to cents and reconciled so the tier amounts sum to the
// net distributable amount exactly.
func Run(in RunInput) (Result, error) {
	if in.TotalAmount < 0 {
		return Result{}, ErrNegativeAmount
	}
	if in.ManagementFeePct < 0 || in.ManagementFeePct > 100 {
		return Result{}, ErrInvalidFeeRate
	}
	if v := ValidateLadder(in.Tiers); !v.IsValid {
		return Result{}, fmt.Errorf("invalid tier ladder: %s", strings.Join(v.Errors, "; "))
	}

	tiers := make([]Tier, len(in.Tiers))
	copy(tiers, in.Tiers)
	for i := range tiers {
		for j := i + 1; j < len(tiers); j++ {
			if tiers[j].TierNumber < tiers[i].TierNumber {
				tiers[i], tiers[j] = tiers[j], tiers[i]
			}
		}
	}

	res := Result{
		ManagementFee: round2(in.TotalAmount * in.ManagementFeePct / 100),
	}
	res.NetAmount = round2(in.TotalAmount - res.ManagementFee)

	remaining := res.NetAmount
	preferredFilled := 0.0

	for i, t := range tiers {
		capacity := tierCapacity(t, tiers, in, preferredFilled)
		fill := round2(math.Min(remaining, capacity))
		if fill < 0 {
			fill = 0
		}
		res.TierAmounts[i] = fill
		remaining = round2(remaining - fill)
		if t.TierNumber == 2 {
			preferredFilled = fill
		}
	}

	// Absorb any residual cent drift into the last tier that received money.
	sum := 0.0
	last := -1
	for i, a := range res.TierAmounts {
		sum = round2(sum + a)
		if a > 0 {
			last = i
		}
	}
	if drift := round2(res.NetAmount - sum); drift != 0 {
		if last < 0 {
			last = NumTiers - 1
		}
		res.TierAmounts[last] = round2(res.TierAmounts[last] + drift)
	}

	sum = 0
	for _, a := range res.TierAmounts {
		if a < 0 {
			return Result{}, ErrInconsistentAllocation
		}
		sum = round2(sum + a)
	}
	if sum != res.NetAmount {
		return Result{}, ErrInconsistentAllocation
	}

	for i, t := range tiers {
		lp := round2(res.TierAmounts[i] * t.LPSharePercent / 100)
		gp := round2(res.TierAmounts[i] - lp)
		res.LPTotal = round2(res.LPTotal + lp)
		res.GPTotal = round2(res.GPTotal + gp)
	}

	return res, nil
}

// tierCapacity derives how many dollars a tier can still absorb given the
// structure's cumulative state.
func tierCapacity(t Tier, tiers []Tier, in RunInput, preferredFilled float64) float64 {
	switch t.TierNumber {
	case 1:
		target := in.CapitalContributed
		if t.ThresholdAmount != nil {
			target = *t.ThresholdAmount
		}
		return math.Max(0, target-in.CapitalReturned)

	case 2:
		var target float64
		switch {
		case t.ThresholdAmount != nil:
			target = *t.ThresholdAmount
		case t.ThresholdIRR != nil:
			years := ElapsedYears(in.FirstCallDate, in.AsOf)
			target = PreferredReturnTarget(in.CapitalContributed, *t.ThresholdIRR, years)
		}
		return math.Max(0, target-in.PreferredPaid)

	case 3:
		if t.ThresholdAmount != nil {
			return math.Max(0, *t.ThresholdAmount-in.CatchUpPaid)
		}
		carry := carryFraction(tiers)
		target := CatchUpTarget(carry, in.PreferredPaid+preferredFilled)
		if target == math.MaxFloat64 {
			return target
		}
		return math.Max(0, target-in.CatchUpPaid)

	default:
		// Carried interest has no cap.
		return math.MaxFloat64
	}
}

// carryFraction reads the GP's carry from the final split tier.
func carryFraction(tiers []Tier) float64 {
	for _, t := range tiers {
		if t.TierNumber == NumTiers {
			return t.GPSharePercent / 100
		}
	}
	return 0
}
