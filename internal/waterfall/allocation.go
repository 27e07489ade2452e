package waterfall

import (
	"errors"
	"fmt"
)

// ownershipTolerance is how far an ownership set may drift from 100% before
// the split is refused.
const ownershipTolerance = 0.01

// ErrNegativePool is returned when a split is attempted with a negative pool.
var ErrNegativePool = errors.New("pool amount must not be negative")

// SplitByOwnership fans a pooled amount out to investors pro-rata by
// ownership percentage. Shares are rounded to cents and the rounding
// remainder is assigned to the largest owner (ties broken by the smallest
// investor ID) so the shares always sum to the pool exactly.
//
// An empty owner set yields an empty result: a structure with no investor
// memberships produces zero allocations, not an error.
func SplitByOwnership(pool float64, owners []Owner) ([]InvestorShare, error) {
	if pool < 0 {
		return nil, ErrNegativePool
	}
	if len(owners) == 0 {
		return []InvestorShare{}, nil
	}

	total := 0.0
	for _, o := range owners {
		if o.Percent < 0 {
			return nil, fmt.Errorf("investor %s has negative ownership %.4f", o.InvestorID, o.Percent)
		}
		total += o.Percent
	}
	if !floatNear(total, 100, ownershipTolerance) {
		return nil, fmt.Errorf("ownership percentages sum to %.4f, expected 100", total)
	}

	shares := make([]InvestorShare, len(owners))
	allocated := 0.0
	largest := 0
	for i, o := range owners {
		amt := round2(pool * o.Percent / 100)
		shares[i] = InvestorShare{InvestorID: o.InvestorID, Percent: o.Percent, Amount: amt}
		allocated = round2(allocated + amt)

		if o.Percent > owners[largest].Percent ||
			(o.Percent == owners[largest].Percent && o.InvestorID < owners[largest].InvestorID) {
			largest = i
		}
	}

	if remainder := round2(pool - allocated); remainder != 0 {
		shares[largest].Amount = round2(shares[largest].Amount + remainder)
	}

	return shares, nil
}
