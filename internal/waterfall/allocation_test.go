package waterfall

import "testing"

// ============================================================================
// Pro-rata splits
// ============================================================================

func TestSplitByOwnershipExact(t *testing.T) {
	owners := []Owner{
		{InvestorID: "inv-a", Percent: 60},
		{InvestorID: "inv-b", Percent: 40},
	}

	shares, err := SplitByOwnership(100_000, owners)
	if err != nil {
		t.Fatalf("SplitByOwnership() error: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("got %d shares, want 2", len(shares))
	}
	if shares[0].Amount != 60_000 || shares[1].Amount != 40_000 {
		t.Errorf("shares = %.2f/%.2f, want 60000/40000", shares[0].Amount, shares[1].Amount)
	}
}

func TestSplitByOwnershipRemainder(t *testing.T) {
	owners := []Owner{
		{InvestorID: "inv-a", Percent: 33.33},
		{InvestorID: "inv-b", Percent: 33.33},
		{InvestorID: "inv-c", Percent: 33.34},
	}

	shares, err := SplitByOwnership(100, owners)
	if err != nil {
		t.Fatalf("SplitByOwnership() error: %v", err)
	}

	sum := 0.0
	for _, s := range shares {
		sum = round2(sum + s.Amount)
	}
	if sum != 100 {
		t.Errorf("shares sum to %.2f, want 100.00 exactly", sum)
	}
	// inv-c holds the largest stake and absorbs the rounding remainder.
	if shares[2].Amount != 33.34 {
		t.Errorf("inv-c share = %.2f, want 33.34", shares[2].Amount)
	}
}

func TestSplitByOwnershipTieBreak(t *testing.T) {
	owners := []Owner{
		{InvestorID: "inv-b", Percent: 50},
		{InvestorID: "inv-a", Percent: 50},
	}

	shares, err := SplitByOwnership(100.01, owners)
	if err != nil {
		t.Fatalf("SplitByOwnership() error: %v", err)
	}
	// 50% of 100.01 rounds to 50.01 each, one cent over; the remainder
	// (-0.01) lands on the lexicographically smallest ID.
	var a, b float64
	for _, s := range shares {
		switch s.InvestorID {
		case "inv-a":
			a = s.Amount
		case "inv-b":
			b = s.Amount
		}
	}
	if round2(a+b) != 100.01 {
		t.Errorf("shares sum to %.2f, want 100.01", a+b)
	}
	if a != 50.00 || b != 50.01 {
		t.Errorf("shares a/b = %.2f/%.2f, want 50.00/50.01", a, b)
	}
}

func TestSplitByOwnershipSumInvariant(t *testing.T) {
	owners := []Owner{
		{InvestorID: "inv-a", Percent: 17.5},
		{InvestorID: "inv-b", Percent: 22.25},
		{InvestorID: "inv-c", Percent: 11.11},
		{InvestorID: "inv-d", Percent: 49.14},
	}
	pools := []float64{0, 0.01, 1, 999.99, 100_000, 1_234_567.89}

	for _, pool := range pools {
		shares, err := SplitByOwnership(pool, owners)
		if err != nil {
			t.Fatalf("SplitByOwnership(%.2f) error: %v", pool, err)
		}
		sum := 0.0
		for _, s := range shares {
			sum = round2(sum + s.Amount)
		}
		if sum != pool {
			t.Errorf("pool %.2f: shares sum to %.2f", pool, sum)
		}
	}
}

func TestSplitByOwnershipEdges(t *testing.T) {
	shares, err := SplitByOwnership(50_000, nil)
	if err != nil {
		t.Fatalf("empty owner set should not error: %v", err)
	}
	if len(shares) != 0 {
		t.Errorf("empty owner set produced %d shares", len(shares))
	}

	if _, err := SplitByOwnership(-1, []Owner{{InvestorID: "a", Percent: 100}}); err == nil {
		t.Error("negative pool should fail")
	}

	if _, err := SplitByOwnership(100, []Owner{{InvestorID: "a", Percent: 90}}); err == nil {
		t.Error("ownership not summing to 100 should fail")
	}

	if _, err := SplitByOwnership(100, []Owner{
		{InvestorID: "a", Percent: 150},
		{InvestorID: "b", Percent: -50},
	}); err == nil {
		t.Error("negative ownership should fail")
	}
}
