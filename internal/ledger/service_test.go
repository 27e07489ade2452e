package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"investment-platform/internal/database"
	"investment-platform/internal/waterfall"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// fakeStore is an in-memory Store that mirrors the repository's conditional
// update semantics.
type fakeStore struct {
	structures    map[string]*database.Structure
	members       map[string][]*database.StructureInvestor
	tiers         map[string][]*database.WaterfallTierRow
	calls         map[string]*database.CapitalCall
	callAllocs    map[string][]*database.CapitalCallAllocation
	distributions map[string]*database.Distribution
	distAllocs    map[string][]*database.DistributionAllocation
	investments   map[string]*database.Investment
	nextID        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		structures:    make(map[string]*database.Structure),
		members:       make(map[string][]*database.StructureInvestor),
		tiers:         make(map[string][]*database.WaterfallTierRow),
		calls:         make(map[string]*database.CapitalCall),
		callAllocs:    make(map[string][]*database.CapitalCallAllocation),
		distributions: make(map[string]*database.Distribution),
		distAllocs:    make(map[string][]*database.DistributionAllocation),
		investments:   make(map[string]*database.Investment),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) GetStructureByID(_ context.Context, id string) (*database.Structure, error) {
	s, ok := f.structures[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) GetStructureInvestors(_ context.Context, structureID string) ([]*database.StructureInvestor, error) {
	return f.members[structureID], nil
}

func (f *fakeStore) GetActiveTiers(_ context.Context, structureID string) ([]*database.WaterfallTierRow, error) {
	var active []*database.WaterfallTierRow
	for _, t := range f.tiers[structureID] {
		if t.IsActive {
			active = append(active, t)
		}
	}
	return active, nil
}

func (f *fakeStore) ReplaceTiers(_ context.Context, structureID string, tiers []*database.WaterfallTierRow) error {
	for _, t := range f.tiers[structureID] {
		t.IsActive = false
	}
	for _, t := range tiers {
		t.ID = f.id("tier")
		t.StructureID = structureID
		f.tiers[structureID] = append(f.tiers[structureID], t)
	}
	return nil
}

func (f *fakeStore) NextCallNumber(_ context.Context, structureID string) (int, error) {
	n := 0
	for _, c := range f.calls {
		if c.StructureID == structureID && c.CallNumber > n {
			n = c.CallNumber
		}
	}
	return n + 1, nil
}

func (f *fakeStore) CreateCapitalCallWithAllocations(_ context.Context, call *database.CapitalCall, allocations []*database.CapitalCallAllocation) error {
	call.ID = f.id("call")
	f.calls[call.ID] = call
	for _, a := range allocations {
		a.ID = f.id("alloc")
		a.CapitalCallID = call.ID
	}
	f.callAllocs[call.ID] = allocations

	s := f.structures[call.StructureID]
	s.TotalCalled += call.TotalCallAmount
	if s.FirstCallDate == nil {
		d := call.CallDate
		s.FirstCallDate = &d
	}
	return nil
}

func (f *fakeStore) GetCapitalCallByID(_ context.Context, id string) (*database.CapitalCall, error) {
	c, ok := f.calls[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) GetCapitalCallAllocations(_ context.Context, capitalCallID string) ([]*database.CapitalCallAllocation, error) {
	return f.callAllocs[capitalCallID], nil
}

func (f *fakeStore) MarkCapitalCallSent(_ context.Context, id string) (bool, error) {
	c, ok := f.calls[id]
	if !ok || c.Status != database.CallStatusDraft {
		return false, nil
	}
	now := time.Now()
	c.Status = database.CallStatusSent
	c.SentDate = &now
	return true, nil
}

func (f *fakeStore) RecordCapitalCallPayment(_ context.Context, id string, amount float64) (*database.CapitalCall, bool, error) {
	c, ok := f.calls[id]
	if !ok || c.TotalPaidAmount+amount > c.TotalCallAmount {
		return nil, false, nil
	}
	c.TotalPaidAmount += amount
	c.TotalUnpaidAmount = c.TotalCallAmount - c.TotalPaidAmount
	switch {
	case c.TotalPaidAmount >= c.TotalCallAmount:
		c.Status = database.CallStatusPaid
	case c.Status == database.CallStatusDraft && c.TotalPaidAmount > 0:
		c.Status = database.CallStatusPartiallyPaid
	}
	return c, true, nil
}

func (f *fakeStore) NextDistributionNumber(_ context.Context, structureID string) (int, error) {
	n := 0
	for _, d := range f.distributions {
		if d.StructureID == structureID && d.DistributionNumber > n {
			n = d.DistributionNumber
		}
	}
	return n + 1, nil
}

func (f *fakeStore) CreateDistribution(_ context.Context, d *database.Distribution) error {
	d.ID = f.id("dist")
	f.distributions[d.ID] = d
	return nil
}

func (f *fakeStore) GetDistributionByID(_ context.Context, id string) (*database.Distribution, error) {
	d, ok := f.distributions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return d, nil
}

func (f *fakeStore) ApplyWaterfallOutcome(_ context.Context, distributionID, structureID string, out database.WaterfallOutcome) (bool, error) {
	d, ok := f.distributions[distributionID]
	if !ok || d.WaterfallApplied {
		return false, nil
	}
	d.WaterfallApplied = true
	d.Tier1Amount = out.Tier1Amount
	d.Tier2Amount = out.Tier2Amount
	d.Tier3Amount = out.Tier3Amount
	d.Tier4Amount = out.Tier4Amount
	d.LPTotalAmount = out.LPTotalAmount
	d.GPTotalAmount = out.GPTotalAmount
	d.ManagementFeeAmount = out.ManagementFeeAmount

	s := f.structures[structureID]
	s.TotalDistributed += out.Tier1Amount + out.Tier2Amount + out.Tier3Amount + out.Tier4Amount + out.ManagementFeeAmount
	s.TotalCapitalReturned += out.Tier1Amount
	s.TotalPreferredPaid += out.Tier2Amount
	s.TotalCatchUpPaid += out.Tier3Amount
	s.TotalCarryPaid += out.Tier4Amount
	return true, nil
}

func (f *fakeStore) CreateDistributionAllocations(_ context.Context, allocations []*database.DistributionAllocation) error {
	for _, a := range allocations {
		a.ID = f.id("dalloc")
		f.distAllocs[a.DistributionID] = append(f.distAllocs[a.DistributionID], a)
	}
	return nil
}

func (f *fakeStore) GetDistributionAllocations(_ context.Context, distributionID string) ([]*database.DistributionAllocation, error) {
	return f.distAllocs[distributionID], nil
}

func (f *fakeStore) MarkDistributionPaid(_ context.Context, id string) error {
	d, ok := f.distributions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	d.Status = database.DistributionPaid
	d.PaidDate = &now
	return nil
}

func (f *fakeStore) GetInvestmentByID(_ context.Context, id string) (*database.Investment, error) {
	inv, ok := f.investments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return inv, nil
}

func (f *fakeStore) ExitInvestment(_ context.Context, id string, exitValue, realizedGain float64) (bool, error) {
	inv, ok := f.investments[id]
	if !ok || inv.Status != database.InvestmentActive {
		return false, nil
	}
	inv.Status = database.InvestmentExited
	inv.ExitValue = &exitValue
	inv.RealizedGain = &realizedGain
	return true, nil
}

// ============================================================================
// Fixtures
// ============================================================================

func floatEquals(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.005
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, nil, nil, zerolog.Nop())
}

// seedStructure creates a $1M structure with two investors (60/40), a default
// ladder and a first call two years in the past.
func seedStructure(store *fakeStore) *database.Structure {
	firstCall := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &database.Structure{
		ID:                 "struct-1",
		Name:               "Evergreen Fund I",
		StructureType:      database.StructureFund,
		Level:              1,
		TotalCommitment:    1_000_000,
		TotalCalled:        1_000_000,
		CarriedInterestPct: 20,
		HurdleRatePct:      8,
		FirstCallDate:      &firstCall,
	}
	store.structures[s.ID] = s
	store.members[s.ID] = []*database.StructureInvestor{
		{ID: "m-1", StructureID: s.ID, InvestorUserID: "inv-a", CommitmentAmount: 600_000, Status: "Active"},
		{ID: "m-2", StructureID: s.ID, InvestorUserID: "inv-b", CommitmentAmount: 400_000, Status: "Active"},
	}
	for _, t := range waterfall.DefaultLadder(s.ID, s.HurdleRatePct, s.CarriedInterestPct) {
		tier := t
		store.tiers[s.ID] = append(store.tiers[s.ID], &database.WaterfallTierRow{
			ID:              fmt.Sprintf("seed-tier-%d", t.TierNumber),
			StructureID:     s.ID,
			TierNumber:      tier.TierNumber,
			TierName:        tier.TierName,
			LPSharePercent:  tier.LPSharePercent,
			GPSharePercent:  tier.GPSharePercent,
			ThresholdAmount: tier.ThresholdAmount,
			ThresholdIRR:    tier.ThresholdIRR,
			IsActive:        true,
		})
	}
	return s
}

func seedDistribution(store *fakeStore, amount float64) *database.Distribution {
	// Two years after the first call, matching the seeded hurdle clock.
	d := &database.Distribution{
		ID:                 "dist-1",
		StructureID:        "struct-1",
		DistributionNumber: 1,
		DistributionDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(2*365.25*24) * time.Hour),
		TotalAmount:        amount,
		Status:             database.DistributionDraft,
	}
	store.distributions[d.ID] = d
	return d
}

// ============================================================================
// Ownership
// ============================================================================

func TestOwnership(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	svc := newTestService(store)

	owners, err := svc.Ownership(context.Background(), "struct-1")
	if err != nil {
		t.Fatalf("Ownership() error: %v", err)
	}
	if len(owners) != 2 {
		t.Fatalf("got %d owners, want 2", len(owners))
	}
	if !floatEquals(owners[0].Percent, 60) || !floatEquals(owners[1].Percent, 40) {
		t.Errorf("percentages = %.2f/%.2f, want 60/40", owners[0].Percent, owners[1].Percent)
	}
}

func TestOwnershipEmptyStructure(t *testing.T) {
	store := newFakeStore()
	store.structures["empty"] = &database.Structure{ID: "empty"}
	svc := newTestService(store)

	owners, err := svc.Ownership(context.Background(), "empty")
	if err != nil {
		t.Fatalf("Ownership() error: %v", err)
	}
	if len(owners) != 0 {
		t.Errorf("got %d owners, want 0", len(owners))
	}
}

// ============================================================================
// Capital calls
// ============================================================================

func TestCreateCapitalCallSplitsProRata(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	// Reset the called totals so this test controls them.
	store.structures["struct-1"].TotalCalled = 0
	store.structures["struct-1"].FirstCallDate = nil
	svc := newTestService(store)

	call, allocations, err := svc.CreateCapitalCall(context.Background(), CreateCapitalCallInput{
		StructureID: "struct-1",
		CallDate:    time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount: 100_000,
	})
	if err != nil {
		t.Fatalf("CreateCapitalCall() error: %v", err)
	}

	if call.Status != database.CallStatusDraft {
		t.Errorf("status = %q, want Draft", call.Status)
	}
	if call.CallNumber != 1 {
		t.Errorf("callNumber = %d, want 1", call.CallNumber)
	}
	if len(allocations) != 2 {
		t.Fatalf("got %d allocations, want 2", len(allocations))
	}
	if allocations[0].AllocatedAmount != 60_000 || allocations[1].AllocatedAmount != 40_000 {
		t.Errorf("allocations = %.2f/%.2f, want 60000/40000",
			allocations[0].AllocatedAmount, allocations[1].AllocatedAmount)
	}

	sum := 0.0
	for _, a := range allocations {
		sum += a.AllocatedAmount
		if a.PaidAmount != 0 || a.RemainingAmount != a.AllocatedAmount {
			t.Errorf("allocation %s not initialized as unpaid", a.InvestorUserID)
		}
		if a.Status != database.AllocationPending {
			t.Errorf("allocation status = %q, want Pending", a.Status)
		}
	}
	if !floatEquals(sum, call.TotalCallAmount) {
		t.Errorf("allocations sum to %.2f, want %.2f", sum, call.TotalCallAmount)
	}

	s := store.structures["struct-1"]
	if !floatEquals(s.TotalCalled, 100_000) {
		t.Errorf("structure totalCalled = %.2f, want 100000", s.TotalCalled)
	}
	if s.FirstCallDate == nil {
		t.Error("first call date should be anchored by the first call")
	}
}

func TestCreateCapitalCallValidation(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	svc := newTestService(store)

	_, _, err := svc.CreateCapitalCall(context.Background(), CreateCapitalCallInput{
		StructureID: "struct-1",
		TotalAmount: -5,
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(ve.Errors) < 2 {
		t.Errorf("expected accumulated errors, got %v", ve.Errors)
	}

	_, _, err = svc.CreateCapitalCall(context.Background(), CreateCapitalCallInput{
		StructureID: "missing",
		CallDate:    time.Now(),
		DueDate:     time.Now().Add(24 * time.Hour),
		TotalAmount: 100,
	})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestSendCapitalCall(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	svc := newTestService(store)

	call, _, err := svc.CreateCapitalCall(context.Background(), CreateCapitalCallInput{
		StructureID: "struct-1",
		CallDate:    time.Now(),
		DueDate:     time.Now().Add(24 * time.Hour),
		TotalAmount: 50_000,
	})
	if err != nil {
		t.Fatalf("CreateCapitalCall() error: %v", err)
	}

	sent, err := svc.SendCapitalCall(context.Background(), call.ID)
	if err != nil {
		t.Fatalf("SendCapitalCall() error: %v", err)
	}
	if sent.Status != database.CallStatusSent {
		t.Errorf("status = %q, want Sent", sent.Status)
	}
	if sent.SentDate == nil {
		t.Error("sentDate should be set")
	}

	// A second send is a conflict, not an idempotent success.
	_, err = svc.SendCapitalCall(context.Background(), call.ID)
	if !errors.Is(err, ErrCallNotDraft) {
		t.Errorf("second send error = %v, want ErrCallNotDraft", err)
	}

	_, err = svc.SendCapitalCall(context.Background(), "missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestRecordCapitalCallPayment(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	svc := newTestService(store)
	ctx := context.Background()

	call, _, err := svc.CreateCapitalCall(ctx, CreateCapitalCallInput{
		StructureID: "struct-1",
		CallDate:    time.Now(),
		DueDate:     time.Now().Add(24 * time.Hour),
		TotalAmount: 100_000,
	})
	if err != nil {
		t.Fatalf("CreateCapitalCall() error: %v", err)
	}
	if _, err := svc.SendCapitalCall(ctx, call.ID); err != nil {
		t.Fatalf("SendCapitalCall() error: %v", err)
	}

	// Partial payment on a Sent call: totals move, status stays Sent.
	updated, err := svc.RecordCapitalCallPayment(ctx, call.ID, 30_000)
	if err != nil {
		t.Fatalf("RecordCapitalCallPayment() error: %v", err)
	}
	if updated.Status != database.CallStatusSent {
		t.Errorf("status after partial payment = %q, want Sent", updated.Status)
	}
	if !floatEquals(updated.TotalPaidAmount, 30_000) || !floatEquals(updated.TotalUnpaidAmount, 70_000) {
		t.Errorf("paid/unpaid = %.2f/%.2f, want 30000/70000", updated.TotalPaidAmount, updated.TotalUnpaidAmount)
	}

	// Successive payments keep the paid total monotone and the sum invariant.
	prev := updated.TotalPaidAmount
	for _, amount := range []float64{20_000, 25_000} {
		updated, err = svc.RecordCapitalCallPayment(ctx, call.ID, amount)
		if err != nil {
			t.Fatalf("RecordCapitalCallPayment(%.2f) error: %v", amount, err)
		}
		if updated.TotalPaidAmount < prev {
			t.Errorf("paid total decreased: %.2f -> %.2f", prev, updated.TotalPaidAmount)
		}
		prev = updated.TotalPaidAmount
		if !floatEquals(updated.TotalPaidAmount+updated.TotalUnpaidAmount, updated.TotalCallAmount) {
			t.Errorf("paid + unpaid = %.2f, want %.2f",
				updated.TotalPaidAmount+updated.TotalUnpaidAmount, updated.TotalCallAmount)
		}
	}

	// Overpayment is rejected with no state change.
	_, err = svc.RecordCapitalCallPayment(ctx, call.ID, 50_000)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("overpayment error = %v, want ValidationError", err)
	}
	if !floatEquals(store.calls[call.ID].TotalPaidAmount, 75_000) {
		t.Errorf("paid total changed after rejected payment: %.2f", store.calls[call.ID].TotalPaidAmount)
	}

	// Final payment lands exactly and the call becomes Paid.
	updated, err = svc.RecordCapitalCallPayment(ctx, call.ID, 25_000)
	if err != nil {
		t.Fatalf("RecordCapitalCallPayment() error: %v", err)
	}
	if updated.Status != database.CallStatusPaid {
		t.Errorf("status = %q, want Paid", updated.Status)
	}
	if !floatEquals(updated.TotalUnpaidAmount, 0) {
		t.Errorf("unpaid = %.2f, want 0", updated.TotalUnpaidAmount)
	}

	// Zero and negative amounts never reach the store.
	if _, err := svc.RecordCapitalCallPayment(ctx, call.ID, 0); err == nil {
		t.Error("zero payment should fail")
	}
}

func TestDraftCallBecomesPartiallyPaid(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	svc := newTestService(store)

	call, _, err := svc.CreateCapitalCall(context.Background(), CreateCapitalCallInput{
		StructureID: "struct-1",
		CallDate:    time.Now(),
		DueDate:     time.Now().Add(24 * time.Hour),
		TotalAmount: 10_000,
	})
	if err != nil {
		t.Fatalf("CreateCapitalCall() error: %v", err)
	}

	updated, err := svc.RecordCapitalCallPayment(context.Background(), call.ID, 4_000)
	if err != nil {
		t.Fatalf("RecordCapitalCallPayment() error: %v", err)
	}
	if updated.Status != database.CallStatusPartiallyPaid {
		t.Errorf("status = %q, want Partially Paid", updated.Status)
	}
}

// ============================================================================
// Waterfall application
// ============================================================================

func TestApplyWaterfall(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	seedDistribution(store, 1_200_000)
	svc := newTestService(store)

	d, err := svc.ApplyWaterfall(context.Background(), "dist-1")
	if err != nil {
		t.Fatalf("ApplyWaterfall() error: %v", err)
	}

	if !d.WaterfallApplied {
		t.Error("waterfallApplied should be true")
	}
	if !floatEquals(d.Tier1Amount, 1_000_000) {
		t.Errorf("tier1 = %.2f, want 1000000", d.Tier1Amount)
	}
	if !floatEquals(d.Tier2Amount, 166_400) {
		t.Errorf("tier2 = %.2f, want 166400", d.Tier2Amount)
	}
	if !floatEquals(d.Tier3Amount, 33_600) {
		t.Errorf("tier3 = %.2f, want 33600", d.Tier3Amount)
	}
	if d.Tier4Amount != 0 {
		t.Errorf("tier4 = %.2f, want 0", d.Tier4Amount)
	}
	if !floatEquals(d.LPTotalAmount, 1_166_400) || !floatEquals(d.GPTotalAmount, 33_600) {
		t.Errorf("LP/GP = %.2f/%.2f, want 1166400/33600", d.LPTotalAmount, d.GPTotalAmount)
	}

	sum := d.Tier1Amount + d.Tier2Amount + d.Tier3Amount + d.Tier4Amount
	if !floatEquals(sum+d.ManagementFeeAmount, d.TotalAmount) {
		t.Errorf("tiers + fee = %.2f, want %.2f", sum+d.ManagementFeeAmount, d.TotalAmount)
	}

	// Cumulative structure state advanced with the run.
	s := store.structures["struct-1"]
	if !floatEquals(s.TotalCapitalReturned, 1_000_000) || !floatEquals(s.TotalPreferredPaid, 166_400) {
		t.Errorf("structure cumulative state = %.2f/%.2f, want 1000000/166400",
			s.TotalCapitalReturned, s.TotalPreferredPaid)
	}
	if !floatEquals(s.TotalDistributed, 1_200_000) {
		t.Errorf("totalDistributed = %.2f, want 1200000", s.TotalDistributed)
	}
}

func TestApplyWaterfallReplayGuard(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	seedDistribution(store, 500_000)
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.ApplyWaterfall(ctx, "dist-1")
	if err != nil {
		t.Fatalf("first ApplyWaterfall() error: %v", err)
	}

	_, err = svc.ApplyWaterfall(ctx, "dist-1")
	if !errors.Is(err, ErrWaterfallApplied) {
		t.Fatalf("second ApplyWaterfall() error = %v, want ErrWaterfallApplied", err)
	}

	// Replay left the persisted amounts untouched.
	d := store.distributions["dist-1"]
	if d.Tier1Amount != first.Tier1Amount || d.Tier2Amount != first.Tier2Amount {
		t.Error("replay changed persisted tier amounts")
	}
	s := store.structures["struct-1"]
	if !floatEquals(s.TotalDistributed, 500_000) {
		t.Errorf("totalDistributed = %.2f, want 500000 (single application)", s.TotalDistributed)
	}
}

func TestApplyWaterfallRequiresLadder(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	seedDistribution(store, 100_000)
	for _, tier := range store.tiers["struct-1"] {
		tier.IsActive = false
	}
	svc := newTestService(store)

	_, err := svc.ApplyWaterfall(context.Background(), "dist-1")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("error = %v, want ValidationError for missing ladder", err)
	}
}

func TestApplyWaterfallRejectsBadFeeRate(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	seedDistribution(store, 100_000)
	store.structures["struct-1"].ManagementFeePct = -5
	svc := newTestService(store)

	_, err := svc.ApplyWaterfall(context.Background(), "dist-1")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("error = %v, want ValidationError for out-of-range fee rate", err)
	}
	if store.distributions["dist-1"].WaterfallApplied {
		t.Error("rejected run must not mark the distribution applied")
	}
}

func TestApplyWaterfallNotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	_, err := svc.ApplyWaterfall(context.Background(), "missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

// ============================================================================
// Distribution allocations and settlement
// ============================================================================

func TestCreateDistributionAllocations(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	seedDistribution(store, 1_200_000)
	svc := newTestService(store)
	ctx := context.Background()

	// Fan-out before the waterfall runs is rejected.
	_, err := svc.CreateDistributionAllocations(ctx, "dist-1")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError before waterfall", err)
	}

	if _, err := svc.ApplyWaterfall(ctx, "dist-1"); err != nil {
		t.Fatalf("ApplyWaterfall() error: %v", err)
	}

	allocations, err := svc.CreateDistributionAllocations(ctx, "dist-1")
	if err != nil {
		t.Fatalf("CreateDistributionAllocations() error: %v", err)
	}
	if len(allocations) != 2 {
		t.Fatalf("got %d allocations, want 2", len(allocations))
	}

	sum := 0.0
	for _, a := range allocations {
		sum += a.AllocatedAmount
	}
	if !floatEquals(sum, store.distributions["dist-1"].LPTotalAmount) {
		t.Errorf("allocations sum to %.2f, want LP pool %.2f", sum, store.distributions["dist-1"].LPTotalAmount)
	}

	// A second fan-out is a conflict.
	_, err = svc.CreateDistributionAllocations(ctx, "dist-1")
	if !errors.Is(err, ErrAllocationsExist) {
		t.Errorf("second fan-out error = %v, want ErrAllocationsExist", err)
	}
}

func TestMarkDistributionPaid(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	seedDistribution(store, 100_000)
	svc := newTestService(store)

	d, err := svc.MarkDistributionPaid(context.Background(), "dist-1")
	if err != nil {
		t.Fatalf("MarkDistributionPaid() error: %v", err)
	}
	if d.Status != database.DistributionPaid {
		t.Errorf("status = %q, want Paid", d.Status)
	}
	if d.PaidDate == nil {
		t.Error("paidDate should be set")
	}
}

// ============================================================================
// Ladders
// ============================================================================

func TestCreateDefaultLadder(t *testing.T) {
	store := newFakeStore()
	store.structures["s2"] = &database.Structure{
		ID: "s2", HurdleRatePct: 8, CarriedInterestPct: 20,
	}
	svc := newTestService(store)
	ctx := context.Background()

	rows, err := svc.CreateDefaultLadder(ctx, "s2")
	if err != nil {
		t.Fatalf("CreateDefaultLadder() error: %v", err)
	}
	if len(rows) != waterfall.NumTiers {
		t.Fatalf("got %d tiers, want %d", len(rows), waterfall.NumTiers)
	}

	// Creating over an existing active ladder fails.
	_, err = svc.CreateDefaultLadder(ctx, "s2")
	if !errors.Is(err, ErrLadderExists) {
		t.Errorf("second create error = %v, want ErrLadderExists", err)
	}
}

func TestReplaceLadderValidates(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	svc := newTestService(store)

	bad := waterfall.DefaultLadder("struct-1", 8, 20)
	bad[0].LPSharePercent = 60 // shares no longer sum to 100

	_, err := svc.ReplaceLadder(context.Background(), "struct-1", bad)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}

	// The existing ladder is untouched after a rejected replace.
	active, _ := store.GetActiveTiers(context.Background(), "struct-1")
	if len(active) != waterfall.NumTiers {
		t.Errorf("active tiers = %d, want %d", len(active), waterfall.NumTiers)
	}
}

// ============================================================================
// Investments
// ============================================================================

func TestExitInvestment(t *testing.T) {
	store := newFakeStore()
	seedStructure(store)
	store.investments["inv-1"] = &database.Investment{
		ID:             "inv-1",
		StructureID:    "struct-1",
		InvestmentType: database.InvestmentEquity,
		EquityInvested: 400_000,
		Status:         database.InvestmentActive,
	}
	svc := newTestService(store)
	ctx := context.Background()

	inv, err := svc.ExitInvestment(ctx, "inv-1", 650_000)
	if err != nil {
		t.Fatalf("ExitInvestment() error: %v", err)
	}
	if inv.Status != database.InvestmentExited {
		t.Errorf("status = %q, want Exited", inv.Status)
	}
	if inv.RealizedGain == nil || !floatEquals(*inv.RealizedGain, 250_000) {
		t.Errorf("realizedGain = %v, want 250000", inv.RealizedGain)
	}

	_, err = svc.ExitInvestment(ctx, "inv-1", 650_000)
	if !errors.Is(err, ErrInvestmentExited) {
		t.Errorf("second exit error = %v, want ErrInvestmentExited", err)
	}
}
