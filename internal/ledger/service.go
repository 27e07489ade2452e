package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investment-platform/internal/database"
	"investment-platform/internal/events"
	"investment-platform/internal/waterfall"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Store is the persistence port the ledger service runs against. The
// concrete implementation is the database repository; tests supply fakes.
type Store interface {
	GetStructureByID(ctx context.Context, id string) (*database.Structure, error)
	GetStructureInvestors(ctx context.Context, structureID string) ([]*database.StructureInvestor, error)

	GetActiveTiers(ctx context.Context, structureID string) ([]*database.WaterfallTierRow, error)
	ReplaceTiers(ctx context.Context, structureID string, tiers []*database.WaterfallTierRow) error

	NextCallNumber(ctx context.Context, structureID string) (int, error)
	CreateCapitalCallWithAllocations(ctx context.Context, call *database.CapitalCall, allocations []*database.CapitalCallAllocation) error
	GetCapitalCallByID(ctx context.Context, id string) (*database.CapitalCall, error)
	GetCapitalCallAllocations(ctx context.Context, capitalCallID string) ([]*database.CapitalCallAllocation, error)
	MarkCapitalCallSent(ctx context.Context, id string) (bool, error)
	RecordCapitalCallPayment(ctx context.Context, id string, amount float64) (*database.CapitalCall, bool, error)

	NextDistributionNumber(ctx context.Context, structureID string) (int, error)
	CreateDistribution(ctx context.Context, d *database.Distribution) error
	GetDistributionByID(ctx context.Context, id string) (*database.Distribution, error)
	ApplyWaterfallOutcome(ctx context.Context, distributionID, structureID string, out database.WaterfallOutcome) (bool, error)
	CreateDistributionAllocations(ctx context.Context, allocations []*database.DistributionAllocation) error
	GetDistributionAllocations(ctx context.Context, distributionID string) ([]*database.DistributionAllocation, error)
	MarkDistributionPaid(ctx context.Context, id string) error

	GetInvestmentByID(ctx context.Context, id string) (*database.Investment, error)
	ExitInvestment(ctx context.Context, id string, exitValue, realizedGain float64) (bool, error)
}

// OwnershipCache caches resolved ownership sets per structure. A nil cache
// is valid and simply always misses.
type OwnershipCache interface {
	GetOwnership(ctx context.Context, structureID string) ([]waterfall.Owner, bool)
	SetOwnership(ctx context.Context, structureID string, owners []waterfall.Owner)
	InvalidateOwnership(ctx context.Context, structureID string)
}

// Service implements the capital-call and distribution workflows on top of
// the pure waterfall engine.
type Service struct {
	store  Store
	cache  OwnershipCache
	bus    *events.EventBus
	logger zerolog.Logger
}

// NewService creates a ledger service. cache and bus may be nil.
func NewService(store Store, cache OwnershipCache, bus *events.EventBus, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		bus:    bus,
		logger: logger.With().Str("component", "LedgerService").Logger(),
	}
}

// notFoundFrom maps a pgx no-rows error onto the domain NotFound type
func notFoundFrom(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return err
}

// ============================================================================
// Ownership
// ============================================================================

// Ownership resolves each investor's percentage of a structure from active
// commitment amounts. An empty membership set yields an empty slice. The
// percentages sum to 100 within rounding tolerance.
func (s *Service) Ownership(ctx context.Context, structureID string) ([]waterfall.Owner, error) {
	if s.cache != nil {
		if owners, ok := s.cache.GetOwnership(ctx, structureID); ok {
			return owners, nil
		}
	}

	members, err := s.store.GetStructureInvestors(ctx, structureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load structure investors: %w", err)
	}
	if len(members) == 0 {
		return []waterfall.Owner{}, nil
	}

	total := 0.0
	for _, m := range members {
		total += m.CommitmentAmount
	}
	if total <= 0 {
		return []waterfall.Owner{}, nil
	}

	owners := make([]waterfall.Owner, len(members))
	for i, m := range members {
		owners[i] = waterfall.Owner{
			InvestorID: m.InvestorUserID,
			Percent:    m.CommitmentAmount / total * 100,
		}
	}

	if s.cache != nil {
		s.cache.SetOwnership(ctx, structureID, owners)
	}
	return owners, nil
}

// InvalidateOwnership drops the cached ownership set after a membership write
func (s *Service) InvalidateOwnership(ctx context.Context, structureID string) {
	if s.cache != nil {
		s.cache.InvalidateOwnership(ctx, structureID)
	}
}

// ============================================================================
// Tier ladders
// ============================================================================

// CreateDefaultLadder builds and persists the standard 4-tier ladder from the
// structure's configured hurdle and carry. Fails when an active ladder
// already exists; ladders are replaced, never silently regenerated.
func (s *Service) CreateDefaultLadder(ctx context.Context, structureID string) ([]*database.WaterfallTierRow, error) {
	structure, err := s.store.GetStructureByID(ctx, structureID)
	if err != nil {
		return nil, notFoundFrom(err, "structure", structureID)
	}

	existing, err := s.store.GetActiveTiers(ctx, structureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiers: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrLadderExists
	}

	ladder := waterfall.DefaultLadder(structureID, structure.HurdleRatePct, structure.CarriedInterestPct)
	rows := tierRowsFrom(ladder)
	if err := s.store.ReplaceTiers(ctx, structureID, rows); err != nil {
		return nil, fmt.Errorf("failed to persist ladder: %w", err)
	}

	s.logger.Info().
		Str("structure_id", structureID).
		Float64("hurdle_rate_pct", structure.HurdleRatePct).
		Float64("carried_interest_pct", structure.CarriedInterestPct).
		Msg("Default tier ladder created")

	s.publish(events.Event{
		Type: events.EventLadderReplaced,
		Data: map[string]interface{}{"structure_id": structureID, "default": true},
	})
	return rows, nil
}

// ReplaceLadder validates a custom ladder and swaps it in for the structure's
// current one (deactivate all, then recreate).
func (s *Service) ReplaceLadder(ctx context.Context, structureID string, tiers []waterfall.Tier) ([]*database.WaterfallTierRow, error) {
	if _, err := s.store.GetStructureByID(ctx, structureID); err != nil {
		return nil, notFoundFrom(err, "structure", structureID)
	}

	if v := waterfall.ValidateLadder(tiers); !v.IsValid {
		return nil, &ValidationError{Errors: v.Errors}
	}

	rows := tierRowsFrom(tiers)
	for _, row := range rows {
		row.StructureID = structureID
	}
	if err := s.store.ReplaceTiers(ctx, structureID, rows); err != nil {
		return nil, fmt.Errorf("failed to replace ladder: %w", err)
	}

	s.logger.Info().Str("structure_id", structureID).Msg("Tier ladder replaced")
	s.publish(events.Event{
		Type: events.EventLadderReplaced,
		Data: map[string]interface{}{"structure_id": structureID, "default": false},
	})
	return rows, nil
}

func tierRowsFrom(tiers []waterfall.Tier) []*database.WaterfallTierRow {
	rows := make([]*database.WaterfallTierRow, len(tiers))
	for i, t := range tiers {
		rows[i] = &database.WaterfallTierRow{
			StructureID:     t.StructureID,
			TierNumber:      t.TierNumber,
			TierName:        t.TierName,
			LPSharePercent:  t.LPSharePercent,
			GPSharePercent:  t.GPSharePercent,
			ThresholdAmount: t.ThresholdAmount,
			ThresholdIRR:    t.ThresholdIRR,
			IsActive:        true,
		}
	}
	return rows
}

func tiersFromRows(rows []*database.WaterfallTierRow) []waterfall.Tier {
	tiers := make([]waterfall.Tier, len(rows))
	for i, r := range rows {
		tiers[i] = waterfall.Tier{
			StructureID:     r.StructureID,
			TierNumber:      r.TierNumber,
			TierName:        r.TierName,
			LPSharePercent:  r.LPSharePercent,
			GPSharePercent:  r.GPSharePercent,
			ThresholdAmount: r.ThresholdAmount,
			ThresholdIRR:    r.ThresholdIRR,
			IsActive:        r.IsActive,
		}
	}
	return tiers
}

// ============================================================================
// Capital calls
// ============================================================================

// CreateCapitalCallInput carries the fields for a new capital call
type CreateCapitalCallInput struct {
	StructureID  string     `json:"structure_id"`
	InvestmentID *string    `json:"investment_id,omitempty"`
	CallDate     time.Time  `json:"call_date"`
	DueDate      time.Time  `json:"due_date"`
	TotalAmount  float64    `json:"total_amount"`
	Purpose      *string    `json:"purpose,omitempty"`
}

// CreateCapitalCall creates a Draft capital call and fans its amount out to
// the structure's investors pro-rata by ownership. The call, its allocations
// and the structure's total_called bump land in one transaction.
func (s *Service) CreateCapitalCall(ctx context.Context, in CreateCapitalCallInput) (*database.CapitalCall, []*database.CapitalCallAllocation, error) {
	var errs []string
	if in.TotalAmount <= 0 {
		errs = append(errs, "total amount must be positive")
	}
	if in.CallDate.IsZero() {
		errs = append(errs, "call date is required")
	}
	if in.DueDate.IsZero() {
		errs = append(errs, "due date is required")
	} else if !in.CallDate.IsZero() && in.DueDate.Before(in.CallDate) {
		errs = append(errs, "due date must not precede call date")
	}
	if len(errs) > 0 {
		return nil, nil, &ValidationError{Errors: errs}
	}

	if _, err := s.store.GetStructureByID(ctx, in.StructureID); err != nil {
		return nil, nil, notFoundFrom(err, "structure", in.StructureID)
	}

	owners, err := s.Ownership(ctx, in.StructureID)
	if err != nil {
		return nil, nil, err
	}
	shares, err := waterfall.SplitByOwnership(in.TotalAmount, owners)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to split capital call: %w", err)
	}

	callNumber, err := s.store.NextCallNumber(ctx, in.StructureID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to assign call number: %w", err)
	}

	call := &database.CapitalCall{
		StructureID:       in.StructureID,
		InvestmentID:      in.InvestmentID,
		CallNumber:        callNumber,
		CallDate:          in.CallDate,
		DueDate:           in.DueDate,
		TotalCallAmount:   in.TotalAmount,
		TotalUnpaidAmount: in.TotalAmount,
		Status:            database.CallStatusDraft,
		Purpose:           in.Purpose,
	}

	allocations := make([]*database.CapitalCallAllocation, len(shares))
	for i, share := range shares {
		allocations[i] = &database.CapitalCallAllocation{
			InvestorUserID:  share.InvestorID,
			AllocatedAmount: share.Amount,
			RemainingAmount: share.Amount,
			Status:          database.AllocationPending,
			DueDate:         in.DueDate,
		}
	}

	if err := s.store.CreateCapitalCallWithAllocations(ctx, call, allocations); err != nil {
		return nil, nil, fmt.Errorf("failed to create capital call: %w", err)
	}

	s.logger.Info().
		Str("capital_call_id", call.ID).
		Str("structure_id", in.StructureID).
		Int("call_number", callNumber).
		Float64("total_amount", in.TotalAmount).
		Int("investors", len(allocations)).
		Msg("Capital call created")

	if s.bus != nil {
		s.bus.PublishCapitalCallCreated(call.ID, in.StructureID, callNumber, in.TotalAmount, len(allocations))
	}
	return call, allocations, nil
}

// SendCapitalCall transitions a call from Draft to Sent. Any other current
// status is a conflict.
func (s *Service) SendCapitalCall(ctx context.Context, id string) (*database.CapitalCall, error) {
	ok, err := s.store.MarkCapitalCallSent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Distinguish a missing call from one that already left Draft.
		if _, err := s.store.GetCapitalCallByID(ctx, id); err != nil {
			return nil, notFoundFrom(err, "capital call", id)
		}
		return nil, ErrCallNotDraft
	}

	call, err := s.store.GetCapitalCallByID(ctx, id)
	if err != nil {
		return nil, notFoundFrom(err, "capital call", id)
	}

	s.logger.Info().Str("capital_call_id", id).Msg("Capital call sent")
	if s.bus != nil {
		s.bus.PublishCapitalCallSent(call.ID, call.StructureID)
	}
	return call, nil
}

// RecordCapitalCallPayment adds a payment to a call's running totals. The
// increment and the status derivation execute as one atomic update, so paid
// totals are monotone under concurrency and paid + unpaid always equals the
// call amount. A call already Sent stays Sent on a partial payment; it only
// becomes Paid when fully funded.
func (s *Service) RecordCapitalCallPayment(ctx context.Context, id string, amount float64) (*database.CapitalCall, error) {
	if amount <= 0 {
		return nil, newValidationError("payment amount must be positive")
	}

	call, ok, err := s.store.RecordCapitalCallPayment(ctx, id, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Rejected by the guard: either the call is unknown or the payment
		// would overshoot the call amount.
		existing, err := s.store.GetCapitalCallByID(ctx, id)
		if err != nil {
			return nil, notFoundFrom(err, "capital call", id)
		}
		return nil, newValidationError(fmt.Sprintf(
			"payment of %.2f exceeds unpaid amount %.2f", amount, existing.TotalUnpaidAmount))
	}

	s.logger.Info().
		Str("capital_call_id", id).
		Float64("amount", amount).
		Float64("total_paid", call.TotalPaidAmount).
		Str("status", call.Status).
		Msg("Capital call payment recorded")

	if s.bus != nil {
		s.bus.PublishPaymentRecorded(call.ID, amount, call.TotalPaidAmount, call.TotalUnpaidAmount, call.Status)
	}
	return call, nil
}

// ============================================================================
// Distributions
// ============================================================================

// CreateDistributionInput carries the fields for a new distribution
type CreateDistributionInput struct {
	StructureID         string    `json:"structure_id"`
	InvestmentID        *string   `json:"investment_id,omitempty"`
	DistributionDate    time.Time `json:"distribution_date"`
	TotalAmount         float64   `json:"total_amount"`
	SourceEquityGain    float64   `json:"source_equity_gain"`
	SourceDebtInterest  float64   `json:"source_debt_interest"`
	SourceDebtPrincipal float64   `json:"source_debt_principal"`
	SourceOther         float64   `json:"source_other"`
}

// CreateDistribution creates a Draft distribution with zero tier amounts
func (s *Service) CreateDistribution(ctx context.Context, in CreateDistributionInput) (*database.Distribution, error) {
	var errs []string
	if in.TotalAmount < 0 {
		errs = append(errs, "total amount must not be negative")
	}
	if in.DistributionDate.IsZero() {
		errs = append(errs, "distribution date is required")
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	if _, err := s.store.GetStructureByID(ctx, in.StructureID); err != nil {
		return nil, notFoundFrom(err, "structure", in.StructureID)
	}

	number, err := s.store.NextDistributionNumber(ctx, in.StructureID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign distribution number: %w", err)
	}

	d := &database.Distribution{
		StructureID:         in.StructureID,
		InvestmentID:        in.InvestmentID,
		DistributionNumber:  number,
		DistributionDate:    in.DistributionDate,
		TotalAmount:         in.TotalAmount,
		SourceEquityGain:    in.SourceEquityGain,
		SourceDebtInterest:  in.SourceDebtInterest,
		SourceDebtPrincipal: in.SourceDebtPrincipal,
		SourceOther:         in.SourceOther,
		Status:              database.DistributionDraft,
	}
	if err := s.store.CreateDistribution(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create distribution: %w", err)
	}

	s.logger.Info().
		Str("distribution_id", d.ID).
		Str("structure_id", in.StructureID).
		Float64("total_amount", in.TotalAmount).
		Msg("Distribution created")

	s.publish(events.Event{
		Type: events.EventDistributionCreated,
		Data: map[string]interface{}{"distribution_id": d.ID, "structure_id": d.StructureID},
	})
	return d, nil
}

// ApplyWaterfall runs the tier engine over a distribution and persists the
// outcome. The waterfall_applied flag flips false -> true exactly once: a
// replay is rejected with ErrWaterfallApplied and changes nothing, including
// under concurrent calls, because the flag check is part of the persistence
// update itself.
func (s *Service) ApplyWaterfall(ctx context.Context, distributionID string) (*database.Distribution, error) {
	d, err := s.store.GetDistributionByID(ctx, distributionID)
	if err != nil {
		return nil, notFoundFrom(err, "distribution", distributionID)
	}
	if d.WaterfallApplied {
		return nil, ErrWaterfallApplied
	}
	if d.TotalAmount < 0 {
		return nil, newValidationError("distribution amount must not be negative")
	}

	structure, err := s.store.GetStructureByID(ctx, d.StructureID)
	if err != nil {
		return nil, notFoundFrom(err, "structure", d.StructureID)
	}

	tierRows, err := s.store.GetActiveTiers(ctx, d.StructureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiers: %w", err)
	}
	if len(tierRows) == 0 {
		return nil, newValidationError("structure has no active tier ladder")
	}

	in := waterfall.RunInput{
		TotalAmount:        d.TotalAmount,
		ManagementFeePct:   structure.ManagementFeePct,
		Tiers:              tiersFromRows(tierRows),
		CapitalContributed: structure.TotalCalled,
		CapitalReturned:    structure.TotalCapitalReturned,
		PreferredPaid:      structure.TotalPreferredPaid,
		CatchUpPaid:        structure.TotalCatchUpPaid,
		AsOf:               d.DistributionDate,
	}
	if structure.FirstCallDate != nil {
		in.FirstCallDate = *structure.FirstCallDate
	}

	result, err := waterfall.Run(in)
	if err != nil {
		if errors.Is(err, waterfall.ErrNegativeAmount) || errors.Is(err, waterfall.ErrInvalidFeeRate) {
			return nil, newValidationError(err.Error())
		}
		// Ladder or arithmetic faults must never persist an inconsistent
		// ledger; surface them as internal errors.
		return nil, fmt.Errorf("waterfall run failed for distribution %s: %w", distributionID, err)
	}

	ok, err := s.store.ApplyWaterfallOutcome(ctx, distributionID, d.StructureID, database.WaterfallOutcome{
		Tier1Amount:         result.TierAmounts[0],
		Tier2Amount:         result.TierAmounts[1],
		Tier3Amount:         result.TierAmounts[2],
		Tier4Amount:         result.TierAmounts[3],
		LPTotalAmount:       result.LPTotal,
		GPTotalAmount:       result.GPTotal,
		ManagementFeeAmount: result.ManagementFee,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race to a concurrent apply.
		return nil, ErrWaterfallApplied
	}

	s.logger.Info().
		Str("distribution_id", distributionID).
		Str("structure_id", d.StructureID).
		Float64("tier1", result.TierAmounts[0]).
		Float64("tier2", result.TierAmounts[1]).
		Float64("tier3", result.TierAmounts[2]).
		Float64("tier4", result.TierAmounts[3]).
		Float64("lp_total", result.LPTotal).
		Float64("gp_total", result.GPTotal).
		Float64("management_fee", result.ManagementFee).
		Msg("Waterfall applied")

	if s.bus != nil {
		s.bus.PublishWaterfallApplied(distributionID, d.StructureID, result.TierAmounts,
			result.LPTotal, result.GPTotal, result.ManagementFee)
	}

	updated, err := s.store.GetDistributionByID(ctx, distributionID)
	if err != nil {
		return nil, notFoundFrom(err, "distribution", distributionID)
	}
	return updated, nil
}

// CreateDistributionAllocations fans a distribution's LP pool out to
// investors pro-rata. Requires the waterfall to have been applied first;
// a second fan-out is a conflict. The writes are all-or-none.
func (s *Service) CreateDistributionAllocations(ctx context.Context, distributionID string) ([]*database.DistributionAllocation, error) {
	d, err := s.store.GetDistributionByID(ctx, distributionID)
	if err != nil {
		return nil, notFoundFrom(err, "distribution", distributionID)
	}
	if !d.WaterfallApplied {
		return nil, newValidationError("waterfall has not been applied to this distribution")
	}

	existing, err := s.store.GetDistributionAllocations(ctx, distributionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrAllocationsExist
	}

	owners, err := s.Ownership(ctx, d.StructureID)
	if err != nil {
		return nil, err
	}
	shares, err := waterfall.SplitByOwnership(d.LPTotalAmount, owners)
	if err != nil {
		return nil, fmt.Errorf("failed to split distribution: %w", err)
	}

	allocations := make([]*database.DistributionAllocation, len(shares))
	for i, share := range shares {
		allocations[i] = &database.DistributionAllocation{
			DistributionID:  distributionID,
			InvestorUserID:  share.InvestorID,
			AllocatedAmount: share.Amount,
			RemainingAmount: share.Amount,
			Status:          database.AllocationPending,
		}
	}
	if err := s.store.CreateDistributionAllocations(ctx, allocations); err != nil {
		return nil, fmt.Errorf("failed to create allocations: %w", err)
	}

	s.logger.Info().
		Str("distribution_id", distributionID).
		Int("investors", len(allocations)).
		Float64("lp_pool", d.LPTotalAmount).
		Msg("Distribution allocations created")
	return allocations, nil
}

// MarkDistributionPaid settles a distribution. There is no precondition on
// waterfall_applied: a draft distribution can be marked paid directly, which
// mirrors how fund admins settle out-of-band wire transfers.
func (s *Service) MarkDistributionPaid(ctx context.Context, id string) (*database.Distribution, error) {
	d, err := s.store.GetDistributionByID(ctx, id)
	if err != nil {
		return nil, notFoundFrom(err, "distribution", id)
	}

	if err := s.store.MarkDistributionPaid(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to mark distribution paid: %w", err)
	}

	s.logger.Info().Str("distribution_id", id).Msg("Distribution marked paid")
	if s.bus != nil {
		s.bus.PublishDistributionPaid(d.ID, d.StructureID, d.TotalAmount)
	}

	updated, err := s.store.GetDistributionByID(ctx, id)
	if err != nil {
		return nil, notFoundFrom(err, "distribution", id)
	}
	return updated, nil
}

// ============================================================================
// Investments
// ============================================================================

// ExitInvestment marks a position Exited and records the realized gain:
// exit value minus capital invested (equity plus outstanding principal).
func (s *Service) ExitInvestment(ctx context.Context, id string, exitValue float64) (*database.Investment, error) {
	if exitValue < 0 {
		return nil, newValidationError("exit value must not be negative")
	}

	inv, err := s.store.GetInvestmentByID(ctx, id)
	if err != nil {
		return nil, notFoundFrom(err, "investment", id)
	}
	if inv.Status == database.InvestmentExited {
		return nil, ErrInvestmentExited
	}

	invested := inv.EquityInvested + inv.PrincipalProvided
	realizedGain := exitValue - invested

	ok, err := s.store.ExitInvestment(ctx, id, exitValue, realizedGain)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvestmentExited
	}

	s.logger.Info().
		Str("investment_id", id).
		Float64("exit_value", exitValue).
		Float64("realized_gain", realizedGain).
		Msg("Investment exited")

	if s.bus != nil {
		s.bus.PublishInvestmentExited(id, inv.StructureID, exitValue, realizedGain)
	}

	updated, err := s.store.GetInvestmentByID(ctx, id)
	if err != nil {
		return nil, notFoundFrom(err, "investment", id)
	}
	return updated, nil
}

func (s *Service) publish(event events.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}
