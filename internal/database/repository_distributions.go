package database

import (
	"context"
	"fmt"
)

const distributionColumns = `
	id, structure_id, investment_id, distribution_number, distribution_date,
	total_amount, source_equity_gain, source_debt_interest, source_debt_principal,
	source_other, waterfall_applied, tier1_amount, tier2_amount, tier3_amount,
	tier4_amount, lp_total_amount, gp_total_amount, management_fee_amount,
	status, paid_date, created_at, updated_at`

// ============================================================================
// DISTRIBUTIONS
// ============================================================================

// CreateDistribution inserts a new distribution in Draft with zero tier amounts
func (r *Repository) CreateDistribution(ctx context.Context, d *Distribution) error {
	query := `
		INSERT INTO distributions (
			structure_id, investment_id, distribution_number, distribution_date,
			total_amount, source_equity_gain, source_debt_interest,
			source_debt_principal, source_other, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		d.StructureID, d.InvestmentID, d.DistributionNumber, d.DistributionDate,
		d.TotalAmount, d.SourceEquityGain, d.SourceDebtInterest,
		d.SourceDebtPrincipal, d.SourceOther, d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// GetDistributionByID retrieves a distribution by ID
func (r *Repository) GetDistributionByID(ctx context.Context, id string) (*Distribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM distributions WHERE id = $1`
	return r.scanDistribution(r.db.Pool.QueryRow(ctx, query, id))
}

// GetDistributionsByStructure retrieves a structure's distributions in order
func (r *Repository) GetDistributionsByStructure(ctx context.Context, structureID string) ([]*Distribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM distributions WHERE structure_id = $1 ORDER BY distribution_number ASC`
	rows, err := r.db.Pool.Query(ctx, query, structureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var distributions []*Distribution
	for rows.Next() {
		d, err := r.scanDistribution(rows)
		if err != nil {
			return nil, err
		}
		distributions = append(distributions, d)
	}
	return distributions, rows.Err()
}

// NextDistributionNumber returns the next sequential number for a structure
func (r *Repository) NextDistributionNumber(ctx context.Context, structureID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(distribution_number), 0) + 1 FROM distributions WHERE structure_id = $1`,
		structureID).Scan(&n)
	return n, err
}

// WaterfallOutcome carries the engine's result into persistence
type WaterfallOutcome struct {
	Tier1Amount         float64
	Tier2Amount         float64
	Tier3Amount         float64
	Tier4Amount         float64
	LPTotalAmount       float64
	GPTotalAmount       float64
	ManagementFeeAmount float64
}

// ApplyWaterfallOutcome persists a waterfall run. The waterfall_applied flag
// is flipped with a compare-and-swap inside the UPDATE, so two concurrent
// applies cannot both land; the structure's cumulative totals move in the
// same transaction. Returns false when the flag was already set.
func (r *Repository) ApplyWaterfallOutcome(ctx context.Context, distributionID, structureID string, out WaterfallOutcome) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE distributions
		SET waterfall_applied = TRUE,
		    tier1_amount = $2, tier2_amount = $3, tier3_amount = $4, tier4_amount = $5,
		    lp_total_amount = $6, gp_total_amount = $7, management_fee_amount = $8
		WHERE id = $1 AND waterfall_applied = FALSE
	`, distributionID,
		out.Tier1Amount, out.Tier2Amount, out.Tier3Amount, out.Tier4Amount,
		out.LPTotalAmount, out.GPTotalAmount, out.ManagementFeeAmount)
	if err != nil {
		return false, fmt.Errorf("failed to apply waterfall: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	total := out.Tier1Amount + out.Tier2Amount + out.Tier3Amount + out.Tier4Amount + out.ManagementFeeAmount
	_, err = tx.Exec(ctx, `
		UPDATE structures
		SET total_distributed = total_distributed + $2,
		    total_capital_returned = total_capital_returned + $3,
		    total_preferred_paid = total_preferred_paid + $4,
		    total_catch_up_paid = total_catch_up_paid + $5,
		    total_carry_paid = total_carry_paid + $6
		WHERE id = $1
	`, structureID, total, out.Tier1Amount, out.Tier2Amount, out.Tier3Amount, out.Tier4Amount)
	if err != nil {
		return false, fmt.Errorf("failed to update structure totals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// MarkDistributionPaid sets a distribution's status to Paid
func (r *Repository) MarkDistributionPaid(ctx context.Context, id string) error {
	query := `
		UPDATE distributions
		SET status = $2, paid_date = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, id, DistributionPaid)
	return err
}

func (r *Repository) scanDistribution(row rowScanner) (*Distribution, error) {
	d := &Distribution{}
	err := row.Scan(
		&d.ID, &d.StructureID, &d.InvestmentID, &d.DistributionNumber, &d.DistributionDate,
		&d.TotalAmount, &d.SourceEquityGain, &d.SourceDebtInterest, &d.SourceDebtPrincipal,
		&d.SourceOther, &d.WaterfallApplied, &d.Tier1Amount, &d.Tier2Amount, &d.Tier3Amount,
		&d.Tier4Amount, &d.LPTotalAmount, &d.GPTotalAmount, &d.ManagementFeeAmount,
		&d.Status, &d.PaidDate, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ============================================================================
// DISTRIBUTION ALLOCATIONS
// ============================================================================

// CreateDistributionAllocations bulk-inserts the per-investor fan-out of a
// distribution's LP pool. All rows land or none do.
func (r *Repository) CreateDistributionAllocations(ctx context.Context, allocations []*DistributionAllocation) error {
	if len(allocations) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO distribution_allocations (
			distribution_id, investor_user_id, allocated_amount, paid_amount,
			remaining_amount, status
		)
		VALUES ($1, $2, $3, 0, $3, $4)
		RETURNING id, created_at, updated_at
	`
	for _, a := range allocations {
		err := tx.QueryRow(
			ctx, query,
			a.DistributionID, a.InvestorUserID, a.AllocatedAmount, a.Status,
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert allocation for investor %s: %w", a.InvestorUserID, err)
		}
	}

	return tx.Commit(ctx)
}

// GetDistributionAllocations retrieves the fan-out of a distribution
func (r *Repository) GetDistributionAllocations(ctx context.Context, distributionID string) ([]*DistributionAllocation, error) {
	query := `
		SELECT id, distribution_id, investor_user_id, allocated_amount, paid_amount,
		       remaining_amount, status, created_at, updated_at
		FROM distribution_allocations
		WHERE distribution_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, distributionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []*DistributionAllocation
	for rows.Next() {
		a := &DistributionAllocation{}
		err := rows.Scan(&a.ID, &a.DistributionID, &a.InvestorUserID, &a.AllocatedAmount,
			&a.PaidAmount, &a.RemainingAmount, &a.Status, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// GetDistributionAllocationsForInvestor retrieves an investor's allocations
// across all distributions
func (r *Repository) GetDistributionAllocationsForInvestor(ctx context.Context, investorUserID string) ([]*DistributionAllocation, error) {
	query := `
		SELECT id, distribution_id, investor_user_id, allocated_amount, paid_amount,
		       remaining_amount, status, created_at, updated_at
		FROM distribution_allocations
		WHERE investor_user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, investorUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []*DistributionAllocation
	for rows.Next() {
		a := &DistributionAllocation{}
		err := rows.Scan(&a.ID, &a.DistributionID, &a.InvestorUserID, &a.AllocatedAmount,
			&a.PaidAmount, &a.RemainingAmount, &a.Status, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}
