package database

import (
	"context"
	"fmt"
)

// structureColumns is the scan list shared by every structure query
const structureColumns = `
	id, name, structure_type, parent_id, level,
	total_commitment, total_called, total_distributed, total_invested,
	total_capital_returned, total_preferred_paid, total_catch_up_paid, total_carry_paid,
	management_fee_pct, carried_interest_pct, hurdle_rate_pct, waterfall_type,
	owner_user_id, first_call_date, created_at, updated_at`

// ============================================================================
// STRUCTURES
// ============================================================================

// CreateStructure inserts a new structure
func (r *Repository) CreateStructure(ctx context.Context, s *Structure) error {
	query := `
		INSERT INTO structures (
			name, structure_type, parent_id, level, total_commitment,
			management_fee_pct, carried_interest_pct, hurdle_rate_pct,
			waterfall_type, owner_user_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		s.Name, s.StructureType, s.ParentID, s.Level, s.TotalCommitment,
		s.ManagementFeePct, s.CarriedInterestPct, s.HurdleRatePct,
		s.WaterfallType, s.OwnerUserID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetStructureByID retrieves a structure by ID
func (r *Repository) GetStructureByID(ctx context.Context, id string) (*Structure, error) {
	query := `SELECT ` + structureColumns + ` FROM structures WHERE id = $1`
	s := &Structure{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.StructureType, &s.ParentID, &s.Level,
		&s.TotalCommitment, &s.TotalCalled, &s.TotalDistributed, &s.TotalInvested,
		&s.TotalCapitalReturned, &s.TotalPreferredPaid, &s.TotalCatchUpPaid, &s.TotalCarryPaid,
		&s.ManagementFeePct, &s.CarriedInterestPct, &s.HurdleRatePct, &s.WaterfallType,
		&s.OwnerUserID, &s.FirstCallDate, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetStructures retrieves all structures, parents before children
func (r *Repository) GetStructures(ctx context.Context) ([]*Structure, error) {
	query := `SELECT ` + structureColumns + ` FROM structures ORDER BY level ASC, created_at ASC`
	return r.queryStructures(ctx, query)
}

// GetChildStructures retrieves the direct children of a structure
func (r *Repository) GetChildStructures(ctx context.Context, parentID string) ([]*Structure, error) {
	query := `SELECT ` + structureColumns + ` FROM structures WHERE parent_id = $1 ORDER BY created_at ASC`
	return r.queryStructures(ctx, query, parentID)
}

// GetStructuresForInvestor retrieves structures an investor holds a membership in
func (r *Repository) GetStructuresForInvestor(ctx context.Context, investorUserID string) ([]*Structure, error) {
	query := `
		SELECT ` + structureColumns + `
		FROM structures
		WHERE id IN (SELECT structure_id FROM structure_investors WHERE investor_user_id = $1)
		ORDER BY created_at ASC
	`
	return r.queryStructures(ctx, query, investorUserID)
}

// UpdateStructure updates a structure's descriptive fields. Cumulative totals
// are only touched by the capital-call and distribution workflows.
func (r *Repository) UpdateStructure(ctx context.Context, s *Structure) error {
	query := `
		UPDATE structures
		SET name = $2, structure_type = $3, total_commitment = $4,
		    management_fee_pct = $5, carried_interest_pct = $6,
		    hurdle_rate_pct = $7, waterfall_type = $8
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		s.ID, s.Name, s.StructureType, s.TotalCommitment,
		s.ManagementFeePct, s.CarriedInterestPct, s.HurdleRatePct, s.WaterfallType,
	)
	return err
}

// DeleteStructure removes a structure; children cascade
func (r *Repository) DeleteStructure(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM structures WHERE id = $1`, id)
	return err
}

func (r *Repository) queryStructures(ctx context.Context, query string, args ...interface{}) ([]*Structure, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var structures []*Structure
	for rows.Next() {
		s := &Structure{}
		err := rows.Scan(
			&s.ID, &s.Name, &s.StructureType, &s.ParentID, &s.Level,
			&s.TotalCommitment, &s.TotalCalled, &s.TotalDistributed, &s.TotalInvested,
			&s.TotalCapitalReturned, &s.TotalPreferredPaid, &s.TotalCatchUpPaid, &s.TotalCarryPaid,
			&s.ManagementFeePct, &s.CarriedInterestPct, &s.HurdleRatePct, &s.WaterfallType,
			&s.OwnerUserID, &s.FirstCallDate, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		structures = append(structures, s)
	}
	return structures, rows.Err()
}

// ============================================================================
// STRUCTURE INVESTORS
// ============================================================================

// AddStructureInvestor creates an investor membership in a structure
func (r *Repository) AddStructureInvestor(ctx context.Context, m *StructureInvestor) error {
	query := `
		INSERT INTO structure_investors (structure_id, investor_user_id, commitment_amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		m.StructureID, m.InvestorUserID, m.CommitmentAmount, m.Status,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// GetStructureInvestors retrieves all active memberships for a structure
func (r *Repository) GetStructureInvestors(ctx context.Context, structureID string) ([]*StructureInvestor, error) {
	query := `
		SELECT id, structure_id, investor_user_id, commitment_amount, status, created_at, updated_at
		FROM structure_investors
		WHERE structure_id = $1 AND status = 'Active'
		ORDER BY created_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, structureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*StructureInvestor
	for rows.Next() {
		m := &StructureInvestor{}
		err := rows.Scan(&m.ID, &m.StructureID, &m.InvestorUserID, &m.CommitmentAmount,
			&m.Status, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateStructureInvestor updates a membership's commitment or status
func (r *Repository) UpdateStructureInvestor(ctx context.Context, m *StructureInvestor) error {
	query := `
		UPDATE structure_investors
		SET commitment_amount = $2, status = $3
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, m.ID, m.CommitmentAmount, m.Status)
	return err
}

// RemoveStructureInvestor deletes a membership
func (r *Repository) RemoveStructureInvestor(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM structure_investors WHERE id = $1`, id)
	return err
}

// ============================================================================
// WATERFALL TIERS
// ============================================================================

// CreateWaterfallTier inserts a single ladder rung
func (r *Repository) CreateWaterfallTier(ctx context.Context, t *WaterfallTierRow) error {
	query := `
		INSERT INTO waterfall_tiers (
			structure_id, tier_number, tier_name, lp_share_percent, gp_share_percent,
			threshold_amount, threshold_irr, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		t.StructureID, t.TierNumber, t.TierName, t.LPSharePercent, t.GPSharePercent,
		t.ThresholdAmount, t.ThresholdIRR, t.IsActive,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetActiveTiers retrieves a structure's active ladder ordered by tier number
func (r *Repository) GetActiveTiers(ctx context.Context, structureID string) ([]*WaterfallTierRow, error) {
	query := `
		SELECT id, structure_id, tier_number, tier_name, lp_share_percent, gp_share_percent,
		       threshold_amount, threshold_irr, is_active, created_at, updated_at
		FROM waterfall_tiers
		WHERE structure_id = $1 AND is_active = TRUE
		ORDER BY tier_number ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, structureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []*WaterfallTierRow
	for rows.Next() {
		t := &WaterfallTierRow{}
		err := rows.Scan(&t.ID, &t.StructureID, &t.TierNumber, &t.TierName,
			&t.LPSharePercent, &t.GPSharePercent, &t.ThresholdAmount, &t.ThresholdIRR,
			&t.IsActive, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// ReplaceTiers deactivates a structure's current ladder and inserts a new one
// in a single transaction. Ladders are never regenerated in place.
func (r *Repository) ReplaceTiers(ctx context.Context, structureID string, tiers []*WaterfallTierRow) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE waterfall_tiers SET is_active = FALSE WHERE structure_id = $1 AND is_active = TRUE`,
		structureID)
	if err != nil {
		return fmt.Errorf("failed to deactivate existing tiers: %w", err)
	}

	insert := `
		INSERT INTO waterfall_tiers (
			structure_id, tier_number, tier_name, lp_share_percent, gp_share_percent,
			threshold_amount, threshold_irr, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, created_at, updated_at
	`
	for _, t := range tiers {
		err := tx.QueryRow(
			ctx, insert,
			structureID, t.TierNumber, t.TierName, t.LPSharePercent, t.GPSharePercent,
			t.ThresholdAmount, t.ThresholdIRR,
		).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert tier %d: %w", t.TierNumber, err)
		}
	}

	return tx.Commit(ctx)
}

// UpdateWaterfallTier updates a single tier's split and thresholds
func (r *Repository) UpdateWaterfallTier(ctx context.Context, t *WaterfallTierRow) error {
	query := `
		UPDATE waterfall_tiers
		SET tier_name = $2, lp_share_percent = $3, gp_share_percent = $4,
		    threshold_amount = $5, threshold_irr = $6, is_active = $7
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		t.ID, t.TierName, t.LPSharePercent, t.GPSharePercent,
		t.ThresholdAmount, t.ThresholdIRR, t.IsActive,
	)
	return err
}
