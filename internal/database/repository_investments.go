package database

import (
	"context"
	"fmt"
)

const investmentColumns = `
	id, structure_id, name, investment_type, equity_invested, equity_current_value,
	principal_provided, outstanding_principal, interest_rate_pct, status,
	exit_value, realized_gain, irr_percent, moic, total_returns, created_at, updated_at`

// CreateInvestment inserts a new investment
func (r *Repository) CreateInvestment(ctx context.Context, inv *Investment) error {
	query := `
		INSERT INTO investments (
			structure_id, name, investment_type, equity_invested, equity_current_value,
			principal_provided, outstanding_principal, interest_rate_pct, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		inv.StructureID, inv.Name, inv.InvestmentType, inv.EquityInvested, inv.EquityCurrentValue,
		inv.PrincipalProvided, inv.OutstandingPrincipal, inv.InterestRatePct, inv.Status,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
}

// GetInvestmentByID retrieves an investment by ID
func (r *Repository) GetInvestmentByID(ctx context.Context, id string) (*Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`
	inv := &Investment{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.StructureID, &inv.Name, &inv.InvestmentType,
		&inv.EquityInvested, &inv.EquityCurrentValue, &inv.PrincipalProvided,
		&inv.OutstandingPrincipal, &inv.InterestRatePct, &inv.Status,
		&inv.ExitValue, &inv.RealizedGain, &inv.IRRPercent, &inv.MOIC, &inv.TotalReturns,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetInvestmentsByStructure retrieves all investments for a structure
func (r *Repository) GetInvestmentsByStructure(ctx context.Context, structureID string) ([]*Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE structure_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, query, structureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var investments []*Investment
	for rows.Next() {
		inv := &Investment{}
		err := rows.Scan(
			&inv.ID, &inv.StructureID, &inv.Name, &inv.InvestmentType,
			&inv.EquityInvested, &inv.EquityCurrentValue, &inv.PrincipalProvided,
			&inv.OutstandingPrincipal, &inv.InterestRatePct, &inv.Status,
			&inv.ExitValue, &inv.RealizedGain, &inv.IRRPercent, &inv.MOIC, &inv.TotalReturns,
			&inv.CreatedAt, &inv.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		investments = append(investments, inv)
	}
	return investments, rows.Err()
}

// UpdateInvestment updates an investment's valuation and performance fields
func (r *Repository) UpdateInvestment(ctx context.Context, inv *Investment) error {
	query := `
		UPDATE investments
		SET name = $2, equity_invested = $3, equity_current_value = $4,
		    principal_provided = $5, outstanding_principal = $6, interest_rate_pct = $7,
		    irr_percent = $8, moic = $9, total_returns = $10
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		inv.ID, inv.Name, inv.EquityInvested, inv.EquityCurrentValue,
		inv.PrincipalProvided, inv.OutstandingPrincipal, inv.InterestRatePct,
		inv.IRRPercent, inv.MOIC, inv.TotalReturns,
	)
	return err
}

// ExitInvestment marks an Active investment as Exited and records the realized
// gain, guarded so a position can only be exited once.
func (r *Repository) ExitInvestment(ctx context.Context, id string, exitValue, realizedGain float64) (bool, error) {
	query := `
		UPDATE investments
		SET status = $2, exit_value = $3, realized_gain = $4
		WHERE id = $1 AND status = $5
	`
	tag, err := r.db.Pool.Exec(ctx, query, id, InvestmentExited, exitValue, realizedGain, InvestmentActive)
	if err != nil {
		return false, fmt.Errorf("failed to exit investment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteInvestment removes an investment
func (r *Repository) DeleteInvestment(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM investments WHERE id = $1`, id)
	return err
}
