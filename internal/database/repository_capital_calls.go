package database

import (
	"context"
	"fmt"
	"time"
)

const capitalCallColumns = `
	id, structure_id, investment_id, call_number, call_date, due_date,
	total_call_amount, total_paid_amount, total_unpaid_amount, status,
	sent_date, purpose, created_at, updated_at`

// ============================================================================
// CAPITAL CALLS
// ============================================================================

// CreateCapitalCallWithAllocations persists a capital call, its per-investor
// allocations and the structure's total_called bump in a single transaction.
// The structure's first_call_date is set on the first call ever issued; it
// anchors the hurdle accrual clock.
func (r *Repository) CreateCapitalCallWithAllocations(ctx context.Context, call *CapitalCall, allocations []*CapitalCallAllocation) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	callQuery := `
		INSERT INTO capital_calls (
			structure_id, investment_id, call_number, call_date, due_date,
			total_call_amount, total_paid_amount, total_unpaid_amount, status, purpose
		)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRow(
		ctx, callQuery,
		call.StructureID, call.InvestmentID, call.CallNumber, call.CallDate, call.DueDate,
		call.TotalCallAmount, call.Status, call.Purpose,
	).Scan(&call.ID, &call.CreatedAt, &call.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert capital call: %w", err)
	}

	allocQuery := `
		INSERT INTO capital_call_allocations (
			capital_call_id, investor_user_id, allocated_amount, paid_amount,
			remaining_amount, status, due_date
		)
		VALUES ($1, $2, $3, 0, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	for _, a := range allocations {
		a.CapitalCallID = call.ID
		err := tx.QueryRow(
			ctx, allocQuery,
			call.ID, a.InvestorUserID, a.AllocatedAmount, a.Status, a.DueDate,
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert allocation for investor %s: %w", a.InvestorUserID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE structures
		SET total_called = total_called + $2,
		    first_call_date = COALESCE(first_call_date, $3)
		WHERE id = $1
	`, call.StructureID, call.TotalCallAmount, call.CallDate)
	if err != nil {
		return fmt.Errorf("failed to update structure totals: %w", err)
	}

	return tx.Commit(ctx)
}

// GetCapitalCallByID retrieves a capital call by ID
func (r *Repository) GetCapitalCallByID(ctx context.Context, id string) (*CapitalCall, error) {
	query := `SELECT ` + capitalCallColumns + ` FROM capital_calls WHERE id = $1`
	return r.scanCapitalCall(r.db.Pool.QueryRow(ctx, query, id))
}

// GetCapitalCallsByStructure retrieves a structure's capital calls in call order
func (r *Repository) GetCapitalCallsByStructure(ctx context.Context, structureID string) ([]*CapitalCall, error) {
	query := `SELECT ` + capitalCallColumns + ` FROM capital_calls WHERE structure_id = $1 ORDER BY call_number ASC`
	rows, err := r.db.Pool.Query(ctx, query, structureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []*CapitalCall
	for rows.Next() {
		call, err := r.scanCapitalCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// GetOverdueCapitalCalls returns calls past their due date that still have
// unpaid amounts outstanding
func (r *Repository) GetOverdueCapitalCalls(ctx context.Context, asOf time.Time) ([]*CapitalCall, error) {
	query := `
		SELECT ` + capitalCallColumns + ` FROM capital_calls
		WHERE due_date < $1
		  AND status IN ('Sent', 'Partially Paid')
		ORDER BY due_date ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []*CapitalCall
	for rows.Next() {
		call, err := r.scanCapitalCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// NextCallNumber returns the next sequential call number for a structure
func (r *Repository) NextCallNumber(ctx context.Context, structureID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(call_number), 0) + 1 FROM capital_calls WHERE structure_id = $1`,
		structureID).Scan(&n)
	return n, err
}

// MarkCapitalCallSent transitions a call from Draft to Sent. The status check
// is part of the UPDATE so two concurrent sends cannot both succeed; returns
// false when the call was not in Draft.
func (r *Repository) MarkCapitalCallSent(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE capital_calls
		SET status = $2, sent_date = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $3
	`
	tag, err := r.db.Pool.Exec(ctx, query, id, CallStatusSent, CallStatusDraft)
	if err != nil {
		return false, fmt.Errorf("failed to mark capital call sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RecordCapitalCallPayment adds a payment to a call's running totals in one
// atomic statement: the increment, the unpaid recompute and the status
// derivation all happen inside the UPDATE so concurrent payments cannot
// double-count. A call in Sent keeps that status on a partial payment; only a
// Draft call moves to Partially Paid. Returns false when the payment would
// overshoot the call amount (or the call does not exist).
func (r *Repository) RecordCapitalCallPayment(ctx context.Context, id string, amount float64) (*CapitalCall, bool, error) {
	query := `
		UPDATE capital_calls
		SET total_paid_amount = total_paid_amount + $2,
		    total_unpaid_amount = total_call_amount - (total_paid_amount + $2),
		    status = CASE
		        WHEN total_paid_amount + $2 >= total_call_amount THEN 'Paid'
		        WHEN status = 'Draft' AND total_paid_amount + $2 > 0 THEN 'Partially Paid'
		        ELSE status
		    END
		WHERE id = $1 AND total_paid_amount + $2 <= total_call_amount
		RETURNING ` + capitalCallColumns + `
	`
	call, err := r.scanCapitalCall(r.db.Pool.QueryRow(ctx, query, id, amount))
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to record payment: %w", err)
	}
	return call, true, nil
}

func (r *Repository) scanCapitalCall(row rowScanner) (*CapitalCall, error) {
	call := &CapitalCall{}
	err := row.Scan(
		&call.ID, &call.StructureID, &call.InvestmentID, &call.CallNumber,
		&call.CallDate, &call.DueDate, &call.TotalCallAmount, &call.TotalPaidAmount,
		&call.TotalUnpaidAmount, &call.Status, &call.SentDate, &call.Purpose,
		&call.CreatedAt, &call.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return call, nil
}

// ============================================================================
// CAPITAL CALL ALLOCATIONS
// ============================================================================

// GetCapitalCallAllocations retrieves the per-investor fan-out of a call
func (r *Repository) GetCapitalCallAllocations(ctx context.Context, capitalCallID string) ([]*CapitalCallAllocation, error) {
	query := `
		SELECT id, capital_call_id, investor_user_id, allocated_amount, paid_amount,
		       remaining_amount, status, due_date, created_at, updated_at
		FROM capital_call_allocations
		WHERE capital_call_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, capitalCallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []*CapitalCallAllocation
	for rows.Next() {
		a := &CapitalCallAllocation{}
		err := rows.Scan(&a.ID, &a.CapitalCallID, &a.InvestorUserID, &a.AllocatedAmount,
			&a.PaidAmount, &a.RemainingAmount, &a.Status, &a.DueDate, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// GetCapitalCallAllocationsForInvestor retrieves an investor's allocations
// across all calls
func (r *Repository) GetCapitalCallAllocationsForInvestor(ctx context.Context, investorUserID string) ([]*CapitalCallAllocation, error) {
	query := `
		SELECT id, capital_call_id, investor_user_id, allocated_amount, paid_amount,
		       remaining_amount, status, due_date, created_at, updated_at
		FROM capital_call_allocations
		WHERE investor_user_id = $1
		ORDER BY due_date DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, investorUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []*CapitalCallAllocation
	for rows.Next() {
		a := &CapitalCallAllocation{}
		err := rows.Scan(&a.ID, &a.CapitalCallID, &a.InvestorUserID, &a.AllocatedAmount,
			&a.PaidAmount, &a.RemainingAmount, &a.Status, &a.DueDate, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// RecordAllocationPayment records a payment against one investor's allocation
func (r *Repository) RecordAllocationPayment(ctx context.Context, allocationID string, amount float64) (bool, error) {
	query := `
		UPDATE capital_call_allocations
		SET paid_amount = paid_amount + $2,
		    remaining_amount = allocated_amount - (paid_amount + $2),
		    status = CASE
		        WHEN paid_amount + $2 >= allocated_amount THEN 'Paid'
		        ELSE status
		    END
		WHERE id = $1 AND paid_amount + $2 <= allocated_amount
	`
	tag, err := r.db.Pool.Exec(ctx, query, allocationID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to record allocation payment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
