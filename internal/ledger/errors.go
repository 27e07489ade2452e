package ledger

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed input rejected before any computation or
// write ran. It carries every violation found, not just the first.
type ValidationError struct {
	Errors []string `json:"errors"`
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

func newValidationError(errs ...string) *ValidationError {
	return &ValidationError{Errors: errs}
}

// ConflictError reports a precondition violation: the request was well formed
// but the entity is in a state that forbids it. Rejected with no state change.
type ConflictError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotFoundError reports that an entity id did not resolve
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Conflict sentinels
var (
	// ErrWaterfallApplied rejects a second waterfall run on the same
	// distribution. The engine is single-shot per distribution.
	ErrWaterfallApplied = &ConflictError{
		Code:    "WATERFALL_APPLIED",
		Message: "waterfall has already been applied to this distribution",
	}

	// ErrCallNotDraft rejects sending a capital call that already left Draft
	ErrCallNotDraft = &ConflictError{
		Code:    "CALL_NOT_DRAFT",
		Message: "capital call is not in Draft status",
	}

	// ErrLadderExists rejects creating a default ladder over an active one
	ErrLadderExists = &ConflictError{
		Code:    "LADDER_EXISTS",
		Message: "structure already has an active tier ladder",
	}

	// ErrInvestmentExited rejects exiting a position twice
	ErrInvestmentExited = &ConflictError{
		Code:    "INVESTMENT_EXITED",
		Message: "investment has already been exited",
	}

	// ErrAllocationsExist rejects a second allocation fan-out
	ErrAllocationsExist = &ConflictError{
		Code:    "ALLOCATIONS_EXIST",
		Message: "allocations have already been created for this distribution",
	}
)
