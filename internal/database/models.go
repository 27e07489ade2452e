package database

import (
	"time"
)

// StructureType identifies the kind of investment vehicle
type StructureType string

const (
	StructureFund         StructureType = "FUND"
	StructureSPV          StructureType = "SPV"
	StructureTrust        StructureType = "TRUST"
	StructureDebtFacility StructureType = "DEBT_FACILITY"
)

// MaxStructureLevels caps how deeply structures may nest
const MaxStructureLevels = 5

// Structure represents an investment vehicle (fund, SPV, trust, debt facility).
// The total_* columns are monotone accumulators updated only through the
// capital-call and distribution workflows.
type Structure struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	StructureType        StructureType `json:"structure_type"`
	ParentID             *string       `json:"parent_id,omitempty"`
	Level                int           `json:"level"`
	TotalCommitment      float64       `json:"total_commitment"`
	TotalCalled          float64       `json:"total_called"`
	TotalDistributed     float64       `json:"total_distributed"`
	TotalInvested        float64       `json:"total_invested"`
	TotalCapitalReturned float64       `json:"total_capital_returned"`
	TotalPreferredPaid   float64       `json:"total_preferred_paid"`
	TotalCatchUpPaid     float64       `json:"total_catch_up_paid"`
	TotalCarryPaid       float64       `json:"total_carry_paid"`
	ManagementFeePct     float64       `json:"management_fee_pct"`
	CarriedInterestPct   float64       `json:"carried_interest_pct"`
	HurdleRatePct        float64       `json:"hurdle_rate_pct"`
	WaterfallType        string        `json:"waterfall_type"`
	OwnerUserID          *string       `json:"owner_user_id,omitempty"`
	FirstCallDate        *time.Time    `json:"first_call_date,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// StructureInvestor is an investor's membership in a structure. Ownership
// percentage is derived from commitment / sum of commitments, never stored.
type StructureInvestor struct {
	ID               string    `json:"id"`
	StructureID      string    `json:"structure_id"`
	InvestorUserID   string    `json:"investor_user_id"`
	CommitmentAmount float64   `json:"commitment_amount"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// WaterfallTierRow is a persisted ladder rung
type WaterfallTierRow struct {
	ID              string    `json:"id"`
	StructureID     string    `json:"structure_id"`
	TierNumber      int       `json:"tier_number"`
	TierName        string    `json:"tier_name"`
	LPSharePercent  float64   `json:"lp_share_percent"`
	GPSharePercent  float64   `json:"gp_share_percent"`
	ThresholdAmount *float64  `json:"threshold_amount,omitempty"`
	ThresholdIRR    *float64  `json:"threshold_irr,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// InvestmentType classifies a position
type InvestmentType string

const (
	InvestmentEquity InvestmentType = "EQUITY"
	InvestmentDebt   InvestmentType = "DEBT"
	InvestmentMixed  InvestmentType = "MIXED"
)

// Investment statuses
const (
	InvestmentActive = "Active"
	InvestmentExited = "Exited"
)

// Investment is a structure's position in a portfolio company or asset
type Investment struct {
	ID                   string         `json:"id"`
	StructureID          string         `json:"structure_id"`
	Name                 string         `json:"name"`
	InvestmentType       InvestmentType `json:"investment_type"`
	EquityInvested       float64        `json:"equity_invested"`
	EquityCurrentValue   float64        `json:"equity_current_value"`
	PrincipalProvided    float64        `json:"principal_provided"`
	OutstandingPrincipal float64        `json:"outstanding_principal"`
	InterestRatePct      float64        `json:"interest_rate_pct"`
	Status               string         `json:"status"`
	ExitValue            *float64       `json:"exit_value,omitempty"`
	RealizedGain         *float64       `json:"realized_gain,omitempty"`
	IRRPercent           *float64       `json:"irr_percent,omitempty"`
	MOIC                 *float64       `json:"moic,omitempty"`
	TotalReturns         float64        `json:"total_returns"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Capital call statuses. Transitions only move forward:
// Draft -> Sent -> Partially Paid -> Paid.
const (
	CallStatusDraft         = "Draft"
	CallStatusSent          = "Sent"
	CallStatusPartiallyPaid = "Partially Paid"
	CallStatusPaid          = "Paid"
)

// CapitalCall is a request for capital attached to a structure.
// total_paid_amount + total_unpaid_amount = total_call_amount at all times.
type CapitalCall struct {
	ID                string     `json:"id"`
	StructureID       string     `json:"structure_id"`
	InvestmentID      *string    `json:"investment_id,omitempty"`
	CallNumber        int        `json:"call_number"`
	CallDate          time.Time  `json:"call_date"`
	DueDate           time.Time  `json:"due_date"`
	TotalCallAmount   float64    `json:"total_call_amount"`
	TotalPaidAmount   float64    `json:"total_paid_amount"`
	TotalUnpaidAmount float64    `json:"total_unpaid_amount"`
	Status            string     `json:"status"`
	SentDate          *time.Time `json:"sent_date,omitempty"`
	Purpose           *string    `json:"purpose,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Allocation statuses
const (
	AllocationPending = "Pending"
	AllocationPaid    = "Paid"
)

// CapitalCallAllocation is one investor's share of a capital call
type CapitalCallAllocation struct {
	ID              string    `json:"id"`
	CapitalCallID   string    `json:"capital_call_id"`
	InvestorUserID  string    `json:"investor_user_id"`
	AllocatedAmount float64   `json:"allocated_amount"`
	PaidAmount      float64   `json:"paid_amount"`
	RemainingAmount float64   `json:"remaining_amount"`
	Status          string    `json:"status"`
	DueDate         time.Time `json:"due_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Distribution statuses
const (
	DistributionDraft = "Draft"
	DistributionPaid  = "Paid"
)

// Distribution is a cash distribution event. Tier amounts stay zero until the
// waterfall is applied; waterfall_applied flips false -> true exactly once.
type Distribution struct {
	ID                  string     `json:"id"`
	StructureID         string     `json:"structure_id"`
	InvestmentID        *string    `json:"investment_id,omitempty"`
	DistributionNumber  int        `json:"distribution_number"`
	DistributionDate    time.Time  `json:"distribution_date"`
	TotalAmount         float64    `json:"total_amount"`
	SourceEquityGain    float64    `json:"source_equity_gain"`
	SourceDebtInterest  float64    `json:"source_debt_interest"`
	SourceDebtPrincipal float64    `json:"source_debt_principal"`
	SourceOther         float64    `json:"source_other"`
	WaterfallApplied    bool       `json:"waterfall_applied"`
	Tier1Amount         float64    `json:"tier1_amount"`
	Tier2Amount         float64    `json:"tier2_amount"`
	Tier3Amount         float64    `json:"tier3_amount"`
	Tier4Amount         float64    `json:"tier4_amount"`
	LPTotalAmount       float64    `json:"lp_total_amount"`
	GPTotalAmount       float64    `json:"gp_total_amount"`
	ManagementFeeAmount float64    `json:"management_fee_amount"`
	Status              string     `json:"status"`
	PaidDate            *time.Time `json:"paid_date,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DistributionAllocation is one investor's share of a distribution's LP pool
type DistributionAllocation struct {
	ID              string    `json:"id"`
	DistributionID  string    `json:"distribution_id"`
	InvestorUserID  string    `json:"investor_user_id"`
	AllocatedAmount float64   `json:"allocated_amount"`
	PaidAmount      float64   `json:"paid_amount"`
	RemainingAmount float64   `json:"remaining_amount"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EntityKind tags which table a document's entity_id points into
type EntityKind string

const (
	EntityStructure    EntityKind = "structure"
	EntityInvestor     EntityKind = "investor"
	EntityInvestment   EntityKind = "investment"
	EntityCapitalCall  EntityKind = "capital_call"
	EntityDistribution EntityKind = "distribution"
)

// ValidEntityKind reports whether k is a known document target
func ValidEntityKind(k EntityKind) bool {
	switch k {
	case EntityStructure, EntityInvestor, EntityInvestment, EntityCapitalCall, EntityDistribution:
		return true
	}
	return false
}

// Document stores file metadata plus a tagged reference to the entity it
// belongs to. File bytes live in object storage under file_key.
type Document struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	FileKey         string     `json:"file_key"`
	ContentType     string     `json:"content_type"`
	SizeBytes       int64      `json:"size_bytes"`
	UploadedBy      *string    `json:"uploaded_by,omitempty"`
	EntityKind      EntityKind `json:"entity_kind"`
	EntityID        string     `json:"entity_id"`
	ESignEnvelopeID *string    `json:"esign_envelope_id,omitempty"`
	ESignStatus     *string    `json:"esign_status,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Conversation is a message thread between platform users
type Conversation struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	CreatedBy      *string   `json:"created_by,omitempty"`
	ParticipantIDs []string  `json:"participant_ids"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is a single message within a conversation
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderUserID   *string    `json:"sender_user_id,omitempty"`
	Body           string     `json:"body"`
	SentAt         time.Time  `json:"sent_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// SystemEvent is a persisted event-bus record
type SystemEvent struct {
	ID        int64                  `json:"id"`
	EventType string                 `json:"event_type"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
