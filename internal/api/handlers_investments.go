package api

import (
	"net/http"
	"time"

	"investment-platform/internal/database"
	"investment-platform/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ============================================================================
// INVESTMENTS
// ============================================================================

type createInvestmentRequest struct {
	StructureID       string  `json:"structure_id" binding:"required"`
	Name              string  `json:"name" binding:"required"`
	InvestmentType    string  `json:"investment_type" binding:"required"`
	EquityInvested    float64 `json:"equity_invested"`
	PrincipalProvided float64 `json:"principal_provided"`
	InterestRatePct   float64 `json:"interest_rate_pct"`
}

func (s *Server) handleCreateInvestment(c *gin.Context) {
	var req createInvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	investmentType := database.InvestmentType(req.InvestmentType)
	switch investmentType {
	case database.InvestmentEquity, database.InvestmentDebt, database.InvestmentMixed:
	default:
		errorResponse(c, http.StatusBadRequest, "invalid investment type: "+req.InvestmentType)
		return
	}

	if req.EquityInvested < 0 || req.PrincipalProvided < 0 {
		errorResponse(c, http.StatusBadRequest, "invested amounts must not be negative")
		return
	}
	if req.EquityInvested == 0 && req.PrincipalProvided == 0 {
		errorResponse(c, http.StatusBadRequest, "investment must carry equity or principal")
		return
	}

	if _, err := s.repo.GetStructureByID(c.Request.Context(), req.StructureID); err != nil {
		errorResponse(c, http.StatusNotFound, "structure not found")
		return
	}

	inv := &database.Investment{
		ID:                   uuid.New().String(),
		StructureID:          req.StructureID,
		Name:                 req.Name,
		InvestmentType:       investmentType,
		EquityInvested:       req.EquityInvested,
		EquityCurrentValue:   req.EquityInvested,
		PrincipalProvided:    req.PrincipalProvided,
		OutstandingPrincipal: req.PrincipalProvided,
		InterestRatePct:      req.InterestRatePct,
		Status:               "Active",
	}

	if err := s.repo.CreateInvestment(c.Request.Context(), inv); err != nil {
		s.handleServiceError(c, err)
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventInvestmentCreated,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"investment_id": inv.ID,
			"structure_id":  inv.StructureID,
			"name":          inv.Name,
		},
	})

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": inv})
}

func (s *Server) handleGetInvestments(c *gin.Context) {
	investments, err := s.repo.GetInvestmentsByStructure(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, investments)
}

func (s *Server) handleGetInvestment(c *gin.Context) {
	inv, err := s.repo.GetInvestmentByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "investment not found")
		return
	}
	successResponse(c, inv)
}

type updateInvestmentRequest struct {
	Name                 *string  `json:"name,omitempty"`
	EquityCurrentValue   *float64 `json:"equity_current_value,omitempty"`
	OutstandingPrincipal *float64 `json:"outstanding_principal,omitempty"`
	InterestRatePct      *float64 `json:"interest_rate_pct,omitempty"`
}

func (s *Server) handleUpdateInvestment(c *gin.Context) {
	inv, err := s.repo.GetInvestmentByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "investment not found")
		return
	}

	var req updateInvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Name != nil {
		inv.Name = *req.Name
	}
	if req.EquityCurrentValue != nil {
		inv.EquityCurrentValue = *req.EquityCurrentValue
	}
	if req.OutstandingPrincipal != nil {
		inv.OutstandingPrincipal = *req.OutstandingPrincipal
	}
	if req.InterestRatePct != nil {
		inv.InterestRatePct = *req.InterestRatePct
	}

	if err := s.repo.UpdateInvestment(c.Request.Context(), inv); err != nil {
		s.handleServiceError(c, err)
		return
	}

	successResponse(c, inv)
}

type exitInvestmentRequest struct {
	ExitValue float64 `json:"exit_value"`
}

func (s *Server) handleExitInvestment(c *gin.Context) {
	var req exitInvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	inv, err := s.ledgerService.ExitInvestment(c.Request.Context(), c.Param("id"), req.ExitValue)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	successResponse(c, inv)
}
