package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"investment-platform/internal/ledger"

	"github.com/gin-gonic/gin"
)

// ============================================================================
// CAPITAL CALLS
// ============================================================================

func (s *Server) handleCreateCapitalCall(c *gin.Context) {
	var in ledger.CreateCapitalCallInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	call, allocations, err := s.ledgerService.CreateCapitalCall(c.Request.Context(), in)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"capital_call": call,
			"allocations":  allocations,
		},
	})
}

func (s *Server) handleGetCapitalCalls(c *gin.Context) {
	calls, err := s.repo.GetCapitalCallsByStructure(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, calls)
}

func (s *Server) handleGetCapitalCall(c *gin.Context) {
	call, err := s.repo.GetCapitalCallByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "capital call not found")
		return
	}
	successResponse(c, call)
}

func (s *Server) handleGetCapitalCallAllocations(c *gin.Context) {
	allocations, err := s.repo.GetCapitalCallAllocations(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, allocations)
}

// handleGetMyCapitalCallAllocations lists the caller's own allocations
// across all structures
func (s *Server) handleGetMyCapitalCallAllocations(c *gin.Context) {
	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	allocations, err := s.repo.GetCapitalCallAllocationsForInvestor(c.Request.Context(), userID)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, allocations)
}

func (s *Server) handleSendCapitalCall(c *gin.Context) {
	call, err := s.ledgerService.SendCapitalCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	// Notices go out best-effort after the status flip; a mail failure
	// must not roll the call back to Draft.
	if s.emailService != nil {
		go s.sendCallNotices(call.ID)
	}

	successResponse(c, call)
}

// sendCallNotices emails every investor with an allocation on the call
func (s *Server) sendCallNotices(callID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	call, err := s.repo.GetCapitalCallByID(ctx, callID)
	if err != nil {
		log.Printf("Failed to load capital call %s for notices: %v", callID, err)
		return
	}

	structure, err := s.repo.GetStructureByID(ctx, call.StructureID)
	if err != nil {
		log.Printf("Failed to load structure for capital call %s: %v", callID, err)
		return
	}

	allocations, err := s.repo.GetCapitalCallAllocations(ctx, callID)
	if err != nil {
		log.Printf("Failed to load allocations for capital call %s: %v", callID, err)
		return
	}

	for _, alloc := range allocations {
		user, err := s.repo.GetUserByID(ctx, alloc.InvestorUserID)
		if err != nil || user == nil {
			continue
		}
		if err := s.emailService.SendCapitalCallNotice(ctx, user.Email, user.Name, structure.Name, call, alloc.AllocatedAmount); err != nil {
			log.Printf("Failed to send capital call notice to %s: %v", user.Email, err)
		}
	}
}

type recordPaymentRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

func (s *Server) handleRecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	call, err := s.ledgerService.RecordCapitalCallPayment(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	successResponse(c, call)
}
