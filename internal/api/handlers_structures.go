package api

import (
	"net/http"
	"time"

	"investment-platform/internal/auth"
	"investment-platform/internal/billing"
	"investment-platform/internal/database"
	"investment-platform/internal/events"
	"investment-platform/internal/waterfall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MaxNestingLevel caps parent/child structure depth platform-wide. Tier
// limits may cap it lower for a given user.
const MaxNestingLevel = 5

// ============================================================================
// STRUCTURES
// ============================================================================

type createStructureRequest struct {
	Name               string  `json:"name" binding:"required"`
	StructureType      string  `json:"structure_type" binding:"required"`
	ParentID           *string `json:"parent_id,omitempty"`
	TotalCommitment    float64 `json:"total_commitment"`
	ManagementFeePct   float64 `json:"management_fee_pct"`
	CarriedInterestPct float64 `json:"carried_interest_pct"`
	HurdleRatePct      float64 `json:"hurdle_rate_pct"`
	WaterfallType      string  `json:"waterfall_type"`
}

func (s *Server) handleCreateStructure(c *gin.Context) {
	var req createStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	structureType := database.StructureType(req.StructureType)
	switch structureType {
	case database.StructureFund, database.StructureSPV, database.StructureTrust, database.StructureDebtFacility:
	default:
		errorResponse(c, http.StatusBadRequest, "invalid structure type: "+req.StructureType)
		return
	}

	if req.ManagementFeePct < 0 || req.ManagementFeePct > 100 {
		errorResponse(c, http.StatusBadRequest, "management fee percentage must be between 0 and 100")
		return
	}

	level := 0
	if req.ParentID != nil && *req.ParentID != "" {
		parent, err := s.repo.GetStructureByID(c.Request.Context(), *req.ParentID)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "parent structure not found")
			return
		}
		level = parent.Level + 1
	}

	maxLevel := s.maxNestingForUser(c)
	if level >= maxLevel {
		errorResponse(c, http.StatusBadRequest, "structure nesting limit exceeded")
		return
	}

	ownerID := s.getUserID(c)
	structure := &database.Structure{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		StructureType:      structureType,
		ParentID:           req.ParentID,
		Level:              level,
		TotalCommitment:    req.TotalCommitment,
		ManagementFeePct:   req.ManagementFeePct,
		CarriedInterestPct: req.CarriedInterestPct,
		HurdleRatePct:      req.HurdleRatePct,
		WaterfallType:      req.WaterfallType,
		OwnerUserID:        &ownerID,
	}

	if err := s.repo.CreateStructure(c.Request.Context(), structure); err != nil {
		s.handleServiceError(c, err)
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventStructureCreated,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"structure_id": structure.ID,
			"name":         structure.Name,
			"type":         string(structure.StructureType),
		},
	})

	successResponse(c, structure)
}

// maxNestingForUser returns the nesting limit allowed by the caller's
// subscription tier, never above the platform cap
func (s *Server) maxNestingForUser(c *gin.Context) int {
	maxLevel := MaxNestingLevel
	if !s.authEnabled {
		return maxLevel
	}

	user, err := s.repo.GetUserByID(c.Request.Context(), s.getUserID(c))
	if err != nil || user == nil {
		return maxLevel
	}

	limits := billing.GetTierLimits(billing.SubscriptionTier(user.SubscriptionTier))
	if limits.MaxNestingLevels > 0 && limits.MaxNestingLevels < maxLevel {
		maxLevel = limits.MaxNestingLevels
	}
	return maxLevel
}

func (s *Server) handleGetStructures(c *gin.Context) {
	var (
		structures []*database.Structure
		err        error
	)

	// Managers and above see everything; investors see structures they
	// belong to.
	if s.authEnabled && !database.RoleAtLeast(auth.GetUserRole(c), database.RoleManager) {
		structures, err = s.repo.GetStructuresForInvestor(c.Request.Context(), s.getUserID(c))
	} else {
		structures, err = s.repo.GetStructures(c.Request.Context())
	}
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	successResponse(c, structures)
}

func (s *Server) handleGetStructure(c *gin.Context) {
	structure, err := s.repo.GetStructureByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "structure not found")
		return
	}
	successResponse(c, structure)
}

type updateStructureRequest struct {
	Name               *string  `json:"name,omitempty"`
	TotalCommitment    *float64 `json:"total_commitment,omitempty"`
	ManagementFeePct   *float64 `json:"management_fee_pct,omitempty"`
	CarriedInterestPct *float64 `json:"carried_interest_pct,omitempty"`
	HurdleRatePct      *float64 `json:"hurdle_rate_pct,omitempty"`
	WaterfallType      *string  `json:"waterfall_type,omitempty"`
}

func (s *Server) handleUpdateStructure(c *gin.Context) {
	structure, err := s.repo.GetStructureByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "structure not found")
		return
	}

	var req updateStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Name != nil {
		structure.Name = *req.Name
	}
	if req.TotalCommitment != nil {
		structure.TotalCommitment = *req.TotalCommitment
	}
	if req.ManagementFeePct != nil {
		if *req.ManagementFeePct < 0 || *req.ManagementFeePct > 100 {
			errorResponse(c, http.StatusBadRequest, "management fee percentage must be between 0 and 100")
			return
		}
		structure.ManagementFeePct = *req.ManagementFeePct
	}
	if req.CarriedInterestPct != nil {
		structure.CarriedInterestPct = *req.CarriedInterestPct
	}
	if req.HurdleRatePct != nil {
		structure.HurdleRatePct = *req.HurdleRatePct
	}
	if req.WaterfallType != nil {
		structure.WaterfallType = *req.WaterfallType
	}

	if err := s.repo.UpdateStructure(c.Request.Context(), structure); err != nil {
		s.handleServiceError(c, err)
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventStructureUpdated,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"structure_id": structure.ID},
	})

	successResponse(c, structure)
}

func (s *Server) handleDeleteStructure(c *gin.Context) {
	id := c.Param("id")

	children, err := s.repo.GetChildStructures(c.Request.Context(), id)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	if len(children) > 0 {
		errorResponse(c, http.StatusConflict, "structure has child structures")
		return
	}

	if err := s.repo.DeleteStructure(c.Request.Context(), id); err != nil {
		s.handleServiceError(c, err)
		return
	}

	successResponse(c, gin.H{"deleted": id})
}

// ============================================================================
// INVESTOR MEMBERSHIPS
// ============================================================================

func (s *Server) handleGetOwnership(c *gin.Context) {
	owners, err := s.ledgerService.Ownership(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, owners)
}

func (s *Server) handleGetStructureInvestors(c *gin.Context) {
	members, err := s.repo.GetStructureInvestors(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, members)
}

type addInvestorRequest struct {
	InvestorUserID   string  `json:"investor_user_id" binding:"required"`
	CommitmentAmount float64 `json:"commitment_amount" binding:"required"`
}

func (s *Server) handleAddStructureInvestor(c *gin.Context) {
	structureID := c.Param("id")

	var req addInvestorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.CommitmentAmount <= 0 {
		errorResponse(c, http.StatusBadRequest, "commitment amount must be positive")
		return
	}

	if _, err := s.repo.GetStructureByID(c.Request.Context(), structureID); err != nil {
		errorResponse(c, http.StatusNotFound, "structure not found")
		return
	}

	user, err := s.repo.GetUserByID(c.Request.Context(), req.InvestorUserID)
	if err != nil || user == nil {
		errorResponse(c, http.StatusBadRequest, "investor user not found")
		return
	}

	member := &database.StructureInvestor{
		ID:               uuid.New().String(),
		StructureID:      structureID,
		InvestorUserID:   req.InvestorUserID,
		CommitmentAmount: req.CommitmentAmount,
		Status:           "active",
	}

	if err := s.repo.AddStructureInvestor(c.Request.Context(), member); err != nil {
		s.handleServiceError(c, err)
		return
	}

	// Commitments changed; cached ownership percentages are stale
	s.ledgerService.InvalidateOwnership(c.Request.Context(), structureID)

	s.eventBus.Publish(events.Event{
		Type:      events.EventInvestorAdded,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"structure_id": structureID,
			"investor_id":  req.InvestorUserID,
			"commitment":   req.CommitmentAmount,
		},
	})

	successResponse(c, member)
}

type updateInvestorRequest struct {
	CommitmentAmount *float64 `json:"commitment_amount,omitempty"`
	Status           *string  `json:"status,omitempty"`
}

func (s *Server) handleUpdateStructureInvestor(c *gin.Context) {
	structureID := c.Param("id")
	memberID := c.Param("memberID")

	members, err := s.repo.GetStructureInvestors(c.Request.Context(), structureID)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	var member *database.StructureInvestor
	for _, m := range members {
		if m.ID == memberID {
			member = m
			break
		}
	}
	if member == nil {
		errorResponse(c, http.StatusNotFound, "membership not found")
		return
	}

	var req updateInvestorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.CommitmentAmount != nil {
		if *req.CommitmentAmount <= 0 {
			errorResponse(c, http.StatusBadRequest, "commitment amount must be positive")
			return
		}
		member.CommitmentAmount = *req.CommitmentAmount
	}
	if req.Status != nil {
		member.Status = *req.Status
	}

	if err := s.repo.UpdateStructureInvestor(c.Request.Context(), member); err != nil {
		s.handleServiceError(c, err)
		return
	}

	s.ledgerService.InvalidateOwnership(c.Request.Context(), structureID)
	successResponse(c, member)
}

func (s *Server) handleRemoveStructureInvestor(c *gin.Context) {
	structureID := c.Param("id")
	memberID := c.Param("memberID")

	if err := s.repo.RemoveStructureInvestor(c.Request.Context(), memberID); err != nil {
		s.handleServiceError(c, err)
		return
	}

	s.ledgerService.InvalidateOwnership(c.Request.Context(), structureID)
	successResponse(c, gin.H{"removed": memberID})
}

// ============================================================================
// WATERFALL LADDER
// ============================================================================

func (s *Server) handleGetLadder(c *gin.Context) {
	tiers, err := s.repo.GetActiveTiers(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, tiers)
}

func (s *Server) handleCreateDefaultLadder(c *gin.Context) {
	tiers, err := s.ledgerService.CreateDefaultLadder(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventLadderReplaced,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"structure_id": c.Param("id")},
	})

	successResponse(c, tiers)
}

type replaceLadderRequest struct {
	Tiers []waterfall.Tier `json:"tiers" binding:"required"`
}

func (s *Server) handleReplaceLadder(c *gin.Context) {
	structureID := c.Param("id")

	var req replaceLadderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	for i := range req.Tiers {
		req.Tiers[i].StructureID = structureID
	}

	tiers, err := s.ledgerService.ReplaceLadder(c.Request.Context(), structureID, req.Tiers)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventLadderReplaced,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"structure_id": structureID},
	})

	successResponse(c, tiers)
}
