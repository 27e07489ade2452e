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
// DISTRIBUTIONS
// ============================================================================

func (s *Server) handleCreateDistribution(c *gin.Context) {
	var in ledger.CreateDistributionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	d, err := s.ledgerService.CreateDistribution(c.Request.Context(), in)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": d})
}

func (s *Server) handleGetDistributions(c *gin.Context) {
	distributions, err := s.repo.GetDistributionsByStructure(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, distributions)
}

func (s *Server) handleGetDistribution(c *gin.Context) {
	d, err := s.repo.GetDistributionByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusNotFound, "distribution not found")
		return
	}
	successResponse(c, d)
}

func (s *Server) handleApplyWaterfall(c *gin.Context) {
	d, err := s.ledgerService.ApplyWaterfall(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, d)
}

func (s *Server) handleCreateDistributionAllocations(c *gin.Context) {
	allocations, err := s.ledgerService.CreateDistributionAllocations(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	if s.emailService != nil {
		go s.sendDistributionNotices(c.Param("id"))
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": allocations})
}

// sendDistributionNotices emails every investor with a share of the payout
func (s *Server) sendDistributionNotices(distributionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	d, err := s.repo.GetDistributionByID(ctx, distributionID)
	if err != nil {
		log.Printf("Failed to load distribution %s for notices: %v", distributionID, err)
		return
	}

	structure, err := s.repo.GetStructureByID(ctx, d.StructureID)
	if err != nil {
		log.Printf("Failed to load structure for distribution %s: %v", distributionID, err)
		return
	}

	allocations, err := s.repo.GetDistributionAllocations(ctx, distributionID)
	if err != nil {
		log.Printf("Failed to load allocations for distribution %s: %v", distributionID, err)
		return
	}

	for _, alloc := range allocations {
		user, err := s.repo.GetUserByID(ctx, alloc.InvestorUserID)
		if err != nil || user == nil {
			continue
		}
		if err := s.emailService.SendDistributionNotice(ctx, user.Email, user.Name, structure.Name, d.DistributionNumber, alloc.AllocatedAmount); err != nil {
			log.Printf("Failed to send distribution notice to %s: %v", user.Email, err)
		}
	}
}

func (s *Server) handleGetDistributionAllocations(c *gin.Context) {
	allocations, err := s.repo.GetDistributionAllocations(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, allocations)
}

func (s *Server) handleMarkDistributionPaid(c *gin.Context) {
	d, err := s.ledgerService.MarkDistributionPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, d)
}
