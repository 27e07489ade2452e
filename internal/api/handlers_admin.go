package api

import (
	"net/http"
	"strconv"

	"investment-platform/internal/auth"
	"investment-platform/internal/database"

	"github.com/gin-gonic/gin"
)

// ============================================================================
// ADMIN
// ============================================================================

func (s *Server) handleGetUsers(c *gin.Context) {
	users, err := s.repo.GetUsers(c.Request.Context())
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	// Never expose password hashes, even to admins
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"id":                  u.ID,
			"email":               u.Email,
			"name":                u.Name,
			"role":                u.Role,
			"email_verified":      u.EmailVerified,
			"kyc_status":          u.KYCStatus,
			"subscription_tier":   u.SubscriptionTier,
			"subscription_status": u.SubscriptionStatus,
			"created_at":          u.CreatedAt,
			"last_login_at":       u.LastLoginAt,
		})
	}
	successResponse(c, out)
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (s *Server) handleUpdateUserRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	role := database.Role(req.Role)
	if !database.ValidRole(role) {
		errorResponse(c, http.StatusBadRequest, "invalid role: "+req.Role)
		return
	}

	// Only root may mint other root users
	if role == database.RoleRoot && s.authEnabled && auth.GetUserRole(c) != database.RoleRoot {
		errorResponse(c, http.StatusForbidden, "root role required")
		return
	}

	user, err := s.repo.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil || user == nil {
		errorResponse(c, http.StatusNotFound, "user not found")
		return
	}

	user.Role = role
	if err := s.repo.UpdateUser(c.Request.Context(), user); err != nil {
		s.handleServiceError(c, err)
		return
	}

	successResponse(c, gin.H{"id": user.ID, "role": user.Role})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	prefix := c.DefaultQuery("prefix", "")
	settings, err := s.repo.GetSettings(c.Request.Context(), prefix)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}

	// Mask secret-bearing keys
	for key := range settings {
		if key == "smtp_password" {
			settings[key] = "********"
		}
	}
	successResponse(c, settings)
}

type setSettingRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

func (s *Server) handleSetSetting(c *gin.Context) {
	var req setSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.repo.SetSetting(c.Request.Context(), req.Key, req.Value); err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, gin.H{"key": req.Key})
}

func (s *Server) handleGetSystemEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	eventsList, err := s.repo.GetRecentSystemEvents(c.Request.Context(), limit)
	if err != nil {
		s.handleServiceError(c, err)
		return
	}
	successResponse(c, eventsList)
}

func (s *Server) handleSchedulerStatus(c *gin.Context) {
	if s.scheduler == nil {
		errorResponse(c, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	successResponse(c, s.scheduler.GetStatus())
}

func (s *Server) handleSchedulerRun(c *gin.Context) {
	if s.scheduler == nil {
		errorResponse(c, http.StatusServiceUnavailable, "scheduler not running")
		return
	}

	if err := s.scheduler.ManualScan(c.Request.Context()); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	successResponse(c, gin.H{"scan": "complete"})
}

func (s *Server) handleCacheStats(c *gin.Context) {
	if s.cacheService == nil {
		errorResponse(c, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	successResponse(c, s.cacheService.GetStats())
}

func (s *Server) handleVaultHealth(c *gin.Context) {
	if s.vaultClient == nil {
		errorResponse(c, http.StatusServiceUnavailable, "vault not configured")
		return
	}

	if err := s.vaultClient.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   true,
			"message": "vault unhealthy: " + err.Error(),
		})
		return
	}
	successResponse(c, gin.H{"vault": "healthy", "enabled": s.vaultClient.IsEnabled()})
}
