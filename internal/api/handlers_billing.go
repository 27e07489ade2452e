package api

import (
	"io"
	"net/http"
	"time"

	"investment-platform/internal/billing"
	"investment-platform/internal/events"

	"github.com/gin-gonic/gin"
)

// ============================================================================
// BILLING
// ============================================================================

func (s *Server) handleGetTiers(c *gin.Context) {
	tiers := []gin.H{}
	for _, tier := range []billing.SubscriptionTier{billing.TierFree, billing.TierProfessional, billing.TierInstitution} {
		limits := billing.GetTierLimits(tier)
		tiers = append(tiers, gin.H{
			"tier":        tier,
			"monthly_fee": billing.GetMonthlyFee(tier),
			"limits":      limits,
		})
	}
	successResponse(c, tiers)
}

type checkoutRequest struct {
	Tier       string `json:"tier" binding:"required"`
	SuccessURL string `json:"success_url" binding:"required"`
	CancelURL  string `json:"cancel_url" binding:"required"`
}

func (s *Server) handleCreateCheckout(c *gin.Context) {
	if s.billingService == nil || !s.billingService.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "billing provider not configured")
		return
	}

	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	tier := billing.SubscriptionTier(req.Tier)
	if !billing.ValidTier(tier) || tier == billing.TierFree {
		errorResponse(c, http.StatusBadRequest, "invalid subscription tier: "+req.Tier)
		return
	}

	user, err := s.repo.GetUserByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		errorResponse(c, http.StatusNotFound, "user not found")
		return
	}

	customerID, err := s.billingService.GetOrCreateCustomer(c.Request.Context(), user)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "failed to create billing customer")
		return
	}

	url, err := s.billingService.CreateCheckoutSession(c.Request.Context(), customerID, tier, req.SuccessURL, req.CancelURL)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "failed to create checkout session")
		return
	}

	successResponse(c, gin.H{"checkout_url": url})
}

type portalRequest struct {
	ReturnURL string `json:"return_url" binding:"required"`
}

func (s *Server) handleCreatePortal(c *gin.Context) {
	if s.billingService == nil || !s.billingService.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "billing provider not configured")
		return
	}

	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	var req portalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	user, err := s.repo.GetUserByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		errorResponse(c, http.StatusNotFound, "user not found")
		return
	}
	if user.StripeCustomerID == "" {
		errorResponse(c, http.StatusBadRequest, "no billing customer for this account")
		return
	}

	url, err := s.billingService.CreatePortalSession(c.Request.Context(), user.StripeCustomerID, req.ReturnURL)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, "failed to create portal session")
		return
	}

	successResponse(c, gin.H{"portal_url": url})
}

type cancelSubscriptionRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required"`
}

func (s *Server) handleCancelSubscription(c *gin.Context) {
	if s.billingService == nil || !s.billingService.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "billing provider not configured")
		return
	}

	var req cancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.billingService.CancelSubscription(c.Request.Context(), req.SubscriptionID); err != nil {
		errorResponse(c, http.StatusBadGateway, "failed to cancel subscription")
		return
	}

	successResponse(c, gin.H{"cancelled": req.SubscriptionID})
}

// ============================================================================
// PROVIDER WEBHOOKS
// ============================================================================

func (s *Server) handleBillingWebhook(c *gin.Context) {
	if s.billingService == nil {
		errorResponse(c, http.StatusServiceUnavailable, "billing provider not configured")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "failed to read payload")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := s.billingService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventSubscriptionUpdated,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"provider": "stripe"},
	})

	successResponse(c, gin.H{"received": true})
}

func (s *Server) handleKYCWebhook(c *gin.Context) {
	if s.kycService == nil {
		errorResponse(c, http.StatusServiceUnavailable, "KYC provider not configured")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "failed to read payload")
		return
	}

	signature := c.GetHeader("X-Payload-Digest")
	if err := s.kycService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventKYCUpdated,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"provider": "kyc"},
	})

	successResponse(c, gin.H{"received": true})
}

func (s *Server) handleESignWebhook(c *gin.Context) {
	if s.esignService == nil {
		errorResponse(c, http.StatusServiceUnavailable, "e-signature provider not configured")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "failed to read payload")
		return
	}

	signature := c.GetHeader("X-Envelope-Signature")
	if err := s.esignService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventESignCompleted,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"provider": "esign"},
	})

	successResponse(c, gin.H{"received": true})
}

// ============================================================================
// KYC (authenticated endpoints)
// ============================================================================

func (s *Server) handleStartKYC(c *gin.Context) {
	if s.kycService == nil || !s.kycService.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "KYC provider not configured")
		return
	}

	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	applicant, err := s.kycService.StartVerification(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	successResponse(c, applicant)
}

func (s *Server) handleGetKYCToken(c *gin.Context) {
	if s.kycService == nil || !s.kycService.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "KYC provider not configured")
		return
	}

	userID, ok := s.getUserIDRequired(c)
	if !ok {
		return
	}

	token, err := s.kycService.GetAccessToken(c.Request.Context(), userID)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, err.Error())
		return
	}

	successResponse(c, gin.H{"token": token})
}
