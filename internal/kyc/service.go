package kyc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"investment-platform/internal/database"
)

// Config holds KYC provider configuration
type Config struct {
	AppToken      string `json:"app_token"`
	SecretKey     string `json:"secret_key"`
	WebhookSecret string `json:"webhook_secret"`
	BaseURL       string `json:"base_url"`
	LevelName     string `json:"level_name"`
}

// WebhookDeduper records webhook event IDs so replayed deliveries are dropped
type WebhookDeduper interface {
	MarkWebhookSeen(ctx context.Context, provider, eventID string) (bool, error)
}

// Service handles identity verification through an external KYC provider.
// Requests are signed per the provider's app-token scheme: an HMAC-SHA256 of
// timestamp + method + path + body using the secret key.
type Service struct {
	config     Config
	repo       *database.Repository
	dedupe     WebhookDeduper
	httpClient *http.Client
}

// NewService creates a new KYC service
func NewService(config Config, repo *database.Repository, dedupe WebhookDeduper) *Service {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.sumsub.com"
	}
	if config.LevelName == "" {
		config.LevelName = "basic-kyc-level"
	}

	return &Service{
		config: config,
		repo:   repo,
		dedupe: dedupe,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured reports whether provider credentials are present
func (s *Service) IsConfigured() bool {
	return s.config.AppToken != "" && s.config.SecretKey != ""
}

// Applicant is the provider-side record for a user under verification
type Applicant struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalUserId"`
	Email      string `json:"email"`
	Review     struct {
		ReviewStatus string `json:"reviewStatus"`
	} `json:"review"`
}

// StartVerification creates an applicant for the user and moves their KYC
// status to pending. Idempotent: an existing applicant ID is reused.
func (s *Service) StartVerification(ctx context.Context, userID string) (*Applicant, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	if user.KYCApplicantID != "" {
		return s.getApplicant(ctx, user.KYCApplicantID)
	}

	payload := map[string]interface{}{
		"externalUserId": user.ID,
		"email":          user.Email,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/resources/applicants?levelName=%s", s.config.LevelName)
	respBody, err := s.makeRequest(ctx, "POST", path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create applicant: %w", err)
	}

	var applicant Applicant
	if err := json.Unmarshal(respBody, &applicant); err != nil {
		return nil, fmt.Errorf("failed to parse applicant response: %w", err)
	}

	if err := s.repo.UpdateUserKYC(ctx, user.ID, database.KYCPending, applicant.ID); err != nil {
		return nil, fmt.Errorf("failed to save applicant ID: %w", err)
	}

	return &applicant, nil
}

// GetAccessToken returns a short-lived SDK token for the user's applicant
func (s *Service) GetAccessToken(ctx context.Context, userID string) (string, error) {
	path := fmt.Sprintf("/resources/accessTokens?userId=%s&levelName=%s", userID, s.config.LevelName)
	respBody, err := s.makeRequest(ctx, "POST", path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create access token: %w", err)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	return result.Token, nil
}

// getApplicant fetches an applicant by provider ID
func (s *Service) getApplicant(ctx context.Context, applicantID string) (*Applicant, error) {
	respBody, err := s.makeRequest(ctx, "GET", "/resources/applicants/"+applicantID+"/one", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get applicant: %w", err)
	}

	var applicant Applicant
	if err := json.Unmarshal(respBody, &applicant); err != nil {
		return nil, fmt.Errorf("failed to parse applicant response: %w", err)
	}

	return &applicant, nil
}

// webhookEvent is the review callback payload
type webhookEvent struct {
	Type          string `json:"type"`
	ApplicantID   string `json:"applicantId"`
	CorrelationID string `json:"correlationId"`
	ReviewResult  struct {
		ReviewAnswer string `json:"reviewAnswer"`
	} `json:"reviewResult"`
}

// HandleWebhook processes a review-status callback. The signature is the
// hex HMAC-SHA256 of the raw payload under the webhook secret, delivered in
// the provider's digest header.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.verifyWebhookSignature(payload, signature) {
		return fmt.Errorf("invalid webhook signature")
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	if event.ApplicantID == "" {
		return fmt.Errorf("webhook missing applicant ID")
	}

	// Deduplicate on the correlation ID; fall back to applicant+type when
	// the provider omits it. Dedup errors are non-fatal.
	if s.dedupe != nil {
		eventID := event.CorrelationID
		if eventID == "" {
			eventID = event.ApplicantID + ":" + event.Type
		}
		if seen, err := s.dedupe.MarkWebhookSeen(ctx, "kyc", eventID); err == nil && seen {
			return nil
		}
	}

	switch event.Type {
	case "applicantReviewed":
		return s.handleReviewed(ctx, &event)
	case "applicantPending":
		return s.updateStatus(ctx, event.ApplicantID, database.KYCPending)
	case "applicantReset":
		return s.updateStatus(ctx, event.ApplicantID, database.KYCNone)
	default:
		// Unhandled event types are acknowledged, not errors
		return nil
	}
}

// handleReviewed maps the review answer onto the user's KYC status
func (s *Service) handleReviewed(ctx context.Context, event *webhookEvent) error {
	switch strings.ToUpper(event.ReviewResult.ReviewAnswer) {
	case "GREEN":
		return s.updateStatus(ctx, event.ApplicantID, database.KYCApproved)
	case "RED":
		return s.updateStatus(ctx, event.ApplicantID, database.KYCRejected)
	default:
		return s.updateStatus(ctx, event.ApplicantID, database.KYCPending)
	}
}

// updateStatus writes the new KYC status for the applicant's user
func (s *Service) updateStatus(ctx context.Context, applicantID string, status database.KYCStatus) error {
	user, err := s.repo.GetUserByKYCApplicantID(ctx, applicantID)
	if err != nil {
		return fmt.Errorf("failed to look up applicant %s: %w", applicantID, err)
	}
	if user == nil {
		// Applicant created outside this deployment; nothing to update
		return nil
	}

	if err := s.repo.UpdateUserKYC(ctx, user.ID, status, applicantID); err != nil {
		return fmt.Errorf("failed to update KYC status: %w", err)
	}

	return nil
}

// verifyWebhookSignature checks the payload HMAC against the digest header
func (s *Service) verifyWebhookSignature(payload []byte, signature string) bool {
	if s.config.WebhookSecret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// makeRequest makes a signed HTTP request to the KYC provider API
func (s *Service) makeRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.BaseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(time.Now().UTC().Unix(), 10)

	mac := hmac.New(sha256.New, []byte(s.config.SecretKey))
	mac.Write([]byte(ts))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)

	req.Header.Set("X-App-Token", s.config.AppToken)
	req.Header.Set("X-App-Access-Ts", ts)
	req.Header.Set("X-App-Access-Sig", hex.EncodeToString(mac.Sum(nil)))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Description string `json:"description"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Description != "" {
			return nil, fmt.Errorf("KYC API error: %s", apiErr.Description)
		}
		return nil, fmt.Errorf("KYC API error: status %d", resp.StatusCode)
	}

	return respBody, nil
}
