package esign

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"investment-platform/internal/database"
)

// Envelope statuses as stored on documents
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusCompleted = "completed"
	StatusDeclined  = "declined"
	StatusVoided    = "voided"
)

// Config holds e-signature provider configuration
type Config struct {
	APIKey        string `json:"api_key"`
	AccountID     string `json:"account_id"`
	WebhookSecret string `json:"webhook_secret"`
	BaseURL       string `json:"base_url"`
}

// WebhookDeduper records webhook event IDs so replayed deliveries are dropped
type WebhookDeduper interface {
	MarkWebhookSeen(ctx context.Context, provider, eventID string) (bool, error)
}

// Service sends documents out for electronic signature and tracks envelope
// status back onto the document record.
type Service struct {
	config     Config
	repo       *database.Repository
	dedupe     WebhookDeduper
	httpClient *http.Client
}

// NewService creates a new e-signature service
func NewService(config Config, repo *database.Repository, dedupe WebhookDeduper) *Service {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.esign.example.com/v2"
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
	return s.config.APIKey != "" && s.config.AccountID != ""
}

// Signer identifies one envelope recipient
type Signer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SendForSignature creates an envelope for the document and records the
// envelope ID and sent status on it. A document already out for signature
// is rejected.
func (s *Service) SendForSignature(ctx context.Context, documentID string, signers []Signer) (string, error) {
	if len(signers) == 0 {
		return "", fmt.Errorf("at least one signer is required")
	}

	doc, err := s.repo.GetDocumentByID(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("failed to get document: %w", err)
	}
	if doc == nil {
		return "", fmt.Errorf("document not found")
	}
	if doc.ESignEnvelopeID != nil && *doc.ESignEnvelopeID != "" {
		return "", fmt.Errorf("document already sent for signature (envelope %s)", *doc.ESignEnvelopeID)
	}

	payload := map[string]interface{}{
		"name":     doc.Name,
		"file_key": doc.FileKey,
		"signers":  signers,
		"metadata": map[string]string{
			"document_id": doc.ID,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("/accounts/%s/envelopes", s.config.AccountID)
	respBody, err := s.makeRequest(ctx, "POST", path, body)
	if err != nil {
		return "", fmt.Errorf("failed to create envelope: %w", err)
	}

	var result struct {
		EnvelopeID string `json:"envelope_id"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse envelope response: %w", err)
	}
	if result.EnvelopeID == "" {
		return "", fmt.Errorf("envelope response missing envelope ID")
	}

	status := StatusSent
	if err := s.repo.UpdateDocumentESign(ctx, doc.ID, &result.EnvelopeID, &status); err != nil {
		return "", fmt.Errorf("failed to record envelope on document: %w", err)
	}

	return result.EnvelopeID, nil
}

// VoidEnvelope cancels an outstanding envelope and marks the document voided
func (s *Service) VoidEnvelope(ctx context.Context, documentID, reason string) error {
	doc, err := s.repo.GetDocumentByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found")
	}
	if doc.ESignEnvelopeID == nil || *doc.ESignEnvelopeID == "" {
		return fmt.Errorf("document has no envelope")
	}

	body, err := json.Marshal(map[string]string{"reason": reason})
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/accounts/%s/envelopes/%s/void", s.config.AccountID, *doc.ESignEnvelopeID)
	if _, err := s.makeRequest(ctx, "POST", path, body); err != nil {
		return fmt.Errorf("failed to void envelope: %w", err)
	}

	status := StatusVoided
	return s.repo.UpdateDocumentESign(ctx, doc.ID, doc.ESignEnvelopeID, &status)
}

// webhookEvent is the envelope-status callback payload
type webhookEvent struct {
	EventID    string `json:"event_id"`
	EnvelopeID string `json:"envelope_id"`
	Status     string `json:"status"`
}

// HandleWebhook processes an envelope-status callback. The signature is the
// base64 HMAC-SHA256 of the raw payload under the webhook secret.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.verifyWebhookSignature(payload, signature) {
		return fmt.Errorf("invalid webhook signature")
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	if event.EnvelopeID == "" {
		return fmt.Errorf("webhook missing envelope ID")
	}

	if s.dedupe != nil && event.EventID != "" {
		if seen, err := s.dedupe.MarkWebhookSeen(ctx, "esign", event.EventID); err == nil && seen {
			return nil
		}
	}

	status := strings.ToLower(event.Status)
	switch status {
	case StatusSent, StatusDelivered, StatusCompleted, StatusDeclined, StatusVoided:
	default:
		// Unknown statuses are acknowledged but not stored
		return nil
	}

	doc, err := s.repo.GetDocumentByEnvelopeID(ctx, event.EnvelopeID)
	if err != nil {
		return fmt.Errorf("failed to look up envelope %s: %w", event.EnvelopeID, err)
	}
	if doc == nil {
		// Envelope created outside this deployment; nothing to update
		return nil
	}

	if err := s.repo.UpdateDocumentESign(ctx, doc.ID, &event.EnvelopeID, &status); err != nil {
		return fmt.Errorf("failed to update envelope status: %w", err)
	}

	return nil
}

// verifyWebhookSignature checks the payload HMAC against the signature header
func (s *Service) verifyWebhookSignature(payload []byte, signature string) bool {
	if s.config.WebhookSecret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// makeRequest makes an authenticated HTTP request to the e-sign provider API
func (s *Service) makeRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.BaseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
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
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("e-sign API error: %s", apiErr.Message)
		}
		return nil, fmt.Errorf("e-sign API error: status %d", resp.StatusCode)
	}

	return respBody, nil
}
