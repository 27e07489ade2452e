package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"investment-platform/internal/database"
)

// StripeService handles Stripe payment integration
type StripeService struct {
	secretKey      string
	publishableKey string
	webhookSecret  string
	priceIDs       map[SubscriptionTier]string
	repo           *database.Repository
	dedupe         WebhookDeduper
	httpClient     *http.Client
	baseURL        string
}

// StripeConfig holds Stripe configuration
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	// Price IDs from the Stripe dashboard, keyed by tier
	ProfessionalPriceID string
	InstitutionPriceID  string
}

// WebhookDeduper suppresses duplicate webhook deliveries. A nil deduper
// means every delivery is processed; handlers must stay idempotent anyway.
type WebhookDeduper interface {
	MarkWebhookSeen(ctx context.Context, provider, eventID string) (bool, error)
}

// NewStripeService creates a new Stripe service
func NewStripeService(config *StripeConfig, repo *database.Repository, dedupe WebhookDeduper) *StripeService {
	return &StripeService{
		secretKey:      config.SecretKey,
		publishableKey: config.PublishableKey,
		webhookSecret:  config.WebhookSecret,
		priceIDs: map[SubscriptionTier]string{
			TierProfessional: config.ProfessionalPriceID,
			TierInstitution:  config.InstitutionPriceID,
		},
		repo:       repo,
		dedupe:     dedupe,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.stripe.com/v1",
	}
}

// IsConfigured returns true if Stripe is properly configured
func (s *StripeService) IsConfigured() bool {
	return s.secretKey != "" && s.webhookSecret != ""
}

// CustomerData represents Stripe customer data
type CustomerData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// CreateCustomer creates a new Stripe customer
func (s *StripeService) CreateCustomer(ctx context.Context, email, name string) (*CustomerData, error) {
	data := map[string]string{
		"email": email,
		"name":  name,
	}

	resp, err := s.makeRequest(ctx, "POST", "/customers", data)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	var customer CustomerData
	if err := json.Unmarshal(resp, &customer); err != nil {
		return nil, fmt.Errorf("failed to parse customer response: %w", err)
	}

	return &customer, nil
}

// GetOrCreateCustomer gets an existing customer or creates a new one
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *database.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	customer, err := s.CreateCustomer(ctx, user.Email, user.Name)
	if err != nil {
		return "", err
	}

	user.StripeCustomerID = customer.ID
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		log.Printf("Warning: failed to save Stripe customer ID: %v", err)
	}

	return customer.ID, nil
}

// SubscriptionData represents Stripe subscription data
type SubscriptionData struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

// CreateSubscription creates a new subscription for a customer
func (s *StripeService) CreateSubscription(ctx context.Context, customerID string, tier SubscriptionTier) (*SubscriptionData, error) {
	priceID, err := s.getPriceIDForTier(tier)
	if err != nil {
		return nil, err
	}

	data := map[string]string{
		"customer":        customerID,
		"items[0][price]": priceID,
	}

	resp, err := s.makeRequest(ctx, "POST", "/subscriptions", data)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	var sub SubscriptionData
	if err := json.Unmarshal(resp, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse subscription response: %w", err)
	}

	return &sub, nil
}

// CancelSubscription cancels a subscription at period end
func (s *StripeService) CancelSubscription(ctx context.Context, subscriptionID string) error {
	data := map[string]string{
		"cancel_at_period_end": "true",
	}

	_, err := s.makeRequest(ctx, "POST", "/subscriptions/"+subscriptionID, data)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	return nil
}

// WebhookEvent represents a Stripe webhook event
type WebhookEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Created int64           `json:"created"`
}

// WebhookObject represents the object in a webhook event
type WebhookObject struct {
	Object json.RawMessage `json:"object"`
}

// HandleWebhook processes a Stripe webhook event
func (s *StripeService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	// Verify webhook signature
	if !s.verifyWebhookSignature(payload, signature) {
		return fmt.Errorf("invalid webhook signature")
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to parse webhook event: %w", err)
	}

	if s.dedupe != nil && event.ID != "" {
		seen, err := s.dedupe.MarkWebhookSeen(ctx, "stripe", event.ID)
		if err == nil && seen {
			log.Printf("Skipping duplicate Stripe webhook: %s", event.ID)
			return nil
		}
	}

	log.Printf("Processing Stripe webhook: %s", event.Type)

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event.Data)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event.Data)
	case "invoice.payment_failed":
		return s.handleInvoicePaymentFailed(ctx, event.Data)
	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
	}

	return nil
}

// handleSubscriptionUpdated processes a subscription create/update webhook
func (s *StripeService) handleSubscriptionUpdated(ctx context.Context, data json.RawMessage) error {
	var obj WebhookObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	var sub struct {
		ID       string `json:"id"`
		Customer string `json:"customer"`
		Status   string `json:"status"`
		Items    struct {
			Data []struct {
				Price struct {
					ID string `json:"id"`
				} `json:"price"`
			} `json:"data"`
		} `json:"items"`
	}
	if err := json.Unmarshal(obj.Object, &sub); err != nil {
		return err
	}

	user, err := s.repo.GetUserByStripeCustomerID(ctx, sub.Customer)
	if err != nil || user == nil {
		log.Printf("Warning: could not find user for customer %s", sub.Customer)
		return nil
	}

	tier := user.SubscriptionTier
	if len(sub.Items.Data) > 0 {
		if t, ok := s.tierForPriceID(sub.Items.Data[0].Price.ID); ok {
			tier = database.SubscriptionTier(t)
		}
	}

	// Map Stripe status to our status
	var status database.SubscriptionStatus
	switch sub.Status {
	case "active", "trialing":
		status = database.StatusActive
	case "past_due", "unpaid":
		status = database.StatusPastDue
	case "canceled", "incomplete_expired":
		status = database.StatusCancelled
	default:
		status = database.StatusActive
	}

	if err := s.repo.UpdateUserSubscription(ctx, user.ID, tier, status); err != nil {
		log.Printf("Warning: failed to update user subscription: %v", err)
	}

	log.Printf("Subscription updated: %s for customer %s (status: %s)", sub.ID, sub.Customer, sub.Status)
	return nil
}

// handleSubscriptionDeleted processes a deleted subscription webhook
func (s *StripeService) handleSubscriptionDeleted(ctx context.Context, data json.RawMessage) error {
	var obj WebhookObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	var sub struct {
		ID       string `json:"id"`
		Customer string `json:"customer"`
	}
	if err := json.Unmarshal(obj.Object, &sub); err != nil {
		return err
	}

	user, err := s.repo.GetUserByStripeCustomerID(ctx, sub.Customer)
	if err != nil || user == nil {
		log.Printf("Warning: could not find user for customer %s", sub.Customer)
		return nil
	}

	// Downgrade to free tier
	if err := s.repo.UpdateUserSubscription(ctx, user.ID, database.TierFree, database.StatusCancelled); err != nil {
		log.Printf("Warning: failed to downgrade user subscription: %v", err)
	}

	log.Printf("Subscription deleted: %s for customer %s - downgraded to free tier", sub.ID, sub.Customer)
	return nil
}

// handleInvoicePaymentFailed processes a failed payment webhook
func (s *StripeService) handleInvoicePaymentFailed(ctx context.Context, data json.RawMessage) error {
	var obj WebhookObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	var invoice struct {
		ID       string `json:"id"`
		Customer string `json:"customer"`
	}
	if err := json.Unmarshal(obj.Object, &invoice); err != nil {
		return err
	}

	user, err := s.repo.GetUserByStripeCustomerID(ctx, invoice.Customer)
	if err != nil || user == nil {
		log.Printf("Warning: could not find user for customer %s", invoice.Customer)
		return nil
	}

	if err := s.repo.UpdateUserSubscription(ctx, user.ID, user.SubscriptionTier, database.StatusPastDue); err != nil {
		log.Printf("Warning: failed to mark subscription past due: %v", err)
	}

	log.Printf("Invoice payment failed: %s for customer %s", invoice.ID, invoice.Customer)
	return nil
}

// Helper methods

// makeRequest makes an authenticated request to Stripe API
func (s *StripeService) makeRequest(ctx context.Context, method, path string, data map[string]string) ([]byte, error) {
	url := s.baseURL + path

	var body strings.Builder
	if data != nil {
		for k, v := range data {
			if body.Len() > 0 {
				body.WriteString("&")
			}
			body.WriteString(k)
			body.WriteString("=")
			body.WriteString(v)
		}
	}

	var req *http.Request
	var err error
	if method == "GET" {
		if body.Len() > 0 {
			url += "?" + body.String()
		}
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, strings.NewReader(body.String()))
	}
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(s.secretKey, "")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("Stripe API error: %s - %s", resp.Status, string(respBody))
	}

	return respBody, nil
}

// verifyWebhookSignature verifies the Stripe webhook signature
func (s *StripeService) verifyWebhookSignature(payload []byte, signatureHeader string) bool {
	if s.webhookSecret == "" {
		return true // Skip verification if no secret configured (dev mode)
	}

	// Parse the signature header
	parts := strings.Split(signatureHeader, ",")
	var timestamp string
	var signatures []string

	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	// Compute expected signature
	signedPayload := timestamp + "." + string(payload)
	h := hmac.New(sha256.New, []byte(s.webhookSecret))
	h.Write([]byte(signedPayload))
	expectedSig := hex.EncodeToString(h.Sum(nil))

	// Check if any signature matches
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expectedSig)) {
			return true
		}
	}

	return false
}

// getPriceIDForTier returns the Stripe Price ID for a subscription tier
func (s *StripeService) getPriceIDForTier(tier SubscriptionTier) (string, error) {
	priceID, ok := s.priceIDs[tier]
	if !ok || priceID == "" {
		return "", fmt.Errorf("no price ID configured for tier: %s", tier)
	}
	return priceID, nil
}

// tierForPriceID reverse-maps a Stripe price ID to a tier
func (s *StripeService) tierForPriceID(priceID string) (SubscriptionTier, bool) {
	for tier, id := range s.priceIDs {
		if id != "" && id == priceID {
			return tier, true
		}
	}
	return "", false
}

// CreateCheckoutSession creates a Stripe Checkout session for subscription
func (s *StripeService) CreateCheckoutSession(ctx context.Context, customerID string, tier SubscriptionTier, successURL, cancelURL string) (string, error) {
	priceID, err := s.getPriceIDForTier(tier)
	if err != nil {
		return "", err
	}

	data := map[string]string{
		"customer":                customerID,
		"mode":                    "subscription",
		"success_url":             successURL,
		"cancel_url":              cancelURL,
		"line_items[0][price]":    priceID,
		"line_items[0][quantity]": "1",
	}

	resp, err := s.makeRequest(ctx, "POST", "/checkout/sessions", data)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	var session struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp, &session); err != nil {
		return "", fmt.Errorf("failed to parse session response: %w", err)
	}

	return session.URL, nil
}

// CreatePortalSession creates a Stripe Customer Portal session
func (s *StripeService) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	data := map[string]string{
		"customer":   customerID,
		"return_url": returnURL,
	}

	resp, err := s.makeRequest(ctx, "POST", "/billing_portal/sessions", data)
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}

	var session struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp, &session); err != nil {
		return "", fmt.Errorf("failed to parse session response: %w", err)
	}

	return session.URL, nil
}
