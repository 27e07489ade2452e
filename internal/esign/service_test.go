package esign

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

type fakeDeduper struct {
	seen     map[string]bool
	provider string
	eventID  string
}

func (f *fakeDeduper) MarkWebhookSeen(_ context.Context, provider, eventID string) (bool, error) {
	f.provider = provider
	f.eventID = eventID
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	already := f.seen[eventID]
	f.seen[eventID] = true
	return already, nil
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, nil)
	payload := []byte(`{"event_id":"evt-1","envelope_id":"env-1","status":"completed"}`)

	tests := []struct {
		name      string
		signature string
		want      bool
	}{
		{"valid", sign("whsec", payload), true},
		{"wrong secret", sign("other", payload), false},
		{"empty", "", false},
		{"not base64", "%%%", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.verifyWebhookSignature(payload, tt.signature); got != tt.want {
				t.Errorf("verifyWebhookSignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, nil)
	payload := []byte(`{"event_id":"evt-1","envelope_id":"env-1","status":"completed"}`)

	if err := svc.HandleWebhook(context.Background(), payload, sign("wrong", payload)); err == nil {
		t.Fatal("expected error for invalid signature")
	}
}

func TestHandleWebhookRequiresEnvelopeID(t *testing.T) {
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, nil)
	payload := []byte(`{"event_id":"evt-1","status":"completed"}`)

	if err := svc.HandleWebhook(context.Background(), payload, sign("whsec", payload)); err == nil {
		t.Fatal("expected error for missing envelope ID")
	}
}

func TestHandleWebhookDeduplicates(t *testing.T) {
	dedupe := &fakeDeduper{seen: map[string]bool{"evt-1": true}}
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, dedupe)
	payload := []byte(`{"event_id":"evt-1","envelope_id":"env-1","status":"completed"}`)

	// A replayed delivery must be acknowledged without touching the database
	// (repo is nil here).
	if err := svc.HandleWebhook(context.Background(), payload, sign("whsec", payload)); err != nil {
		t.Fatalf("duplicate delivery should be acknowledged, got %v", err)
	}
	if dedupe.provider != "esign" {
		t.Errorf("provider = %q, want esign", dedupe.provider)
	}
	if dedupe.eventID != "evt-1" {
		t.Errorf("eventID = %q, want evt-1", dedupe.eventID)
	}
}

func TestHandleWebhookIgnoresUnknownStatus(t *testing.T) {
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, nil)
	payload := []byte(`{"event_id":"evt-1","envelope_id":"env-1","status":"shredded"}`)

	if err := svc.HandleWebhook(context.Background(), payload, sign("whsec", payload)); err != nil {
		t.Fatalf("unknown statuses should be acknowledged, got %v", err)
	}
}

func TestSendForSignatureRequiresSigners(t *testing.T) {
	svc := NewService(Config{APIKey: "key", AccountID: "acct"}, nil, nil)

	if _, err := svc.SendForSignature(context.Background(), "doc-1", nil); err == nil {
		t.Fatal("expected error for empty signer list")
	}
}

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   bool
	}{
		{"both set", Config{APIKey: "key", AccountID: "acct"}, true},
		{"missing key", Config{AccountID: "acct"}, false},
		{"missing account", Config{APIKey: "key"}, false},
		{"empty", Config{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config, nil, nil)
			if got := svc.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}
