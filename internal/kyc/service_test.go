package kyc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, nil)
	payload := []byte(`{"type":"applicantPending","applicantId":"app-1"}`)

	tests := []struct {
		name      string
		signature string
		want      bool
	}{
		{"valid", sign("whsec", payload), true},
		{"valid uppercase hex", func() string {
			s := sign("whsec", payload)
			out := make([]byte, len(s))
			for i := range s {
				c := s[i]
				if c >= 'a' && c <= 'f' {
					c -= 32
				}
				out[i] = c
			}
			return string(out)
		}(), true},
		{"wrong secret", sign("other", payload), false},
		{"empty", "", false},
		{"garbage", "not-a-signature", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.verifyWebhookSignature(payload, tt.signature); got != tt.want {
				t.Errorf("verifyWebhookSignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyWebhookSignatureNoSecret(t *testing.T) {
	svc := NewService(Config{}, nil, nil)
	payload := []byte(`{}`)
	if svc.verifyWebhookSignature(payload, sign("", payload)) {
		t.Error("signature must never verify without a configured secret")
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, nil)
	payload := []byte(`{"type":"applicantReviewed","applicantId":"app-1"}`)

	if err := svc.HandleWebhook(context.Background(), payload, sign("wrong", payload)); err == nil {
		t.Fatal("expected error for invalid signature")
	}
}

func TestHandleWebhookRequiresApplicantID(t *testing.T) {
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, nil)
	payload := []byte(`{"type":"applicantReviewed"}`)

	if err := svc.HandleWebhook(context.Background(), payload, sign("whsec", payload)); err == nil {
		t.Fatal("expected error for missing applicant ID")
	}
}

func TestHandleWebhookDeduplicates(t *testing.T) {
	dedupe := &fakeDeduper{}
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, dedupe)
	payload := []byte(`{"type":"applicantReviewed","applicantId":"app-1","correlationId":"corr-1"}`)
	sig := sign("whsec", payload)

	// Mark the event as already seen, then deliver it. A duplicate must be
	// acknowledged without touching the database (repo is nil here).
	dedupe.seen = map[string]bool{"corr-1": true}
	if err := svc.HandleWebhook(context.Background(), payload, sig); err != nil {
		t.Fatalf("duplicate delivery should be acknowledged, got %v", err)
	}
	if dedupe.provider != "kyc" {
		t.Errorf("provider = %q, want kyc", dedupe.provider)
	}
	if dedupe.eventID != "corr-1" {
		t.Errorf("eventID = %q, want corr-1", dedupe.eventID)
	}
}

func TestHandleWebhookDedupeFallbackKey(t *testing.T) {
	dedupe := &fakeDeduper{seen: map[string]bool{"app-1:applicantReviewed": true}}
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, dedupe)

	// No correlation ID: dedup key falls back to applicantID:type
	payload := []byte(`{"type":"applicantReviewed","applicantId":"app-1"}`)
	if err := svc.HandleWebhook(context.Background(), payload, sign("whsec", payload)); err != nil {
		t.Fatalf("duplicate delivery should be acknowledged, got %v", err)
	}
	if dedupe.eventID != "app-1:applicantReviewed" {
		t.Errorf("eventID = %q, want app-1:applicantReviewed", dedupe.eventID)
	}
}

func TestHandleWebhookIgnoresUnknownEventTypes(t *testing.T) {
	svc := NewService(Config{WebhookSecret: "whsec"}, nil, nil)
	payload := []byte(`{"type":"applicantOnHold","applicantId":"app-1"}`)

	if err := svc.HandleWebhook(context.Background(), payload, sign("whsec", payload)); err != nil {
		t.Fatalf("unknown event types should be acknowledged, got %v", err)
	}
}

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   bool
	}{
		{"both set", Config{AppToken: "tok", SecretKey: "sec"}, true},
		{"missing token", Config{SecretKey: "sec"}, false},
		{"missing secret", Config{AppToken: "tok"}, false},
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

func TestNewServiceDefaults(t *testing.T) {
	svc := NewService(Config{}, nil, nil)
	if svc.config.BaseURL != "https://api.sumsub.com" {
		t.Errorf("BaseURL = %q, want provider default", svc.config.BaseURL)
	}
	if svc.config.LevelName != "basic-kyc-level" {
		t.Errorf("LevelName = %q, want basic-kyc-level", svc.config.LevelName)
	}
}
