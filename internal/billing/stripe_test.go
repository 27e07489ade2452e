package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func stripeSignature(secret string, timestamp string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(h.Sum(nil)))
}

func TestVerifyWebhookSignature(t *testing.T) {
	svc := NewStripeService(&StripeConfig{WebhookSecret: "whsec_test"}, nil, nil)
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)

	tests := []struct {
		name      string
		signature string
		want      bool
	}{
		{"valid", stripeSignature("whsec_test", "1700000000", payload), true},
		{"wrong secret", stripeSignature("whsec_other", "1700000000", payload), false},
		{"missing timestamp", "v1=deadbeef", false},
		{"missing v1", "t=1700000000", false},
		{"empty header", "", false},
		{"garbage", "not,a=header", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.verifyWebhookSignature(payload, tt.signature); got != tt.want {
				t.Errorf("verifyWebhookSignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyWebhookSignatureMultipleV1(t *testing.T) {
	svc := NewStripeService(&StripeConfig{WebhookSecret: "whsec_test"}, nil, nil)
	payload := []byte(`{"id":"evt_1"}`)

	// A rotated secret delivers two v1 signatures; one valid match suffices
	valid := stripeSignature("whsec_test", "1700000000", payload)
	header := "t=1700000000,v1=0000000000," + valid[len("t=1700000000,"):]
	if !svc.verifyWebhookSignature(payload, header) {
		t.Error("header with one valid v1 signature should verify")
	}
}

func TestVerifyWebhookSignatureSkippedWithoutSecret(t *testing.T) {
	svc := NewStripeService(&StripeConfig{}, nil, nil)
	if !svc.verifyWebhookSignature([]byte(`{}`), "") {
		t.Error("verification is skipped when no webhook secret is configured")
	}
}

func TestPriceIDTierMapping(t *testing.T) {
	svc := NewStripeService(&StripeConfig{
		ProfessionalPriceID: "price_pro",
		InstitutionPriceID:  "price_inst",
	}, nil, nil)

	if id, err := svc.getPriceIDForTier(TierProfessional); err != nil || id != "price_pro" {
		t.Errorf("getPriceIDForTier(professional) = %q, %v", id, err)
	}
	if id, err := svc.getPriceIDForTier(TierInstitution); err != nil || id != "price_inst" {
		t.Errorf("getPriceIDForTier(institution) = %q, %v", id, err)
	}
	if _, err := svc.getPriceIDForTier(TierFree); err == nil {
		t.Error("free tier has no price ID and must error")
	}

	if tier, ok := svc.tierForPriceID("price_pro"); !ok || tier != TierProfessional {
		t.Errorf("tierForPriceID(price_pro) = %q, %v", tier, ok)
	}
	if _, ok := svc.tierForPriceID("price_unknown"); ok {
		t.Error("unknown price ID must not map to a tier")
	}
	if _, ok := svc.tierForPriceID(""); ok {
		t.Error("empty price ID must not map to a tier")
	}
}

func TestGetTierLimits(t *testing.T) {
	tests := []struct {
		tier       SubscriptionTier
		maxNesting int
		esign      bool
		structures int
	}{
		{TierFree, 1, false, 1},
		{TierProfessional, 3, true, 10},
		{TierInstitution, 5, true, -1},
		{SubscriptionTier("bogus"), 1, false, 1}, // unknown tiers get free limits
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			limits := GetTierLimits(tt.tier)
			if limits.MaxNestingLevels != tt.maxNesting {
				t.Errorf("MaxNestingLevels = %d, want %d", limits.MaxNestingLevels, tt.maxNesting)
			}
			if limits.ESignEnabled != tt.esign {
				t.Errorf("ESignEnabled = %v, want %v", limits.ESignEnabled, tt.esign)
			}
			if limits.MaxStructures != tt.structures {
				t.Errorf("MaxStructures = %d, want %d", limits.MaxStructures, tt.structures)
			}
		})
	}
}

func TestValidTier(t *testing.T) {
	for _, tier := range []SubscriptionTier{TierFree, TierProfessional, TierInstitution} {
		if !ValidTier(tier) {
			t.Errorf("ValidTier(%s) = false", tier)
		}
	}
	if ValidTier("enterprise") {
		t.Error("ValidTier(enterprise) = true for unknown tier")
	}
}

func TestGetMonthlyFee(t *testing.T) {
	if fee := GetMonthlyFee(TierFree); fee != 0 {
		t.Errorf("free tier fee = %v, want 0", fee)
	}
	if GetMonthlyFee(TierProfessional) >= GetMonthlyFee(TierInstitution) {
		t.Error("institution tier must cost more than professional")
	}
}
