package database

import (
	"time"
)

// Role represents a user's authorization level, ordered lowest to highest
type Role string

const (
	RoleInvestor Role = "investor"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
	RoleRoot     Role = "root"
)

// roleRank orders roles for at-least comparisons
var roleRank = map[Role]int{
	RoleInvestor: 1,
	RoleManager:  2,
	RoleAdmin:    3,
	RoleRoot:     4,
}

// RoleAtLeast reports whether role meets or exceeds min
func RoleAtLeast(role, min Role) bool {
	return roleRank[role] >= roleRank[min]
}

// ValidRole reports whether r is a known role
func ValidRole(r Role) bool {
	_, ok := roleRank[r]
	return ok
}

// KYCStatus tracks identity-verification progress
type KYCStatus string

const (
	KYCNone     KYCStatus = "none"
	KYCPending  KYCStatus = "pending"
	KYCApproved KYCStatus = "approved"
	KYCRejected KYCStatus = "rejected"
)

// SubscriptionTier represents the user's billing plan
type SubscriptionTier string

const (
	TierFree         SubscriptionTier = "free"
	TierProfessional SubscriptionTier = "professional"
	TierInstitution  SubscriptionTier = "institution"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusInactive  SubscriptionStatus = "inactive"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// User represents a platform user
type User struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	PasswordHash       string             `json:"-"` // Never serialize
	Name               string             `json:"name,omitempty"`
	Role               Role               `json:"role"`
	EmailVerified      bool               `json:"email_verified"`
	StripeCustomerID   string             `json:"stripe_customer_id,omitempty"`
	KYCStatus          KYCStatus          `json:"kyc_status"`
	KYCApplicantID     string             `json:"kyc_applicant_id,omitempty"`
	SubscriptionTier   SubscriptionTier   `json:"subscription_tier"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	LastLoginAt        *time.Time         `json:"last_login_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// UserSession represents an active user session with refresh token
type UserSession struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	RefreshTokenHash string     `json:"-"` // Never serialize
	UserAgent        string     `json:"user_agent,omitempty"`
	IPAddress        string     `json:"ip_address,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// VerificationCode is a short-lived code for email verification or
// password reset
type VerificationCode struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"-"` // Never serialize
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// Verification code purposes
const (
	PurposeEmailVerify   = "email_verify"
	PurposePasswordReset = "password_reset"
)
