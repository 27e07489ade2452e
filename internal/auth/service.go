package auth

import (
	"context"
	"fmt"
	"log"
	mathrand "math/rand"
	"time"

	"investment-platform/internal/database"
)

// EmailService interface for sending emails
type EmailService interface {
	IsSMTPConfigured(ctx context.Context) bool
	SendVerificationEmail(ctx context.Context, to, code string) error
	SendPasswordResetEmail(ctx context.Context, to, code string) error
}

// Service handles authentication operations
type Service struct {
	repo            *database.Repository
	jwtManager      *JWTManager
	passwordManager *PasswordManager
	emailService    EmailService
	config          Config
}

// NewService creates a new authentication service
func NewService(repo *database.Repository, config Config) *Service {
	return NewServiceWithEmail(repo, config, nil)
}

// NewServiceWithEmail creates a new authentication service with email support
func NewServiceWithEmail(repo *database.Repository, config Config, emailService EmailService) *Service {
	if config.JWTSecret == "" {
		log.Fatal("JWT secret is required")
	}

	if config.AccessTokenDuration == 0 {
		config.AccessTokenDuration = 15 * time.Minute
	}
	if config.RefreshTokenDuration == 0 {
		config.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if config.PasswordResetDuration == 0 {
		config.PasswordResetDuration = 1 * time.Hour
	}

	return &Service{
		repo:            repo,
		jwtManager:      NewJWTManager(config.JWTSecret, config.AccessTokenDuration, config.RefreshTokenDuration),
		passwordManager: NewPasswordManager(DefaultBcryptCost, config.MinPasswordLength),
		emailService:    emailService,
		config:          config,
	}
}

// GetJWTManager returns the JWT manager for use in middleware
func (s *Service) GetJWTManager() *JWTManager {
	return s.jwtManager
}

// Register creates a new user account. New accounts always start as
// investors; managers and admins are promoted by an existing admin.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*database.User, error) {
	// Only check SMTP if email verification is required
	if s.config.RequireEmailVerification && s.emailService != nil && !s.emailService.IsSMTPConfigured(ctx) {
		return nil, AuthError{
			Code:    "SMTP_NOT_CONFIGURED",
			Message: "Email service is not configured. Please contact administrator.",
		}
	}

	// Check if email exists
	existing, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	// Validate password strength
	if err := s.passwordManager.ValidatePasswordStrength(req.Password); err != nil {
		return nil, AuthError{Code: "WEAK_PASSWORD", Message: err.Error()}
	}

	// Hash password
	passwordHash, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Determine if email verification is required
	requiresVerification := s.emailService != nil && s.config.RequireEmailVerification

	user := &database.User{
		Email:              req.Email,
		PasswordHash:       passwordHash,
		Name:               req.Name,
		Role:               database.RoleInvestor,
		KYCStatus:          database.KYCNone,
		SubscriptionTier:   database.TierFree,
		SubscriptionStatus: database.StatusActive,
		EmailVerified:      !requiresVerification,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Send verification email if required
	if requiresVerification {
		code, err := s.GenerateVerificationCode(ctx, user.ID, PurposeEmailVerify)
		if err != nil {
			log.Printf("Warning: failed to generate verification code: %v", err)
		} else {
			if err := s.emailService.SendVerificationEmail(ctx, user.Email, code); err != nil {
				log.Printf("Warning: failed to send verification email: %v", err)
			}
		}
	}

	return user, nil
}

// Login authenticates a user and returns tokens
func (s *Service) Login(ctx context.Context, req LoginRequest, ipAddress, userAgent string) (*LoginResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if !s.passwordManager.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	// Check email verification if required
	if s.config.RequireEmailVerification && !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	// Generate tokens
	claims := UserClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	// Create session
	session := &database.UserSession{
		UserID:           user.ID,
		RefreshTokenHash: HashRefreshToken(tokenPair.RefreshToken),
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		ExpiresAt:        time.Now().Add(s.jwtManager.GetRefreshTokenDuration()),
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		// Session creation failure must not block login; the access token
		// still works, only refresh is lost.
		log.Printf("Warning: failed to create session for user %s: %v", user.ID, err)
	}

	// Update last login
	if err := s.repo.UpdateUserLastLogin(ctx, user.ID); err != nil {
		log.Printf("Warning: failed to update last login for user %s: %v", user.ID, err)
	}

	return &LoginResponse{
		User:         userResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

// RefreshTokens refreshes the access and refresh tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	// Hash the refresh token to look it up
	tokenHash := HashRefreshToken(refreshToken)

	session, err := s.repo.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrInvalidToken
	}

	if session.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}
	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	claims := UserClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	// Revoke old session and create new one (refresh token rotation)
	if err := s.repo.RevokeSession(ctx, session.ID); err != nil {
		log.Printf("Warning: failed to revoke old session: %v", err)
	}

	newSession := &database.UserSession{
		UserID:           user.ID,
		RefreshTokenHash: HashRefreshToken(tokenPair.RefreshToken),
		IPAddress:        session.IPAddress,
		UserAgent:        session.UserAgent,
		ExpiresAt:        time.Now().Add(s.jwtManager.GetRefreshTokenDuration()),
	}

	if err := s.repo.CreateSession(ctx, newSession); err != nil {
		return nil, fmt.Errorf("failed to create new session: %w", err)
	}

	return &RefreshResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	}, nil
}

// Logout revokes a user's session
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	tokenHash := HashRefreshToken(refreshToken)

	session, err := s.repo.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil // Already logged out or invalid token
	}

	return s.repo.RevokeSession(ctx, session.ID)
}

// LogoutAll revokes all sessions for a user
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	return s.repo.RevokeUserSessions(ctx, userID)
}

// ChangePassword changes a user's password
func (s *Service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}

	// Verify current password
	if !s.passwordManager.VerifyPassword(req.CurrentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	// Validate new password strength
	if err := s.passwordManager.ValidatePasswordStrength(req.NewPassword); err != nil {
		return AuthError{Code: "WEAK_PASSWORD", Message: err.Error()}
	}

	newHash, err := s.passwordManager.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdateUserPassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// Revoke all sessions to force re-login
	if err := s.repo.RevokeUserSessions(ctx, userID); err != nil {
		log.Printf("Warning: failed to revoke sessions after password change: %v", err)
	}

	return nil
}

// RequestPasswordReset generates a reset code and emails it to the user.
// Silently succeeds for unknown emails to prevent enumeration.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil
	}

	code, err := s.GenerateVerificationCode(ctx, user.ID, PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("failed to generate reset code: %w", err)
	}

	if s.emailService != nil {
		if err := s.emailService.SendPasswordResetEmail(ctx, user.Email, code); err != nil {
			return fmt.Errorf("failed to send reset email: %w", err)
		}
	}

	return nil
}

// ResetPassword resets a user's password using an emailed reset code
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return ErrInvalidToken
	}

	ok, err := s.repo.ConsumeVerificationCode(ctx, user.ID, req.Code, PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("failed to verify reset code: %w", err)
	}
	if !ok {
		return ErrInvalidToken
	}

	if err := s.passwordManager.ValidatePasswordStrength(req.NewPassword); err != nil {
		return AuthError{Code: "WEAK_PASSWORD", Message: err.Error()}
	}

	newHash, err := s.passwordManager.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdateUserPassword(ctx, user.ID, newHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.repo.RevokeUserSessions(ctx, user.ID); err != nil {
		log.Printf("Warning: failed to revoke sessions after password reset: %v", err)
	}

	return nil
}

// GetUserByID retrieves a user by ID
func (s *Service) GetUserByID(ctx context.Context, userID string) (*database.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// GenerateVerificationCode generates and stores a 6-digit code
func (s *Service) GenerateVerificationCode(ctx context.Context, userID, purpose string) (string, error) {
	code := fmt.Sprintf("%06d", mathrand.Intn(1000000))

	expiry := 15 * time.Minute
	if purpose == PurposePasswordReset {
		expiry = s.config.PasswordResetDuration
	}

	vc := &database.VerificationCode{
		UserID:    userID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(expiry),
	}

	if err := s.repo.CreateVerificationCode(ctx, vc); err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}

	return code, nil
}

// VerifyEmailWithCode verifies an email using a 6-digit code
func (s *Service) VerifyEmailWithCode(ctx context.Context, userID, code string) error {
	ok, err := s.repo.ConsumeVerificationCode(ctx, userID, code, PurposeEmailVerify)
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if !ok {
		return AuthError{
			Code:    "INVALID_CODE",
			Message: "Invalid or expired verification code",
		}
	}

	return s.repo.MarkEmailVerified(ctx, userID)
}

// ResendVerificationCode generates and sends a new verification code
func (s *Service) ResendVerificationCode(ctx context.Context, userID string) error {
	if s.emailService == nil {
		return AuthError{
			Code:    "EMAIL_DISABLED",
			Message: "Email service is not configured",
		}
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil || user == nil {
		return ErrUserNotFound
	}

	if user.EmailVerified {
		return AuthError{
			Code:    "ALREADY_VERIFIED",
			Message: "Email is already verified",
		}
	}

	code, err := s.GenerateVerificationCode(ctx, userID, PurposeEmailVerify)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	if err := s.emailService.SendVerificationEmail(ctx, user.Email, code); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	return nil
}

// Verification code purposes, re-exported for callers outside the database
// package.
const (
	PurposeEmailVerify   = database.PurposeEmailVerify
	PurposePasswordReset = database.PurposePasswordReset
)

func userResponse(user *database.User) UserResponse {
	return UserResponse{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		Role:             string(user.Role),
		EmailVerified:    user.EmailVerified,
		KYCStatus:        string(user.KYCStatus),
		SubscriptionTier: string(user.SubscriptionTier),
		CreatedAt:        user.CreatedAt,
		LastLoginAt:      user.LastLoginAt,
	}
}
