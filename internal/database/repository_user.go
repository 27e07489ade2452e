package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const userColumns = `
	id, email, password_hash, COALESCE(name, ''), role, email_verified,
	COALESCE(stripe_customer_id, ''), kyc_status, COALESCE(kyc_applicant_id, ''),
	subscription_tier, subscription_status, last_login_at, created_at, updated_at`

// =====================================================
// USER CRUD OPERATIONS
// =====================================================

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, password_hash, name, role, subscription_tier, subscription_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.SubscriptionTier,
		user.SubscriptionStatus,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID; returns nil when the user does not exist
func (r *Repository) GetUserByID(ctx context.Context, userID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := r.scanUser(r.db.Pool.QueryRow(ctx, query, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email; returns nil when not found
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := r.scanUser(r.db.Pool.QueryRow(ctx, query, email))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetUserByStripeCustomerID looks a user up by billing customer reference
func (r *Repository) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`
	user, err := r.scanUser(r.db.Pool.QueryRow(ctx, query, customerID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by customer id: %w", err)
	}
	return user, nil
}

// GetUserByKYCApplicantID looks a user up by KYC provider applicant reference
func (r *Repository) GetUserByKYCApplicantID(ctx context.Context, applicantID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE kyc_applicant_id = $1`
	user, err := r.scanUser(r.db.Pool.QueryRow(ctx, query, applicantID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by applicant id: %w", err)
	}
	return user, nil
}

// GetUsers retrieves all users, newest first
func (r *Repository) GetUsers(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser updates a user's profile and provider references
func (r *Repository) UpdateUser(ctx context.Context, user *User) error {
	query := `
		UPDATE users SET
			name = $2,
			role = $3,
			email_verified = $4,
			stripe_customer_id = NULLIF($5, ''),
			kyc_status = $6,
			kyc_applicant_id = NULLIF($7, ''),
			subscription_tier = $8,
			subscription_status = $9
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Role,
		user.EmailVerified,
		user.StripeCustomerID,
		user.KYCStatus,
		user.KYCApplicantID,
		user.SubscriptionTier,
		user.SubscriptionStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password
func (r *Repository) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, userID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// UpdateUserLastLogin updates the last login timestamp
func (r *Repository) UpdateUserLastLogin(ctx context.Context, userID string) error {
	query := `UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// MarkEmailVerified flags a user's email as verified
func (r *Repository) MarkEmailVerified(ctx context.Context, userID string) error {
	query := `UPDATE users SET email_verified = TRUE WHERE id = $1`
	if _, err := r.db.Pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	return nil
}

// UpdateUserKYC updates a user's identity-verification state
func (r *Repository) UpdateUserKYC(ctx context.Context, userID string, status KYCStatus, applicantID string) error {
	query := `
		UPDATE users SET kyc_status = $2, kyc_applicant_id = NULLIF($3, '')
		WHERE id = $1
	`
	if _, err := r.db.Pool.Exec(ctx, query, userID, status, applicantID); err != nil {
		return fmt.Errorf("failed to update kyc status: %w", err)
	}
	return nil
}

// UpdateUserSubscription updates a user's billing tier and status
func (r *Repository) UpdateUserSubscription(ctx context.Context, userID string, tier SubscriptionTier, status SubscriptionStatus) error {
	query := `
		UPDATE users SET subscription_tier = $2, subscription_status = $3
		WHERE id = $1
	`
	if _, err := r.db.Pool.Exec(ctx, query, userID, tier, status); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

func (r *Repository) scanUser(row rowScanner) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.Role, &user.EmailVerified,
		&user.StripeCustomerID, &user.KYCStatus, &user.KYCApplicantID,
		&user.SubscriptionTier, &user.SubscriptionStatus, &user.LastLoginAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// =====================================================
// SESSIONS
// =====================================================

// CreateSession stores a hashed refresh token session
func (r *Repository) CreateSession(ctx context.Context, session *UserSession) error {
	query := `
		INSERT INTO user_sessions (user_id, refresh_token_hash, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		session.UserID, session.RefreshTokenHash, session.UserAgent,
		session.IPAddress, session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSessionByTokenHash retrieves an unexpired, unrevoked session
func (r *Repository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*UserSession, error) {
	query := `
		SELECT id, user_id, refresh_token_hash, COALESCE(user_agent, ''),
		       COALESCE(ip_address, ''), expires_at, revoked_at, created_at
		FROM user_sessions
		WHERE refresh_token_hash = $1
		  AND revoked_at IS NULL
		  AND expires_at > CURRENT_TIMESTAMP
	`
	session := &UserSession{}
	err := r.db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID, &session.UserID, &session.RefreshTokenHash, &session.UserAgent,
		&session.IPAddress, &session.ExpiresAt, &session.RevokedAt, &session.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// RevokeSession revokes a single session
func (r *Repository) RevokeSession(ctx context.Context, sessionID string) error {
	query := `UPDATE user_sessions SET revoked_at = CURRENT_TIMESTAMP WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, sessionID)
	return err
}

// RevokeUserSessions revokes every active session for a user
func (r *Repository) RevokeUserSessions(ctx context.Context, userID string) error {
	query := `UPDATE user_sessions SET revoked_at = CURRENT_TIMESTAMP WHERE user_id = $1 AND revoked_at IS NULL`
	_, err := r.db.Pool.Exec(ctx, query, userID)
	return err
}

// =====================================================
// VERIFICATION CODES
// =====================================================

// CreateVerificationCode stores a short-lived code for a user
func (r *Repository) CreateVerificationCode(ctx context.Context, vc *VerificationCode) error {
	query := `
		INSERT INTO verification_codes (user_id, code, purpose, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.Pool.QueryRow(ctx, query, vc.UserID, vc.Code, vc.Purpose, vc.ExpiresAt).
		Scan(&vc.ID, &vc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create verification code: %w", err)
	}
	return nil
}

// ConsumeVerificationCode marks a live code as used. Returns false if the
// code is unknown, expired or already consumed.
func (r *Repository) ConsumeVerificationCode(ctx context.Context, userID, code, purpose string) (bool, error) {
	query := `
		UPDATE verification_codes
		SET used = TRUE
		WHERE user_id = $1 AND code = $2 AND purpose = $3
		  AND used = FALSE AND expires_at > CURRENT_TIMESTAMP
	`
	tag, err := r.db.Pool.Exec(ctx, query, userID, code, purpose)
	if err != nil {
		return false, fmt.Errorf("failed to consume verification code: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
