package auth

import (
	"context"
	"fmt"
	"log"

	"investment-platform/internal/database"

	"golang.org/x/crypto/bcrypt"
)

const (
	// RootBcryptCost is the bcrypt cost for the seeded root password
	RootBcryptCost = 12
)

// SeedRootUser ensures a root user exists with the configured credentials.
// It creates the account if missing and repairs the password or role when
// they have drifted. Called once at startup.
func SeedRootUser(ctx context.Context, db *database.DB, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("root email and password are required")
	}

	repo := database.NewRepository(db)

	user, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check for root user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), RootBcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash root password: %w", err)
	}

	if user == nil {
		log.Printf("Root user not found. Creating root user: %s", email)

		rootUser := &database.User{
			Email:              email,
			PasswordHash:       string(hashedPassword),
			Name:               "Root",
			Role:               database.RoleRoot,
			EmailVerified:      true,
			KYCStatus:          database.KYCNone,
			SubscriptionTier:   database.TierInstitution,
			SubscriptionStatus: database.StatusActive,
		}

		if err := repo.CreateUser(ctx, rootUser); err != nil {
			return fmt.Errorf("failed to create root user: %w", err)
		}

		log.Printf("Root user created successfully with ID: %s", rootUser.ID)
		return nil
	}

	// User exists - repair the password if it no longer matches
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Printf("Root user exists but password needs updating: %s", email)

		if err := repo.UpdateUserPassword(ctx, user.ID, string(hashedPassword)); err != nil {
			return fmt.Errorf("failed to update root password: %w", err)
		}
	}

	// Repair role and verification flags
	if user.Role != database.RoleRoot || !user.EmailVerified {
		log.Printf("Updating root user flags")

		user.Role = database.RoleRoot
		user.EmailVerified = true
		user.SubscriptionTier = database.TierInstitution
		user.SubscriptionStatus = database.StatusActive

		if err := repo.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to update root user flags: %w", err)
		}
	}

	return nil
}
