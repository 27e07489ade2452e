package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"investment-platform/config"
	"investment-platform/internal/api"
	"investment-platform/internal/auth"
	"investment-platform/internal/billing"
	"investment-platform/internal/cache"
	"investment-platform/internal/database"
	"investment-platform/internal/email"
	"investment-platform/internal/esign"
	"investment-platform/internal/events"
	"investment-platform/internal/kyc"
	"investment-platform/internal/ledger"
	"investment-platform/internal/logging"
	"investment-platform/internal/vault"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "generate-config" {
		if err := config.GenerateSampleConfig("config.json"); err != nil {
			log.Fatalf("Failed to generate sample config: %v", err)
		}
		fmt.Println("Wrote config.json")
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
	})
	logger.Info().Msg("Structured logging initialized")

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info().Msg("Event bus initialized")

	// Connect to PostgreSQL and run migrations
	ctx := context.Background()
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	logger.Info().Str("database", cfg.DatabaseConfig.Database).Msg("Database ready")

	repo := database.NewRepository(db)

	// Persist every bus event for the admin audit feed
	eventBus.SubscribeAll(func(event events.Event) {
		_ = repo.SaveSystemEvent(context.Background(), &database.SystemEvent{
			EventType: string(event.Type),
			Source:    "event_bus",
			Data:      event.Data,
			CreatedAt: event.Timestamp,
		})
	})

	// Redis cache is optional; a failed connection degrades to cacheless mode
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
			cacheService = nil
		} else {
			defer cacheService.Close()
			logger.Info().Str("address", cfg.RedisConfig.Address).Msg("Redis cache connected")
		}
	}

	// Vault for provider credentials. A disabled Vault still yields a working
	// client backed by an in-memory store.
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Vault client")
	}

	// Provider secrets stored in Vault override environment configuration
	if vaultClient.IsEnabled() {
		logger.Info().Str("address", cfg.VaultConfig.Address).Msg("Vault enabled")
		if cred, err := vaultClient.GetCredential(ctx, "stripe"); err == nil && cred != nil {
			cfg.BillingConfig.StripeSecretKey = cred.APISecret
			cfg.BillingConfig.StripeWebhookSecret = cred.WebhookSecret
		}
		if cred, err := vaultClient.GetCredential(ctx, "kyc"); err == nil && cred != nil {
			cfg.KYCConfig.AppToken = cred.APIKey
			cfg.KYCConfig.SecretKey = cred.APISecret
			cfg.KYCConfig.WebhookSecret = cred.WebhookSecret
		}
		if cred, err := vaultClient.GetCredential(ctx, "esign"); err == nil && cred != nil {
			cfg.ESignConfig.APIKey = cred.APIKey
			cfg.ESignConfig.WebhookSecret = cred.WebhookSecret
		}
	}

	// Email service reads SMTP settings from the database at send time
	emailService := email.NewService(repo)

	// Authentication
	var authService *auth.Service
	if cfg.AuthConfig.Enabled {
		if cfg.AuthConfig.JWTSecret == "" {
			logger.Fatal().Msg("AUTH_JWT_SECRET is required when authentication is enabled")
		}
		authService = auth.NewServiceWithEmail(repo, auth.Config{
			JWTSecret:                cfg.AuthConfig.JWTSecret,
			AccessTokenDuration:      cfg.AuthConfig.AccessTokenDuration,
			RefreshTokenDuration:     cfg.AuthConfig.RefreshTokenDuration,
			MinPasswordLength:        cfg.AuthConfig.MinPasswordLength,
			MaxSessionsPerUser:       cfg.AuthConfig.MaxSessionsPerUser,
			RequireEmailVerification: cfg.AuthConfig.RequireEmailVerification,
			PasswordResetDuration:    cfg.AuthConfig.PasswordResetDuration,
		}, emailService)

		if cfg.AuthConfig.RootEmail != "" && cfg.AuthConfig.RootPassword != "" {
			if err := auth.SeedRootUser(ctx, db, cfg.AuthConfig.RootEmail, cfg.AuthConfig.RootPassword); err != nil {
				logger.Fatal().Err(err).Msg("Failed to seed root user")
			}
		}
		logger.Info().Msg("Authentication enabled")
	} else {
		logger.Warn().Msg("Authentication DISABLED - all requests run as a single anonymous user")
	}

	// Ledger service drives capital calls, distributions, and the waterfall
	var ownershipCache ledger.OwnershipCache
	if cacheService != nil {
		ownershipCache = cache.NewOwnershipCache(cacheService)
	}
	ledgerService := ledger.NewService(repo, ownershipCache, eventBus, logger)

	// Billing: Stripe subscriptions plus the capital-call dunning scheduler.
	// Without Redis the webhook deduper stays nil and handlers rely on their
	// own idempotency.
	var billingService *billing.StripeService
	if cfg.BillingConfig.Enabled {
		var dedupe billing.WebhookDeduper
		if cacheService != nil {
			dedupe = cacheService
		}
		billingService = billing.NewStripeService(&billing.StripeConfig{
			SecretKey:           cfg.BillingConfig.StripeSecretKey,
			PublishableKey:      cfg.BillingConfig.StripePublishableKey,
			WebhookSecret:       cfg.BillingConfig.StripeWebhookSecret,
			ProfessionalPriceID: cfg.BillingConfig.ProfessionalPriceID,
			InstitutionPriceID:  cfg.BillingConfig.InstitutionPriceID,
		}, repo, dedupe)
		logger.Info().Msg("Billing enabled")
	}

	dunningScheduler := billing.NewScheduler(repo, emailService, &billing.SchedulerConfig{
		ScanHourUTC:        cfg.BillingConfig.DunningScanHourUTC,
		GraceDays:          cfg.BillingConfig.DunningGraceDays,
		MinimumOutstanding: cfg.BillingConfig.DunningMinimum,
	})
	if err := dunningScheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start dunning scheduler")
	}
	defer dunningScheduler.Stop()
	logger.Info().Int("scan_hour_utc", cfg.BillingConfig.DunningScanHourUTC).Msg("Dunning scheduler started")

	// Identity verification
	var kycService *kyc.Service
	if cfg.KYCConfig.Enabled {
		var dedupe kyc.WebhookDeduper
		if cacheService != nil {
			dedupe = cacheService
		}
		kycService = kyc.NewService(kyc.Config{
			AppToken:      cfg.KYCConfig.AppToken,
			SecretKey:     cfg.KYCConfig.SecretKey,
			WebhookSecret: cfg.KYCConfig.WebhookSecret,
			BaseURL:       cfg.KYCConfig.BaseURL,
			LevelName:     cfg.KYCConfig.LevelName,
		}, repo, dedupe)
		logger.Info().Msg("KYC verification enabled")
	}

	// E-signature
	var esignService *esign.Service
	if cfg.ESignConfig.Enabled {
		var dedupe esign.WebhookDeduper
		if cacheService != nil {
			dedupe = cacheService
		}
		esignService = esign.NewService(esign.Config{
			APIKey:        cfg.ESignConfig.APIKey,
			AccountID:     cfg.ESignConfig.AccountID,
			WebhookSecret: cfg.ESignConfig.WebhookSecret,
			BaseURL:       cfg.ESignConfig.BaseURL,
		}, repo, dedupe)
		logger.Info().Msg("E-signature enabled")
	}

	// HTTP server
	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowedOrigins: cfg.ServerConfig.OriginList(),
	}, repo, eventBus, ledgerService, api.Services{
		Auth:    authService,
		Vault:   vaultClient,
		Cache:   cacheService,
		Billing: billingService,
		Dunning: dunningScheduler,
		KYC:     kycService,
		ESign:   esignService,
		Email:   emailService,
		Logger:  logging.Component(logger, "api"),
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	logger.Info().Int("port", cfg.ServerConfig.Port).Msg("HTTP server started")

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	logger.Info().Msg("Shutdown complete")
}
