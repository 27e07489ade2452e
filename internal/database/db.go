package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Users and auth
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			role VARCHAR(20) NOT NULL DEFAULT 'investor',
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			stripe_customer_id VARCHAR(255),
			kyc_status VARCHAR(20) NOT NULL DEFAULT 'none',
			kyc_applicant_id VARCHAR(100),
			subscription_tier VARCHAR(20) NOT NULL DEFAULT 'free',
			subscription_status VARCHAR(20) NOT NULL DEFAULT 'inactive',
			last_login_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_users_stripe_customer ON users(stripe_customer_id)`,

		`CREATE TABLE IF NOT EXISTS user_sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			refresh_token_hash VARCHAR(64) UNIQUE NOT NULL,
			user_agent TEXT,
			ip_address VARCHAR(45),
			expires_at TIMESTAMP NOT NULL,
			revoked_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON user_sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_token ON user_sessions(refresh_token_hash)`,

		`CREATE TABLE IF NOT EXISTS verification_codes (
			id SERIAL PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			code VARCHAR(10) NOT NULL,
			purpose VARCHAR(30) NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			used BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verification_codes_user ON verification_codes(user_id, purpose)`,

		// Structures and memberships
		`CREATE TABLE IF NOT EXISTS structures (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			structure_type VARCHAR(20) NOT NULL DEFAULT 'FUND',
			parent_id UUID REFERENCES structures(id) ON DELETE CASCADE,
			level INTEGER NOT NULL DEFAULT 1 CHECK (level BETWEEN 1 AND 5),
			total_commitment DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_called DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_distributed DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_invested DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_capital_returned DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_preferred_paid DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_catch_up_paid DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_carry_paid DECIMAL(20, 2) NOT NULL DEFAULT 0,
			management_fee_pct DECIMAL(6, 3) NOT NULL DEFAULT 0,
			carried_interest_pct DECIMAL(6, 3) NOT NULL DEFAULT 20,
			hurdle_rate_pct DECIMAL(6, 3) NOT NULL DEFAULT 8,
			waterfall_type VARCHAR(20) NOT NULL DEFAULT 'EUROPEAN',
			owner_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
			first_call_date TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_structures_parent ON structures(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_structures_owner ON structures(owner_user_id)`,

		`CREATE TABLE IF NOT EXISTS structure_investors (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			structure_id UUID NOT NULL REFERENCES structures(id) ON DELETE CASCADE,
			investor_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			commitment_amount DECIMAL(20, 2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'Active',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (structure_id, investor_user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_structure_investors_structure ON structure_investors(structure_id)`,
		`CREATE INDEX IF NOT EXISTS idx_structure_investors_investor ON structure_investors(investor_user_id)`,

		// Waterfall tier ladders
		`CREATE TABLE IF NOT EXISTS waterfall_tiers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			structure_id UUID NOT NULL REFERENCES structures(id) ON DELETE CASCADE,
			tier_number INTEGER NOT NULL CHECK (tier_number BETWEEN 1 AND 4),
			tier_name VARCHAR(100) NOT NULL,
			lp_share_percent DECIMAL(6, 3) NOT NULL,
			gp_share_percent DECIMAL(6, 3) NOT NULL,
			threshold_amount DECIMAL(20, 2),
			threshold_irr DECIMAL(6, 3),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_waterfall_tiers_active
			ON waterfall_tiers(structure_id, tier_number) WHERE is_active`,

		// Investments
		`CREATE TABLE IF NOT EXISTS investments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			structure_id UUID NOT NULL REFERENCES structures(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			investment_type VARCHAR(10) NOT NULL DEFAULT 'EQUITY',
			equity_invested DECIMAL(20, 2) NOT NULL DEFAULT 0,
			equity_current_value DECIMAL(20, 2) NOT NULL DEFAULT 0,
			principal_provided DECIMAL(20, 2) NOT NULL DEFAULT 0,
			outstanding_principal DECIMAL(20, 2) NOT NULL DEFAULT 0,
			interest_rate_pct DECIMAL(6, 3) NOT NULL DEFAULT 0,
			status VARCHAR(10) NOT NULL DEFAULT 'Active',
			exit_value DECIMAL(20, 2),
			realized_gain DECIMAL(20, 2),
			irr_percent DECIMAL(10, 4),
			moic DECIMAL(10, 4),
			total_returns DECIMAL(20, 2) NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_investments_structure ON investments(structure_id)`,
		`CREATE INDEX IF NOT EXISTS idx_investments_status ON investments(status)`,

		// Capital calls
		`CREATE TABLE IF NOT EXISTS capital_calls (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			structure_id UUID NOT NULL REFERENCES structures(id) ON DELETE CASCADE,
			investment_id UUID REFERENCES investments(id) ON DELETE SET NULL,
			call_number INTEGER NOT NULL,
			call_date TIMESTAMP NOT NULL,
			due_date TIMESTAMP NOT NULL,
			total_call_amount DECIMAL(20, 2) NOT NULL,
			total_paid_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			total_unpaid_amount DECIMAL(20, 2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'Draft',
			sent_date TIMESTAMP,
			purpose TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (structure_id, call_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_capital_calls_structure ON capital_calls(structure_id)`,
		`CREATE INDEX IF NOT EXISTS idx_capital_calls_status ON capital_calls(status)`,

		`CREATE TABLE IF NOT EXISTS capital_call_allocations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			capital_call_id UUID NOT NULL REFERENCES capital_calls(id) ON DELETE CASCADE,
			investor_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			allocated_amount DECIMAL(20, 2) NOT NULL,
			paid_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			remaining_amount DECIMAL(20, 2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'Pending',
			due_date TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (capital_call_id, investor_user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_call_allocations_call ON capital_call_allocations(capital_call_id)`,
		`CREATE INDEX IF NOT EXISTS idx_call_allocations_investor ON capital_call_allocations(investor_user_id)`,

		// Distributions
		`CREATE TABLE IF NOT EXISTS distributions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			structure_id UUID NOT NULL REFERENCES structures(id) ON DELETE CASCADE,
			investment_id UUID REFERENCES investments(id) ON DELETE SET NULL,
			distribution_number INTEGER NOT NULL,
			distribution_date TIMESTAMP NOT NULL,
			total_amount DECIMAL(20, 2) NOT NULL,
			source_equity_gain DECIMAL(20, 2) NOT NULL DEFAULT 0,
			source_debt_interest DECIMAL(20, 2) NOT NULL DEFAULT 0,
			source_debt_principal DECIMAL(20, 2) NOT NULL DEFAULT 0,
			source_other DECIMAL(20, 2) NOT NULL DEFAULT 0,
			waterfall_applied BOOLEAN NOT NULL DEFAULT FALSE,
			tier1_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			tier2_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			tier3_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			tier4_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			lp_total_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			gp_total_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			management_fee_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'Draft',
			paid_date TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (structure_id, distribution_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_distributions_structure ON distributions(structure_id)`,
		`CREATE INDEX IF NOT EXISTS idx_distributions_status ON distributions(status)`,

		`CREATE TABLE IF NOT EXISTS distribution_allocations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			distribution_id UUID NOT NULL REFERENCES distributions(id) ON DELETE CASCADE,
			investor_user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			allocated_amount DECIMAL(20, 2) NOT NULL,
			paid_amount DECIMAL(20, 2) NOT NULL DEFAULT 0,
			remaining_amount DECIMAL(20, 2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'Pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (distribution_id, investor_user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dist_allocations_distribution ON distribution_allocations(distribution_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dist_allocations_investor ON distribution_allocations(investor_user_id)`,

		// Documents
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			file_key VARCHAR(512) NOT NULL,
			content_type VARCHAR(100) NOT NULL DEFAULT 'application/octet-stream',
			size_bytes BIGINT NOT NULL DEFAULT 0,
			uploaded_by UUID REFERENCES users(id) ON DELETE SET NULL,
			entity_kind VARCHAR(20) NOT NULL CHECK (entity_kind IN ('structure', 'investor', 'investment', 'capital_call', 'distribution')),
			entity_id UUID NOT NULL,
			esign_envelope_id VARCHAR(100),
			esign_status VARCHAR(20),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_entity ON documents(entity_kind, entity_id)`,

		// Conversations and messages
		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			subject VARCHAR(255) NOT NULL,
			created_by UUID REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (conversation_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_user_id UUID REFERENCES users(id) ON DELETE SET NULL,
			body TEXT NOT NULL,
			sent_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			read_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,

		// System events and settings
		`CREATE TABLE IF NOT EXISTS system_events (
			id SERIAL PRIMARY KEY,
			event_type VARCHAR(50) NOT NULL,
			source VARCHAR(50) NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			data JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_system_events_type ON system_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_system_events_created ON system_events(created_at)`,

		`CREATE TABLE IF NOT EXISTS system_settings (
			key VARCHAR(100) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Keep updated_at current on row updates
		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = CURRENT_TIMESTAMP;
			RETURN NEW;
		END;
		$$ language 'plpgsql'`,

		`DO $$
		DECLARE
			t TEXT;
		BEGIN
			FOREACH t IN ARRAY ARRAY['users', 'structures', 'structure_investors', 'waterfall_tiers',
				'investments', 'capital_calls', 'capital_call_allocations', 'distributions',
				'distribution_allocations', 'documents']
			LOOP
				IF NOT EXISTS (
					SELECT 1 FROM pg_trigger WHERE tgname = 'update_' || t || '_updated_at'
				) THEN
					EXECUTE format('CREATE TRIGGER update_%s_updated_at BEFORE UPDATE ON %s
						FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()', t, t);
				END IF;
			END LOOP;
		END $$`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
