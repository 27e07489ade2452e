package config

import (
	"testing"
	"time"
)

func TestOriginList(t *testing.T) {
	tests := []struct {
		name    string
		origins string
		want    []string
	}{
		{"empty", "", nil},
		{"single", "http://localhost:5173", []string{"http://localhost:5173"}},
		{"multiple with spaces", "https://a.example.com, https://b.example.com", []string{"https://a.example.com", "https://b.example.com"}},
		{"trailing comma", "https://a.example.com,", []string{"https://a.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := ServerConfig{AllowedOrigins: tt.origins}
			got := sc.OriginList()
			if len(got) != len(tt.want) {
				t.Fatalf("OriginList() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("OriginList()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEnvOverrideDefaults(t *testing.T) {
	cfg := &Config{}
	applyEnvOverrides(cfg)

	if cfg.ServerConfig.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.ServerConfig.Port)
	}
	if cfg.DatabaseConfig.Host != "localhost" {
		t.Errorf("default db host = %q, want localhost", cfg.DatabaseConfig.Host)
	}
	if cfg.AuthConfig.AccessTokenDuration != 15*time.Minute {
		t.Errorf("default access token duration = %v, want 15m", cfg.AuthConfig.AccessTokenDuration)
	}
	if cfg.BillingConfig.DunningScanHourUTC != 8 {
		t.Errorf("default dunning scan hour = %d, want 8", cfg.BillingConfig.DunningScanHourUTC)
	}
	if cfg.LoggingConfig.Level != "INFO" {
		t.Errorf("default log level = %q, want INFO", cfg.LoggingConfig.Level)
	}
}

func TestEnvOverrideApplied(t *testing.T) {
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("DB_NAME", "funds_test")
	t.Setenv("AUTH_ACCESS_TOKEN_DURATION", "30m")
	t.Setenv("DUNNING_GRACE_DAYS", "7")
	t.Setenv("REDIS_ENABLED", "true")

	cfg := &Config{}
	applyEnvOverrides(cfg)

	if cfg.ServerConfig.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.ServerConfig.Port)
	}
	if cfg.DatabaseConfig.Database != "funds_test" {
		t.Errorf("db name = %q, want funds_test", cfg.DatabaseConfig.Database)
	}
	if cfg.AuthConfig.AccessTokenDuration != 30*time.Minute {
		t.Errorf("access token duration = %v, want 30m", cfg.AuthConfig.AccessTokenDuration)
	}
	if cfg.BillingConfig.DunningGraceDays != 7 {
		t.Errorf("grace days = %d, want 7", cfg.BillingConfig.DunningGraceDays)
	}
	if !cfg.RedisConfig.Enabled {
		t.Error("redis should be enabled via env")
	}
}

func TestFileValuesSurviveWithoutEnv(t *testing.T) {
	cfg := &Config{
		ServerConfig:   ServerConfig{Port: 3000},
		DatabaseConfig: DatabaseConfig{Host: "db.internal"},
	}
	applyEnvOverrides(cfg)

	if cfg.ServerConfig.Port != 3000 {
		t.Errorf("file port = %d, want 3000 preserved", cfg.ServerConfig.Port)
	}
	if cfg.DatabaseConfig.Host != "db.internal" {
		t.Errorf("file db host = %q, want db.internal preserved", cfg.DatabaseConfig.Host)
	}
}
