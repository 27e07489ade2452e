package vault

import (
	"context"
	"fmt"
	"sync"

	"investment-platform/config"

	"github.com/hashicorp/vault/api"
)

// Credential holds the secrets for one external provider (billing, kyc,
// esign, smtp).
type Credential struct {
	Provider      string `json:"provider"`
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	WebhookSecret string `json:"webhook_secret"`
}

// Client wraps the HashiCorp Vault client. When Vault is disabled the client
// degrades to an in-memory store seeded from configuration, which keeps
// development and test environments working without a Vault server.
type Client struct {
	client       *api.Client
	config       config.VaultConfig
	mu           sync.RWMutex
	cache        map[string]*Credential // provider -> Credential cache
	cacheEnabled bool
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config:       cfg,
			cache:        make(map[string]*Credential),
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:       client,
		config:       cfg,
		cache:        make(map[string]*Credential),
		cacheEnabled: true,
	}, nil
}

// StoreCredential stores a provider credential in Vault
func (c *Client) StoreCredential(ctx context.Context, cred Credential) error {
	if !c.config.Enabled {
		// Store in local cache only (for development/testing)
		c.mu.Lock()
		c.cache[cred.Provider] = &cred
		c.mu.Unlock()
		return nil
	}

	path := c.secretPath(cred.Provider)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"api_key":        cred.APIKey,
			"api_secret":     cred.APISecret,
			"webhook_secret": cred.WebhookSecret,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, path, secretData)
	if err != nil {
		return fmt.Errorf("failed to store credential in vault: %w", err)
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[cred.Provider] = &cred
		c.mu.Unlock()
	}

	return nil
}

// GetCredential retrieves a provider credential from Vault
func (c *Client) GetCredential(ctx context.Context, provider string) (*Credential, error) {
	// Check cache first
	if c.cacheEnabled {
		c.mu.RLock()
		if cached, ok := c.cache[provider]; ok {
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()
	}

	if !c.config.Enabled {
		return nil, fmt.Errorf("credential for %s not found and vault is disabled", provider)
	}

	path := c.secretPath(provider)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credential for %s not found", provider)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	cred := &Credential{
		Provider:      provider,
		APIKey:        getString(data, "api_key"),
		APISecret:     getString(data, "api_secret"),
		WebhookSecret: getString(data, "webhook_secret"),
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[provider] = cred
		c.mu.Unlock()
	}

	return cred, nil
}

// DeleteCredential deletes a provider credential from Vault
func (c *Client) DeleteCredential(ctx context.Context, provider string) error {
	c.mu.Lock()
	delete(c.cache, provider)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	path := c.metadataPath(provider)

	_, err := c.client.Logical().DeleteWithContext(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to delete credential from vault: %w", err)
	}

	return nil
}

// RotateCredential replaces an existing provider credential
func (c *Client) RotateCredential(ctx context.Context, cred Credential) error {
	return c.StoreCredential(ctx, cred)
}

// ListProviders lists the providers that have stored credentials
func (c *Client) ListProviders(ctx context.Context) ([]string, error) {
	if !c.config.Enabled {
		c.mu.RLock()
		defer c.mu.RUnlock()

		providers := make([]string, 0, len(c.cache))
		for provider := range c.cache {
			providers = append(providers, provider)
		}
		return providers, nil
	}

	path := fmt.Sprintf("%s/metadata/%s", c.config.MountPath, c.config.SecretPath)

	secret, err := c.client.Logical().ListWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	keys, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, nil
	}

	var providers []string
	for _, key := range keys {
		if keyStr, ok := key.(string); ok {
			providers = append(providers, keyStr)
		}
	}

	return providers, nil
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*Credential)
	c.mu.Unlock()
}

// SetCacheEnabled enables or disables caching
func (c *Client) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	c.cacheEnabled = enabled
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the path for storing a provider's secret
func (c *Client) secretPath(provider string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, provider)
}

// metadataPath returns the metadata path for a provider's secret
func (c *Client) metadataPath(provider string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", c.config.MountPath, c.config.SecretPath, provider)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// NewMockClient creates a disabled in-memory client for testing
func NewMockClient() *Client {
	return &Client{
		config: config.VaultConfig{
			Enabled: false,
		},
		cache:        make(map[string]*Credential),
		cacheEnabled: true,
	}
}
