package commands

import (
	"sync"
	"time"
)

// ConfigTokenStore implements rest.TokenStore on the CLI configuration
// file, so that app-only tokens survive between invocations.
type ConfigTokenStore struct {
	mutex sync.Mutex
}

// NewConfigTokenStore creates a token store backed by config.yml.
func NewConfigTokenStore() *ConfigTokenStore {
	return &ConfigTokenStore{}
}

// LoadToken returns the stored app-only token. A missing or unparsable
// expiry is reported as zero.
func (p *ConfigTokenStore) LoadToken() (string, time.Time) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()
	if config.AppToken == "" {
		return "", time.Time{}
	}

	expiresAt, err := time.Parse(time.RFC3339, config.AppTokenExpiresAt)
	if err != nil {
		return config.AppToken, time.Time{}
	}

	return config.AppToken, expiresAt
}

// SaveToken stores token and its expiry in the config file.
func (p *ConfigTokenStore) SaveToken(token string, expiresAt time.Time) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()
	config.AppToken = token
	config.AppTokenExpiresAt = ""

	if !expiresAt.IsZero() {
		config.AppTokenExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	}

	return saveConfigStruct(config)
}
