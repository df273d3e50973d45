package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/fivetwenty-io/rest-dispatch/pkg/rest"
)

// Static errors for err113 compliance.
var (
	ErrNoTokenStore = errors.New("no token store configured")
)

// StoredTokenSource serves tokens from source and saves every new token to
// a rest.TokenStore. A token already in the store is served first while it
// is valid.
type StoredTokenSource struct {
	mutex  sync.Mutex
	source oauth2.TokenSource
	store  rest.TokenStore
	logger rest.Logger
	last   string
}

// NewStoredTokenSource wraps source. The returned source reuses the stored
// token until it expires.
func NewStoredTokenSource(source oauth2.TokenSource, store rest.TokenStore, logger rest.Logger) oauth2.TokenSource {
	if logger == nil {
		logger = rest.NopLogger{}
	}

	stored := &StoredTokenSource{
		source: source,
		store:  store,
		logger: logger,
	}

	var initial *oauth2.Token

	if store != nil {
		if token, expiresAt := store.LoadToken(); token != "" {
			initial = &oauth2.Token{AccessToken: token, TokenType: "Bearer", Expiry: expiresAt}
			stored.last = token
		}
	}

	return oauth2.ReuseTokenSource(initial, stored)
}

// Token fetches a token from the wrapped source and persists it when it
// changed. A failure to persist is logged, not returned.
func (s *StoredTokenSource) Token() (*oauth2.Token, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	if token.AccessToken != s.last {
		s.last = token.AccessToken

		persistErr := s.persist(token)
		if persistErr != nil {
			s.logger.Warn("Failed to persist app-only token", map[string]interface{}{
				"error": persistErr.Error(),
			})
		}
	}

	return token, nil
}

func (s *StoredTokenSource) persist(token *oauth2.Token) error {
	if s.store == nil {
		return ErrNoTokenStore
	}

	err := s.store.SaveToken(token.AccessToken, token.Expiry)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

// MemoryTokenStore keeps a token in memory. It is mostly useful to share a
// token between clients of one process.
type MemoryTokenStore struct {
	mutex     sync.RWMutex
	token     string
	expiresAt time.Time
}

// LoadToken implements rest.TokenStore.
func (m *MemoryTokenStore) LoadToken() (string, time.Time) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.token, m.expiresAt
}

// SaveToken implements rest.TokenStore.
func (m *MemoryTokenStore) SaveToken(token string, expiresAt time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.token = token
	m.expiresAt = expiresAt

	return nil
}
