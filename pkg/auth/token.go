package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
)

const (
	// TokenPrefix identifies GeoSight tokens
	TokenPrefix = "gsk_"

	// tokenCacheSize bounds the token->user LRU. Entries are immutable
	// snapshots keyed by token hash; revocation is checked on cache miss
	// only, so the TTL keeps revocations visible within a minute.
	tokenCacheSize = 4096
	tokenCacheTTL  = time.Minute
)

type cachedToken struct {
	token    *APIToken
	user     *User
	cachedAt time.Time
}

// TokenManager manages API token lifecycle and validation
type TokenManager struct {
	store *Store
	cache *lru.Cache[string, cachedToken]
}

// NewTokenManager creates a new token manager
func NewTokenManager(store *Store) (*TokenManager, error) {
	cache, err := lru.New[string, cachedToken](tokenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}
	return &TokenManager{store: store, cache: cache}, nil
}

// Create generates a token for a user and stores its hash. The raw
// token is returned exactly once and never persisted.
func (tm *TokenManager) Create(ctx context.Context, userID int64, name string, expiresAt *time.Time) (string, *APIToken, error) {
	raw := TokenPrefix + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")

	token := &APIToken{
		UserID:    userID,
		TokenHash: HashToken(raw),
		Name:      name,
		ExpiresAt: expiresAt,
	}
	if err := tm.store.InsertToken(ctx, token); err != nil {
		return "", nil, err
	}
	return raw, token, nil
}

// Validate resolves a raw bearer token to its token row and user.
// Returns (nil, nil, nil) for unknown, revoked or expired tokens.
func (tm *TokenManager) Validate(ctx context.Context, raw string) (*APIToken, *User, error) {
	if !strings.HasPrefix(raw, TokenPrefix) {
		return nil, nil, nil
	}

	hash := HashToken(raw)
	if entry, ok := tm.cache.Get(hash); ok && time.Since(entry.cachedAt) < tokenCacheTTL {
		return entry.token, entry.user, nil
	}

	token, err := tm.store.GetTokenByHash(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	if token == nil {
		tm.cache.Remove(hash)
		return nil, nil, nil
	}

	user, err := tm.store.GetUser(ctx, token.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, nil
	}

	tm.cache.Add(hash, cachedToken{token: token, user: user, cachedAt: time.Now()})
	return token, user, nil
}

// Revoke revokes a token and drops it from the cache
func (tm *TokenManager) Revoke(ctx context.Context, token *APIToken) error {
	if err := tm.store.RevokeToken(ctx, token.ID); err != nil {
		return err
	}
	tm.cache.Remove(token.TokenHash)
	return nil
}

// HashToken computes the SHA256 hash of a token for lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
