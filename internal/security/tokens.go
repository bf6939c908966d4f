package security

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token permissions. Scopes are plain strings so new ones can be added
// without touching this package.
const (
	PermQueueRead  = "queue:read"
	PermQueueWrite = "queue:write"
	PermQueueAdmin = "queue:admin"
)

// MaxLiveTokensPerPlayer bounds the number of live session tokens per
// player; the oldest token is evicted when the limit is exceeded.
const MaxLiveTokensPerPlayer = 5

// TokenValidation is the result of validating a session token, with an
// explicit reason when invalid.
type TokenValidation struct {
	Valid    bool   `json:"valid"`
	PlayerID string `json:"player_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Validation failure reasons.
const (
	ReasonNotFound     = "not found"
	ReasonExpired      = "expired"
	ReasonInsufficient = "insufficient permissions"
	ReasonMalformed    = "malformed token"
)

// sessionClaims is the JWT claim set carried by session tokens.
type sessionClaims struct {
	PlayerID    string   `json:"pid"`
	Permissions []string `json:"perms"`
	jwt.RegisteredClaims
}

// liveToken is the server-side registry entry for one issued token.
// The registry is what makes revocation and the per-player cap work:
// a structurally valid JWT whose ID is no longer registered is dead.
type liveToken struct {
	id        string
	playerID  string
	issuedAt  time.Time
	expiresAt time.Time
}

// TokenManager issues and validates scoped, time-boxed session tokens.
type TokenManager struct {
	signingKey []byte
	ttl        time.Duration

	mu       sync.Mutex
	live     map[string][]liveToken // playerID -> tokens, oldest first
	timeFunc func() time.Time       // Injectable for testing
}

// NewTokenManager creates a token manager. The signing key must be at
// least 32 bytes.
func NewTokenManager(signingKey []byte, ttl time.Duration) (*TokenManager, error) {
	if len(signingKey) < 32 {
		return nil, fmt.Errorf("token signing key must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &TokenManager{
		signingKey: signingKey,
		ttl:        ttl,
		live:       make(map[string][]liveToken),
		timeFunc:   time.Now,
	}, nil
}

// SetTimeFunc overrides the manager's clock for tests.
func (m *TokenManager) SetTimeFunc(fn func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeFunc = fn
}

// Issue creates a signed session token scoped to the given permissions.
// When the player already holds the maximum number of live tokens, the
// oldest one is evicted.
func (m *TokenManager) Issue(playerID string, permissions []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.timeFunc()
	tokenID := uuid.New().String()

	claims := sessionClaims{
		PlayerID:    playerID,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        tokenID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	tokens := append(m.live[playerID], liveToken{
		id:        tokenID,
		playerID:  playerID,
		issuedAt:  now,
		expiresAt: now.Add(m.ttl),
	})
	if len(tokens) > MaxLiveTokensPerPlayer {
		tokens = tokens[len(tokens)-MaxLiveTokensPerPlayer:]
	}
	m.live[playerID] = tokens

	return signed, nil
}

// Validate checks a session token and, when requiredPermission is
// non-empty, that the token's scope covers it.
func (m *TokenManager) Validate(tokenString, requiredPermission string) TokenValidation {
	m.mu.Lock()
	now := m.timeFunc()
	m.mu.Unlock()

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenValidation{Valid: false, Reason: ReasonExpired}
		}
		return TokenValidation{Valid: false, Reason: ReasonMalformed}
	}
	if !parsed.Valid {
		return TokenValidation{Valid: false, Reason: ReasonMalformed}
	}

	m.mu.Lock()
	registered := m.findLocked(claims.PlayerID, claims.ID)
	m.mu.Unlock()

	if registered == nil {
		// Revoked, evicted, or never issued here.
		return TokenValidation{Valid: false, Reason: ReasonNotFound}
	}
	if now.After(registered.expiresAt) {
		return TokenValidation{Valid: false, Reason: ReasonExpired}
	}

	if requiredPermission != "" && !hasPermission(claims.Permissions, requiredPermission) {
		return TokenValidation{Valid: false, PlayerID: claims.PlayerID, Reason: ReasonInsufficient}
	}

	return TokenValidation{Valid: true, PlayerID: claims.PlayerID}
}

// Revoke invalidates a single token. Revoking an unknown token is a no-op.
func (m *TokenManager) Revoke(tokenString string) {
	claims := &sessionClaims{}
	// Signature check only; an expired token can still be revoked.
	_, _ = jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return m.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithoutClaimsValidation())

	if claims.PlayerID == "" || claims.ID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := m.live[claims.PlayerID][:0]
	for _, tok := range m.live[claims.PlayerID] {
		if tok.id != claims.ID {
			tokens = append(tokens, tok)
		}
	}
	m.live[claims.PlayerID] = tokens
}

// RevokeAll invalidates every live token for the player.
func (m *TokenManager) RevokeAll(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, playerID)
}

// LiveTokenCount reports how many live tokens the player holds.
func (m *TokenManager) LiveTokenCount(playerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live[playerID])
}

func (m *TokenManager) findLocked(playerID, tokenID string) *liveToken {
	for i := range m.live[playerID] {
		if m.live[playerID][i].id == tokenID {
			return &m.live[playerID][i]
		}
	}
	return nil
}

func hasPermission(scopes []string, required string) bool {
	for _, scope := range scopes {
		if scope == required {
			return true
		}
	}
	return false
}

