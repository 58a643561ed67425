package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Token types.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Type     string `json:"type"`

	// IssuedAtNano is iat at nanosecond precision, compared against
	// revocations. The registered iat claim only has seconds.
	IssuedAtNano int64 `json:"iat_ns"`
}

// TokenPair is an access token with its refresh token.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

// Manager signs and validates RS256 tokens.
type Manager struct {
	privateKey      *rsa.PrivateKey
	publicKey       *rsa.PublicKey
	accessDuration  time.Duration
	refreshDuration time.Duration
	issuer          string
	now             func() time.Time

	// user id → tokens issued up to this instant are revoked.
	revokedAt map[int64]time.Time
	mu        sync.RWMutex
}

// NewManager creates a new JWT manager with a fresh RSA key pair.
func NewManager(accessDuration, refreshDuration time.Duration, issuer string) (*Manager, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	return &Manager{
		privateKey:      privateKey,
		publicKey:       &privateKey.PublicKey,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
		issuer:          issuer,
		now:             time.Now,
		revokedAt:       make(map[int64]time.Time),
	}, nil
}

// GenerateTokenPair creates access and refresh tokens for a user.
func (m *Manager) GenerateTokenPair(userID int64, username string) (*TokenPair, error) {
	now := m.now()

	accessExp := now.Add(m.accessDuration)
	access, err := m.signToken(&Claims{
		RegisteredClaims: m.registered(now, accessExp),
		UserID:           userID,
		Username:         username,
		Type:             TypeAccess,
		IssuedAtNano:     now.UnixNano(),
	})
	if err != nil {
		return nil, err
	}

	refreshExp := now.Add(m.refreshDuration)
	refresh, err := m.signToken(&Claims{
		RegisteredClaims: m.registered(now, refreshExp),
		UserID:           userID,
		Type:             TypeRefresh,
		IssuedAtNano:     now.UnixNano(),
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp.Unix(),
		RefreshExpiresAt: refreshExp.Unix(),
	}, nil
}

// ValidateToken validates a token of the wanted type and returns its claims.
func (m *Manager) ValidateToken(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return m.publicKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != tokenType || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}

	if m.isRevoked(claims) {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// RevokeUserTokens revokes every token issued to the user up to now.
func (m *Manager) RevokeUserTokens(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokedAt[userID] = m.now()
}

// CleanupExpiredRevocations drops entries older than any refresh token.
func (m *Manager) CleanupExpiredRevocations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.refreshDuration)
	for userID, at := range m.revokedAt {
		if at.Before(cutoff) {
			delete(m.revokedAt, userID)
		}
	}
}

func (m *Manager) isRevoked(claims *Claims) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	revokedAt, ok := m.revokedAt[claims.UserID]
	if !ok {
		return false
	}
	return claims.IssuedAtNano <= revokedAt.UnixNano()
}

func (m *Manager) registered(now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (m *Manager) signToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(m.privateKey)
}
