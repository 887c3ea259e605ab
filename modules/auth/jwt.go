// Package auth verifies the access tokens issued by the account service.
// Tokens are only checked here; issuing them is the account service's job,
// GenerateAccessToken exists for tooling and tests.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

const tokenTypeAccess = "access"

// Config holds JWT configuration.
type Config struct {
	SecretKey           string
	Issuer              string
	AccessTokenDuration time.Duration
}

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() Config {
	return Config{
		SecretKey:           "modoco-dev-secret",
		Issuer:              "modoco",
		AccessTokenDuration: time.Hour,
	}
}

// Claims are the claims carried by an access token.
type Claims struct {
	UserID    string `json:"uid"`
	Nickname  string `json:"nickname"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Manager validates and issues tokens.
type Manager struct {
	config Config
}

// NewManager creates a new Manager with the given configuration.
func NewManager(config Config) *Manager {
	return &Manager{config: config}
}

// GenerateAccessToken issues an access token for a user.
func (m *Manager) GenerateAccessToken(userID, nickname string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Nickname:  nickname,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// ValidateToken validates an access token and returns its claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenTypeAccess || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
