package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/oakbank/transferd/internal/domain"
)

var ErrInvalidToken = errors.New("invalid session token")

// Session is the authenticated principal carried on each request.
type Session struct {
	CustomerID uuid.UUID
	Email      string
}

// TokenManager issues and parses HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue mints a session token for a logged-in customer.
func (m *TokenManager) Issue(c domain.Customer) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   c.ID.String(),
		"email": c.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(m.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("token signing failed: %w", err)
	}
	return signed, nil
}

// Parse validates a token and recovers the session principal.
func (m *TokenManager) Parse(raw string) (*Session, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	id, err := uuid.Parse(sub)
	if err != nil || email == "" {
		return nil, ErrInvalidToken
	}
	return &Session{CustomerID: id, Email: email}, nil
}
