// Package auth provides HMAC JWT authentication for the control-plane
// API. Unlike the donor control plane, this entity has no user/group
// store of its own — every caller is an operator or an automated
// client authenticating with a pre-shared bearer token, so claims
// carry a subject and role rather than a user ID resolved against a
// database.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors for JWT operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
	ErrMissingAuthHeader   = errors.New("missing or malformed Authorization header")
)

// Role gates which control-plane operations a token's bearer may
// perform.
type Role string

const (
	// RoleOperator may read transaction status and remote-entity
	// configuration.
	RoleOperator Role = "operator"
	// RoleAdmin may additionally submit and cancel transactions and
	// manage remote-entity configuration.
	RoleAdmin Role = "admin"
)

// Claims identifies the caller of a control-plane request.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// IsAdmin reports whether the caller may manage remote-entity
// configuration.
func (c *Claims) IsAdmin() bool { return c.Role == RoleAdmin }

// Config configures the JWT service.
type Config struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string
	// Issuer is the token issuer claim. Default: "cfdpd".
	Issuer string
	// TokenDuration is the token lifetime. Default: 1 hour.
	TokenDuration time.Duration
}

// Service issues and validates control-plane bearer tokens.
type Service struct {
	cfg Config
}

// New constructs a Service, applying defaults and validating the
// secret length.
func New(cfg Config) (*Service, error) {
	if len(cfg.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "cfdpd"
	}
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = time.Hour
	}
	return &Service{cfg: cfg}, nil
}

// IssueToken mints a signed token for subject at role, valid for the
// service's configured duration.
func (s *Service) IssueToken(subject string, role Role) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.TokenDuration)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and verifies a bearer token string.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
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
	return claims, nil
}

type claimsContextKey struct{}

// FromRequest extracts the bearer token from r's Authorization header
// and validates it.
func (s *Service) FromRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, ErrMissingAuthHeader
	}
	return s.ValidateToken(strings.TrimPrefix(header, prefix))
}

// WithClaims returns a context carrying claims, for handlers downstream
// of the authentication middleware to retrieve via ClaimsFromContext.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext retrieves the claims stored by the authentication
// middleware, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok
}
