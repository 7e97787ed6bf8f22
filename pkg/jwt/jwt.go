// Package jwt issues and verifies the bearer tokens that carry a caller's
// report scope.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/playreport/api/pkg/domain/scope"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrEmptyUserID is returned when the subject is empty.
	ErrEmptyUserID = errors.New("user_id cannot be empty")
	// ErrEmptySecret is returned when no signing secret is configured.
	ErrEmptySecret = errors.New("jwt secret cannot be empty")
)

// Claims represents the JWT claims structure. The subject is the user id;
// the remaining claims describe the tenants the user may report on.
type Claims struct {
	Role          string  `json:"role"`
	WhiteLabelIDs []int64 `json:"white_label_ids,omitempty"` // partner
	WhiteLabelID  *int64  `json:"white_label_id,omitempty"`  // subpartner
	Tracker       string  `json:"tracker,omitempty"`         // subpartner

	jwt.RegisteredClaims
}

// CallerScope converts the claims into the identity the scope resolver
// consumes. Completeness of the assignment is the resolver's concern.
func (c *Claims) CallerScope() (scope.CallerScope, error) {
	if c.Subject == "" {
		return scope.CallerScope{}, ErrEmptyUserID
	}

	role, err := scope.ParseRole(c.Role)
	if err != nil {
		return scope.CallerScope{}, err
	}

	id := scope.CallerScope{UserID: c.Subject, Role: role}
	switch role {
	case scope.RolePartner:
		id.TenantIDs = append([]int64(nil), c.WhiteLabelIDs...)
	case scope.RoleSubpartner:
		if c.WhiteLabelID != nil {
			tenant := *c.WhiteLabelID
			id.TenantID = &tenant
		}
		if c.Tracker != "" {
			tracker := c.Tracker
			id.TrackerConstraint = &tracker
		}
	}
	return id, nil
}

// ClaimsFor builds the claims that describe identity.
func ClaimsFor(identity scope.CallerScope) Claims {
	c := Claims{Role: string(identity.Role)}
	c.Subject = identity.UserID
	switch identity.Role {
	case scope.RolePartner:
		c.WhiteLabelIDs = append([]int64(nil), identity.TenantIDs...)
	case scope.RoleSubpartner:
		if identity.TenantID != nil {
			tenant := *identity.TenantID
			c.WhiteLabelID = &tenant
		}
		if identity.TrackerConstraint != nil {
			c.Tracker = *identity.TrackerConstraint
		}
	}
	return c
}

// TokenConfig holds configuration for token signing and verification.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Generator signs and verifies HS256 tokens.
type Generator struct {
	config TokenConfig
}

// NewGenerator creates a new token generator.
func NewGenerator(config TokenConfig) (*Generator, error) {
	if config.Secret == "" {
		return nil, ErrEmptySecret
	}
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}
	return &Generator{config: config}, nil
}

// GenerateToken signs a token for identity and returns it with its expiry.
func (g *Generator) GenerateToken(identity scope.CallerScope) (string, time.Time, error) {
	if identity.UserID == "" {
		return "", time.Time{}, ErrEmptyUserID
	}

	now := time.Now()
	expiresAt := now.Add(g.config.TTL)

	claims := ClaimsFor(identity)
	claims.ID = uuid.New().String()
	claims.Issuer = g.config.Issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(g.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and validates a token string.
func (g *Generator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if g.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.config.Secret), nil
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
	return claims, nil
}

// Authenticate validates tokenString and returns the caller it describes.
func (g *Generator) Authenticate(tokenString string) (scope.CallerScope, error) {
	claims, err := g.ValidateToken(tokenString)
	if err != nil {
		return scope.CallerScope{}, err
	}
	return claims.CallerScope()
}
