package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "numerus/internal/core/context"
)

// JWTConfig holds JWT validation configuration.
// Tokens are issued by the platform auth service; this service never signs
// user tokens, it only verifies them with the shared secret.
type JWTConfig struct {
	Secret string
	Issuer string
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret: secret,
		Issuer: "numerus-auth",
	}
}

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID       string   `json:"uid"`
	TenantID     string   `json:"tid"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
	Permissions  []string `json:"perms,omitempty"`
	WorkspaceIDs []string `json:"wks,omitempty"`
	IsAdmin      bool     `json:"adm,omitempty"`
}

// TokenValidator validates bearer tokens for the HTTP middleware.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// JWTValidator verifies HS256 tokens issued by the auth collaborator.
type JWTValidator struct {
	config JWTConfig
}

// NewJWTValidator creates a new JWT validator.
func NewJWTValidator(config JWTConfig) *JWTValidator {
	return &JWTValidator{config: config}
}

// ValidateToken validates JWT and returns user context.
func (s *JWTValidator) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if s.config.Issuer != "" && claims.Issuer != s.config.Issuer {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}

	return &appctx.UserContext{
		UserID:       claims.UserID,
		TenantID:     claims.TenantID,
		Email:        claims.Email,
		Roles:        claims.Roles,
		Permissions:  claims.Permissions,
		WorkspaceIDs: claims.WorkspaceIDs,
		IsAdmin:      claims.IsAdmin,
	}, nil
}

// SignToken mints a token with the validator's secret. Test helper: the
// real issuer lives in the auth service, but tests and the seed CLI need
// tokens that pass validation.
func (s *JWTValidator) SignToken(user *appctx.UserContext, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:       user.UserID,
		TenantID:     user.TenantID,
		Email:        user.Email,
		Roles:        user.Roles,
		Permissions:  user.Permissions,
		WorkspaceIDs: user.WorkspaceIDs,
		IsAdmin:      user.IsAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
