package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token classes carried in the "type" claim
const (
	TokenClassAccess  = "access"
	TokenClassRefresh = "refresh"
)

// TokenClaims is the JWT payload for both token classes
type TokenClaims struct {
	Type  string                 `json:"type"`
	Email string                 `json:"email"`
	Role  string                 `json:"role"`
	Extra map[string]interface{} `json:"extra,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair bundles a freshly issued access + refresh token
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
}

// TokenData is the verified content of a token handed back to callers
type TokenData struct {
	UserID    string
	Email     string
	Role      string
	TokenType string
	JTI       string
	ExpiresAt time.Time
	IssuedAt  time.Time
}
