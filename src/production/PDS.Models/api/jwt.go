package api_models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Config holds JWT configuration
type Config struct {
	SecretKey string
	Issuer    string
}

// AccessClaims represents the JWT claims presented by the end-user client
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID  string `json:"user_id,omitempty"`
	Role    string `json:"role,omitempty"`
	TokenID string `json:"token_id,omitempty"`
}

// Owner returns the user id the token speaks for. Tokens minted by the
// external identity provider only carry "sub".
func (c *AccessClaims) Owner() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}
