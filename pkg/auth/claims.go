package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID  uuid.UUID
	StoreID *uuid.UUID
	JTI     string
}

// AccessTokenClaims represents the typed JWT the console's auth service issues.
// The metrics API only reads tokens; it never issues them outside of tests and tooling.
type AccessTokenClaims struct {
	UserID  uuid.UUID  `json:"user_id"`
	StoreID *uuid.UUID `json:"active_store_id,omitempty"`
	jwt.RegisteredClaims
}
