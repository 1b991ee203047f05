package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/enums"
)

// Claims is the access token body. The subject carries the user id.
type Claims struct {
	Role enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified caller behind a token.
type Identity struct {
	UserID  uuid.UUID
	Role    enums.UserRole
	TokenID string
}
