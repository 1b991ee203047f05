// Package auth verifies the HS256 access tokens issued by the campus identity
// service. Issue exists for tooling and tests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
)

const clockSkew = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

// Tokens signs and verifies access tokens for one issuer.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

func NewTokens(cfg config.JWTConfig) (*Tokens, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("auth: CAMPUSCART_JWT_SECRET is required")
	case cfg.Issuer == "":
		return nil, errors.New("auth: CAMPUSCART_JWT_ISSUER is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, fmt.Errorf("auth: token lifetime must be positive, got %d minutes", cfg.ExpirationMinutes)
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(clockSkew),
		),
	}, nil
}

// Issue signs a token for userID valid from now for the configured lifetime.
func (t *Tokens) Issue(now time.Time, userID uuid.UUID, role enums.UserRole) (string, error) {
	if userID == uuid.Nil {
		return "", errors.New("auth: user id is required")
	}
	if !role.IsValid() {
		return "", fmt.Errorf("auth: unknown role %q", role)
	}
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(signingMethod, claims).SignedString(t.secret)
}

// Verify checks the signature and the registered claims. Failures come back
// as CodeUnauthorized with an expired or invalid message.
func (t *Tokens) Verify(raw string) (Identity, error) {
	var claims Claims
	_, err := t.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token expired")
	case err != nil:
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token subject is not a user id")
	}
	if !claims.Role.IsValid() {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token role is not recognised")
	}
	return Identity{UserID: userID, Role: claims.Role, TokenID: claims.ID}, nil
}
