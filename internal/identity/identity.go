// Package identity validates the bearer tokens the external identity
// provider issues. The core trusts the holder ID and display name carried in
// the claims as-is; credential verification happens upstream.
package identity

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
)

// Claims are the token claims the lending service consumes.
type Claims struct {
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// HolderID parses the token subject as the holder's integer ID.
func (c *Claims) HolderID() (id.HolderID, error) {
	return id.ParseHolderID(c.Subject)
}

// Validator checks HMAC-signed bearer tokens.
type Validator struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewValidator(signingKey, issuer, audience string) *Validator {
	return &Validator{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// ValidateToken parses and verifies a bearer token and returns its claims.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithAudience(v.audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if _, err := claims.HolderID(); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return claims, nil
}

// GenerateToken mints a token for a holder. The dev profile and tests use it;
// production tokens come from the identity provider.
func (v *Validator) GenerateToken(holderID id.HolderID, displayName string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(holderID.Int64(), 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    v.issuer,
			Audience:  []string{v.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(v.signingKey)
}
