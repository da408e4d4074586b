// ABOUTME: JWT credential verification producing a request Identity
// ABOUTME: Uses HS256 signing with a configurable secret

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential errors
var (
	ErrCredentialMissing = errors.New("authentication required")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("credential expired")
	ErrMissingClaim      = errors.New("missing required claim")
)

// Verifier turns an opaque credential into a verified Identity.
type Verifier interface {
	Verify(credential string) (*Identity, error)
}

// JWTVerifier implements Verifier using HS256 signed JWTs.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the credential and builds an Identity from its claims.
// The "sub" claim is required. The "role" claim defaults to guest. When the
// token carries no "scopes" claim, the role's default scope set is applied.
func (v *JWTVerifier) Verify(credential string) (*Identity, error) {
	if credential == "" {
		return nil, ErrCredentialMissing
	}

	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredential
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	role := RoleGuest
	if r, ok := claims["role"].(string); ok && r != "" {
		role = Role(r)
	}

	scopes := claimScopes(claims)
	if scopes == nil {
		scopes = DefaultScopes(role)
	}

	return &Identity{
		Actor:      sub,
		Role:       role,
		Scopes:     scopes,
		Credential: credential,
	}, nil
}

// claimScopes extracts the "scopes" claim as a string slice. Returns nil
// when the claim is absent or holds no usable values.
func claimScopes(claims jwt.MapClaims) []string {
	raw, ok := claims["scopes"].([]interface{})
	if !ok {
		return nil
	}
	var scopes []string
	for _, s := range raw {
		if str, ok := s.(string); ok && str != "" {
			scopes = append(scopes, str)
		}
	}
	return scopes
}

// Generate creates a signed JWT for the given actor with expiration.
// Scopes may be nil, in which case verifiers fall back to the role default.
func (v *JWTVerifier) Generate(actor string, role Role, scopes []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  actor,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(expiresIn).Unix(),
	}
	if scopes != nil {
		claims["scopes"] = scopes
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
