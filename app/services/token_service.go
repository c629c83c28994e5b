// Package services provides external service integrations and technical concerns like token validation
package services

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token validation error constants. Every verification failure maps onto
// exactly one of these; none of them carries signature material.
var (
	ErrVerifierUnconfigured = errors.New("no verification key configured")
	ErrTokenExpired         = errors.New("token has expired")
	ErrTokenBadSignature    = errors.New("token signature verification failed")
	ErrTokenUnsupportedAlg  = errors.New("token signed with unsupported algorithm")
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrTokenMissingClaims   = errors.New("token is missing required claims")
	ErrTokenInvalid         = errors.New("invalid token")
)

// TokenService validates bearer tokens issued by the external identity
// service. This is the resource-server half of the pattern: the identity
// service signs with its private key, we verify with the shared public key.
type TokenService interface {
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims carries the identity claims consumed from a validated token.
type TokenClaims struct {
	Email     string    `json:"email"`
	Subject   string    `json:"subject"` // identity-service subject or explicit uuid claim
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	publicKey *rsa.PublicKey
	issuer    string
	audience  string
}

// NewTokenService creates a resource-server token validator. An empty
// publicKeyPEM yields a verifier with no key: it boots but rejects every
// token with ErrVerifierUnconfigured. Absence of a key never means "allow".
func NewTokenService(publicKeyPEM, issuer, audience string) (TokenService, error) {
	var publicKey *rsa.PublicKey
	if publicKeyPEM != "" {
		var err error
		publicKey, err = parseRSAPublicKey(publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse verification key: %w", err)
		}
	}

	return &TokenServiceImpl{
		publicKey: publicKey,
		issuer:    issuer,
		audience:  audience,
	}, nil
}

// parseRSAPublicKey parses an RSA public key from PEM format
func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode public key PEM")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPublicKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}

	return rsaPublicKey, nil
}

// ValidateToken verifies signature, issuer, audience, and expiry, then
// extracts the identity claims. Each failure branch terminates in one of the
// sentinel errors above.
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	if s.publicKey == nil {
		return nil, ErrVerifierUnconfigured
	}

	// The signing method is checked in the keyfunc rather than with
	// WithValidMethods so that a wrong algorithm is reported as such instead
	// of as a signature failure.
	parsedToken, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
				return nil, ErrTokenUnsupportedAlg
			}
			return s.publicKey, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, ErrTokenUnsupportedAlg):
			return nil, ErrTokenUnsupportedAlg
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenBadSignature
		default:
			return nil, ErrTokenInvalid
		}
	}
	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	// Email is the platform-wide identity key; a token without it cannot be
	// resolved to a local user.
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil, ErrTokenMissingClaims
	}

	// The identity service puts the stable subject in "uuid" (explicit) or
	// "sub" (standard). Optional; the email alone is sufficient.
	subject, _ := claims["uuid"].(string)
	if subject == "" {
		subject, _ = claims["sub"].(string)
	}

	result := &TokenClaims{
		Email:   email,
		Subject: subject,
	}
	if iat, ok := claims["iat"].(float64); ok {
		result.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	if exp, ok := claims["exp"].(float64); ok {
		result.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}

	return result, nil
}
