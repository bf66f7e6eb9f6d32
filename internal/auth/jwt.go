// Package auth acquires the two credentials a provisioning request needs.
//
// TWO CREDENTIALS, TWO LIFETIMES:
//  1. The GitHub App credential (this file + installation.go). The app signs a
//     short JWT with its private key, trades it for an installation access
//     token scoped to the challenge organization, and uses that token for the
//     administrative calls (create repo, invite collaborator).
//  2. The visitor's OAuth token (oauth.go). It proves who the visitor is, is
//     used for exactly one identity read, and is revoked straight after.
//
// The two never share a cache or an http.Client. The user token is never
// allowed near the administrative calls, and the installation token is never
// used to read user identity.
//
// APP JWT STRUCTURE:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"RS256","typ":"JWT"}
//	- Payload: {"iat":<now-60s>,"exp":<now+9m>,"iss":"<app id>"}
//	- Signature: RSA-SHA256 with the app's private key
//
// GitHub verifies the signature with the public half it holds for the app.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// clockSkew backdates "iat" so a server clock slightly ahead of GitHub's
	// doesn't produce a token that is "issued in the future".
	clockSkew = 60 * time.Second

	// appTokenTTL stays under GitHub's 10 minute ceiling for app JWTs.
	appTokenTTL = 9 * time.Minute
)

// AppTokenService signs GitHub App JWTs.
//
// It holds the parsed RSA key so each request only pays for the signature,
// not for PEM parsing. The JWT itself is minted per call and never stored.
type AppTokenService struct {
	appID int64
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewAppTokenService parses pemKey and returns a signer for appID.
// A bad key is reported here, at startup, not on the first request.
func NewAppTokenService(appID int64, pemKey []byte) (*AppTokenService, error) {
	if appID <= 0 {
		return nil, errors.New("auth: GitHub App ID must be positive")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing GitHub App private key: %w", err)
	}

	return &AppTokenService{appID: appID, key: key, now: time.Now}, nil
}

// Generate creates and signs a new app JWT.
func (s *AppTokenService) Generate() (string, error) {
	return s.GenerateWithDuration(appTokenTTL)
}

// GenerateWithDuration creates an app JWT that expires d after now.
// Used in tests to produce expired tokens.
func (s *AppTokenService) GenerateWithDuration(d time.Duration) (string, error) {
	now := s.now()

	c := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(s.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-clockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: signing app token: %w", err)
	}

	return signed, nil
}
