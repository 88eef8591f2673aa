// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sessions signs and verifies EdDSA session tokens whose "sub" claim is the
// user id.
type Sessions struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	// ttl of zero issues tokens without an exp claim.
	ttl time.Duration
	now func() time.Time
}

// ParseTokenExpireTime reads a TOKEN_EXPIRE_TIME value: "never", "0" or
// empty mean no expiry, anything else is a Go duration.
func ParseTokenExpireTime(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// NewSessions generates a fresh ed25519 key pair at runtime. Tokens do not
// survive a restart.
func NewSessions(ttl time.Duration) (*Sessions, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Sessions{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}, nil
}

// LoadSessions reads raw ed25519 private/public keys from file.
func LoadSessions(privatePath, publicPath string, ttl time.Duration) (*Sessions, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 key files have the wrong size")
	}
	return &Sessions{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Issue creates a signed token for userID.
func (s *Sessions) Issue(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
	}
	if s.ttl > 0 {
		claims["exp"] = now.Add(s.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// Verify checks the signature and expiry and returns the "sub" user id.
func (s *Sessions) Verify(tokenString string) (uuid.UUID, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}

	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, fmt.Errorf("missing sub in jwt")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid sub in jwt: %w", err)
	}
	return userID, nil
}
