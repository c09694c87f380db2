package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("jwtx: invalid token")

// Sessions signs and verifies session tokens with a single Ed25519 keypair.
// Sessions are only ever consumed by this service, so there is no key
// distribution concern and one keypair with restart-invalidation is enough.
type Sessions struct {
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

// NewSessions creates a session signer from a PKCS8 PEM Ed25519 private key.
func NewSessions(pemKey []byte) (*Sessions, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for Ed25519 key")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (Ed25519 requires PKCS8)", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an Ed25519 private key")
	}

	return &Sessions{key: key, pub: key.Public().(ed25519.PublicKey)}, nil
}

// NewEphemeralSessions generates a fresh keypair. Existing sessions are
// invalidated on restart, which is acceptable for session tokens.
func NewEphemeralSessions() (*Sessions, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate Ed25519 key: %w", err)
	}
	return &Sessions{key: key, pub: key.Public().(ed25519.PublicKey)}, nil
}

// LoadOrGenerateSessions loads a PKCS8 PEM key from path, generating and
// persisting one when the file does not exist. An empty path returns an
// ephemeral keypair.
func LoadOrGenerateSessions(path string) (*Sessions, error) {
	if path == "" {
		return NewEphemeralSessions()
	}

	pemKey, err := os.ReadFile(path)
	if err == nil {
		return NewSessions(pemKey)
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate Ed25519 key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	pemKey = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, pemKey, 0600); err != nil {
		return nil, err
	}

	return &Sessions{key: key, pub: key.Public().(ed25519.PublicKey)}, nil
}

// Sign turns claims into a signed compact JWT.
func (s *Sessions) Sign(claims SessionClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
}

// Verify parses and validates a compact JWT, returning its claims.
func (s *Sessions) Verify(raw string) (SessionClaims, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodEdDSA.Alg() {
			return nil, fmt.Errorf("jwtx: unexpected signing method %q", t.Method.Alg())
		}
		return s.pub, nil
	})
	if err != nil {
		return SessionClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}
