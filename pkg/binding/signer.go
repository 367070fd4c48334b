package binding

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var (
	// ErrNoSecret is returned when a signer is built without a secret.
	ErrNoSecret = errors.New("binding: empty signing secret")

	// ErrInvalidSignature is returned for a token that was not produced by
	// the signer or was altered.
	ErrInvalidSignature = errors.New("binding: invalid token signature")
)

// Signer turns session keys into tamper-evident cookie tokens and back.
type Signer interface {
	Sign(key string) string
	Verify(token string) (string, error)
}

// HMACSigner signs keys with HMAC-SHA256.
// Token format: base64url(key) "." base64url(mac).
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner returns a signer using secret.
func NewHMACSigner(secret []byte) (*HMACSigner, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &HMACSigner{secret: s}, nil
}

func (s *HMACSigner) mac(payload []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write(payload)
	return h.Sum(nil)
}

// Sign returns the cookie token for key.
func (s *HMACSigner) Sign(key string) string {
	payload := []byte(key)
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(s.mac(payload))
}

// Verify returns the key carried by token.
func (s *HMACSigner) Verify(token string) (string, error) {
	encKey, encSig, ok := strings.Cut(token, ".")
	if !ok {
		return "", ErrInvalidSignature
	}
	payload, err := base64.RawURLEncoding.DecodeString(encKey)
	if err != nil {
		return "", ErrInvalidSignature
	}
	sig, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil {
		return "", ErrInvalidSignature
	}
	// Constant-time comparison
	if !hmac.Equal(sig, s.mac(payload)) {
		return "", ErrInvalidSignature
	}
	return string(payload), nil
}
