// Package token signs and verifies the short-lived capability tokens that
// back unauthenticated unsubscribe links. A token grants exactly one
// action for one contact; validity is purely a function of signature and
// expiry at verification time, with no stored lifecycle.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrFormat means the token did not decode into payload + signature.
	ErrFormat = errors.New("token: invalid format")
	// ErrSignature means the MAC did not match the payload.
	ErrSignature = errors.New("token: invalid signature")
	// ErrPayload means required payload fields were missing.
	ErrPayload = errors.New("token: invalid payload")
	// ErrExpired means the token was valid but its lifetime has passed.
	ErrExpired = errors.New("token: expired")
)

// Payload is the single capability a token grants: suppress email for one
// contact until the expiry instant.
type Payload struct {
	ContactID string `json:"contactId"`
	ExpiresAt int64  `json:"exp"`
}

// Codec signs and verifies capability tokens with a server-held secret.
// The zero value is unusable; construct with NewCodec.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source. Only intended for test use.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec constructs a Codec over the given secret.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	c := &Codec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign serializes the payload, MACs it, and wraps the pair in an opaque
// URL-safe string.
func (c *Codec) Sign(payload Payload) (string, error) {
	if strings.TrimSpace(payload.ContactID) == "" {
		return "", fmt.Errorf("%w: contact id is required", ErrPayload)
	}
	if payload.ExpiresAt <= 0 {
		return "", fmt.Errorf("%w: expiry is required", ErrPayload)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	encodedPayload := base64.RawURLEncoding.EncodeToString(data)
	signature := c.mac(encodedPayload)
	combined := encodedPayload + "." + signature
	return base64.RawURLEncoding.EncodeToString([]byte(combined)), nil
}

// Verify checks signature and expiry and returns the payload. Every
// failure rejects the token in full; a token is never partially trusted.
// Decoding is strict so a mutated trailing character cannot alias the
// original token.
func (c *Codec) Verify(tok string) (Payload, error) {
	raw, err := base64.RawURLEncoding.Strict().DecodeString(strings.TrimSpace(tok))
	if err != nil {
		return Payload{}, ErrFormat
	}
	parts := strings.Split(string(raw), ".")
	if len(parts) != 2 {
		return Payload{}, ErrFormat
	}
	encodedPayload, signature := parts[0], parts[1]

	expected := c.mac(encodedPayload)
	// Constant-time compare; a short-circuiting equality check would leak
	// how much of the signature matched.
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return Payload{}, ErrSignature
	}

	decoded, err := base64.RawURLEncoding.Strict().DecodeString(encodedPayload)
	if err != nil {
		return Payload{}, ErrPayload
	}
	var payload Payload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return Payload{}, ErrPayload
	}
	if strings.TrimSpace(payload.ContactID) == "" || payload.ExpiresAt == 0 {
		return Payload{}, ErrPayload
	}
	if c.now().UnixMilli() > payload.ExpiresAt {
		return Payload{}, ErrExpired
	}
	return payload, nil
}

func (c *Codec) mac(encodedPayload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encodedPayload))
	return hex.EncodeToString(mac.Sum(nil))
}
