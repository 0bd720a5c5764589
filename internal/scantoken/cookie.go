// Package scantoken implements the renewable credential a phone holds
// after consuming its one-time scan token: a compact signed payload set
// as a cookie so follow-up uploads don't re-present the token.
package scantoken

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

// ErrInvalid covers every verification failure: bad shape, bad
// signature, expired. Callers treat them all the same.
var ErrInvalid = errors.New("invalid scan credential")

// Payload is what the cookie asserts. Wire format:
// base64(json-payload) + "." + hex(hmac-sha256).
type Payload struct {
	UserID         int64     `json:"user_id"`
	OrganizationID int64     `json:"organization_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Sign serializes and signs the payload.
func Sign(p Payload, secret []byte) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	sig := hex.EncodeToString(mac.Sum(nil))
	return base64.RawURLEncoding.EncodeToString(data) + "." + sig, nil
}

// Verify recomputes the HMAC, compares in constant time, then checks
// the embedded expiry against now.
func Verify(value string, secret []byte, now time.Time) (*Payload, error) {
	encoded, sig, ok := strings.Cut(value, ".")
	if !ok {
		return nil, ErrInvalid
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalid
	}
	wantSig, err := hex.DecodeString(sig)
	if err != nil {
		return nil, ErrInvalid
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	if !hmac.Equal(mac.Sum(nil), wantSig) {
		return nil, ErrInvalid
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrInvalid
	}
	if !p.ExpiresAt.After(now) {
		return nil, ErrInvalid
	}
	return &p, nil
}
