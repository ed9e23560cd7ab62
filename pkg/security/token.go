package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// TokenSigner mints and verifies the signed email tokens that gate
// subscription self-service. There are no customer accounts; the token
// in the emailed manage link is the whole credential.
type TokenSigner struct {
	secret       []byte
	timeProvider func() time.Time
}

func NewTokenSigner(secret string) (*TokenSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret is required")
	}
	return &TokenSigner{
		secret:       []byte(secret),
		timeProvider: time.Now,
	}, nil
}

// Sign returns a token binding the email until the TTL elapses.
func (s *TokenSigner) Sign(email string, ttl time.Duration) string {
	email = normalize(email)
	expires := s.timeProvider().Add(ttl).Unix()
	payload := fmt.Sprintf("%s|%d", email, expires)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + s.signature(payload)
}

// Verify checks the signature and expiry and returns the bound email.
func (s *TokenSigner) Verify(token string) (string, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", ErrTokenInvalid
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrTokenInvalid
	}
	payload := string(raw)

	if !hmac.Equal([]byte(s.signature(payload)), []byte(parts[1])) {
		return "", ErrTokenInvalid
	}

	fields := strings.SplitN(payload, "|", 2)
	if len(fields) != 2 {
		return "", ErrTokenInvalid
	}
	expires, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", ErrTokenInvalid
	}
	if s.timeProvider().Unix() > expires {
		return "", ErrTokenExpired
	}
	return fields[0], nil
}

func (s *TokenSigner) signature(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
