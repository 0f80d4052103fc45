package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// clockSkew is how far in the future a token timestamp may lie, for instances
// whose clocks disagree slightly.
const clockSkew = 5 * time.Second

// Service mints and verifies stateless CSRF tokens of the form
// hex(HMAC-SHA256(secret, userID + "-" + unixMillis)) + "." + unixMillis.
//
// Nothing is stored server side, so a token cannot be revoked before its
// expiration window elapses.
type Service struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

func NewService(secret string, expiration time.Duration) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("csrf secret is required")
	}
	if expiration <= 0 {
		return nil, errors.New("csrf token expiration must be positive")
	}

	return &Service{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}, nil
}

func (s *Service) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Generate(userID string) string {
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)
	return s.sign(userID, timestamp) + "." + timestamp
}

// Validate reports whether token was minted for userID and is still inside the
// expiration window. Malformed input yields false.
func (s *Service) Validate(token, userID string) bool {
	hash, timestamp, ok := strings.Cut(token, ".")
	if !ok || hash == "" || timestamp == "" || strings.Contains(timestamp, ".") {
		return false
	}

	issuedAt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || issuedAt < 0 {
		return false
	}

	age := s.now().UnixMilli() - issuedAt
	if age < -clockSkew.Milliseconds() || age > s.expiration.Milliseconds() {
		return false
	}

	presented, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(s.sign(userID, timestamp))

	return hmac.Equal(presented, expected)
}

func (s *Service) sign(userID, timestamp string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(userID + "-" + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}
