package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueAdminToken signs a short-lived bearer token accepted by AdminMiddleware.
func IssueAdminToken(jwtSecret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if jwtSecret == "" {
		return "", errors.New("admin jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"typ": AdminTokenType,
	}
	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return encoded, nil
}
