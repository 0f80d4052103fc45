package auth

import "github.com/pquerna/otp/totp"

type TOTPVerifier struct{}

func (TOTPVerifier) Verify(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}
