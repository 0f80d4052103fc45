package auth

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStepFor(t *testing.T) {
	step, err := NextStepFor(ProviderLocal, "abc", ActionAuth)
	require.NoError(t, err)
	assert.Equal(t, NextStep{
		Method: "POST",
		Path:   "/security/auth/local/check/abc",
		Params: []string{"email", "password"},
	}, step)

	step, err = NextStepFor(ProviderLocal, "abc", ActionResetPassword)
	require.NoError(t, err)
	assert.Equal(t, "/security/reset_password/local/check/abc", step.Path)

	for _, provider := range []Provider{ProviderGoogle, ProviderGitHub, ProviderMicrosoft, "ldap"} {
		_, err := NextStepFor(provider, "abc", ActionAuth)
		assert.ErrorIs(t, err, ErrUnsupportedProvider, string(provider))
	}
}

func TestTwoFactorStep(t *testing.T) {
	step := twoFactorStep("abc")
	assert.Equal(t, "/security/auth/local/2fa/abc", step.Path)
	assert.Equal(t, []string{"code"}, step.Params)
}

func TestTTLFor(t *testing.T) {
	assert.Equal(t, 5*time.Minute, TTLFor(ActionLogin))
	assert.Equal(t, 5*time.Minute, TTLFor(ActionAuth))
	assert.Equal(t, 3*time.Minute, TTLFor(ActionResetPassword))
}

func TestTOTPVerifier(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "security-service", AccountName: testEmail})
	require.NoError(t, err)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	verifier := TOTPVerifier{}
	assert.True(t, verifier.Verify(code, key.Secret()))
	assert.False(t, verifier.Verify("", key.Secret()))
	assert.False(t, verifier.Verify(code, ""))
}

func TestAttemptTracker(t *testing.T) {
	dir := newMemoryDirectory()
	dir.addUser(User{ID: testUserID, Email: testEmail, Active: false})
	tracker := NewAttemptTracker(dir, dir)
	ctx := t.Context()

	for want := int64(1); want <= 3; want++ {
		got, err := tracker.Increment(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.False(t, tracker.Locked(4))
	assert.True(t, tracker.Locked(5))

	require.NoError(t, tracker.Reset(ctx, testUserID))
	count, err := tracker.Count(ctx, testUserID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, dir.user(testUserID).Active)
}
