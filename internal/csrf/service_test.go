package csrf

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, window time.Duration) (*Service, *fakeClock) {
	t.Helper()
	svc, err := NewService("test-secret", window)
	require.NoError(t, err)
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	svc.WithClock(clock.Now)
	return svc, clock
}

func TestNewServiceValidatesConfig(t *testing.T) {
	_, err := NewService("", time.Minute)
	assert.Error(t, err)

	_, err = NewService("secret", 0)
	assert.Error(t, err)
}

func TestGenerateFormat(t *testing.T) {
	svc, _ := newTestService(t, time.Minute)

	token := svc.Generate("user-1")
	hash, timestamp, ok := strings.Cut(token, ".")
	require.True(t, ok)
	assert.Len(t, hash, 64)
	assert.Equal(t, "1700000000000", timestamp)
}

func TestValidateRoundTrip(t *testing.T) {
	svc, clock := newTestService(t, time.Minute)

	token := svc.Generate("user-1")
	assert.True(t, svc.Validate(token, "user-1"))

	clock.now = clock.now.Add(time.Minute)
	assert.True(t, svc.Validate(token, "user-1"), "window is inclusive")

	clock.now = clock.now.Add(time.Millisecond)
	assert.False(t, svc.Validate(token, "user-1"))
}

func TestValidateRejectsOtherUser(t *testing.T) {
	svc, _ := newTestService(t, time.Minute)

	token := svc.Generate("user-1")
	assert.False(t, svc.Validate(token, "user-2"))
	assert.False(t, svc.Validate(token, ""))
}

func TestValidateRejectsOtherSecret(t *testing.T) {
	svc, clock := newTestService(t, time.Minute)
	other, err := NewService("another-secret", time.Minute)
	require.NoError(t, err)
	other.WithClock(clock.Now)

	assert.False(t, svc.Validate(other.Generate("user-1"), "user-1"))
}

func TestValidateMalformedInput(t *testing.T) {
	svc, _ := newTestService(t, time.Minute)
	valid := svc.Generate("user-1")
	hash, timestamp, _ := strings.Cut(valid, ".")

	cases := map[string]string{
		"empty":              "",
		"no separator":       hash + timestamp,
		"non numeric":        hash + ".abc",
		"empty hash":         "." + timestamp,
		"empty timestamp":    hash + ".",
		"extra segment":      valid + ".1",
		"non hex hash":       strings.Repeat("z", 64) + "." + timestamp,
		"truncated hash":     hash[:10] + "." + timestamp,
		"negative timestamp": hash + ".-1",
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, svc.Validate(token, "user-1"))
			})
		})
	}
}

func TestValidateToleratesClockSkew(t *testing.T) {
	svc, clock := newTestService(t, time.Minute)
	start := clock.now

	clock.now = start.Add(time.Second)
	token := svc.Generate("user-1")
	clock.now = start
	assert.True(t, svc.Validate(token, "user-1"))

	clock.now = start.Add(time.Minute)
	token = svc.Generate("user-1")
	clock.now = start
	assert.False(t, svc.Validate(token, "user-1"))
}
