package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_CanSendOTP(t *testing.T) {
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	u := &User{}

	for i := 0; i < 5; i++ {
		assert.True(t, u.CanSendOTP(clock, 5, time.Hour), "send %d", i+1)
		u.RecordOTPSent("1234", clock, 10*time.Minute)
		clock = clock.Add(time.Minute)
	}

	assert.False(t, u.CanSendOTP(clock, 5, time.Hour), "sixth send inside the window")

	// the window runs from the last send
	clock = clock.Add(59 * time.Minute)
	assert.False(t, u.CanSendOTP(clock, 5, time.Hour))

	clock = clock.Add(2 * time.Minute)
	assert.True(t, u.CanSendOTP(clock, 5, time.Hour))
	assert.Equal(t, 0, u.OTPAttempts)
}

func TestUser_CheckOTP(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("valid code", func(t *testing.T) {
		u := &User{}
		u.RecordOTPSent("4821", now, 10*time.Minute)
		assert.NoError(t, u.CheckOTP("4821", now.Add(9*time.Minute)))
	})

	t.Run("mismatch", func(t *testing.T) {
		u := &User{}
		u.RecordOTPSent("4821", now, 10*time.Minute)
		assert.ErrorIs(t, u.CheckOTP("1111", now), ErrInvalidOTP)
	})

	t.Run("expired", func(t *testing.T) {
		u := &User{}
		u.RecordOTPSent("4821", now, 10*time.Minute)
		assert.ErrorIs(t, u.CheckOTP("4821", now.Add(11*time.Minute)), ErrOTPExpired)
	})

	t.Run("cleared code cannot be reused", func(t *testing.T) {
		u := &User{}
		u.RecordOTPSent("4821", now, 10*time.Minute)
		assert.NoError(t, u.CheckOTP("4821", now))
		u.ClearOTP()
		assert.ErrorIs(t, u.CheckOTP("4821", now), ErrInvalidOTP)
	})
}
