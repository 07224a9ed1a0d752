package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/campaignwala/backend/internal/config"
	"github.com/campaignwala/backend/internal/models"
	"github.com/campaignwala/backend/internal/notify"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testCode = "4821"

type authFixture struct {
	svc    *AuthService
	db     sqlmock.Sqlmock
	redis  redismock.ClientMock
	mailer *MockMailer
	sms    *MockSMSSender
	hash   string
}

func testOTPConfig() *config.OTPConfig {
	return &config.OTPConfig{
		CodeLength:        4,
		CodeTTL:           10 * time.Minute,
		MaxSendsPerWindow: 5,
		RateLimitWindow:   time.Hour,
	}
}

func newAuthFixture(t *testing.T, otpCfg *config.OTPConfig) *authFixture {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rdb, redisMock := redismock.NewClientMock()

	hasher := NewPasswordHasher(testArgon2)
	hash, err := hasher.Hash("secret123")
	require.NoError(t, err)

	users := NewUserService(db, hasher, zap.NewNop())
	users.now = fixedClock
	tokens := NewTokenIssuer(config.JWTConfig{Secret: "test-secret", Expiry: 24 * time.Hour})
	tokens.now = fixedClock

	f := &authFixture{db: dbMock, redis: redisMock, mailer: &MockMailer{}, sms: &MockSMSSender{}, hash: hash}
	f.svc = NewAuthService(users, tokens, hasher, rdb, f.mailer, f.sms, otpCfg, zap.NewNop())
	f.svc.now = fixedClock
	f.svc.newCode = func() string { return testCode }
	return f
}

func (f *authFixture) expectUser(phone string, overrides map[string]driver.Value) {
	values := map[string]driver.Value{"phone_number": phone, "password": f.hash}
	for k, v := range overrides {
		values[k] = v
	}
	f.db.ExpectQuery("SELECT (.+) FROM users WHERE phone_number = \\$1").
		WithArgs(phone).
		WillReturnRows(userRows(values))
}

func (f *authFixture) expectNoUser(phone string) {
	f.db.ExpectQuery("SELECT (.+) FROM users WHERE phone_number = \\$1").
		WithArgs(phone).
		WillReturnRows(sqlmock.NewRows(userColumnNames))
}

func (f *authFixture) expectOTPSaved(code string, attempts int) {
	f.db.ExpectExec("UPDATE users SET email_otp = \\$1, email_otp_expires = \\$2, otp_attempts = \\$3, last_otp_sent = \\$4").
		WithArgs(code, fixedNow.Add(10*time.Minute), attempts, fixedNow, fixedNow, testHRUser).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func (f *authFixture) verify(t *testing.T) {
	t.Helper()
	assert.NoError(t, f.db.ExpectationsWereMet())
	assert.NoError(t, f.redis.ExpectationsWereMet())
	f.mailer.AssertExpectations(t)
	f.sms.AssertExpectations(t)
}

func TestAuthService_LoginStepOne(t *testing.T) {
	t.Run("user gets an email code", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", nil)
		f.mailer.On("SendOTP", mock.Anything, "priya@example.com", "Priya Sharma", testCode, notify.PurposeLogin).Return(nil)
		f.expectOTPSaved(testCode, 1)

		result, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123"})
		require.NoError(t, err)
		require.NotNil(t, result.Challenge)
		assert.Nil(t, result.Session)
		assert.Equal(t, "email", result.Challenge.OTPType)
		assert.Equal(t, "p****@example.com", result.Challenge.Email)
		assert.Empty(t, result.Challenge.OTP)
		f.verify(t)
	})

	t.Run("user without email", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", map[string]driver.Value{"email": ""})

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123"})
		assert.ErrorIs(t, err, ErrNoEmailConfigured)
		f.verify(t)
	})

	t.Run("email failure aborts", func(t *testing.T) {
		cfg := testOTPConfig()
		cfg.AllowStaticFallback, cfg.StaticCode = true, "1234"
		f := newAuthFixture(t, cfg)
		f.expectUser("9876543210", nil)
		f.mailer.On("SendOTP", mock.Anything, "priya@example.com", "Priya Sharma", testCode, notify.PurposeLogin).
			Return(errors.New("smtp: 535 authentication failed"))

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123"})
		assert.ErrorIs(t, err, ErrOTPDeliveryFailed)
		assert.Equal(t, 502, StatusFor(err))
		f.verify(t)
	})

	t.Run("admin sms failure without fallback", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", map[string]driver.Value{"role": "admin"})
		f.sms.On("SendOTP", mock.Anything, "9876543210", testCode).Return(errors.New("gateway timeout"))

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123"})
		assert.ErrorIs(t, err, ErrOTPDeliveryFailed)
		f.verify(t)
	})

	t.Run("admin sms failure with static fallback", func(t *testing.T) {
		cfg := testOTPConfig()
		cfg.AllowStaticFallback, cfg.StaticCode = true, "1234"
		f := newAuthFixture(t, cfg)
		f.expectUser("9876543210", map[string]driver.Value{"role": "admin"})
		f.sms.On("SendOTP", mock.Anything, "9876543210", testCode).Return(errors.New("gateway timeout"))
		f.expectOTPSaved("1234", 1)

		result, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123"})
		require.NoError(t, err)
		assert.Equal(t, "sms", result.Challenge.OTPType)
		assert.Equal(t, "1234", result.Challenge.OTP)
		f.verify(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", nil)

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "nope"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		f.verify(t)
	})

	t.Run("unknown phone looks like a wrong password", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectNoUser("9000000000")

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9000000000", Password: "secret123"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("deactivated account is refused like bad credentials", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", map[string]driver.Value{"is_active": false})

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, 401, StatusFor(err))
		f.verify(t)
	})
}

func TestAuthService_LoginRateLimit(t *testing.T) {
	t.Run("sixth send within the hour", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", map[string]driver.Value{
			"otp_attempts": 5, "last_otp_sent": fixedNow.Add(-10 * time.Minute),
		})

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123"})
		assert.ErrorIs(t, err, ErrTooManyOTPRequests)
		assert.Equal(t, 429, StatusFor(err))
		f.verify(t)
	})

	t.Run("counter starts over after the window", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", map[string]driver.Value{
			"otp_attempts": 5, "last_otp_sent": fixedNow.Add(-61 * time.Minute),
		})
		f.mailer.On("SendOTP", mock.Anything, "priya@example.com", "Priya Sharma", testCode, notify.PurposeLogin).Return(nil)
		f.expectOTPSaved(testCode, 1)

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123"})
		require.NoError(t, err)
		f.verify(t)
	})

	t.Run("failed delivery is not counted", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", map[string]driver.Value{
			"otp_attempts": 4, "last_otp_sent": fixedNow.Add(-time.Minute),
		})
		f.mailer.On("SendOTP", mock.Anything, mock.Anything, mock.Anything, testCode, notify.PurposeLogin).
			Return(errors.New("connection refused"))

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123"})
		assert.ErrorIs(t, err, ErrOTPDeliveryFailed)
		f.verify(t)
	})
}

func TestAuthService_LoginStepTwo(t *testing.T) {
	pending := map[string]driver.Value{
		"email_otp": testCode, "email_otp_expires": fixedNow.Add(5 * time.Minute), "otp_attempts": 1,
	}

	t.Run("valid code issues a token once", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", pending)
		f.db.ExpectExec("UPDATE users SET email_otp = '', email_otp_expires = NULL").
			WithArgs(fixedNow, testHRUser, testCode).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123", OTP: testCode})
		require.NoError(t, err)
		require.NotNil(t, result.Session)
		assert.NotEmpty(t, result.Session.Token)
		assert.Empty(t, result.Session.User.OTP)

		claims, err := f.svc.tokens.Parse(result.Session.Token)
		require.NoError(t, err)
		assert.Equal(t, testHRUser, claims.UserID)

		// the stored code is gone, so the same code fails on replay
		f.expectUser("9876543210", nil)
		_, err = f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123", OTP: testCode})
		assert.ErrorIs(t, err, models.ErrInvalidOTP)
		f.verify(t)
	})

	t.Run("lost race on consume", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", pending)
		f.db.ExpectExec("UPDATE users SET email_otp = ''").WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123", OTP: testCode})
		assert.ErrorIs(t, err, models.ErrInvalidOTP)
		f.verify(t)
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", pending)

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123", OTP: "0000"})
		assert.ErrorIs(t, err, models.ErrInvalidOTP)
		f.verify(t)
	})

	t.Run("expired code is cleared", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", map[string]driver.Value{
			"email_otp": testCode, "email_otp_expires": fixedNow.Add(-time.Minute),
		})
		f.db.ExpectExec("UPDATE users SET email_otp = '', email_otp_expires = NULL WHERE id = \\$1").
			WithArgs(testHRUser).
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := f.svc.Login(context.Background(), LoginRequest{PhoneNumber: "9876543210", Password: "secret123", OTP: testCode})
		assert.ErrorIs(t, err, models.ErrOTPExpired)
		f.verify(t)
	})
}

func TestAuthService_ChangePassword(t *testing.T) {
	expectByID := func(f *authFixture, overrides map[string]driver.Value) {
		values := map[string]driver.Value{"password": f.hash}
		for k, v := range overrides {
			values[k] = v
		}
		f.db.ExpectQuery("SELECT (.+) FROM users WHERE id::text = \\$1").
			WithArgs(testHRUser).
			WillReturnRows(userRows(values))
	}

	t.Run("step one sends an email code", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		expectByID(f, nil)
		f.mailer.On("SendOTP", mock.Anything, "priya@example.com", "Priya Sharma", testCode, notify.PurposeChangePassword).Return(nil)
		f.expectOTPSaved(testCode, 1)

		result, err := f.svc.ChangePassword(context.Background(), testHRUser,
			ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "newsecret"})
		require.NoError(t, err)
		assert.False(t, result.Changed)
		require.NotNil(t, result.Challenge)
		f.verify(t)
	})

	t.Run("step two changes the password", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		expectByID(f, map[string]driver.Value{"email_otp": testCode, "email_otp_expires": fixedNow.Add(time.Minute)})
		f.db.ExpectExec("UPDATE users SET email_otp = ''").WillReturnResult(sqlmock.NewResult(0, 1))
		f.db.ExpectExec("UPDATE users SET password = \\$1").
			WithArgs(sqlmock.AnyArg(), fixedNow, testHRUser).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := f.svc.ChangePassword(context.Background(), testHRUser,
			ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "newsecret", OTP: testCode})
		require.NoError(t, err)
		assert.True(t, result.Changed)
		f.verify(t)
	})

	t.Run("no email changes directly", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		expectByID(f, map[string]driver.Value{"email": ""})
		f.db.ExpectExec("UPDATE users SET password = \\$1").WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := f.svc.ChangePassword(context.Background(), testHRUser,
			ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "newsecret"})
		require.NoError(t, err)
		assert.True(t, result.Changed)
		f.verify(t)
	})

	t.Run("wrong current password", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		expectByID(f, nil)

		_, err := f.svc.ChangePassword(context.Background(), testHRUser,
			ChangePasswordRequest{CurrentPassword: "guess", NewPassword: "newsecret"})
		assert.ErrorIs(t, err, ErrCurrentPasswordIncorrect)
	})
}

func TestAuthService_SendOTP(t *testing.T) {
	t.Run("unknown number is counted in redis", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectNoUser("9123456780")
		f.redis.ExpectGet("otp:count:9123456780").RedisNil()
		f.sms.On("SendOTP", mock.Anything, "9123456780", testCode).Return(nil)
		f.redis.ExpectSet("otp:register:9123456780", testCode, 10*time.Minute).SetVal("OK")
		f.redis.ExpectIncr("otp:count:9123456780").SetVal(1)
		f.redis.ExpectExpire("otp:count:9123456780", time.Hour).SetVal(true)

		challenge, err := f.svc.SendOTP(context.Background(), "9123456780")
		require.NoError(t, err)
		assert.Equal(t, "9123456780", challenge.PhoneNumber)
		assert.Empty(t, challenge.OTP)
		f.verify(t)
	})

	t.Run("unknown number over the limit", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectNoUser("9123456780")
		f.redis.ExpectGet("otp:count:9123456780").SetVal("5")

		_, err := f.svc.SendOTP(context.Background(), "9123456780")
		assert.ErrorIs(t, err, ErrTooManyOTPRequests)
		f.verify(t)
	})

	t.Run("known user is counted on the record", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", map[string]driver.Value{"otp_attempts": 2, "last_otp_sent": fixedNow.Add(-time.Minute)})
		f.sms.On("SendOTP", mock.Anything, "9876543210", testCode).Return(nil)
		f.redis.ExpectSet("otp:register:9876543210", testCode, 10*time.Minute).SetVal("OK")
		f.db.ExpectExec("UPDATE users SET otp_attempts = \\$1, last_otp_sent = \\$2 WHERE id = \\$3").
			WithArgs(3, fixedNow, testHRUser).
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := f.svc.SendOTP(context.Background(), "9876543210")
		require.NoError(t, err)
		f.verify(t)
	})

	t.Run("sms failure without fallback stores nothing", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectNoUser("9123456780")
		f.redis.ExpectGet("otp:count:9123456780").RedisNil()
		f.sms.On("SendOTP", mock.Anything, "9123456780", testCode).Return(errors.New("gateway down"))

		_, err := f.svc.SendOTP(context.Background(), "9123456780")
		assert.ErrorIs(t, err, ErrOTPDeliveryFailed)
		f.verify(t)
	})
}

func TestAuthService_Register(t *testing.T) {
	req := RegisterRequest{
		PhoneNumber: "9123456780",
		OTP:         testCode,
		Name:        "Ravi Kumar",
		Email:       "ravi@example.com",
		Password:    "secret123",
	}

	t.Run("consumes the code and creates a verified user", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectNoUser("9123456780")
		f.redis.ExpectEvalSha(consumeCodeScript.Hash(), []string{"otp:register:9123456780"}, testCode).SetVal(int64(1))
		f.db.ExpectQuery("INSERT INTO users").
			WithArgs("9123456780", "Ravi Kumar", "ravi@example.com", sqlmock.AnyArg(), "user", true, fixedNow).
			WillReturnRows(userRows(map[string]driver.Value{"phone_number": "9123456780", "name": "Ravi Kumar"}))

		session, err := f.svc.Register(context.Background(), req)
		require.NoError(t, err)
		assert.NotEmpty(t, session.Token)
		assert.True(t, session.User.IsVerified)
		f.verify(t)
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectNoUser("9123456780")
		f.redis.ExpectEvalSha(consumeCodeScript.Hash(), []string{"otp:register:9123456780"}, testCode).SetVal(int64(0))

		_, err := f.svc.Register(context.Background(), req)
		assert.ErrorIs(t, err, models.ErrInvalidOTP)
		f.verify(t)
	})

	t.Run("no code on file", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectNoUser("9123456780")
		f.redis.ExpectEvalSha(consumeCodeScript.Hash(), []string{"otp:register:9123456780"}, testCode).SetVal(int64(-1))

		_, err := f.svc.Register(context.Background(), req)
		assert.ErrorIs(t, err, models.ErrOTPExpired)
	})

	t.Run("phone already registered", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9123456780", nil)

		_, err := f.svc.Register(context.Background(), req)
		assert.ErrorIs(t, err, ErrPhoneTaken)
		f.verify(t)
	})
}

func TestAuthService_ForgotAndResetPassword(t *testing.T) {
	t.Run("forgot password for unknown phone", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectNoUser("9000000000")

		_, err := f.svc.ForgotPassword(context.Background(), "9000000000")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("reset consumes the code and clears the counter", func(t *testing.T) {
		f := newAuthFixture(t, testOTPConfig())
		f.expectUser("9876543210", nil)
		f.redis.ExpectEvalSha(consumeCodeScript.Hash(), []string{"otp:reset:9876543210"}, testCode).SetVal(int64(1))
		f.db.ExpectExec("UPDATE users SET password = \\$1").WillReturnResult(sqlmock.NewResult(0, 1))
		f.db.ExpectExec("UPDATE users SET otp_attempts = 0").
			WithArgs("9876543210").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{
			PhoneNumber: "9876543210", OTP: testCode, NewPassword: "newsecret",
		})
		require.NoError(t, err)
		f.verify(t)
	})
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture(t, testOTPConfig())
	claims := &Claims{
		UserID:           testHRUser,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour))},
	}
	f.redis.ExpectSet("blacklist:token-abc", "1", time.Hour).SetVal("OK")

	require.NoError(t, f.svc.Logout(context.Background(), "token-abc", claims))
	f.verify(t)

	expired := &Claims{
		UserID:           testHRUser,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(-time.Minute))},
	}
	assert.NoError(t, f.svc.Logout(context.Background(), "token-old", expired))
}
