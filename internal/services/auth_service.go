package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campaignwala/backend/internal/config"
	"github.com/campaignwala/backend/internal/models"
	"github.com/campaignwala/backend/internal/monitoring"
	"github.com/campaignwala/backend/internal/notify"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	channelSMS   = "sms"
	channelEmail = "email"

	registerOTPPrefix = "otp:register:"
	resetOTPPrefix    = "otp:reset:"
	otpCounterPrefix  = "otp:count:"
	blacklistPrefix   = "blacklist:"
)

// consumeCodeScript deletes KEYS[1] only when it holds ARGV[1].
// It returns -1 for a missing key, 0 for a mismatch and 1 when consumed.
var consumeCodeScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if not stored then
	return -1
end
if stored == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// AuthService runs registration, the OTP-gated login and the password flows.
type AuthService struct {
	users   *UserService
	tokens  *TokenIssuer
	hasher  *PasswordHasher
	redis   *redis.Client
	mailer  notify.Mailer
	sms     notify.SMSSender
	otp     *config.OTPConfig
	logger  *zap.Logger
	now     func() time.Time
	newCode func() string
}

// SendOTPRequest asks for a registration or verification code.
// @Description Send OTP request
type SendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,len=10,numeric" example:"9876543210"`
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,len=10,numeric" example:"9876543210"`
	OTP         string `json:"otp" validate:"required,numeric" example:"1234"`
	Name        string `json:"name" validate:"required,min=2,max=120" example:"Priya Sharma"`
	Email       string `json:"email" validate:"required,email" example:"priya@example.com"`
	Password    string `json:"password" validate:"required,min=6" example:"secret123"`
}

// LoginRequest carries credentials, plus the code on the second step.
// @Description Login request structure
type LoginRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,len=10,numeric" example:"9876543210"`
	Password    string `json:"password" validate:"required" example:"secret123"`
	OTP         string `json:"otp,omitempty" validate:"omitempty,numeric" example:"1234"`
}

// @Description Phone verification request
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,len=10,numeric" example:"9876543210"`
	OTP         string `json:"otp" validate:"required,numeric" example:"1234"`
}

// @Description Password reset request
type ResetPasswordRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,len=10,numeric" example:"9876543210"`
	OTP         string `json:"otp" validate:"required,numeric" example:"1234"`
	NewPassword string `json:"newPassword" validate:"required,min=6" example:"newsecret123"`
}

// @Description Password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
	OTP             string `json:"otp,omitempty" validate:"omitempty,numeric"`
}

// OTPChallenge tells the client a code was sent and where. OTP is only set
// when the configured static fallback replaced a failed delivery.
type OTPChallenge struct {
	OTPType     string `json:"-"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email,omitempty"`
	OTP         string `json:"otp,omitempty"`
}

// Session is returned once a user is authenticated.
// @Description Authentication response structure
type Session struct {
	User  *models.User `json:"user"`
	Token string       `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// LoginResult holds exactly one of Challenge (step 1) or Session (step 2).
type LoginResult struct {
	Challenge *OTPChallenge
	Session   *Session
}

// ChangePasswordResult reports whether a code was sent or the password changed.
type ChangePasswordResult struct {
	Challenge *OTPChallenge
	Changed   bool
}

func NewAuthService(users *UserService, tokens *TokenIssuer, hasher *PasswordHasher, redisClient *redis.Client,
	mailer notify.Mailer, sms notify.SMSSender, otpCfg *config.OTPConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		redis:   redisClient,
		mailer:  mailer,
		sms:     sms,
		otp:     otpCfg,
		logger:  logger.Named("auth"),
		now:     time.Now,
		newCode: func() string { return generateNumericCode(otpCfg.CodeLength) },
	}
}

// Login is step 1 without req.OTP (verify the password, send a code) and
// step 2 with it (verify the code once, issue a token).
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.users.FindByPhone(ctx, req.PhoneNumber)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(req.Password, user.Password) {
		s.logger.Info("login rejected", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.logger.Info("login rejected, account deactivated", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	if req.OTP == "" {
		channel := channelEmail
		if user.IsAdmin() {
			channel = channelSMS
		}
		challenge, err := s.issueUserOTP(ctx, user, channel, notify.PurposeLogin)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Challenge: challenge}, nil
	}

	if err := s.verifyUserOTP(ctx, user, req.OTP); err != nil {
		return nil, err
	}

	session, err := s.session(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return &LoginResult{Session: session}, nil
}

// ChangePassword follows the login shape with an email code. Accounts without
// an email change the password directly.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) (*ChangePasswordResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(req.CurrentPassword, user.Password) {
		return nil, ErrCurrentPasswordIncorrect
	}

	if user.Email != "" {
		if req.OTP == "" {
			challenge, err := s.issueUserOTP(ctx, user, channelEmail, notify.PurposeChangePassword)
			if err != nil {
				return nil, err
			}
			return &ChangePasswordResult{Challenge: challenge}, nil
		}
		if err := s.verifyUserOTP(ctx, user, req.OTP); err != nil {
			return nil, err
		}
	}

	if err := s.users.SetPassword(ctx, user.ID, req.NewPassword); err != nil {
		return nil, err
	}
	s.logger.Info("password changed", zap.String("user_id", user.ID), zap.Bool("otp_verified", user.Email != ""))
	return &ChangePasswordResult{Changed: true}, nil
}

// issueUserOTP sends a code over channel and stores it on the user record.
// The send counter only moves when a code actually went out.
func (s *AuthService) issueUserOTP(ctx context.Context, user *models.User, channel string, purpose notify.Purpose) (*OTPChallenge, error) {
	now := s.now()
	if !user.CanSendOTP(now, s.otp.MaxSendsPerWindow, s.otp.RateLimitWindow) {
		monitoring.OTPIssuedTotal.WithLabelValues(channel, "rate_limited").Inc()
		return nil, ErrTooManyOTPRequests
	}

	challenge := &OTPChallenge{OTPType: channel, PhoneNumber: user.PhoneNumber}
	code := s.newCode()

	switch channel {
	case channelSMS:
		fallback, err := s.sendSMS(ctx, user.PhoneNumber, code)
		if err != nil {
			return nil, err
		}
		if fallback != "" {
			code = fallback
			challenge.OTP = fallback
		}
	case channelEmail:
		if user.Email == "" {
			return nil, ErrNoEmailConfigured
		}
		if err := s.mailer.SendOTP(ctx, user.Email, user.Name, code, purpose); err != nil {
			monitoring.OTPIssuedTotal.WithLabelValues(channel, "failed").Inc()
			s.logger.Error("email otp delivery failed", zap.String("user_id", user.ID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrOTPDeliveryFailed, err)
		}
		monitoring.OTPIssuedTotal.WithLabelValues(channel, "sent").Inc()
		challenge.Email = maskEmail(user.Email)
	default:
		return nil, fmt.Errorf("unknown otp channel %q", channel)
	}

	user.RecordOTPSent(code, now, s.otp.CodeTTL)
	if err := s.users.saveOTPState(ctx, user); err != nil {
		return nil, fmt.Errorf("save otp: %w", err)
	}

	s.logger.Info("otp issued",
		zap.String("user_id", user.ID), zap.String("channel", channel), zap.String("purpose", string(purpose)),
		zap.Int("attempts", user.OTPAttempts))
	return challenge, nil
}

// sendSMS delivers code by SMS. When delivery fails and the static fallback
// is enabled it returns the static code to use instead.
func (s *AuthService) sendSMS(ctx context.Context, phone, code string) (string, error) {
	err := s.sms.SendOTP(ctx, phone, code)
	if err == nil {
		monitoring.OTPIssuedTotal.WithLabelValues(channelSMS, "sent").Inc()
		return "", nil
	}

	if s.otp.StaticFallbackEnabled() {
		monitoring.OTPIssuedTotal.WithLabelValues(channelSMS, "fallback").Inc()
		s.logger.Warn("sms otp delivery failed, using static code", zap.String("phone", phone), zap.Error(err))
		return s.otp.StaticCode, nil
	}

	monitoring.OTPIssuedTotal.WithLabelValues(channelSMS, "failed").Inc()
	s.logger.Error("sms otp delivery failed", zap.String("phone", phone), zap.Error(err))
	return "", fmt.Errorf("%w: %v", ErrOTPDeliveryFailed, err)
}

// verifyUserOTP checks the stored code and clears it so it cannot be replayed.
func (s *AuthService) verifyUserOTP(ctx context.Context, user *models.User, code string) error {
	if err := user.CheckOTP(code, s.now()); err != nil {
		if errors.Is(err, models.ErrOTPExpired) {
			if clearErr := s.users.clearOTP(ctx, user.ID); clearErr != nil {
				s.logger.Warn("clear expired otp", zap.String("user_id", user.ID), zap.Error(clearErr))
			}
		}
		return err
	}

	consumed, err := s.users.consumeOTP(ctx, user.ID, code)
	if err != nil {
		return err
	}
	if !consumed {
		return models.ErrInvalidOTP
	}
	user.ClearOTP()
	return nil
}

// SendOTP sends a registration code by SMS and keeps it in redis.
func (s *AuthService) SendOTP(ctx context.Context, phone string) (*OTPChallenge, error) {
	if s.redis == nil {
		return nil, ErrOTPStoreUnavailable
	}

	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	return s.issueStoredOTP(ctx, phone, user, registerOTPPrefix)
}

// ForgotPassword sends a reset code to a registered phone number.
func (s *AuthService) ForgotPassword(ctx context.Context, phone string) (*OTPChallenge, error) {
	if s.redis == nil {
		return nil, ErrOTPStoreUnavailable
	}

	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	return s.issueStoredOTP(ctx, phone, user, resetOTPPrefix)
}

// issueStoredOTP sends an SMS code kept in redis under prefix+phone. Known
// users are rate limited through their record, unknown numbers through a
// redis counter.
func (s *AuthService) issueStoredOTP(ctx context.Context, phone string, user *models.User, prefix string) (*OTPChallenge, error) {
	now := s.now()
	counterKey := otpCounterPrefix + phone

	if user != nil {
		if !user.CanSendOTP(now, s.otp.MaxSendsPerWindow, s.otp.RateLimitWindow) {
			monitoring.OTPIssuedTotal.WithLabelValues(channelSMS, "rate_limited").Inc()
			return nil, ErrTooManyOTPRequests
		}
	} else {
		sent, err := s.redis.Get(ctx, counterKey).Int()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("%w: %v", ErrOTPStoreUnavailable, err)
		}
		if sent >= s.otp.MaxSendsPerWindow {
			monitoring.OTPIssuedTotal.WithLabelValues(channelSMS, "rate_limited").Inc()
			return nil, ErrTooManyOTPRequests
		}
	}

	code := s.newCode()
	challenge := &OTPChallenge{OTPType: channelSMS, PhoneNumber: phone}
	fallback, err := s.sendSMS(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	if fallback != "" {
		code = fallback
		challenge.OTP = fallback
	}

	if err := s.redis.Set(ctx, prefix+phone, code, s.otp.CodeTTL).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPStoreUnavailable, err)
	}

	if user != nil {
		if user.LastOTPSent != nil && now.Sub(*user.LastOTPSent) > s.otp.RateLimitWindow {
			user.OTPAttempts = 0
		}
		user.OTPAttempts++
		user.LastOTPSent = &now
		if err := s.users.recordOTPSend(ctx, user); err != nil {
			s.logger.Warn("record otp send", zap.String("user_id", user.ID), zap.Error(err))
		}
	} else {
		count, err := s.redis.Incr(ctx, counterKey).Result()
		if err == nil && count == 1 {
			err = s.redis.Expire(ctx, counterKey, s.otp.RateLimitWindow).Err()
		}
		if err != nil {
			s.logger.Warn("count otp send", zap.String("phone", phone), zap.Error(err))
		}
	}

	s.logger.Info("otp issued", zap.String("phone", phone), zap.String("purpose", strings.TrimSuffix(strings.TrimPrefix(prefix, "otp:"), ":")))
	return challenge, nil
}

// consumeStoredOTP deletes the redis code when it matches.
func (s *AuthService) consumeStoredOTP(ctx context.Context, key, code string) error {
	if s.redis == nil {
		return ErrOTPStoreUnavailable
	}

	result, err := consumeCodeScript.Run(ctx, s.redis, []string{key}, code).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPStoreUnavailable, err)
	}
	switch result {
	case 1:
		return nil
	case -1:
		return models.ErrOTPExpired
	default:
		return models.ErrInvalidOTP
	}
}

// Register creates a verified account from a phone number proven by a code.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	if _, err := s.users.FindByPhone(ctx, req.PhoneNumber); err == nil {
		return nil, ErrPhoneTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	if err := s.consumeStoredOTP(ctx, registerOTPPrefix+req.PhoneNumber, req.OTP); err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, NewUser{
		PhoneNumber: req.PhoneNumber,
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Role:        models.RoleUser,
		IsVerified:  true,
	})
	if err != nil {
		return nil, err
	}

	return s.session(user)
}

// VerifyPhone marks an existing user verified with a registration code.
func (s *AuthService) VerifyPhone(ctx context.Context, req VerifyOTPRequest) (*models.User, error) {
	user, err := s.users.FindByPhone(ctx, req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if err := s.consumeStoredOTP(ctx, registerOTPPrefix+req.PhoneNumber, req.OTP); err != nil {
		return nil, err
	}
	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, err
	}

	user.IsVerified = true
	user.OTPAttempts = 0
	return user, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	user, err := s.users.FindByPhone(ctx, req.PhoneNumber)
	if err != nil {
		return err
	}
	if err := s.consumeStoredOTP(ctx, resetOTPPrefix+req.PhoneNumber, req.OTP); err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, user.ID, req.NewPassword); err != nil {
		return err
	}
	if _, err := s.users.ResetOTPAttempts(ctx, user.PhoneNumber); err != nil {
		return err
	}

	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

// Logout blacklists the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string, claims *Claims) error {
	ttl := s.tokens.TTL(claims)
	if ttl <= 0 {
		return nil
	}
	if s.redis == nil {
		s.logger.Warn("token blacklist unavailable, logout is client-side only", zap.String("user_id", claims.UserID))
		return nil
	}
	if err := s.redis.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether the token was revoked by a logout.
func IsBlacklisted(ctx context.Context, rdb *redis.Client, token string) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	n, err := rdb.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return email
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}
