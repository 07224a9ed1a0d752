// Package notify delivers one-time codes by email and SMS.
package notify

import (
	"context"
	"errors"
)

// Purpose names the flow a code was issued for. It picks the message wording.
type Purpose string

const (
	PurposeLogin          Purpose = "login"
	PurposeChangePassword Purpose = "change-password"
	PurposeRegistration   Purpose = "registration"
	PurposeResetPassword  Purpose = "reset-password"
)

var (
	ErrEmailNotConfigured = errors.New("email delivery is not configured")
	ErrSMSNotConfigured   = errors.New("sms delivery is not configured")
)

type Mailer interface {
	SendOTP(ctx context.Context, to, name, code string, purpose Purpose) error
}

type SMSSender interface {
	SendOTP(ctx context.Context, phoneNumber, code string) error
}

func subjectFor(purpose Purpose) string {
	switch purpose {
	case PurposeChangePassword:
		return "Campaign Waala - Password Change Verification"
	case PurposeResetPassword:
		return "Campaign Waala - Password Reset"
	default:
		return "Campaign Waala - Login Verification Code"
	}
}
