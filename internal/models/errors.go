package models

import "errors"

var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNothingToSettle     = errors.New("lead already fully approved or no commission pending")
	ErrLeadNotRejectable   = errors.New("lead cannot be rejected in its current status")
)

var (
	ErrInvalidOTP = errors.New("invalid OTP")
	ErrOTPExpired = errors.New("OTP has expired")
)
