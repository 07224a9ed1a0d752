package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/campaignwala/backend/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrUserNotFound       = errors.New("user not found")
	ErrLeadNotFound       = errors.New("lead not found")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")

	ErrInvalidCredentials       = errors.New("invalid phone number or password")
	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
	ErrForbidden                = errors.New("access denied")

	ErrPhoneTaken  = errors.New("phone number already registered")
	ErrEmailTaken  = errors.New("email already registered")
	ErrOfferExists = errors.New("an offer with this name already exists")

	ErrNoEmailConfigured   = errors.New("no email address is configured for this account")
	ErrOTPDeliveryFailed   = errors.New("failed to send OTP")
	ErrTooManyOTPRequests  = errors.New("too many OTP requests, please try again later")
	ErrOTPStoreUnavailable = errors.New("OTP service is temporarily unavailable")

	ErrWithdrawalProcessed = errors.New("withdrawal has already been processed")
	ErrKYCNotPending       = errors.New("KYC is not pending review")
	ErrReasonRequired      = errors.New("a reason is required")
	ErrOfferAlreadyDecided = errors.New("offer has already been approved")
)

// InsufficientBalanceError carries the amounts behind a refused debit.
type InsufficientBalanceError struct {
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s",
		e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return models.ErrInsufficientBalance
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

var errorStatus = []struct {
	err    error
	status int
}{
	{ErrInvalidInput, http.StatusBadRequest},
	{models.ErrInvalidAmount, http.StatusBadRequest},
	{models.ErrInvalidDOB, http.StatusBadRequest},
	{models.ErrInsufficientBalance, http.StatusBadRequest},
	{models.ErrNothingToSettle, http.StatusBadRequest},
	{models.ErrLeadNotRejectable, http.StatusBadRequest},
	{models.ErrInvalidOTP, http.StatusBadRequest},
	{models.ErrOTPExpired, http.StatusBadRequest},
	{ErrCurrentPasswordIncorrect, http.StatusBadRequest},
	{ErrNoEmailConfigured, http.StatusBadRequest},
	{ErrWithdrawalProcessed, http.StatusBadRequest},
	{ErrKYCNotPending, http.StatusBadRequest},
	{ErrReasonRequired, http.StatusBadRequest},
	{ErrOfferAlreadyDecided, http.StatusBadRequest},

	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},

	{ErrUserNotFound, http.StatusNotFound},
	{ErrLeadNotFound, http.StatusNotFound},
	{ErrOfferNotFound, http.StatusNotFound},
	{ErrWithdrawalNotFound, http.StatusNotFound},

	{ErrPhoneTaken, http.StatusConflict},
	{ErrEmailTaken, http.StatusConflict},
	{ErrOfferExists, http.StatusConflict},

	{ErrTooManyOTPRequests, http.StatusTooManyRequests},
	{ErrOTPDeliveryFailed, http.StatusBadGateway},
	{ErrOTPStoreUnavailable, http.StatusServiceUnavailable},
}

// StatusFor maps a service error onto an HTTP status. Unknown errors are 500.
func StatusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// SendServiceError writes err using the error envelope. Internal failures get a
// generic message, with the raw error attached only when exposeInternal is set.
func SendServiceError(w http.ResponseWriter, err error, exposeInternal bool) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		resp := ErrorResponse{Message: "Server error"}
		if exposeInternal {
			resp.Error = err.Error()
		}
		writeError(w, status, resp)
		return
	}

	resp := ErrorResponse{Message: err.Error()}
	var balanceErr *InsufficientBalanceError
	if errors.As(err, &balanceErr) {
		resp.Data = balanceErr
	}
	writeError(w, status, resp)
}
