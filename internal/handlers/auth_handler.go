package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/campaignwala/backend/internal/middleware"
	"github.com/campaignwala/backend/internal/services"
	"go.uber.org/zap"
)

type AuthHandler struct {
	base
	service *services.AuthService
}

func NewAuthHandler(service *services.AuthService, exposeErrors bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		base:    newBase(exposeErrors, logger.Named("auth_handler")),
		service: service,
	}
}

// otpRequiredResponse is the first-step answer of login and change-password.
type otpRequiredResponse struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	RequireOTP bool                   `json:"requireOTP"`
	OTPType    string                 `json:"otpType"`
	Data       *services.OTPChallenge `json:"data"`
}

func sendOTPRequired(w http.ResponseWriter, message string, challenge *services.OTPChallenge) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(otpRequiredResponse{
		Success:    true,
		Message:    message,
		RequireOTP: true,
		OTPType:    challenge.OTPType,
		Data:       challenge,
	})
}

// SendOTP sends a verification code by SMS
// @Summary Send registration OTP
// @Tags Users
// @Accept json
// @Produce json
// @Param request body services.SendOTPRequest true "Phone number"
// @Success 200 {object} services.Response
// @Failure 400 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Router /users/send-otp [post]
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req services.SendOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	challenge, err := h.service.SendOTP(r.Context(), req.PhoneNumber)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "OTP sent successfully", challenge)
}

// Register creates an account from a verified phone number
// @Summary Register
// @Tags Users
// @Accept json
// @Produce json
// @Param request body services.RegisterRequest true "Registration details"
// @Success 201 {object} services.Response{data=services.Session}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /users/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, "User registered successfully", session)
}

// Login authenticates in two steps
// @Summary Login
// @Description Without otp the password is checked and a code is sent (SMS for admins, email for users).
// @Description With otp the code is verified and a token is returned.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body services.LoginRequest true "Credentials"
// @Success 200 {object} services.Response{data=services.Session}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Router /users/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	if result.Challenge != nil {
		message := "OTP sent to your email"
		if result.Challenge.OTPType == "sms" {
			message = "OTP sent to your registered mobile number"
		}
		sendOTPRequired(w, message, result.Challenge)
		return
	}
	services.SendJSON(w, http.StatusOK, "Login successful", result.Session)
}

// VerifyOTP marks the phone number verified
// @Summary Verify phone number
// @Tags Users
// @Accept json
// @Produce json
// @Param request body services.VerifyOTPRequest true "Phone and code"
// @Success 200 {object} services.Response
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /users/verify-otp [post]
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req services.VerifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.VerifyPhone(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Phone number verified successfully", user)
}

// ForgotPassword sends a reset code
// @Summary Forgot password
// @Tags Users
// @Accept json
// @Produce json
// @Param request body services.SendOTPRequest true "Phone number"
// @Success 200 {object} services.Response
// @Failure 404 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Router /users/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req services.SendOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	challenge, err := h.service.ForgotPassword(r.Context(), req.PhoneNumber)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Password reset OTP sent", challenge)
}

// ResetPassword sets a new password with a reset code
// @Summary Reset password
// @Tags Users
// @Accept json
// @Produce json
// @Param request body services.ResetPasswordRequest true "Reset details"
// @Success 200 {object} services.Response
// @Failure 400 {object} services.ErrorResponse
// @Router /users/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req services.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Password reset successfully", nil)
}

// ChangePassword changes the password, confirmed by an email code
// @Summary Change password
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.ChangePasswordRequest true "Passwords and optional code"
// @Success 200 {object} services.Response
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /users/change-password [put]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.ChangePassword(r.Context(), user.ID, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	if result.Challenge != nil {
		sendOTPRequired(w, "OTP sent to your email", result.Challenge)
		return
	}
	services.SendJSON(w, http.StatusOK, "Password changed successfully", nil)
}

// Logout revokes the bearer token
// @Summary Logout
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Response
// @Failure 401 {object} services.ErrorResponse
// @Router /users/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
		return
	}

	if err := h.service.Logout(r.Context(), middleware.TokenFromContext(r.Context()), claims); err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Logged out successfully", nil)
}
