package handlers

import (
	"net/http"

	"github.com/campaignwala/backend/internal/models"
	"github.com/campaignwala/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type UserHandler struct {
	base
	service *services.UserService
}

func NewUserHandler(service *services.UserService, exposeErrors bool, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		base:    newBase(exposeErrors, logger.Named("user_handler")),
		service: service,
	}
}

// @Description Role change
type roleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=user admin" example:"admin"`
}

// @Description KYC approval
type kycApproveRequest struct {
	Remarks string `json:"remarks,omitempty" validate:"max=1000"`
}

// @Description KYC rejection
type kycRejectRequest struct {
	Reason string `json:"reason" example:"PAN image is unreadable"`
}

// GetProfile returns the caller's profile
// @Summary Get profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Response{data=models.User}
// @Failure 401 {object} services.ErrorResponse
// @Router /users/profile [get]
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	services.SendJSON(w, http.StatusOK, "Profile retrieved successfully", user)
}

// UpdateProfile edits name, email or password
// @Summary Update profile
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.ProfileUpdate true "Fields to change"
// @Success 200 {object} services.Response{data=models.User}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /users/profile [put]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.ProfileUpdate
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), user.ID, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Profile updated successfully", updated)
}

// GetKYC returns the caller's KYC sections
// @Summary Get KYC details
// @Tags KYC
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Response{data=services.KYCView}
// @Router /users/kyc [get]
func (h *UserHandler) GetKYC(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetKYC(r.Context(), user.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "KYC details retrieved successfully", view)
}

// UpdateKYC submits KYC details
// @Summary Submit KYC details
// @Description Sections may be sent flat or nested under personalDetails, kycDocuments and bankDetails.
// @Description A nested value wins over a flat one for the same field.
// @Tags KYC
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.KYCUpdate true "KYC details"
// @Success 200 {object} services.Response{data=services.KYCView}
// @Failure 400 {object} services.ErrorResponse
// @Router /users/kyc [put]
func (h *UserHandler) UpdateKYC(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.KYCUpdate
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.service.UpdateKYC(r.Context(), user.ID, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "KYC details updated successfully", view)
}

// ListUsers lists users for admins
// @Summary List users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "user or admin"
// @Param isVerified query bool false "Verification filter"
// @Param search query string false "Name, email or phone"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} services.Response
// @Failure 403 {object} services.ErrorResponse
// @Router /users/admin/users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, page, err := h.service.List(r.Context(), services.UserFilter{
		Role:        models.Role(q.Get("role")),
		IsVerified:  boolQuery(r, "isVerified"),
		Search:      q.Get("search"),
		PageRequest: pageRequest(r),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Users retrieved successfully", listResponse{Items: users, Pagination: page})
}

// GetUser
// @Summary Get user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} services.Response{data=models.User}
// @Failure 404 {object} services.ErrorResponse
// @Router /users/admin/users/{userId} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.FindByID(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "User retrieved successfully", user)
}

// UpdateRole
// @Summary Change a user's role
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body roleRequest true "New role"
// @Success 200 {object} services.Response{data=models.User}
// @Failure 400 {object} services.ErrorResponse
// @Router /users/admin/users/{userId}/role [put]
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "userId"), req.Role)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "User role updated successfully", user)
}

// ToggleStatus
// @Summary Activate or deactivate a user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} services.Response{data=models.User}
// @Router /users/admin/users/{userId}/toggle-status [put]
func (h *UserHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.ToggleStatus(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	message := "User deactivated successfully"
	if user.IsActive {
		message = "User activated successfully"
	}
	services.SendJSON(w, http.StatusOK, message, user)
}

// MarkEx
// @Summary Mark a user as ex-member
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} services.Response{data=models.User}
// @Router /users/admin/users/{userId}/mark-ex [put]
func (h *UserHandler) MarkEx(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.MarkEx(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "User marked as ex successfully", user)
}

// DeleteUser
// @Summary Delete user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} services.Response
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /users/admin/users/{userId} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "userId")); err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "User deleted successfully", nil)
}

// DashboardStats
// @Summary User statistics
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Response{data=models.UserStats}
// @Router /users/admin/dashboard-stats [get]
func (h *UserHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Dashboard statistics retrieved successfully", stats)
}

// PendingKYC lists submissions awaiting review
// @Summary Pending KYC submissions
// @Tags KYC
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name, email or phone"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} services.Response
// @Router /users/admin/kyc/pending [get]
func (h *UserHandler) PendingKYC(w http.ResponseWriter, r *http.Request) {
	views, page, err := h.service.PendingKYC(r.Context(), r.URL.Query().Get("search"), pageRequest(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Pending KYC requests retrieved successfully", listResponse{Items: views, Pagination: page})
}

// UserKYC
// @Summary KYC details of a user
// @Tags KYC
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} services.Response{data=services.KYCView}
// @Router /users/admin/kyc/{userId} [get]
func (h *UserHandler) UserKYC(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetKYC(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "KYC details retrieved successfully", view)
}

// ApproveKYC
// @Summary Approve KYC
// @Tags KYC
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body kycApproveRequest false "Remarks"
// @Success 200 {object} services.Response{data=services.KYCView}
// @Failure 400 {object} services.ErrorResponse
// @Router /users/admin/kyc/{userId}/approve [put]
func (h *UserHandler) ApproveKYC(w http.ResponseWriter, r *http.Request) {
	var req kycApproveRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	view, err := h.service.ApproveKYC(r.Context(), chi.URLParam(r, "userId"), req.Remarks)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "KYC approved successfully", view)
}

// RejectKYC
// @Summary Reject KYC
// @Tags KYC
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body kycRejectRequest true "Reason"
// @Success 200 {object} services.Response{data=services.KYCView}
// @Failure 400 {object} services.ErrorResponse
// @Router /users/admin/kyc/{userId}/reject [put]
func (h *UserHandler) RejectKYC(w http.ResponseWriter, r *http.Request) {
	var req kycRejectRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := h.service.RejectKYC(r.Context(), chi.URLParam(r, "userId"), req.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "KYC rejected", view)
}
