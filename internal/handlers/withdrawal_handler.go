package handlers

import (
	"net/http"

	"github.com/campaignwala/backend/internal/models"
	"github.com/campaignwala/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type WithdrawalHandler struct {
	base
	service *services.WithdrawalService
}

func NewWithdrawalHandler(service *services.WithdrawalService, exposeErrors bool, logger *zap.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{
		base:    newBase(exposeErrors, logger.Named("withdrawal_handler")),
		service: service,
	}
}

// RequestWithdrawal
// @Summary Request a withdrawal
// @Description userId defaults to the caller. Only admins may file for someone else.
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.WithdrawalRequest true "Withdrawal"
// @Success 201 {object} services.Response{data=models.Withdrawal}
// @Failure 400 {object} services.ErrorResponse{data=services.InsufficientBalanceError}
// @Failure 403 {object} services.ErrorResponse
// @Router /withdrawals [post]
func (h *WithdrawalHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.WithdrawalRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = user.ID
	}
	if !user.IsAdmin() && req.UserID != user.ID {
		services.SendErrorResponse(w, "You can only request withdrawals for your own account", http.StatusForbidden, nil)
		return
	}

	withdrawal, err := h.service.Request(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, "Withdrawal request submitted successfully", withdrawal)
}

// ListWithdrawals
// @Summary List withdrawals
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved, rejected or processing"
// @Param userId query string false "User ID"
// @Param search query string false "Withdrawal id, account holder or transaction id"
// @Param sortBy query string false "requestDate, amount, status"
// @Param order query string false "asc or desc"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} services.Response
// @Router /withdrawals [get]
func (h *WithdrawalHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.list(w, r, services.WithdrawalFilter{
		Status:      models.WithdrawalStatus(q.Get("status")),
		UserID:      q.Get("userId"),
		Search:      q.Get("search"),
		SortBy:      q.Get("sortBy"),
		Order:       q.Get("order"),
		PageRequest: pageRequest(r),
	})
}

// UserWithdrawals
// @Summary Withdrawals of one user
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param status query string false "Status filter"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} services.Response
// @Failure 403 {object} services.ErrorResponse
// @Router /withdrawals/user/{userId} [get]
func (h *WithdrawalHandler) UserWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if _, ok := ownerOrAdmin(w, r, userID); !ok {
		return
	}

	h.list(w, r, services.WithdrawalFilter{
		Status:      models.WithdrawalStatus(r.URL.Query().Get("status")),
		UserID:      userID,
		PageRequest: pageRequest(r),
	})
}

func (h *WithdrawalHandler) list(w http.ResponseWriter, r *http.Request, f services.WithdrawalFilter) {
	withdrawals, page, err := h.service.List(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Withdrawals retrieved successfully", listResponse{Items: withdrawals, Pagination: page})
}

// GetWithdrawal
// @Summary Get withdrawal
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal row id or WDR- code"
// @Success 200 {object} services.Response{data=models.Withdrawal}
// @Failure 404 {object} services.ErrorResponse
// @Router /withdrawals/{id} [get]
func (h *WithdrawalHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	withdrawal, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if !user.IsAdmin() && withdrawal.UserID != user.ID {
		h.fail(w, services.ErrWithdrawalNotFound)
		return
	}
	services.SendJSON(w, http.StatusOK, "Withdrawal retrieved successfully", withdrawal)
}

// WithdrawalStats
// @Summary Withdrawal statistics
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Response{data=models.WithdrawalStats}
// @Router /withdrawals/stats [get]
func (h *WithdrawalHandler) WithdrawalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Withdrawal statistics retrieved successfully", stats)
}

// ApproveWithdrawal debits the wallet and marks the request approved
// @Summary Approve withdrawal
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal ID"
// @Param request body services.ApproveWithdrawalRequest false "Payout details"
// @Success 200 {object} services.Response{data=models.Withdrawal}
// @Failure 400 {object} services.ErrorResponse
// @Router /withdrawals/{id}/approve [put]
func (h *WithdrawalHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.ApproveWithdrawalRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	withdrawal, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), admin.ID, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Withdrawal approved successfully", withdrawal)
}

// RejectWithdrawal
// @Summary Reject withdrawal
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal ID"
// @Param request body services.RejectWithdrawalRequest true "Reason"
// @Success 200 {object} services.Response{data=models.Withdrawal}
// @Failure 400 {object} services.ErrorResponse
// @Router /withdrawals/{id}/reject [put]
func (h *WithdrawalHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.RejectWithdrawalRequest
	if !h.decode(w, r, &req) {
		return
	}

	withdrawal, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), admin.ID, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Withdrawal rejected", withdrawal)
}

// DeleteWithdrawal
// @Summary Delete withdrawal
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal ID"
// @Success 200 {object} services.Response
// @Failure 404 {object} services.ErrorResponse
// @Router /withdrawals/{id} [delete]
func (h *WithdrawalHandler) DeleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Withdrawal deleted successfully", nil)
}
