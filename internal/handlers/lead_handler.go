package handlers

import (
	"fmt"
	"net/http"

	"github.com/campaignwala/backend/internal/models"
	"github.com/campaignwala/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type LeadHandler struct {
	base
	service *services.LeadService
}

func NewLeadHandler(service *services.LeadService, exposeErrors bool, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		base:    newBase(exposeErrors, logger.Named("lead_handler")),
		service: service,
	}
}

// @Description Lead rejection
type leadRejectRequest struct {
	RejectionReason string `json:"rejectionReason" example:"Customer not eligible"`
}

// CreateLead records a customer referral from a share link
// @Summary Submit lead
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body services.CreateLeadRequest true "Lead"
// @Success 201 {object} services.Response{data=models.Lead}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /leads [post]
func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req services.CreateLeadRequest
	if !h.decode(w, r, &req) {
		return
	}

	lead, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, "Lead created successfully", lead)
}

// ListLeads
// @Summary List leads
// @Description Non-admin callers only see their own leads.
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved, completed or rejected"
// @Param search query string false "Lead id, customer, offer or HR name"
// @Param hrUserId query string false "HR user (admins only)"
// @Param sortBy query string false "createdAt, status, customerName, offerName"
// @Param order query string false "asc or desc"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} services.Response
// @Router /leads [get]
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := services.LeadFilter{
		Status:      models.LeadStatus(q.Get("status")),
		Search:      q.Get("search"),
		HRUserID:    q.Get("hrUserId"),
		SortBy:      q.Get("sortBy"),
		Order:       q.Get("order"),
		PageRequest: pageRequest(r),
	}
	if !user.IsAdmin() {
		filter.HRUserID = user.ID
	}

	leads, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Leads retrieved successfully", listResponse{Items: leads, Pagination: page})
}

// LeadStats
// @Summary Lead counts by status
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param hrUserId query string false "HR user (admins only)"
// @Success 200 {object} services.Response{data=models.LeadStats}
// @Router /leads/stats [get]
func (h *LeadHandler) LeadStats(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	hrUserID := r.URL.Query().Get("hrUserId")
	if !user.IsAdmin() {
		hrUserID = user.ID
	}

	stats, err := h.service.Stats(r.Context(), hrUserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Lead statistics retrieved successfully", stats)
}

// GetLead
// @Summary Get lead
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead row id or LD- code"
// @Success 200 {object} services.Response{data=models.Lead}
// @Failure 404 {object} services.ErrorResponse
// @Router /leads/{id} [get]
func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	lead, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	// other users' leads are reported as missing
	if !user.IsAdmin() && lead.HRUserID != user.ID {
		h.fail(w, services.ErrLeadNotFound)
		return
	}
	services.SendJSON(w, http.StatusOK, "Lead retrieved successfully", lead)
}

// ApproveLead settles the next commission tranche
// @Summary Approve lead
// @Description Pays commission1 on the first approval and commission2 on the second.
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} services.Response{data=services.SettlementResult}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /leads/{id}/approve [post]
func (h *LeadHandler) ApproveLead(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	message := fmt.Sprintf("Lead approved, commission of %s credited", result.CommissionPaid.StringFixed(2))
	services.SendJSON(w, http.StatusOK, message, result)
}

// UpdateLead
// @Summary Edit lead remarks
// @Description Edits remarks, or the rejection reason of a rejected lead. Status changes go through approve and reject.
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body services.LeadUpdate true "Fields to change"
// @Success 200 {object} services.Response{data=models.Lead}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /leads/{id} [put]
func (h *LeadHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	var req services.LeadUpdate
	if !h.decode(w, r, &req) {
		return
	}

	lead, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Lead updated successfully", lead)
}

// RejectLead
// @Summary Reject lead
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body leadRejectRequest true "Reason"
// @Success 200 {object} services.Response{data=models.Lead}
// @Failure 400 {object} services.ErrorResponse
// @Router /leads/{id}/reject [post]
func (h *LeadHandler) RejectLead(w http.ResponseWriter, r *http.Request) {
	var req leadRejectRequest
	if !h.decode(w, r, &req) {
		return
	}

	lead, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), req.RejectionReason)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Lead rejected", lead)
}

// DeleteLead
// @Summary Delete lead
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} services.Response
// @Failure 404 {object} services.ErrorResponse
// @Router /leads/{id} [delete]
func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Lead deleted successfully", nil)
}
