package handlers

import (
	"net/http"

	"github.com/campaignwala/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OfferHandler struct {
	base
	service *services.OfferService
}

func NewOfferHandler(service *services.OfferService, exposeErrors bool, logger *zap.Logger) *OfferHandler {
	return &OfferHandler{
		base:    newBase(exposeErrors, logger.Named("offer_handler")),
		service: service,
	}
}

// @Description Offer rejection
type offerRejectRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=1000" example:"Commission terms unclear"`
}

// ListOffers
// @Summary List offers
// @Tags Offers
// @Produce json
// @Param category query string false "Category"
// @Param approved query bool false "Approval filter"
// @Param search query string false "Name or description"
// @Param sortBy query string false "createdAt, name, category, commission1"
// @Param order query string false "asc or desc"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} services.Response
// @Router /offers [get]
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, offerFilter(r))
}

// ListByCategory
// @Summary List offers in one category
// @Tags Offers
// @Produce json
// @Param category path string true "Category name"
// @Param approved query bool false "Approval filter"
// @Param search query string false "Name or description"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} services.Response
// @Router /offers/category/{category} [get]
func (h *OfferHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	f := offerFilter(r)
	f.Category = chi.URLParam(r, "category")
	h.list(w, r, f)
}

func (h *OfferHandler) list(w http.ResponseWriter, r *http.Request, f services.OfferFilter) {
	offers, page, err := h.service.List(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Offers retrieved successfully", listResponse{Items: offers, Pagination: page})
}

func offerFilter(r *http.Request) services.OfferFilter {
	q := r.URL.Query()
	return services.OfferFilter{
		Category:    q.Get("category"),
		Approved:    boolQuery(r, "approved"),
		Search:      q.Get("search"),
		SortBy:      q.Get("sortBy"),
		Order:       q.Get("order"),
		PageRequest: pageRequest(r),
	}
}

// GetOffer
// @Summary Get offer
// @Tags Offers
// @Produce json
// @Param id path string true "Offer row id or OFF- code"
// @Success 200 {object} services.Response{data=models.Offer}
// @Failure 404 {object} services.ErrorResponse
// @Router /offers/{id} [get]
func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Offer retrieved successfully", offer)
}

// CreateOffer
// @Summary Create offer
// @Tags Offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.OfferInput true "Offer"
// @Success 201 {object} services.Response{data=models.Offer}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /offers [post]
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req services.OfferInput
	if !h.decode(w, r, &req) {
		return
	}

	offer, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, "Offer created successfully", offer)
}

// UpdateOffer
// @Summary Update offer
// @Tags Offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offer ID"
// @Param request body services.OfferInput true "Fields to change"
// @Success 200 {object} services.Response{data=models.Offer}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /offers/{id} [put]
func (h *OfferHandler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	var req services.OfferInput
	if !h.decode(w, r, &req) {
		return
	}

	offer, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Offer updated successfully", offer)
}

// ApproveOffer
// @Summary Approve offer
// @Tags Offers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offer ID"
// @Success 200 {object} services.Response{data=models.Offer}
// @Failure 400 {object} services.ErrorResponse
// @Router /offers/{id}/approve [post]
func (h *OfferHandler) ApproveOffer(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentUser(w, r)
	if !ok {
		return
	}

	offer, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), admin.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Offer approved successfully", offer)
}

// RejectOffer
// @Summary Reject offer
// @Tags Offers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offer ID"
// @Param request body offerRejectRequest false "Reason"
// @Success 200 {object} services.Response{data=models.Offer}
// @Router /offers/{id}/reject [post]
func (h *OfferHandler) RejectOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRejectRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	offer, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Offer rejected", offer)
}

// DeleteOffer
// @Summary Delete offer
// @Tags Offers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offer ID"
// @Success 200 {object} services.Response
// @Failure 404 {object} services.ErrorResponse
// @Router /offers/{id} [delete]
func (h *OfferHandler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Offer deleted successfully", nil)
}

// OfferStats
// @Summary Offer statistics
// @Tags Offers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Response{data=services.OfferStats}
// @Router /offers/stats [get]
func (h *OfferHandler) OfferStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Offer statistics retrieved successfully", stats)
}

// ShareOffer builds the caller's lead-form link with a QR code
// @Summary Share offer
// @Tags Offers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Offer ID"
// @Success 200 {object} services.Response{data=services.ShareLink}
// @Failure 404 {object} services.ErrorResponse
// @Router /offers/{id}/share [get]
func (h *OfferHandler) ShareOffer(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	link, err := h.service.ShareLink(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Share link generated successfully", link)
}
