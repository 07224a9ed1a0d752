package handlers

import (
	"net/http"

	"github.com/campaignwala/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletHandler struct {
	base
	ledger *services.WalletLedger
}

func NewWalletHandler(ledger *services.WalletLedger, exposeErrors bool, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		base:   newBase(exposeErrors, logger.Named("wallet_handler")),
		ledger: ledger,
	}
}

// @Description Manual wallet adjustment
type walletAdjustRequest struct {
	UserID      string          `json:"userId" validate:"required,uuid" example:"3f1c9a52-0d7e-4a57-9d43-8f1b6a0e2c11"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"number" example:"250"`
	Description string          `json:"description" validate:"required,max=500" example:"Bonus for March"`
	LeadID      *string         `json:"leadId,omitempty" validate:"omitempty,uuid"`
}

// userIDParam reads a uuid path parameter, answering 400 when it is malformed.
func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		services.SendErrorResponse(w, "Invalid user ID", http.StatusBadRequest, nil)
		return "", false
	}
	return id.String(), true
}

// GetWallet returns a wallet and its transactions
// @Summary Get wallet
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} services.Response{data=models.Wallet}
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /wallet/user/{userId} [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if _, ok := ownerOrAdmin(w, r, userID); !ok {
		return
	}

	wallet, err := h.ledger.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Wallet retrieved successfully", wallet)
}

// Credit
// @Summary Credit a wallet
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body walletAdjustRequest true "Credit"
// @Success 200 {object} services.Response{data=models.Wallet}
// @Failure 400 {object} services.ErrorResponse
// @Router /wallet/credit [post]
func (h *WalletHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req walletAdjustRequest
	if !h.decode(w, r, &req) {
		return
	}

	wallet, err := h.ledger.Credit(r.Context(), req.UserID, req.Amount, req.Description, req.LeadID)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Wallet credited successfully", wallet)
}

// Debit
// @Summary Debit a wallet
// @Tags Wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body walletAdjustRequest true "Debit"
// @Success 200 {object} services.Response{data=models.Wallet}
// @Failure 400 {object} services.ErrorResponse{data=services.InsufficientBalanceError}
// @Router /wallet/debit [post]
func (h *WalletHandler) Debit(w http.ResponseWriter, r *http.Request) {
	var req walletAdjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.LeadID != nil {
		services.SendErrorResponse(w, "leadId is only accepted on credits", http.StatusBadRequest, nil)
		return
	}

	wallet, err := h.ledger.Debit(r.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Wallet debited successfully", wallet)
}

// ListWallets
// @Summary List wallets
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} services.Response
// @Router /wallet/all [get]
func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, page, err := h.ledger.List(r.Context(), pageRequest(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, "Wallets retrieved successfully", listResponse{Items: wallets, Pagination: page})
}
