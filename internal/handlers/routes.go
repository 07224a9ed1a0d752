package handlers

import (
	"net/http"

	"github.com/campaignwala/backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Handlers groups every API handler mounted under /api.
type Handlers struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Offers      *OfferHandler
	Leads       *LeadHandler
	Wallet      *WalletHandler
	Withdrawals *WithdrawalHandler
}

// Authenticator is the bearer-token middleware protected routes run behind.
type Authenticator interface {
	Authenticate(next http.Handler) http.Handler
}

// Mount registers the API routes on r.
func (h *Handlers) Mount(r chi.Router, auth Authenticator) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/send-otp", h.Auth.SendOTP)
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/verify-otp", h.Auth.VerifyOTP)
		r.Post("/forgot-password", h.Auth.ForgotPassword)
		r.Post("/reset-password", h.Auth.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Post("/logout", h.Auth.Logout)
			r.Get("/profile", h.Users.GetProfile)
			r.Put("/profile", h.Users.UpdateProfile)
			r.Put("/change-password", h.Auth.ChangePassword)
			r.Get("/kyc", h.Users.GetKYC)
			r.Put("/kyc", h.Users.UpdateKYC)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Authenticate, middleware.RequireAdmin)
			r.Get("/users", h.Users.ListUsers)
			r.Get("/users/{userId}", h.Users.GetUser)
			r.Put("/users/{userId}/role", h.Users.UpdateRole)
			r.Put("/users/{userId}/toggle-status", h.Users.ToggleStatus)
			r.Put("/users/{userId}/mark-ex", h.Users.MarkEx)
			r.Delete("/users/{userId}", h.Users.DeleteUser)
			r.Get("/dashboard-stats", h.Users.DashboardStats)
			r.Get("/kyc/pending", h.Users.PendingKYC)
			r.Get("/kyc/{userId}", h.Users.UserKYC)
			r.Put("/kyc/{userId}/approve", h.Users.ApproveKYC)
			r.Put("/kyc/{userId}/reject", h.Users.RejectKYC)
		})
	})

	r.Route("/offers", func(r chi.Router) {
		r.Get("/", h.Offers.ListOffers)
		r.Get("/category/{category}", h.Offers.ListByCategory)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate, middleware.RequireAdmin)
			r.Get("/stats", h.Offers.OfferStats)
			r.Post("/", h.Offers.CreateOffer)
			r.Put("/{id}", h.Offers.UpdateOffer)
			r.Delete("/{id}", h.Offers.DeleteOffer)
			r.Post("/{id}/approve", h.Offers.ApproveOffer)
			r.Post("/{id}/reject", h.Offers.RejectOffer)
		})

		r.With(auth.Authenticate).Get("/{id}/share", h.Offers.ShareOffer)
		r.Get("/{id}", h.Offers.GetOffer)
	})

	r.Route("/leads", func(r chi.Router) {
		r.Post("/", h.Leads.CreateLead)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Get("/", h.Leads.ListLeads)
			r.Get("/stats", h.Leads.LeadStats)
			r.Get("/{id}", h.Leads.GetLead)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/{id}/approve", h.Leads.ApproveLead)
				r.Post("/{id}/reject", h.Leads.RejectLead)
				r.Put("/{id}", h.Leads.UpdateLead)
				r.Delete("/{id}", h.Leads.DeleteLead)
			})
		})
	})

	r.Route("/wallet", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Get("/user/{userId}", h.Wallet.GetWallet)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/credit", h.Wallet.Credit)
			r.Post("/debit", h.Wallet.Debit)
			r.Get("/all", h.Wallet.ListWallets)
		})
	})

	r.Route("/withdrawals", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Post("/", h.Withdrawals.RequestWithdrawal)
		r.Get("/user/{userId}", h.Withdrawals.UserWithdrawals)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/", h.Withdrawals.ListWithdrawals)
			r.Get("/stats", h.Withdrawals.WithdrawalStats)
			r.Put("/{id}/approve", h.Withdrawals.ApproveWithdrawal)
			r.Put("/{id}/reject", h.Withdrawals.RejectWithdrawal)
			r.Delete("/{id}", h.Withdrawals.DeleteWithdrawal)
		})

		r.Get("/{id}", h.Withdrawals.GetWithdrawal)
	})
}
