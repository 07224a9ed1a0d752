package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts leave the API as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// Wallet is a user's commission balance. Balance always equals TotalEarned - TotalWithdrawn.
type Wallet struct {
	ID             string              `json:"id"`
	UserID         string              `json:"userId"`
	Balance        decimal.Decimal     `json:"balance"`
	TotalEarned    decimal.Decimal     `json:"totalEarned"`
	TotalWithdrawn decimal.Decimal     `json:"totalWithdrawn"`
	Version        int                 `json:"-"` // for optimistic locking
	Transactions   []WalletTransaction `json:"transactions,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// WalletTransaction is one append-only ledger line.
type WalletTransaction struct {
	ID          int64           `json:"id"`
	WalletID    string          `json:"walletId"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	LeadID      *string         `json:"leadId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ValidAmount reports whether amount is a positive whole number of paise.
// Money columns are NUMERIC(12,2), so anything finer would be rounded away.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

func (w *Wallet) ApplyCredit(amount decimal.Decimal) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	w.Balance = w.Balance.Add(amount)
	w.TotalEarned = w.TotalEarned.Add(amount)
	return nil
}

func (w *Wallet) ApplyDebit(amount decimal.Decimal) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(w.Balance) {
		return ErrInsufficientBalance
	}
	w.Balance = w.Balance.Sub(amount)
	w.TotalWithdrawn = w.TotalWithdrawn.Add(amount)
	return nil
}

// Consistent reports whether the balance identity holds.
func (w *Wallet) Consistent() bool {
	return !w.Balance.IsNegative() && w.Balance.Equal(w.TotalEarned.Sub(w.TotalWithdrawn))
}
