package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalApproved   WithdrawalStatus = "approved"
	WithdrawalRejected   WithdrawalStatus = "rejected"
	WithdrawalProcessing WithdrawalStatus = "processing"
)

type WithdrawalBankDetails struct {
	AccountHolderName string `json:"accountHolderName"`
	AccountNumber     string `json:"accountNumber"`
	IFSCCode          string `json:"ifscCode"`
	BankName          string `json:"bankName"`
	UPIID             string `json:"upiId,omitempty"`
}

type Withdrawal struct {
	ID              string                `json:"id"`
	WithdrawalID    string                `json:"withdrawalId"`
	UserID          string                `json:"userId"`
	Amount          decimal.Decimal       `json:"amount"`
	Status          WithdrawalStatus      `json:"status"`
	RequestDate     time.Time             `json:"requestDate"`
	ProcessedDate   *time.Time            `json:"processedDate,omitempty"`
	ProcessedBy     *string               `json:"processedBy,omitempty"`
	Reason          string                `json:"reason,omitempty"`
	RejectionReason string                `json:"rejectionReason,omitempty"`
	BankDetails     WithdrawalBankDetails `json:"bankDetails"`
	TransactionID   string                `json:"transactionId,omitempty"`
	Remarks         string                `json:"remarks,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

type WithdrawalStats struct {
	Total               int             `json:"total"`
	Pending             int             `json:"pending"`
	Approved            int             `json:"approved"`
	Rejected            int             `json:"rejected"`
	Processing          int             `json:"processing"`
	TotalApprovedAmount decimal.Decimal `json:"totalApprovedAmount"`
	TotalPendingAmount  decimal.Decimal `json:"totalPendingAmount"`
}
