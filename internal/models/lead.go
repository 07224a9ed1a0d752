package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeadStatus string

const (
	LeadPending   LeadStatus = "pending"
	LeadApproved  LeadStatus = "approved"
	LeadCompleted LeadStatus = "completed"
	LeadRejected  LeadStatus = "rejected"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadPending, LeadApproved, LeadCompleted, LeadRejected:
		return true
	}
	return false
}

func (s LeadStatus) Terminal() bool {
	return s == LeadCompleted || s == LeadRejected
}

// Lead is a customer referral submitted through an HR user's share link.
// Offer and HR details are copied at creation time.
type Lead struct {
	ID              string          `json:"id"`
	LeadID          string          `json:"leadId"`
	OfferID         string          `json:"offerId"`
	OfferName       string          `json:"offerName"`
	Category        string          `json:"category"`
	HRUserID        string          `json:"hrUserId"`
	HRName          string          `json:"hrName"`
	HRContact       string          `json:"hrContact"`
	CustomerName    string          `json:"customerName"`
	CustomerContact string          `json:"customerContact"`
	Status          LeadStatus      `json:"status"`
	Commission1     decimal.Decimal `json:"commission1"`
	Commission2     decimal.Decimal `json:"commission2"`
	Commission1Paid bool            `json:"commission1Paid"`
	Commission2Paid bool            `json:"commission2Paid"`
	SharedLink      string          `json:"sharedLink,omitempty"`
	Remarks         string          `json:"remarks,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Settlement is the next commission tranche an approval pays out.
type Settlement struct {
	Tranche   int
	Amount    decimal.Decimal
	NewStatus LeadStatus
}

// NextSettlement decides what approving the lead does right now.
//
//	pending,  commission1 unpaid -> pay commission1; approved if commission2 > 0, else completed
//	approved, commission2 unpaid -> pay commission2; completed
//	anything else                -> ErrNothingToSettle
func (l *Lead) NextSettlement() (Settlement, error) {
	switch {
	case l.Status == LeadPending && !l.Commission1Paid:
		next := LeadCompleted
		if l.Commission2.IsPositive() {
			next = LeadApproved
		}
		return Settlement{Tranche: 1, Amount: l.Commission1, NewStatus: next}, nil
	case l.Status == LeadApproved && !l.Commission2Paid:
		return Settlement{Tranche: 2, Amount: l.Commission2, NewStatus: LeadCompleted}, nil
	default:
		return Settlement{}, ErrNothingToSettle
	}
}

// ApplySettlement marks the tranche paid and advances the status.
func (l *Lead) ApplySettlement(s Settlement) {
	if s.Tranche == 1 {
		l.Commission1Paid = true
	} else {
		l.Commission2Paid = true
	}
	l.Status = s.NewStatus
}

func (l *Lead) Reject(reason string) error {
	if l.Status.Terminal() {
		return ErrLeadNotRejectable
	}
	l.Status = LeadRejected
	l.RejectionReason = reason
	return nil
}

// LeadStats counts leads per status.
type LeadStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Completed int `json:"completed"`
	Rejected  int `json:"rejected"`
}
