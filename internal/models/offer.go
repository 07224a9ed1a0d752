package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Offer struct {
	ID                 string          `json:"id"`
	OffersID           string          `json:"offersId"`
	Name               string          `json:"name"`
	Category           string          `json:"category"`
	Description        string          `json:"description,omitempty"`
	LatestStage        string          `json:"latestStage"`
	Commission1        decimal.Decimal `json:"commission1"`
	Commission1Comment string          `json:"commission1Comment,omitempty"`
	Commission2        decimal.Decimal `json:"commission2"`
	Commission2Comment string          `json:"commission2Comment,omitempty"`
	Link               string          `json:"link,omitempty"`
	Image              string          `json:"image,omitempty"`
	VideoLink          string          `json:"videoLink,omitempty"`
	TermsAndConditions string          `json:"termsAndConditions,omitempty"`
	IsApproved         bool            `json:"isApproved"`
	ApprovedBy         *string         `json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time      `json:"approvedAt,omitempty"`
	RejectionReason    string          `json:"rejectionReason,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}
