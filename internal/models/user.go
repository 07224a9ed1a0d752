package models

import (
	"crypto/subtle"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type KYCStatus string

const (
	KYCNotSubmitted KYCStatus = "not_submitted"
	KYCPending      KYCStatus = "pending"
	KYCApproved     KYCStatus = "approved"
	KYCRejected     KYCStatus = "rejected"
)

type PersonalDetails struct {
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	DOB       *time.Time `json:"dob,omitempty"`
	Gender    string     `json:"gender"`
	Address1  string     `json:"address1"`
	City      string     `json:"city"`
	State     string     `json:"state"`
	Zip       string     `json:"zip"`
	Country   string     `json:"country"`
}

type KYCDetails struct {
	PANNumber       string     `json:"panNumber"`
	AadhaarNumber   string     `json:"aadhaarNumber"`
	PANImage        string     `json:"panImage"`
	AadhaarImage    string     `json:"aadhaarImage"`
	KYCStatus       KYCStatus  `json:"kycStatus"`
	SubmittedAt     *time.Time `json:"kycSubmittedDate,omitempty"`
	ApprovedAt      *time.Time `json:"kycApprovedDate,omitempty"`
	RejectedAt      *time.Time `json:"kycRejectedDate,omitempty"`
	RejectionReason string     `json:"kycRejectionReason,omitempty"`
}

type BankDetails struct {
	BankName          string `json:"bankName"`
	AccountHolderName string `json:"accountHolderName"`
	AccountNumber     string `json:"accountNumber"`
	IFSCCode          string `json:"ifscCode"`
	BranchAddress     string `json:"branchAddress"`
	UPIID             string `json:"upiId"`
}

type User struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber" example:"9876543210"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"-"`
	Role        Role   `json:"role"`
	IsVerified  bool   `json:"isVerified"`
	IsActive    bool   `json:"isActive"`
	IsEx        bool   `json:"isEx"`

	OTP         string     `json:"-"`
	OTPExpires  *time.Time `json:"-"`
	OTPAttempts int        `json:"-"`
	LastOTPSent *time.Time `json:"-"`

	PersonalDetails
	KYC  KYCDetails  `json:"kycDetails"`
	Bank BankDetails `json:"bankDetails"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanSendOTP reports whether another code may be sent at now. The counter
// starts over once the window has passed since the last send.
func (u *User) CanSendOTP(now time.Time, max int, window time.Duration) bool {
	if u.LastOTPSent != nil && now.Sub(*u.LastOTPSent) > window {
		u.OTPAttempts = 0
	}
	return u.OTPAttempts < max
}

func (u *User) RecordOTPSent(code string, now time.Time, ttl time.Duration) {
	expires := now.Add(ttl)
	u.OTP = code
	u.OTPExpires = &expires
	u.OTPAttempts++
	u.LastOTPSent = &now
}

// CheckOTP compares code with the stored one. A mismatch is reported before expiry.
func (u *User) CheckOTP(code string, now time.Time) error {
	if u.OTP == "" || subtle.ConstantTimeCompare([]byte(u.OTP), []byte(code)) != 1 {
		return ErrInvalidOTP
	}
	if u.OTPExpires == nil || now.After(*u.OTPExpires) {
		return ErrOTPExpired
	}
	return nil
}

func (u *User) ClearOTP() {
	u.OTP = ""
	u.OTPExpires = nil
}

type UserStats struct {
	TotalUsers    int `json:"totalUsers"`
	ActiveUsers   int `json:"activeUsers"`
	VerifiedUsers int `json:"verifiedUsers"`
	AdminUsers    int `json:"adminUsers"`
	ExUsers       int `json:"exUsers"`
	KYCPending    int `json:"kycPending"`
	KYCApproved   int `json:"kycApproved"`
	KYCRejected   int `json:"kycRejected"`
}
