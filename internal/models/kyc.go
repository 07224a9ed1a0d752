package models

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidDOB = errors.New("dob must be a date in YYYY-MM-DD format")

type PersonalDetailsInput struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	DOB       *string `json:"dob,omitempty"`
	Gender    *string `json:"gender,omitempty" validate:"omitempty,oneof=Male Female Other"`
	Address1  *string `json:"address1,omitempty"`
	City      *string `json:"city,omitempty"`
	State     *string `json:"state,omitempty"`
	Zip       *string `json:"zip,omitempty"`
	Country   *string `json:"country,omitempty"`
}

type KYCDocumentsInput struct {
	PANNumber     *string `json:"panNumber,omitempty"`
	AadhaarNumber *string `json:"aadhaarNumber,omitempty"`
	PANImage      *string `json:"panImage,omitempty"`
	AadhaarImage  *string `json:"aadhaarImage,omitempty"`
}

type BankDetailsInput struct {
	BankName          *string `json:"bankName,omitempty"`
	AccountHolderName *string `json:"accountHolderName,omitempty"`
	AccountNumber     *string `json:"accountNumber,omitempty"`
	IFSCCode          *string `json:"ifscCode,omitempty"`
	BranchAddress     *string `json:"branchAddress,omitempty"`
	UPIID             *string `json:"upiId,omitempty"`
}

// KYCUpdate accepts every section either flat at the top level or nested
// under its own key. When both forms carry the same field the nested value wins.
type KYCUpdate struct {
	PersonalDetailsInput
	KYCDocumentsInput
	BankDetailsInput

	PersonalDetails *PersonalDetailsInput `json:"personalDetails,omitempty"`
	KYCDocuments    *KYCDocumentsInput    `json:"kycDocuments,omitempty"`
	BankDetails     *BankDetailsInput     `json:"bankDetails,omitempty"`
}

func pick(nested, flat *string) *string {
	if nested != nil {
		return nested
	}
	return flat
}

// Resolve folds the nested and flat forms into one value per field.
func (k *KYCUpdate) Resolve() (PersonalDetailsInput, KYCDocumentsInput, BankDetailsInput) {
	p := k.PersonalDetailsInput
	if n := k.PersonalDetails; n != nil {
		p = PersonalDetailsInput{
			FirstName: pick(n.FirstName, p.FirstName),
			LastName:  pick(n.LastName, p.LastName),
			DOB:       pick(n.DOB, p.DOB),
			Gender:    pick(n.Gender, p.Gender),
			Address1:  pick(n.Address1, p.Address1),
			City:      pick(n.City, p.City),
			State:     pick(n.State, p.State),
			Zip:       pick(n.Zip, p.Zip),
			Country:   pick(n.Country, p.Country),
		}
	}

	d := k.KYCDocumentsInput
	if n := k.KYCDocuments; n != nil {
		d = KYCDocumentsInput{
			PANNumber:     pick(n.PANNumber, d.PANNumber),
			AadhaarNumber: pick(n.AadhaarNumber, d.AadhaarNumber),
			PANImage:      pick(n.PANImage, d.PANImage),
			AadhaarImage:  pick(n.AadhaarImage, d.AadhaarImage),
		}
	}

	b := k.BankDetailsInput
	if n := k.BankDetails; n != nil {
		b = BankDetailsInput{
			BankName:          pick(n.BankName, b.BankName),
			AccountHolderName: pick(n.AccountHolderName, b.AccountHolderName),
			AccountNumber:     pick(n.AccountNumber, b.AccountNumber),
			IFSCCode:          pick(n.IFSCCode, b.IFSCCode),
			BranchAddress:     pick(n.BranchAddress, b.BranchAddress),
			UPIID:             pick(n.UPIID, b.UPIID),
		}
	}

	return p, d, b
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func present(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}

// ApplyTo writes the update onto u. A submission carrying names, PAN, Aadhaar
// and an account number moves KYC to pending unless it is already approved.
func (k *KYCUpdate) ApplyTo(u *User, now time.Time) error {
	p, d, b := k.Resolve()

	if p.DOB != nil {
		if strings.TrimSpace(*p.DOB) == "" {
			u.DOB = nil
		} else {
			dob, err := time.Parse("2006-01-02", strings.TrimSpace(*p.DOB))
			if err != nil {
				return ErrInvalidDOB
			}
			u.DOB = &dob
		}
	}
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.Gender, p.Gender)
	set(&u.Address1, p.Address1)
	set(&u.City, p.City)
	set(&u.State, p.State)
	set(&u.Zip, p.Zip)
	set(&u.Country, p.Country)

	set(&u.KYC.PANNumber, d.PANNumber)
	set(&u.KYC.AadhaarNumber, d.AadhaarNumber)
	set(&u.KYC.PANImage, d.PANImage)
	set(&u.KYC.AadhaarImage, d.AadhaarImage)

	set(&u.Bank.BankName, b.BankName)
	set(&u.Bank.AccountHolderName, b.AccountHolderName)
	set(&u.Bank.AccountNumber, b.AccountNumber)
	set(&u.Bank.IFSCCode, b.IFSCCode)
	set(&u.Bank.BranchAddress, b.BranchAddress)
	set(&u.Bank.UPIID, b.UPIID)

	complete := present(p.FirstName) && present(p.LastName) &&
		present(d.PANNumber) && present(d.AadhaarNumber) && present(b.AccountNumber)
	if complete && u.KYC.KYCStatus != KYCApproved {
		u.KYC.KYCStatus = KYCPending
		u.KYC.SubmittedAt = &now
		u.KYC.RejectedAt = nil
		u.KYC.RejectionReason = ""
	}
	return nil
}
