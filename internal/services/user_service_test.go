package services

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/campaignwala/backend/internal/config"
	"github.com/campaignwala/backend/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testArgon2 = config.Argon2Config{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32, SaltLength: 16}

func newTestUserService(t *testing.T) (*UserService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	svc := NewUserService(db, NewPasswordHasher(testArgon2), zap.NewNop())
	svc.now = fixedClock
	return svc, mock, func() { db.Close() }
}

// userRow returns one users row; overrides replace columns by name.
func userRow(overrides map[string]driver.Value) []driver.Value {
	defaults := map[string]driver.Value{
		"id": testHRUser, "phone_number": "9876543210", "name": "Priya Sharma", "email": "priya@example.com",
		"password": "", "role": "user", "is_verified": true, "is_active": true, "is_ex": false,
		"email_otp": "", "email_otp_expires": nil, "otp_attempts": 0, "last_otp_sent": nil,
		"first_name": "", "last_name": "", "dob": nil, "gender": "", "address1": "", "city": "", "state": "",
		"zip": "", "country": "India", "pan_number": "", "aadhaar_number": "", "pan_image": "", "aadhaar_image": "",
		"kyc_status": "not_submitted", "kyc_submitted_at": nil, "kyc_approved_at": nil, "kyc_rejected_at": nil,
		"kyc_rejection_reason": "", "bank_name": "", "account_holder_name": "", "account_number": "",
		"ifsc_code": "", "branch_address": "", "upi_id": "", "created_at": fixedNow, "updated_at": fixedNow,
	}
	row := make([]driver.Value, len(userColumnNames))
	for i, col := range userColumnNames {
		if v, ok := overrides[col]; ok {
			row[i] = v
		} else {
			row[i] = defaults[col]
		}
	}
	return row
}

func userRows(overrides map[string]driver.Value) *sqlmock.Rows {
	return sqlmock.NewRows(userColumnNames).AddRow(userRow(overrides)...)
}

func TestUserService_Create(t *testing.T) {
	t.Run("hashes the password", func(t *testing.T) {
		svc, mock, done := newTestUserService(t)
		defer done()

		mock.ExpectQuery("INSERT INTO users").
			WithArgs("9876543210", "Priya Sharma", "priya@example.com", sqlmock.AnyArg(), "user", true, fixedNow).
			WillReturnRows(userRows(nil))

		u, err := svc.Create(context.Background(), NewUser{
			PhoneNumber: "9876543210",
			Name:        "Priya Sharma",
			Email:       " Priya@Example.com ",
			Password:    "secret123",
			IsVerified:  true,
		})
		require.NoError(t, err)
		assert.Equal(t, models.RoleUser, u.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	for constraint, want := range map[string]error{
		"users_phone_number_key": ErrPhoneTaken,
		"users_email_unique":     ErrEmailTaken,
	} {
		t.Run(constraint, func(t *testing.T) {
			svc, mock, done := newTestUserService(t)
			defer done()

			mock.ExpectQuery("INSERT INTO users").
				WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: constraint})

			_, err := svc.Create(context.Background(), NewUser{PhoneNumber: "9876543210", Password: "secret123"})
			assert.ErrorIs(t, err, want)
			assert.Equal(t, 409, StatusFor(err))
		})
	}
}

func TestUserService_FindByPhone(t *testing.T) {
	svc, mock, done := newTestUserService(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE phone_number = \\$1").
		WithArgs("9876543210").
		WillReturnRows(userRows(map[string]driver.Value{
			"email_otp": "1234", "email_otp_expires": fixedNow, "otp_attempts": 2, "last_otp_sent": fixedNow,
		}))

	u, err := svc.FindByPhone(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, "1234", u.OTP)
	assert.Equal(t, 2, u.OTPAttempts)
	require.NotNil(t, u.OTPExpires)
	assert.Nil(t, u.DOB)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE phone_number = \\$1").
		WithArgs("9000000000").
		WillReturnRows(sqlmock.NewRows(userColumnNames))

	_, err = svc.FindByPhone(context.Background(), "9000000000")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_UpdateKYC(t *testing.T) {
	svc, mock, done := newTestUserService(t)
	defer done()

	first, last, pan, aadhaar, account := "Priya", "Sharma", "ABCDE1234F", "123412341234", "50100012345678"
	flatAccount := "0000"
	update := models.KYCUpdate{
		PersonalDetails:  &models.PersonalDetailsInput{FirstName: &first, LastName: &last},
		KYCDocuments:     &models.KYCDocumentsInput{PANNumber: &pan, AadhaarNumber: &aadhaar},
		BankDetailsInput: models.BankDetailsInput{AccountNumber: &flatAccount},
		BankDetails:      &models.BankDetailsInput{AccountNumber: &account},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id::text = \\$1 FOR UPDATE").
		WithArgs(testHRUser).
		WillReturnRows(userRows(map[string]driver.Value{"kyc_status": "rejected", "kyc_rejection_reason": "blurry"}))
	mock.ExpectExec("UPDATE users SET first_name = \\$1").
		WithArgs("Priya", "Sharma", nil, "", "", "", "", "", "India",
			"ABCDE1234F", "123412341234", "", "", "pending", fixedNow, nil, "",
			"", "", "50100012345678", "", "", "", fixedNow, testHRUser).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	view, err := svc.UpdateKYC(context.Background(), testHRUser, update)
	require.NoError(t, err)
	assert.Equal(t, models.KYCPending, view.KYCDetails.KYCStatus)
	assert.Equal(t, "50100012345678", view.BankDetails.AccountNumber)
	assert.Empty(t, view.KYCDetails.RejectionReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_DecideKYC(t *testing.T) {
	t.Run("approve pending", func(t *testing.T) {
		svc, mock, done := newTestUserService(t)
		defer done()

		mock.ExpectQuery("UPDATE users SET kyc_status = 'approved'").
			WithArgs(testHRUser, fixedNow).
			WillReturnRows(userRows(map[string]driver.Value{"kyc_status": "approved", "kyc_approved_at": fixedNow}))

		view, err := svc.ApproveKYC(context.Background(), testHRUser, "documents verified")
		require.NoError(t, err)
		assert.Equal(t, models.KYCApproved, view.KYCDetails.KYCStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("approve when not pending", func(t *testing.T) {
		svc, mock, done := newTestUserService(t)
		defer done()

		mock.ExpectQuery("UPDATE users SET kyc_status = 'approved'").
			WillReturnRows(sqlmock.NewRows(userColumnNames))
		mock.ExpectQuery("SELECT (.+) FROM users WHERE id::text = \\$1").
			WithArgs(testHRUser).
			WillReturnRows(userRows(map[string]driver.Value{"kyc_status": "approved"}))

		_, err := svc.ApproveKYC(context.Background(), testHRUser, "")
		assert.ErrorIs(t, err, ErrKYCNotPending)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reject needs a reason", func(t *testing.T) {
		svc, mock, done := newTestUserService(t)
		defer done()

		_, err := svc.RejectKYC(context.Background(), testHRUser, "")
		assert.ErrorIs(t, err, ErrReasonRequired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserService_ResetOTPAttempts(t *testing.T) {
	svc, mock, done := newTestUserService(t)
	defer done()

	mock.ExpectExec("UPDATE users SET otp_attempts = 0, last_otp_sent = NULL WHERE phone_number = \\$1").
		WithArgs("9876543210").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET otp_attempts = 0, last_otp_sent = NULL WHERE otp_attempts > 0").
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec("WHERE phone_number = \\$1").
		WithArgs("9000000000").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := svc.ResetOTPAttempts(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = svc.ResetOTPAttempts(context.Background(), "")
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	_, err = svc.ResetOTPAttempts(context.Background(), "9000000000")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_ConsumeOTP(t *testing.T) {
	svc, mock, done := newTestUserService(t)
	defer done()

	mock.ExpectExec("UPDATE users SET email_otp = '', email_otp_expires = NULL").
		WithArgs(fixedNow, testHRUser, "4821").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET email_otp = '', email_otp_expires = NULL").
		WithArgs(fixedNow, testHRUser, "4821").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := svc.consumeOTP(context.Background(), testHRUser, "4821")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.consumeOTP(context.Background(), testHRUser, "4821")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserService_List(t *testing.T) {
	svc, mock, done := newTestUserService(t)
	defer done()

	verified := true
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE role = \\$1 AND is_verified = \\$2 AND \\(name ILIKE \\$3").
		WithArgs("admin", true, "%pri%", "%pri%", "%pri%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT \\$4 OFFSET \\$5").
		WithArgs("admin", true, "%pri%", "%pri%", "%pri%", 10, 0).
		WillReturnRows(userRows(map[string]driver.Value{"role": "admin"}))

	users, page, err := svc.List(context.Background(), UserFilter{Role: models.RoleAdmin, IsVerified: &verified, Search: "pri"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin())
	assert.Equal(t, 1, page.TotalPages)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, _, err = svc.List(context.Background(), UserFilter{Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
