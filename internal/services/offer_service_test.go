package services

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testOfferUUID = "5d2f8c1a-3b4e-4f60-8a7b-9c0d1e2f3a4b"

func newTestOfferService(t *testing.T) (*OfferService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	svc := NewOfferService(db, "https://app.campaignwaala.in/", zap.NewNop())
	svc.now = fixedClock
	return svc, mock, func() { db.Close() }
}

func offerRows(approved bool) *sqlmock.Rows {
	var approvedBy, approvedAt any
	if approved {
		approvedBy, approvedAt = testHRUser, fixedNow
	}
	return sqlmock.NewRows(offerColumnNames).AddRow(
		testOfferUUID, "OFF-M7ZK2Q1-AB12", "Zero Balance Savings", "Banking", "", "Pending",
		"100.00", "", "50.00", "", "", "", "", "",
		approved, approvedBy, approvedAt, "", fixedNow, fixedNow)
}

func strPtr(s string) *string { return &s }

func TestOfferService_Create(t *testing.T) {
	t.Run("stores commissions as decimals", func(t *testing.T) {
		svc, mock, done := newTestOfferService(t)
		defer done()

		c1, c2 := decimal.NewFromInt(100), decimal.NewFromInt(50)
		mock.ExpectQuery("INSERT INTO offers").
			WithArgs(sqlmock.AnyArg(), "Zero Balance Savings", "Banking", "", "Pending",
				dec("100"), "", dec("50"), "", "", "", "", "", sqlmock.AnyArg()).
			WillReturnRows(offerRows(false))

		offer, err := svc.Create(context.Background(), OfferInput{
			Name:        strPtr("Zero Balance Savings"),
			Category:    strPtr("Banking"),
			Commission1: &c1,
			Commission2: &c2,
		})
		require.NoError(t, err)
		assert.Equal(t, "OFF-M7ZK2Q1-AB12", offer.OffersID)
		assert.True(t, offer.Commission1.Equal(c1))
		assert.Nil(t, offer.ApprovedBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative commission", func(t *testing.T) {
		svc, mock, done := newTestOfferService(t)
		defer done()

		neg := decimal.NewFromInt(-1)
		_, err := svc.Create(context.Background(), OfferInput{
			Name: strPtr("Card"), Category: strPtr("Cards"), Commission1: &neg,
		})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate name", func(t *testing.T) {
		svc, mock, done := newTestOfferService(t)
		defer done()

		mock.ExpectQuery("INSERT INTO offers").
			WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "offers_name_key"})

		_, err := svc.Create(context.Background(), OfferInput{Name: strPtr("Zero Balance Savings"), Category: strPtr("Banking")})
		assert.ErrorIs(t, err, ErrOfferExists)
		assert.Equal(t, 409, StatusFor(err))
	})
}

func TestOfferService_Approve(t *testing.T) {
	t.Run("pending offer", func(t *testing.T) {
		svc, mock, done := newTestOfferService(t)
		defer done()

		mock.ExpectQuery("UPDATE offers SET is_approved = TRUE").
			WithArgs("OFF-M7ZK2Q1-AB12", testHRUser, sqlmock.AnyArg()).
			WillReturnRows(offerRows(true))

		offer, err := svc.Approve(context.Background(), "OFF-M7ZK2Q1-AB12", testHRUser)
		require.NoError(t, err)
		assert.True(t, offer.IsApproved)
		require.NotNil(t, offer.ApprovedBy)
		assert.Equal(t, testHRUser, *offer.ApprovedBy)
	})

	t.Run("already approved", func(t *testing.T) {
		svc, mock, done := newTestOfferService(t)
		defer done()

		mock.ExpectQuery("UPDATE offers SET is_approved = TRUE").
			WillReturnRows(sqlmock.NewRows(offerColumnNames))
		mock.ExpectQuery("SELECT (.+) FROM offers WHERE").
			WithArgs("OFF-M7ZK2Q1-AB12").
			WillReturnRows(offerRows(true))

		_, err := svc.Approve(context.Background(), "OFF-M7ZK2Q1-AB12", testHRUser)
		assert.ErrorIs(t, err, ErrOfferAlreadyDecided)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown offer", func(t *testing.T) {
		svc, mock, done := newTestOfferService(t)
		defer done()

		mock.ExpectQuery("UPDATE offers SET is_approved = TRUE").
			WillReturnRows(sqlmock.NewRows(offerColumnNames))
		mock.ExpectQuery("SELECT (.+) FROM offers WHERE").
			WillReturnRows(sqlmock.NewRows(offerColumnNames))

		_, err := svc.Approve(context.Background(), "missing", testHRUser)
		assert.ErrorIs(t, err, ErrOfferNotFound)
	})
}

func TestOfferService_RejectDefaultsReason(t *testing.T) {
	svc, mock, done := newTestOfferService(t)
	defer done()

	mock.ExpectQuery("UPDATE offers SET is_approved = FALSE").
		WithArgs(testOfferUUID, "No reason provided", sqlmock.AnyArg()).
		WillReturnRows(offerRows(false))

	_, err := svc.Reject(context.Background(), testOfferUUID, " ")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferService_List(t *testing.T) {
	svc, mock, done := newTestOfferService(t)
	defer done()

	approved := true
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM offers WHERE category = \\$1 AND is_approved = \\$2").
		WithArgs("Banking", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT (.+) FROM offers WHERE category = \\$1 AND is_approved = \\$2 ORDER BY name ASC LIMIT \\$3 OFFSET \\$4").
		WithArgs("Banking", true, 20, 20).
		WillReturnRows(offerRows(true))

	offers, page, err := svc.List(context.Background(), OfferFilter{
		Category:    "Banking",
		Approved:    &approved,
		SortBy:      "name",
		Order:       "asc",
		PageRequest: PageRequest{Page: 2, Limit: 20},
	})
	require.NoError(t, err)
	assert.Len(t, offers, 1)
	assert.Equal(t, Pagination{CurrentPage: 2, TotalPages: 1, Total: 1, Limit: 20}, page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferService_ShareLink(t *testing.T) {
	svc, mock, done := newTestOfferService(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM offers WHERE").
		WithArgs("OFF-M7ZK2Q1-AB12").
		WillReturnRows(offerRows(true))

	share, err := svc.ShareLink(context.Background(), "OFF-M7ZK2Q1-AB12", testHRUser)
	require.NoError(t, err)

	u, err := url.Parse(share.Link)
	require.NoError(t, err)
	assert.Equal(t, "app.campaignwaala.in", u.Host)
	assert.Equal(t, "/lead-form", u.Path)
	assert.Equal(t, testOfferUUID, u.Query().Get("offerId"))
	assert.Equal(t, testHRUser, u.Query().Get("hrUserId"))

	require.True(t, strings.HasPrefix(share.QRCode, "data:image/png;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(share.QRCode, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(raw[:4]))
}
