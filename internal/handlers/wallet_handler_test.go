package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var walletColumns = []string{"id", "user_id", "balance", "total_earned", "total_withdrawn", "version", "created_at", "updated_at"}

func TestWalletHandler_GetWallet(t *testing.T) {
	t.Run("owner sees their wallet", func(t *testing.T) {
		f := newAPIFixture(t, regularUser, nil)

		f.db.ExpectExec("INSERT INTO wallets \\(user_id\\) VALUES \\(\\$1\\) ON CONFLICT").
			WithArgs(userUUID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		f.db.ExpectQuery("SELECT (.+) FROM wallets WHERE user_id = \\$1").
			WithArgs(userUUID).
			WillReturnRows(sqlmock.NewRows(walletColumns).AddRow("wallet-1", userUUID, "150.00", "150.00", "0.00", 2, testTime, testTime))
		f.db.ExpectQuery("SELECT (.+) FROM wallet_transactions WHERE wallet_id = \\$1").
			WithArgs("wallet-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_id", "type", "amount", "description", "lead_id", "created_at"}).
				AddRow(2, "wallet-1", "credit", "50.00", "Commission 2 for lead LD-AB12CD34", nil, testTime).
				AddRow(1, "wallet-1", "credit", "100.00", "Commission 1 for lead LD-AB12CD34", nil, testTime))

		code, resp := f.do(t, http.MethodGet, "/api/wallet/user/"+userUUID, nil)
		require.Equal(t, http.StatusOK, code)

		var wallet struct {
			Balance      float64          `json:"balance"`
			Transactions []map[string]any `json:"transactions"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &wallet))
		assert.Equal(t, 150.0, wallet.Balance)
		assert.Len(t, wallet.Transactions, 2)
		f.verify(t)
	})

	t.Run("other users are refused", func(t *testing.T) {
		f := newAPIFixture(t, regularUser, nil)

		code, resp := f.do(t, http.MethodGet, "/api/wallet/user/"+otherUUID, nil)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "Access denied", resp.Message)
		f.verify(t)
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newAPIFixture(t, adminUser, nil)

		code, resp := f.do(t, http.MethodGet, "/api/wallet/user/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid user ID", resp.Message)
	})
}

func TestWalletHandler_DebitInsufficientBalance(t *testing.T) {
	f := newAPIFixture(t, adminUser, nil)

	f.db.ExpectBegin()
	f.db.ExpectExec("INSERT INTO wallets").
		WithArgs(userUUID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.db.ExpectQuery("SELECT (.+) FROM wallets WHERE user_id = \\$1 FOR UPDATE").
		WithArgs(userUUID).
		WillReturnRows(sqlmock.NewRows(walletColumns).AddRow("wallet-1", userUUID, "150.00", "150.00", "0.00", 2, testTime, testTime))
	f.db.ExpectRollback()

	code, resp := f.do(t, http.MethodPost, "/api/wallet/debit",
		`{"userId":"`+userUUID+`","amount":400,"description":"Manual payout"}`)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Message, "insufficient balance")

	var amounts struct {
		Requested float64 `json:"requested"`
		Available float64 `json:"available"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &amounts))
	assert.Equal(t, 400.0, amounts.Requested)
	assert.Equal(t, 150.0, amounts.Available)
	f.verify(t)
}

func TestWalletHandler_CreditRejectsNonPositiveAmount(t *testing.T) {
	f := newAPIFixture(t, adminUser, nil)

	f.db.ExpectBegin()
	f.db.ExpectRollback()

	code, _ := f.do(t, http.MethodPost, "/api/wallet/credit",
		`{"userId":"`+userUUID+`","amount":"0","description":"Bonus"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	f.verify(t)
}
