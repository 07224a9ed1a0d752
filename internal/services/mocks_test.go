package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/campaignwala/backend/internal/audit"
	"github.com/campaignwala/backend/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendOTP(ctx context.Context, to, name, code string, purpose notify.Purpose) error {
	args := m.Called(ctx, to, name, code, purpose)
	return args.Error(0)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendOTP(ctx context.Context, phoneNumber, code string) error {
	args := m.Called(ctx, phoneNumber, code)
	return args.Error(0)
}

// decimalArg matches a NUMERIC parameter by value rather than by formatting.
type decimalArg struct {
	want decimal.Decimal
}

func (a decimalArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	got, err := decimal.NewFromString(s)
	return err == nil && got.Equal(a.want)
}

func dec(s string) decimalArg {
	return decimalArg{want: decimal.RequireFromString(s)}
}

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestLedger(db *sql.DB) *WalletLedger {
	l := NewWalletLedger(db, testAudit(), zap.NewNop())
	l.now = fixedClock
	return l
}

func walletRows(id, userID, balance, earned, withdrawn string, version int) *sqlmock.Rows {
	return sqlmock.NewRows(walletColumnNames).
		AddRow(id, userID, balance, earned, withdrawn, version, fixedNow, fixedNow)
}

// expectCredit queues the statements CreditTx runs against a wallet holding balance/earned/withdrawn.
func expectCredit(mock sqlmock.Sqlmock, userID, balance, earned, withdrawn, amount string, leadID any) {
	mock.ExpectExec("INSERT INTO wallets \\(user_id\\) VALUES \\(\\$1\\) ON CONFLICT").
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM wallets WHERE user_id = \\$1 FOR UPDATE").
		WithArgs(userID).
		WillReturnRows(walletRows("wallet-"+userID, userID, balance, earned, withdrawn, 1))

	newBalance := decimal.RequireFromString(balance).Add(decimal.RequireFromString(amount))
	newEarned := decimal.RequireFromString(earned).Add(decimal.RequireFromString(amount))

	mock.ExpectExec("INSERT INTO wallet_transactions").
		WithArgs("wallet-"+userID, "credit", dec(amount), sqlmock.AnyArg(), leadID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE wallets SET balance = \\$1, total_earned = \\$2, total_withdrawn = \\$3, version = version \\+ 1").
		WithArgs(decimalArg{newBalance}, decimalArg{newEarned}, dec(withdrawn), sqlmock.AnyArg(), "wallet-"+userID, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func testAudit() *audit.AuditLogger {
	return audit.NewAuditLogger(zap.NewNop())
}
