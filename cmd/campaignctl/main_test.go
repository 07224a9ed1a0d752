package main

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/campaignwala/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) (*app, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a := &app{
		cfg: &config.Config{
			Argon2: config.Argon2Config{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32, SaltLength: 16},
		},
		logger: zap.NewNop(),
		openDB: func(context.Context) (*sql.DB, error) { return db, nil },
	}
	return a, mock
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckDB(t *testing.T) {
	a, mock := newTestApp(t)
	for i, table := range []string{"users", "offers", "leads", "wallets", "wallet_transactions", "withdrawals"} {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ` + table + `$`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(i + 1)))
	}

	out, err := run(t, a, "check-db")
	require.NoError(t, err)
	assert.Contains(t, out, "Database connection OK")
	assert.Regexp(t, `users\s+1\n`, out)
	assert.Regexp(t, `withdrawals\s+6\n`, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetOTPAttempts(t *testing.T) {
	t.Run("single user", func(t *testing.T) {
		a, mock := newTestApp(t)
		mock.ExpectExec(`UPDATE users SET otp_attempts = 0, last_otp_sent = NULL WHERE phone_number = \$1`).
			WithArgs("9876543210").
			WillReturnResult(sqlmock.NewResult(0, 1))

		out, err := run(t, a, "reset-otp-attempts", "9876543210")
		require.NoError(t, err)
		assert.Equal(t, "OTP attempts reset for 9876543210\n", out)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown phone", func(t *testing.T) {
		a, mock := newTestApp(t)
		mock.ExpectExec(`WHERE phone_number = \$1`).
			WithArgs("9000000000").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := run(t, a, "reset-otp-attempts", "9000000000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no user with phone number 9000000000")
	})

	t.Run("all users", func(t *testing.T) {
		a, mock := newTestApp(t)
		mock.ExpectExec(`WHERE otp_attempts > 0`).
			WillReturnResult(sqlmock.NewResult(0, 4))

		out, err := run(t, a, "reset-otp-attempts")
		require.NoError(t, err)
		assert.Equal(t, "OTP attempts reset for 4 users\n", out)
	})
}

func TestCreateAdmin_ValidatesFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing flags", []string{"create-admin"}, `required flag(s) "password", "phone" not set`},
		{"bad phone", []string{"create-admin", "--phone", "12345", "--password", "secret1"}, "phone must be a 10-digit number"},
		{"short password", []string{"create-admin", "--phone", "9876543210", "--password", "abc"}, "password must be at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newTestApp(t)
			_, err := run(t, a, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
