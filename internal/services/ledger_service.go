package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campaignwala/backend/internal/audit"
	"github.com/campaignwala/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var walletColumnNames = []string{
	"id", "user_id", "balance", "total_earned", "total_withdrawn", "version", "created_at", "updated_at",
}

var walletColumns = strings.Join(walletColumnNames, ", ")

var walletTransactionColumnNames = []string{
	"id", "wallet_id", "type", "amount", "description", "lead_id", "created_at",
}

// WalletLedger owns every wallet mutation. All balance changes lock the
// wallet row, append a transaction line and bump the row version in one
// database transaction.
type WalletLedger struct {
	db     *sql.DB
	audit  *audit.AuditLogger
	logger *zap.Logger
	now    func() time.Time
}

func NewWalletLedger(db *sql.DB, auditLogger *audit.AuditLogger, logger *zap.Logger) *WalletLedger {
	return &WalletLedger{
		db:     db,
		audit:  auditLogger,
		logger: logger.Named("ledger"),
		now:    time.Now,
	}
}

// Credit adds amount to the user's wallet, creating the wallet on first use.
func (l *WalletLedger) Credit(ctx context.Context, userID string, amount decimal.Decimal, description string, leadID *string) (*models.Wallet, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	wallet, err := l.CreditTx(ctx, tx, userID, amount, description, leadID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit credit: %w", err)
	}

	l.audit.LogCredit(userID, wallet.ID, amount, description)
	return wallet, nil
}

// CreditTx is Credit inside a caller-owned transaction.
func (l *WalletLedger) CreditTx(ctx context.Context, tx *sql.Tx, userID string, amount decimal.Decimal, description string, leadID *string) (*models.Wallet, error) {
	if !models.ValidAmount(amount) {
		return nil, models.ErrInvalidAmount
	}

	wallet, err := l.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if err := wallet.ApplyCredit(amount); err != nil {
		return nil, err
	}

	if err := l.appendTransaction(ctx, tx, wallet.ID, models.TransactionCredit, amount, description, leadID); err != nil {
		return nil, err
	}

	if err := l.updateWallet(ctx, tx, wallet); err != nil {
		return nil, err
	}

	l.logger.Info("wallet credited",
		zap.String("user_id", userID), zap.String("amount", amount.StringFixed(2)), zap.String("balance", wallet.Balance.StringFixed(2)))
	return wallet, nil
}

// Debit removes amount from the user's wallet. It fails with an
// *InsufficientBalanceError when the balance does not cover it.
func (l *WalletLedger) Debit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*models.Wallet, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	wallet, err := l.DebitTx(ctx, tx, userID, amount, description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit debit: %w", err)
	}

	l.audit.LogDebit(userID, wallet.ID, amount, description)
	return wallet, nil
}

// DebitTx is Debit inside a caller-owned transaction.
func (l *WalletLedger) DebitTx(ctx context.Context, tx *sql.Tx, userID string, amount decimal.Decimal, description string) (*models.Wallet, error) {
	if !models.ValidAmount(amount) {
		return nil, models.ErrInvalidAmount
	}

	wallet, err := l.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	available := wallet.Balance
	if err := wallet.ApplyDebit(amount); err != nil {
		if errors.Is(err, models.ErrInsufficientBalance) {
			return nil, &InsufficientBalanceError{Requested: amount, Available: available}
		}
		return nil, err
	}

	if err := l.appendTransaction(ctx, tx, wallet.ID, models.TransactionDebit, amount, description, nil); err != nil {
		return nil, err
	}

	if err := l.updateWallet(ctx, tx, wallet); err != nil {
		return nil, err
	}

	l.logger.Info("wallet debited",
		zap.String("user_id", userID), zap.String("amount", amount.StringFixed(2)), zap.String("balance", wallet.Balance.StringFixed(2)))
	return wallet, nil
}

// Get returns the user's wallet with its transaction log, newest first.
func (l *WalletLedger) Get(ctx context.Context, userID string) (*models.Wallet, error) {
	if err := l.ensureWallet(ctx, l.db, userID); err != nil {
		return nil, err
	}

	wallet, err := scanWallet(l.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	if err != nil {
		return nil, err
	}

	wallet.Transactions, err = l.transactions(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// Balance returns the current balance, zero when the user has no wallet yet.
func (l *WalletLedger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.db.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	return balance, err
}

// List returns every wallet for the admin overview, richest first.
func (l *WalletLedger) List(ctx context.Context, page PageRequest) ([]models.Wallet, Pagination, error) {
	page = page.normalize()

	var total int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wallets`).Scan(&total); err != nil {
		return nil, Pagination{}, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallets ORDER BY balance DESC, created_at DESC LIMIT $1 OFFSET $2`,
		page.Limit, page.offset())
	if err != nil {
		return nil, Pagination{}, err
	}
	defer rows.Close()

	wallets := []models.Wallet{}
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, Pagination{}, err
		}
		wallets = append(wallets, *w)
	}
	return wallets, newPagination(page, total), rows.Err()
}

func (l *WalletLedger) ensureWallet(ctx context.Context, q querier, userID string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("ensure wallet: %w", err)
	}
	return nil
}

func (l *WalletLedger) lockWallet(ctx context.Context, tx *sql.Tx, userID string) (*models.Wallet, error) {
	if err := l.ensureWallet(ctx, tx, userID); err != nil {
		return nil, err
	}

	return scanWallet(tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
}

func (l *WalletLedger) appendTransaction(ctx context.Context, tx *sql.Tx, walletID string, kind models.TransactionType, amount decimal.Decimal, description string, leadID *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (wallet_id, type, amount, description, lead_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		walletID, kind, amount, description, leadID, l.now())
	if err != nil {
		return fmt.Errorf("append wallet transaction: %w", err)
	}
	return nil
}

func (l *WalletLedger) updateWallet(ctx context.Context, tx *sql.Tx, w *models.Wallet) error {
	now := l.now()
	result, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $1, total_earned = $2, total_withdrawn = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`,
		w.Balance, w.TotalEarned, w.TotalWithdrawn, now, w.ID, w.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for wallet %s", w.ID)
	}

	w.Version++
	w.UpdatedAt = now
	return nil
}

func (l *WalletLedger) transactions(ctx context.Context, walletID string) ([]models.WalletTransaction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+strings.Join(walletTransactionColumnNames, ", ")+`
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := []models.WalletTransaction{}
	for rows.Next() {
		var (
			t      models.WalletTransaction
			leadID sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Description, &leadID, &t.CreatedAt); err != nil {
			return nil, err
		}
		if leadID.Valid {
			t.LeadID = &leadID.String
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.TotalEarned, &w.TotalWithdrawn, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
