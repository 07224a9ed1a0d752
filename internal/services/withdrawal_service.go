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
	"github.com/campaignwala/backend/internal/monitoring"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var withdrawalColumnNames = []string{
	"id", "withdrawal_id", "user_id", "amount", "status", "request_date", "processed_date", "processed_by",
	"reason", "rejection_reason", "account_holder_name", "account_number", "ifsc_code", "bank_name", "upi_id",
	"transaction_id", "remarks", "created_at", "updated_at",
}

var withdrawalColumns = strings.Join(withdrawalColumnNames, ", ")

const withdrawalMatch = `(id::text = $1 OR withdrawal_id = $1)`

const (
	reasonAwaitingApproval = "Awaiting admin approval"
	reasonProcessed        = "Processed successfully"
)

// processedError reports a withdrawal that has left the pending state.
type processedError struct {
	status models.WithdrawalStatus
}

func (e processedError) Error() string {
	return fmt.Sprintf("withdrawal is already %s", e.status)
}

func (e processedError) Unwrap() error {
	return ErrWithdrawalProcessed
}

type WithdrawalService struct {
	db     *sql.DB
	ledger *WalletLedger
	audit  *audit.AuditLogger
	logger *zap.Logger
	now    func() time.Time
}

// @Description Withdrawal request
type WithdrawalRequest struct {
	UserID      string                       `json:"userId,omitempty" validate:"omitempty,uuid"`
	Amount      decimal.Decimal              `json:"amount" swaggertype:"number" example:"500"`
	BankDetails models.WithdrawalBankDetails `json:"bankDetails"`
}

// @Description Withdrawal approval
type ApproveWithdrawalRequest struct {
	// AdminID is accepted from older clients and ignored; processedBy is
	// always the authenticated admin.
	AdminID       string `json:"adminId,omitempty" swaggerignore:"true"`
	TransactionID string `json:"transactionId,omitempty" validate:"max=100" example:"UTR123456789"`
	Remarks       string `json:"remarks,omitempty" validate:"max=1000"`
}

// @Description Withdrawal rejection
type RejectWithdrawalRequest struct {
	AdminID         string `json:"adminId,omitempty" swaggerignore:"true"`
	RejectionReason string `json:"rejectionReason" example:"Bank details do not match KYC"`
	Remarks         string `json:"remarks,omitempty" validate:"max=1000"`
}

type WithdrawalFilter struct {
	Status models.WithdrawalStatus
	UserID string
	Search string
	SortBy string
	Order  string
	PageRequest
}

func NewWithdrawalService(db *sql.DB, ledger *WalletLedger, auditLogger *audit.AuditLogger, logger *zap.Logger) *WithdrawalService {
	return &WithdrawalService{
		db:     db,
		ledger: ledger,
		audit:  auditLogger,
		logger: logger.Named("withdrawals"),
		now:    time.Now,
	}
}

// Request files a pending withdrawal. The balance is checked here and again,
// under lock, when an admin approves it.
func (s *WithdrawalService) Request(ctx context.Context, req WithdrawalRequest) (*models.Withdrawal, error) {
	if _, err := uuid.Parse(req.UserID); err != nil {
		return nil, invalidInput("invalid user id")
	}
	if !models.ValidAmount(req.Amount) {
		return nil, models.ErrInvalidAmount
	}
	amount := req.Amount

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, req.UserID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	balance, err := s.ledger.Balance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, &InsufficientBalanceError{Requested: amount, Available: balance}
	}

	b := req.BankDetails
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		now := s.now()
		w, err := scanWithdrawal(s.db.QueryRowContext(ctx, `
			INSERT INTO withdrawals (withdrawal_id, user_id, amount, status, request_date, reason,
				account_holder_name, account_number, ifsc_code, bank_name, upi_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $5, $5)
			RETURNING `+withdrawalColumns,
			newWithdrawalID(now), req.UserID, amount, models.WithdrawalPending, now, reasonAwaitingApproval,
			strings.TrimSpace(b.AccountHolderName), strings.TrimSpace(b.AccountNumber),
			strings.ToUpper(strings.TrimSpace(b.IFSCCode)), strings.TrimSpace(b.BankName), strings.TrimSpace(b.UPIID)))
		if _, dup := uniqueConstraint(err); dup {
			s.logger.Warn("withdrawal id collision, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert withdrawal: %w", err)
		}

		s.logger.Info("withdrawal requested",
			zap.String("withdrawal_id", w.WithdrawalID), zap.String("user_id", w.UserID), zap.String("amount", amount.StringFixed(2)))
		return w, nil
	}

	return nil, errors.New("could not allocate a unique withdrawal id")
}

// Approve debits the wallet and marks the withdrawal approved in one
// transaction. The debit re-checks the balance with the wallet row locked.
func (s *WithdrawalService) Approve(ctx context.Context, id, adminID string, req ApproveWithdrawalRequest) (*models.Withdrawal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	w, err := s.lockWithdrawal(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WithdrawalPending {
		return nil, processedError{status: w.Status}
	}

	description := fmt.Sprintf("Withdrawal approved - %s", w.WithdrawalID)
	if _, err := s.ledger.DebitTx(ctx, tx, w.UserID, w.Amount, description); err != nil {
		s.audit.LogError(w.WithdrawalID, w.UserID, err)
		return nil, err
	}

	now := s.now()
	w.Status = models.WithdrawalApproved
	w.ProcessedDate = &now
	w.ProcessedBy = optionalString(adminID)
	w.TransactionID = req.TransactionID
	w.Reason = reasonProcessed
	w.Remarks = req.Remarks
	w.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		UPDATE withdrawals
		SET status = $1, processed_date = $2, processed_by = $3, transaction_id = $4, reason = $5, remarks = $6, updated_at = $2
		WHERE id = $7`,
		w.Status, now, nullString(adminID), w.TransactionID, w.Reason, w.Remarks, w.ID); err != nil {
		return nil, fmt.Errorf("update withdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit withdrawal approval: %w", err)
	}

	monitoring.WithdrawalsProcessedTotal.WithLabelValues(string(w.Status)).Inc()
	s.audit.LogWithdrawal(w.WithdrawalID, w.UserID, w.Amount, string(w.Status), adminID)
	return w, nil
}

func (s *WithdrawalService) Reject(ctx context.Context, id, adminID string, req RejectWithdrawalRequest) (*models.Withdrawal, error) {
	reason := strings.TrimSpace(req.RejectionReason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrReasonRequired)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	w, err := s.lockWithdrawal(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if w.Status != models.WithdrawalPending {
		return nil, processedError{status: w.Status}
	}

	now := s.now()
	w.Status = models.WithdrawalRejected
	w.ProcessedDate = &now
	w.ProcessedBy = optionalString(adminID)
	w.RejectionReason = reason
	w.Reason = reason
	w.Remarks = req.Remarks
	w.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		UPDATE withdrawals
		SET status = $1, processed_date = $2, processed_by = $3, rejection_reason = $4, reason = $4, remarks = $5, updated_at = $2
		WHERE id = $6`,
		w.Status, now, nullString(adminID), reason, w.Remarks, w.ID); err != nil {
		return nil, fmt.Errorf("update withdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	monitoring.WithdrawalsProcessedTotal.WithLabelValues(string(w.Status)).Inc()
	s.audit.LogWithdrawal(w.WithdrawalID, w.UserID, w.Amount, string(w.Status), adminID)
	return w, nil
}

func (s *WithdrawalService) Get(ctx context.Context, id string) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(s.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE `+withdrawalMatch, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWithdrawalNotFound
	}
	return w, err
}

var withdrawalSortColumns = map[string]string{
	"requestDate":   "request_date",
	"amount":        "amount",
	"status":        "status",
	"processedDate": "processed_date",
	"createdAt":     "created_at",
}

func (s *WithdrawalService) List(ctx context.Context, f WithdrawalFilter) ([]models.Withdrawal, Pagination, error) {
	page := f.PageRequest.normalize()

	var where whereBuilder
	if f.Status != "" && f.Status != "all" {
		where.add("status = ?", f.Status)
	}
	if f.UserID != "" {
		where.add("user_id::text = ?", f.UserID)
	}
	if strings.TrimSpace(f.Search) != "" {
		p := likePattern(f.Search)
		where.add("(withdrawal_id ILIKE ? OR transaction_id ILIKE ? OR account_holder_name ILIKE ?)", p, p, p)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM withdrawals`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, Pagination{}, err
	}

	limit, args := where.limitClause(page)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals`+where.String()+
			orderClause(f.SortBy, f.Order, withdrawalSortColumns, "request_date")+limit,
		args...)
	if err != nil {
		return nil, Pagination{}, err
	}
	defer rows.Close()

	withdrawals := []models.Withdrawal{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, Pagination{}, err
		}
		withdrawals = append(withdrawals, *w)
	}
	return withdrawals, newPagination(page, total), rows.Err()
}

func (s *WithdrawalService) Stats(ctx context.Context) (*models.WithdrawalStats, error) {
	var st models.WithdrawalStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'approved'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0)
		FROM withdrawals`).
		Scan(&st.Total, &st.Pending, &st.Approved, &st.Rejected, &st.Processing, &st.TotalApprovedAmount, &st.TotalPendingAmount)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *WithdrawalService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM withdrawals WHERE `+withdrawalMatch, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrWithdrawalNotFound
	}
	return nil
}

func (s *WithdrawalService) lockWithdrawal(ctx context.Context, tx *sql.Tx, id string) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(tx.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE `+withdrawalMatch+` FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWithdrawalNotFound
	}
	return w, err
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanWithdrawal(row rowScanner) (*models.Withdrawal, error) {
	var (
		w             models.Withdrawal
		processedDate sql.NullTime
		processedBy   sql.NullString
	)
	err := row.Scan(&w.ID, &w.WithdrawalID, &w.UserID, &w.Amount, &w.Status, &w.RequestDate, &processedDate, &processedBy,
		&w.Reason, &w.RejectionReason, &w.BankDetails.AccountHolderName, &w.BankDetails.AccountNumber,
		&w.BankDetails.IFSCCode, &w.BankDetails.BankName, &w.BankDetails.UPIID,
		&w.TransactionID, &w.Remarks, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if processedDate.Valid {
		w.ProcessedDate = &processedDate.Time
	}
	if processedBy.Valid {
		w.ProcessedBy = &processedBy.String
	}
	return &w, nil
}
