package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/campaignwala/backend/internal/audit"
	"github.com/campaignwala/backend/internal/models"
	"github.com/campaignwala/backend/internal/monitoring"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var leadColumnNames = []string{
	"id", "lead_id", "offer_id", "offer_name", "category", "hr_user_id", "hr_name", "hr_contact",
	"customer_name", "customer_contact", "status", "commission1", "commission2",
	"commission1_paid", "commission2_paid", "shared_link", "remarks", "rejection_reason",
	"created_at", "updated_at",
}

var leadColumns = strings.Join(leadColumnNames, ", ")

// leads are addressed by row id or by their LD- code
const leadMatch = `(id::text = $1 OR lead_id = $1)`

type LeadService struct {
	db     *sql.DB
	ledger *WalletLedger
	audit  *audit.AuditLogger
	logger *zap.Logger
	now    func() time.Time
}

// CreateLeadRequest is submitted by a customer through an HR user's share link.
// @Description Lead submission
type CreateLeadRequest struct {
	OfferID         string `json:"offerId" validate:"required" example:"OFF-M7ZK2Q1-AB12"`
	HRUserID        string `json:"hrUserId" validate:"required,uuid" example:"3f1c9a52-0d7e-4a57-9d43-8f1b6a0e2c11"`
	CustomerName    string `json:"customerName" validate:"required,min=2,max=120" example:"Ravi Kumar"`
	CustomerContact string `json:"customerContact" validate:"required,min=10,max=20" example:"9123456780"`
	SharedLink      string `json:"sharedLink,omitempty"`
	Remarks         string `json:"remarks,omitempty" validate:"max=1000"`
}

type LeadFilter struct {
	Status   models.LeadStatus
	Search   string
	HRUserID string
	SortBy   string
	Order    string
	PageRequest
}

// SettlementResult describes what one approval paid.
type SettlementResult struct {
	Lead            *models.Lead      `json:"lead"`
	CommissionPaid  decimal.Decimal   `json:"commissionPaid"`
	NewStatus       models.LeadStatus `json:"newStatus"`
	Commission1Paid bool              `json:"commission1Paid"`
	Commission2Paid bool              `json:"commission2Paid"`
}

func NewLeadService(db *sql.DB, ledger *WalletLedger, auditLogger *audit.AuditLogger, logger *zap.Logger) *LeadService {
	return &LeadService{
		db:     db,
		ledger: ledger,
		audit:  auditLogger,
		logger: logger.Named("leads"),
		now:    time.Now,
	}
}

// Create stores a pending lead, copying the offer's commissions and the HR
// user's name and contact as they are right now.
func (s *LeadService) Create(ctx context.Context, req CreateLeadRequest) (*models.Lead, error) {
	var (
		offerUUID, offerName, category string
		c1, c2                         decimal.Decimal
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, commission1, commission2
		FROM offers
		WHERE id::text = $1 OR offers_id = $1`, req.OfferID).
		Scan(&offerUUID, &offerName, &category, &c1, &c2)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}

	var hrName, firstName, lastName, hrContact string
	err = s.db.QueryRowContext(ctx, `
		SELECT name, first_name, last_name, phone_number
		FROM users
		WHERE id::text = $1 AND is_active = TRUE`, req.HRUserID).
		Scan(&hrName, &firstName, &lastName, &hrContact)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load hr user: %w", err)
	}
	if hrName == "" {
		hrName = strings.TrimSpace(firstName + " " + lastName)
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		now := s.now()
		lead, err := scanLead(s.db.QueryRowContext(ctx, `
			INSERT INTO leads (lead_id, offer_id, offer_name, category, hr_user_id, hr_name, hr_contact,
				customer_name, customer_contact, commission1, commission2, shared_link, remarks, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
			RETURNING `+leadColumns,
			newLeadID(), offerUUID, offerName, category, req.HRUserID, hrName, hrContact,
			strings.TrimSpace(req.CustomerName), strings.TrimSpace(req.CustomerContact), c1, c2,
			req.SharedLink, req.Remarks, now))
		if constraint, dup := uniqueConstraint(err); dup && constraint == "leads_lead_id_key" {
			s.logger.Warn("lead id collision, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert lead: %w", err)
		}

		s.logger.Info("lead created",
			zap.String("lead_id", lead.LeadID), zap.String("offer", offerName), zap.String("hr_user_id", req.HRUserID))
		return lead, nil
	}

	return nil, errors.New("could not allocate a unique lead id")
}

func (s *LeadService) Get(ctx context.Context, id string) (*models.Lead, error) {
	lead, err := scanLead(s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE `+leadMatch, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	return lead, err
}

var leadSortColumns = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"status":       "status",
	"customerName": "customer_name",
	"offerName":    "offer_name",
}

func (s *LeadService) List(ctx context.Context, f LeadFilter) ([]models.Lead, Pagination, error) {
	page := f.PageRequest.normalize()

	var where whereBuilder
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, Pagination{}, invalidInput("unknown lead status %q", f.Status)
		}
		where.add("status = ?", f.Status)
	}
	if f.HRUserID != "" {
		where.add("hr_user_id::text = ?", f.HRUserID)
	}
	if strings.TrimSpace(f.Search) != "" {
		p := likePattern(f.Search)
		where.add("(lead_id ILIKE ? OR customer_name ILIKE ? OR customer_contact ILIKE ? OR offer_name ILIKE ? OR hr_name ILIKE ?)", p, p, p, p, p)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, Pagination{}, err
	}

	limit, args := where.limitClause(page)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads`+where.String()+orderClause(f.SortBy, f.Order, leadSortColumns, "created_at")+limit,
		args...)
	if err != nil {
		return nil, Pagination{}, err
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, Pagination{}, err
		}
		leads = append(leads, *lead)
	}
	return leads, newPagination(page, total), rows.Err()
}

// Stats counts leads per status, for one HR user when hrUserID is set.
func (s *LeadService) Stats(ctx context.Context, hrUserID string) (*models.LeadStats, error) {
	var where whereBuilder
	if hrUserID != "" {
		where.add("hr_user_id::text = ?", hrUserID)
	}

	var st models.LeadStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'rejected')
		FROM leads`+where.String(), where.args...).
		Scan(&st.Total, &st.Pending, &st.Approved, &st.Completed, &st.Rejected)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Approve settles the next commission tranche. The lead row stays locked
// from the decision until commit, so concurrent approvals pay at most once.
func (s *LeadService) Approve(ctx context.Context, id string) (*SettlementResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lead, err := s.lockLead(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	settlement, err := lead.NextSettlement()
	if err != nil {
		return nil, err
	}

	if settlement.Amount.IsPositive() {
		description := fmt.Sprintf("Commission %d from lead %s - %s", settlement.Tranche, lead.LeadID, lead.OfferName)
		if _, err := s.ledger.CreditTx(ctx, tx, lead.HRUserID, settlement.Amount, description, &lead.ID); err != nil {
			s.audit.LogError(lead.LeadID, lead.HRUserID, err)
			return nil, fmt.Errorf("credit commission: %w", err)
		}
	}

	previous := lead.Status
	lead.ApplySettlement(settlement)
	lead.UpdatedAt = s.now()

	result, err := tx.ExecContext(ctx, `
		UPDATE leads
		SET status = $1, commission1_paid = $2, commission2_paid = $3, updated_at = $4
		WHERE id = $5 AND status = $6`,
		lead.Status, lead.Commission1Paid, lead.Commission2Paid, lead.UpdatedAt, lead.ID, previous)
	if err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil || n != 1 {
		return nil, fmt.Errorf("update lead %s: status changed concurrently", lead.LeadID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}

	if settlement.Amount.IsPositive() {
		tranche := strconv.Itoa(settlement.Tranche)
		monitoring.CommissionPayoutsTotal.WithLabelValues(tranche).Inc()
		monitoring.CommissionAmountTotal.WithLabelValues(tranche).Add(settlement.Amount.InexactFloat64())
		s.audit.LogSettlement(lead.LeadID, lead.HRUserID, settlement.Tranche, settlement.Amount, string(lead.Status))
	} else {
		s.logger.Info("lead advanced without payout",
			zap.String("lead_id", lead.LeadID), zap.Int("tranche", settlement.Tranche), zap.String("status", string(lead.Status)))
	}

	return &SettlementResult{
		Lead:            lead,
		CommissionPaid:  settlement.Amount,
		NewStatus:       lead.Status,
		Commission1Paid: lead.Commission1Paid,
		Commission2Paid: lead.Commission2Paid,
	}, nil
}

// Reject closes a pending or approved lead. Commission already paid stays paid.
func (s *LeadService) Reject(ctx context.Context, id, reason string) (*models.Lead, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lead, err := s.lockLead(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := lead.Reject(reason); err != nil {
		return nil, err
	}
	lead.UpdatedAt = s.now()

	if _, err := tx.ExecContext(ctx, `
		UPDATE leads SET status = $1, rejection_reason = $2, updated_at = $3 WHERE id = $4`,
		lead.Status, lead.RejectionReason, lead.UpdatedAt, lead.ID); err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("lead rejected", zap.String("lead_id", lead.LeadID), zap.String("reason", reason))
	return lead, nil
}

// @Description Lead notes update
type LeadUpdate struct {
	Status          *string `json:"status,omitempty" swaggerignore:"true"`
	Remarks         *string `json:"remarks,omitempty" validate:"omitempty,max=1000" example:"Customer asked for a callback"`
	RejectionReason *string `json:"rejectionReason,omitempty" validate:"omitempty,max=500"`
}

// Update edits the free-text fields of a lead. Status only moves through
// Approve and Reject, and a rejection reason only belongs on a rejected lead.
func (s *LeadService) Update(ctx context.Context, id string, upd LeadUpdate) (*models.Lead, error) {
	if upd.Status != nil {
		return nil, invalidInput("lead status changes go through approve or reject")
	}
	if upd.Remarks == nil && upd.RejectionReason == nil {
		return nil, invalidInput("nothing to update")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lead, err := s.lockLead(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if upd.Remarks != nil {
		lead.Remarks = strings.TrimSpace(*upd.Remarks)
	}
	if upd.RejectionReason != nil {
		if lead.Status != models.LeadRejected {
			return nil, invalidInput("only a rejected lead has a rejection reason")
		}
		reason := strings.TrimSpace(*upd.RejectionReason)
		if reason == "" {
			return nil, ErrReasonRequired
		}
		lead.RejectionReason = reason
	}
	lead.UpdatedAt = s.now()

	if _, err := tx.ExecContext(ctx, `
		UPDATE leads SET remarks = $1, rejection_reason = $2, updated_at = $3 WHERE id = $4`,
		lead.Remarks, lead.RejectionReason, lead.UpdatedAt, lead.ID); err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE `+leadMatch, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func (s *LeadService) lockLead(ctx context.Context, tx *sql.Tx, id string) (*models.Lead, error) {
	lead, err := scanLead(tx.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE `+leadMatch+` FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	return lead, err
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.LeadID, &l.OfferID, &l.OfferName, &l.Category, &l.HRUserID, &l.HRName, &l.HRContact,
		&l.CustomerName, &l.CustomerContact, &l.Status, &l.Commission1, &l.Commission2,
		&l.Commission1Paid, &l.Commission2Paid, &l.SharedLink, &l.Remarks, &l.RejectionReason,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
