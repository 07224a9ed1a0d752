package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/url"
	"strings"
	"time"

	"github.com/campaignwala/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

var offerColumnNames = []string{
	"id", "offers_id", "name", "category", "description", "latest_stage",
	"commission1", "commission1_comment", "commission2", "commission2_comment",
	"link", "image", "video_link", "terms_and_conditions",
	"is_approved", "approved_by", "approved_at", "rejection_reason", "created_at", "updated_at",
}

var offerColumns = strings.Join(offerColumnNames, ", ")

const offerMatch = `(id::text = $1 OR offers_id = $1)`

const qrCodeSize = 256

type OfferService struct {
	db      *sql.DB
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// OfferInput is the admin payload for creating or editing an offer.
// Commissions accept JSON numbers or numeric strings.
// @Description Offer create/update payload
type OfferInput struct {
	Name               *string          `json:"name" validate:"omitempty,min=2,max=200" example:"Zero Balance Savings"`
	Category           *string          `json:"category" validate:"omitempty,min=2,max=100" example:"Banking"`
	Description        *string          `json:"description" validate:"omitempty,max=1000"`
	LatestStage        *string          `json:"latestStage" validate:"omitempty,oneof=Upload Number Pending Completed"`
	Commission1        *decimal.Decimal `json:"commission1" swaggertype:"number" example:"100"`
	Commission1Comment *string          `json:"commission1Comment"`
	Commission2        *decimal.Decimal `json:"commission2" swaggertype:"number" example:"50"`
	Commission2Comment *string          `json:"commission2Comment"`
	Link               *string          `json:"link" validate:"omitempty,url"`
	Image              *string          `json:"image"`
	VideoLink          *string          `json:"videoLink" validate:"omitempty,url"`
	TermsAndConditions *string          `json:"termsAndConditions" validate:"omitempty,max=5000"`
}

type OfferFilter struct {
	Category string
	Approved *bool
	Search   string
	SortBy   string
	Order    string
	PageRequest
}

type OfferStats struct {
	Total      int             `json:"total"`
	Approved   int             `json:"approved"`
	Pending    int             `json:"pending"`
	ByCategory []CategoryCount `json:"byCategory"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ShareLink is what an HR user hands to a customer.
type ShareLink struct {
	OfferID string `json:"offerId"`
	Link    string `json:"link"`
	QRCode  string `json:"qrCode"`
}

func NewOfferService(db *sql.DB, publicBaseURL string, logger *zap.Logger) *OfferService {
	return &OfferService{
		db:      db,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  logger.Named("offers"),
		now:     time.Now,
	}
}

func (in *OfferInput) validateCommissions() error {
	if in.Commission1 != nil && in.Commission1.IsNegative() {
		return invalidInput("commission1 cannot be negative")
	}
	if in.Commission2 != nil && in.Commission2.IsNegative() {
		return invalidInput("commission2 cannot be negative")
	}
	return nil
}

func (s *OfferService) Create(ctx context.Context, in OfferInput) (*models.Offer, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" || in.Category == nil || strings.TrimSpace(*in.Category) == "" {
		return nil, invalidInput("name and category are required")
	}
	if err := in.validateCommissions(); err != nil {
		return nil, err
	}

	o := models.Offer{
		Name:        strings.TrimSpace(*in.Name),
		Category:    strings.TrimSpace(*in.Category),
		LatestStage: "Pending",
	}
	in.applyTo(&o)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		now := s.now()
		offer, err := scanOffer(s.db.QueryRowContext(ctx, `
			INSERT INTO offers (offers_id, name, category, description, latest_stage,
				commission1, commission1_comment, commission2, commission2_comment,
				link, image, video_link, terms_and_conditions, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
			RETURNING `+offerColumns,
			newOffersID(now), o.Name, o.Category, o.Description, o.LatestStage,
			o.Commission1, o.Commission1Comment, o.Commission2, o.Commission2Comment,
			o.Link, o.Image, o.VideoLink, o.TermsAndConditions, now))
		if constraint, dup := uniqueConstraint(err); dup {
			if constraint == "offers_name_key" {
				return nil, ErrOfferExists
			}
			s.logger.Warn("offer id collision, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert offer: %w", err)
		}

		s.logger.Info("offer created", zap.String("offers_id", offer.OffersID), zap.String("name", offer.Name))
		return offer, nil
	}

	return nil, errors.New("could not allocate a unique offer id")
}

func (in *OfferInput) applyTo(o *models.Offer) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&o.Name, in.Name)
	set(&o.Category, in.Category)
	set(&o.Description, in.Description)
	set(&o.LatestStage, in.LatestStage)
	set(&o.Commission1Comment, in.Commission1Comment)
	set(&o.Commission2Comment, in.Commission2Comment)
	set(&o.Link, in.Link)
	set(&o.Image, in.Image)
	set(&o.VideoLink, in.VideoLink)
	set(&o.TermsAndConditions, in.TermsAndConditions)
	if in.Commission1 != nil {
		o.Commission1 = in.Commission1.Round(2)
	}
	if in.Commission2 != nil {
		o.Commission2 = in.Commission2.Round(2)
	}
}

func (s *OfferService) Get(ctx context.Context, id string) (*models.Offer, error) {
	offer, err := scanOffer(s.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE `+offerMatch, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOfferNotFound
	}
	return offer, err
}

var offerSortColumns = map[string]string{
	"createdAt":   "created_at",
	"name":        "name",
	"category":    "category",
	"commission1": "commission1",
}

func (s *OfferService) List(ctx context.Context, f OfferFilter) ([]models.Offer, Pagination, error) {
	page := f.PageRequest.normalize()

	var where whereBuilder
	if f.Category != "" && f.Category != "all" {
		where.add("category = ?", f.Category)
	}
	if f.Approved != nil {
		where.add("is_approved = ?", *f.Approved)
	}
	if strings.TrimSpace(f.Search) != "" {
		p := likePattern(f.Search)
		where.add("(name ILIKE ? OR description ILIKE ? OR offers_id ILIKE ?)", p, p, p)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offers`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, Pagination{}, err
	}

	limit, args := where.limitClause(page)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+offerColumns+` FROM offers`+where.String()+orderClause(f.SortBy, f.Order, offerSortColumns, "created_at")+limit,
		args...)
	if err != nil {
		return nil, Pagination{}, err
	}
	defer rows.Close()

	offers := []models.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, Pagination{}, err
		}
		offers = append(offers, *o)
	}
	return offers, newPagination(page, total), rows.Err()
}

// Update applies the fields present in the input.
func (s *OfferService) Update(ctx context.Context, id string, in OfferInput) (*models.Offer, error) {
	if err := in.validateCommissions(); err != nil {
		return nil, err
	}

	offer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(offer)
	if offer.Name == "" || offer.Category == "" {
		return nil, invalidInput("name and category cannot be empty")
	}

	updated, err := scanOffer(s.db.QueryRowContext(ctx, `
		UPDATE offers
		SET name = $1, category = $2, description = $3, latest_stage = $4,
			commission1 = $5, commission1_comment = $6, commission2 = $7, commission2_comment = $8,
			link = $9, image = $10, video_link = $11, terms_and_conditions = $12, updated_at = $13
		WHERE id = $14
		RETURNING `+offerColumns,
		offer.Name, offer.Category, offer.Description, offer.LatestStage,
		offer.Commission1, offer.Commission1Comment, offer.Commission2, offer.Commission2Comment,
		offer.Link, offer.Image, offer.VideoLink, offer.TermsAndConditions, s.now(), offer.ID))
	if constraint, dup := uniqueConstraint(err); dup && constraint == "offers_name_key" {
		return nil, ErrOfferExists
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update offer: %w", err)
	}
	return updated, nil
}

func (s *OfferService) Approve(ctx context.Context, id, adminID string) (*models.Offer, error) {
	offer, err := scanOffer(s.db.QueryRowContext(ctx, `
		UPDATE offers
		SET is_approved = TRUE, approved_by = $2, approved_at = $3, rejection_reason = '', updated_at = $3
		WHERE `+offerMatch+` AND is_approved = FALSE
		RETURNING `+offerColumns,
		id, nullString(adminID), s.now()))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrOfferAlreadyDecided
	}
	if err != nil {
		return nil, fmt.Errorf("approve offer: %w", err)
	}

	s.logger.Info("offer approved", zap.String("offers_id", offer.OffersID), zap.String("admin_id", adminID))
	return offer, nil
}

func (s *OfferService) Reject(ctx context.Context, id, reason string) (*models.Offer, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "No reason provided"
	}

	offer, err := scanOffer(s.db.QueryRowContext(ctx, `
		UPDATE offers
		SET is_approved = FALSE, approved_by = NULL, approved_at = NULL, rejection_reason = $2, updated_at = $3
		WHERE `+offerMatch+`
		RETURNING `+offerColumns,
		id, reason, s.now()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reject offer: %w", err)
	}

	s.logger.Info("offer rejected", zap.String("offers_id", offer.OffersID), zap.String("reason", reason))
	return offer, nil
}

func (s *OfferService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM offers WHERE `+offerMatch, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return invalidInput("offer has leads and cannot be deleted")
		}
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrOfferNotFound
	}
	return nil
}

func (s *OfferService) Stats(ctx context.Context) (*OfferStats, error) {
	var st OfferStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_approved),
			COUNT(*) FILTER (WHERE NOT is_approved)
		FROM offers`).Scan(&st.Total, &st.Approved, &st.Pending)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM offers GROUP BY category ORDER BY COUNT(*) DESC, category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st.ByCategory = []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		st.ByCategory = append(st.ByCategory, c)
	}
	return &st, rows.Err()
}

// ShareLink builds the lead-form link for an offer on behalf of an HR user,
// with a PNG QR code of the same link.
func (s *OfferService) ShareLink(ctx context.Context, offerID, hrUserID string) (*ShareLink, error) {
	offer, err := s.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("offerId", offer.ID)
	q.Set("hrUserId", hrUserID)
	link := s.baseURL + "/lead-form?" + q.Encode()

	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(qrCodeSize)); err != nil {
		return nil, err
	}

	return &ShareLink{
		OfferID: offer.ID,
		Link:    link,
		QRCode:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanOffer(row rowScanner) (*models.Offer, error) {
	var (
		o          models.Offer
		approvedBy sql.NullString
		approvedAt sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OffersID, &o.Name, &o.Category, &o.Description, &o.LatestStage,
		&o.Commission1, &o.Commission1Comment, &o.Commission2, &o.Commission2Comment,
		&o.Link, &o.Image, &o.VideoLink, &o.TermsAndConditions,
		&o.IsApproved, &approvedBy, &approvedAt, &o.RejectionReason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if approvedBy.Valid {
		o.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		o.ApprovedAt = &approvedAt.Time
	}
	return &o, nil
}
