package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campaignwala/backend/internal/models"
	"go.uber.org/zap"
)

var userColumnNames = []string{
	"id", "phone_number", "name", "email", "password", "role", "is_verified", "is_active", "is_ex",
	"email_otp", "email_otp_expires", "otp_attempts", "last_otp_sent",
	"first_name", "last_name", "dob", "gender", "address1", "city", "state", "zip", "country",
	"pan_number", "aadhaar_number", "pan_image", "aadhaar_image",
	"kyc_status", "kyc_submitted_at", "kyc_approved_at", "kyc_rejected_at", "kyc_rejection_reason",
	"bank_name", "account_holder_name", "account_number", "ifsc_code", "branch_address", "upi_id",
	"created_at", "updated_at",
}

var userColumns = strings.Join(userColumnNames, ", ")

type UserService struct {
	db     *sql.DB
	hasher *PasswordHasher
	logger *zap.Logger
	now    func() time.Time
}

type NewUser struct {
	PhoneNumber string
	Name        string
	Email       string
	Password    string
	Role        models.Role
	IsVerified  bool
}

// @Description Profile update
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=2,max=120" example:"Priya Sharma"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email" example:"priya@example.com"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"`
}

// KYCView groups the three KYC sections of a user.
type KYCView struct {
	UserID          string                 `json:"userId"`
	PhoneNumber     string                 `json:"phoneNumber"`
	Name            string                 `json:"name,omitempty"`
	Email           string                 `json:"email,omitempty"`
	PersonalDetails models.PersonalDetails `json:"personalDetails"`
	KYCDetails      models.KYCDetails      `json:"kycDetails"`
	BankDetails     models.BankDetails     `json:"bankDetails"`
}

type UserFilter struct {
	Role       models.Role
	IsVerified *bool
	Search     string
	PageRequest
}

func NewUserService(db *sql.DB, hasher *PasswordHasher, logger *zap.Logger) *UserService {
	return &UserService{
		db:     db,
		hasher: hasher,
		logger: logger.Named("users"),
		now:    time.Now,
	}
}

func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, s.db, `id::text = $1`, id)
}

func (s *UserService) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.findOne(ctx, s.db, `phone_number = $1`, phone)
}

func (s *UserService) findOne(ctx context.Context, q querier, cond string, arg any) (*models.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Create hashes the password and inserts the user.
func (s *UserService) Create(ctx context.Context, nu NewUser) (*models.User, error) {
	if nu.Role == "" {
		nu.Role = models.RoleUser
	}
	hash, err := s.hasher.Hash(nu.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (phone_number, name, email, password, role, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+userColumns,
		nu.PhoneNumber, strings.TrimSpace(nu.Name), strings.ToLower(strings.TrimSpace(nu.Email)), hash, nu.Role, nu.IsVerified, now))
	if err != nil {
		return nil, mapUserConstraint(err)
	}

	s.logger.Info("user created", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func mapUserConstraint(err error) error {
	if constraint, dup := uniqueConstraint(err); dup {
		switch constraint {
		case "users_phone_number_key":
			return ErrPhoneTaken
		case "users_email_unique":
			return ErrEmailTaken
		}
	}
	return err
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*models.User, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*upd.Email))
	}
	if upd.Password != nil {
		if u.Password, err = s.hasher.Hash(*upd.Password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	updated, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET name = $1, email = $2, password = $3, updated_at = $4
		WHERE id = $5
		RETURNING `+userColumns,
		u.Name, u.Email, u.Password, s.now(), u.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, mapUserConstraint(err)
	}
	return updated, nil
}

func (s *UserService) SetPassword(ctx context.Context, id, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.exec(ctx, `UPDATE users SET password = $1, updated_at = $2 WHERE id = $3`, hash, s.now(), id)
}

// MarkVerified flags the phone number as verified and clears the OTP counter.
func (s *UserService) MarkVerified(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE users SET is_verified = TRUE, otp_attempts = 0, updated_at = $1 WHERE id = $2`, s.now(), id)
}

// ResetOTPAttempts clears the OTP counter for one phone number, or for every
// user when phone is empty. It returns the number of users touched.
func (s *UserService) ResetOTPAttempts(ctx context.Context, phone string) (int64, error) {
	query := `UPDATE users SET otp_attempts = 0, last_otp_sent = NULL WHERE otp_attempts > 0`
	args := []any{}
	if phone != "" {
		query = `UPDATE users SET otp_attempts = 0, last_otp_sent = NULL WHERE phone_number = $1`
		args = append(args, phone)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if phone != "" && n == 0 {
		return 0, ErrUserNotFound
	}
	return n, nil
}

// saveOTPState persists the issued code together with the send counter.
func (s *UserService) saveOTPState(ctx context.Context, u *models.User) error {
	return s.exec(ctx, `
		UPDATE users SET email_otp = $1, email_otp_expires = $2, otp_attempts = $3, last_otp_sent = $4, updated_at = $5
		WHERE id = $6`,
		u.OTP, u.OTPExpires, u.OTPAttempts, u.LastOTPSent, s.now(), u.ID)
}

// recordOTPSend counts a code that was delivered outside the user record.
func (s *UserService) recordOTPSend(ctx context.Context, u *models.User) error {
	return s.exec(ctx, `UPDATE users SET otp_attempts = $1, last_otp_sent = $2 WHERE id = $3`,
		u.OTPAttempts, u.LastOTPSent, u.ID)
}

// consumeOTP clears the stored code only if it still equals code, so a code
// can be used once even under concurrent requests.
func (s *UserService) consumeOTP(ctx context.Context, userID, code string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET email_otp = '', email_otp_expires = NULL, updated_at = $1
		WHERE id = $2 AND email_otp = $3 AND email_otp <> ''`,
		s.now(), userID, code)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

func (s *UserService) clearOTP(ctx context.Context, userID string) error {
	return s.exec(ctx, `UPDATE users SET email_otp = '', email_otp_expires = NULL WHERE id = $1`, userID)
}

func (s *UserService) GetKYC(ctx context.Context, id string) (*KYCView, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return kycView(u), nil
}

func kycView(u *models.User) *KYCView {
	return &KYCView{
		UserID:          u.ID,
		PhoneNumber:     u.PhoneNumber,
		Name:            u.Name,
		Email:           u.Email,
		PersonalDetails: u.PersonalDetails,
		KYCDetails:      u.KYC,
		BankDetails:     u.Bank,
	}
}

// UpdateKYC merges the update into the user's KYC sections under a row lock.
func (s *UserService) UpdateKYC(ctx context.Context, id string, update models.KYCUpdate) (*KYCView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	u, err := s.findOne(ctx, tx, `id::text = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	previous := u.KYC.KYCStatus
	if err := update.ApplyTo(u, now); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET
			first_name = $1, last_name = $2, dob = $3, gender = $4, address1 = $5,
			city = $6, state = $7, zip = $8, country = $9,
			pan_number = $10, aadhaar_number = $11, pan_image = $12, aadhaar_image = $13,
			kyc_status = $14, kyc_submitted_at = $15, kyc_rejected_at = $16, kyc_rejection_reason = $17,
			bank_name = $18, account_holder_name = $19, account_number = $20, ifsc_code = $21,
			branch_address = $22, upi_id = $23, updated_at = $24
		WHERE id = $25`,
		u.FirstName, u.LastName, u.DOB, u.Gender, u.Address1,
		u.City, u.State, u.Zip, u.Country,
		u.KYC.PANNumber, u.KYC.AadhaarNumber, u.KYC.PANImage, u.KYC.AadhaarImage,
		u.KYC.KYCStatus, u.KYC.SubmittedAt, u.KYC.RejectedAt, u.KYC.RejectionReason,
		u.Bank.BankName, u.Bank.AccountHolderName, u.Bank.AccountNumber, u.Bank.IFSCCode,
		u.Bank.BranchAddress, u.Bank.UPIID, now, u.ID)
	if err != nil {
		return nil, fmt.Errorf("update kyc: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if previous != u.KYC.KYCStatus {
		s.logger.Info("kyc submitted", zap.String("user_id", u.ID), zap.String("status", string(u.KYC.KYCStatus)))
	}
	return kycView(u), nil
}

func (s *UserService) ApproveKYC(ctx context.Context, id, remarks string) (*KYCView, error) {
	now := s.now()
	u, err := s.decideKYC(ctx, id, `
		UPDATE users SET kyc_status = 'approved', kyc_approved_at = $2, kyc_rejection_reason = '', updated_at = $2
		WHERE id::text = $1 AND kyc_status = 'pending'
		RETURNING `+userColumns, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("kyc approved", zap.String("user_id", u.ID), zap.String("remarks", remarks))
	return kycView(u), nil
}

func (s *UserService) RejectKYC(ctx context.Context, id, reason string) (*KYCView, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrReasonRequired)
	}

	u, err := s.decideKYC(ctx, id, `
		UPDATE users SET kyc_status = 'rejected', kyc_rejected_at = $2, kyc_rejection_reason = $3, updated_at = $2
		WHERE id::text = $1 AND kyc_status = 'pending'
		RETURNING `+userColumns, s.now(), reason)
	if err != nil {
		return nil, err
	}

	s.logger.Info("kyc rejected", zap.String("user_id", u.ID), zap.String("reason", reason))
	return kycView(u), nil
}

// decideKYC runs a pending-only status change and tells a missing user
// apart from one whose KYC is not awaiting review.
func (s *UserService) decideKYC(ctx context.Context, id, query string, args ...any) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, append([]any{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrKYCNotPending
	}
	return u, err
}

func (s *UserService) PendingKYC(ctx context.Context, search string, page PageRequest) ([]KYCView, Pagination, error) {
	users, pagination, err := s.list(ctx, func(w *whereBuilder) {
		w.add("kyc_status = ?", models.KYCPending)
		if strings.TrimSpace(search) != "" {
			p := likePattern(search)
			w.add("(name ILIKE ? OR email ILIKE ? OR phone_number ILIKE ? OR pan_number ILIKE ?)", p, p, p, p)
		}
	}, "kyc_submitted_at", page)
	if err != nil {
		return nil, Pagination{}, err
	}

	views := make([]KYCView, 0, len(users))
	for i := range users {
		views = append(views, *kycView(&users[i]))
	}
	return views, pagination, nil
}

func (s *UserService) List(ctx context.Context, f UserFilter) ([]models.User, Pagination, error) {
	if f.Role != "" && f.Role != models.RoleUser && f.Role != models.RoleAdmin {
		return nil, Pagination{}, invalidInput("unknown role %q", f.Role)
	}
	return s.list(ctx, func(w *whereBuilder) {
		if f.Role != "" {
			w.add("role = ?", f.Role)
		}
		if f.IsVerified != nil {
			w.add("is_verified = ?", *f.IsVerified)
		}
		if strings.TrimSpace(f.Search) != "" {
			p := likePattern(f.Search)
			w.add("(name ILIKE ? OR email ILIKE ? OR phone_number ILIKE ?)", p, p, p)
		}
	}, "created_at", f.PageRequest)
}

func (s *UserService) list(ctx context.Context, filter func(*whereBuilder), orderBy string, page PageRequest) ([]models.User, Pagination, error) {
	page = page.normalize()

	var where whereBuilder
	filter(&where)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where.String(), where.args...).Scan(&total); err != nil {
		return nil, Pagination{}, err
	}

	limit, args := where.limitClause(page)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users`+where.String()+` ORDER BY `+orderBy+` DESC`+limit, args...)
	if err != nil {
		return nil, Pagination{}, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, Pagination{}, err
		}
		users = append(users, *u)
	}
	return users, newPagination(page, total), rows.Err()
}

func (s *UserService) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, invalidInput("role must be user or admin")
	}
	return s.updateReturning(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id::text = $1 RETURNING `+userColumns,
		id, role, s.now())
}

func (s *UserService) ToggleStatus(ctx context.Context, id string) (*models.User, error) {
	return s.updateReturning(ctx, `UPDATE users SET is_active = NOT is_active, updated_at = $2 WHERE id::text = $1 RETURNING `+userColumns,
		id, s.now())
}

// MarkEx flags a former member and deactivates the account.
func (s *UserService) MarkEx(ctx context.Context, id string) (*models.User, error) {
	return s.updateReturning(ctx, `UPDATE users SET is_ex = TRUE, is_active = FALSE, updated_at = $2 WHERE id::text = $1 RETURNING `+userColumns,
		id, s.now())
}

func (s *UserService) updateReturning(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id::text = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return invalidInput("user has leads and cannot be deleted; mark the account as ex instead")
		}
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) Stats(ctx context.Context) (*models.UserStats, error) {
	var st models.UserStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE is_verified),
			COUNT(*) FILTER (WHERE role = 'admin'),
			COUNT(*) FILTER (WHERE is_ex),
			COUNT(*) FILTER (WHERE kyc_status = 'pending'),
			COUNT(*) FILTER (WHERE kyc_status = 'approved'),
			COUNT(*) FILTER (WHERE kyc_status = 'rejected')
		FROM users`).
		Scan(&st.TotalUsers, &st.ActiveUsers, &st.VerifiedUsers, &st.AdminUsers, &st.ExUsers,
			&st.KYCPending, &st.KYCApproved, &st.KYCRejected)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *UserService) exec(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                                      models.User
		otpExpires, lastOTPSent, dob           sql.NullTime
		kycSubmitted, kycApproved, kycRejected sql.NullTime
	)
	err := row.Scan(&u.ID, &u.PhoneNumber, &u.Name, &u.Email, &u.Password, &u.Role, &u.IsVerified, &u.IsActive, &u.IsEx,
		&u.OTP, &otpExpires, &u.OTPAttempts, &lastOTPSent,
		&u.FirstName, &u.LastName, &dob, &u.Gender, &u.Address1, &u.City, &u.State, &u.Zip, &u.Country,
		&u.KYC.PANNumber, &u.KYC.AadhaarNumber, &u.KYC.PANImage, &u.KYC.AadhaarImage,
		&u.KYC.KYCStatus, &kycSubmitted, &kycApproved, &kycRejected, &u.KYC.RejectionReason,
		&u.Bank.BankName, &u.Bank.AccountHolderName, &u.Bank.AccountNumber, &u.Bank.IFSCCode, &u.Bank.BranchAddress, &u.Bank.UPIID,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.OTPExpires = timePtr(otpExpires)
	u.LastOTPSent = timePtr(lastOTPSent)
	u.DOB = timePtr(dob)
	u.KYC.SubmittedAt = timePtr(kycSubmitted)
	u.KYC.ApprovedAt = timePtr(kycApproved)
	u.KYC.RejectedAt = timePtr(kycRejected)
	return &u, nil
}
