package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

const pgUniqueViolation = "23505"

const accountColumns = `
	id, email, password_hash, display_name, role, verified,
	verification_code, verification_expires_at, reset_token, reset_expires_at,
	has_active_subscription, current_plan, subscription_expires_at, free_usage_count,
	last_login_at, created_at, updated_at`

// Postgres is the AccountStore backed by database/sql and lib/pq.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open, migrated database.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var (
		a                  models.Account
		verificationCode   sql.NullString
		verificationExpiry sql.NullTime
		resetToken         sql.NullString
		resetExpiry        sql.NullTime
		plan               sql.NullString
		subExpiry          sql.NullTime
		lastLogin          sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&a.DisplayName,
		&a.Role,
		&a.Verified,
		&verificationCode,
		&verificationExpiry,
		&resetToken,
		&resetExpiry,
		&a.HasActiveSubscription,
		&plan,
		&subExpiry,
		&a.FreeUsageCount,
		&lastLogin,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, err
	}
	a.VerificationCode = verificationCode.String
	a.VerificationExpiresAt = nullTimePtr(verificationExpiry)
	a.ResetToken = resetToken.String
	a.ResetExpiresAt = nullTimePtr(resetExpiry)
	if plan.Valid && plan.String != "" {
		p := models.Plan(plan.String)
		a.CurrentPlan = &p
	}
	a.SubscriptionExpiresAt = nullTimePtr(subExpiry)
	a.LastLoginAt = nullTimePtr(lastLogin)
	return a, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (p *Postgres) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.Role == "" {
		account.Role = models.RoleClient
	}
	account.Email = normalizeEmail(account.Email)

	err := p.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, display_name, role, verified,
			verification_code, verification_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at;
	`,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.DisplayName,
		account.Role,
		account.Verified,
		nullIfEmpty(account.VerificationCode),
		account.VerificationExpiresAt,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (p *Postgres) FindByID(ctx context.Context, id string) (models.Account, error) {
	if !validID(id) {
		return models.Account{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1;`, id)
	return scanAccount(row)
}

func (p *Postgres) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1;`, normalizeEmail(email))
	return scanAccount(row)
}

func (p *Postgres) FindByVerificationCode(ctx context.Context, code string, now time.Time) (models.Account, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE verification_code = $1 AND verification_expires_at > $2;
	`, code, now)
	return scanAccount(row)
}

func (p *Postgres) FindByResetToken(ctx context.Context, token string, now time.Time) (models.Account, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE reset_token = $1 AND reset_expires_at > $2;
	`, token, now)
	return scanAccount(row)
}

func (p *Postgres) List(ctx context.Context) ([]models.Account, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) exec(ctx context.Context, q string, args ...any) error {
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) MarkVerified(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return p.exec(ctx, `
		UPDATE accounts
		SET verified = TRUE, verification_code = NULL, verification_expires_at = NULL, updated_at = now()
		WHERE id = $1;
	`, id)
}

func (p *Postgres) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	return p.exec(ctx, `
		UPDATE accounts
		SET reset_token = $1, reset_expires_at = $2, updated_at = now()
		WHERE id = $3;
	`, token, expiresAt, id)
}

func (p *Postgres) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return p.exec(ctx, `
		UPDATE accounts
		SET password_hash = $1, reset_token = NULL, reset_expires_at = NULL, updated_at = now()
		WHERE id = $2;
	`, passwordHash, id)
}

func (p *Postgres) UpdateDisplayName(ctx context.Context, id, name string) (models.Account, error) {
	if !validID(id) {
		return models.Account{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET display_name = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+accountColumns+`;
	`, name, id)
	return scanAccount(row)
}

func (p *Postgres) TouchLogin(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	return p.exec(ctx, `UPDATE accounts SET last_login_at = $1 WHERE id = $2;`, at, id)
}

func (p *Postgres) ExpireSubscription(ctx context.Context, id string, now time.Time) (bool, error) {
	if !validID(id) {
		return false, ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE accounts
		SET has_active_subscription = FALSE, subscription_expires_at = NULL, updated_at = now()
		WHERE id = $1
		  AND has_active_subscription
		  AND subscription_expires_at <= $2;
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("expire subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Postgres) ConsumeFreeUsage(ctx context.Context, id string, limit int) (int, bool, error) {
	if !validID(id) {
		return 0, false, ErrNotFound
	}
	var count int
	err := p.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET free_usage_count = free_usage_count + 1, updated_at = now()
		WHERE id = $1 AND free_usage_count < $2
		RETURNING free_usage_count;
	`, id, limit).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("consume free usage: %w", err)
	}
	return count, true, nil
}

func (p *Postgres) ActivateSubscription(ctx context.Context, a Activation) error {
	if !validID(a.AccountID) {
		return ErrNotFound
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET has_active_subscription = TRUE,
		    current_plan = $1,
		    subscription_expires_at = $2,
		    updated_at = now()
		WHERE id = $3;
	`, string(a.Plan), a.ExpiresAt, a.AccountID)
	if err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	var paymentID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO payment_history (account_id, amount, plan, paid_at, event_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id;
	`, a.AccountID, a.Amount, string(a.Plan), a.PaidAt, nullIfEmpty(a.EventID)).Scan(&paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAlreadyApplied
		}
		return fmt.Errorf("append payment: %w", err)
	}

	return tx.Commit()
}

func (p *Postgres) PaymentHistory(ctx context.Context, id string) ([]models.PaymentRecord, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, amount, plan, paid_at, COALESCE(event_id, '')
		FROM payment_history
		WHERE account_id = $1
		ORDER BY paid_at ASC, id ASC;
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.PaymentRecord{}
	for rows.Next() {
		var r models.PaymentRecord
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Amount, &r.Plan, &r.PaidAt, &r.EventID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) FinanceSummary(ctx context.Context) (models.FinanceSummary, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT plan, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payment_history
		GROUP BY plan;
	`)
	if err != nil {
		return models.FinanceSummary{}, err
	}
	defer rows.Close()

	sum := models.FinanceSummary{
		ByPlan:    map[models.Plan]int{},
		RevenueBy: map[models.Plan]float64{},
	}
	for rows.Next() {
		var (
			plan    models.Plan
			count   int
			revenue float64
		)
		if err := rows.Scan(&plan, &count, &revenue); err != nil {
			return models.FinanceSummary{}, err
		}
		sum.ByPlan[plan] = count
		sum.RevenueBy[plan] = revenue
		sum.Payments += count
		sum.TotalRevenue += revenue
	}
	return sum, rows.Err()
}
