package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresConsumeFreeUsage(t *testing.T) {
	id := uuid.NewString()
	consume := regexp.QuoteMeta("SET free_usage_count = free_usage_count + 1")

	t.Run("below limit", func(t *testing.T) {
		p, mock := newMockStore(t)
		mock.ExpectQuery(consume).
			WithArgs(id, 3).
			WillReturnRows(sqlmock.NewRows([]string{"free_usage_count"}).AddRow(2))

		count, ok, err := p.ConsumeFreeUsage(context.Background(), id, 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 2, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("limit reached", func(t *testing.T) {
		p, mock := newMockStore(t)
		mock.ExpectQuery(consume).
			WithArgs(id, 3).
			WillReturnRows(sqlmock.NewRows([]string{"free_usage_count"}))

		count, ok, err := p.ConsumeFreeUsage(context.Background(), id, 3)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed id", func(t *testing.T) {
		p, mock := newMockStore(t)
		_, _, err := p.ConsumeFreeUsage(context.Background(), "not-a-uuid", 3)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresExpireSubscriptionIsConditional(t *testing.T) {
	id := uuid.NewString()
	now := time.Now()

	p, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("AND subscription_expires_at <= $2")).
		WithArgs(id, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("AND subscription_expires_at <= $2")).
		WithArgs(id, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := p.ExpireSubscription(context.Background(), id, now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = p.ExpireSubscription(context.Background(), id, now)
	require.NoError(t, err)
	assert.False(t, changed, "a renewed row is left alone")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresActivateSubscription(t *testing.T) {
	id := uuid.NewString()
	paid := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	act := Activation{
		AccountID: id,
		Plan:      models.PlanPremiumPro,
		Amount:    20,
		PaidAt:    paid,
		ExpiresAt: paid.Add(30 * 24 * time.Hour),
		EventID:   "evt_123",
	}
	updateAccount := regexp.QuoteMeta("SET has_active_subscription = TRUE")
	insertPayment := regexp.QuoteMeta("INSERT INTO payment_history")

	t.Run("applied", func(t *testing.T) {
		p, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(updateAccount).
			WithArgs("Premium Pro", act.ExpiresAt, id).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(insertPayment).
			WithArgs(id, 20.0, "Premium Pro", paid, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectCommit()

		require.NoError(t, p.ActivateSubscription(context.Background(), act))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate event rolls back", func(t *testing.T) {
		p, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(updateAccount).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(insertPayment).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := p.ActivateSubscription(context.Background(), act)
		assert.ErrorIs(t, err, ErrAlreadyApplied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		p, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(updateAccount).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := p.ActivateSubscription(context.Background(), act)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresCreateDuplicateEmail(t *testing.T) {
	p, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts")).
		WillReturnError(&pq.Error{Code: pgUniqueViolation})

	err := p.Create(context.Background(), &models.Account{Email: " Ana@Example.com ", PasswordHash: "x", DisplayName: "Ana"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByIDScansNullableColumns(t *testing.T) {
	id := uuid.NewString()
	created := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	expires := created.Add(24 * time.Hour)

	p, mock := newMockStore(t)
	cols := []string{
		"id", "email", "password_hash", "display_name", "role", "verified",
		"verification_code", "verification_expires_at", "reset_token", "reset_expires_at",
		"has_active_subscription", "current_plan", "subscription_expires_at", "free_usage_count",
		"last_login_at", "created_at", "updated_at",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			id, "ana@example.com", "hash", "Ana", "client", true,
			nil, nil, nil, nil,
			true, "Premium", expires, 2,
			nil, created, created,
		))

	a, err := p.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", a.Email)
	assert.Empty(t, a.VerificationCode)
	assert.Nil(t, a.ResetExpiresAt)
	require.NotNil(t, a.CurrentPlan)
	assert.Equal(t, models.PlanPremium, *a.CurrentPlan)
	require.NotNil(t, a.SubscriptionExpiresAt)
	assert.True(t, expires.Equal(*a.SubscriptionExpiresAt))
	assert.Equal(t, 2, a.FreeUsageCount)
	assert.Nil(t, a.LastLoginAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFinanceSummary(t *testing.T) {
	p, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY plan")).
		WillReturnRows(sqlmock.NewRows([]string{"plan", "count", "sum"}).
			AddRow("Premium", 2, 20.0).
			AddRow("Premium Pro", 1, 20.0))

	sum, err := p.FinanceSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Payments)
	assert.InDelta(t, 40.0, sum.TotalRevenue, 0.001)
	assert.Equal(t, 2, sum.ByPlan[models.PlanPremium])
	assert.NoError(t, mock.ExpectationsWereMet())
}
