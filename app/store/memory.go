package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

// Memory is an in-process AccountStore used when no database is configured
// and in tests. Every read returns a copy.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	payments []models.PaymentRecord
	events   map[string]struct{}
	nextPay  int64
	now      func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*models.Account),
		events:   make(map[string]struct{}),
		now:      time.Now,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneAccount(a *models.Account) models.Account {
	out := *a
	out.VerificationExpiresAt = cloneTime(a.VerificationExpiresAt)
	out.ResetExpiresAt = cloneTime(a.ResetExpiresAt)
	out.SubscriptionExpiresAt = cloneTime(a.SubscriptionExpiresAt)
	out.LastLoginAt = cloneTime(a.LastLoginAt)
	if a.CurrentPlan != nil {
		p := *a.CurrentPlan
		out.CurrentPlan = &p
	}
	return out
}

func (m *Memory) Create(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account.Email = normalizeEmail(account.Email)
	for _, a := range m.accounts {
		if a.Email == account.Email {
			return ErrEmailTaken
		}
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.Role == "" {
		account.Role = models.RoleClient
	}
	ts := m.now()
	account.CreatedAt = ts
	account.UpdatedAt = ts

	stored := cloneAccount(account)
	m.accounts[account.ID] = &stored
	return nil
}

func (m *Memory) FindByID(_ context.Context, id string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	return cloneAccount(a), nil
}

func (m *Memory) findWhere(match func(*models.Account) bool) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return models.Account{}, ErrNotFound
}

func (m *Memory) FindByEmail(_ context.Context, email string) (models.Account, error) {
	email = normalizeEmail(email)
	return m.findWhere(func(a *models.Account) bool { return a.Email == email })
}

func (m *Memory) FindByVerificationCode(_ context.Context, code string, now time.Time) (models.Account, error) {
	if code == "" {
		return models.Account{}, ErrNotFound
	}
	return m.findWhere(func(a *models.Account) bool {
		return a.VerificationCode == code && a.VerificationExpiresAt != nil && a.VerificationExpiresAt.After(now)
	})
}

func (m *Memory) FindByResetToken(_ context.Context, token string, now time.Time) (models.Account, error) {
	if token == "" {
		return models.Account{}, ErrNotFound
	}
	return m.findWhere(func(a *models.Account) bool {
		return a.ResetToken == token && a.ResetExpiresAt != nil && a.ResetExpiresAt.After(now)
	})
}

func (m *Memory) List(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// update runs fn against the stored account under the lock.
func (m *Memory) update(id string, fn func(a *models.Account)) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	fn(a)
	a.UpdatedAt = m.now()
	return cloneAccount(a), nil
}

func (m *Memory) MarkVerified(_ context.Context, id string) error {
	_, err := m.update(id, func(a *models.Account) {
		a.Verified = true
		a.VerificationCode = ""
		a.VerificationExpiresAt = nil
	})
	return err
}

func (m *Memory) SetResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	_, err := m.update(id, func(a *models.Account) {
		a.ResetToken = token
		a.ResetExpiresAt = &expiresAt
	})
	return err
}

func (m *Memory) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := m.update(id, func(a *models.Account) {
		a.PasswordHash = passwordHash
		a.ResetToken = ""
		a.ResetExpiresAt = nil
	})
	return err
}

func (m *Memory) UpdateDisplayName(_ context.Context, id, name string) (models.Account, error) {
	return m.update(id, func(a *models.Account) { a.DisplayName = name })
}

func (m *Memory) TouchLogin(_ context.Context, id string, at time.Time) error {
	_, err := m.update(id, func(a *models.Account) { a.LastLoginAt = &at })
	return err
}

func (m *Memory) ExpireSubscription(_ context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return false, ErrNotFound
	}
	if !a.HasActiveSubscription || a.SubscriptionExpiresAt == nil || a.SubscriptionExpiresAt.After(now) {
		return false, nil
	}
	a.HasActiveSubscription = false
	a.SubscriptionExpiresAt = nil
	a.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) ConsumeFreeUsage(_ context.Context, id string, limit int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, false, ErrNotFound
	}
	if a.FreeUsageCount >= limit {
		return 0, false, nil
	}
	a.FreeUsageCount++
	a.UpdatedAt = m.now()
	return a.FreeUsageCount, true, nil
}

func (m *Memory) ActivateSubscription(_ context.Context, act Activation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[act.AccountID]
	if !ok {
		return ErrNotFound
	}
	if act.EventID != "" {
		if _, seen := m.events[act.EventID]; seen {
			return ErrAlreadyApplied
		}
		m.events[act.EventID] = struct{}{}
	}

	plan := act.Plan
	expires := act.ExpiresAt
	a.HasActiveSubscription = true
	a.CurrentPlan = &plan
	a.SubscriptionExpiresAt = &expires
	a.UpdatedAt = m.now()

	m.nextPay++
	m.payments = append(m.payments, models.PaymentRecord{
		ID:        m.nextPay,
		AccountID: act.AccountID,
		Amount:    act.Amount,
		Plan:      act.Plan,
		PaidAt:    act.PaidAt,
		EventID:   act.EventID,
	})
	return nil
}

func (m *Memory) PaymentHistory(_ context.Context, id string) ([]models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return nil, ErrNotFound
	}
	out := []models.PaymentRecord{}
	for _, p := range m.payments {
		if p.AccountID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) FinanceSummary(_ context.Context) (models.FinanceSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := models.FinanceSummary{
		ByPlan:    map[models.Plan]int{},
		RevenueBy: map[models.Plan]float64{},
	}
	for _, p := range m.payments {
		sum.ByPlan[p.Plan]++
		sum.RevenueBy[p.Plan] += p.Amount
		sum.Payments++
		sum.TotalRevenue += p.Amount
	}
	return sum, nil
}
