//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/adapter"
	"sheger-et-bot/internal/domain/ports/repository"
	"sheger-et-bot/internal/infra/i18n"
	"sheger-et-bot/internal/usecase"
)

// -----------------------------
// Utilities
// -----------------------------

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	testFS := fstest.MapFS{
		"locales/en.yaml": {
			Data: []byte(`
notify_payment_verified: "Your %s plan is active. Paid %s ETB, active until %s."
notify_referral_earned: "You earned %s ETB from a %s referral."
notify_payment_expired: "Payment request %s expired."
notify_payment_rejected: "Payment request %s was rejected: %s"
notify_tier_expired: "Your plan expired."
`),
		},
	}
	tr, err := i18n.NewTranslator(testFS, "en")
	if err != nil {
		panic(err)
	}
	return tr
}

// =============================
// In-memory store shared by the repositories
// =============================

type memStore struct {
	mu        sync.Mutex
	accounts  map[int64]*model.Account
	payments  map[string]*model.PaymentIntent
	campaigns map[string]*model.Campaign
}

func newMemStore() *memStore {
	return &memStore{
		accounts:  map[int64]*model.Account{},
		payments:  map[string]*model.PaymentIntent{},
		campaigns: map[string]*model.Campaign{},
	}
}

type memSnapshot struct {
	accounts  map[int64]*model.Account
	payments  map[string]*model.PaymentIntent
	campaigns map[string]*model.Campaign
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		accounts:  make(map[int64]*model.Account, len(s.accounts)),
		payments:  make(map[string]*model.PaymentIntent, len(s.payments)),
		campaigns: make(map[string]*model.Campaign, len(s.campaigns)),
	}
	for k, v := range s.accounts {
		snap.accounts[k] = copyAccount(v)
	}
	for k, v := range s.payments {
		snap.payments[k] = copyIntent(v)
	}
	for k, v := range s.campaigns {
		snap.campaigns[k] = copyCampaign(v)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts, s.payments, s.campaigns = snap.accounts, snap.payments, snap.campaigns
}

func copyAccount(a *model.Account) *model.Account {
	c := *a
	if a.TierExpiresAt != nil {
		t := *a.TierExpiresAt
		c.TierExpiresAt = &t
	}
	if a.ReferredBy != nil {
		r := *a.ReferredBy
		c.ReferredBy = &r
	}
	return &c
}

func copyIntent(p *model.PaymentIntent) *model.PaymentIntent {
	c := *p
	if p.CampaignCode != nil {
		v := *p.CampaignCode
		c.CampaignCode = &v
	}
	if p.VerifiedAt != nil {
		v := *p.VerifiedAt
		c.VerifiedAt = &v
	}
	if p.VerifiedBy != nil {
		v := *p.VerifiedBy
		c.VerifiedBy = &v
	}
	if p.FinalAmount != nil {
		v := *p.FinalAmount
		c.FinalAmount = &v
	}
	return &c
}

func copyCampaign(cp *model.Campaign) *model.Campaign {
	c := *cp
	if cp.MaxUses != nil {
		v := *cp.MaxUses
		c.MaxUses = &v
	}
	if cp.EndsAt != nil {
		v := *cp.EndsAt
		c.EndsAt = &v
	}
	return &c
}

// ---- Mock TransactionManager ----

// MockTxManager serializes transactions, the way row locks would, and
// restores the store when fn fails.
type MockTxManager struct {
	mu    sync.Mutex
	store *memStore
	Calls int

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(store *memStore) *MockTxManager {
	return &MockTxManager{store: store}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.store == nil {
		return fn(ctx, repository.NoTX)
	}
	snap := m.store.snapshot()
	if err := fn(ctx, repository.NoTX); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// =============================
// Repositories
// =============================

// ---- Accounts ----

type MockAccountRepo struct {
	s *memStore

	// SaveFunc runs before every Save; a non-nil error aborts it.
	SaveFunc func(a *model.Account) error
}

var _ repository.AccountRepository = (*MockAccountRepo)(nil)

func NewMockAccountRepo(s *memStore) *MockAccountRepo { return &MockAccountRepo{s: s} }

// Put stores a fixture directly.
func (r *MockAccountRepo) Put(a *model.Account) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accounts[a.UserID] = copyAccount(a)
}

// Peek reads without the FindByID error path.
func (r *MockAccountRepo) Peek(id int64) *model.Account {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[id]; ok {
		return copyAccount(a)
	}
	return nil
}

func (r *MockAccountRepo) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[a.UserID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, ex := range r.s.accounts {
		if ex.ReferralCode == a.ReferralCode {
			return domain.ErrAlreadyExists
		}
	}
	r.s.accounts[a.UserID] = copyAccount(a)
	return nil
}

func (r *MockAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if r.SaveFunc != nil {
		if err := r.SaveFunc(a); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[a.UserID]; !ok {
		return domain.ErrNotFound
	}
	r.s.accounts[a.UserID] = copyAccount(a)
	return nil
}

func (r *MockAccountRepo) FindByID(ctx context.Context, tx repository.Tx, userID int64) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyAccount(a), nil
}

func (r *MockAccountRepo) FindByReferralCode(ctx context.Context, tx repository.Tx, code string) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.ReferralCode == code {
			return copyAccount(a), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockAccountRepo) ReferralCodeExists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	_, err := r.FindByReferralCode(ctx, tx, code)
	return err == nil, nil
}

func (r *MockAccountRepo) SetReferrer(ctx context.Context, tx repository.Tx, userID, referrerID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[userID]
	if !ok || a.ReferredBy != nil {
		return false, nil
	}
	a.ReferredBy = &referrerID
	return true, nil
}

func (r *MockAccountRepo) IsAncestor(ctx context.Context, tx repository.Tx, userID, candidate int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur := r.s.accounts[userID]
	for depth := 0; cur != nil && cur.ReferredBy != nil && depth < 64; depth++ {
		if *cur.ReferredBy == candidate {
			return true, nil
		}
		cur = r.s.accounts[*cur.ReferredBy]
	}
	return false, nil
}

func (r *MockAccountRepo) ResetUsage(ctx context.Context, tx repository.Tx, period string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, a := range r.s.accounts {
		if a.UsagePeriod != period {
			a.MonthlyTransactionCount, a.MonthlyListingCount, a.UsagePeriod = 0, 0, period
			n++
		}
	}
	return n, nil
}

func (r *MockAccountRepo) DowngradeExpired(ctx context.Context, tx repository.Tx, now time.Time) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []int64
	for id, a := range r.s.accounts {
		if a.Tier != model.TierBasic && a.TierExpiresAt != nil && now.After(*a.TierExpiresAt) {
			a.Downgrade()
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *MockAccountRepo) ListByEffectiveTier(ctx context.Context, tx repository.Tx, tier *model.Tier, now time.Time) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []int64
	for id, a := range r.s.accounts {
		if tier == nil || a.EffectiveTier(now) == *tier {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *MockAccountRepo) Stats(ctx context.Context, tx repository.Tx, now, activeSince time.Time) (*model.AccountStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := &model.AccountStats{ByTier: map[model.Tier]int{}, BalanceOwed: decimal.Zero}
	for _, a := range r.s.accounts {
		st.Total++
		st.ByTier[a.EffectiveTier(now)]++
		if !a.LastActiveAt.Before(activeSince) {
			st.ActiveSince++
		}
		st.BalanceOwed = st.BalanceOwed.Add(a.Balance)
	}
	return st, nil
}

// ---- Payment intents ----

type MockPaymentRepo struct {
	s *memStore

	mu                sync.Mutex
	MarkVerifiedCalls int
	// MarkVerifiedFunc runs before the compare-and-set; a non-nil error aborts it.
	MarkVerifiedFunc func(call int) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo(s *memStore) *MockPaymentRepo { return &MockPaymentRepo{s: s} }

func (r *MockPaymentRepo) Put(p *model.PaymentIntent) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[p.ID] = copyIntent(p)
}

func (r *MockPaymentRepo) Peek(id string) *model.PaymentIntent {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.payments[id]; ok {
		return copyIntent(p)
	}
	return nil
}

func (r *MockPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.payments {
		if ex.ReferenceCode == p.ReferenceCode || ex.ID == p.ID {
			return domain.ErrAlreadyExists
		}
	}
	r.s.payments[p.ID] = copyIntent(p)
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	if p := r.Peek(id); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByReference(ctx context.Context, tx repository.Tx, ref string) (*model.PaymentIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.ReferenceCode == ref {
			return copyIntent(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) pendingSorted() []*model.PaymentIntent {
	var out []*model.PaymentIntent
	for _, p := range r.s.payments {
		if p.Status == model.PaymentStatusPending {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *MockPaymentRepo) LatestPendingByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.PaymentIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.pendingSorted() {
		if p.UserID == userID {
			return copyIntent(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.PaymentIntent
	for _, p := range r.pendingSorted() {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, copyIntent(p))
	}
	return out, nil
}

func (r *MockPaymentRepo) MarkVerified(ctx context.Context, tx repository.Tx, id string, adminID int64, finalAmount decimal.Decimal, at time.Time) (bool, error) {
	r.mu.Lock()
	r.MarkVerifiedCalls++
	call := r.MarkVerifiedCalls
	r.mu.Unlock()
	if r.MarkVerifiedFunc != nil {
		if err := r.MarkVerifiedFunc(call); err != nil {
			return false, err
		}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusVerified
	p.VerifiedAt = &at
	p.VerifiedBy = &adminID
	p.FinalAmount = &finalAmount
	return true, nil
}

func (r *MockPaymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, adminID int64, note string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.VerifiedAt = &at
	p.VerifiedBy = &adminID
	p.Note = note
	return true, nil
}

func (r *MockPaymentRepo) ExpirePending(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.PaymentIntent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.PaymentIntent
	for _, p := range r.s.payments {
		if p.Status == model.PaymentStatusPending && p.ExpiresAt.Before(now) {
			p.Status = model.PaymentStatusExpired
			out = append(out, copyIntent(p))
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) Revenue(ctx context.Context, tx repository.Tx, since time.Time) (*model.RevenueSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := &model.RevenueSummary{
		Total:        decimal.Zero,
		Last30Days:   decimal.Zero,
		PendingTotal: decimal.Zero,
		ByTier:       map[model.Tier]model.TierRevenue{},
	}
	for _, p := range r.s.payments {
		switch p.Status {
		case model.PaymentStatusVerified:
			amt := *p.FinalAmount
			sum.Total = sum.Total.Add(amt)
			sum.Count++
			if p.VerifiedAt != nil && !p.VerifiedAt.Before(since) {
				sum.Last30Days = sum.Last30Days.Add(amt)
			}
			tr := sum.ByTier[p.RequestedTier]
			tr.Count++
			tr.Sum = tr.Sum.Add(amt)
			sum.ByTier[p.RequestedTier] = tr
		case model.PaymentStatusPending:
			sum.PendingCount++
			sum.PendingTotal = sum.PendingTotal.Add(p.RequestedAmount)
		}
	}
	return sum, nil
}

// ---- Campaigns ----

type MockCampaignRepo struct {
	s *memStore
}

var _ repository.CampaignRepository = (*MockCampaignRepo)(nil)

func NewMockCampaignRepo(s *memStore) *MockCampaignRepo { return &MockCampaignRepo{s: s} }

func (r *MockCampaignRepo) Peek(code string) *model.Campaign {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.campaigns[code]; ok {
		return copyCampaign(c)
	}
	return nil
}

func (r *MockCampaignRepo) Create(ctx context.Context, tx repository.Tx, c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.campaigns[c.Code]; ok {
		return domain.ErrAlreadyExists
	}
	r.s.campaigns[c.Code] = copyCampaign(c)
	return nil
}

func (r *MockCampaignRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Campaign, error) {
	if c := r.Peek(code); c != nil {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockCampaignRepo) IncrementUsed(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[code]
	if !ok || !c.IsActive || (c.MaxUses != nil && c.UsedCount >= *c.MaxUses) {
		return false, nil
	}
	c.UsedCount++
	return true, nil
}

func (r *MockCampaignRepo) SetActive(ctx context.Context, tx repository.Tx, code string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[code]
	if !ok {
		return domain.ErrNotFound
	}
	c.IsActive = active
	return nil
}

func (r *MockCampaignRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Campaign
	for _, c := range r.s.campaigns {
		if c.IsActive {
			out = append(out, copyCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// =============================
// Adapters
// =============================

// ---- Mock TelegramBotAdapter ----

type MockTelegramBot struct {
	mu   sync.Mutex
	Sent []adapter.SendMessageParams

	SendMessageFunc     func(ctx context.Context, params adapter.SendMessageParams) error
	SetMenuCommandsFunc func(ctx context.Context, chatID int64, isAdmin bool) error
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, params)
	return nil
}

func (m *MockTelegramBot) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	if m.SetMenuCommandsFunc != nil {
		return m.SetMenuCommandsFunc(ctx, chatID, isAdmin)
	}
	return nil
}

func (m *MockTelegramBot) SentTo(chatID int64) []adapter.SendMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []adapter.SendMessageParams
	for _, p := range m.Sent {
		if p.ChatID == chatID {
			out = append(out, p)
		}
	}
	return out
}

// ---- Mock EventPublisher ----

type MockPublisher struct {
	mu     sync.Mutex
	Events []adapter.PaymentEvent

	PublishFunc func(ctx context.Context, ev adapter.PaymentEvent) error
}

var _ adapter.EventPublisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, ev adapter.PaymentEvent) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, ev)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

func (m *MockPublisher) Close() {}

func (m *MockPublisher) Types() []adapter.PaymentEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]adapter.PaymentEventType, len(m.Events))
	for i, ev := range m.Events {
		out[i] = ev.Type
	}
	return out
}

// =============================
// Fixture wiring
// =============================

const testAdminID int64 = 9000

type fixture struct {
	store     *memStore
	tm        *MockTxManager
	accounts  *MockAccountRepo
	payments  *MockPaymentRepo
	campaigns *MockCampaignRepo
	bot       *MockTelegramBot
	events    *MockPublisher
	catalog   *model.Catalog
	admins    *usecase.AllowList
}

func newFixture() *fixture {
	s := newMemStore()
	return &fixture{
		store:     s,
		tm:        NewMockTxManager(s),
		accounts:  NewMockAccountRepo(s),
		payments:  NewMockPaymentRepo(s),
		campaigns: NewMockCampaignRepo(s),
		bot:       &MockTelegramBot{},
		events:    &MockPublisher{},
		catalog:   model.DefaultCatalog(),
		admins:    usecase.NewAllowList([]int64{testAdminID}),
	}
}

// notifier delivers inline so assertions can run right after the call.
func (f *fixture) notifier() usecase.NotificationUseCase {
	return usecase.NewNotificationUseCase(f.bot, f.events, nil, newTestTranslator(), newTestLogger())
}

func (f *fixture) ledger() usecase.PaymentUseCase {
	return usecase.NewPaymentUseCase(f.payments, f.accounts, f.catalog, f.notifier(), 0, newTestLogger())
}

func (f *fixture) verifier() usecase.VerificationUseCase {
	return usecase.NewVerificationUseCase(f.payments, f.accounts, f.campaigns, f.catalog, f.admins, f.notifier(), f.tm, newTestLogger())
}

func (f *fixture) accountsUC() usecase.AccountUseCase {
	return usecase.NewAccountUseCase(f.accounts, f.catalog, f.tm, newTestLogger())
}

// account stores a basic account with the given referrer.
func (f *fixture) account(id int64, referredBy *int64) *model.Account {
	a, err := model.NewAccount(id, model.Profile{Username: "user"}, codeFor(id), time.Now())
	if err != nil {
		panic(err)
	}
	a.ReferredBy = referredBy
	f.accounts.Put(a)
	return a
}

func codeFor(id int64) string {
	return "C" + decimal.NewFromInt(id).String()
}

func ptr[T any](v T) *T { return &v }
