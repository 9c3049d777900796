//go:build !integration

package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/usecase"
)

type mockAccountUC struct {
	GetOrCreateFunc    func(ctx context.Context, userID int64, p model.Profile) (*model.Account, bool, error)
	GetFunc            func(ctx context.Context, userID int64) (*model.Account, error)
	LinkReferralFunc   func(ctx context.Context, userID int64, code string) (bool, error)
	IncrementUsageFunc func(ctx context.Context, userID int64, kind model.UsageKind) (*model.Account, error)
	QuoteFeeFunc       func(ctx context.Context, userID int64, amount decimal.Decimal) (*usecase.FeeQuote, error)
}

func (m *mockAccountUC) GetOrCreate(ctx context.Context, userID int64, p model.Profile) (*model.Account, bool, error) {
	if m.GetOrCreateFunc != nil {
		return m.GetOrCreateFunc(ctx, userID, p)
	}
	return nil, false, domain.ErrNotFound
}

func (m *mockAccountUC) Get(ctx context.Context, userID int64) (*model.Account, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockAccountUC) EffectiveTier(a *model.Account, now time.Time) model.Tier {
	return a.EffectiveTier(now)
}

func (m *mockAccountUC) LinkReferral(ctx context.Context, userID int64, code string) (bool, error) {
	if m.LinkReferralFunc != nil {
		return m.LinkReferralFunc(ctx, userID, code)
	}
	return false, nil
}

func (m *mockAccountUC) IncrementUsage(ctx context.Context, userID int64, kind model.UsageKind) (*model.Account, error) {
	if m.IncrementUsageFunc != nil {
		return m.IncrementUsageFunc(ctx, userID, kind)
	}
	return nil, domain.ErrNotFound
}

func (m *mockAccountUC) ResetMonthlyUsage(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (m *mockAccountUC) ExpireTiers(ctx context.Context, now time.Time) ([]int64, error) {
	return nil, nil
}

func (m *mockAccountUC) QuoteFee(ctx context.Context, userID int64, amount decimal.Decimal) (*usecase.FeeQuote, error) {
	if m.QuoteFeeFunc != nil {
		return m.QuoteFeeFunc(ctx, userID, amount)
	}
	return nil, domain.ErrNotFound
}

type mockPaymentUC struct {
	RequestUpgradeFunc   func(ctx context.Context, userID int64, tier model.Tier, period model.BillingPeriod, code string) (*model.PaymentIntent, error)
	LatestPendingForFunc func(ctx context.Context, userID int64) (*model.PaymentIntent, error)
	FindByReferenceFunc  func(ctx context.Context, ref string) (*model.PaymentIntent, error)
	ExpireSweepFunc      func(ctx context.Context, now time.Time) (int, error)
}

func (m *mockPaymentUC) CreateIntent(ctx context.Context, userID int64, tier model.Tier, amount decimal.Decimal, campaignCode string) (*model.PaymentIntent, error) {
	return nil, nil
}

func (m *mockPaymentUC) RequestUpgrade(ctx context.Context, userID int64, tier model.Tier, period model.BillingPeriod, code string) (*model.PaymentIntent, error) {
	if m.RequestUpgradeFunc != nil {
		return m.RequestUpgradeFunc(ctx, userID, tier, period, code)
	}
	return nil, nil
}

func (m *mockPaymentUC) LatestPendingFor(ctx context.Context, userID int64) (*model.PaymentIntent, error) {
	if m.LatestPendingForFunc != nil {
		return m.LatestPendingForFunc(ctx, userID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaymentUC) FindByReference(ctx context.Context, ref string) (*model.PaymentIntent, error) {
	if m.FindByReferenceFunc != nil {
		return m.FindByReferenceFunc(ctx, ref)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaymentUC) ListPending(ctx context.Context, limit int) ([]*model.PaymentIntent, error) {
	return nil, nil
}

func (m *mockPaymentUC) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	if m.ExpireSweepFunc != nil {
		return m.ExpireSweepFunc(ctx, now)
	}
	return 0, nil
}

type mockVerificationUC struct {
	VerifyFunc          func(ctx context.Context, req usecase.VerifyRequest) (*usecase.VerifyResult, error)
	VerifyReferenceFunc func(ctx context.Context, ref string, req usecase.VerifyRequest) (*usecase.VerifyResult, error)
	RejectFunc          func(ctx context.Context, userID, adminID int64, reason string) (*model.PaymentIntent, error)
}

func (m *mockVerificationUC) Verify(ctx context.Context, req usecase.VerifyRequest) (*usecase.VerifyResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, req)
	}
	return nil, domain.ErrNoPendingPayment
}

func (m *mockVerificationUC) VerifyReference(ctx context.Context, ref string, req usecase.VerifyRequest) (*usecase.VerifyResult, error) {
	if m.VerifyReferenceFunc != nil {
		return m.VerifyReferenceFunc(ctx, ref, req)
	}
	return nil, domain.ErrNotFound
}

func (m *mockVerificationUC) Reject(ctx context.Context, userID, adminID int64, reason string) (*model.PaymentIntent, error) {
	if m.RejectFunc != nil {
		return m.RejectFunc(ctx, userID, adminID, reason)
	}
	return nil, domain.ErrNoPendingPayment
}

type mockCampaignUC struct {
	LookupFunc     func(ctx context.Context, code string) (*model.Campaign, bool, error)
	ListActiveFunc func(ctx context.Context) ([]*model.Campaign, error)
}

func (m *mockCampaignUC) Lookup(ctx context.Context, code string) (*model.Campaign, bool, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, code)
	}
	return nil, false, domain.ErrNotFound
}

func (m *mockCampaignUC) Create(ctx context.Context, adminID int64, in usecase.CampaignInput) (*model.Campaign, error) {
	return nil, nil
}

func (m *mockCampaignUC) Deactivate(ctx context.Context, adminID int64, code string) error {
	return nil
}

func (m *mockCampaignUC) ListActive(ctx context.Context) ([]*model.Campaign, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx)
	}
	return nil, nil
}

type mockAdminUC struct {
	ListPendingFunc func(ctx context.Context, adminID int64, limit int) ([]*model.PaymentIntent, error)
	RevenueFunc     func(ctx context.Context, adminID int64, now time.Time) (*model.RevenueSummary, error)
	StatsFunc       func(ctx context.Context, adminID int64, now time.Time) (*model.AccountStats, error)
}

func (m *mockAdminUC) ListPending(ctx context.Context, adminID int64, limit int) ([]*model.PaymentIntent, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx, adminID, limit)
	}
	return nil, nil
}

func (m *mockAdminUC) Revenue(ctx context.Context, adminID int64, now time.Time) (*model.RevenueSummary, error) {
	if m.RevenueFunc != nil {
		return m.RevenueFunc(ctx, adminID, now)
	}
	return &model.RevenueSummary{ByTier: map[model.Tier]model.TierRevenue{}}, nil
}

func (m *mockAdminUC) Stats(ctx context.Context, adminID int64, now time.Time) (*model.AccountStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, adminID, now)
	}
	return &model.AccountStats{ByTier: map[model.Tier]int{}}, nil
}

func (m *mockAdminUC) Account(ctx context.Context, adminID, userID int64) (*model.Account, error) {
	return nil, domain.ErrNotFound
}

type mockBroadcastUC struct {
	BroadcastFunc func(ctx context.Context, adminID int64, tier *model.Tier, message string) (int, error)
}

func (m *mockBroadcastUC) Broadcast(ctx context.Context, adminID int64, tier *model.Tier, message string) (int, error) {
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(ctx, adminID, tier, message)
	}
	return 0, nil
}
