//go:build !integration

package web

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/usecase"
)

type mockAdminUC struct {
	ListPendingFunc func(ctx context.Context, adminID int64, limit int) ([]*model.PaymentIntent, error)
	RevenueFunc     func(ctx context.Context, adminID int64, now time.Time) (*model.RevenueSummary, error)
	StatsFunc       func(ctx context.Context, adminID int64, now time.Time) (*model.AccountStats, error)
	AccountFunc     func(ctx context.Context, adminID, userID int64) (*model.Account, error)
}

func (m *mockAdminUC) ListPending(ctx context.Context, adminID int64, limit int) ([]*model.PaymentIntent, error) {
	return m.ListPendingFunc(ctx, adminID, limit)
}
func (m *mockAdminUC) Revenue(ctx context.Context, adminID int64, now time.Time) (*model.RevenueSummary, error) {
	return m.RevenueFunc(ctx, adminID, now)
}
func (m *mockAdminUC) Stats(ctx context.Context, adminID int64, now time.Time) (*model.AccountStats, error) {
	return m.StatsFunc(ctx, adminID, now)
}
func (m *mockAdminUC) Account(ctx context.Context, adminID, userID int64) (*model.Account, error) {
	return m.AccountFunc(ctx, adminID, userID)
}

type mockVerificationUC struct {
	VerifyFunc          func(ctx context.Context, req usecase.VerifyRequest) (*usecase.VerifyResult, error)
	VerifyReferenceFunc func(ctx context.Context, ref string, req usecase.VerifyRequest) (*usecase.VerifyResult, error)
	RejectFunc          func(ctx context.Context, userID, adminID int64, reason string) (*model.PaymentIntent, error)
}

func (m *mockVerificationUC) Verify(ctx context.Context, req usecase.VerifyRequest) (*usecase.VerifyResult, error) {
	return m.VerifyFunc(ctx, req)
}
func (m *mockVerificationUC) VerifyReference(ctx context.Context, ref string, req usecase.VerifyRequest) (*usecase.VerifyResult, error) {
	return m.VerifyReferenceFunc(ctx, ref, req)
}
func (m *mockVerificationUC) Reject(ctx context.Context, userID, adminID int64, reason string) (*model.PaymentIntent, error) {
	return m.RejectFunc(ctx, userID, adminID, reason)
}

type mockPaymentUC struct {
	FindByReferenceFunc func(ctx context.Context, ref string) (*model.PaymentIntent, error)
	ExpireSweepFunc     func(ctx context.Context, now time.Time) (int, error)
}

func (m *mockPaymentUC) CreateIntent(context.Context, int64, model.Tier, decimal.Decimal, string) (*model.PaymentIntent, error) {
	return nil, nil
}
func (m *mockPaymentUC) RequestUpgrade(context.Context, int64, model.Tier, model.BillingPeriod, string) (*model.PaymentIntent, error) {
	return nil, nil
}
func (m *mockPaymentUC) LatestPendingFor(context.Context, int64) (*model.PaymentIntent, error) {
	return nil, nil
}
func (m *mockPaymentUC) FindByReference(ctx context.Context, ref string) (*model.PaymentIntent, error) {
	return m.FindByReferenceFunc(ctx, ref)
}
func (m *mockPaymentUC) ListPending(context.Context, int) ([]*model.PaymentIntent, error) {
	return nil, nil
}
func (m *mockPaymentUC) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	return m.ExpireSweepFunc(ctx, now)
}

type mockCampaignUC struct {
	CreateFunc     func(ctx context.Context, adminID int64, in usecase.CampaignInput) (*model.Campaign, error)
	DeactivateFunc func(ctx context.Context, adminID int64, code string) error
	ListActiveFunc func(ctx context.Context) ([]*model.Campaign, error)
}

func (m *mockCampaignUC) Lookup(context.Context, string) (*model.Campaign, bool, error) {
	return nil, false, nil
}
func (m *mockCampaignUC) Create(ctx context.Context, adminID int64, in usecase.CampaignInput) (*model.Campaign, error) {
	return m.CreateFunc(ctx, adminID, in)
}
func (m *mockCampaignUC) Deactivate(ctx context.Context, adminID int64, code string) error {
	return m.DeactivateFunc(ctx, adminID, code)
}
func (m *mockCampaignUC) ListActive(ctx context.Context) ([]*model.Campaign, error) {
	return m.ListActiveFunc(ctx)
}

type mockBroadcastUC struct {
	BroadcastFunc func(ctx context.Context, adminID int64, tier *model.Tier, message string) (int, error)
}

func (m *mockBroadcastUC) Broadcast(ctx context.Context, adminID int64, tier *model.Tier, message string) (int, error) {
	return m.BroadcastFunc(ctx, adminID, tier, message)
}
