package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/repository"
	"sheger-et-bot/internal/infra/logging"
	"sheger-et-bot/internal/infra/metrics"
)

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

const (
	revenueWindow  = 30 * 24 * time.Hour
	activityWindow = 7 * 24 * time.Hour
)

// AdminUseCase is the read side of the admin surface. Every method rejects
// callers outside the allow-list before touching storage.
type AdminUseCase interface {
	ListPending(ctx context.Context, adminID int64, limit int) ([]*model.PaymentIntent, error)
	Revenue(ctx context.Context, adminID int64, now time.Time) (*model.RevenueSummary, error)
	Stats(ctx context.Context, adminID int64, now time.Time) (*model.AccountStats, error)
	Account(ctx context.Context, adminID, userID int64) (*model.Account, error)
}

type adminUC struct {
	accounts repository.AccountRepository
	payments repository.PaymentRepository
	admins   AdminPolicy
	log      *zerolog.Logger
}

func NewAdminUseCase(accounts repository.AccountRepository, payments repository.PaymentRepository, admins AdminPolicy, logger *zerolog.Logger) *adminUC {
	return &adminUC{accounts: accounts, payments: payments, admins: admins, log: logger}
}

func (u *adminUC) authorize(command string, adminID int64) error {
	if !isAdmin(u.admins, adminID) {
		metrics.IncAdminCommand(command, "unauthorized")
		u.log.Warn().Int64("user_id", adminID).Str("command", command).Msg("admin command refused")
		return domain.ErrUnauthorized
	}
	metrics.IncAdminCommand(command, "authorized")
	return nil
}

func (u *adminUC) ListPending(ctx context.Context, adminID int64, limit int) ([]*model.PaymentIntent, error) {
	defer logging.TraceDuration(u.log, "AdminUC.ListPending")()
	if err := u.authorize("payments", adminID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return u.payments.ListPending(ctx, repository.NoTX, limit)
}

func (u *adminUC) Revenue(ctx context.Context, adminID int64, now time.Time) (*model.RevenueSummary, error) {
	defer logging.TraceDuration(u.log, "AdminUC.Revenue")()
	if err := u.authorize("revenue", adminID); err != nil {
		return nil, err
	}
	return u.payments.Revenue(ctx, repository.NoTX, now.Add(-revenueWindow))
}

func (u *adminUC) Stats(ctx context.Context, adminID int64, now time.Time) (*model.AccountStats, error) {
	defer logging.TraceDuration(u.log, "AdminUC.Stats")()
	if err := u.authorize("stats", adminID); err != nil {
		return nil, err
	}
	return u.accounts.Stats(ctx, repository.NoTX, now, now.Add(-activityWindow))
}

func (u *adminUC) Account(ctx context.Context, adminID, userID int64) (*model.Account, error) {
	if err := u.authorize("account", adminID); err != nil {
		return nil, err
	}
	return u.accounts.FindByID(ctx, repository.NoTX, userID)
}
