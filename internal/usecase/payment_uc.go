package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/repository"
	"sheger-et-bot/internal/infra/logging"
	"sheger-et-bot/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

const referenceAttempts = 3

// PaymentUseCase is the ledger of payment intents.
type PaymentUseCase interface {
	CreateIntent(ctx context.Context, userID int64, tier model.Tier, amount decimal.Decimal, campaignCode string) (*model.PaymentIntent, error)
	// RequestUpgrade prices tier from the catalog and creates the intent.
	RequestUpgrade(ctx context.Context, userID int64, tier model.Tier, period model.BillingPeriod, campaignCode string) (*model.PaymentIntent, error)
	// LatestPendingFor returns only the newest pending intent of the user; older
	// pending ones stay unreachable here until ExpireSweep reaps them.
	LatestPendingFor(ctx context.Context, userID int64) (*model.PaymentIntent, error)
	FindByReference(ctx context.Context, ref string) (*model.PaymentIntent, error)
	ListPending(ctx context.Context, limit int) ([]*model.PaymentIntent, error)
	ExpireSweep(ctx context.Context, now time.Time) (int, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	accounts repository.AccountRepository
	catalog  *model.Catalog
	notify   NotificationUseCase
	ttl      time.Duration
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	accounts repository.AccountRepository,
	catalog *model.Catalog,
	notify NotificationUseCase,
	ttl time.Duration,
	logger *zerolog.Logger,
) *paymentUC {
	if ttl <= 0 {
		ttl = model.IntentTTL
	}
	return &paymentUC{
		payments: payments,
		accounts: accounts,
		catalog:  catalog,
		notify:   notify,
		ttl:      ttl,
		log:      logger,
	}
}

func (u *paymentUC) CreateIntent(ctx context.Context, userID int64, tier model.Tier, amount decimal.Decimal, campaignCode string) (*model.PaymentIntent, error) {
	return u.create(ctx, userID, tier, model.BillingMonthly, amount, campaignCode)
}

func (u *paymentUC) RequestUpgrade(ctx context.Context, userID int64, tier model.Tier, period model.BillingPeriod, campaignCode string) (*model.PaymentIntent, error) {
	price, err := u.catalog.Price(tier, period)
	if err != nil {
		return nil, err
	}
	return u.create(ctx, userID, tier, period, price, campaignCode)
}

func (u *paymentUC) create(ctx context.Context, userID int64, tier model.Tier, period model.BillingPeriod, amount decimal.Decimal, campaignCode string) (*model.PaymentIntent, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreateIntent")()

	if !u.catalog.Has(tier) || !u.catalog.Lookup(tier).Paid() {
		return nil, fmt.Errorf("tier %q is not purchasable: %w", tier, domain.ErrValidation)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s: %w", amount, domain.ErrValidation)
	}
	if _, err := u.accounts.FindByID(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}

	now := time.Now()
	p := &model.PaymentIntent{
		ID:              ulid.Make().String(),
		UserID:          userID,
		RequestedTier:   tier,
		RequestedAmount: amount,
		BillingPeriod:   period,
		Status:          model.PaymentStatusPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(u.ttl),
	}
	if c := model.NormalizeCode(campaignCode); c != "" {
		p.CampaignCode = &c
	}

	// Two requests in the same second would share a reference; shift the
	// timestamp part forward until it is unique.
	var err error
	for i := 0; i < referenceAttempts; i++ {
		p.ReferenceCode = model.ReferenceCode(tier, userID, now.Add(time.Duration(i)*time.Second))
		err = u.payments.Create(ctx, repository.NoTX, p)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			break
		}
	}
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", userID).Msg("create payment intent failed")
		return nil, err
	}

	metrics.IncPaymentIntent(string(model.PaymentStatusPending))
	u.log.Info().
		Int64("user_id", userID).
		Str("reference", p.ReferenceCode).
		Str("tier", string(tier)).
		Str("amount", amount.StringFixed(2)).
		Msg("payment intent created")
	return p, nil
}

func (u *paymentUC) LatestPendingFor(ctx context.Context, userID int64) (*model.PaymentIntent, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.LatestPendingFor")()
	return u.payments.LatestPendingByUser(ctx, repository.NoTX, userID)
}

func (u *paymentUC) FindByReference(ctx context.Context, ref string) (*model.PaymentIntent, error) {
	return u.payments.FindByReference(ctx, repository.NoTX, ref)
}

func (u *paymentUC) ListPending(ctx context.Context, limit int) ([]*model.PaymentIntent, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ListPending")()
	return u.payments.ListPending(ctx, repository.NoTX, limit)
}

// ExpireSweep is the only writer of the expired status. It never touches accounts.
func (u *paymentUC) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ExpireSweep")()

	expired, err := u.payments.ExpirePending(ctx, repository.NoTX, now)
	if err != nil {
		return 0, err
	}
	for _, p := range expired {
		metrics.IncPaymentIntent(string(model.PaymentStatusExpired))
		if u.notify != nil {
			u.notify.PaymentExpired(ctx, p)
		}
	}
	return len(expired), nil
}
