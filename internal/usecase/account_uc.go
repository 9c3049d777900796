package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/repository"
	"sheger-et-bot/internal/infra/logging"
	"sheger-et-bot/internal/infra/metrics"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

const referralCodeAttempts = 10

// FeeQuote is the fee breakdown for a transfer of Amount.
type FeeQuote struct {
	Tier       model.Tier
	Amount     decimal.Decimal
	FeePercent decimal.Decimal
	Fee        decimal.Decimal
	Total      decimal.Decimal
	DailyLimit decimal.Decimal
}

// AccountUseCase owns account lifecycle, referrals and usage counters.
type AccountUseCase interface {
	GetOrCreate(ctx context.Context, userID int64, p model.Profile) (*model.Account, bool, error)
	Get(ctx context.Context, userID int64) (*model.Account, error)
	EffectiveTier(a *model.Account, now time.Time) model.Tier
	LinkReferral(ctx context.Context, userID int64, code string) (bool, error)
	IncrementUsage(ctx context.Context, userID int64, kind model.UsageKind) (*model.Account, error)
	ResetMonthlyUsage(ctx context.Context, now time.Time) (int, error)
	ExpireTiers(ctx context.Context, now time.Time) ([]int64, error)
	QuoteFee(ctx context.Context, userID int64, amount decimal.Decimal) (*FeeQuote, error)
}

type accountUC struct {
	accounts repository.AccountRepository
	catalog  *model.Catalog
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewAccountUseCase(accounts repository.AccountRepository, catalog *model.Catalog, tm repository.TransactionManager, logger *zerolog.Logger) *accountUC {
	return &accountUC{
		accounts: accounts,
		catalog:  catalog,
		tm:       tm,
		log:      logger,
	}
}

func (u *accountUC) GetOrCreate(ctx context.Context, userID int64, p model.Profile) (*model.Account, bool, error) {
	defer logging.TraceDuration(u.log, "AccountUC.GetOrCreate")()

	if userID <= 0 {
		return nil, false, domain.ErrValidation
	}

	var (
		acc     *model.Account
		created bool
	)
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	_, err := withRetry(ctx, func() (struct{}, error) {
		return struct{}{}, u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
			var err error
			acc, created, err = u.getOrCreate(ctx, tx, userID, p)
			return err
		})
	})
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", userID).Msg("get or create account failed")
		return nil, false, err
	}
	if created {
		metrics.IncAccountsRegistered()
		u.log.Info().Int64("user_id", userID).Str("referral_code", acc.ReferralCode).Msg("account created")
	}
	return acc, created, nil
}

func (u *accountUC) getOrCreate(ctx context.Context, tx repository.Tx, userID int64, p model.Profile) (*model.Account, bool, error) {
	now := time.Now()
	existing, err := u.accounts.FindByID(ctx, tx, userID)
	if err == nil {
		existing.Touch(now)
		if p.Username != "" {
			existing.Profile.Username = p.Username
		}
		if err := u.accounts.Save(ctx, tx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	code, err := u.uniqueReferralCode(ctx, tx)
	if err != nil {
		return nil, false, err
	}
	na, err := model.NewAccount(userID, p, code, now)
	if err != nil {
		return nil, false, err
	}
	if err := u.accounts.Create(ctx, tx, na); err != nil {
		return nil, false, err
	}
	return na, true, nil
}

func (u *accountUC) uniqueReferralCode(ctx context.Context, tx repository.Tx) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return "", err
		}
		exists, err := u.accounts.ReferralCodeExists(ctx, tx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("referral code space exhausted after %d attempts: %w", referralCodeAttempts, domain.ErrAlreadyExists)
}

func generateReferralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

func (u *accountUC) Get(ctx context.Context, userID int64) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "AccountUC.Get")()
	return u.accounts.FindByID(ctx, repository.NoTX, userID)
}

func (u *accountUC) EffectiveTier(a *model.Account, now time.Time) model.Tier {
	return a.EffectiveTier(now)
}

// LinkReferral attaches the owner of code as the user's referrer. Unknown
// codes, self-references, cycles and already-linked users are not errors:
// they are logged and reported as linked=false.
func (u *accountUC) LinkReferral(ctx context.Context, userID int64, code string) (bool, error) {
	defer logging.TraceDuration(u.log, "AccountUC.LinkReferral")()

	code = strings.ToUpper(strings.TrimSpace(code))
	l := u.log.With().Int64("user_id", userID).Str("code", code).Logger()
	if code == "" {
		return false, nil
	}

	var (
		linked bool
		reason string
	)
	// Serializable plus the referrer row lock: two users linking to each
	// other at once conflict, and the retried loser sees the cycle.
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	_, err := withRetry(ctx, func() (struct{}, error) {
		return struct{}{}, u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
			var err error
			linked, reason, err = u.linkReferral(ctx, tx, userID, code)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		l.Error().Err(err).Msg("link referral failed")
		return false, err
	}
	if !linked {
		l.Info().Str("reason", reason).Msg("referral not linked")
		return false, nil
	}
	metrics.IncReferralLinked()
	l.Info().Msg("referral linked")
	return true, nil
}

func (u *accountUC) linkReferral(ctx context.Context, tx repository.Tx, userID int64, code string) (bool, string, error) {
	acc, err := u.accounts.FindByID(ctx, tx, userID)
	if err != nil {
		return false, "", err
	}
	if acc.ReferredBy != nil {
		return false, "already linked", nil
	}
	referrer, err := u.accounts.FindByReferralCode(ctx, tx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return false, "unknown code", nil
	}
	if err != nil {
		return false, "", err
	}
	if referrer.UserID == userID {
		return false, "self referral", nil
	}
	cycle, err := u.accounts.IsAncestor(ctx, tx, referrer.UserID, userID)
	if err != nil {
		return false, "", err
	}
	if cycle {
		return false, "referral cycle", nil
	}
	linked, err := u.accounts.SetReferrer(ctx, tx, userID, referrer.UserID)
	if err != nil {
		return false, "", err
	}
	if !linked {
		return false, "already linked", nil
	}
	return true, "", nil
}

// IncrementUsage checks the cap for the account's effective tier and only then
// bumps the counter, under the account row lock.
func (u *accountUC) IncrementUsage(ctx context.Context, userID int64, kind model.UsageKind) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "AccountUC.IncrementUsage")()

	if kind != model.UsageTransaction && kind != model.UsageListing {
		return nil, fmt.Errorf("usage kind %q: %w", kind, domain.ErrValidation)
	}

	var out *model.Account
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		acc, err := u.accounts.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		limit := u.catalog.MaxUsage(acc.EffectiveTier(now), kind)
		if limit != model.Unlimited && acc.Usage(kind, now)+1 > limit {
			return fmt.Errorf("%s usage %d/%d: %w", kind, acc.Usage(kind, now), limit, domain.ErrLimitExceeded)
		}
		acc.AddUsage(kind, now)
		acc.Touch(now)
		if err := u.accounts.Save(ctx, tx, acc); err != nil {
			return err
		}
		out = acc
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrLimitExceeded) {
			metrics.IncUsageRejected(string(kind))
		}
		return nil, err
	}
	return out, nil
}

// ResetMonthlyUsage opens the current usage window for every account still
// on an older one. Running it again in the same month changes nothing.
func (u *accountUC) ResetMonthlyUsage(ctx context.Context, now time.Time) (int, error) {
	defer logging.TraceDuration(u.log, "AccountUC.ResetMonthlyUsage")()
	n, err := u.accounts.ResetUsage(ctx, repository.NoTX, model.UsagePeriod(now))
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ExpireTiers writes back the downgrade of every tier past its expiry.
func (u *accountUC) ExpireTiers(ctx context.Context, now time.Time) ([]int64, error) {
	defer logging.TraceDuration(u.log, "AccountUC.ExpireTiers")()
	return u.accounts.DowngradeExpired(ctx, repository.NoTX, now)
}

func (u *accountUC) QuoteFee(ctx context.Context, userID int64, amount decimal.Decimal) (*FeeQuote, error) {
	defer logging.TraceDuration(u.log, "AccountUC.QuoteFee")()

	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", domain.ErrValidation)
	}
	acc, err := u.accounts.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	tier := acc.EffectiveTier(time.Now())
	limit := u.catalog.DailyLimit(tier)
	if !limit.IsZero() && amount.GreaterThan(limit) {
		return nil, fmt.Errorf("amount %s over daily limit %s: %w", amount, limit, domain.ErrLimitExceeded)
	}
	fee := u.catalog.Fee(tier, amount)
	return &FeeQuote{
		Tier:       tier,
		Amount:     amount,
		FeePercent: u.catalog.FeePercent(tier),
		Fee:        fee,
		Total:      amount.Add(fee),
		DailyLimit: limit,
	}, nil
}
