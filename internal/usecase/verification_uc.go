package usecase

import (
	"context"
	"errors"
	"fmt"
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
var _ VerificationUseCase = (*verificationUC)(nil)

var hundred = decimal.NewFromInt(100)

// VerifyRequest is an admin's claim that a user's transfer arrived.
type VerifyRequest struct {
	UserID         int64
	AdminID        int64
	OverrideAmount *decimal.Decimal
	OverrideTier   *model.Tier
}

// VerifyResult describes what a verification changed.
type VerifyResult struct {
	Intent          *model.PaymentIntent
	Tier            model.Tier
	ExpiresAt       time.Time
	BaseAmount      decimal.Decimal
	Discount        decimal.Decimal
	FinalAmount     decimal.Decimal
	CampaignApplied string
	ReferrerID      *int64
	ReferralPayout  decimal.Decimal
}

// VerificationUseCase moves payment intents out of pending.
type VerificationUseCase interface {
	// Verify acts on the user's latest pending intent.
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	// VerifyReference acts on one intent; anything but pending is ErrInvalidState.
	VerifyReference(ctx context.Context, ref string, req VerifyRequest) (*VerifyResult, error)
	Reject(ctx context.Context, userID, adminID int64, reason string) (*model.PaymentIntent, error)
}

type verificationUC struct {
	payments  repository.PaymentRepository
	accounts  repository.AccountRepository
	campaigns repository.CampaignRepository
	catalog   *model.Catalog
	admins    AdminPolicy
	notify    NotificationUseCase
	tm        repository.TransactionManager
	log       *zerolog.Logger
}

func NewVerificationUseCase(
	payments repository.PaymentRepository,
	accounts repository.AccountRepository,
	campaigns repository.CampaignRepository,
	catalog *model.Catalog,
	admins AdminPolicy,
	notify NotificationUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *verificationUC {
	return &verificationUC{
		payments:  payments,
		accounts:  accounts,
		campaigns: campaigns,
		catalog:   catalog,
		admins:    admins,
		notify:    notify,
		tm:        tm,
		log:       logger,
	}
}

type locateFunc func(ctx context.Context, tx repository.Tx) (*model.PaymentIntent, error)

func (u *verificationUC) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	defer logging.TraceDuration(u.log, "VerificationUC.Verify")()
	return u.verify(ctx, req, func(ctx context.Context, tx repository.Tx) (*model.PaymentIntent, error) {
		p, err := u.payments.LatestPendingByUser(ctx, tx, req.UserID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoPendingPayment
		}
		return p, err
	})
}

func (u *verificationUC) VerifyReference(ctx context.Context, ref string, req VerifyRequest) (*VerifyResult, error) {
	defer logging.TraceDuration(u.log, "VerificationUC.VerifyReference")()
	return u.verify(ctx, req, func(ctx context.Context, tx repository.Tx) (*model.PaymentIntent, error) {
		return u.payments.FindByReference(ctx, tx, ref)
	})
}

func (u *verificationUC) verify(ctx context.Context, req VerifyRequest, locate locateFunc) (*VerifyResult, error) {
	if err := u.validate(req); err != nil {
		return nil, err
	}
	l := u.log.With().Int64("user_id", req.UserID).Int64("admin_id", req.AdminID).Logger()

	start := time.Now()
	res, err := withRetry(ctx, func() (*VerifyResult, error) {
		var out *VerifyResult
		err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
			r, err := u.apply(ctx, tx, req, locate, &l)
			out = r
			return err
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
	metrics.ObservePaymentVerify(time.Since(start))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoPendingPayment), errors.Is(err, domain.ErrNotFound):
			metrics.IncPaymentVerify("fail", "no_pending")
			l.Debug().Err(err).Msg("nothing to verify")
			return nil, err
		case errors.Is(err, domain.ErrInvalidState):
			metrics.IncPaymentVerify("fail", "invalid_state")
			l.Warn().Err(err).Msg("payment intent is no longer pending")
			return nil, err
		default:
			metrics.IncPaymentVerify("fail", "internal")
			l.Error().Err(err).Msg("payment verification failed")
			return nil, fmt.Errorf("verify payment: %w", err)
		}
	}

	metrics.IncPaymentVerify("ok", "verified")
	metrics.IncPaymentIntent(string(model.PaymentStatusVerified))
	metrics.AddRevenue(string(res.Tier), res.FinalAmount.InexactFloat64())
	l.Info().
		Str("reference", res.Intent.ReferenceCode).
		Str("tier", string(res.Tier)).
		Str("final_amount", res.FinalAmount.StringFixed(2)).
		Str("referral_payout", res.ReferralPayout.StringFixed(2)).
		Msg("payment verified")

	if u.notify != nil {
		u.notify.PaymentVerified(ctx, res)
	}
	return res, nil
}

// validate rejects the request before any state is read or written.
func (u *verificationUC) validate(req VerifyRequest) error {
	if !isAdmin(u.admins, req.AdminID) {
		metrics.IncAdminCommand("verify", "unauthorized")
		return domain.ErrUnauthorized
	}
	if req.OverrideAmount != nil && req.OverrideAmount.IsNegative() {
		return fmt.Errorf("negative override amount: %w", domain.ErrValidation)
	}
	if req.OverrideTier != nil {
		if !u.catalog.Has(*req.OverrideTier) || !u.catalog.Lookup(*req.OverrideTier).Paid() {
			return fmt.Errorf("override tier %q is not purchasable: %w", *req.OverrideTier, domain.ErrValidation)
		}
	}
	return nil
}

// apply runs inside one transaction. Any error rolls back every write below.
func (u *verificationUC) apply(ctx context.Context, tx repository.Tx, req VerifyRequest, locate locateFunc, l *zerolog.Logger) (*VerifyResult, error) {
	now := time.Now()

	intent, err := locate(ctx, tx)
	if err != nil {
		return nil, err
	}
	if intent.Status != model.PaymentStatusPending {
		return nil, fmt.Errorf("intent %s is %s: %w", intent.ReferenceCode, intent.Status, domain.ErrInvalidState)
	}

	res := &VerifyResult{
		BaseAmount:     intent.RequestedAmount,
		Discount:       decimal.Zero,
		ReferralPayout: decimal.Zero,
		Tier:           intent.RequestedTier,
	}
	if req.OverrideAmount != nil {
		res.BaseAmount = *req.OverrideAmount
	}
	if req.OverrideTier != nil {
		res.Tier = *req.OverrideTier
	}
	res.FinalAmount = res.BaseAmount

	bonus := decimal.Zero
	if intent.CampaignCode != nil {
		c, err := u.redeemCampaign(ctx, tx, *intent.CampaignCode, now)
		switch {
		case err == nil:
			res.Discount = c.Discount(res.BaseAmount)
			res.FinalAmount = c.Apply(res.BaseAmount)
			res.CampaignApplied = c.Code
			bonus = c.ReferralBonusPercent()
		case errors.Is(err, domain.ErrCampaignInactive):
			l.Warn().Err(err).Str("campaign", *intent.CampaignCode).Msg("campaign not applied, using face value")
		default:
			return nil, err
		}
	}

	ok, err := u.payments.MarkVerified(ctx, tx, intent.ID, req.AdminID, res.FinalAmount, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("intent %s: %w", intent.ReferenceCode, domain.ErrInvalidState)
	}

	acc, err := u.accounts.FindByID(ctx, tx, intent.UserID)
	if err != nil {
		return nil, err
	}
	acc.Upgrade(res.Tier, res.FinalAmount, now)
	if err := u.accounts.Save(ctx, tx, acc); err != nil {
		return nil, err
	}
	res.ExpiresAt = *acc.TierExpiresAt

	if acc.ReferredBy != nil {
		referrer, err := u.accounts.FindByID(ctx, tx, *acc.ReferredBy)
		if err != nil {
			return nil, err
		}
		pct := u.catalog.ReferralCommissionPercent(referrer.EffectiveTier(now)).Add(bonus)
		payout := res.FinalAmount.Mul(pct).Div(hundred).Round(2)
		if payout.IsPositive() {
			referrer.Credit(payout)
			if err := u.accounts.Save(ctx, tx, referrer); err != nil {
				return nil, err
			}
		}
		id := referrer.UserID
		res.ReferrerID = &id
		res.ReferralPayout = payout
	}

	verified := *intent
	verified.Status = model.PaymentStatusVerified
	verified.VerifiedAt = &now
	verified.VerifiedBy = &req.AdminID
	verified.FinalAmount = &res.FinalAmount
	res.Intent = &verified
	return res, nil
}

func (u *verificationUC) redeemCampaign(ctx context.Context, tx repository.Tx, code string, now time.Time) (*model.Campaign, error) {
	c, err := u.campaigns.FindByCode(ctx, tx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("campaign %s unknown: %w", code, domain.ErrCampaignInactive)
	}
	if err != nil {
		return nil, err
	}
	if !c.Applicable(now) {
		return nil, fmt.Errorf("campaign %s outside window or cap: %w", code, domain.ErrCampaignInactive)
	}
	ok, err := u.campaigns.IncrementUsed(ctx, tx, c.Code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("campaign %s cap reached: %w", code, domain.ErrCampaignInactive)
	}
	c.UsedCount++
	return c, nil
}

// Reject marks the user's latest pending intent as failed.
func (u *verificationUC) Reject(ctx context.Context, userID, adminID int64, reason string) (*model.PaymentIntent, error) {
	defer logging.TraceDuration(u.log, "VerificationUC.Reject")()

	if !isAdmin(u.admins, adminID) {
		metrics.IncAdminCommand("reject", "unauthorized")
		return nil, domain.ErrUnauthorized
	}

	rejected, err := withRetry(ctx, func() (*model.PaymentIntent, error) {
		var out *model.PaymentIntent
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			p, err := u.payments.LatestPendingByUser(ctx, tx, userID)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNoPendingPayment
			}
			if err != nil {
				return err
			}
			now := time.Now()
			ok, err := u.payments.MarkFailed(ctx, tx, p.ID, adminID, reason, now)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("intent %s: %w", p.ReferenceCode, domain.ErrInvalidState)
			}
			p.Status = model.PaymentStatusFailed
			p.VerifiedAt = &now
			p.VerifiedBy = &adminID
			p.Note = reason
			out = p
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			u.log.Warn().Err(err).Int64("user_id", userID).Msg("reject raced with another transition")
		}
		return nil, err
	}

	metrics.IncPaymentIntent(string(model.PaymentStatusFailed))
	u.log.Info().Int64("user_id", userID).Int64("admin_id", adminID).Str("reference", rejected.ReferenceCode).Msg("payment rejected")
	if u.notify != nil {
		u.notify.PaymentRejected(ctx, rejected)
	}
	return rejected, nil
}
