package repository

import (
	"context"
	"time"

	"sheger-et-bot/internal/domain/model"
)

// -----------------------------
// Accounts
// -----------------------------

type AccountRepository interface {
	// Create inserts a new account; ErrAlreadyExists on a user id or referral code clash.
	Create(ctx context.Context, tx Tx, a *model.Account) error
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, userID int64) (*model.Account, error)
	FindByReferralCode(ctx context.Context, tx Tx, code string) (*model.Account, error)
	ReferralCodeExists(ctx context.Context, tx Tx, code string) (bool, error)

	// SetReferrer sets referred_by only when it is still NULL; false means it was already set.
	SetReferrer(ctx context.Context, tx Tx, userID, referrerID int64) (bool, error)
	// IsAncestor reports whether candidate appears in the referral chain above userID.
	IsAncestor(ctx context.Context, tx Tx, userID, candidate int64) (bool, error)

	// ResetUsage zeroes counters of accounts whose usage period differs from period.
	ResetUsage(ctx context.Context, tx Tx, period string) (int, error)
	// DowngradeExpired moves accounts past their tier expiry back to basic.
	DowngradeExpired(ctx context.Context, tx Tx, now time.Time) ([]int64, error)

	ListByEffectiveTier(ctx context.Context, tx Tx, tier *model.Tier, now time.Time) ([]int64, error)
	Stats(ctx context.Context, tx Tx, now, activeSince time.Time) (*model.AccountStats, error)
}
