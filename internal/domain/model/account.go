package model

import (
	"time"

	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain"
)

// TierDuration is how long a verified upgrade lasts.
const TierDuration = 30 * 24 * time.Hour

// Profile holds the chat-platform fields captured on first contact.
type Profile struct {
	Username     string
	FirstName    string
	LanguageCode string
}

// Account is a SHEGER ET user keyed by their Telegram user id.
type Account struct {
	UserID  int64
	Profile Profile

	Tier          Tier
	TierExpiresAt *time.Time

	Balance     decimal.Decimal
	TotalSpent  decimal.Decimal
	TotalEarned decimal.Decimal

	ReferralCode string
	ReferredBy   *int64

	MonthlyTransactionCount int
	MonthlyListingCount     int
	UsagePeriod             string

	JoinedAt     time.Time
	LastActiveAt time.Time
}

func NewAccount(userID int64, p Profile, referralCode string, now time.Time) (*Account, error) {
	if userID <= 0 || referralCode == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Account{
		UserID:       userID,
		Profile:      p,
		Tier:         TierBasic,
		Balance:      decimal.Zero,
		TotalSpent:   decimal.Zero,
		TotalEarned:  decimal.Zero,
		ReferralCode: referralCode,
		UsagePeriod:  UsagePeriod(now),
		JoinedAt:     now,
		LastActiveAt: now,
	}, nil
}

// EffectiveTier is the tier that governs fees and limits at now. A paid tier
// without an expiry, or past it, counts as basic.
func (a *Account) EffectiveTier(now time.Time) Tier {
	if a.Tier == TierBasic || a.TierExpiresAt == nil || now.After(*a.TierExpiresAt) {
		return TierBasic
	}
	return a.Tier
}

// Upgrade moves the account to t for TierDuration and opens a fresh usage window.
func (a *Account) Upgrade(t Tier, spent decimal.Decimal, now time.Time) {
	exp := now.Add(TierDuration)
	a.Tier = t
	a.TierExpiresAt = &exp
	a.TotalSpent = a.TotalSpent.Add(spent)
	a.ResetUsage(now)
	a.LastActiveAt = now
}

// Downgrade restores the basic tier, keeping the expiry invariant.
func (a *Account) Downgrade() {
	a.Tier = TierBasic
	a.TierExpiresAt = nil
}

// Credit adds referral earnings to the wallet.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
	a.TotalEarned = a.TotalEarned.Add(amount)
}

func (a *Account) ResetUsage(now time.Time) {
	a.MonthlyTransactionCount = 0
	a.MonthlyListingCount = 0
	a.UsagePeriod = UsagePeriod(now)
}

// Usage returns the counter for kind in the current window; a stale window reads as zero.
func (a *Account) Usage(kind UsageKind, now time.Time) int {
	if a.UsagePeriod != UsagePeriod(now) {
		return 0
	}
	switch kind {
	case UsageTransaction:
		return a.MonthlyTransactionCount
	case UsageListing:
		return a.MonthlyListingCount
	}
	return 0
}

// AddUsage increments the counter for kind, rolling a stale window first.
func (a *Account) AddUsage(kind UsageKind, now time.Time) {
	if a.UsagePeriod != UsagePeriod(now) {
		a.ResetUsage(now)
	}
	switch kind {
	case UsageTransaction:
		a.MonthlyTransactionCount++
	case UsageListing:
		a.MonthlyListingCount++
	}
}

func (a *Account) Touch(now time.Time) { a.LastActiveAt = now }

// UsagePeriod is the monthly window key, e.g. "2026-10".
func UsagePeriod(t time.Time) string { return t.UTC().Format("2006-01") }

// AccountStats is the admin overview of the account base.
type AccountStats struct {
	Total       int
	ByTier      map[Tier]int
	ActiveSince int
	BalanceOwed decimal.Decimal
}
