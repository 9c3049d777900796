package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"  // awaiting admin verification
	PaymentStatusVerified PaymentStatus = "verified" // admin confirmed the transfer
	PaymentStatusExpired  PaymentStatus = "expired"  // swept after the TTL
	PaymentStatusFailed   PaymentStatus = "failed"   // rejected by an admin
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool { return s != PaymentStatusPending }

// IntentTTL is how long a pending intent stays actionable.
const IntentTTL = 24 * time.Hour

// PaymentIntent records a user's request to upgrade, paid out of band.
type PaymentIntent struct {
	ID              string // ULID
	ReferenceCode   string
	UserID          int64
	RequestedTier   Tier
	RequestedAmount decimal.Decimal
	BillingPeriod   BillingPeriod
	CampaignCode    *string
	Status          PaymentStatus
	CreatedAt       time.Time
	ExpiresAt       time.Time
	VerifiedAt      *time.Time
	VerifiedBy      *int64
	FinalAmount     *decimal.Decimal
	Note            string
}

// ReferenceCode renders "{TIER}-{user_id}-{unix}".
func ReferenceCode(t Tier, userID int64, at time.Time) string {
	return fmt.Sprintf("%s-%d-%d", strings.ToUpper(string(t)), userID, at.Unix())
}

// Expired reports whether the TTL has elapsed at now.
func (p *PaymentIntent) Expired(now time.Time) bool { return now.After(p.ExpiresAt) }

// RevenueSummary aggregates verified intents.
type RevenueSummary struct {
	Total        decimal.Decimal
	Count        int
	Last30Days   decimal.Decimal
	ByTier       map[Tier]TierRevenue
	PendingCount int
	PendingTotal decimal.Decimal
}

type TierRevenue struct {
	Count int
	Sum   decimal.Decimal
}
