package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain"
)

type CampaignKind string

const (
	CampaignPercentDiscount CampaignKind = "percent_discount"
	CampaignFixedDiscount   CampaignKind = "fixed_discount"
	CampaignReferralBonus   CampaignKind = "referral_bonus"
)

// Campaign is a promotional code applied when a payment is verified.
type Campaign struct {
	Code        string
	Kind        CampaignKind
	Value       decimal.Decimal
	MaxUses     *int
	UsedCount   int
	StartsAt    time.Time
	EndsAt      *time.Time
	IsActive    bool
	Description string
	CreatedAt   time.Time
}

// NormalizeCode makes campaign matching case-insensitive.
func NormalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

func NewCampaign(code string, kind CampaignKind, value decimal.Decimal, maxUses *int, startsAt time.Time, endsAt *time.Time, description string) (*Campaign, error) {
	code = NormalizeCode(code)
	if code == "" || value.IsNegative() {
		return nil, domain.ErrValidation
	}
	switch kind {
	case CampaignPercentDiscount:
		if value.GreaterThan(decimal.NewFromInt(100)) {
			return nil, domain.ErrValidation
		}
	case CampaignFixedDiscount, CampaignReferralBonus:
	default:
		return nil, domain.ErrValidation
	}
	if maxUses != nil && *maxUses < 0 {
		return nil, domain.ErrValidation
	}
	if endsAt != nil && !endsAt.After(startsAt) {
		return nil, domain.ErrValidation
	}
	return &Campaign{
		Code:        code,
		Kind:        kind,
		Value:       value,
		MaxUses:     maxUses,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		IsActive:    true,
		Description: description,
		CreatedAt:   time.Now(),
	}, nil
}

// Applicable reports whether the campaign may be used at now.
func (c *Campaign) Applicable(now time.Time) bool {
	if c == nil || !c.IsActive {
		return false
	}
	if now.Before(c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && !now.Before(*c.EndsAt) {
		return false
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return false
	}
	return true
}

// Discount returns how much of amount the campaign removes, never more than amount.
func (c *Campaign) Discount(amount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.Kind {
	case CampaignPercentDiscount:
		d = amount.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
	case CampaignFixedDiscount:
		d = c.Value
	default:
		return decimal.Zero
	}
	if d.GreaterThan(amount) {
		return amount
	}
	return d
}

// Apply returns amount after discount, clamped at zero.
func (c *Campaign) Apply(amount decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, amount.Sub(c.Discount(amount)))
}

// ReferralBonusPercent is the extra commission a referral_bonus campaign grants.
func (c *Campaign) ReferralBonusPercent() decimal.Decimal {
	if c == nil || c.Kind != CampaignReferralBonus {
		return decimal.Zero
	}
	return c.Value
}
