package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain"
)

// Tier is an ordered subscription level. Higher ranks pay lower fees.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// BillingPeriod selects which catalog price an upgrade is charged at.
type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "monthly"
	BillingYearly  BillingPeriod = "yearly"
)

// UsageKind names a monthly usage counter on an account.
type UsageKind string

const (
	UsageTransaction UsageKind = "transaction"
	UsageListing     UsageKind = "listing"
)

// Unlimited marks a usage cap that is never reached.
const Unlimited = -1

// TierSpec is one row of the tier catalog.
type TierSpec struct {
	Tier                      Tier
	Rank                      int
	DisplayName               string
	MonthlyPrice              decimal.Decimal
	YearlyPrice               decimal.Decimal
	FeePercent                decimal.Decimal
	DailyLimit                decimal.Decimal // zero means unlimited
	ReferralCommissionPercent decimal.Decimal
	MaxTransactions           int
	MaxListings               int
	Features                  []string
}

func (s TierSpec) Paid() bool { return s.MonthlyPrice.IsPositive() }

// UnlimitedDaily reports whether the tier has no daily transfer cap.
func (s TierSpec) UnlimitedDaily() bool { return s.DailyLimit.IsZero() }

// Catalog is the single source of truth for tier pricing, fees and limits.
type Catalog struct {
	specs map[Tier]TierSpec
	order []Tier
}

// DefaultCatalog returns the SHEGER ET tier table.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		TierSpec{
			Tier:                      TierBasic,
			Rank:                      0,
			DisplayName:               "BASIC",
			MonthlyPrice:              decimal.Zero,
			YearlyPrice:               decimal.Zero,
			FeePercent:                decimal.RequireFromString("2.5"),
			DailyLimit:                decimal.NewFromInt(5000),
			ReferralCommissionPercent: decimal.NewFromInt(5),
			MaxTransactions:           30,
			MaxListings:               3,
			Features:                  []string{"p2p_transfer", "marketplace_browse", "free_listings"},
		},
		TierSpec{
			Tier:                      TierPro,
			Rank:                      1,
			DisplayName:               "PRO",
			MonthlyPrice:              decimal.NewFromInt(149),
			YearlyPrice:               decimal.NewFromInt(1499),
			FeePercent:                decimal.RequireFromString("1.5"),
			DailyLimit:                decimal.NewFromInt(50000),
			ReferralCommissionPercent: decimal.NewFromInt(10),
			MaxTransactions:           Unlimited,
			MaxListings:               Unlimited,
			Features:                  []string{"p2p_transfer", "marketplace_browse", "unlimited_listings", "priority_support", "analytics"},
		},
		TierSpec{
			Tier:                      TierEnterprise,
			Rank:                      2,
			DisplayName:               "ENTERPRISE",
			MonthlyPrice:              decimal.NewFromInt(999),
			YearlyPrice:               decimal.NewFromInt(9999),
			FeePercent:                decimal.RequireFromString("0.8"),
			DailyLimit:                decimal.Zero,
			ReferralCommissionPercent: decimal.NewFromInt(15),
			MaxTransactions:           Unlimited,
			MaxListings:               Unlimited,
			Features:                  []string{"p2p_transfer", "marketplace_browse", "unlimited_listings", "priority_support", "analytics", "bulk_payments", "api_access", "dedicated_manager"},
		},
	)
}

// NewCatalog builds a catalog ordered by rank. The lowest rank is the
// fallback for unknown tiers.
func NewCatalog(specs ...TierSpec) *Catalog {
	c := &Catalog{specs: make(map[Tier]TierSpec, len(specs))}
	for _, s := range specs {
		c.specs[s.Tier] = s
		c.order = append(c.order, s.Tier)
	}
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.specs[c.order[i]].Rank < c.specs[c.order[j]].Rank
	})
	return c
}

// Lookup returns the catalog row for t, falling back to the lowest rank.
func (c *Catalog) Lookup(t Tier) TierSpec {
	if s, ok := c.specs[t]; ok {
		return s
	}
	return c.specs[c.order[0]]
}

func (c *Catalog) Has(t Tier) bool {
	_, ok := c.specs[t]
	return ok
}

func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.order))
	copy(out, c.order)
	return out
}

// Paid lists the tiers that can be purchased.
func (c *Catalog) Paid() []Tier {
	var out []Tier
	for _, t := range c.order {
		if c.specs[t].Paid() {
			out = append(out, t)
		}
	}
	return out
}

func (c *Catalog) Base() Tier { return c.order[0] }

func (c *Catalog) FeePercent(t Tier) decimal.Decimal { return c.Lookup(t).FeePercent }

func (c *Catalog) DailyLimit(t Tier) decimal.Decimal { return c.Lookup(t).DailyLimit }

func (c *Catalog) ReferralCommissionPercent(t Tier) decimal.Decimal {
	return c.Lookup(t).ReferralCommissionPercent
}

func (c *Catalog) Features(t Tier) []string { return c.Lookup(t).Features }

// MaxUsage returns the monthly cap for kind, or Unlimited.
func (c *Catalog) MaxUsage(t Tier, kind UsageKind) int {
	s := c.Lookup(t)
	switch kind {
	case UsageTransaction:
		return s.MaxTransactions
	case UsageListing:
		return s.MaxListings
	}
	return 0
}

// Price returns the catalog price of t for the billing period.
func (c *Catalog) Price(t Tier, period BillingPeriod) (decimal.Decimal, error) {
	s, ok := c.specs[t]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown tier %q: %w", t, domain.ErrValidation)
	}
	switch period {
	case BillingMonthly, "":
		return s.MonthlyPrice, nil
	case BillingYearly:
		return s.YearlyPrice, nil
	}
	return decimal.Zero, fmt.Errorf("unknown billing period %q: %w", period, domain.ErrValidation)
}

// Fee computes the transaction fee for amount on tier t, rounded to cents.
func (c *Catalog) Fee(t Tier, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.FeePercent(t)).Div(decimal.NewFromInt(100)).Round(2)
}

// ParseTier accepts current names and the historical aliases.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "free":
		return TierBasic, nil
	case "pro", "advanced":
		return TierPro, nil
	case "enterprise", "business":
		return TierEnterprise, nil
	}
	return "", fmt.Errorf("unknown tier %q: %w", s, domain.ErrValidation)
}

func ParseBillingPeriod(s string) (BillingPeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monthly", "month", "m":
		return BillingMonthly, nil
	case "yearly", "year", "annual", "y":
		return BillingYearly, nil
	}
	return "", fmt.Errorf("unknown billing period %q: %w", s, domain.ErrValidation)
}
