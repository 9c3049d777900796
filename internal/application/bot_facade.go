package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/adapter"
	"sheger-et-bot/internal/infra/logging"
	"sheger-et-bot/internal/usecase"
)

const (
	dateLayout     = "Jan 02, 2006"
	pendingPreview = 20
	referralPrefix = "ref_"
)

// FacadeConfig carries the presentation settings of the bot.
type FacadeConfig struct {
	BotUsername         string
	PaymentInstructions string
}

// BotFacade composes use cases into chat commands. Every method returns the
// text to send; expected domain outcomes (limits, missing payments, refusals)
// come back as text with a nil error, anything else as an error.
type BotFacade struct {
	accounts  usecase.AccountUseCase
	payments  usecase.PaymentUseCase
	verify    usecase.VerificationUseCase
	campaigns usecase.CampaignUseCase
	admin     usecase.AdminUseCase
	broadcast usecase.BroadcastUseCase
	admins    usecase.AdminPolicy
	catalog   *model.Catalog
	tr        usecase.Translator
	cfg       FacadeConfig
	now       func() time.Time
	log       *zerolog.Logger
}

func NewBotFacade(
	accounts usecase.AccountUseCase,
	payments usecase.PaymentUseCase,
	verify usecase.VerificationUseCase,
	campaigns usecase.CampaignUseCase,
	admin usecase.AdminUseCase,
	broadcast usecase.BroadcastUseCase,
	admins usecase.AdminPolicy,
	catalog *model.Catalog,
	tr usecase.Translator,
	cfg FacadeConfig,
	logger *zerolog.Logger,
) *BotFacade {
	return &BotFacade{
		accounts:  accounts,
		payments:  payments,
		verify:    verify,
		campaigns: campaigns,
		admin:     admin,
		broadcast: broadcast,
		admins:    admins,
		catalog:   catalog,
		tr:        tr,
		cfg:       cfg,
		now:       time.Now,
		log:       logger,
	}
}

func (b *BotFacade) IsAdmin(userID int64) bool {
	return b.admins != nil && b.admins.IsAdmin(userID)
}

func (b *BotFacade) T(key string, args ...interface{}) string { return b.tr.T(key, args...) }

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func (b *BotFacade) displayName(t model.Tier) string { return b.catalog.Lookup(t).DisplayName }

// usage renders "used/max" or just "used" for unlimited counters.
func (b *BotFacade) usage(a *model.Account, kind model.UsageKind, now time.Time) string {
	used := a.Usage(kind, now)
	limit := b.catalog.MaxUsage(a.EffectiveTier(now), kind)
	if limit == model.Unlimited {
		return strconv.Itoa(used)
	}
	return fmt.Sprintf("%d/%d", used, limit)
}

// userError turns an expected domain error into chat text. ok is false for
// failures the caller should treat as internal.
func (b *BotFacade) userError(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return b.tr.T("err_admin_only"), true
	case errors.Is(err, domain.ErrInvalidState):
		return b.tr.T("err_already_processed"), true
	case errors.Is(err, domain.ErrNotFound):
		return b.tr.T("err_not_found"), true
	}
	return "", false
}

// ===== user commands =====

// Start registers the user on first contact and links a referral carried in
// the deep-link payload ("ref_CODE").
func (b *BotFacade) Start(ctx context.Context, userID int64, p model.Profile, payload string) (string, error) {
	defer logging.TraceDuration(b.log, "BotFacade.Start")()

	acc, _, err := b.accounts.GetOrCreate(ctx, userID, p)
	if err != nil {
		return "", fmt.Errorf("get or create account: %w", err)
	}

	var prefix string
	if code, ok := strings.CutPrefix(strings.TrimSpace(payload), referralPrefix); ok && code != "" {
		linked, err := b.accounts.LinkReferral(ctx, userID, code)
		if err != nil {
			b.log.Warn().Err(err).Int64("user_id", userID).Msg("referral link failed")
		}
		if linked {
			prefix = b.tr.T("welcome_referred") + "\n\n"
		}
	}

	now := b.now()
	tier := acc.EffectiveTier(now)
	name := p.FirstName
	if name == "" {
		name = p.Username
	}
	listingsLeft := b.tr.T("unlimited")
	if limit := b.catalog.MaxUsage(tier, model.UsageListing); limit != model.Unlimited {
		left := limit - acc.Usage(model.UsageListing, now)
		if left < 0 {
			left = 0
		}
		listingsLeft = fmt.Sprintf("%d/%d", left, limit)
	}
	return prefix + b.tr.T("welcome",
		name,
		b.displayName(tier),
		money(acc.Balance),
		b.catalog.FeePercent(tier).String(),
		listingsLeft,
	), nil
}

func (b *BotFacade) Help(isAdmin bool) string {
	text := b.tr.T("help")
	if isAdmin {
		text += b.tr.T("help_admin")
	}
	return text
}

// Premium lists the purchasable tiers and the campaigns running now.
func (b *BotFacade) Premium(ctx context.Context, userID int64) (string, error) {
	defer logging.TraceDuration(b.log, "BotFacade.Premium")()

	now := b.now()
	current := b.catalog.Base()
	if acc, err := b.accounts.Get(ctx, userID); err == nil {
		current = acc.EffectiveTier(now)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(b.tr.T("premium_header", b.displayName(current)))
	for _, t := range b.catalog.Paid() {
		s := b.catalog.Lookup(t)
		daily := b.tr.T("unlimited")
		if !s.DailyLimit.IsZero() {
			daily = s.DailyLimit.StringFixed(0) + " ETB"
		}
		listings := b.tr.T("unlimited")
		if s.MaxListings != model.Unlimited {
			listings = strconv.Itoa(s.MaxListings)
		}
		sb.WriteString(b.tr.T("premium_tier",
			s.DisplayName,
			s.MonthlyPrice.StringFixed(0),
			s.YearlyPrice.StringFixed(0),
			s.FeePercent.String(),
			daily,
			listings,
			s.ReferralCommissionPercent.String(),
		))
	}

	active, err := b.campaigns.ListActive(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("list campaigns for premium menu failed")
	}
	for _, c := range active {
		if c.Applicable(now) {
			sb.WriteString(b.tr.T("premium_campaign", b.describeCampaign(c), c.Code))
		}
	}
	sb.WriteString(b.tr.T("premium_footer"))
	return sb.String(), nil
}

// UpgradeButtons offers one "upgrade:<tier>" button per paid tier.
func (b *BotFacade) UpgradeButtons() [][]adapter.InlineButton {
	var rows [][]adapter.InlineButton
	for _, t := range b.catalog.Paid() {
		rows = append(rows, []adapter.InlineButton{{
			Text: b.tr.T("button_upgrade", b.displayName(t)),
			Data: "upgrade:" + string(t),
		}})
	}
	return rows
}

// Upgrade parses "<tier> [monthly|yearly] [CODE]" and opens a payment intent.
func (b *BotFacade) Upgrade(ctx context.Context, userID int64, args []string) (string, error) {
	defer logging.TraceDuration(b.log, "BotFacade.Upgrade")()

	if len(args) == 0 {
		return b.tr.T("usage_upgrade"), nil
	}
	tier, err := model.ParseTier(args[0])
	if err != nil || !b.catalog.Lookup(tier).Paid() {
		return b.tr.T("usage_upgrade"), nil
	}
	period := model.BillingMonthly
	rest := args[1:]
	if len(rest) > 0 {
		if p, err := model.ParseBillingPeriod(rest[0]); err == nil {
			period = p
			rest = rest[1:]
		}
	}
	var code string
	if len(rest) > 0 {
		code = model.NormalizeCode(rest[0])
	}

	var note string
	if code != "" {
		c, ok, err := b.campaigns.Lookup(ctx, code)
		switch {
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return "", err
		case c == nil || !ok:
			note = b.tr.T("upgrade_campaign_inactive", code)
			code = ""
		default:
			note = b.tr.T("upgrade_campaign_note", c.Code)
		}
	}

	p, err := b.payments.RequestUpgrade(ctx, userID, tier, period, code)
	if errors.Is(err, domain.ErrNotFound) {
		return b.tr.T("err_start_first"), nil
	}
	if errors.Is(err, domain.ErrValidation) {
		return b.tr.T("usage_upgrade"), nil
	}
	if err != nil {
		return "", err
	}
	return b.tr.T("upgrade_requested",
		b.displayName(tier),
		string(period),
		money(p.RequestedAmount),
		p.ReferenceCode,
		b.cfg.PaymentInstructions,
		p.ExpiresAt.Format(dateLayout+" 15:04"),
	) + note, nil
}

func (b *BotFacade) Status(ctx context.Context, userID int64) (string, error) {
	defer logging.TraceDuration(b.log, "BotFacade.Status")()

	acc, err := b.accounts.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return b.tr.T("err_start_first"), nil
	}
	if err != nil {
		return "", err
	}

	now := b.now()
	tier := acc.EffectiveTier(now)
	expires := b.tr.T("never")
	if tier != b.catalog.Base() && acc.TierExpiresAt != nil {
		expires = acc.TierExpiresAt.Format(dateLayout)
	}
	text := b.tr.T("status",
		b.displayName(tier),
		expires,
		b.catalog.FeePercent(tier).String(),
		b.usage(acc, model.UsageTransaction, now),
		b.usage(acc, model.UsageListing, now),
		money(acc.Balance),
	)
	if features := b.catalog.Features(tier); len(features) > 0 {
		text += b.tr.T("status_features", strings.ReplaceAll(strings.Join(features, ", "), "_", " "))
	}

	p, err := b.payments.LatestPendingFor(ctx, userID)
	switch {
	case err == nil:
		text += b.tr.T("status_pending",
			p.ReferenceCode,
			b.displayName(p.RequestedTier),
			money(p.RequestedAmount),
			p.ExpiresAt.Format(dateLayout+" 15:04"),
		)
	case !errors.Is(err, domain.ErrNotFound):
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("pending lookup for status failed")
	}
	return text, nil
}

func (b *BotFacade) Referral(ctx context.Context, userID int64) (string, error) {
	acc, err := b.accounts.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return b.tr.T("err_start_first"), nil
	}
	if err != nil {
		return "", err
	}
	link := referralPrefix + acc.ReferralCode
	if b.cfg.BotUsername != "" {
		link = fmt.Sprintf("https://t.me/%s?start=%s%s", b.cfg.BotUsername, referralPrefix, acc.ReferralCode)
	}
	tier := acc.EffectiveTier(b.now())
	return b.tr.T("referral",
		acc.ReferralCode,
		link,
		b.catalog.ReferralCommissionPercent(tier).String(),
		money(acc.Balance),
		money(acc.TotalEarned),
	), nil
}

func (b *BotFacade) describeCampaign(c *model.Campaign) string {
	if c.Description != "" {
		return c.Description
	}
	switch c.Kind {
	case model.CampaignPercentDiscount:
		return b.tr.T("campaign_percent", c.Value.String())
	case model.CampaignFixedDiscount:
		return b.tr.T("campaign_fixed", money(c.Value))
	default:
		return b.tr.T("campaign_bonus", c.Value.String())
	}
}

func (b *BotFacade) Promo(ctx context.Context, code string) (string, error) {
	code = model.NormalizeCode(code)
	if code == "" {
		return b.tr.T("usage_promo"), nil
	}
	c, ok, err := b.campaigns.Lookup(ctx, code)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !ok) {
		return b.tr.T("promo_inactive", code), nil
	}
	if err != nil {
		return "", err
	}
	return b.tr.T("promo_active", c.Code, b.describeCampaign(c)), nil
}

// limitText names the user's current tier in the limit message.
func (b *BotFacade) limitText(ctx context.Context, userID int64) string {
	tier := b.catalog.Base()
	if acc, err := b.accounts.Get(ctx, userID); err == nil {
		tier = acc.EffectiveTier(b.now())
	}
	return b.tr.T("err_limit", b.displayName(tier))
}

// Transfer quotes the fee for amount and counts one monthly transaction.
func (b *BotFacade) Transfer(ctx context.Context, userID int64, arg string) (string, error) {
	defer logging.TraceDuration(b.log, "BotFacade.Transfer")()

	if strings.TrimSpace(arg) == "" {
		return b.tr.T("usage_transfer"), nil
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(arg), ",", ""))
	if err != nil || !amount.IsPositive() {
		return b.tr.T("err_invalid_amount"), nil
	}

	q, err := b.accounts.QuoteFee(ctx, userID, amount)
	if err == nil {
		var acc *model.Account
		acc, err = b.accounts.IncrementUsage(ctx, userID, model.UsageTransaction)
		if err == nil {
			return b.tr.T("transfer_quote",
				money(q.Amount),
				q.FeePercent.String(),
				money(q.Fee),
				money(q.Total),
				b.usage(acc, model.UsageTransaction, b.now()),
			), nil
		}
	}
	switch {
	case errors.Is(err, domain.ErrLimitExceeded):
		return b.limitText(ctx, userID), nil
	case errors.Is(err, domain.ErrNotFound):
		return b.tr.T("err_start_first"), nil
	case errors.Is(err, domain.ErrValidation):
		return b.tr.T("err_invalid_amount"), nil
	}
	return "", err
}

func (b *BotFacade) Listing(ctx context.Context, userID int64) (string, error) {
	acc, err := b.accounts.IncrementUsage(ctx, userID, model.UsageListing)
	switch {
	case errors.Is(err, domain.ErrLimitExceeded):
		return b.limitText(ctx, userID), nil
	case errors.Is(err, domain.ErrNotFound):
		return b.tr.T("err_start_first"), nil
	case err != nil:
		return "", err
	}
	return b.tr.T("listing_ok", b.usage(acc, model.UsageListing, b.now())), nil
}

// ===== admin commands =====

// Verify parses "<user_id> [tier] [amount]" and verifies the user's latest
// pending intent.
func (b *BotFacade) Verify(ctx context.Context, adminID int64, args []string) (string, error) {
	defer logging.TraceDuration(b.log, "BotFacade.Verify")()

	if len(args) == 0 {
		return b.tr.T("usage_verify"), nil
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return b.tr.T("usage_verify"), nil
	}
	req := usecase.VerifyRequest{UserID: userID, AdminID: adminID}
	if len(args) > 1 {
		t, err := model.ParseTier(args[1])
		if err != nil {
			return b.tr.T("usage_verify"), nil
		}
		req.OverrideTier = &t
	}
	if len(args) > 2 {
		amt, err := decimal.NewFromString(args[2])
		if err != nil || amt.IsNegative() {
			return b.tr.T("usage_verify"), nil
		}
		req.OverrideAmount = &amt
	}

	res, err := b.verify.Verify(ctx, req)
	if errors.Is(err, domain.ErrNoPendingPayment) {
		return b.tr.T("err_no_pending", userID), nil
	}
	if errors.Is(err, domain.ErrValidation) {
		return b.tr.T("usage_verify"), nil
	}
	if err != nil {
		if text, ok := b.userError(err); ok {
			return text, nil
		}
		return "", err
	}
	return b.verifyText(res), nil
}

func (b *BotFacade) verifyText(res *usecase.VerifyResult) string {
	text := b.tr.T("verify_ok",
		res.Intent.UserID,
		b.displayName(res.Tier),
		money(res.FinalAmount),
		res.ExpiresAt.Format(dateLayout),
		res.Intent.ReferenceCode,
	)
	if res.CampaignApplied != "" && res.Discount.IsPositive() {
		text += b.tr.T("verify_discount", res.CampaignApplied, money(res.Discount))
	}
	if res.ReferrerID != nil && res.ReferralPayout.IsPositive() {
		text += b.tr.T("verify_referral", *res.ReferrerID, money(res.ReferralPayout))
	}
	return text
}

func (b *BotFacade) VerifyReference(ctx context.Context, adminID int64, ref string) (string, error) {
	defer logging.TraceDuration(b.log, "BotFacade.VerifyReference")()

	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return b.tr.T("usage_verifyref"), nil
	}
	// the reference lookup must not leak to non-admins
	if !b.IsAdmin(adminID) {
		return b.tr.T("err_admin_only"), nil
	}
	p, err := b.payments.FindByReference(ctx, ref)
	if err != nil {
		if text, ok := b.userError(err); ok {
			return text, nil
		}
		return "", err
	}
	res, err := b.verify.VerifyReference(ctx, ref, usecase.VerifyRequest{UserID: p.UserID, AdminID: adminID})
	if err != nil {
		if text, ok := b.userError(err); ok {
			return text, nil
		}
		return "", err
	}
	return b.verifyText(res), nil
}

func (b *BotFacade) Reject(ctx context.Context, adminID int64, args []string) (string, error) {
	if len(args) == 0 {
		return b.tr.T("usage_reject"), nil
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return b.tr.T("usage_reject"), nil
	}
	p, err := b.verify.Reject(ctx, userID, adminID, strings.Join(args[1:], " "))
	if errors.Is(err, domain.ErrNoPendingPayment) {
		return b.tr.T("err_no_pending", userID), nil
	}
	if err != nil {
		if text, ok := b.userError(err); ok {
			return text, nil
		}
		return "", err
	}
	return b.tr.T("reject_ok", p.ReferenceCode), nil
}

func (b *BotFacade) Payments(ctx context.Context, adminID int64) (string, error) {
	list, err := b.admin.ListPending(ctx, adminID, pendingPreview)
	if err != nil {
		if text, ok := b.userError(err); ok {
			return text, nil
		}
		return "", err
	}
	if len(list) == 0 {
		return b.tr.T("payments_empty"), nil
	}
	var sb strings.Builder
	sb.WriteString(b.tr.T("payments_header", len(list)))
	for _, p := range list {
		sb.WriteString(b.tr.T("payments_item",
			p.ReferenceCode,
			p.UserID,
			b.displayName(p.RequestedTier),
			money(p.RequestedAmount),
			p.ExpiresAt.Format(dateLayout+" 15:04"),
		))
	}
	return sb.String(), nil
}

func (b *BotFacade) Revenue(ctx context.Context, adminID int64) (string, error) {
	sum, err := b.admin.Revenue(ctx, adminID, b.now())
	if err != nil {
		if text, ok := b.userError(err); ok {
			return text, nil
		}
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(b.tr.T("revenue",
		money(sum.Total),
		sum.Count,
		money(sum.Last30Days),
		sum.PendingCount,
		money(sum.PendingTotal),
	))
	for _, t := range b.catalog.Paid() {
		r := sum.ByTier[t]
		sb.WriteString(b.tr.T("revenue_tier", b.displayName(t), r.Count, money(r.Sum)))
	}
	return sb.String(), nil
}

func (b *BotFacade) Stats(ctx context.Context, adminID int64) (string, error) {
	st, err := b.admin.Stats(ctx, adminID, b.now())
	if err != nil {
		if text, ok := b.userError(err); ok {
			return text, nil
		}
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(b.tr.T("stats", st.Total, st.ActiveSince, money(st.BalanceOwed)))
	for _, t := range b.catalog.Tiers() {
		sb.WriteString(b.tr.T("stats_tier", b.displayName(t), st.ByTier[t]))
	}
	return sb.String(), nil
}

// Broadcast parses "[tier] <message>"; a leading word that names a tier
// targets that tier.
func (b *BotFacade) Broadcast(ctx context.Context, adminID int64, args []string) (string, error) {
	var tier *model.Tier
	if len(args) > 1 {
		if t, err := model.ParseTier(args[0]); err == nil {
			tier = &t
			args = args[1:]
		}
	}
	msg := strings.Join(args, " ")
	n, err := b.broadcast.Broadcast(ctx, adminID, tier, msg)
	if errors.Is(err, domain.ErrValidation) {
		return b.tr.T("usage_broadcast"), nil
	}
	if err != nil {
		if text, ok := b.userError(err); ok {
			return text, nil
		}
		return "", err
	}
	return b.tr.T("broadcast_queued", n), nil
}

// Sweep runs the intent expiry on demand.
func (b *BotFacade) Sweep(ctx context.Context, adminID int64) (string, error) {
	if !b.IsAdmin(adminID) {
		return b.tr.T("err_admin_only"), nil
	}
	n, err := b.payments.ExpireSweep(ctx, b.now())
	if err != nil {
		return "", err
	}
	return b.tr.T("sweep_done", n), nil
}
