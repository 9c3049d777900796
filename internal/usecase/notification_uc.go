package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/adapter"
	"sheger-et-bot/internal/infra/metrics"
	"sheger-et-bot/internal/infra/worker"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// Translator renders user-facing text by key.
type Translator interface {
	T(key string, args ...interface{}) string
}

// NotificationUseCase delivers the after-commit side effects of payment
// transitions: chat messages and broker events. Nothing here can fail the
// caller; delivery problems are logged and counted.
type NotificationUseCase interface {
	Notify(ctx context.Context, userID int64, text string)
	PaymentVerified(ctx context.Context, res *VerifyResult)
	PaymentExpired(ctx context.Context, p *model.PaymentIntent)
	PaymentRejected(ctx context.Context, p *model.PaymentIntent)
	TierExpired(ctx context.Context, userIDs []int64)
}

type notificationUC struct {
	bot    adapter.TelegramBotAdapter
	events adapter.EventPublisher
	pool   *worker.Pool
	tr     Translator
	log    *zerolog.Logger
}

// NewNotificationUseCase wires delivery. A nil pool runs tasks inline.
func NewNotificationUseCase(bot adapter.TelegramBotAdapter, events adapter.EventPublisher, pool *worker.Pool, tr Translator, logger *zerolog.Logger) *notificationUC {
	return &notificationUC{bot: bot, events: events, pool: pool, tr: tr, log: logger}
}

func (n *notificationUC) Notify(ctx context.Context, userID int64, text string) {
	n.send(ctx, "direct", userID, text)
}

func (n *notificationUC) PaymentVerified(ctx context.Context, res *VerifyResult) {
	p := res.Intent
	n.send(ctx, "verified", p.UserID, n.tr.T("notify_payment_verified",
		strings.ToUpper(string(res.Tier)),
		res.FinalAmount.StringFixed(2),
		res.ExpiresAt.Format("Jan 02, 2006"),
	))
	if res.ReferrerID != nil && res.ReferralPayout.IsPositive() {
		n.send(ctx, "referral", *res.ReferrerID, n.tr.T("notify_referral_earned",
			res.ReferralPayout.StringFixed(2),
			strings.ToUpper(string(res.Tier)),
		))
	}
	ev := intentEvent(adapter.EventPaymentVerified, p)
	ev.Tier = string(res.Tier)
	ev.Amount = res.FinalAmount.StringFixed(2)
	ev.ReferrerID = res.ReferrerID
	if res.ReferrerID != nil {
		ev.ReferralPayout = res.ReferralPayout.StringFixed(2)
	}
	n.publish(ctx, ev)
}

func (n *notificationUC) PaymentExpired(ctx context.Context, p *model.PaymentIntent) {
	n.send(ctx, "expired", p.UserID, n.tr.T("notify_payment_expired", p.ReferenceCode))
	n.publish(ctx, intentEvent(adapter.EventPaymentExpired, p))
}

func (n *notificationUC) PaymentRejected(ctx context.Context, p *model.PaymentIntent) {
	reason := p.Note
	if reason == "" {
		reason = "-"
	}
	n.send(ctx, "rejected", p.UserID, n.tr.T("notify_payment_rejected", p.ReferenceCode, reason))
	n.publish(ctx, intentEvent(adapter.EventPaymentRejected, p))
}

func (n *notificationUC) TierExpired(ctx context.Context, userIDs []int64) {
	for _, id := range userIDs {
		n.send(ctx, "tier_expired", id, n.tr.T("notify_tier_expired"))
	}
}

func intentEvent(t adapter.PaymentEventType, p *model.PaymentIntent) adapter.PaymentEvent {
	ev := adapter.PaymentEvent{
		Type:          t,
		IntentID:      p.ID,
		ReferenceCode: p.ReferenceCode,
		UserID:        p.UserID,
		Tier:          string(p.RequestedTier),
		Amount:        p.RequestedAmount.StringFixed(2),
		AdminID:       p.VerifiedBy,
		OccurredAt:    time.Now().UTC(),
	}
	if p.FinalAmount != nil {
		ev.Amount = p.FinalAmount.StringFixed(2)
	}
	return ev
}

func (n *notificationUC) send(ctx context.Context, kind string, userID int64, text string) {
	if n.bot == nil {
		return
	}
	n.submit(ctx, kind, func(ctx context.Context) error {
		err := n.bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: userID, Text: text, ParseMode: "Markdown"})
		if err != nil {
			metrics.IncNotification(kind, "error")
			n.log.Warn().Err(err).Int64("user_id", userID).Str("kind", kind).Msg("notification not delivered")
			return nil
		}
		metrics.IncNotification(kind, "sent")
		return nil
	})
}

func (n *notificationUC) publish(ctx context.Context, ev adapter.PaymentEvent) {
	if n.events == nil {
		return
	}
	n.submit(ctx, "event", func(ctx context.Context) error {
		if err := n.events.Publish(ctx, ev); err != nil {
			metrics.IncEventPublished(string(ev.Type), "error")
			n.log.Warn().Err(err).Str("type", string(ev.Type)).Str("reference", ev.ReferenceCode).Msg("event not published")
			return nil
		}
		metrics.IncEventPublished(string(ev.Type), "ok")
		return nil
	})
}

func (n *notificationUC) submit(ctx context.Context, kind string, task worker.Task) {
	if n.pool == nil {
		_ = task(ctx)
		return
	}
	if err := n.pool.Submit(task); err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			metrics.IncNotification(kind, "dropped")
		}
		n.log.Warn().Err(err).Str("kind", kind).Msg("notification task dropped")
		return
	}
	metrics.IncNotification(kind, "queued")
}
