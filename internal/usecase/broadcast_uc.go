package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/adapter"
	"sheger-et-bot/internal/domain/ports/repository"
	"sheger-et-bot/internal/infra/metrics"
	"sheger-et-bot/internal/infra/worker"
)

// Compile-time check
var _ BroadcastUseCase = (*broadcastUC)(nil)

// Telegram allows roughly 30 messages per second per bot.
const broadcastRate = time.Second / 25

type BroadcastUseCase interface {
	// Broadcast queues message for every non-admin account whose effective tier
	// is tier (all accounts when tier is nil) and returns how many were queued.
	Broadcast(ctx context.Context, adminID int64, tier *model.Tier, message string) (int, error)
}

type broadcastUC struct {
	accounts   repository.AccountRepository
	bot        adapter.TelegramBotAdapter
	admins     AdminPolicy
	workerPool *worker.Pool
	interval   time.Duration
	log        *zerolog.Logger
}

func NewBroadcastUseCase(
	accounts repository.AccountRepository,
	bot adapter.TelegramBotAdapter,
	admins AdminPolicy,
	pool *worker.Pool,
	logger *zerolog.Logger,
) *broadcastUC {
	return &broadcastUC{
		accounts:   accounts,
		bot:        bot,
		admins:     admins,
		workerPool: pool,
		interval:   broadcastRate,
		log:        logger,
	}
}

func (uc *broadcastUC) Broadcast(ctx context.Context, adminID int64, tier *model.Tier, message string) (int, error) {
	if !isAdmin(uc.admins, adminID) {
		metrics.IncAdminCommand("broadcast", "unauthorized")
		return 0, domain.ErrUnauthorized
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return 0, domain.ErrValidation
	}

	ids, err := uc.accounts.ListByEffectiveTier(ctx, repository.NoTX, tier, time.Now())
	if err != nil {
		uc.log.Error().Err(err).Msg("failed to list recipients for broadcast")
		return 0, err
	}
	recipients := ids[:0:0]
	for _, id := range ids {
		if !uc.admins.IsAdmin(id) {
			recipients = append(recipients, id)
		}
	}
	metrics.IncAdminCommand("broadcast", "authorized")

	// The request context ends with the admin's command; queuing outlives it.
	go uc.dispatch(context.WithoutCancel(ctx), recipients, message)

	return len(recipients), nil
}

func (uc *broadcastUC) dispatch(ctx context.Context, recipients []int64, message string) {
	throttle := time.NewTicker(uc.interval)
	defer throttle.Stop()
	uc.log.Info().Int("recipients", len(recipients)).Msg("starting broadcast job")

	queued := 0
	for _, id := range recipients {
		select {
		case <-ctx.Done():
			return
		case <-throttle.C:
		}
		if err := uc.workerPool.Submit(uc.sendTask(id, message)); err != nil {
			uc.log.Warn().Err(err).Int64("user_id", id).Msg("failed to submit broadcast task")
			continue
		}
		queued++
	}
	metrics.AddBroadcastQueued(queued)
	uc.log.Info().Int("queued", queued).Msg("broadcast job finished queuing")
}

func (uc *broadcastUC) sendTask(userID int64, message string) worker.Task {
	return func(ctx context.Context) error {
		if err := uc.bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: userID, Text: message}); err != nil {
			// usually the user blocked the bot
			uc.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to send broadcast message")
		}
		return nil
	}
}
