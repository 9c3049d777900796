package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"sheger-et-bot/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs outgoing messages instead of sending them. It backs
// bot.mode=noop for local runs without a token.
type NoopBotAdapter struct {
	log zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logger.With().Str("component", "noop_telegram").Logger()}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().
		Int64("chat_id", params.ChatID).
		Int("button_rows", len(params.Buttons)).
		Str("text", params.Text).
		Msg("send message")
	return nil
}

func (b *NoopBotAdapter) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	b.log.Debug().Int64("chat_id", chatID).Bool("admin", isAdmin).Msg("set menu commands")
	return nil
}
