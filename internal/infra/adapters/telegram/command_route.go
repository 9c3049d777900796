package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sheger-et-bot/internal/application"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/adapter"
	"sheger-et-bot/internal/infra/metrics"
)

// Commands is what the chat surface can ask of the application layer.
type Commands interface {
	T(key string, args ...interface{}) string
	IsAdmin(userID int64) bool
	Help(isAdmin bool) string
	UpgradeButtons() [][]adapter.InlineButton

	Start(ctx context.Context, userID int64, p model.Profile, payload string) (string, error)
	Premium(ctx context.Context, userID int64) (string, error)
	Upgrade(ctx context.Context, userID int64, args []string) (string, error)
	Status(ctx context.Context, userID int64) (string, error)
	Referral(ctx context.Context, userID int64) (string, error)
	Promo(ctx context.Context, code string) (string, error)
	Transfer(ctx context.Context, userID int64, arg string) (string, error)
	Listing(ctx context.Context, userID int64) (string, error)

	Verify(ctx context.Context, adminID int64, args []string) (string, error)
	VerifyReference(ctx context.Context, adminID int64, ref string) (string, error)
	Reject(ctx context.Context, adminID int64, args []string) (string, error)
	Payments(ctx context.Context, adminID int64) (string, error)
	Revenue(ctx context.Context, adminID int64) (string, error)
	Stats(ctx context.Context, adminID int64) (string, error)
	Broadcast(ctx context.Context, adminID int64, args []string) (string, error)
	Sweep(ctx context.Context, adminID int64) (string, error)
}

var _ Commands = (*application.BotFacade)(nil)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":    r.handleStartCommand,
		"help":     r.handleHelpCommand,
		"premium":  r.handlePremiumCommand,
		"upgrade":  r.handleUpgradeCommand,
		"status":   r.handleStatusCommand,
		"referral": r.handleReferralCommand,
		"promo":    r.handlePromoCommand,
		"transfer": r.handleTransferCommand,
		"listing":  r.handleListingCommand,

		"payments":  r.adminOnly(r.handlePaymentsCommand),
		"verify":    r.adminOnly(r.handleVerifyCommand),
		"verifyref": r.adminOnly(r.handleVerifyRefCommand),
		"reject":    r.adminOnly(r.handleRejectCommand),
		"revenue":   r.adminOnly(r.handleRevenueCommand),
		"stats":     r.adminOnly(r.handleStatsCommand),
		"broadcast": r.adminOnly(r.handleBroadcastCommand),
		"sweep":     r.adminOnly(r.handleSweepCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !r.commands.IsAdmin(message.From.ID) {
			metrics.IncAdminCommand("/"+message.Command(), "unauthorized")
			r.log.Warn().Int64("user_id", message.From.ID).Str("command", message.Command()).Msg("admin command refused")
			return r.reply(ctx, message.Chat.ID, r.commands.T("err_admin_only"))
		}
		metrics.IncAdminCommand("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

func args(message *tgbotapi.Message) []string {
	return strings.Fields(message.CommandArguments())
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	from := message.From
	p := model.Profile{Username: from.UserName, FirstName: from.FirstName, LanguageCode: from.LanguageCode}
	text, err := r.commands.Start(ctx, from.ID, p, message.CommandArguments())
	if err != nil {
		return r.respond(ctx, message.Chat.ID, "", err)
	}

	isAdmin := r.commands.IsAdmin(from.ID)
	if err := r.SetMenuCommands(ctx, message.Chat.ID, isAdmin); err != nil {
		r.log.Warn().Err(err).Int64("user_id", from.ID).Msg("failed to set menu commands")
	}
	return r.replyButtons(ctx, message.Chat.ID, text, r.commands.UpgradeButtons())
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.reply(ctx, message.Chat.ID, r.commands.Help(r.commands.IsAdmin(message.From.ID)))
}

func (r *RealTelegramBotAdapter) handlePremiumCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Premium(ctx, message.From.ID)
	if err != nil {
		return r.respond(ctx, message.Chat.ID, "", err)
	}
	rows := r.commands.UpgradeButtons()
	if r.commands.IsAdmin(message.From.ID) {
		rows = append(rows, []adapter.InlineButton{{Text: r.commands.T("button_pending"), Data: cbAdminPending}})
	}
	return r.replyButtons(ctx, message.Chat.ID, text, rows)
}

func (r *RealTelegramBotAdapter) handleUpgradeCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Upgrade(ctx, message.From.ID, args(message))
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleStatusCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Status(ctx, message.From.ID)
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleReferralCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Referral(ctx, message.From.ID)
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handlePromoCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Promo(ctx, message.CommandArguments())
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleTransferCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Transfer(ctx, message.From.ID, message.CommandArguments())
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleListingCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Listing(ctx, message.From.ID)
	return r.respond(ctx, message.Chat.ID, text, err)
}

// ===== admin =====

func (r *RealTelegramBotAdapter) handlePaymentsCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Payments(ctx, message.From.ID)
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleVerifyCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Verify(ctx, message.From.ID, args(message))
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleVerifyRefCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.VerifyReference(ctx, message.From.ID, message.CommandArguments())
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleRejectCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Reject(ctx, message.From.ID, args(message))
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleRevenueCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Revenue(ctx, message.From.ID)
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleStatsCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Stats(ctx, message.From.ID)
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleBroadcastCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Broadcast(ctx, message.From.ID, args(message))
	return r.respond(ctx, message.Chat.ID, text, err)
}

func (r *RealTelegramBotAdapter) handleSweepCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.commands.Sweep(ctx, message.From.ID)
	return r.respond(ctx, message.Chat.ID, text, err)
}
