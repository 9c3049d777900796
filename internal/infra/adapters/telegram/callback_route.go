package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sheger-et-bot/internal/infra/logging"
	"sheger-et-bot/internal/infra/metrics"
)

const (
	cbUpgradePrefix = "upgrade:"
	cbAdminPending  = "admin:pending"
	cbPremium       = "menu:premium"
)

var errUnknownCallback = errors.New("unknown callback data")

type cbHandler func(ctx context.Context, userID, chatID int64, data string) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

// Exact-match callbacks
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		cbPremium:      r.premiumCBRoute,
		cbAdminPending: r.pendingCBRoute,
	}
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: cbUpgradePrefix, Fn: r.upgradePrefixCBRoute},
	}
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}
	// stop the client spinner whatever happens
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	userID := query.From.ID
	chatID := userID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	ctx = logging.WithUserID(ctx, userID)

	data := strings.TrimSpace(query.Data)
	metrics.IncTelegramCommand("cb:" + strings.SplitN(data, ":", 2)[0])
	if !r.allow(ctx, userID, "cb:"+data) {
		return r.reply(ctx, chatID, r.commands.T("err_rate_limited"))
	}

	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, userID, chatID, data)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, userID, chatID, data)
		}
	}
	return errUnknownCallback
}

func (r *RealTelegramBotAdapter) premiumCBRoute(ctx context.Context, userID, chatID int64, _ string) error {
	text, err := r.commands.Premium(ctx, userID)
	if err != nil {
		return r.respond(ctx, chatID, "", err)
	}
	return r.replyButtons(ctx, chatID, text, r.commands.UpgradeButtons())
}

func (r *RealTelegramBotAdapter) pendingCBRoute(ctx context.Context, userID, chatID int64, _ string) error {
	if !r.commands.IsAdmin(userID) {
		metrics.IncAdminCommand(cbAdminPending, "unauthorized")
		return r.reply(ctx, chatID, r.commands.T("err_admin_only"))
	}
	metrics.IncAdminCommand(cbAdminPending, "authorized")
	text, err := r.commands.Payments(ctx, userID)
	return r.respond(ctx, chatID, text, err)
}

// upgradePrefixCBRoute handles "upgrade:<tier>" at the monthly price.
func (r *RealTelegramBotAdapter) upgradePrefixCBRoute(ctx context.Context, userID, chatID int64, data string) error {
	tier := strings.TrimPrefix(data, cbUpgradePrefix)
	text, err := r.commands.Upgrade(ctx, userID, []string{tier})
	return r.respond(ctx, chatID, text, err)
}
