package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"sheger-et-bot/internal/config"
	"sheger-et-bot/internal/domain/ports/adapter"
	"sheger-et-bot/internal/infra/logging"
	"sheger-et-bot/internal/infra/metrics"
	red "sheger-et-bot/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// botAPI is the part of tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RealTelegramBotAdapter polls updates with tgbotapi and routes them to Commands.
type RealTelegramBotAdapter struct {
	bot         botAPI
	commands    Commands
	rateLimiter RateLimiter
	rateLimit   int
	rateWindow  time.Duration
	log         zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

var errNotBound = errors.New("telegram adapter has no commands bound")

// NewRealTelegramBotAdapter logs in with cfg.Token. A nil rateLimiter
// disables per-user rate limiting. Outgoing messages work right away; Bind
// must be called before StartPolling.
func NewRealTelegramBotAdapter(cfg *config.BotConfig, rateLimiter RateLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	r := newRealTelegramBotAdapter(bot, cfg, rateLimiter, logger)
	r.log.Info().Str("username", bot.Self.UserName).Msg("telegram bot authorized")
	return r, nil
}

func newRealTelegramBotAdapter(bot botAPI, cfg *config.BotConfig, rateLimiter RateLimiter, logger *zerolog.Logger) *RealTelegramBotAdapter {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	return &RealTelegramBotAdapter{
		bot:           bot,
		rateLimiter:   rateLimiter,
		rateLimit:     cfg.RateLimit,
		rateWindow:    cfg.RateWindow,
		log:           logger.With().Str("component", "telegram").Logger(),
		updateWorkers: workers,
	}
}

// Bind attaches the command handlers. Notifications need the adapter before
// the application layer exists, hence the separate step.
func (r *RealTelegramBotAdapter) Bind(commands Commands) *RealTelegramBotAdapter {
	r.commands = commands
	return r
}

// StartPolling fans updates out to the worker goroutines and blocks until ctx
// is canceled or StopPolling is called.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.commands == nil {
		return errNotBound
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel
	defer cancel()

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)
	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for up := range updateChan {
				if err := r.handleUpdate(ctx, up); err != nil {
					r.log.Error().Err(err).Int("worker", id).Int("update_id", up.UpdateID).Msg("update handling failed")
				}
			}
		}(i)
	}

	r.log.Info().Int("workers", r.updateWorkers).Msg("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			r.log.Info().Msg("telegram polling stopped")
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				close(updateChan)
				wg.Wait()
				return nil
			}
			updateChan <- up
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// SendMessage sends params.Text with an optional inline keyboard.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := tgbotapi.NewMessage(params.ChatID, params.Text)
	msg.ParseMode = params.ParseMode
	msg.DisableWebPagePreview = true
	if kb, ok := inlineKeyboard(params.Buttons); ok {
		msg.ReplyMarkup = kb
	}
	_, err := r.bot.Send(msg)
	return err
}

// inlineKeyboard converts button rows: URL buttons open a link, the rest send
// their Data (or their label when Data is empty) as callback data.
func inlineKeyboard(rows [][]adapter.InlineButton) (tgbotapi.InlineKeyboardMarkup, bool) {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, out)
	}
	if len(kbRows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...), true
}

var (
	userMenu = []tgbotapi.BotCommand{
		{Command: "start", Description: "Main menu"},
		{Command: "premium", Description: "Plans and prices"},
		{Command: "upgrade", Description: "Request an upgrade"},
		{Command: "status", Description: "Your plan and usage"},
		{Command: "referral", Description: "Referral code and earnings"},
		{Command: "promo", Description: "Check a campaign code"},
		{Command: "transfer", Description: "Quote a transfer fee"},
		{Command: "listing", Description: "Record a listing"},
		{Command: "help", Description: "All commands"},
	}
	adminMenu = []tgbotapi.BotCommand{
		{Command: "payments", Description: "Pending payments"},
		{Command: "verify", Description: "Verify a user's payment"},
		{Command: "verifyref", Description: "Verify by reference"},
		{Command: "reject", Description: "Reject a payment"},
		{Command: "revenue", Description: "Revenue report"},
		{Command: "stats", Description: "Account statistics"},
		{Command: "broadcast", Description: "Message users"},
		{Command: "sweep", Description: "Expire stale requests"},
	}
)

// SetMenuCommands scopes the command menu to one chat; admins see their extra commands.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	cmds := append([]tgbotapi.BotCommand(nil), userMenu...)
	if isAdmin {
		cmds = append(cmds, adminMenu...)
	}
	cfg := tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(chatID), cmds...)
	_, err := r.bot.Request(cfg)
	return err
}

// allow applies the per-user fixed window. Limiter failures let the request through.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64, key string) bool {
	if r.rateLimiter == nil || r.rateLimit <= 0 {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(userID, key), r.rateLimit, r.rateWindow)
	if err != nil {
		r.log.Warn().Err(err).Int64("user_id", userID).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ctx = logging.WithTraceID(ctx, "tg-"+strconv.Itoa(update.UpdateID))

	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	ctx = logging.WithUserID(ctx, msg.From.ID)

	if !msg.IsCommand() {
		return nil
	}
	command := msg.Command()
	metrics.IncTelegramCommand("/" + command)

	if !r.allow(ctx, msg.From.ID, command) {
		return r.reply(ctx, msg.Chat.ID, r.commands.T("err_rate_limited"))
	}

	handler, ok := r.commandRoutes()[command]
	if !ok {
		return r.reply(ctx, msg.Chat.ID, r.commands.T("err_unknown_command"))
	}
	return handler(ctx, msg)
}

func (r *RealTelegramBotAdapter) reply(ctx context.Context, chatID int64, text string) error {
	return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: text})
}

func (r *RealTelegramBotAdapter) replyButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: text, Buttons: rows})
}

// respond sends text, or the generic error when err is set. The error itself
// only goes to the log.
func (r *RealTelegramBotAdapter) respond(ctx context.Context, chatID int64, text string, err error) error {
	if err != nil {
		logging.With(ctx, &r.log).Error().Err(err).Int64("chat_id", chatID).Msg("command failed")
		text = r.commands.T("err_generic")
	}
	return r.reply(ctx, chatID, text)
}
