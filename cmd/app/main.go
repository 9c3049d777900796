package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"sheger-et-bot/internal/application"
	"sheger-et-bot/internal/config"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/adapter"
	tele "sheger-et-bot/internal/infra/adapters/telegram"
	"sheger-et-bot/internal/infra/api"
	"sheger-et-bot/internal/infra/db/migrations"
	pg "sheger-et-bot/internal/infra/db/postgres"
	"sheger-et-bot/internal/infra/events"
	"sheger-et-bot/internal/infra/i18n"
	"sheger-et-bot/internal/infra/logging"
	"sheger-et-bot/internal/infra/metrics"
	red "sheger-et-bot/internal/infra/redis"
	"sheger-et-bot/internal/infra/sched"
	"sheger-et-bot/internal/infra/scheduler"
	"sheger-et-bot/internal/infra/web"
	"sheger-et-bot/internal/infra/worker"
	"sheger-et-bot/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

// botRunner is the adapter surface main needs beyond outgoing messages.
type botRunner interface {
	adapter.TelegramBotAdapter
	StartPolling(ctx context.Context) error
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("sheger-et-bot stopped with error")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Bool("dev", cfg.Runtime.Dev).
		Str("bot_token", logging.Redact(cfg.Bot.Token, cfg.Runtime.Dev)).
		Str("bot_mode", cfg.Bot.Mode).
		Msg("starting sheger-et-bot")

	// ---- Postgres ----
	if cfg.Database.AutoMigrate {
		if err := migrations.Up(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("database migrations applied")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	accountRepo := pg.NewAccountRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	campaignRepo := pg.NewCampaignRepoCacheDecorator(pg.NewCampaignRepo(pool), redisClient, cfg.Redis.TTL, logger)
	txManager := pg.NewTxManager(pool)

	// ---- Outbound: worker pool, events, telegram ----
	workerPool := worker.NewPool(cfg.Bot.Workers, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	var publisher adapter.EventPublisher
	if cfg.Kafka.Enabled() {
		kp, err := events.NewKafkaPublisher(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		publisher = kp
	} else {
		publisher = events.NewNoopPublisher(logger)
	}
	defer publisher.Close()

	tr, err := i18n.NewTranslator(i18n.LocalesFS, i18n.DefaultLang)
	if err != nil {
		return err
	}

	var bot botRunner
	var realBot *tele.RealTelegramBotAdapter
	if cfg.Bot.Mode == "noop" {
		bot = noopRunner{tele.NewNoopBotAdapter(logger)}
	} else {
		realBot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, rateLimiter, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bot = realBot
	}

	// ---- Use cases ----
	catalog := model.DefaultCatalog()
	admins := usecase.NewAllowList(cfg.Bot.AdminIDs)
	if len(admins.IDs()) == 0 {
		logger.Warn().Msg("no admin ids configured; admin commands are disabled")
	}

	notifyUC := usecase.NewNotificationUseCase(bot, publisher, workerPool, tr, logger)
	accountUC := usecase.NewAccountUseCase(accountRepo, catalog, txManager, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, accountRepo, catalog, notifyUC, cfg.Payment.IntentTTL, logger)
	verifyUC := usecase.NewVerificationUseCase(paymentRepo, accountRepo, campaignRepo, catalog, admins, notifyUC, txManager, logger)
	campaignUC := usecase.NewCampaignUseCase(campaignRepo, admins, logger)
	adminUC := usecase.NewAdminUseCase(accountRepo, paymentRepo, admins, logger)
	broadcastUC := usecase.NewBroadcastUseCase(accountRepo, bot, admins, workerPool, logger)

	facade := application.NewBotFacade(accountUC, paymentUC, verifyUC, campaignUC, adminUC, broadcastUC,
		admins, catalog, tr,
		application.FacadeConfig{BotUsername: cfg.Bot.Username, PaymentInstructions: cfg.Payment.Instructions},
		logger)
	if realBot != nil {
		realBot.Bind(facade)
	}

	// ---- Background jobs ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpirySweepInterval, paymentUC, logger)
	go func() { _ = expiry.Run(ctx) }()
	tierExpiry := sched.NewTierExpiryWorker(cfg.Scheduler.TierExpiryInterval, accountUC, notifyUC, logger)
	go func() { _ = tierExpiry.Run(ctx) }()
	usageReset := scheduler.NewScheduler(cfg.Scheduler.UsageResetInterval, scheduler.NewUsageResetJob(accountUC), locker, logger)
	usageReset.Start(ctx)
	defer usageReset.Stop()

	// ---- HTTP: probes, metrics, admin API ----
	router := chi.NewRouter()
	router.Use(api.Recover(logger), api.TraceID(), api.RequestLog(logger), api.Timeout(15*time.Second))
	api.NewServer(logger).
		AddCheck("postgres", pool.Ping).
		AddCheck("redis", redisClient.Ping).
		Register(router)
	if cfg.Admin.Enabled() {
		auth := web.NewAuthManager(cfg.Admin.APIKey, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
		web.NewServer(adminUC, verifyUC, paymentUC, campaignUC, broadcastUC, admins, auth, logger).RegisterRoutes(router)
	} else {
		logger.Warn().Msg("admin api disabled: admin.api_key and admin.jwt_secret are not set")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	// ---- Telegram ----
	go func() {
		if err := bot.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- fmt.Errorf("telegram polling: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		logger.Error().Err(err).Msg("component failed; shutting down")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown")
	}
	logger.Info().Msg("bye")
	return nil
}

// noopRunner lets bot.mode=noop run without polling.
type noopRunner struct {
	*tele.NoopBotAdapter
}

func (noopRunner) StartPolling(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
