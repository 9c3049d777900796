package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/config"
	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/repository"
	pg "sheger-et-bot/internal/infra/db/postgres"
	"sheger-et-bot/internal/infra/logging"
)

// launchCampaigns are created once; existing codes are left untouched.
func launchCampaigns() []struct {
	code  string
	kind  model.CampaignKind
	value decimal.Decimal
	desc  string
} {
	return []struct {
		code  string
		kind  model.CampaignKind
		value decimal.Decimal
		desc  string
	}{
		{"SHEGERLAUNCH", model.CampaignPercentDiscount, decimal.NewFromInt(100), "First month FREE on any plan"},
		{"REFER10", model.CampaignReferralBonus, decimal.NewFromInt(10), "+10% referral commission"},
	}
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	repo := pg.NewCampaignRepo(pool)
	now := time.Now().UTC()
	for _, s := range launchCampaigns() {
		c, err := model.NewCampaign(s.code, s.kind, s.value, nil, now, nil, s.desc)
		if err != nil {
			logger.Fatal().Err(err).Str("code", s.code).Msg("invalid seed campaign")
		}
		err = repo.Create(ctx, repository.NoTX, c)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			logger.Info().Str("code", c.Code).Msg("campaign already present")
		case err != nil:
			logger.Fatal().Err(err).Str("code", c.Code).Msg("seed campaign")
		default:
			logger.Info().Str("code", c.Code).Str("kind", string(c.Kind)).Str("value", c.Value.String()).Msg("campaign seeded")
		}
	}
}
