package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/repository"
	"sheger-et-bot/internal/infra/logging"
)

// Compile-time check
var _ CampaignUseCase = (*campaignUC)(nil)

// CampaignInput is what an admin supplies to open a campaign.
type CampaignInput struct {
	Code        string
	Kind        model.CampaignKind
	Value       decimal.Decimal
	MaxUses     *int
	StartsAt    time.Time
	EndsAt      *time.Time
	Description string
}

type CampaignUseCase interface {
	// Lookup returns the campaign and whether it can be redeemed right now.
	Lookup(ctx context.Context, code string) (*model.Campaign, bool, error)
	Create(ctx context.Context, adminID int64, in CampaignInput) (*model.Campaign, error)
	Deactivate(ctx context.Context, adminID int64, code string) error
	ListActive(ctx context.Context) ([]*model.Campaign, error)
}

type campaignUC struct {
	campaigns repository.CampaignRepository
	admins    AdminPolicy
	log       *zerolog.Logger
}

func NewCampaignUseCase(campaigns repository.CampaignRepository, admins AdminPolicy, logger *zerolog.Logger) *campaignUC {
	return &campaignUC{campaigns: campaigns, admins: admins, log: logger}
}

func (u *campaignUC) Lookup(ctx context.Context, code string) (*model.Campaign, bool, error) {
	defer logging.TraceDuration(u.log, "CampaignUC.Lookup")()

	code = model.NormalizeCode(code)
	if code == "" {
		return nil, false, domain.ErrValidation
	}
	c, err := u.campaigns.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, false, err
	}
	return c, c.Applicable(time.Now()), nil
}

func (u *campaignUC) Create(ctx context.Context, adminID int64, in CampaignInput) (*model.Campaign, error) {
	defer logging.TraceDuration(u.log, "CampaignUC.Create")()

	if !isAdmin(u.admins, adminID) {
		return nil, domain.ErrUnauthorized
	}
	if in.StartsAt.IsZero() {
		in.StartsAt = time.Now()
	}
	c, err := model.NewCampaign(in.Code, in.Kind, in.Value, in.MaxUses, in.StartsAt, in.EndsAt, in.Description)
	if err != nil {
		return nil, err
	}
	if err := u.campaigns.Create(ctx, repository.NoTX, c); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			u.log.Error().Err(err).Str("code", c.Code).Msg("create campaign failed")
		}
		return nil, err
	}
	u.log.Info().Int64("admin_id", adminID).Str("code", c.Code).Str("kind", string(c.Kind)).Msg("campaign created")
	return c, nil
}

func (u *campaignUC) Deactivate(ctx context.Context, adminID int64, code string) error {
	defer logging.TraceDuration(u.log, "CampaignUC.Deactivate")()

	if !isAdmin(u.admins, adminID) {
		return domain.ErrUnauthorized
	}
	code = model.NormalizeCode(code)
	if err := u.campaigns.SetActive(ctx, repository.NoTX, code, false); err != nil {
		return err
	}
	u.log.Info().Int64("admin_id", adminID).Str("code", code).Msg("campaign deactivated")
	return nil
}

func (u *campaignUC) ListActive(ctx context.Context) ([]*model.Campaign, error) {
	return u.campaigns.ListActive(ctx, repository.NoTX)
}
