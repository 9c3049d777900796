package repository

import (
	"context"

	"sheger-et-bot/internal/domain/model"
)

// -----------------------------
// Campaigns
// -----------------------------

type CampaignRepository interface {
	Create(ctx context.Context, tx Tx, c *model.Campaign) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Campaign, error)
	// IncrementUsed bumps used_count unless max_uses is reached or the campaign is inactive.
	IncrementUsed(ctx context.Context, tx Tx, code string) (bool, error)
	SetActive(ctx context.Context, tx Tx, code string, active bool) error
	ListActive(ctx context.Context, tx Tx) ([]*model.Campaign, error)
}
