package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/repository"
	"sheger-et-bot/internal/infra/metrics"
	red "sheger-et-bot/internal/infra/redis"
)

var _ repository.CampaignRepository = (*campaignRepoCacheDecorator)(nil)

const activeCampaignsKey = "campaigns:active"

// campaignRepoCacheDecorator serves non-transactional reads from Redis. Reads
// inside a transaction go straight to the database so row locks still apply.
type campaignRepoCacheDecorator struct {
	inner repository.CampaignRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewCampaignRepoCacheDecorator(inner repository.CampaignRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.CampaignRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &campaignRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func campaignKey(code string) string { return "campaign:" + model.NormalizeCode(code) }

func (d *campaignRepoCacheDecorator) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Campaign, error) {
	if tx != nil {
		return d.inner.FindByCode(ctx, tx, code)
	}
	key := campaignKey(code)
	var cached model.Campaign
	if d.load(ctx, "campaign", key, &cached) {
		return &cached, nil
	}

	c, err := d.inner.FindByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	d.store(ctx, key, c)
	return c, nil
}

func (d *campaignRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Campaign, error) {
	if tx != nil {
		return d.inner.ListActive(ctx, tx)
	}
	var list []*model.Campaign
	if d.load(ctx, "campaign_list", activeCampaignsKey, &list) {
		return list, nil
	}

	list, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	d.store(ctx, activeCampaignsKey, list)
	return list, nil
}

// Writes invalidate once the change is committed, so a concurrent read cannot re-cache the old row.
func (d *campaignRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, c *model.Campaign) error {
	if err := d.inner.Create(ctx, tx, c); err != nil {
		return err
	}
	afterCommit(ctx, func() { d.invalidate(context.WithoutCancel(ctx), c.Code) })
	return nil
}

func (d *campaignRepoCacheDecorator) IncrementUsed(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	ok, err := d.inner.IncrementUsed(ctx, tx, code)
	if err == nil && ok {
		afterCommit(ctx, func() { d.invalidate(context.WithoutCancel(ctx), code) })
	}
	return ok, err
}

func (d *campaignRepoCacheDecorator) SetActive(ctx context.Context, tx repository.Tx, code string, active bool) error {
	if err := d.inner.SetActive(ctx, tx, code, active); err != nil {
		return err
	}
	afterCommit(ctx, func() { d.invalidate(context.WithoutCancel(ctx), code) })
	return nil
}

// load decodes key into dst and records a hit or miss under name.
func (d *campaignRepoCacheDecorator) load(ctx context.Context, name, key string, dst interface{}) bool {
	val, err := d.cache.Get(ctx, key)
	if err == nil && json.Unmarshal([]byte(val), dst) == nil {
		metrics.IncCacheRequest(name, "hit")
		return true
	}
	if err != nil && !errors.Is(err, red.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("campaign cache read failed")
	}
	metrics.IncCacheRequest(name, "miss")
	return false
}

func (d *campaignRepoCacheDecorator) store(ctx context.Context, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("campaign cache write failed")
	}
}

func (d *campaignRepoCacheDecorator) invalidate(ctx context.Context, code string) {
	if err := d.cache.Del(ctx, campaignKey(code), activeCampaignsKey); err != nil {
		d.log.Warn().Err(err).Str("code", code).Msg("campaign cache invalidation failed")
	}
}
