//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/repository"
	red "sheger-et-bot/internal/infra/redis"
)

func TestCampaignRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	campaign := &model.Campaign{
		Code:     "SHEGER10",
		Kind:     model.CampaignPercentDiscount,
		Value:    decimal.NewFromInt(10),
		StartsAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive: true,
	}
	campaignJSON, _ := json.Marshal(campaign)

	t.Run("FindByCode should return from cache on hit", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if key != "campaign:SHEGER10" {
					t.Errorf("unexpected key %q", key)
				}
				return string(campaignJSON), nil
			},
		}
		innerCalled := false
		inner := &mockInnerCampaignRepo{
			FindByCodeFunc: func(ctx context.Context, tx repository.Tx, code string) (*model.Campaign, error) {
				innerCalled = true
				return nil, nil
			},
		}

		decorator := NewCampaignRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		result, err := decorator.FindByCode(ctx, nil, "sheger10")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if result == nil || result.Code != "SHEGER10" || !result.Value.Equal(decimal.NewFromInt(10)) {
			t.Errorf("did not return the cached campaign, got %+v", result)
		}
	})

	t.Run("FindByCode should fill the cache on miss", func(t *testing.T) {
		var storedKey string
		var storedTTL time.Duration
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				storedKey, storedTTL = key, expiration
				return nil
			},
		}
		inner := &mockInnerCampaignRepo{
			FindByCodeFunc: func(ctx context.Context, tx repository.Tx, code string) (*model.Campaign, error) {
				return campaign, nil
			},
		}

		decorator := NewCampaignRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		if _, err := decorator.FindByCode(ctx, nil, "SHEGER10"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if storedKey != "campaign:SHEGER10" || storedTTL != time.Minute {
			t.Errorf("expected the campaign to be cached for a minute, got %q %s", storedKey, storedTTL)
		}
	})

	t.Run("FindByCode inside a transaction should bypass the cache", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				t.Error("cache must not be read inside a transaction")
				return "", nil
			},
		}
		innerCalled := false
		inner := &mockInnerCampaignRepo{
			FindByCodeFunc: func(ctx context.Context, tx repository.Tx, code string) (*model.Campaign, error) {
				innerCalled = true
				return campaign, nil
			},
		}

		decorator := NewCampaignRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		if _, err := decorator.FindByCode(ctx, struct{}{}, "SHEGER10"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !innerCalled {
			t.Error("expected the inner repository to be queried")
		}
	})

	t.Run("IncrementUsed should invalidate the cache", func(t *testing.T) {
		var deletedKeys []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deletedKeys = append(deletedKeys, keys...)
				return nil
			},
		}
		inner := &mockInnerCampaignRepo{
			IncrementUsedFunc: func(ctx context.Context, tx repository.Tx, code string) (bool, error) {
				return true, nil
			},
		}

		decorator := NewCampaignRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		ok, err := decorator.IncrementUsed(ctx, nil, "SHEGER10")
		if err != nil || !ok {
			t.Fatalf("expected (true, nil), got (%v, %v)", ok, err)
		}
		if len(deletedKeys) != 2 {
			t.Fatalf("expected 2 keys to be deleted, but got %d", len(deletedKeys))
		}
	})

	t.Run("a refused IncrementUsed should leave the cache alone", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				t.Error("nothing changed, nothing to invalidate")
				return nil
			},
		}
		inner := &mockInnerCampaignRepo{
			IncrementUsedFunc: func(ctx context.Context, tx repository.Tx, code string) (bool, error) {
				return false, nil
			},
		}

		decorator := NewCampaignRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		if ok, _ := decorator.IncrementUsed(ctx, nil, "SHEGER10"); ok {
			t.Error("expected the increment to be refused")
		}
	})

	t.Run("IncrementUsed inside a transaction should invalidate after commit", func(t *testing.T) {
		var deletedKeys []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deletedKeys = append(deletedKeys, keys...)
				return nil
			},
		}
		inner := &mockInnerCampaignRepo{
			IncrementUsedFunc: func(ctx context.Context, tx repository.Tx, code string) (bool, error) {
				return true, nil
			},
		}

		decorator := NewCampaignRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		txCtx, hooks := withCommitHooks(ctx)
		if ok, err := decorator.IncrementUsed(txCtx, struct{}{}, "SHEGER10"); err != nil || !ok {
			t.Fatalf("expected (true, nil), got (%v, %v)", ok, err)
		}
		if len(deletedKeys) != 0 {
			t.Fatalf("expected no invalidation before commit, got %v", deletedKeys)
		}

		hooks.run()
		if len(deletedKeys) != 2 || deletedKeys[0] != "campaign:SHEGER10" {
			t.Fatalf("expected the campaign keys to be deleted on commit, got %v", deletedKeys)
		}
	})

	t.Run("a rolled back IncrementUsed should leave the cache alone", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				t.Error("a rolled back transaction must not invalidate")
				return nil
			},
		}
		inner := &mockInnerCampaignRepo{
			IncrementUsedFunc: func(ctx context.Context, tx repository.Tx, code string) (bool, error) {
				return true, nil
			},
		}

		decorator := NewCampaignRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		txCtx, _ := withCommitHooks(ctx)
		if _, err := decorator.IncrementUsed(txCtx, struct{}{}, "SHEGER10"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("ListActive should cache the list", func(t *testing.T) {
		calls := 0
		cache := map[string]string{}
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if v, ok := cache[key]; ok {
					return v, nil
				}
				return "", red.Nil
			},
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				cache[key] = string(value.([]byte))
				return nil
			},
		}
		inner := &mockInnerCampaignRepo{
			ListActiveFunc: func(ctx context.Context, tx repository.Tx) ([]*model.Campaign, error) {
				calls++
				return []*model.Campaign{campaign}, nil
			},
		}

		decorator := NewCampaignRepoCacheDecorator(inner, mockRedis, time.Minute, &logger)
		for i := 0; i < 2; i++ {
			list, err := decorator.ListActive(ctx, nil)
			if err != nil || len(list) != 1 {
				t.Fatalf("expected one campaign, got %v %v", list, err)
			}
		}
		if calls != 1 {
			t.Errorf("expected one database read, got %d", calls)
		}
	})
}
