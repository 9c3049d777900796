//go:build !integration

package postgres

import (
	"context"
	"time"

	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/domain/ports/repository"
	red "sheger-et-bot/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerCampaignRepo mocks the database repository that the decorator wraps.
type mockInnerCampaignRepo struct {
	CreateFunc        func(ctx context.Context, tx repository.Tx, c *model.Campaign) error
	FindByCodeFunc    func(ctx context.Context, tx repository.Tx, code string) (*model.Campaign, error)
	IncrementUsedFunc func(ctx context.Context, tx repository.Tx, code string) (bool, error)
	SetActiveFunc     func(ctx context.Context, tx repository.Tx, code string, active bool) error
	ListActiveFunc    func(ctx context.Context, tx repository.Tx) ([]*model.Campaign, error)
}

func (m *mockInnerCampaignRepo) Create(ctx context.Context, tx repository.Tx, c *model.Campaign) error {
	return m.CreateFunc(ctx, tx, c)
}
func (m *mockInnerCampaignRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Campaign, error) {
	return m.FindByCodeFunc(ctx, tx, code)
}
func (m *mockInnerCampaignRepo) IncrementUsed(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	return m.IncrementUsedFunc(ctx, tx, code)
}
func (m *mockInnerCampaignRepo) SetActive(ctx context.Context, tx repository.Tx, code string, active bool) error {
	return m.SetActiveFunc(ctx, tx, code, active)
}
func (m *mockInnerCampaignRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Campaign, error) {
	return m.ListActiveFunc(ctx, tx)
}

// mockRedisClient mocks our Redis client wrapper. Unset hooks behave like an
// empty cache.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", red.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Ping(ctx context.Context) error                     { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 1, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Close() error { return nil }
