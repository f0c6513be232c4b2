// Package cache keeps read-side copies of member balances in redis and
// provides the distributed lock used by the scheduler.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/segyhp/sacco-ledger/internal/domain"
	pkgErrors "github.com/segyhp/sacco-ledger/pkg/errors"
)

const summaryKeyPrefix = "sacco:member-summary:"

// MemberCache stores member summaries. A summary is only ever a copy of
// committed ledger state; writers invalidate it after commit.
type MemberCache interface {
	GetSummary(ctx context.Context, memberID string) (*domain.MemberSummary, bool, error)
	SetSummary(ctx context.Context, summary *domain.MemberSummary) error
	Invalidate(ctx context.Context, memberIDs ...string) error
}

func summaryKey(memberID string) string {
	return summaryKeyPrefix + memberID
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) GetSummary(ctx context.Context, memberID string) (*domain.MemberSummary, bool, error) {
	data, err := c.client.Get(ctx, summaryKey(memberID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgErrors.WrapCacheError(err)
	}

	var summary domain.MemberSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, false, pkgErrors.WrapCacheError(err)
	}
	return &summary, true, nil
}

func (c *RedisCache) SetSummary(ctx context.Context, summary *domain.MemberSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return pkgErrors.WrapCacheError(err)
	}
	if err := c.client.Set(ctx, summaryKey(summary.MemberID), data, c.ttl).Err(); err != nil {
		return pkgErrors.WrapCacheError(err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, memberIDs ...string) error {
	if len(memberIDs) == 0 {
		return nil
	}
	keys := make([]string, len(memberIDs))
	for i, id := range memberIDs {
		keys[i] = summaryKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return pkgErrors.WrapCacheError(err)
	}
	return nil
}

// Noop is used when redis is not configured.
type Noop struct{}

func (Noop) GetSummary(context.Context, string) (*domain.MemberSummary, bool, error) {
	return nil, false, nil
}

func (Noop) SetSummary(context.Context, *domain.MemberSummary) error { return nil }

func (Noop) Invalidate(context.Context, ...string) error { return nil }
