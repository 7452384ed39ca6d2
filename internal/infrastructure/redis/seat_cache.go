package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// SeatCacheInterface は上映回の空席数キャッシュのインターフェース
type SeatCacheInterface interface {
	GetAvailableCount(ctx context.Context, sessionID int64) (int, error)
	SetAvailableCount(ctx context.Context, sessionID int64, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, sessionID int64) error
}

// SeatCache は上映回ごとの空席数をキャッシュする
type SeatCache struct {
	client *redis.Client
}

var _ SeatCacheInterface = (*SeatCache)(nil)

// NewSeatCache は新しいSeatCacheインスタンスを作成する
func NewSeatCache(client *redis.Client) *SeatCache {
	return &SeatCache{client: client}
}

// GetAvailableCount は上映回の空席数をキャッシュから取得する
func (c *SeatCache) GetAvailableCount(ctx context.Context, sessionID int64) (int, error) {
	val, err := c.client.Get(ctx, availableCountKey(sessionID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetAvailableCount は上映回の空席数をキャッシュに保存する
func (c *SeatCache) SetAvailableCount(ctx context.Context, sessionID int64, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, availableCountKey(sessionID), count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は上映回のキャッシュを無効化する
func (c *SeatCache) Invalidate(ctx context.Context, sessionID int64) error {
	if err := c.client.Del(ctx, availableCountKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func availableCountKey(sessionID int64) string {
	return fmt.Sprintf("session:%d:seats:available", sessionID)
}
