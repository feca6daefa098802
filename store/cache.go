package store

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/GitBakko/Notiq-sub001/domain"
	"github.com/GitBakko/Notiq-sub001/internal/consts"
)

// SnapshotCache keeps the last confirmed board snapshot in Redis so a
// freshly opened board can paint immediately while the authoritative
// fetch is still on the wire. A nil client disables caching; cache
// errors fall back to the network without failing.
type SnapshotCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSnapshotCache creates a cache using the provided Redis client and TTL.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl < 0 {
		ttl = 0
	}
	return &SnapshotCache{redis: client, ttl: ttl}
}

// Load returns the cached snapshot for boardID, or false on miss,
// disabled cache, or undecodable payload.
func (c *SnapshotCache) Load(ctx context.Context, boardID string) (*domain.Board, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(boardID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		}
		return nil, false
	}
	var board domain.Board
	if err := sonic.ConfigStd.Unmarshal(data, &board); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		return nil, false
	}
	return &board, true
}

// Store writes a confirmed snapshot. Failures are ignored.
func (c *SnapshotCache) Store(ctx context.Context, board *domain.Board) {
	if c == nil || c.redis == nil || c.ttl == 0 || board == nil {
		return
	}
	data, err := sonic.ConfigStd.Marshal(board)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(board.ID), data, c.ttl).Err()
}

// Evict drops the cached snapshot for boardID.
func (c *SnapshotCache) Evict(ctx context.Context, boardID string) {
	if c == nil || c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardCacheKey(boardID)).Result()
}

func boardCacheKey(boardID string) string {
	return consts.BoardCacheKeyPrefix + boardID
}
