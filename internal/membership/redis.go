package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheTTL bounds how long a stale entry can survive without explicit invalidation: stale reads are tolerated only
// across a small window.
const cacheTTL = 5 * time.Minute

// RedisCache is a Cache implementation backed by Valkey/Redis: GET/SET with a TTL, explicit key deletion on
// invalidate.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache creates a Redis-backed membership cache.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func groupKey(groupID uint32) string  { return "mcache:group:" + strconv.FormatUint(uint64(groupID), 10) }
func friendsKey(userID uint32) string { return "mcache:friends:" + strconv.FormatUint(uint64(userID), 10) }

func (c *RedisCache) getList(ctx context.Context, key string) ([]uint32, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	var ids []uint32
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return ids, true, nil
}

func (c *RedisCache) setList(ctx context.Context, key string, ids []uint32) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) GetGroupMembers(ctx context.Context, groupID uint32) ([]uint32, bool, error) {
	return c.getList(ctx, groupKey(groupID))
}

func (c *RedisCache) SetGroupMembers(ctx context.Context, groupID uint32, members []uint32) error {
	return c.setList(ctx, groupKey(groupID), members)
}

func (c *RedisCache) InvalidateGroup(ctx context.Context, groupID uint32) error {
	if err := c.rdb.Del(ctx, groupKey(groupID)).Err(); err != nil {
		return fmt.Errorf("invalidate group %d: %w", groupID, err)
	}
	return nil
}

func (c *RedisCache) GetFriends(ctx context.Context, userID uint32) ([]uint32, bool, error) {
	return c.getList(ctx, friendsKey(userID))
}

func (c *RedisCache) SetFriends(ctx context.Context, userID uint32, friends []uint32) error {
	return c.setList(ctx, friendsKey(userID), friends)
}

func (c *RedisCache) InvalidateUser(ctx context.Context, userID uint32) error {
	if err := c.rdb.Del(ctx, friendsKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate friends for user %d: %w", userID, err)
	}
	return nil
}
