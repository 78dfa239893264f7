package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry is a Registry implementation backed by Valkey/Redis, for deployments that share sessions across
// multiple server processes: sessions are stored as JSON values with an optional TTL, and a reverse-index set is
// maintained per user.
type RedisRegistry struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisRegistry creates a Redis-backed session registry. ttl of zero disables expiry.
func NewRedisRegistry(rdb *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string       { return "sreg:session:" + id }
func byUserKey(userID uint32) string    { return "sreg:byuser:" + strconv.FormatUint(uint64(userID), 10) }

type redisSessionData struct {
	UserID        uint32 `json:"user_id"`
	Role          Role   `json:"role"`
	CreatedAtSec  int64  `json:"created_at_sec"`
	CreatedAtNsec int32  `json:"created_at_nsec"`
	PeerIP        string `json:"peer_ip"`
}

func (r *RedisRegistry) Insert(ctx context.Context, userID uint32, id, peerIP string, role Role) error {
	// Overwrite on id collision: if the id previously belonged to a different user, remove it from that user's bucket
	// first so the reverse index never references two users for one id.
	if prev, err := r.rdb.Get(ctx, sessionKey(id)).Bytes(); err == nil {
		var old redisSessionData
		if json.Unmarshal(prev, &old) == nil && old.UserID != userID {
			r.rdb.SRem(ctx, byUserKey(old.UserID), id)
		}
	}

	now := time.Now()
	data, err := json.Marshal(redisSessionData{
		UserID:       userID,
		Role:         role,
		CreatedAtSec: now.Unix(),
		CreatedAtNsec: int32(now.Nanosecond()),
		PeerIP:       peerIP,
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, sessionKey(id), data, r.ttl)
	pipe.SAdd(ctx, byUserKey(userID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *RedisRegistry) load(ctx context.Context, id string) (*redisSessionData, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var data redisSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if r.ttl > 0 {
		r.rdb.Expire(ctx, sessionKey(id), r.ttl)
	}
	return &data, nil
}

func (r *RedisRegistry) LookupUser(ctx context.Context, id string) (uint32, error) {
	data, err := r.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return data.UserID, nil
}

func (r *RedisRegistry) LookupRole(ctx context.Context, id string) (Role, error) {
	data, err := r.load(ctx, id)
	if err != nil {
		return RoleInvalid, err
	}
	return data.Role, nil
}

// IDsOf returns the ids in the user's set, lazily dropping any whose session key has since expired so the reverse
// index never reports a session the TTL has already reclaimed.
func (r *RedisRegistry) IDsOf(ctx context.Context, userID uint32) ([]string, error) {
	key := byUserKey(userID)
	ids, err := r.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers byuser: %w", err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	live := make([]string, 0, len(ids))
	var stale []string
	for _, id := range ids {
		exists, err := r.rdb.Exists(ctx, sessionKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("check session existence: %w", err)
		}
		if exists > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		r.rdb.SRem(ctx, key, toAny(stale)...)
	}
	return live, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (r *RedisRegistry) Delete(ctx context.Context, id string) (uint32, bool, error) {
	data, err := r.load(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}

	pipe := r.rdb.Pipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, byUserKey(data.UserID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, fmt.Errorf("delete session: %w", err)
	}

	// Evict the empty bucket explicitly; SREM on the last member already removes the Redis key, but this keeps the
	// no-empty-buckets contract explicit regardless of Redis's own cleanup behavior.
	if n, err := r.rdb.SCard(ctx, byUserKey(data.UserID)).Result(); err == nil && n == 0 {
		r.rdb.Del(ctx, byUserKey(data.UserID))
	}

	return data.UserID, true, nil
}

func (r *RedisRegistry) ClearAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, "sreg:*", 500).Result()
		if err != nil {
			return fmt.Errorf("scan session keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete session keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// OnlineTree is an administrative introspection operation; for the Redis-backed registry it scans session keys and
// is intended for occasional diagnostic use, not hot-path fan-out.
func (r *RedisRegistry) OnlineTree(ctx context.Context) (map[uint32][]Info, error) {
	tree := make(map[uint32][]Info)
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, "sreg:session:*", 500).Result()
		if err != nil {
			return nil, fmt.Errorf("scan session keys: %w", err)
		}
		for _, key := range keys {
			raw, err := r.rdb.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			var data redisSessionData
			if json.Unmarshal(raw, &data) != nil {
				continue
			}
			id := key[len("sreg:session:"):]
			info := Info{
				ID: id, UserID: data.UserID, Role: data.Role,
				CreatedAtSec: data.CreatedAtSec, CreatedAtNsec: data.CreatedAtNsec, PeerIP: data.PeerIP,
			}
			tree[data.UserID] = append(tree[data.UserID], info)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return tree, nil
}
