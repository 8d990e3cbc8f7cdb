package nodestate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	approvedKey   = "visionlink:approved"
	approvedTTL   = 5 * time.Minute
	nodeStatusKey = "visionlink:node:status"
	nodeStatusTTL = 10 * time.Minute
)

// RedisStore caches the approved-address set and per-address node status.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) GetApproved(ctx context.Context) ([]string, error) {
	addrs, err := r.client.SMembers(ctx, approvedKey).Result()
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

func (r *RedisStore) SetApproved(ctx context.Context, addrs []string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, approvedKey)
	if len(addrs) > 0 {
		members := make([]any, len(addrs))
		for i, a := range addrs {
			members[i] = a
		}
		pipe.SAdd(ctx, approvedKey, members...)
	}
	pipe.Expire(ctx, approvedKey, approvedTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) InvalidateApproved(ctx context.Context) error {
	return r.client.Del(ctx, approvedKey).Err()
}

func (r *RedisStore) SetNodeStatus(ctx context.Context, addr, status string) error {
	if err := r.client.HSet(ctx, nodeStatusKey, addr, status).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, nodeStatusKey, nodeStatusTTL).Err()
}

func (r *RedisStore) NodeStatuses(ctx context.Context) (map[string]string, error) {
	return r.client.HGetAll(ctx, nodeStatusKey).Result()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
