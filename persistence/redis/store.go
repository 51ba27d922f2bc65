package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/persistence"
	"go.uber.org/zap"
)

var _ persistence.Store = new(redisStore)
var _ persistence.BoundedAppender = new(redisStore)

type redisStore struct {
	*baseDao
}

func NewRedisStore(conf Config) *redisStore {
	return &redisStore{baseDao: newBaseDao(conf)}
}

func storageError(op string, key string, err error) error {
	logger.Error("redis store error", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return persistence.StorageLayerError{Message: err.Error()}
}

func (r *redisStore) Ping(ctx context.Context) error {
	return r.redisClient.Ping(ctx).Err()
}

func (r *redisStore) Append(ctx context.Context, key string, value []byte) error {
	nsKey := r.getNamespaceKey(key)
	if err := r.redisClient.LPush(ctx, nsKey, value).Err(); err != nil {
		return storageError("lpush", nsKey, err)
	}
	return nil
}

// AppendBounded pushes value and trims the list to keep entries in a single
// MULTI/EXEC.
func (r *redisStore) AppendBounded(ctx context.Context, key string, value []byte, keep int64) error {
	nsKey := r.getNamespaceKey(key)
	_, err := r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.LPush(ctx, nsKey, value)
		pipe.LTrim(ctx, nsKey, 0, keep-1)
		return nil
	})
	if err != nil {
		return storageError("lpush+ltrim", nsKey, err)
	}
	return nil
}

func (r *redisStore) Latest(ctx context.Context, key string) ([]byte, error) {
	nsKey := r.getNamespaceKey(key)
	res, err := r.redisClient.LIndex(ctx, nsKey, 0).Bytes()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.ErrNotFound
		}
		return nil, storageError("lindex", nsKey, err)
	}
	return res, nil
}

func (r *redisStore) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	nsKey := r.getNamespaceKey(key)
	items, err := r.redisClient.LRange(ctx, nsKey, start, stop).Result()
	if err != nil {
		return nil, storageError("lrange", nsKey, err)
	}
	res := make([][]byte, 0, len(items))
	for _, item := range items {
		res = append(res, []byte(item))
	}
	return res, nil
}

func (r *redisStore) Trim(ctx context.Context, key string, keep int64) error {
	nsKey := r.getNamespaceKey(key)
	if err := r.redisClient.LTrim(ctx, nsKey, 0, keep-1).Err(); err != nil {
		return storageError("ltrim", nsKey, err)
	}
	return nil
}

func (r *redisStore) AddMember(ctx context.Context, key string, member string) error {
	nsKey := r.getNamespaceKey(key)
	if err := r.redisClient.SAdd(ctx, nsKey, member).Err(); err != nil {
		return storageError("sadd", nsKey, err)
	}
	return nil
}

func (r *redisStore) RemoveMember(ctx context.Context, key string, member string) error {
	nsKey := r.getNamespaceKey(key)
	if err := r.redisClient.SRem(ctx, nsKey, member).Err(); err != nil {
		return storageError("srem", nsKey, err)
	}
	return nil
}

func (r *redisStore) Members(ctx context.Context, key string) ([]string, error) {
	nsKey := r.getNamespaceKey(key)
	res, err := r.redisClient.SMembers(ctx, nsKey).Result()
	if err != nil {
		return nil, storageError("smembers", nsKey, err)
	}
	return res, nil
}

func (r *redisStore) Close() error {
	return r.redisClient.Close()
}
