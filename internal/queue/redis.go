package queue

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

const DefaultRedisKey = "queue:state"

// RedisStore keeps the queue blob under a single key. Update uses
// WATCH/MULTI so a concurrent writer aborts the transaction.
type RedisStore struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	key string
}

func NewRedisStore(log *logger.Logger, rdb goredis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{log: log.With("component", "RedisQueueStore", "key", key), rdb: rdb, key: key}
}

func (s *RedisStore) Load(ctx context.Context) ([]jobs.Job, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []jobs.Job{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return Decode(raw)
}

func (s *RedisStore) Save(ctx context.Context, queue []jobs.Job) error {
	raw, err := Encode(queue, nowFunc())
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, raw, 0).Err()
}

func (s *RedisStore) Update(ctx context.Context, fn MutateFunc) error {
	return retryOnConflict(ctx, func() error {
		err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			raw, err := tx.Get(ctx, s.key).Bytes()
			if err != nil && !errors.Is(err, goredis.Nil) {
				return err
			}
			cur, err := Decode(raw)
			if err != nil {
				return err
			}
			next, changed, err := applyMutation(fn, cur)
			if err != nil || !changed {
				return err
			}
			out, err := Encode(next, nowFunc())
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
				p.Set(ctx, s.key, out, 0)
				return nil
			})
			return err
		}, s.key)
		if errors.Is(err, goredis.TxFailedErr) {
			return fmt.Errorf("redis watch %s: %w", s.key, pkgerrors.ErrConflict)
		}
		return err
	})
}
