package app

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/socialfeed-backend/internal/clients/redis"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
	"github.com/yungbote/socialfeed-backend/internal/queue"
)

var newRedisClient = redis.NewClient

type QueueProviderBootstrapErrorCode string

const (
	QueueProviderBootstrapErrorInvalidBackend QueueProviderBootstrapErrorCode = "invalid_backend"
	QueueProviderBootstrapErrorMissingBucket  QueueProviderBootstrapErrorCode = "missing_bucket"
	QueueProviderBootstrapErrorMissingRedis   QueueProviderBootstrapErrorCode = "missing_redis"
	QueueProviderBootstrapErrorConnectFailed  QueueProviderBootstrapErrorCode = "connect_failed"
)

type QueueProviderBootstrapError struct {
	Code    QueueProviderBootstrapErrorCode
	Backend string
	Cause   error
}

func (e *QueueProviderBootstrapError) Error() string {
	if e == nil {
		return "queue store bootstrap failed"
	}
	return fmt.Sprintf("queue store bootstrap failed (code=%s backend=%q): %v", e.Code, e.Backend, e.Cause)
}

func (e *QueueProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// queueProvider is the selected queue store plus whatever it dialed.
type queueProvider struct {
	Store queue.Store
	redis *goredis.Client
}

func (p queueProvider) Close() {
	if p.redis != nil {
		_ = p.redis.Close()
	}
}

func resolveQueueStore(log *logger.Logger, cfg Config, gdb *gorm.DB, sc *storage.Client) (queueProvider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.QueueBackend))
	fail := func(code QueueProviderBootstrapErrorCode, cause error) (queueProvider, error) {
		err := &QueueProviderBootstrapError{Code: code, Backend: backend, Cause: cause}
		log.Error("Queue store bootstrap failed", "backend", backend, "error_code", code, "error", cause)
		return queueProvider{}, err
	}

	log.Info("Selecting queue store", "backend", backend)
	switch backend {
	case queue.BackendPostgres:
		if gdb == nil {
			return fail(QueueProviderBootstrapErrorConnectFailed, errors.New("database not initialized"))
		}
		return queueProvider{Store: queue.NewPostgresStore(gdb, log)}, nil
	case queue.BackendGCS:
		bucket := strings.TrimSpace(cfg.QueueBucket)
		if bucket == "" {
			return fail(QueueProviderBootstrapErrorMissingBucket, errors.New("LLM_DATA_BUCKET is empty"))
		}
		if sc == nil {
			return fail(QueueProviderBootstrapErrorConnectFailed, errors.New("storage client not initialized"))
		}
		return queueProvider{Store: queue.NewGCSStore(log, sc, bucket, cfg.QueueKey)}, nil
	case queue.BackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return fail(QueueProviderBootstrapErrorMissingRedis, errors.New("REDIS_ADDR is empty"))
		}
		rdb, err := newRedisClient(log, redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return fail(QueueProviderBootstrapErrorConnectFailed, err)
		}
		return queueProvider{Store: queue.NewRedisStore(log, rdb, cfg.QueueKey), redis: rdb}, nil
	case queue.BackendMemory:
		log.Warn("Using in-memory queue store; jobs are lost on restart")
		return queueProvider{Store: queue.NewMemoryStore()}, nil
	default:
		return fail(QueueProviderBootstrapErrorInvalidBackend, fmt.Errorf("unsupported queue backend %q", backend))
	}
}
