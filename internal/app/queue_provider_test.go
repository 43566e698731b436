package app

import (
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/socialfeed-backend/internal/clients/redis"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
	"github.com/yungbote/socialfeed-backend/internal/queue"
	"github.com/yungbote/socialfeed-backend/internal/testutil"
)

func TestResolveQueueStoreSelectsBackend(t *testing.T) {
	log := testutil.Logger(t)
	gdb := testutil.DB(t)

	p, err := resolveQueueStore(log, Config{QueueBackend: "postgres"}, gdb, nil)
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	if _, ok := p.Store.(*queue.PostgresStore); !ok {
		t.Fatalf("postgres: got=%T want=*queue.PostgresStore", p.Store)
	}

	p, err = resolveQueueStore(log, Config{QueueBackend: " Memory "}, nil, nil)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := p.Store.(*queue.MemoryStore); !ok {
		t.Fatalf("memory: got=%T want=*queue.MemoryStore", p.Store)
	}
}

func TestResolveQueueStoreBootstrapErrors(t *testing.T) {
	log := testutil.Logger(t)
	cases := []struct {
		name string
		cfg  Config
		want QueueProviderBootstrapErrorCode
	}{
		{"unknown backend", Config{QueueBackend: "s3"}, QueueProviderBootstrapErrorInvalidBackend},
		{"gcs without bucket", Config{QueueBackend: "gcs"}, QueueProviderBootstrapErrorMissingBucket},
		{"gcs without client", Config{QueueBackend: "gcs", QueueBucket: "llm-data"}, QueueProviderBootstrapErrorConnectFailed},
		{"redis without addr", Config{QueueBackend: "redis"}, QueueProviderBootstrapErrorMissingRedis},
		{"postgres without db", Config{QueueBackend: "postgres"}, QueueProviderBootstrapErrorConnectFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolveQueueStore(log, tc.cfg, nil, nil)
			var bootErr *QueueProviderBootstrapError
			if !errors.As(err, &bootErr) {
				t.Fatalf("error type: got=%T want=*QueueProviderBootstrapError", err)
			}
			if bootErr.Code != tc.want {
				t.Fatalf("code: got=%s want=%s", bootErr.Code, tc.want)
			}
		})
	}
}

func TestResolveQueueStoreRedisConnectFailure(t *testing.T) {
	dialErr := errors.New("dial tcp: connection refused")
	orig := newRedisClient
	newRedisClient = func(*logger.Logger, redis.Config) (*goredis.Client, error) { return nil, dialErr }
	t.Cleanup(func() { newRedisClient = orig })

	_, err := resolveQueueStore(testutil.Logger(t), Config{QueueBackend: "redis", RedisAddr: "localhost:1"}, nil, nil)
	var bootErr *QueueProviderBootstrapError
	if !errors.As(err, &bootErr) || bootErr.Code != QueueProviderBootstrapErrorConnectFailed {
		t.Fatalf("got=%v want connect_failed", err)
	}
	if !errors.Is(err, dialErr) {
		t.Fatalf("cause not wrapped: %v", err)
	}
}
