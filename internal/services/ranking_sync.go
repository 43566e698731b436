package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/socialfeed-backend/internal/clients/ranking"
	"github.com/yungbote/socialfeed-backend/internal/data/repos/social"
	"github.com/yungbote/socialfeed-backend/internal/observability"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

const (
	MaxSyncPosts    = 1000
	syncConcurrency = 4
)

type SyncResult struct {
	Total  int `json:"total"`
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

type RankingSyncService interface {
	SyncRecent(ctx context.Context, limit int) (*SyncResult, error)
	// Schedule runs SyncRecent on a cron spec until ctx is done.
	Schedule(ctx context.Context, spec string) error
}

type rankingSyncService struct {
	log     *logger.Logger
	ranking ranking.Client
	posts   social.PostRepo
	metrics *observability.Metrics
}

func NewRankingSyncService(baseLog *logger.Logger, rankingClient ranking.Client, posts social.PostRepo, metrics *observability.Metrics) RankingSyncService {
	return &rankingSyncService{
		log:     baseLog.With("service", "RankingSyncService"),
		ranking: rankingClient,
		posts:   posts,
		metrics: metrics,
	}
}

func (s *rankingSyncService) SyncRecent(ctx context.Context, limit int) (*SyncResult, error) {
	if limit <= 0 || limit > MaxSyncPosts {
		limit = MaxSyncPosts
	}
	posts, err := s.posts.ListRecent(dbctx.Context{Ctx: ctx}, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent posts: %w", err)
	}

	var synced, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(syncConcurrency)
	for i := range posts {
		post := &posts[i]
		g.Go(func() error {
			if err := s.ranking.UpsertPost(ctx, ranking.RecordFromPost(post, nil)); err != nil {
				failed.Add(1)
				s.log.Warn("Ranking sync failed", "post_id", post.ID, "error", err)
				return nil
			}
			synced.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := &SyncResult{Total: len(posts), Synced: int(synced.Load()), Failed: int(failed.Load())}
	s.metrics.ObserveRankingSync(res.Synced, res.Failed)
	s.log.Info("Ranking sync finished", "total", res.Total, "synced", res.Synced, "failed", res.Failed)
	return res, nil
}

func (s *rankingSyncService) Schedule(ctx context.Context, spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	cl := cronLogger{log: s.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.SyncRecent(ctx, MaxSyncPosts); err != nil {
			s.log.Warn("Scheduled ranking sync failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid RANKING_SYNC_CRON %q: %w", spec, err)
	}
	c.Start()
	s.log.Info("Ranking sync scheduled", "spec", spec)
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct{ log *logger.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
