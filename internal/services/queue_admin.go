package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/socialfeed-backend/internal/data/repos/social"
	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
	"github.com/yungbote/socialfeed-backend/internal/queue"
)

const (
	DefaultTriggerUserPostLimit = 50
	defaultThemeLimit           = 50
)

type TriggerResult struct {
	UserID        int64 `json:"userId"`
	Added         int   `json:"added"`
	Skipped       int   `json:"skipped"`
	AlreadyQueued bool  `json:"alreadyQueued"`
}

type EnqueueResult struct {
	PostID        int64  `json:"postId"`
	JobID         string `json:"jobId,omitempty"`
	AlreadyQueued bool   `json:"alreadyQueued"`
}

type ReanalyzeResult struct {
	Success bool   `json:"success"`
	Total   int    `json:"total"`
	Added   int    `json:"added"`
	Message string `json:"message"`
}

type ClearResult struct {
	Removed   int `json:"removed"`
	Remaining int `json:"remaining"`
}

type RequeueResult struct {
	Requeued int `json:"requeued"`
}

type QueueAdminConfig struct {
	TriggerUserPostLimit int
}

// QueueAdminService is the operator surface over the classification queue.
type QueueAdminService interface {
	TriggerUser(ctx context.Context, userID int64) (*TriggerResult, error)
	EnqueuePost(ctx context.Context, postID int64) (*EnqueueResult, error)
	ReanalyzeAll(ctx context.Context) (*ReanalyzeResult, error)
	ClearFailed(ctx context.Context) (*ClearResult, error)
	RequeueFailed(ctx context.Context) (*RequeueResult, error)
	Queue(ctx context.Context) ([]jobs.Job, error)
	Stats(ctx context.Context) (*jobs.Stats, error)
	Themes(ctx context.Context, limit int) ([]feed.ThemeStat, error)
}

type queueAdminService struct {
	log   *logger.Logger
	cfg   QueueAdminConfig
	store queue.Store
	users social.UserRepo
	posts social.PostRepo
	now   func() time.Time
}

func NewQueueAdminService(baseLog *logger.Logger, cfg QueueAdminConfig, store queue.Store, users social.UserRepo, posts social.PostRepo) QueueAdminService {
	if cfg.TriggerUserPostLimit <= 0 {
		cfg.TriggerUserPostLimit = DefaultTriggerUserPostLimit
	}
	return &queueAdminService{
		log:   baseLog.With("service", "QueueAdminService"),
		cfg:   cfg,
		store: store,
		users: users,
		posts: posts,
		now:   time.Now,
	}
}

func (s *queueAdminService) TriggerUser(ctx context.Context, userID int64) (*TriggerResult, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.users.GetByID(dbc, userID); err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByAuthor(dbc, userID, s.cfg.TriggerUserPostLimit)
	if err != nil {
		return nil, fmt.Errorf("list posts for user %d: %w", userID, err)
	}

	res := &TriggerResult{UserID: userID}
	now := s.now()
	err = s.store.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) {
		res.Added, res.Skipped = 0, 0
		active := jobs.ActivePosts(q)
		fresh := make([]jobs.Job, 0, len(posts))
		for _, p := range posts {
			if active[p.ID] || strings.TrimSpace(p.Content) == "" {
				res.Skipped++
				continue
			}
			active[p.ID] = true
			fresh = append(fresh, jobs.NewAnalyzePost(p.ID, p.Content, now, true))
		}
		res.Added = len(fresh)
		if len(fresh) == 0 {
			return nil, queue.ErrNoChange
		}
		return append(fresh, q...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue user %d posts: %w", userID, err)
	}
	res.AlreadyQueued = res.Added == 0 && len(posts) > 0
	s.log.Info("Triggered user analysis", "user_id", userID, "added", res.Added, "skipped", res.Skipped)
	return res, nil
}

func (s *queueAdminService) EnqueuePost(ctx context.Context, postID int64) (*EnqueueResult, error) {
	post, err := s.posts.GetByID(dbctx.Context{Ctx: ctx}, postID)
	if err != nil {
		return nil, err
	}
	res := &EnqueueResult{PostID: postID}
	now := s.now()
	err = s.store.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) {
		res.JobID, res.AlreadyQueued = "", false
		for _, j := range q {
			if j.Active() && j.PostID == postID {
				res.JobID = j.ID
				res.AlreadyQueued = true
				return nil, queue.ErrNoChange
			}
		}
		j := jobs.NewAnalyzePost(post.ID, post.Content, now, true)
		res.JobID = j.ID
		return append([]jobs.Job{j}, q...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue post %d: %w", postID, err)
	}
	return res, nil
}

func (s *queueAdminService) ReanalyzeAll(ctx context.Context) (*ReanalyzeResult, error) {
	posts, err := s.posts.ListWithContent(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	res := &ReanalyzeResult{Success: true, Total: len(posts)}
	now := s.now()
	err = s.store.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) {
		res.Added = 0
		queued := jobs.QueuedPosts(q)
		for _, p := range posts {
			if queued[p.ID] {
				continue
			}
			queued[p.ID] = true
			q = append(q, jobs.NewAnalyzePost(p.ID, p.Content, now, false))
			res.Added++
		}
		if res.Added == 0 {
			return nil, queue.ErrNoChange
		}
		return q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reanalyze all: %w", err)
	}
	res.Message = fmt.Sprintf("Added %d of %d posts to the analysis queue", res.Added, res.Total)
	s.log.Info("Reanalyze all queued", "total", res.Total, "added", res.Added)
	return res, nil
}

func (s *queueAdminService) ClearFailed(ctx context.Context) (*ClearResult, error) {
	res := &ClearResult{}
	err := s.store.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) {
		kept := make([]jobs.Job, 0, len(q))
		for _, j := range q {
			if j.Status != jobs.StatusFailed {
				kept = append(kept, j)
			}
		}
		res.Removed = len(q) - len(kept)
		res.Remaining = len(kept)
		if res.Removed == 0 {
			return nil, queue.ErrNoChange
		}
		return kept, nil
	})
	if err != nil {
		return nil, fmt.Errorf("clear failed jobs: %w", err)
	}
	return res, nil
}

func (s *queueAdminService) RequeueFailed(ctx context.Context) (*RequeueResult, error) {
	res := &RequeueResult{}
	now := s.now()
	err := s.store.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) {
		res.Requeued = 0
		active := jobs.ActivePosts(q)
		for i := range q {
			if q[i].Status != jobs.StatusFailed || active[q[i].PostID] {
				continue
			}
			if err := q[i].Transition(jobs.StatusPending, now); err != nil {
				return nil, err
			}
			active[q[i].PostID] = true
			res.Requeued++
		}
		if res.Requeued == 0 {
			return nil, queue.ErrNoChange
		}
		return q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("requeue failed jobs: %w", err)
	}
	return res, nil
}

func (s *queueAdminService) Queue(ctx context.Context) ([]jobs.Job, error) {
	q, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if q == nil {
		q = []jobs.Job{}
	}
	return q, nil
}

func (s *queueAdminService) Stats(ctx context.Context) (*jobs.Stats, error) {
	q, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	st := jobs.Summarize(q)
	return &st, nil
}

func (s *queueAdminService) Themes(ctx context.Context, limit int) ([]feed.ThemeStat, error) {
	if limit <= 0 {
		limit = defaultThemeLimit
	}
	return s.posts.ThemeStats(dbctx.Context{Ctx: ctx}, limit)
}
