package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/socialfeed-backend/internal/classifier"
	"github.com/yungbote/socialfeed-backend/internal/clients/ranking"
	"github.com/yungbote/socialfeed-backend/internal/data/repos/social"
	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
	"github.com/yungbote/socialfeed-backend/internal/observability"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
	"github.com/yungbote/socialfeed-backend/internal/queue"
)

const errPostNotFound = "post not found"

type Config struct {
	Interval     time.Duration
	Backoff      time.Duration
	StuckTimeout time.Duration
	// LeaseTTL defaults to StuckTimeout.
	LeaseTTL    time.Duration
	Concurrency int
	ProcessorID string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.Backoff <= 0 {
		c.Backoff = 5 * time.Second
	}
	if c.StuckTimeout <= 0 {
		c.StuckTimeout = 5 * time.Minute
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = c.StuckTimeout
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.ProcessorID == "" {
		c.ProcessorID = "processor"
	}
	return c
}

// RankingIndexer receives freshly labelled posts. Failures are logged only.
type RankingIndexer interface {
	UpsertPost(ctx context.Context, rec ranking.PostRecord) error
}

type TickResult struct {
	Reaped    int `json:"reaped"`
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Processor drains the classification queue: reap, claim, classify, persist.
type Processor struct {
	log     *logger.Logger
	cfg     Config
	store   queue.Store
	cls     classifier.Classifier
	posts   social.PostRepo
	ranking RankingIndexer
	metrics *observability.Metrics
	now     func() time.Time

	mu       sync.Mutex
	inflight map[string]bool
}

func New(
	baseLog *logger.Logger,
	cfg Config,
	store queue.Store,
	cls classifier.Classifier,
	posts social.PostRepo,
	indexer RankingIndexer,
	metrics *observability.Metrics,
) *Processor {
	cfg = cfg.withDefaults()
	return &Processor{
		log:      baseLog.With("component", "JobProcessor", "processor_id", cfg.ProcessorID),
		cfg:      cfg,
		store:    store,
		cls:      cls,
		posts:    posts,
		ranking:  indexer,
		metrics:  metrics,
		now:      time.Now,
		inflight: map[string]bool{},
	}
}

// Run ticks until ctx is cancelled. A failed or panicking tick waits for the
// backoff interval instead of the normal one.
func (p *Processor) Run(ctx context.Context) error {
	p.log.Info("Starting job processor",
		"interval", p.cfg.Interval.String(),
		"concurrency", p.cfg.Concurrency,
		"stuck_timeout", p.cfg.StuckTimeout.String(),
	)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Job processor stopped")
			return nil
		case <-timer.C:
		}
		wait := p.cfg.Interval
		if _, err := p.safeTick(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.log.Warn("Processor tick failed", "error", err, "retry_in", p.cfg.Backoff.String())
			wait = p.cfg.Backoff
		}
		timer.Reset(wait)
	}
}

func (p *Processor) safeTick(ctx context.Context) (res TickResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Processor tick panic", "panic", r)
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	return p.Tick(ctx)
}

// Tick runs one reap/claim/dispatch cycle and waits for every dispatched job.
func (p *Processor) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	start := p.now()
	defer func() { p.metrics.ObserveTick(p.now().Sub(start)) }()

	q, err := p.store.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load queue: %w", err)
	}
	p.metrics.SetQueueDepth(jobs.Summarize(q))

	reaped, err := queue.Reap(ctx, p.store, p.now(), p.cfg.StuckTimeout)
	if err != nil {
		return res, fmt.Errorf("reap: %w", err)
	}
	res.Reaped = len(reaped)
	if len(reaped) > 0 {
		p.mu.Lock()
		for _, j := range reaped {
			delete(p.inflight, j.ID)
		}
		p.mu.Unlock()
		p.metrics.ObserveReaped(len(reaped))
		for _, j := range reaped {
			p.log.Warn("Reaped stuck job", "job_id", j.ID, "post_id", j.PostID, "attempts", j.Attempts)
		}
	}

	claimed, err := queue.Claim(ctx, p.store, p.cfg.Concurrency, p.cfg.ProcessorID, p.cfg.LeaseTTL, p.inflightSnapshot())
	if err != nil {
		return res, fmt.Errorf("claim: %w", err)
	}
	res.Claimed = len(claimed)
	if len(claimed) == 0 {
		return res, nil
	}

	p.mu.Lock()
	for _, j := range claimed {
		p.inflight[j.ID] = true
	}
	p.mu.Unlock()

	var (
		g      errgroup.Group
		countM sync.Mutex
	)
	for _, job := range claimed {
		job := job
		g.Go(func() error {
			defer func() {
				p.mu.Lock()
				delete(p.inflight, job.ID)
				p.mu.Unlock()
			}()
			ok, err := p.process(ctx, job)
			countM.Lock()
			if ok {
				res.Completed++
			} else {
				res.Failed++
			}
			countM.Unlock()
			return err
		})
	}
	return res, g.Wait()
}

func (p *Processor) inflightSnapshot() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.inflight))
	for k := range p.inflight {
		out[k] = true
	}
	return out
}

// process classifies one claimed job and settles it under its lease. The
// returned error is reserved for queue failures; classification failures are
// recorded on the job.
func (p *Processor) process(ctx context.Context, job jobs.Job) (bool, error) {
	log := p.log.With("job_id", job.ID, "post_id", job.PostID)

	start := p.now()
	result, err := p.cls.Classify(ctx, job.Content)
	p.metrics.ObserveClassifier(p.now().Sub(start))
	if err == nil {
		err = p.posts.UpdateAnalysis(dbctx.Context{Ctx: ctx}, job.PostID, result.Themes, result.Record())
		if errors.Is(err, pkgerrors.ErrNotFound) {
			err = errors.New(errPostNotFound)
		}
	}

	if err != nil {
		log.Warn("Job failed", "error", err, "attempts", job.Attempts)
		p.metrics.ObserveJob(jobs.StatusFailed)
		reason := err.Error()
		return false, p.settle(ctx, job, func(j *jobs.Job) bool {
			_ = j.Fail(reason, p.now())
			return false
		})
	}

	log.Info("Job completed", "categories", result.Categories, "confidence", result.Confidence)
	p.metrics.ObserveJob(jobs.StatusCompleted)
	if err := p.settle(ctx, job, func(*jobs.Job) bool { return true }); err != nil {
		return true, err
	}
	p.index(ctx, job.PostID, result.Themes)
	return true, nil
}

func (p *Processor) settle(ctx context.Context, job jobs.Job, mutate func(*jobs.Job) bool) error {
	err := queue.Release(ctx, p.store, job.ID, job.LeaseID, mutate)
	if errors.Is(err, queue.ErrLeaseLost) {
		p.log.Warn("Lease lost before settle; leaving job to its new owner", "job_id", job.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("settle %s: %w", job.ID, err)
	}
	return nil
}

func (p *Processor) index(ctx context.Context, postID int64, themes map[string]float64) {
	if p.ranking == nil {
		return
	}
	post, err := p.posts.GetByID(dbctx.Context{Ctx: ctx}, postID)
	if err != nil {
		p.log.Warn("Ranking upsert skipped", "post_id", postID, "error", err)
		return
	}
	if err := p.ranking.UpsertPost(ctx, ranking.RecordFromPost(post, themes)); err != nil {
		p.log.Warn("Ranking upsert failed", "post_id", postID, "error", err)
	}
}
