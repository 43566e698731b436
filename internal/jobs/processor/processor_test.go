package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/socialfeed-backend/internal/classifier"
	"github.com/yungbote/socialfeed-backend/internal/clients/ranking"
	"github.com/yungbote/socialfeed-backend/internal/data/repos/social"
	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
	"github.com/yungbote/socialfeed-backend/internal/queue"
)

type fakeClassifier struct {
	delay   time.Duration
	err     error
	active  int32
	maxSeen int32
	calls   int32
}

func (f *fakeClassifier) Classify(ctx context.Context, content string) (classifier.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		cur := atomic.LoadInt32(&f.maxSeen)
		if n <= cur || atomic.CompareAndSwapInt32(&f.maxSeen, cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return classifier.Result{}, f.err
	}
	return classifier.Result{
		AnalysisResult: feed.AnalysisResult{
			Categories: []string{"gaming"},
			Weights:    []float64{0.9},
			Confidence: 0.8,
		},
		Themes: map[string]float64{"gaming": 0.9},
	}, nil
}

type fakePosts struct {
	social.PostRepo
	mu      sync.Mutex
	missing map[int64]bool
	updated map[int64]map[string]float64
}

func newFakePosts() *fakePosts {
	return &fakePosts{missing: map[int64]bool{}, updated: map[int64]map[string]float64{}}
}

func (f *fakePosts) UpdateAnalysis(dbc dbctx.Context, id int64, themes map[string]float64, rec feed.AnalysisRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[id] {
		return pkgerrors.ErrNotFound
	}
	f.updated[id] = themes
	return nil
}

func (f *fakePosts) GetByID(dbc dbctx.Context, id int64) (*feed.Post, error) {
	if f.missing[id] {
		return nil, pkgerrors.ErrNotFound
	}
	return &feed.Post{ID: id, UserID: 9, Content: "post"}, nil
}

type fakeIndexer struct {
	mu   sync.Mutex
	recs []ranking.PostRecord
}

func (f *fakeIndexer) UpsertPost(ctx context.Context, rec ranking.PostRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func seed(t *testing.T, store queue.Store, n int) {
	t.Helper()
	now := time.Now()
	q := make([]jobs.Job, 0, n)
	for i := 1; i <= n; i++ {
		j := jobs.NewAnalyzePost(int64(i), fmt.Sprintf("post %d", i), now, false)
		j.ID = fmt.Sprintf("job-%d", i)
		q = append(q, j)
	}
	if err := store.Save(context.Background(), q); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func newProcessor(store queue.Store, cls classifier.Classifier, posts social.PostRepo, idx RankingIndexer, concurrency int) *Processor {
	return New(logger.NewNop(), Config{Concurrency: concurrency, StuckTimeout: 5 * time.Minute}, store, cls, posts, idx, nil)
}

func TestTickCompletesAndRemovesJobs(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	seed(t, store, 2)
	posts := newFakePosts()
	idx := &fakeIndexer{}
	p := newProcessor(store, &fakeClassifier{}, posts, idx, 2)

	res, err := p.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Claimed != 2 || res.Completed != 2 {
		t.Fatalf("result: got=%+v", res)
	}
	q, _ := store.Load(ctx)
	if len(q) != 0 {
		t.Fatalf("completed jobs should leave the queue: %+v", q)
	}
	if posts.updated[1]["gaming"] != 0.9 || posts.updated[2]["gaming"] != 0.9 {
		t.Fatalf("themes not persisted: %v", posts.updated)
	}
	if len(idx.recs) != 2 || idx.recs[0].Themes[0] != "gaming" || idx.recs[0].MediaType != "text" {
		t.Fatalf("ranking upserts: %+v", idx.recs)
	}
}

func TestTickDispatchesAtMostConcurrency(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	seed(t, store, 5)
	cls := &fakeClassifier{delay: 20 * time.Millisecond}
	p := newProcessor(store, cls, newFakePosts(), nil, 2)

	res, err := p.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Claimed != 2 {
		t.Fatalf("claimed: got=%d want=2", res.Claimed)
	}
	if max := atomic.LoadInt32(&cls.maxSeen); max > 2 {
		t.Fatalf("concurrent classifications: got=%d want<=2", max)
	}
	q, _ := store.Load(ctx)
	if st := jobs.Summarize(q); st.Pending != 3 || st.Processing != 0 {
		t.Fatalf("remaining queue: got=%+v", st)
	}
}

func TestTickSkipsInflightJobs(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	seed(t, store, 2)
	cls := &fakeClassifier{}
	p := newProcessor(store, cls, newFakePosts(), nil, 2)
	p.inflight["job-1"] = true

	res, err := p.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Claimed != 1 || res.Completed != 1 {
		t.Fatalf("result: got=%+v", res)
	}
	if atomic.LoadInt32(&cls.calls) != 1 {
		t.Fatalf("classifications: got=%d want=1", cls.calls)
	}
	q, _ := store.Load(ctx)
	if len(q) != 1 || q[0].ID != "job-1" || q[0].Status != jobs.StatusPending || q[0].Attempts != 0 {
		t.Fatalf("in-flight job was dispatched again: %+v", q)
	}
	if !p.inflight["job-1"] {
		t.Fatalf("tick cleared a job it did not dispatch")
	}
}

// writeCountingStore counts Update calls whose mutation asked for a write.
type writeCountingStore struct {
	*queue.MemoryStore
	writes int32
}

func (s *writeCountingStore) Update(ctx context.Context, fn queue.MutateFunc) error {
	return s.MemoryStore.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) {
		next, err := fn(q)
		if err == nil {
			atomic.AddInt32(&s.writes, 1)
		}
		return next, err
	})
}

func TestIdleTicksDoNotRewriteQueue(t *testing.T) {
	ctx := context.Background()
	store := &writeCountingStore{MemoryStore: queue.NewMemoryStore()}
	p := newProcessor(store, &fakeClassifier{}, newFakePosts(), nil, 2)
	for i := 0; i < 10; i++ {
		res, err := p.Tick(ctx)
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if res.Claimed != 0 || res.Reaped != 0 {
			t.Fatalf("result: got=%+v", res)
		}
	}
	if n := atomic.LoadInt32(&store.writes); n != 0 {
		t.Fatalf("idle ticks wrote the queue %d times", n)
	}
}

func TestTickReapsStuckJob(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	now := time.Now()
	j := jobs.NewAnalyzePost(1, "stuck", now.Add(-10*time.Minute), false)
	if err := j.Claim("other:lease", time.Hour, now.Add(-6*time.Minute)); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := store.Save(ctx, []jobs.Job{j}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cls := &fakeClassifier{}
	p := newProcessor(store, cls, newFakePosts(), nil, 1)

	res, err := p.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Reaped != 1 || res.Claimed != 0 {
		t.Fatalf("result: got=%+v", res)
	}
	q, _ := store.Load(ctx)
	if len(q) != 1 || q[0].Status != jobs.StatusFailed || q[0].Error != jobs.ErrorTimeout {
		t.Fatalf("reaped job: got=%+v", q)
	}
	if q[0].LeaseID != "" {
		t.Fatalf("reaped job kept its lease: %q", q[0].LeaseID)
	}
	if atomic.LoadInt32(&cls.calls) != 0 {
		t.Fatalf("reaped job must not be classified")
	}
}

func TestTickFailsJobForMissingPost(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	seed(t, store, 1)
	posts := newFakePosts()
	posts.missing[1] = true
	p := newProcessor(store, &fakeClassifier{}, posts, nil, 1)

	res, err := p.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("result: got=%+v", res)
	}
	q, _ := store.Load(ctx)
	if len(q) != 1 || q[0].Status != jobs.StatusFailed || q[0].Error != "post not found" {
		t.Fatalf("job: got=%+v", q)
	}
	if q[0].CompletedAt == nil {
		t.Fatalf("failed job missing completedAt")
	}
}

func TestTickRecordsClassifierError(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemoryStore()
	seed(t, store, 1)
	cerr := &classifier.Error{Kind: classifier.KindMalformed, Err: errors.New("no json")}
	p := newProcessor(store, &fakeClassifier{err: cerr}, newFakePosts(), nil, 1)

	if _, err := p.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	q, _ := store.Load(ctx)
	if len(q) != 1 || q[0].Status != jobs.StatusFailed || q[0].Error != cerr.Error() {
		t.Fatalf("job: got=%+v", q)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := queue.NewMemoryStore()
	seed(t, store, 1)
	posts := newFakePosts()
	p := New(logger.NewNop(), Config{Interval: 5 * time.Millisecond}, store, &fakeClassifier{}, posts, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		q, _ := store.Load(context.Background())
		if len(q) == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
	posts.mu.Lock()
	defer posts.mu.Unlock()
	if _, ok := posts.updated[1]; !ok {
		t.Fatalf("Run never processed the queued job")
	}
}
