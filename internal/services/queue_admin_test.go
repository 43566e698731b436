package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/socialfeed-backend/internal/data/repos/social"
	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/queue"
	"github.com/yungbote/socialfeed-backend/internal/testutil"
)

func newQueueAdmin(t *testing.T) (QueueAdminService, *queue.MemoryStore, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	store := queue.NewMemoryStore()
	svc := NewQueueAdminService(log, QueueAdminConfig{}, store, social.NewUserRepo(db, log), social.NewPostRepo(db, log))
	return svc, store, db
}

func TestTriggerUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, db := newQueueAdmin(t)
	author := testutil.SeedUser(t, db, "author")
	base := time.Now().Add(-time.Hour)
	older := testutil.SeedPost(t, db, author.ID, "older", testutil.WithCreatedAt(base))
	newer := testutil.SeedPost(t, db, author.ID, "newer", testutil.WithCreatedAt(base.Add(time.Minute)))
	testutil.SeedPost(t, db, author.ID, "   ", testutil.WithCreatedAt(base.Add(2*time.Minute)))

	existing := jobs.NewAnalyzePost(999, "someone else", time.Now(), false)
	if err := store.Save(ctx, []jobs.Job{existing}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	res, err := svc.TriggerUser(ctx, author.ID)
	if err != nil {
		t.Fatalf("TriggerUser: %v", err)
	}
	if res.Added != 2 || res.Skipped != 1 || res.AlreadyQueued {
		t.Fatalf("first trigger: got=%+v", res)
	}
	q, _ := store.Load(ctx)
	if len(q) != 3 || q[0].PostID != newer.ID || q[1].PostID != older.ID || q[2].ID != existing.ID {
		t.Fatalf("manual jobs should be unshifted most recent first: %+v", q)
	}
	if !q[0].Manual || q[2].Manual {
		t.Fatalf("manual flags: %+v", q)
	}

	res, err = svc.TriggerUser(ctx, author.ID)
	if err != nil {
		t.Fatalf("TriggerUser again: %v", err)
	}
	if res.Added != 0 || !res.AlreadyQueued {
		t.Fatalf("second trigger: got=%+v", res)
	}
	if q, _ := store.Load(ctx); len(q) != 3 {
		t.Fatalf("queue grew on repeat trigger: %d", len(q))
	}
}

func TestTriggerUserUnknown(t *testing.T) {
	svc, _, _ := newQueueAdmin(t)
	if _, err := svc.TriggerUser(context.Background(), 4242); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("unknown user: got=%v want ErrNotFound", err)
	}
}

func TestEnqueuePost(t *testing.T) {
	ctx := context.Background()
	svc, store, db := newQueueAdmin(t)
	author := testutil.SeedUser(t, db, "author")
	post := testutil.SeedPost(t, db, author.ID, "hello")

	if _, err := svc.EnqueuePost(ctx, 777); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("unknown post: got=%v want ErrNotFound", err)
	}
	first, err := svc.EnqueuePost(ctx, post.ID)
	if err != nil || first.AlreadyQueued {
		t.Fatalf("EnqueuePost: %+v %v", first, err)
	}
	second, err := svc.EnqueuePost(ctx, post.ID)
	if err != nil || !second.AlreadyQueued || second.JobID != first.JobID {
		t.Fatalf("repeat EnqueuePost: %+v %v", second, err)
	}
	if q, _ := store.Load(ctx); len(q) != 1 {
		t.Fatalf("queue: got=%d jobs want=1", len(q))
	}
}

func TestReanalyzeAllSkipsActivePosts(t *testing.T) {
	ctx := context.Background()
	svc, store, db := newQueueAdmin(t)
	author := testutil.SeedUser(t, db, "author")
	a := testutil.SeedPost(t, db, author.ID, "a")
	testutil.SeedPost(t, db, author.ID, "b")
	testutil.SeedPost(t, db, author.ID, "")
	if _, err := svc.EnqueuePost(ctx, a.ID); err != nil {
		t.Fatalf("EnqueuePost: %v", err)
	}

	res, err := svc.ReanalyzeAll(ctx)
	if err != nil {
		t.Fatalf("ReanalyzeAll: %v", err)
	}
	if !res.Success || res.Total != 2 || res.Added != 1 || res.Message == "" {
		t.Fatalf("result: got=%+v", res)
	}
	q, _ := store.Load(ctx)
	if len(q) != 2 || q[0].PostID != a.ID {
		t.Fatalf("queue: got=%+v", q)
	}
}

func TestReanalyzeAllSkipsPostsWithFailedJobs(t *testing.T) {
	ctx := context.Background()
	svc, store, db := newQueueAdmin(t)
	author := testutil.SeedUser(t, db, "author")
	a := testutil.SeedPost(t, db, author.ID, "a")
	now := time.Now()
	failed := jobs.NewAnalyzePost(a.ID, "a", now, false)
	_ = failed.Claim("l", time.Minute, now)
	_ = failed.Fail("boom", now)
	if err := store.Save(ctx, []jobs.Job{failed}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	res, err := svc.ReanalyzeAll(ctx)
	if err != nil {
		t.Fatalf("ReanalyzeAll: %v", err)
	}
	if res.Added != 0 || res.Total != 1 {
		t.Fatalf("result: got=%+v want added=0 total=1", res)
	}
	q, _ := store.Load(ctx)
	if len(q) != 1 || q[0].ID != failed.ID {
		t.Fatalf("queue: got=%+v", q)
	}
}

func TestClearAndRequeueFailed(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newQueueAdmin(t)
	now := time.Now()
	var q []jobs.Job
	for i, status := range []string{jobs.StatusPending, jobs.StatusFailed, jobs.StatusFailed} {
		j := jobs.NewAnalyzePost(int64(i+1), "x", now, false)
		if status == jobs.StatusFailed {
			_ = j.Claim("l", time.Minute, now)
			_ = j.Fail("boom", now)
		}
		q = append(q, j)
	}
	if err := store.Save(ctx, q); err != nil {
		t.Fatalf("Save: %v", err)
	}

	st, err := svc.Stats(ctx)
	if err != nil || st.Failed != 2 || st.Pending != 1 || st.TotalJobs != 3 {
		t.Fatalf("Stats: %+v %v", st, err)
	}
	rq, err := svc.RequeueFailed(ctx)
	if err != nil || rq.Requeued != 2 {
		t.Fatalf("RequeueFailed: %+v %v", rq, err)
	}
	got, _ := store.Load(ctx)
	for _, j := range got {
		if j.Status != jobs.StatusPending || j.Error != "" {
			t.Fatalf("requeued job: %+v", j)
		}
	}

	_ = store.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) {
		_ = q[0].Claim("l", time.Minute, now)
		_ = q[0].Fail("again", now)
		return q, nil
	})
	cl, err := svc.ClearFailed(ctx)
	if err != nil || cl.Removed != 1 || cl.Remaining != 2 {
		t.Fatalf("ClearFailed: %+v %v", cl, err)
	}
}

func TestThemesAggregatesPostLabels(t *testing.T) {
	svc, _, db := newQueueAdmin(t)
	author := testutil.SeedUser(t, db, "author")
	testutil.SeedPost(t, db, author.ID, "a", testutil.WithThemes(`{"gaming":0.8,"fps":0.4}`))
	testutil.SeedPost(t, db, author.ID, "b", testutil.WithThemes(`{"gaming":0.6}`))

	stats, err := svc.Themes(context.Background(), 0)
	if err != nil {
		t.Fatalf("Themes: %v", err)
	}
	want := []feed.ThemeStat{{Theme: "gaming", Posts: 2, AvgWeight: 0.7}, {Theme: "fps", Posts: 1, AvgWeight: 0.4}}
	if len(stats) != len(want) {
		t.Fatalf("Themes: got=%+v", stats)
	}
	for i := range want {
		if stats[i].Theme != want[i].Theme || stats[i].Posts != want[i].Posts || stats[i].AvgWeight < want[i].AvgWeight-1e-9 || stats[i].AvgWeight > want[i].AvgWeight+1e-9 {
			t.Fatalf("Themes[%d]: got=%+v want=%+v", i, stats[i], want[i])
		}
	}
}
