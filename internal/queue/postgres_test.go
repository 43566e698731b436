package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/testutil"
)

func TestPostgresStoreClaimReleaseReap(t *testing.T) {
	ctx := context.Background()
	s := NewPostgresStore(testutil.DB(t), testutil.Logger(t))

	now := time.Now().UTC()
	q := seedJobs(3, now)
	if err := s.Save(ctx, q); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 3 || loaded[0].ID != "job-1" || loaded[2].ID != "job-3" {
		t.Fatalf("Load order: %v", jobIDs(loaded))
	}

	claimed, err := Claim(ctx, s, 2, "proc", time.Minute, map[string]bool{"job-1": true})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(claimed) != 2 || claimed[0].ID != "job-2" || claimed[1].ID != "job-3" {
		t.Fatalf("claimed: %v", jobIDs(claimed))
	}

	if err := Release(ctx, s, "job-2", "wrong", func(*jobs.Job) bool { return true }); !errors.Is(err, ErrLeaseLost) {
		t.Fatalf("Release wrong lease: want ErrLeaseLost got %v", err)
	}
	if err := Release(ctx, s, "job-2", claimed[0].LeaseID, func(*jobs.Job) bool { return true }); err != nil {
		t.Fatalf("Release: %v", err)
	}

	reaped, err := Reap(ctx, s, now.Add(10*time.Minute), 5*time.Minute)
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if len(reaped) != 1 || reaped[0].ID != "job-3" || reaped[0].Error != jobs.ErrorTimeout {
		t.Fatalf("reaped: %+v", reaped)
	}

	final, _ := s.Load(ctx)
	st := jobs.Summarize(final)
	if st.TotalJobs != 2 || st.Pending != 1 || st.Failed != 1 {
		t.Fatalf("final stats: %+v", st)
	}
}

func TestPostgresStoreRejectsDuplicateActiveJob(t *testing.T) {
	ctx := context.Background()
	s := NewPostgresStore(testutil.DB(t), testutil.Logger(t))
	now := time.Now().UTC()

	first := jobs.NewAnalyzePost(42, "hello", now, false)
	first.ID = "a"
	second := jobs.NewAnalyzePost(42, "hello again", now, false)
	second.ID = "b"

	if err := s.Save(ctx, []jobs.Job{first}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	err := s.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) { return append(q, second), nil })
	if !errors.Is(err, pkgerrors.ErrDuplicate) {
		t.Fatalf("duplicate active job: want ErrDuplicate got %v", err)
	}
}
