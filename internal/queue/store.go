package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/httpx"
)

const (
	BackendPostgres = "postgres"
	BackendGCS      = "gcs"
	BackendRedis    = "redis"
	BackendMemory   = "memory"

	maxUpdateAttempts = 5
)

var nowFunc = time.Now

// ErrLeaseLost is returned by Release when the job is gone or is now held
// under a different lease (reaped, then claimed again).
var ErrLeaseLost = errors.New("queue: lease lost")

// ErrNoChange is returned by a MutateFunc to leave the queue as it is. Update
// then skips the write and returns nil.
var ErrNoChange = errors.New("queue: no change")

// MutateFunc receives the whole queue and returns its replacement.
type MutateFunc func(queue []jobs.Job) ([]jobs.Job, error)

// Store holds the full set of classification jobs.
type Store interface {
	Load(ctx context.Context) ([]jobs.Job, error)
	Save(ctx context.Context, queue []jobs.Job) error
	// Update is an atomic read-modify-write of the whole queue.
	Update(ctx context.Context, fn MutateFunc) error
}

// Claimer is implemented by backends that can claim and release single jobs
// without rewriting the whole queue.
type Claimer interface {
	Claim(ctx context.Context, n int, owner string, ttl time.Duration, exclude map[string]bool) ([]jobs.Job, error)
	// Release applies mutate to jobID only while it is held under leaseID.
	// When mutate returns true the job is removed from the queue.
	Release(ctx context.Context, jobID, leaseID string, mutate func(*jobs.Job) bool) error
}

// Reaper is implemented by backends that can find stuck jobs without loading
// the whole queue.
type Reaper interface {
	ReapStuck(ctx context.Context, now time.Time, timeout time.Duration) ([]jobs.Job, error)
}

// NewLeaseID returns a lease token scoped to owner.
func NewLeaseID(owner string) string {
	return owner + ":" + uuid.NewString()
}

// Claim marks up to n pending jobs as processing under fresh leases. Jobs in
// exclude are skipped.
func Claim(ctx context.Context, s Store, n int, owner string, ttl time.Duration, exclude map[string]bool) ([]jobs.Job, error) {
	if n <= 0 {
		return nil, nil
	}
	if c, ok := s.(Claimer); ok {
		return c.Claim(ctx, n, owner, ttl, exclude)
	}
	var claimed []jobs.Job
	err := s.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) {
		claimed = claimed[:0]
		now := nowFunc()
		for i := range q {
			if len(claimed) >= n {
				break
			}
			if q[i].Status != jobs.StatusPending || exclude[q[i].ID] {
				continue
			}
			if err := q[i].Claim(NewLeaseID(owner), ttl, now); err != nil {
				return nil, err
			}
			claimed = append(claimed, q[i])
		}
		if len(claimed) == 0 {
			return nil, ErrNoChange
		}
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Release applies mutate to a leased job, or returns ErrLeaseLost.
func Release(ctx context.Context, s Store, jobID, leaseID string, mutate func(*jobs.Job) bool) error {
	if c, ok := s.(Claimer); ok {
		return c.Release(ctx, jobID, leaseID, mutate)
	}
	return s.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) {
		for i := range q {
			if q[i].ID != jobID {
				continue
			}
			if q[i].LeaseID != leaseID {
				return nil, fmt.Errorf("job %s: %w", jobID, ErrLeaseLost)
			}
			if mutate(&q[i]) {
				return append(q[:i:i], q[i+1:]...), nil
			}
			return q, nil
		}
		return nil, fmt.Errorf("job %s: %w", jobID, ErrLeaseLost)
	})
}

// Reap force-fails every processing job older than timeout or holding an
// expired lease, recording jobs.ErrorTimeout.
func Reap(ctx context.Context, s Store, now time.Time, timeout time.Duration) ([]jobs.Job, error) {
	if r, ok := s.(Reaper); ok {
		return r.ReapStuck(ctx, now, timeout)
	}
	var reaped []jobs.Job
	err := s.Update(ctx, func(q []jobs.Job) ([]jobs.Job, error) {
		reaped = reaped[:0]
		for i := range q {
			if !q[i].Stuck(now, timeout) {
				continue
			}
			if err := q[i].Fail(jobs.ErrorTimeout, now); err != nil {
				return nil, err
			}
			reaped = append(reaped, q[i])
		}
		if len(reaped) == 0 {
			return nil, ErrNoChange
		}
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return reaped, nil
}

// retryOnConflict reruns attempt while it reports a lost compare-and-swap.
func retryOnConflict(ctx context.Context, attempt func() error) error {
	var err error
	for i := 0; i < maxUpdateAttempts; i++ {
		err = attempt()
		if !errors.Is(err, pkgerrors.ErrConflict) {
			return err
		}
		if sleepErr := httpx.Sleep(ctx, httpx.JitterSleep(httpx.Backoff(i, 20*time.Millisecond, 500*time.Millisecond))); sleepErr != nil {
			return sleepErr
		}
	}
	return fmt.Errorf("queue update gave up after %d attempts: %w", maxUpdateAttempts, err)
}

// applyMutation runs fn and reports whether the result should be written.
func applyMutation(fn MutateFunc, cur []jobs.Job) ([]jobs.Job, bool, error) {
	next, err := fn(cur)
	if errors.Is(err, ErrNoChange) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return next, true, nil
}

func cloneQueue(q []jobs.Job) []jobs.Job {
	out := make([]jobs.Job, len(q))
	copy(out, q)
	return out
}
