package queue

import (
	"context"
	"sync"

	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
)

// MemoryStore keeps the queue in process. Writes go through the blob codec
// so it behaves like the remote backends.
type MemoryStore struct {
	mu  sync.Mutex
	raw []byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(ctx context.Context) ([]jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Decode(s.raw)
}

func (s *MemoryStore) Save(ctx context.Context, queue []jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(queue)
}

func (s *MemoryStore) Update(ctx context.Context, fn MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := Decode(s.raw)
	if err != nil {
		return err
	}
	next, changed, err := applyMutation(fn, cloneQueue(cur))
	if err != nil || !changed {
		return err
	}
	return s.writeLocked(next)
}

func (s *MemoryStore) writeLocked(queue []jobs.Job) error {
	raw, err := Encode(queue, nowFunc())
	if err != nil {
		return err
	}
	s.raw = raw
	return nil
}
