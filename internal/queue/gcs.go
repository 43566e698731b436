package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

// GCSStore keeps the queue as one JSON object. Update is a compare-and-swap
// on the object generation.
type GCSStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	key    string
}

func NewGCSStore(log *logger.Logger, client *storage.Client, bucket, key string) *GCSStore {
	if key == "" {
		key = ObjectKey
	}
	return &GCSStore{
		log:    log.With("component", "GCSQueueStore", "bucket", bucket, "key", key),
		client: client,
		bucket: bucket,
		key:    key,
	}
}

func (s *GCSStore) object() *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.key)
}

func (s *GCSStore) Load(ctx context.Context) ([]jobs.Job, error) {
	q, _, err := s.read(ctx)
	return q, err
}

func (s *GCSStore) Save(ctx context.Context, queue []jobs.Job) error {
	return s.write(ctx, s.object(), queue)
}

func (s *GCSStore) Update(ctx context.Context, fn MutateFunc) error {
	return retryOnConflict(ctx, func() error {
		cur, gen, err := s.read(ctx)
		if err != nil {
			return err
		}
		next, changed, err := applyMutation(fn, cur)
		if err != nil || !changed {
			return err
		}
		obj := s.object()
		if gen == 0 {
			obj = obj.If(storage.Conditions{DoesNotExist: true})
		} else {
			obj = obj.If(storage.Conditions{GenerationMatch: gen})
		}
		err = s.write(ctx, obj, next)
		if isPreconditionFailed(err) {
			s.log.Debug("Queue object changed underneath update, retrying", "generation", gen)
			return fmt.Errorf("gcs generation %d: %w", gen, pkgerrors.ErrConflict)
		}
		return err
	})
}

// read returns the queue and the object generation; generation 0 means the
// object does not exist yet.
func (s *GCSStore) read(ctx context.Context) ([]jobs.Job, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	r, err := s.object().NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return []jobs.Job{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open queue object: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read queue object: %w", err)
	}
	q, err := Decode(raw)
	if err != nil {
		return nil, 0, err
	}
	return q, r.Attrs.Generation, nil
}

func (s *GCSStore) write(ctx context.Context, obj *storage.ObjectHandle, queue []jobs.Job) error {
	raw, err := Encode(queue, nowFunc())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("write queue object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close queue object: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
