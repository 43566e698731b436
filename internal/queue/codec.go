package queue

import (
	"bytes"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
)

// ObjectKey is the logical key of the whole-queue blob.
const ObjectKey = "queue/state.json"

type envelope struct {
	Queue     []jobs.Job `json:"queue"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func Encode(queue []jobs.Job, now time.Time) ([]byte, error) {
	if queue == nil {
		queue = []jobs.Job{}
	}
	return json.Marshal(envelope{Queue: queue, UpdatedAt: now.UTC()})
}

// Decode reads either the {queue, updatedAt} envelope or a bare job array.
func Decode(raw []byte) ([]jobs.Job, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []jobs.Job{}, nil
	}
	if raw[0] == '[' {
		var q []jobs.Job
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("decode queue array: %w", err)
		}
		return q, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode queue envelope: %w", err)
	}
	if env.Queue == nil {
		env.Queue = []jobs.Job{}
	}
	return env.Queue, nil
}
