package jobs

import (
	"errors"
	"fmt"
	"time"
)

const (
	TypeAnalyzePost = "analyze_post"

	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"

	// ErrorTimeout is recorded on jobs the reaper reclaims.
	ErrorTimeout = "Timeout"
)

var ErrInvalidTransition = errors.New("invalid job status transition")

// Job is one unit of post classification work. The same shape is used for
// the whole-queue blob format (json tags) and the analysis_jobs table.
type Job struct {
	ID             string     `gorm:"column:id;primaryKey" json:"id"`
	Seq            int64      `gorm:"column:seq;not null;index" json:"-"`
	Type           string     `gorm:"column:type;not null" json:"type"`
	PostID         int64      `gorm:"column:post_id;not null;index" json:"postId"`
	Content        string     `gorm:"column:content;type:text" json:"content"`
	Status         string     `gorm:"column:status;not null;index" json:"status"`
	Manual         bool       `gorm:"column:manual;not null" json:"manual,omitempty"`
	Attempts       int        `gorm:"column:attempts;not null" json:"attempts,omitempty"`
	Error          string     `gorm:"column:error" json:"error,omitempty"`
	LeaseID        string     `gorm:"column:lease_id;index" json:"leaseId,omitempty"`
	LeaseExpiresAt *time.Time `gorm:"column:lease_expires_at" json:"leaseExpiresAt,omitempty"`
	AddedAt        time.Time  `gorm:"column:added_at;not null" json:"addedAt"`
	StartedAt      *time.Time `gorm:"column:started_at" json:"startedAt,omitempty"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

func (Job) TableName() string { return "analysis_jobs" }

// NewAnalyzePost builds a pending job carrying a snapshot of the post text.
func NewAnalyzePost(postID int64, content string, now time.Time, manual bool) Job {
	return Job{
		ID:      fmt.Sprintf("post_%d_%d", postID, now.UnixMilli()),
		Type:    TypeAnalyzePost,
		PostID:  postID,
		Content: content,
		Status:  StatusPending,
		Manual:  manual,
		AddedAt: now.UTC(),
	}
}

// Active reports whether the job still occupies its post's slot in the queue.
func (j Job) Active() bool {
	return j.Status == StatusPending || j.Status == StatusProcessing
}

// Terminal reports whether the job reached completed or failed.
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// LeaseLive reports whether the job is held by a lease that has not expired.
func (j Job) LeaseLive(now time.Time) bool {
	return j.LeaseID != "" && j.LeaseExpiresAt != nil && now.Before(*j.LeaseExpiresAt)
}

// Stuck reports whether a processing job has outlived timeout or its lease.
func (j Job) Stuck(now time.Time, timeout time.Duration) bool {
	if j.Status != StatusProcessing {
		return false
	}
	if j.StartedAt == nil {
		return true
	}
	if now.Sub(*j.StartedAt) > timeout {
		return true
	}
	return j.LeaseExpiresAt != nil && !now.Before(*j.LeaseExpiresAt)
}

func canTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	case StatusFailed:
		// operator requeue
		return to == StatusPending
	}
	return false
}

// Transition moves the job to status to, stamping the matching timestamp.
func (j *Job) Transition(to string, now time.Time) error {
	if !canTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s (job %s)", ErrInvalidTransition, j.Status, to, j.ID)
	}
	now = now.UTC()
	switch to {
	case StatusProcessing:
		j.StartedAt = &now
		j.CompletedAt = nil
		j.Error = ""
		j.Attempts++
	case StatusCompleted, StatusFailed:
		j.CompletedAt = &now
		j.LeaseID = ""
		j.LeaseExpiresAt = nil
	case StatusPending:
		j.StartedAt = nil
		j.CompletedAt = nil
		j.Error = ""
		j.LeaseID = ""
		j.LeaseExpiresAt = nil
	}
	j.Status = to
	return nil
}

// Fail transitions a processing job to failed with reason.
func (j *Job) Fail(reason string, now time.Time) error {
	if err := j.Transition(StatusFailed, now); err != nil {
		return err
	}
	j.Error = reason
	return nil
}

// Claim transitions a pending job to processing under a fresh lease.
func (j *Job) Claim(leaseID string, ttl time.Duration, now time.Time) error {
	if err := j.Transition(StatusProcessing, now); err != nil {
		return err
	}
	exp := now.UTC().Add(ttl)
	j.LeaseID = leaseID
	j.LeaseExpiresAt = &exp
	return nil
}

type Stats struct {
	TotalJobs  int `json:"totalJobs"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

func Summarize(queue []Job) Stats {
	s := Stats{TotalJobs: len(queue)}
	for _, j := range queue {
		switch j.Status {
		case StatusPending:
			s.Pending++
		case StatusProcessing:
			s.Processing++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// ActivePosts returns the post ids that have a pending or processing job.
// QueuedPosts returns every post with a job in queue, whatever its status.
func QueuedPosts(queue []Job) map[int64]bool {
	out := make(map[int64]bool, len(queue))
	for _, j := range queue {
		out[j.PostID] = true
	}
	return out
}

func ActivePosts(queue []Job) map[int64]bool {
	out := make(map[int64]bool, len(queue))
	for _, j := range queue {
		if j.Active() {
			out[j.PostID] = true
		}
	}
	return out
}
