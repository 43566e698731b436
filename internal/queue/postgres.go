package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps one row per job in analysis_jobs. Claims take row
// locks with SKIP LOCKED so several processors can share the table.
type PostgresStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresStore(db *gorm.DB, baseLog *logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: baseLog.With("repo", "AnalysisJobStore")}
}

func (s *PostgresStore) Load(ctx context.Context) ([]jobs.Job, error) {
	var out []jobs.Job
	if err := s.db.WithContext(ctx).Order("seq ASC, added_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, queue []jobs.Job) error {
	return s.Update(ctx, func([]jobs.Job) ([]jobs.Job, error) { return queue, nil })
}

// Update locks every row, applies fn and writes the difference back. Queue
// position is persisted as seq.
func (s *PostgresStore) Update(ctx context.Context, fn MutateFunc) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur []jobs.Job
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Order("seq ASC, added_at ASC").
			Find(&cur).Error; err != nil {
			return err
		}
		next, changed, err := applyMutation(fn, cloneQueue(cur))
		if err != nil || !changed {
			return err
		}
		keep := make(map[string]bool, len(next))
		for _, j := range next {
			keep[j.ID] = true
		}
		var drop []string
		for _, j := range cur {
			if !keep[j.ID] {
				drop = append(drop, j.ID)
			}
		}
		if len(drop) > 0 {
			if err := tx.Where("id IN ?", drop).Delete(&jobs.Job{}).Error; err != nil {
				return err
			}
		}
		for i := range next {
			next[i].Seq = int64(i + 1)
			if err := tx.Save(&next[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}

func (s *PostgresStore) Claim(ctx context.Context, n int, owner string, ttl time.Duration, exclude map[string]bool) ([]jobs.Job, error) {
	var claimed []jobs.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", jobs.StatusPending)
		if ids := keys(exclude); len(ids) > 0 {
			q = q.Where("id NOT IN ?", ids)
		}
		var rows []jobs.Job
		if err := q.Order("seq ASC, added_at ASC").Limit(n).Find(&rows).Error; err != nil {
			return err
		}
		now := nowFunc()
		for i := range rows {
			if err := rows[i].Claim(NewLeaseID(owner), ttl, now); err != nil {
				return err
			}
			if err := tx.Save(&rows[i]).Error; err != nil {
				return err
			}
		}
		claimed = rows
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return claimed, nil
}

func (s *PostgresStore) Release(ctx context.Context, jobID, leaseID string, mutate func(*jobs.Job) bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j jobs.Job
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND lease_id = ?", jobID, leaseID).
			First(&j).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("job %s: %w", jobID, ErrLeaseLost)
		}
		if err != nil {
			return err
		}
		if mutate(&j) {
			return tx.Where("id = ?", j.ID).Delete(&jobs.Job{}).Error
		}
		return tx.Save(&j).Error
	})
	return translate(err)
}

func (s *PostgresStore) ReapStuck(ctx context.Context, now time.Time, timeout time.Duration) ([]jobs.Job, error) {
	var reaped []jobs.Job
	cutoff := now.Add(-timeout).UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []jobs.Job
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", jobs.StatusProcessing).
			Where("started_at IS NULL OR started_at < ? OR (lease_expires_at IS NOT NULL AND lease_expires_at <= ?)", cutoff, now.UTC()).
			Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			if err := rows[i].Fail(jobs.ErrorTimeout, now); err != nil {
				return err
			}
			if err := tx.Save(&rows[i]).Error; err != nil {
				return err
			}
		}
		reaped = rows
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return reaped, nil
}

// translate maps a unique violation on the active-job index to ErrDuplicate.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("analysis job: %w", pkgerrors.ErrDuplicate)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("analysis job %s: %w", pgErr.ConstraintName, pkgerrors.ErrDuplicate)
	}
	return err
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	return out
}
