package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
	"github.com/yungbote/socialfeed-backend/internal/domain/profile"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Social graph (written by the CRUD surface, read here)
		&feed.User{},
		&feed.Post{},
		&feed.Like{},
		&feed.Repost{},
		&feed.Reply{},
		&feed.Bookmark{},

		// Classification queue
		&jobs.Job{},

		// Interest profile event log
		&profile.InteractionEvent{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// One active job per post. Both postgres and sqlite accept partial indexes.
	if err := db.Exec(`
    CREATE UNIQUE INDEX IF NOT EXISTS idx_analysis_jobs_active_post
    ON analysis_jobs (post_id)
    WHERE status IN ('pending', 'processing')
  `).Error; err != nil {
		return fmt.Errorf("create active job index: %w", err)
	}
	return nil
}
