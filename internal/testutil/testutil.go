package testutil

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/socialfeed-backend/internal/data/db"
	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
	"github.com/yungbote/socialfeed-backend/internal/pkg/pointers"
)

var dbSeq atomic.Int64

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.NewNop()
}

// DB returns a fresh, migrated in-memory SQLite database private to tb.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	name := fmt.Sprintf("file:testdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	// A single connection keeps the shared in-memory database alive and
	// serializes writers the way sqlite expects.
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return gdb
}

// PostgresDB connects to TEST_POSTGRES_DSN, skipping the test when unset.
// Tables are truncated before returning.
func PostgresDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		tb.Skip("set TEST_POSTGRES_DSN to run postgres integration tests")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open postgres: %v", err)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	if err := gdb.Exec(`TRUNCATE analysis_jobs, interaction_events, likes, reposts, replies, bookmarks, posts, users RESTART IDENTITY`).Error; err != nil {
		tb.Fatalf("truncate: %v", err)
	}
	return gdb
}

func SeedUser(tb testing.TB, gdb *gorm.DB, username string) *feed.User {
	tb.Helper()
	u := &feed.User{Username: username, DisplayName: strings.ToUpper(username[:1]) + username[1:], CreatedAt: time.Now().UTC()}
	if err := gdb.Create(u).Error; err != nil {
		tb.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

type PostOpt func(*feed.Post)

func WithThemes(raw string) PostOpt {
	return func(p *feed.Post) { p.Themes = []byte(raw) }
}

func WithMedia(url string) PostOpt {
	return func(p *feed.Post) {
		p.MediaURL = pointers.Ptr(url)
		p.MediaType = pointers.Ptr("image")
	}
}

func WithCreatedAt(ts time.Time) PostOpt {
	return func(p *feed.Post) { p.CreatedAt = ts.UTC() }
}

func SeedPost(tb testing.TB, gdb *gorm.DB, authorID int64, content string, opts ...PostOpt) *feed.Post {
	tb.Helper()
	p := &feed.Post{UserID: authorID, Content: content, CreatedAt: time.Now().UTC()}
	for _, opt := range opts {
		opt(p)
	}
	if err := gdb.Create(p).Error; err != nil {
		tb.Fatalf("seed post: %v", err)
	}
	return p
}
