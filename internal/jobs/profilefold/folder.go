package profilefold

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/socialfeed-backend/internal/data/repos/interactions"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

// ProfileFolder applies one user's pending interaction events.
type ProfileFolder interface {
	FoldPending(ctx context.Context, userID int64) (int, error)
}

type Config struct {
	Interval time.Duration
	Batch    int
}

// Folder drains the interaction event log into user interest profiles.
type Folder struct {
	log    *logger.Logger
	cfg    Config
	events interactions.InteractionRepo
	fold   ProfileFolder

	// cursor is the last user visited; the next tick resumes above it.
	cursor int64
}

func New(baseLog *logger.Logger, cfg Config, events interactions.InteractionRepo, fold ProfileFolder) *Folder {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	return &Folder{
		log:    baseLog.With("component", "ProfileFolder"),
		cfg:    cfg,
		events: events,
		fold:   fold,
	}
}

func (f *Folder) Run(ctx context.Context) {
	f.log.Info("Starting profile folder", "interval", f.cfg.Interval.String(), "batch", f.cfg.Batch)
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			f.log.Info("Profile folder stopped")
			return
		case <-ticker.C:
			if _, err := f.Tick(ctx); err != nil && ctx.Err() == nil {
				f.log.Warn("Profile fold tick failed", "error", err)
			}
		}
	}
}

// Tick folds up to Batch users and returns the number of events applied.
// Users are visited in rotating id order so a user that keeps failing cannot
// starve the rest. Events of users that no longer exist are discarded. Tick is
// not safe for concurrent use.
func (f *Folder) Tick(ctx context.Context) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	users, err := f.events.ListUsersWithPending(dbc, f.cursor, f.cfg.Batch)
	if err != nil {
		return 0, fmt.Errorf("list users with pending events: %w", err)
	}
	if len(users) == 0 && f.cursor > 0 {
		f.cursor = 0
		if users, err = f.events.ListUsersWithPending(dbc, 0, f.cfg.Batch); err != nil {
			return 0, fmt.Errorf("list users with pending events: %w", err)
		}
	}
	if len(users) < f.cfg.Batch {
		f.cursor = 0
	} else {
		f.cursor = users[len(users)-1]
	}

	total := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := f.fold.FoldPending(ctx, userID)
		if errors.Is(err, pkgerrors.ErrNotFound) {
			dropped, derr := f.events.DiscardPending(dbc, userID, "user not found", time.Now())
			if derr != nil {
				f.log.Warn("Discard events failed", "user_id", userID, "error", derr)
				continue
			}
			f.log.Warn("Discarded events of missing user", "user_id", userID, "events", dropped)
			continue
		}
		if err != nil {
			f.log.Warn("Fold failed", "user_id", userID, "error", err)
			continue
		}
		total += n
	}
	if total > 0 {
		f.log.Debug("Folded interaction events", "users", len(users), "events", total)
	}
	if len(users) == f.cfg.Batch {
		if backlog, err := f.events.CountPending(dbc); err == nil && backlog > 0 {
			f.log.Info("Interaction backlog remains after full batch", "pending_events", backlog)
		}
	}
	return total, nil
}
