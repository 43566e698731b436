package interactions

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/socialfeed-backend/internal/domain/profile"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

type InteractionRepo interface {
	Append(dbc dbctx.Context, ev *profile.InteractionEvent) error
	// ListUsersWithPending returns users above afterUserID with unfolded
	// events, in ascending id order.
	ListUsersWithPending(dbc dbctx.Context, afterUserID int64, limit int) ([]int64, error)
	ListPending(dbc dbctx.Context, userID int64) ([]profile.InteractionEvent, error)
	MarkFolded(dbc dbctx.Context, ids []int64, at time.Time) error
	// DiscardPending retires every unfolded event of userID without applying it.
	DiscardPending(dbc dbctx.Context, userID int64, reason string, at time.Time) (int64, error)
	CountPending(dbc dbctx.Context) (int64, error)
}

type interactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInteractionRepo(db *gorm.DB, baseLog *logger.Logger) InteractionRepo {
	return &interactionRepo{db: db, log: baseLog.With("repo", "InteractionRepo")}
}

func (r *interactionRepo) Append(dbc dbctx.Context, ev *profile.InteractionEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	return dbc.DB(r.db).Create(ev).Error
}

func (r *interactionRepo) ListUsersWithPending(dbc dbctx.Context, afterUserID int64, limit int) ([]int64, error) {
	var ids []int64
	q := dbc.DB(r.db).
		Model(&profile.InteractionEvent{}).
		Distinct("user_id").
		Where("folded_at IS NULL AND user_id > ?", afterUserID).
		Order("user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *interactionRepo) ListPending(dbc dbctx.Context, userID int64) ([]profile.InteractionEvent, error) {
	var out []profile.InteractionEvent
	if err := dbc.DB(r.db).
		Where("user_id = ? AND folded_at IS NULL", userID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *interactionRepo) MarkFolded(dbc dbctx.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Model(&profile.InteractionEvent{}).
		Where("id IN ? AND folded_at IS NULL", ids).
		Update("folded_at", at.UTC()).Error
}

func (r *interactionRepo) DiscardPending(dbc dbctx.Context, userID int64, reason string, at time.Time) (int64, error) {
	res := dbc.DB(r.db).
		Model(&profile.InteractionEvent{}).
		Where("user_id = ? AND folded_at IS NULL", userID).
		Updates(map[string]any{"folded_at": at.UTC(), "discard_reason": reason})
	return res.RowsAffected, res.Error
}

func (r *interactionRepo) CountPending(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.DB(r.db).
		Model(&profile.InteractionEvent{}).
		Where("folded_at IS NULL").
		Count(&n).Error
	return n, err
}
