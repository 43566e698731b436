package social

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

type PostRepo interface {
	GetByID(dbc dbctx.Context, id int64) (*feed.Post, error)
	UpdateAnalysis(dbc dbctx.Context, id int64, themes map[string]float64, rec feed.AnalysisRecord) error
	HydrateByIDs(dbc dbctx.Context, viewerID int64, ids []int64) ([]feed.FeedPost, error)
	ListRecentExcludingAuthor(dbc dbctx.Context, viewerID int64, limit int) ([]feed.FeedPost, error)
	ListRecent(dbc dbctx.Context, limit int) ([]feed.Post, error)
	ListByAuthor(dbc dbctx.Context, authorID int64, limit int) ([]feed.Post, error)
	ListWithContent(dbc dbctx.Context) ([]feed.Post, error)
	ThemeStats(dbc dbctx.Context, limit int) ([]feed.ThemeStat, error)
}

type postRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostRepo(db *gorm.DB, baseLog *logger.Logger) PostRepo {
	return &postRepo{
		db:  db,
		log: baseLog.With("repo", "PostRepo"),
	}
}

// hydrateSelect mirrors the columns of feed.FeedPost. The viewer id binds
// three times, once per engagement flag.
const hydrateSelect = `
  SELECT
    p.id,
    p.content,
    p.media_url,
    p.media_type,
    p.created_at,
    u.id AS user_id,
    u.username,
    u.display_name,
    u.avatar_url,
    COUNT(DISTINCT l.id) AS like_count,
    COUNT(DISTINCT r.id) AS repost_count,
    COUNT(DISTINCT rep.id) AS reply_count,
    EXISTS(SELECT 1 FROM likes WHERE post_id = p.id AND user_id = ?) AS user_liked,
    EXISTS(SELECT 1 FROM reposts WHERE post_id = p.id AND user_id = ?) AS user_reposted,
    EXISTS(SELECT 1 FROM bookmarks WHERE post_id = p.id AND user_id = ?) AS user_bookmarked
  FROM posts p
  JOIN users u ON p.user_id = u.id
  LEFT JOIN likes l ON p.id = l.post_id
  LEFT JOIN reposts r ON p.id = r.post_id
  LEFT JOIN replies rep ON p.id = rep.post_id
`

const hydrateGroupBy = `
  GROUP BY p.id, p.content, p.media_url, p.media_type, p.created_at, u.id, u.username, u.display_name, u.avatar_url
`

func (r *postRepo) GetByID(dbc dbctx.Context, id int64) (*feed.Post, error) {
	var post feed.Post
	err := dbc.DB(r.db).Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("post %d: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepo) UpdateAnalysis(dbc dbctx.Context, id int64, themes map[string]float64, rec feed.AnalysisRecord) error {
	themesRaw, err := json.Marshal(themes)
	if err != nil {
		return fmt.Errorf("encode themes: %w", err)
	}
	recRaw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode analysis_data: %w", err)
	}
	res := dbc.DB(r.db).
		Model(&feed.Post{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"themes":        datatypes.JSON(themesRaw),
			"analysis_data": datatypes.JSON(recRaw),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("post %d: %w", id, pkgerrors.ErrNotFound)
	}
	return nil
}

// HydrateByIDs loads the live rows for ids in no particular order. Ids that
// are missing or soft-deleted are absent from the result.
func (r *postRepo) HydrateByIDs(dbc dbctx.Context, viewerID int64, ids []int64) ([]feed.FeedPost, error) {
	out := []feed.FeedPost{}
	if len(ids) == 0 {
		return out, nil
	}
	q := hydrateSelect + `
  WHERE p.id IN ? AND p.deleted_at IS NULL
` + hydrateGroupBy
	if err := dbc.DB(r.db).Raw(q, viewerID, viewerID, viewerID, ids).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepo) ListRecentExcludingAuthor(dbc dbctx.Context, viewerID int64, limit int) ([]feed.FeedPost, error) {
	out := []feed.FeedPost{}
	if limit <= 0 {
		return out, nil
	}
	q := hydrateSelect + `
  WHERE p.user_id <> ? AND p.deleted_at IS NULL
` + hydrateGroupBy + `
  ORDER BY p.created_at DESC, p.id DESC
  LIMIT ?
`
	if err := dbc.DB(r.db).Raw(q, viewerID, viewerID, viewerID, viewerID, limit).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepo) ListRecent(dbc dbctx.Context, limit int) ([]feed.Post, error) {
	var out []feed.Post
	if err := dbc.DB(r.db).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepo) ListByAuthor(dbc dbctx.Context, authorID int64, limit int) ([]feed.Post, error) {
	var out []feed.Post
	if err := dbc.DB(r.db).
		Select("id", "user_id", "content", "created_at").
		Where("user_id = ?", authorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepo) ListWithContent(dbc dbctx.Context) ([]feed.Post, error) {
	var out []feed.Post
	if err := dbc.DB(r.db).
		Select("id", "user_id", "content", "created_at").
		Where("content IS NOT NULL AND content <> ''").
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ThemeStats aggregates posts.themes in process so the same code runs on
// both postgres and sqlite.
func (r *postRepo) ThemeStats(dbc dbctx.Context, limit int) ([]feed.ThemeStat, error) {
	var rows []feed.Post
	if err := dbc.DB(r.db).
		Select("id", "themes").
		Where("themes IS NOT NULL").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, row := range rows {
		for theme, w := range feed.DecodeThemes(row.Themes) {
			sums[theme] += w
			counts[theme]++
		}
	}
	out := make([]feed.ThemeStat, 0, len(counts))
	for theme, n := range counts {
		out = append(out, feed.ThemeStat{Theme: theme, Posts: n, AvgWeight: sums[theme] / float64(n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Posts != out[j].Posts {
			return out[i].Posts > out[j].Posts
		}
		return out[i].Theme < out[j].Theme
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
