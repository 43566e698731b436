package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/socialfeed-backend/internal/clients/ranking"
	"github.com/yungbote/socialfeed-backend/internal/data/repos/social"
	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	"github.com/yungbote/socialfeed-backend/internal/observability"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100

	mediaSignConcurrency = 8
)

// MediaSigner turns a stored media URL into a short-lived readable one.
type MediaSigner interface {
	Sign(ctx context.Context, rawURL string) (string, error)
}

type FeedConfig struct {
	RankingTimeout time.Duration
}

type FeedService interface {
	// Assemble returns one page of the viewer's feed. Ranking failures fall
	// back to a recency feed; only a failing fallback query is an error.
	Assemble(ctx context.Context, viewerID int64, cursor string, limit int) (*feed.Page, error)
}

type feedService struct {
	log     *logger.Logger
	cfg     FeedConfig
	ranking ranking.Client
	posts   social.PostRepo
	signer  MediaSigner
	metrics *observability.Metrics
	now     func() time.Time
}

func NewFeedService(
	baseLog *logger.Logger,
	cfg FeedConfig,
	rankingClient ranking.Client,
	posts social.PostRepo,
	signer MediaSigner,
	metrics *observability.Metrics,
) FeedService {
	if cfg.RankingTimeout <= 0 {
		cfg.RankingTimeout = 30 * time.Second
	}
	return &feedService{
		log:     baseLog.With("service", "FeedService"),
		cfg:     cfg,
		ranking: rankingClient,
		posts:   posts,
		signer:  signer,
		metrics: metrics,
		now:     time.Now,
	}
}

// ClampFeedLimit maps a requested page size into [1, MaxFeedLimit], with
// DefaultFeedLimit for unset values.
func ClampFeedLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultFeedLimit
	case limit > MaxFeedLimit:
		return MaxFeedLimit
	}
	return limit
}

func (s *feedService) Assemble(ctx context.Context, viewerID int64, cursor string, limit int) (*feed.Page, error) {
	if viewerID <= 0 {
		return nil, fmt.Errorf("%w: user_id is required", pkgerrors.ErrInvalidArgument)
	}
	limit = ClampFeedLimit(limit)
	log := s.log.With("viewer_id", viewerID, "limit", limit)

	page, err := s.ranked(ctx, viewerID, cursor, limit)
	if err != nil {
		log.Warn("Ranking unavailable, serving recency fallback", "error", err)
		page, err = s.fallback(ctx, viewerID, limit)
		if err != nil {
			return nil, err
		}
	}
	s.signMedia(ctx, page.Posts)
	s.metrics.ObserveFeed(page.Source)
	return page, nil
}

func (s *feedService) ranked(ctx context.Context, viewerID int64, cursor string, limit int) (*feed.Page, error) {
	if s.ranking == nil {
		return nil, fmt.Errorf("ranking client not configured")
	}
	req := ranking.FeedRequest{
		UserID:    strconv.FormatInt(viewerID, 10),
		Limit:     limit,
		SessionID: fmt.Sprintf("session_%d_%d", viewerID, s.now().UnixMilli()),
	}
	if c := strings.TrimSpace(cursor); c != "" {
		req.Cursor = &c
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RankingTimeout)
	defer cancel()
	resp, err := s.ranking.GenerateFeed(rctx, req)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(resp.Posts))
	seen := make(map[int64]bool, len(resp.Posts))
	for _, rp := range resp.Posts {
		id, err := strconv.ParseInt(rp.ID(), 10, 64)
		if err != nil || id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	page := &feed.Page{Posts: []feed.FeedPost{}, NextCursor: resp.NextCursor, Source: feed.SourceRanked}
	if len(ids) == 0 {
		return page, nil
	}

	rows, err := s.posts.HydrateByIDs(dbctx.Context{Ctx: ctx}, viewerID, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate ranked posts: %w", err)
	}
	byID := make(map[int64]feed.FeedPost, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	for _, id := range ids {
		if len(page.Posts) >= limit {
			break
		}
		if row, ok := byID[id]; ok {
			page.Posts = append(page.Posts, row)
		}
	}
	return page, nil
}

func (s *feedService) fallback(ctx context.Context, viewerID int64, limit int) (*feed.Page, error) {
	rows, err := s.posts.ListRecentExcludingAuthor(dbctx.Context{Ctx: ctx}, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("fallback feed: %w", err)
	}
	if rows == nil {
		rows = []feed.FeedPost{}
	}
	return &feed.Page{Posts: rows, Source: feed.SourceFallback}, nil
}

// signMedia rewrites media URLs in place. A failed signature keeps the
// stored URL.
func (s *feedService) signMedia(ctx context.Context, posts []feed.FeedPost) {
	if s.signer == nil {
		return
	}
	var g errgroup.Group
	g.SetLimit(mediaSignConcurrency)
	for i := range posts {
		if posts[i].MediaURL == nil || strings.TrimSpace(*posts[i].MediaURL) == "" {
			continue
		}
		i := i
		g.Go(func() error {
			raw := *posts[i].MediaURL
			signed, err := s.signer.Sign(ctx, raw)
			if err != nil {
				s.log.Warn("Media signing failed, keeping stored url", "post_id", posts[i].ID, "error", err)
				return nil
			}
			posts[i].MediaURL = &signed
			return nil
		})
	}
	_ = g.Wait()
}
