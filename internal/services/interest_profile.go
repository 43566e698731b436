package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/socialfeed-backend/internal/data/repos/interactions"
	"github.com/yungbote/socialfeed-backend/internal/data/repos/social"
	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	"github.com/yungbote/socialfeed-backend/internal/domain/profile"
	"github.com/yungbote/socialfeed-backend/internal/observability"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

const (
	ProfileModeQueued = "queued"
	ProfileModeInline = "inline"
)

var hashtagRE = regexp.MustCompile(`#(\w+)`)

type InterestProfileConfig struct {
	Mode          string
	DecayHalfLife time.Duration
}

// ProfileView is a stored profile plus its read-time decayed weights.
type ProfileView struct {
	UserID           int64                       `json:"user_id"`
	Profile          profile.UserInterestProfile `json:"profile"`
	EffectiveWeights map[string]float64          `json:"effective_weights"`
}

type InterestProfileService interface {
	// OnInteraction records one interaction. folded reports whether the
	// profile was updated before returning (inline mode).
	OnInteraction(ctx context.Context, userID, postID int64, kind string) (folded bool, err error)
	// FoldPending applies every unfolded event of userID and returns how many.
	FoldPending(ctx context.Context, userID int64) (int, error)
	GetProfile(ctx context.Context, userID int64) (*ProfileView, error)
}

type interestProfileService struct {
	db           *gorm.DB
	log          *logger.Logger
	cfg          InterestProfileConfig
	users        social.UserRepo
	posts        social.PostRepo
	interactions interactions.InteractionRepo
	metrics      *observability.Metrics
	now          func() time.Time
}

func NewInterestProfileService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg InterestProfileConfig,
	users social.UserRepo,
	posts social.PostRepo,
	interactionRepo interactions.InteractionRepo,
	metrics *observability.Metrics,
) InterestProfileService {
	if cfg.Mode != ProfileModeInline {
		cfg.Mode = ProfileModeQueued
	}
	return &interestProfileService{
		db:           db,
		log:          baseLog.With("service", "InterestProfileService"),
		cfg:          cfg,
		users:        users,
		posts:        posts,
		interactions: interactionRepo,
		metrics:      metrics,
		now:          time.Now,
	}
}

func (s *interestProfileService) OnInteraction(ctx context.Context, userID, postID int64, kind string) (bool, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if !profile.ValidInteraction(kind) {
		return false, fmt.Errorf("%w: unknown interaction type %q", pkgerrors.ErrInvalidArgument, kind)
	}
	if userID <= 0 || postID <= 0 {
		return false, fmt.Errorf("%w: user_id and post_id are required", pkgerrors.ErrInvalidArgument)
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.users.GetByID(dbc, userID); err != nil {
		return false, err
	}
	post, err := s.posts.GetByID(dbc, postID)
	if err != nil {
		return false, err
	}

	ev := &profile.InteractionEvent{
		UserID:    userID,
		PostID:    post.ID,
		AuthorID:  post.UserID,
		Type:      kind,
		Themes:    post.Themes,
		CreatedAt: s.now().UTC(),
	}
	if tags := ExtractHashtags(post.Content); len(tags) > 0 {
		raw, err := jsonArray(tags)
		if err != nil {
			return false, err
		}
		ev.Hashtags = raw
	}
	if err := s.interactions.Append(dbc, ev); err != nil {
		return false, fmt.Errorf("append interaction: %w", err)
	}
	s.metrics.ObserveInteraction(kind)

	if s.cfg.Mode != ProfileModeInline {
		return false, nil
	}
	if _, err := s.FoldPending(ctx, userID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *interestProfileService) FoldPending(ctx context.Context, userID int64) (int, error) {
	var folded int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		user, err := s.users.GetForUpdate(dbc, userID)
		if err != nil {
			return err
		}
		events, err := s.interactions.ListPending(dbc, userID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		now := s.now()
		p := profile.Decode(user.InterestProfile)
		ids := make([]int64, 0, len(events))
		for _, ev := range events {
			p = profile.Fold(p, ev.Signal(), now)
			ids = append(ids, ev.ID)
		}
		raw, err := p.Encode()
		if err != nil {
			return err
		}
		if err := s.users.SaveProfile(dbc, userID, raw); err != nil {
			return err
		}
		if err := s.interactions.MarkFolded(dbc, ids, now); err != nil {
			return err
		}
		folded = len(ids)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("fold profile for user %d: %w", userID, err)
	}
	s.metrics.ObserveFolded(folded)
	return folded, nil
}

func (s *interestProfileService) GetProfile(ctx context.Context, userID int64) (*ProfileView, error) {
	user, err := s.users.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, err
	}
	p := profile.Decode(user.InterestProfile)
	return &ProfileView{
		UserID:           userID,
		Profile:          p,
		EffectiveWeights: p.EffectiveWeights(s.now(), s.cfg.DecayHalfLife),
	}, nil
}

// ExtractHashtags returns the distinct lowercased #tags in content, in order
// of first appearance.
func ExtractHashtags(content string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range hashtagRE.FindAllStringSubmatch(content, -1) {
		tag := feed.NormalizeTopic(m[1])
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func jsonArray(values []string) (datatypes.JSON, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
