package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/socialfeed-backend/internal/data/repos/interactions"
	"github.com/yungbote/socialfeed-backend/internal/data/repos/social"
	"github.com/yungbote/socialfeed-backend/internal/domain/feed"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/testutil"
)

type profileFixture struct {
	db     *gorm.DB
	svc    InterestProfileService
	events interactions.InteractionRepo
	viewer *feed.User
	author *feed.User
	post   *feed.Post
}

func newProfileFixture(t *testing.T, mode string) profileFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	events := interactions.NewInteractionRepo(db, log)
	svc := NewInterestProfileService(db, log, InterestProfileConfig{Mode: mode},
		social.NewUserRepo(db, log), social.NewPostRepo(db, log), events, nil)
	viewer := testutil.SeedUser(t, db, "viewer")
	author := testutil.SeedUser(t, db, "author")
	post := testutil.SeedPost(t, db, author.ID, "clutch round gg #CSGO #fps #csgo",
		testutil.WithThemes(`{"gaming":0.9,"fps":0.5}`))
	return profileFixture{db: db, svc: svc, events: events, viewer: viewer, author: author, post: post}
}

func TestOnInteractionRejectsBadInput(t *testing.T) {
	f := newProfileFixture(t, ProfileModeQueued)
	ctx := context.Background()

	if _, err := f.svc.OnInteraction(ctx, f.viewer.ID, f.post.ID, "poke"); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("unknown type: got=%v want ErrInvalidArgument", err)
	}
	if _, err := f.svc.OnInteraction(ctx, f.viewer.ID, 9999, "like"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("unknown post: got=%v want ErrNotFound", err)
	}
	if _, err := f.svc.OnInteraction(ctx, 9999, f.post.ID, "like"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("unknown user: got=%v want ErrNotFound", err)
	}
	if n, _ := f.events.CountPending(dbctx.Context{Ctx: ctx}); n != 0 {
		t.Fatalf("rejected interactions must not append events: got=%d", n)
	}
}

func TestOnInteractionQueuedThenFolded(t *testing.T) {
	f := newProfileFixture(t, ProfileModeQueued)
	ctx := context.Background()

	folded, err := f.svc.OnInteraction(ctx, f.viewer.ID, f.post.ID, "like")
	if err != nil || folded {
		t.Fatalf("OnInteraction: folded=%v err=%v", folded, err)
	}
	view, err := f.svc.GetProfile(ctx, f.viewer.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if view.Profile.InteractionCount != 0 {
		t.Fatalf("queued mode should not fold before the folder runs: %+v", view.Profile)
	}

	n, err := f.svc.FoldPending(ctx, f.viewer.ID)
	if err != nil || n != 1 {
		t.Fatalf("FoldPending: n=%d err=%v", n, err)
	}
	view, err = f.svc.GetProfile(ctx, f.viewer.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	want := []string{"gaming", "csgo", "fps"}
	if len(view.Profile.LikedTopics) != len(want) {
		t.Fatalf("likedTopics: got=%v want=%v", view.Profile.LikedTopics, want)
	}
	for i := range want {
		if view.Profile.LikedTopics[i] != want[i] {
			t.Fatalf("likedTopics: got=%v want=%v", view.Profile.LikedTopics, want)
		}
	}
	if len(view.Profile.LikedUsers) != 1 || view.Profile.LikedUsers[0] != strconv.FormatInt(f.author.ID, 10) {
		t.Fatalf("likedUsers: got=%v", view.Profile.LikedUsers)
	}
	if n, _ := f.svc.FoldPending(ctx, f.viewer.ID); n != 0 {
		t.Fatalf("second fold should find nothing: got=%d", n)
	}
}

func TestOnInteractionInlineReply(t *testing.T) {
	f := newProfileFixture(t, ProfileModeInline)
	ctx := context.Background()

	folded, err := f.svc.OnInteraction(ctx, f.viewer.ID, f.post.ID, "reply")
	if err != nil || !folded {
		t.Fatalf("OnInteraction: folded=%v err=%v", folded, err)
	}
	view, err := f.svc.GetProfile(ctx, f.viewer.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got := view.Profile.TopicWeights["gaming"]; math.Abs(got-0.18) > 1e-9 {
		t.Fatalf("gaming weight: got=%v want=0.18", got)
	}
	if got := view.EffectiveWeights["fps"]; math.Abs(got-0.1) > 1e-9 {
		t.Fatalf("fps effective weight: got=%v want=0.1", got)
	}
	if view.Profile.InteractionCount != 1 || len(view.Profile.LikedTopics) != 0 {
		t.Fatalf("reply must not touch likedTopics: %+v", view.Profile)
	}
}

func TestGetProfileAppliesDecay(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	users := social.NewUserRepo(db, log)
	svc := NewInterestProfileService(db, log, InterestProfileConfig{DecayHalfLife: time.Hour},
		users, social.NewPostRepo(db, log), interactions.NewInteractionRepo(db, log), nil).(*interestProfileService)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	u := testutil.SeedUser(t, db, "decay")
	raw := []byte(`{"interactionCount":1,"topicWeights":{"gaming":0.8},"topicTouchedAt":{"gaming":"2026-05-01T10:00:00Z"}}`)
	if err := users.SaveProfile(dbctx.Context{}, u.ID, raw); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	view, err := svc.GetProfile(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got := view.EffectiveWeights["gaming"]; math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("two half-lives: got=%v want=0.2", got)
	}
	if view.Profile.TopicWeights["gaming"] != 0.8 {
		t.Fatalf("stored weight changed: %v", view.Profile.TopicWeights)
	}
}

func TestExtractHashtags(t *testing.T) {
	got := ExtractHashtags("gg #CSGO then #fps and #csgo again, #")
	if len(got) != 2 || got[0] != "csgo" || got[1] != "fps" {
		t.Fatalf("ExtractHashtags: got=%v", got)
	}
}
