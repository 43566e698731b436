package interactions

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/socialfeed-backend/internal/domain/profile"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/testutil"
)

func TestInteractionRepoPendingLifecycle(t *testing.T) {
	db := testutil.DB(t)
	repo := NewInteractionRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	for _, ev := range []*profile.InteractionEvent{
		{UserID: 2, PostID: 10, AuthorID: 5, Type: profile.InteractionLike},
		{UserID: 1, PostID: 11, AuthorID: 5, Type: profile.InteractionReply},
		{UserID: 2, PostID: 12, AuthorID: 6, Type: profile.InteractionView},
	} {
		if err := repo.Append(dbc, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	users, err := repo.ListUsersWithPending(dbc, 0, 10)
	if err != nil {
		t.Fatalf("ListUsersWithPending: %v", err)
	}
	if len(users) != 2 || users[0] != 1 || users[1] != 2 {
		t.Fatalf("users: got=%v want=[1 2]", users)
	}

	pending, err := repo.ListPending(dbc, 2)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 || pending[0].PostID != 10 || pending[1].PostID != 12 {
		t.Fatalf("pending order: %+v", pending)
	}

	if err := repo.MarkFolded(dbc, []int64{pending[0].ID, pending[1].ID}, time.Now()); err != nil {
		t.Fatalf("MarkFolded: %v", err)
	}
	n, err := repo.CountPending(dbc)
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if n != 1 {
		t.Fatalf("CountPending: got=%d want=1", n)
	}
}

func TestListUsersWithPendingResumesAfterCursor(t *testing.T) {
	db := testutil.DB(t)
	repo := NewInteractionRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	for _, uid := range []int64{3, 1, 2, 4} {
		if err := repo.Append(dbc, &profile.InteractionEvent{UserID: uid, PostID: 1, Type: profile.InteractionLike}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	users, err := repo.ListUsersWithPending(dbc, 2, 10)
	if err != nil {
		t.Fatalf("ListUsersWithPending: %v", err)
	}
	if len(users) != 2 || users[0] != 3 || users[1] != 4 {
		t.Fatalf("users after 2: got=%v want=[3 4]", users)
	}
}

func TestDiscardPendingRetiresOnlyThatUser(t *testing.T) {
	db := testutil.DB(t)
	repo := NewInteractionRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	for _, uid := range []int64{1, 1, 2} {
		if err := repo.Append(dbc, &profile.InteractionEvent{UserID: uid, PostID: 1, Type: profile.InteractionLike}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	n, err := repo.DiscardPending(dbc, 1, "user not found", time.Now())
	if err != nil {
		t.Fatalf("DiscardPending: %v", err)
	}
	if n != 2 {
		t.Fatalf("discarded: got=%d want=2", n)
	}
	var ev profile.InteractionEvent
	if err := db.Where("user_id = ?", 1).First(&ev).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if ev.FoldedAt == nil || ev.DiscardReason != "user not found" {
		t.Fatalf("discarded event: %+v", ev)
	}
	users, _ := repo.ListUsersWithPending(dbc, 0, 10)
	if len(users) != 1 || users[0] != 2 {
		t.Fatalf("pending users: got=%v want=[2]", users)
	}
}
