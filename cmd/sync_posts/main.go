package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yungbote/socialfeed-backend/internal/app"
	"github.com/yungbote/socialfeed-backend/internal/pkg/dbctx"
	"github.com/yungbote/socialfeed-backend/internal/services"
)

func main() {
	var limit int
	var dryRun bool
	flag.IntVar(&limit, "limit", services.MaxSyncPosts, "number of most recent posts to push")
	flag.BoolVar(&dryRun, "dry-run", false, "print the posts that would be pushed without calling the ranking service")
	flag.Parse()

	ctx := context.Background()
	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if dryRun {
		posts, err := application.Repos.Post.ListRecent(dbctx.Context{Ctx: ctx}, limit)
		if err != nil {
			fmt.Printf("list posts: %v\n", err)
			os.Exit(1)
		}
		for _, p := range posts {
			fmt.Printf("post %d author=%d themes=%s\n", p.ID, p.UserID, string(p.Themes))
		}
		fmt.Printf("dry_run=true posts=%d\n", len(posts))
		return
	}

	if application.Services.RankingSync == nil {
		fmt.Println("FEED_ALGORITHM_API_URL is not set")
		os.Exit(1)
	}
	res, err := application.Services.RankingSync.SyncRecent(ctx, limit)
	if err != nil {
		fmt.Printf("sync posts: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("total=%d synced=%d failed=%d\n", res.Total, res.Synced, res.Failed)
	if res.Failed > 0 {
		os.Exit(2)
	}
}
