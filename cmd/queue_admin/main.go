package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/yungbote/socialfeed-backend/internal/app"
)

type idList []int64

func (l *idList) String() string {
	parts := make([]string, 0, len(*l))
	for _, id := range *l {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid post id %q", v)
	}
	*l = append(*l, id)
	return nil
}

func main() {
	var posts idList
	var clearFailed, requeueFailed, reanalyzeAll, printQueue bool
	var triggerUser int64
	flag.Var(&posts, "enqueue-post", "post id to enqueue (repeatable)")
	flag.Int64Var(&triggerUser, "trigger-user", 0, "enqueue the recent posts of this user")
	flag.BoolVar(&clearFailed, "clear-failed", false, "remove failed jobs")
	flag.BoolVar(&requeueFailed, "requeue-failed", false, "reset failed jobs to pending")
	flag.BoolVar(&reanalyzeAll, "reanalyze-all", false, "enqueue every post with content")
	flag.BoolVar(&printQueue, "print", false, "print queue stats and jobs")
	flag.Parse()

	ctx := context.Background()
	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()
	admin := application.Services.QueueAdmin

	fail := func(what string, err error) {
		fmt.Printf("%s: %v\n", what, err)
		application.Close()
		os.Exit(1)
	}

	if clearFailed {
		res, err := admin.ClearFailed(ctx)
		if err != nil {
			fail("clear failed", err)
		}
		fmt.Printf("removed=%d remaining=%d\n", res.Removed, res.Remaining)
	}
	if requeueFailed {
		res, err := admin.RequeueFailed(ctx)
		if err != nil {
			fail("requeue failed", err)
		}
		fmt.Printf("requeued=%d\n", res.Requeued)
	}
	for _, id := range posts {
		res, err := admin.EnqueuePost(ctx, id)
		if err != nil {
			fail(fmt.Sprintf("enqueue post %d", id), err)
		}
		fmt.Printf("post=%d job=%s already_queued=%t\n", res.PostID, res.JobID, res.AlreadyQueued)
	}
	if triggerUser > 0 {
		res, err := admin.TriggerUser(ctx, triggerUser)
		if err != nil {
			fail("trigger user", err)
		}
		fmt.Printf("user=%d added=%d skipped=%d\n", res.UserID, res.Added, res.Skipped)
	}
	if reanalyzeAll {
		res, err := admin.ReanalyzeAll(ctx)
		if err != nil {
			fail("reanalyze all", err)
		}
		fmt.Println(res.Message)
	}
	if printQueue {
		stats, err := admin.Stats(ctx)
		if err != nil {
			fail("stats", err)
		}
		q, err := admin.Queue(ctx)
		if err != nil {
			fail("queue", err)
		}
		out, err := json.MarshalIndent(map[string]interface{}{"stats": stats, "queue": q}, "", "  ")
		if err != nil {
			fail("encode", err)
		}
		fmt.Println(string(out))
	}
}
