package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/socialfeed-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if application.Cfg.WorkersEnabled {
		if err := application.StartWorkers(ctx); err != nil {
			application.Log.Error("Failed to start workers", "error", err)
			stop()
			return
		}
	} else {
		application.Log.Info("WORKERS_ENABLED=false; serving API only")
	}

	if err := application.Run(ctx, ":"+application.Cfg.Port); err != nil {
		application.Log.Error("Server failed", "error", err)
	}
	stop()
}
