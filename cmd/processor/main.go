package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/socialfeed-backend/internal/app"
	apihttp "github.com/yungbote/socialfeed-backend/internal/http"
	httpH "github.com/yungbote/socialfeed-backend/internal/http/handlers"
)

// Runs the classification workers without the public API. Health and
// metrics are still served on PORT.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := application.StartWorkers(ctx); err != nil {
		application.Log.Error("Failed to start workers", "error", err)
		stop()
		return
	}

	server := apihttp.NewServer(apihttp.RouterConfig{
		Log:           application.Log,
		ServiceName:   application.Cfg.ServiceName + "-processor",
		Metrics:       application.Metrics,
		HealthHandler: httpH.NewHealthHandler(application.DB.Ping),
	})
	application.Log.Info("Processor health server listening", "port", application.Cfg.Port)
	if err := server.Run(ctx, ":"+application.Cfg.Port); err != nil {
		application.Log.Error("Health server failed", "error", err)
	}
	stop()
}
