package app

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/yungbote/socialfeed-backend/internal/data/db"
	apihttp "github.com/yungbote/socialfeed-backend/internal/http"
	httpMW "github.com/yungbote/socialfeed-backend/internal/http/middleware"
	"github.com/yungbote/socialfeed-backend/internal/observability"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
	"github.com/yungbote/socialfeed-backend/internal/queue"
	"github.com/yungbote/socialfeed-backend/internal/services"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *db.PostgresService
	Repos    Repos
	Clients  Clients
	Queue    queue.Store
	Services Services
	Metrics  *observability.Metrics
	Server   *apihttp.Server

	queueProvider queueProvider
	otelShutdown  func(context.Context) error
	workers       sync.WaitGroup
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.ServiceVersion,
		Endpoint:    cfg.OtelEndpoint,
		Headers:     cfg.OtelHeaders,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})
	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.Init()
	}

	pg, err := db.NewPostgresService(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}
	qp, err := resolveQueueStore(log, cfg, pg.DB(), clients.Storage)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(pg.DB(), log)
	serviceset := wireServices(pg.DB(), log, cfg, reposet, clients, qp.Store, metrics)
	handlerset := wireHandlers(serviceset, pg.Ping)

	server := apihttp.NewServer(apihttp.RouterConfig{
		Log:         log,
		ServiceName: cfg.ServiceName,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     metrics,
		TracingOn:   cfg.OtelEnabled,
		ViewerAuth:  httpMW.NewViewerAuth(log, cfg.JWTSecretKey),
		AdminAuth: httpMW.AdminAuthConfig{
			User:         cfg.DashboardUser,
			PasswordHash: cfg.DashboardPasswordHash,
			Password:     cfg.DashboardPassword,
		},
		FeedHandler:        handlerset.Feed,
		InteractionHandler: handlerset.Interaction,
		AdminHandler:       handlerset.Admin,
		HealthHandler:      handlerset.Health,
	})
	if cfg.DashboardUser == "" {
		log.Warn("LLM_DASHBOARD_USER not set; admin routes are unauthenticated")
	}

	return &App{
		Log:           log,
		Cfg:           cfg,
		DB:            pg,
		Repos:         reposet,
		Clients:       clients,
		Queue:         qp.Store,
		Services:      serviceset,
		Metrics:       metrics,
		Server:        server,
		queueProvider: qp,
		otelShutdown:  otelShutdown,
	}, nil
}

// StartWorkers launches the job processor, the profile folder (queued mode
// only) and the ranking sync schedule. They stop when ctx is cancelled.
func (a *App) StartWorkers(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		if err := a.Services.Processor.Run(ctx); err != nil && ctx.Err() == nil {
			a.Log.Error("Job processor exited", "error", err)
		}
	}()
	if a.Cfg.ProfileUpdateMode == services.ProfileModeQueued {
		a.workers.Add(1)
		go func() {
			defer a.workers.Done()
			a.Services.Folder.Run(ctx)
		}()
	}
	if a.Services.RankingSync != nil {
		if err := a.Services.RankingSync.Schedule(ctx, a.Cfg.RankingSyncCron); err != nil {
			return err
		}
	}
	return nil
}

// Run serves the HTTP API until ctx is cancelled.
func (a *App) Run(ctx context.Context, addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "addr", addr)
	return a.Server.Run(ctx, addr)
}

// Close waits for workers started with StartWorkers; cancel their context first.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.workers.Wait()
	a.queueProvider.Close()
	a.Clients.Close()
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("OpenTelemetry shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
