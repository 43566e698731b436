package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/socialfeed-backend/internal/http/handlers"
	httpMW "github.com/yungbote/socialfeed-backend/internal/http/middleware"
	"github.com/yungbote/socialfeed-backend/internal/observability"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics
	TracingOn   bool

	ViewerAuth *httpMW.ViewerAuth
	AdminAuth  httpMW.AdminAuthConfig

	FeedHandler        *httpH.FeedHandler
	InteractionHandler *httpH.InteractionHandler
	AdminHandler       *httpH.AdminHandler
	HealthHandler      *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingOn {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.ViewerAuth != nil {
		api.Use(cfg.ViewerAuth.Attach())
	}

	// Feed
	if cfg.FeedHandler != nil {
		api.GET("/feed/recommended", cfg.FeedHandler.Recommended)
	}

	// Interactions / profiles
	if cfg.InteractionHandler != nil {
		api.POST("/interactions", cfg.InteractionHandler.Record)
		api.POST("/posts/:id/view", cfg.InteractionHandler.View)
		api.POST("/posts/:id/like", cfg.InteractionHandler.Like)
		api.POST("/posts/:id/reply", cfg.InteractionHandler.Reply)
		api.GET("/users/:id/interest-profile", cfg.InteractionHandler.GetProfile)
	}

	// Operator surface
	if cfg.AdminHandler != nil {
		admin := api.Group("/admin")
		admin.Use(httpMW.AdminBasicAuth(cfg.Log, cfg.AdminAuth))
		admin.GET("/queue", cfg.AdminHandler.Queue)
		admin.GET("/stats", cfg.AdminHandler.Stats)
		admin.GET("/themes", cfg.AdminHandler.Themes)
		admin.POST("/users/:id/trigger", cfg.AdminHandler.TriggerUser)
		admin.POST("/posts/:id/enqueue", cfg.AdminHandler.EnqueuePost)
		admin.POST("/posts/reanalyze-all", cfg.AdminHandler.ReanalyzeAll)
		admin.POST("/queue/clear-failed", cfg.AdminHandler.ClearFailed)
		admin.POST("/queue/requeue-failed", cfg.AdminHandler.RequeueFailed)
		admin.POST("/sync-posts", cfg.AdminHandler.SyncPosts)
	}

	return r
}
