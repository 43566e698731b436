package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/socialfeed-backend/internal/http/response"
	"github.com/yungbote/socialfeed-backend/internal/services"
)

type AdminHandler struct {
	queue services.QueueAdminService
	sync  services.RankingSyncService
}

func NewAdminHandler(queue services.QueueAdminService, sync services.RankingSyncService) *AdminHandler {
	return &AdminHandler{queue: queue, sync: sync}
}

// GET /api/admin/queue
func (h *AdminHandler) Queue(c *gin.Context) {
	q, err := h.queue.Queue(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"queue": q, "total": len(q)})
}

// GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	st, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, st)
}

// GET /api/admin/themes?limit=
func (h *AdminHandler) Themes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	stats, err := h.queue.Themes(c.Request.Context(), limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"themes": stats})
}

// POST /api/admin/users/:id/trigger
func (h *AdminHandler) TriggerUser(c *gin.Context) {
	userID, ok := parseID(c.Param("id"))
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", errors.New("invalid user id"))
		return
	}
	res, err := h.queue.TriggerUser(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/admin/posts/:id/enqueue
func (h *AdminHandler) EnqueuePost(c *gin.Context) {
	postID, ok := parseID(c.Param("id"))
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", errors.New("invalid post id"))
		return
	}
	res, err := h.queue.EnqueuePost(c.Request.Context(), postID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/admin/posts/reanalyze-all
func (h *AdminHandler) ReanalyzeAll(c *gin.Context) {
	res, err := h.queue.ReanalyzeAll(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/admin/queue/clear-failed
func (h *AdminHandler) ClearFailed(c *gin.Context) {
	res, err := h.queue.ClearFailed(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/admin/queue/requeue-failed
func (h *AdminHandler) RequeueFailed(c *gin.Context) {
	res, err := h.queue.RequeueFailed(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/admin/sync-posts?limit=
func (h *AdminHandler) SyncPosts(c *gin.Context) {
	if h.sync == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "ranking_disabled", errors.New("ranking service not configured"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	res, err := h.sync.SyncRecent(c.Request.Context(), limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}
