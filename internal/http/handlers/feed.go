package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/socialfeed-backend/internal/http/response"
	"github.com/yungbote/socialfeed-backend/internal/services"
)

type FeedHandler struct {
	feed services.FeedService
}

func NewFeedHandler(feed services.FeedService) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// GET /api/feed/recommended?user_id=&cursor=&limit=
func (h *FeedHandler) Recommended(c *gin.Context) {
	userID, ok := viewerID(c, c.Query("user_id"))
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "missing_user_id", errors.New("user_id is required"))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	page, err := h.feed.Assemble(c.Request.Context(), userID, c.Query("cursor"), limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, page)
}
