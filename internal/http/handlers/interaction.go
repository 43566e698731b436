package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/socialfeed-backend/internal/domain/profile"
	"github.com/yungbote/socialfeed-backend/internal/http/response"
	"github.com/yungbote/socialfeed-backend/internal/services"
)

type InteractionHandler struct {
	profiles services.InterestProfileService
}

func NewInteractionHandler(profiles services.InterestProfileService) *InteractionHandler {
	return &InteractionHandler{profiles: profiles}
}

type interactionRequest struct {
	UserID json.Number `json:"user_id"`
	PostID json.Number `json:"post_id"`
	Type   string      `json:"type"`
}

// POST /api/interactions
func (h *InteractionHandler) Record(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	postID, ok := parseID(req.PostID.String())
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", errors.New("post_id is required"))
		return
	}
	h.record(c, req.UserID.String(), postID, req.Type)
}

func (h *InteractionHandler) View(c *gin.Context)  { h.shortcut(c, profile.InteractionView) }
func (h *InteractionHandler) Like(c *gin.Context)  { h.shortcut(c, profile.InteractionLike) }
func (h *InteractionHandler) Reply(c *gin.Context) { h.shortcut(c, profile.InteractionReply) }

// POST /api/posts/:id/{view,like,reply}. The user id comes from the token,
// the body, or the user_id query parameter.
func (h *InteractionHandler) shortcut(c *gin.Context, kind string) {
	postID, ok := parseID(c.Param("id"))
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", errors.New("invalid post id"))
		return
	}
	var body struct {
		UserID json.Number `json:"user_id"`
	}
	_ = c.ShouldBindJSON(&body)
	supplied := body.UserID.String()
	if supplied == "" {
		supplied = c.Query("user_id")
	}
	h.record(c, supplied, postID, kind)
}

func (h *InteractionHandler) record(c *gin.Context, suppliedUser string, postID int64, kind string) {
	userID, ok := viewerID(c, suppliedUser)
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "missing_user_id", errors.New("user_id is required"))
		return
	}
	folded, err := h.profiles.OnInteraction(c.Request.Context(), userID, postID, kind)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if folded {
		c.JSON(http.StatusOK, gin.H{"status": "applied"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// GET /api/users/:id/interest-profile
func (h *InteractionHandler) GetProfile(c *gin.Context) {
	userID, ok := parseID(c.Param("id"))
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", errors.New("invalid user id: "+strconv.Quote(c.Param("id"))))
		return
	}
	view, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, view)
}
