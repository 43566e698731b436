package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/socialfeed-backend/internal/pkg/ctxutil"
)

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// viewerID prefers the bearer token subject over the supplied user id.
func viewerID(c *gin.Context, supplied string) (int64, bool) {
	if id, ok := ctxutil.ViewerID(c.Request.Context()); ok {
		return id, true
	}
	return parseID(supplied)
}
