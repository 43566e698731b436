package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/socialfeed-backend/internal/pkg/ctxutil"
	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

// ViewerAuth attaches the bearer token subject as the viewer id. Requests
// without a token pass through untouched; a bad token is rejected.
type ViewerAuth struct {
	log    *logger.Logger
	secret []byte
}

func NewViewerAuth(log *logger.Logger, secret string) *ViewerAuth {
	return &ViewerAuth{log: log.With("Middleware", "ViewerAuth"), secret: []byte(secret)}
}

func (va *ViewerAuth) Attach() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearer(c)
		if tokenString == "" || len(va.secret) == 0 {
			c.Next()
			return
		}
		viewerID, err := va.parse(tokenString)
		if err != nil {
			va.log.Debug("Rejected bearer token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithViewerID(c.Request.Context(), viewerID))
		c.Next()
	}
}

func (va *ViewerAuth) parse(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return va.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("token subject is not a user id")
	}
	return id, nil
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
