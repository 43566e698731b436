package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/socialfeed-backend/internal/pkg/logger"
)

type AdminAuthConfig struct {
	User string
	// PasswordHash is a bcrypt hash. When set, Password is ignored.
	PasswordHash string
	Password     string
}

// AdminBasicAuth guards the operator routes. An empty User disables it.
func AdminBasicAuth(log *logger.Logger, cfg AdminAuthConfig) gin.HandlerFunc {
	if cfg.User == "" {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.With("Middleware", "AdminBasicAuth")
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok || !checkAdmin(cfg, user, pass) {
			if ok {
				log.Warn("Admin auth failed", "path", c.FullPath())
			}
			c.Header("WWW-Authenticate", `Basic realm="socialfeed-admin"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "admin credentials required", "code": "unauthorized"},
			})
			return
		}
		c.Next()
	}
}

func checkAdmin(cfg AdminAuthConfig, user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.User)) == 1
	var passOK bool
	if cfg.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(pass)) == nil
	} else {
		passOK = cfg.Password != "" && subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Password)) == 1
	}
	return userOK && passOK
}
