package middleware

import (
	"strings"

	"sitepulse/api/config"
	"sitepulse/api/response"
	"sitepulse/api/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DashboardGuard protects dashboard reads when a secret or key hash is
// configured. Requests pass with an X-API-KEY matching the bcrypt hash or a
// bearer token signed with the JWT secret.
func DashboardGuard(cfg config.DashboardConfig, log *zap.Logger) gin.HandlerFunc {
	if !cfg.Guarded() {
		return func(c *gin.Context) { c.Next() }
	}
	secret := []byte(cfg.JWTSecret)

	return func(c *gin.Context) {
		if key := c.GetHeader("X-API-KEY"); key != "" && utils.CheckAPIKey(cfg.APIKeyHash, key) {
			c.Set("dashboard_client", "api-key")
			c.Next()
			return
		}

		tokenString := strings.TrimSpace(c.GetHeader("Authorization"))
		tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
		if tokenString == "" || len(secret) == 0 {
			log.Debug("dashboard guard: no credentials", zap.String("path", c.Request.URL.Path))
			response.Unauthorized(c)
			return
		}

		claims, err := utils.ValidateDashboardToken(secret, tokenString)
		if err != nil {
			log.Info("dashboard guard: invalid token", zap.Error(err))
			response.Unauthorized(c)
			return
		}

		c.Set("dashboard_client", claims.Name)
		c.Next()
	}
}
