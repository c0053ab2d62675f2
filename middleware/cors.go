// api/middleware/cors.go
package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware restricts dashboard routes to the configured origins while
// paths under any of publicPrefixes accept every origin, since the tracking
// script runs on customer sites.
func CORSMiddleware(origins []string, publicPrefixes ...string) gin.HandlerFunc {
	dashboardCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "X-API-KEY", "Cache-Control", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		dashboardCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		dashboardCfg.AllowOrigins = origins
	}
	dashboard := cors.New(dashboardCfg)

	public := cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	})

	return func(c *gin.Context) {
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				public(c)
				return
			}
		}
		dashboard(c)
	}
}
