package routes

import (
	"github.com/gin-gonic/gin"
)

// RequireHost lets only privileged callers through. Others are redirected to
// the dashboard without a notice, the same as a no-op, so the response does
// not reveal where the boundary is. JSON clients get 403.
func RequireHost() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := services(c)
		if err := s.Policy.Authorize(c.ClientIP()); err != nil {
			requestLogger(c).Warn("Host only action rejected",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP())

			if wantsJSON(c) {
				AbortWithError(c, err)
				return
			}
			redirectHome(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
