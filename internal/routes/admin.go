package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// Admin mounts the host only device management routes. The group must be
// guarded by RequireHost.
func Admin(r *gin.RouterGroup) {
	r.POST("/edit/:id", func(c *gin.Context) {
		id, err := deviceIDParam(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		var form nameForm
		if err := c.ShouldBind(&form); err != nil {
			AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
			return
		}

		if err := services(c).Engine.Rename(c.Request.Context(), id, form.Name); err != nil {
			AbortWithError(c, err)
			return
		}
		done(c, "RENAMED", gin.H{"device_id": id})
	})

	r.POST("/delete/:id", func(c *gin.Context) {
		id, err := deviceIDParam(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if err := services(c).Engine.Delete(c.Request.Context(), id); err != nil {
			AbortWithError(c, err)
			return
		}
		done(c, "DELETED", gin.H{"device_id": id})
	})

	r.POST("/recover", func(c *gin.Context) {
		created, err := services(c).Engine.Recover(c.Request.Context())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if created == nil {
			created = []int64{}
		}
		done(c, "RECOVERED", gin.H{"created": created})
	})
}
