package routes

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type lockForm struct {
	User string `form:"user" json:"user"`
	ETA  string `form:"eta" json:"eta"`
}

type nameForm struct {
	Name string `form:"name" json:"name"`
}

func deviceIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDeviceID, c.Param("id"))
	}
	return id, nil
}

// done finishes a successful mutation: JSON clients get the payload, browsers
// go back to the dashboard.
func done(c *gin.Context, notice string, payload gin.H) {
	if wantsJSON(c) {
		if payload == nil {
			payload = gin.H{}
		}
		payload["success"] = true
		payload["status"] = "ok"
		c.JSON(http.StatusOK, payload)
		return
	}
	redirectHome(c, notice)
}

func Reservations(r *gin.RouterGroup) {
	r.POST("/lock/:id", func(c *gin.Context) {
		id, err := deviceIDParam(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		var form lockForm
		if err := c.ShouldBind(&form); err != nil {
			AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
			return
		}

		if err := services(c).Engine.Lock(c.Request.Context(), id, form.User, form.ETA); err != nil {
			AbortWithError(c, err)
			return
		}
		done(c, "LOCKED", gin.H{"device_id": id})
	})

	r.POST("/unlock/:id", func(c *gin.Context) {
		id, err := deviceIDParam(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		changed, err := services(c).Engine.Unlock(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		notice := "UNLOCKED"
		if !changed {
			notice = ""
		}
		done(c, notice, gin.H{"device_id": id, "changed": changed})
	})

	r.POST("/add", func(c *gin.Context) {
		var form nameForm
		if err := c.ShouldBind(&form); err != nil {
			AbortWithError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
			return
		}

		id, err := services(c).Engine.Add(c.Request.Context(), form.Name)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		done(c, "ADDED", gin.H{"device_id": id})
	})
}
