package routes

import (
	"fmt"
	"net/http"

	"device-reservation/internal/ledger"
	"device-reservation/internal/reservation"
	"device-reservation/internal/storage"

	"github.com/gin-gonic/gin"
)

func Export(r *gin.RouterGroup) {
	// Optional start_date and end_date bound the calendar date of the start
	// time, both inclusive.
	r.GET("/download_logs", func(c *gin.Context) {
		s := services(c)
		loc := s.Engine.Location()

		start, err := reservation.ParseDate(c.Query("start_date"), loc)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		end, err := reservation.ParseDate(c.Query("end_date"), loc)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		dr := storage.DateRange{Start: start, End: end}

		data, err := s.Ledger.ExportBytes(c.Request.Context(), dr)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ledger.ExportFilename(dr)))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
	})
}
