package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an id, reusing a well formed incoming one,
// and stores a logger carrying it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Set("RequestID", id)
		c.Set("Logger", slog.With("request_id", id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
