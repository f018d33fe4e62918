package utils

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// Helper function to generate a URL for a given path
func UrlFor(c *gin.Context, path string) string {
	// Already absolute
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}

	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	// Check for "/" prefix in path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, path)
}
