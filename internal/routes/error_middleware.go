package routes

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

type errorStruct struct {
	Succeed bool     `json:"success"`
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Code    []string `json:"code,omitempty"`
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// ErrorHandler captures errors and returns a consistent response. JSON
// clients get errorStruct. Rejected browser form posts are redirected back to
// the dashboard with the stop code as notice, other failures render the error
// page.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Process the request first

		if len(c.Errors) == 0 {
			return
		}

		// Use the last error (most recent)
		err := c.Errors.Last().Err

		statusCode := GetErrorStatus(err)
		errorInfo := GetErrorInfo(err)

		logger := requestLogger(c)
		if statusCode >= 500 {
			logger.Error("Request failed with server error",
				"error", err,
				"status", statusCode,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		} else if statusCode >= 400 {
			logger.Warn("Request failed with client error",
				"error", err,
				"status", statusCode,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
		}

		// Only send the response if it hasn't been written yet
		if c.Writer.Written() {
			return
		}

		// Collect all the stop codes from all wrapped errors
		var stopCodes []string
		for _, _err := range c.Errors {
			stopCodes = append(stopCodes, GetErrorInfo(_err.Err).StopCodes...)
		}

		response := errorStruct{
			Succeed: false,
			Status:  "error",
			Message: errorInfo.Message,
			Code:    stopCodes,
		}

		switch {
		case wantsJSON(c):
			c.AbortWithStatusJSON(statusCode, response)
		case c.Request.Method == http.MethodPost && statusCode < 500:
			redirectHome(c, errorInfo.StopCodes...)
			c.Abort()
		default:
			slog.Debug("Returning error page HTML", "code", statusCode, "message", errorInfo.Message)
			HTML(c, statusCode, "error.html.tmpl", gin.H{"Error": response})
			c.Abort()
		}
	}
}

// redirectHome sends the browser back to the dashboard. The first code, if
// any, is shown there as a notice.
func redirectHome(c *gin.Context, codes ...string) {
	target := BaseURL(c)
	if len(codes) > 0 && codes[0] != "" {
		target += "?" + url.Values{"notice": {codes[0]}}.Encode()
	}
	c.Redirect(http.StatusSeeOther, target)
}

// AbortWithError is a helper function to abort the request with an error
// and add it to the Gin error chain for the ErrorHandler middleware
func AbortWithError(c *gin.Context, err error) {
	statusCode := GetErrorStatus(err)
	c.Error(err)
	c.Abort()
	// Set the status code so gin knows not to send 200
	c.Status(statusCode)
}

// AbortWithHTTPError is a helper to abort with a custom HTTPError
func AbortWithHTTPError(c *gin.Context, statusCode int, err error, message string, stopCodes ...string) {
	httpErr := NewHTTPError(statusCode, err, message, stopCodes...)
	c.Error(httpErr)
	c.Abort()
	c.Status(statusCode)
}
