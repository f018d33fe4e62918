package routes

import (
	"log/slog"

	"device-reservation/internal/access"
	"device-reservation/internal/ledger"
	"device-reservation/internal/reservation"
	"device-reservation/internal/utils"

	"github.com/gin-gonic/gin"
)

// Services are shared by all handlers. Inject stores them on the context.
type Services struct {
	Engine *reservation.Engine
	Ledger *ledger.Ledger
	Policy *access.HostPolicy

	BaseURL      string
	HistoryLimit int
	RefreshMS    int
}

func Inject(s *Services) gin.HandlerFunc {
	if s.BaseURL == "" {
		s.BaseURL = "/"
	}
	return func(c *gin.Context) {
		c.Set("Services", s)
		c.Set("BaseURL", s.BaseURL)
		c.Set("IsHost", s.Policy.IsPrivileged(c.ClientIP()))
		c.Next()
	}
}

func services(c *gin.Context) *Services {
	return c.MustGet("Services").(*Services)
}

func BaseURL(c *gin.Context) string {
	if v, ok := c.Get("BaseURL"); ok {
		return v.(string)
	}
	return "/"
}

func IsHost(c *gin.Context) bool {
	return c.GetBool("IsHost")
}

// Merge into existing gin.H
func H(c *gin.Context, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["BaseURL"] = BaseURL(c)
	data["AppVersion"] = utils.GetVersion()
	data["IsHost"] = IsHost(c)
	data["RequestID"] = c.GetString("RequestID")
	return data
}

// Returns a HTML response with merged data
func HTML(c *gin.Context, code int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data = H(c, data)
	c.HTML(code, name, data)
}

func requestLogger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get("Logger"); ok {
		return v.(*slog.Logger)
	}
	return slog.Default()
}

// RegisterRoutes mounts every handler. The caller has installed Inject.
func RegisterRoutes(r *gin.Engine) {
	r.Use(RequestID(), ErrorHandler())

	Health(r.Group("/"))
	Dashboard(r.Group("/"))
	Reservations(r.Group("/"))
	Export(r.Group("/"))
	QRCode(r.Group("/"))

	admin := r.Group("/")
	admin.Use(RequireHost())
	Admin(admin)
}
