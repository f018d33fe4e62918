package app

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"strings"

	. "device-reservation/internal/config"

	routes "device-reservation/internal/routes"
	"device-reservation/web"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
)

func securityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "same-origin")

	// Disable caching
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Next()
}

// Middleware to check if the IP is allowed.
func IPAccessControl(allowedCIDRs []string) gin.HandlerFunc {
	var parsedCIDRs []*net.IPNet

	// Allow local networks in debug mode
	if os.Getenv("GIN_MODE") != "release" {
		localhostCIDRs := []string{"127.0.0.1/8", "::1/128"}
		allowedCIDRs = append(allowedCIDRs, localhostCIDRs...)
	}

	for _, cidr := range allowedCIDRs {
		_, net, err := net.ParseCIDR(cidr)
		if err != nil {
			slog.Warn("Invalid CIDR", "cidr", cidr)
			continue
		}
		slog.Debug("Allowed CIDR", "cidr", cidr)
		parsedCIDRs = append(parsedCIDRs, net)
	}

	return func(c *gin.Context) {
		clientIP := net.ParseIP(c.ClientIP())
		if clientIP == nil {
			// Should not happen
			slog.Warn("Invalid client IP", "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}

		for _, cidr := range parsedCIDRs {
			if cidr.Contains(clientIP) {
				c.Next()
				return
			}
		}
		slog.Warn("IP not allowed", "ip", clientIP)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	}
}

// Renderer builds one template set per page, each rooted at the shared layout.
func Renderer(fsys fs.FS) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	pages, err := fs.Glob(fsys, "templates/*.html.tmpl")
	if err != nil {
		return nil, err
	}
	for _, page := range pages {
		if page == web.Layout {
			continue
		}
		tmpl, err := template.New(path.Base(web.Layout)).
			Funcs(routes.TemplateFuncs()).
			ParseFS(fsys, web.Layout, page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.Add(path.Base(page), tmpl)
	}
	return r, nil
}

func parseNetworks(list string) []string {
	var cidrs []string
	for cidr := range strings.SplitSeq(list, ",") {
		// Remove spaces and ignore empty sets
		if cidr := strings.TrimSpace(cidr); cidr != "" {
			cidrs = append(cidrs, cidr)
		}
	}
	return cidrs
}

// HTTPServer wires middleware, templates and routes around services.
func HTTPServer(services *routes.Services) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	var proxies []string
	if Cfg != nil {
		proxies = Cfg.TrustedProxies
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	renderer, err := Renderer(web.Templates)
	if err != nil {
		return nil, err
	}
	r.HTMLRender = renderer

	if Cfg != nil && Cfg.AllowedNetworks != "" {
		slog.Debug("Enabling IP access control", "allowed_networks", Cfg.AllowedNetworks)
		r.Use(IPAccessControl(parseNetworks(Cfg.AllowedNetworks)))
	}
	r.Use(securityHeaders, requestLog, routes.Inject(services))

	routes.RegisterRoutes(r)
	return r, nil
}

// requestLog replaces gin's text logger with slog.
func requestLog(c *gin.Context) {
	c.Next()
	slog.Debug("Request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"client_ip", c.ClientIP(),
		"request_id", c.GetString("RequestID"),
	)
}
