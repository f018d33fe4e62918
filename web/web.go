// Package web holds the embedded HTML templates.
package web

import "embed"

//go:embed templates/*.tmpl
var Templates embed.FS

// Layout is the root of every page. Pages define "content" and may
// override "title".
const Layout = "templates/layout.html.tmpl"
