package routes

import (
	"html/template"
	"strings"
)

// statusClass maps a device status or ETA status to a CSS class.
func statusClass(status string) string {
	switch status {
	case "Available":
		return "available"
	case "In Use":
		return "in-use"
	case "Active":
		return "eta-active"
	case "Passed":
		return "eta-passed"
	}
	return ""
}

// initials keeps the dashboard user column narrow on phones.
func initials(user string) string {
	var b strings.Builder
	for _, part := range strings.Fields(user) {
		for _, r := range part {
			b.WriteRune(r)
			break
		}
	}
	return b.String()
}

// TemplateFuncs returns a FuncMap with template helpers for routes templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"status_class": statusClass,
		"initials":     initials,
	}
}
