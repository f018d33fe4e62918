package config

var defaults = map[string]any{
	"log_level":   "info",
	"listen_addr": ":5000",
	"base_url":    "/",
	"timezone":    "Local",

	"allowed_networks": "",
	"trusted_proxies":  []string{},

	"history_limit": 50,
	"refresh_ms":    30000, // Dashboard auto reload

	"reservation.max_days": 30,

	"export.path": "logs.csv",
	"export.bom":  false,

	"access.privileged_hosts": []string{},
	"access.policy_file":      "",
	"access.route_probe":      "8.8.8.8:80",

	"storage.sqlite.path": "devices.db",
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}
