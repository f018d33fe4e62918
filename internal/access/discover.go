package access

import (
	"log/slog"
	"net"
	"os"

	"device-reservation/internal/config"
)

var loopbackHosts = []string{"127.0.0.1", "::1"}

// DiscoverHostAddresses resolves the addresses this machine answers on:
// loopback, the resolved hostname and the local address of the outbound route
// to probe. A UDP dial sends no packets. Failures are logged and skipped.
func DiscoverHostAddresses(probe string) []string {
	hosts := append([]string{}, loopbackHosts...)

	if name, err := os.Hostname(); err != nil {
		slog.Warn("Failed to get hostname", "error", err)
	} else if addrs, err := net.LookupHost(name); err != nil {
		slog.Warn("Failed to resolve hostname", "hostname", name, "error", err)
	} else {
		hosts = append(hosts, addrs...)
	}

	if probe != "" {
		if ip := outboundAddress(probe); ip != "" {
			hosts = append(hosts, ip)
		}
	}
	return hosts
}

func outboundAddress(probe string) string {
	conn, err := net.Dial("udp", probe)
	if err != nil {
		slog.Warn("Failed to determine outbound address", "probe", probe, "error", err)
		return ""
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}

// NewPolicyFromConfig builds the policy once at startup from discovery, the
// configured host list and the optional policy file.
func NewPolicyFromConfig(cfg *config.AccessConfig) *HostPolicy {
	hosts := DiscoverHostAddresses(cfg.RouteProbe)
	hosts = append(hosts, cfg.PrivilegedHosts...)

	if cfg.PolicyFile != "" {
		extra, err := LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			slog.Error("Ignoring access policy file", "file", cfg.PolicyFile, "error", err)
		} else {
			hosts = append(hosts, extra...)
		}
	}

	p := NewHostPolicy(hosts...)
	slog.Info("Privileged host addresses", "addresses", p.Addresses())
	return p
}
