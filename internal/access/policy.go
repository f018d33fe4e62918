// Package access decides whether a caller is the host machine itself.
//
// This is a coarse network-origin check for a single trusted LAN host. It is
// not authentication: anyone able to send packets from a privileged address
// passes it.
package access

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strings"

	"device-reservation/internal/reservation"

	"gopkg.in/yaml.v3"
)

var ErrNotHost = fmt.Errorf("%w: caller is not the host", reservation.ErrPermission)

// PolicyFile is the optional YAML document listing extra privileged
// addresses. Entries are single addresses or CIDR prefixes.
//
//	privileged_hosts:
//	  - 192.168.1.20
//	  - 10.20.0.0/24
type PolicyFile struct {
	PrivilegedHosts []string `yaml:"privileged_hosts"`
}

// HostPolicy is an immutable set of privileged addresses and prefixes.
type HostPolicy struct {
	addrs    map[netip.Addr]struct{}
	prefixes []netip.Prefix
}

// NewHostPolicy builds a policy from address or CIDR strings. Invalid entries
// are logged and skipped.
func NewHostPolicy(hosts ...string) *HostPolicy {
	p := &HostPolicy{addrs: make(map[netip.Addr]struct{})}
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if strings.Contains(h, "/") {
			prefix, err := netip.ParsePrefix(h)
			if err != nil {
				slog.Warn("Invalid privileged prefix", "prefix", h, "error", err)
				continue
			}
			p.prefixes = append(p.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(h)
		if err != nil {
			slog.Warn("Invalid privileged address", "address", h, "error", err)
			continue
		}
		p.addrs[addr.Unmap()] = struct{}{}
	}
	return p
}

// LoadPolicyFile reads the privileged host list from a YAML file.
func LoadPolicyFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy PolicyFile
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	slog.Info("Access policy loaded", "file", path, "hosts", len(policy.PrivilegedHosts))
	return policy.PrivilegedHosts, nil
}

// IsPrivileged reports whether remote, an address with or without port, is in
// the privileged set.
func (p *HostPolicy) IsPrivileged(remote string) bool {
	addr, ok := parseRemote(remote)
	if !ok {
		return false
	}
	if _, ok := p.addrs[addr]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Authorize returns ErrNotHost for unprivileged callers.
func (p *HostPolicy) Authorize(remote string) error {
	if !p.IsPrivileged(remote) {
		return fmt.Errorf("%w: %s", ErrNotHost, remote)
	}
	return nil
}

// Addresses lists the single addresses of the policy, for diagnostics.
func (p *HostPolicy) Addresses() []string {
	out := make([]string, 0, len(p.addrs)+len(p.prefixes))
	for a := range p.addrs {
		out = append(out, a.String())
	}
	for _, prefix := range p.prefixes {
		out = append(out, prefix.String())
	}
	return out
}

func parseRemote(remote string) (netip.Addr, bool) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().WithZone("").Unmap(), true
	}
	// Zones are not part of the policy.
	if i := strings.IndexByte(remote, '%'); i >= 0 {
		remote = remote[:i]
	}
	addr, err := netip.ParseAddr(strings.Trim(remote, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// IsNotHost reports whether err is a privilege rejection.
func IsNotHost(err error) bool {
	return errors.Is(err, ErrNotHost)
}
