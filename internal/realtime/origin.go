package realtime

import (
	"net"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open a socket.
type originPolicy struct {
	any   bool
	hosts map[string]struct{}
}

func newOriginPolicy() *originPolicy {
	return &originPolicy{hosts: make(map[string]struct{})}
}

func (p *originPolicy) allow(origins ...string) {
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "":
		case origin == "*":
			p.any = true
		default:
			p.hosts[hostOf(origin)] = struct{}{}
		}
	}
}

// permits accepts requests without an Origin header (native clients), the
// same host, loopback origins used in development, and configured origins.
func (p *originPolicy) permits(origin, requestHost string) bool {
	if origin == "" || p.any {
		return true
	}
	host := hostOf(origin)
	if host == hostOf(requestHost) || loopback(host) {
		return true
	}
	_, ok := p.hosts[host]
	return ok
}

func hostOf(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if strings.Contains(value, "://") {
		if parsed, err := url.Parse(value); err == nil {
			value = parsed.Host
		}
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		return host
	}
	return value
}

func loopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return host == "localhost"
}
