package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller IP from request metadata. The X-Forwarded-For
// chain is only consulted when trustForwarded is set (the service sits behind
// a known proxy); otherwise the direct peer address wins.
func ClientIP(r *http.Request, trustForwarded bool) string {
	remoteIP := parseRemoteIP(r.RemoteAddr)
	if !trustForwarded {
		if remoteIP == nil {
			return strings.TrimSpace(r.RemoteAddr)
		}
		return remoteIP.String()
	}
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := parseIP(part); ip != nil {
			return ip.String()
		}
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != nil {
		return ip.String()
	}
	if remoteIP == nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return remoteIP.String()
}

func parseRemoteIP(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		return parseIP(host)
	}
	return parseIP(addr)
}

func parseIP(raw string) net.IP {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return net.ParseIP(raw)
}
