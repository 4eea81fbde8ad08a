package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// trustedRealIP rewrites r.RemoteAddr from X-Real-IP or X-Forwarded-For,
// but only when the connection itself comes from a trusted proxy. Headers
// from anyone else are ignored, so clients cannot spoof their way past
// per-IP rate limiting or the request log.
//
// Entries may be CIDRs or single IPs. With no trusted proxies configured
// every header is ignored and RemoteAddr stays the connection source.
func trustedRealIP(trustedProxies []string) func(http.Handler) http.Handler {
	trusted := parseProxyNets(trustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remoteIP := peerIP(r.RemoteAddr)
			if fromTrustedProxy(remoteIP, trusted) {
				if ip := clientIPFromHeaders(r); ip != nil {
					r.RemoteAddr = ip.String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseProxyNets parses the configured proxy list once at startup. Bad
// entries are logged and skipped rather than failing the server.
func parseProxyNets(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if _, network, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, network)
			continue
		}

		// Bare IP; widen it to a single-host network.
		if ip := net.ParseIP(entry); ip != nil {
			mask := net.CIDRMask(128, 128)
			if ip.To4() != nil {
				mask = net.CIDRMask(32, 32)
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: mask})
			continue
		}

		slog.Warn("ignoring invalid trusted proxy entry", "entry", entry)
	}
	return nets
}

// clientIPFromHeaders returns the client IP claimed by the proxy headers,
// or nil when neither header carries a valid address. X-Real-IP wins over
// X-Forwarded-For; in a forwarded chain the first hop is the client.
func clientIPFromHeaders(r *http.Request) net.IP {
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		if ip := net.ParseIP(rip); ip != nil {
			return ip
		}
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return nil
	}
	first := xff
	if idx := strings.Index(xff, ","); idx > 0 {
		first = xff[:idx]
	}
	return net.ParseIP(strings.TrimSpace(first))
}

// peerIP parses the IP out of a host:port connection address.
func peerIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}

func fromTrustedProxy(ip net.IP, trusted []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
