package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig holds configuration for client IP extraction.
type IPConfig struct {
	TrustedProxies []string // CIDR ranges whose forwarding headers are believed
}

// ExtractClientIP resolves the originating client IP. Forwarding
// headers are honored only when the direct peer is a trusted proxy;
// the registration IP cap and the login rate-limit window both key on
// this value, so a spoofable IP would defeat both policies.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := peerIP(r)

	if config == nil || !isTrustedProxy(remoteIP, config.TrustedProxies) {
		return remoteIP
	}

	if ip := r.Header.Get("CF-Connecting-IP"); isValidIP(ip) {
		return ip
	}

	// X-Forwarded-For may carry a chain; the first parseable entry is
	// the original client.
	for _, ip := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip = strings.TrimSpace(ip); isValidIP(ip) {
			return ip
		}
	}

	if ip := r.Header.Get("X-Real-IP"); isValidIP(ip) {
		return ip
	}

	return remoteIP
}

// peerIP strips the port from RemoteAddr.
func peerIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func isTrustedProxy(ip string, trustedProxies []string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}
	return false
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
