package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetRealIP resolves the client address recorded on rate-limit rows and
// payment audit entries. The service normally sits behind a reverse proxy,
// so the proxy headers outrank the socket address: X-Real-IP when it
// carries a public address, then the first public hop in X-Forwarded-For,
// then gin's own resolution.
func GetRealIP(c *gin.Context) string {
	if ip := net.ParseIP(strings.TrimSpace(c.Request.Header.Get("X-Real-IP"))); ip != nil && isPublic(ip) {
		return ip.String()
	}

	// X-Forwarded-For lists the path hop by hop, client first. Internal
	// hops are skipped so a proxy chain does not collapse every guest
	// into one rate-limit bucket; if the whole chain is internal the
	// first parseable hop is still better than the proxy's socket.
	var firstHop string
	for _, hop := range strings.Split(c.Request.Header.Get("X-Forwarded-For"), ",") {
		hop = strings.TrimSpace(hop)
		ip := net.ParseIP(hop)
		if ip == nil {
			continue
		}
		if isPublic(ip) {
			return hop
		}
		if firstHop == "" {
			firstHop = hop
		}
	}
	if firstHop != "" {
		return firstHop
	}

	return c.ClientIP()
}

func isPublic(ip net.IP) bool {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified():
		return false
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return false
	}
	return true
}

// GetUserAgent returns the request's User-Agent, or "Unknown" when the
// client sent none, so audit rows never carry an empty string.
func GetUserAgent(c *gin.Context) string {
	if ua := c.Request.UserAgent(); ua != "" {
		return ua
	}
	return "Unknown"
}
