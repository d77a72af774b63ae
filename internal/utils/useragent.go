package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// DeviceInfo summarizes the client device behind a payment request. It
// only feeds structured log fields, so unparseable input degrades to
// "unknown" instead of erroring.
type DeviceInfo struct {
	DeviceType string // mobile, tablet, desktop, bot, unknown
	OS         string
	Browser    string
}

// tabletMarkers covers devices that report themselves as mobile but are
// worth telling apart in the logs. The user_agent library has no tablet
// notion of its own.
var tabletMarkers = []string{"ipad", "tablet", "kindle", "sm-t", "nexus 7", "nexus 10"}

// ParseUserAgent extracts device, OS and browser from a raw User-Agent.
func ParseUserAgent(raw string) DeviceInfo {
	info := DeviceInfo{DeviceType: "unknown", OS: "Unknown", Browser: "Unknown"}
	if raw == "" || raw == "Unknown" {
		return info
	}

	parsed := ua.New(raw)

	if name, version := parsed.Browser(); name != "" {
		info.Browser = name
		if version != "" {
			info.Browser = name + " " + version
		}
	}

	if osInfo := parsed.OSInfo(); osInfo.Name != "" {
		info.OS = strings.TrimSpace(osInfo.Name + " " + osInfo.Version)
	}

	switch {
	case parsed.Bot():
		info.DeviceType = "bot"
	case parsed.Mobile():
		info.DeviceType = "mobile"
		lower := strings.ToLower(raw)
		for _, marker := range tabletMarkers {
			if strings.Contains(lower, marker) {
				info.DeviceType = "tablet"
				break
			}
		}
	default:
		info.DeviceType = "desktop"
	}

	return info
}
