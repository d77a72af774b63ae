package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	t.Run("desktop browser", func(t *testing.T) {
		info := ParseUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36")

		assert.Equal(t, "desktop", info.DeviceType)
		assert.Contains(t, info.Browser, "Chrome")
		assert.Contains(t, info.OS, "Windows")
	})

	t.Run("phone", func(t *testing.T) {
		info := ParseUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) " +
			"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Mobile/15E148 Safari/604.1")

		assert.Equal(t, "mobile", info.DeviceType)
		assert.Contains(t, info.Browser, "Safari")
	})

	t.Run("tablet", func(t *testing.T) {
		info := ParseUserAgent("Mozilla/5.0 (iPad; CPU OS 15_0 like Mac OS X) " +
			"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1")

		assert.Equal(t, "tablet", info.DeviceType)
	})

	t.Run("crawler", func(t *testing.T) {
		info := ParseUserAgent("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")

		assert.Equal(t, "bot", info.DeviceType)
	})

	t.Run("empty input", func(t *testing.T) {
		info := ParseUserAgent("")

		assert.Equal(t, "unknown", info.DeviceType)
		assert.Equal(t, "Unknown", info.OS)
		assert.Equal(t, "Unknown", info.Browser)
	})
}
