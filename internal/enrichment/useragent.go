package enrichment

import (
	"strings"

	"github.com/mssola/user_agent"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"

	Other = "Other"
)

type UAInfo struct {
	DeviceType     string
	Browser        string
	BrowserVersion string
	OS             string
	IsBot          bool
}

// ParseUserAgent classifies a User-Agent with case-insensitive keyword rules.
// The version and bot flag come from the full parser.
func ParseUserAgent(uaString string) *UAInfo {
	lower := strings.ToLower(uaString)

	info := &UAInfo{
		DeviceType: deviceType(lower),
		Browser:    browserFamily(lower),
		OS:         osFamily(lower),
	}

	if uaString != "" {
		ua := user_agent.New(uaString)
		_, info.BrowserVersion = ua.Browser()
		info.IsBot = ua.Bot()
	}

	return info
}

func deviceType(ua string) string {
	switch {
	case strings.Contains(ua, "mobile"):
		return DeviceMobile
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

func browserFamily(ua string) string {
	switch {
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "safari"):
		return "Safari"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	default:
		return Other
	}
}

func osFamily(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "mac"):
		return "MacOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return Other
	}
}
