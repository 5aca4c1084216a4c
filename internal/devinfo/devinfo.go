// Package devinfo derives coarse device, OS and browser labels from a
// request user agent. Heuristics only; unknowns report "Desconhecido".
package devinfo

import (
	"regexp"

	"github.com/MenopausaC/quiz-funnel-service/internal/domain"
)

var (
	reMobile  = regexp.MustCompile(`Mobile|Android|iPhone`)
	reTablet  = regexp.MustCompile(`Tablet|iPad`)
	reWin10   = regexp.MustCompile(`Windows NT 10`)
	reWindows = regexp.MustCompile(`Windows NT`)
	reMac     = regexp.MustCompile(`Mac OS X`)
	reLinux   = regexp.MustCompile(`Linux`)
	reAndroid = regexp.MustCompile(`Android`)
	reIOS     = regexp.MustCompile(`iPhone|iPad`)
	reEdge    = regexp.MustCompile(`Edg`)
	reChrome  = regexp.MustCompile(`Chrome`)
	reFirefox = regexp.MustCompile(`Firefox`)
	reSafari  = regexp.MustCompile(`Safari`)
)

const unknown = "Desconhecido"

// Detect classifies a user agent string.
func Detect(userAgent string) domain.DeviceInfo {
	return domain.DeviceInfo{
		Dispositivo:        device(userAgent),
		SistemaOperacional: operatingSystem(userAgent),
		Navegador:          browser(userAgent),
	}
}

func device(ua string) string {
	switch {
	case reMobile.MatchString(ua):
		return "Mobile"
	case reTablet.MatchString(ua):
		return "Tablet"
	default:
		return "Desktop"
	}
}

func operatingSystem(ua string) string {
	switch {
	case reWin10.MatchString(ua):
		return "Windows 10"
	case reWindows.MatchString(ua):
		return "Windows"
	case reAndroid.MatchString(ua):
		return "Android"
	case reIOS.MatchString(ua):
		return "iOS"
	case reMac.MatchString(ua):
		return "macOS"
	case reLinux.MatchString(ua):
		return "Linux"
	default:
		return unknown
	}
}

func browser(ua string) string {
	switch {
	case reEdge.MatchString(ua):
		return "Edge"
	case reChrome.MatchString(ua):
		return "Chrome"
	case reFirefox.MatchString(ua):
		return "Firefox"
	case reSafari.MatchString(ua):
		return "Safari"
	default:
		return unknown
	}
}
