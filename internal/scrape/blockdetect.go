package scrape

import (
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/school-research-cli/internal/resilience"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// captchaMarkers also covers recaptcha, hcaptcha and Yandex smartcaptcha.
var captchaMarkers = []string{"captcha", "вы не робот"}

const maxCaptchaPage = 128 << 10

// DetectBlock checks a fetched page for anti-bot protection. resp may be nil
// for pages rendered by the browser.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp != nil && (resp.StatusCode == 403 || resp.StatusCode == 503) {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" ||
			resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}
	if resp != nil && resp.Request != nil && strings.Contains(resp.Request.URL.Path, "showcaptcha") {
		return true, BlockCaptcha
	}
	if len(body) == 0 {
		return false, BlockNone
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}

	// Captcha interstitials are small; full map pages embed captcha scripts.
	if len(body) < maxCaptchaPage {
		for _, m := range captchaMarkers {
			if strings.Contains(lower, m) {
				return true, BlockCaptcha
			}
		}
	}

	// JS-only shell: tiny body that asks for JavaScript or redirects.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

// blockedError wraps resilience.ErrBlocked with the fetcher and block kind.
func blockedError(fetcher string, bt BlockType, url string) error {
	return eris.Wrapf(resilience.ErrBlocked, "%s: blocked (%s) at %s", fetcher, bt, url)
}
