package crawler

// Soft blocks are denials the site serves with a 200: a CAPTCHA wall
// or an "access denied" interstitial, distinguishable only by page
// content. Both are terminal for the current attempt.

// captchaSelectors cover the widgets the storefront is known to embed.
var captchaSelectors = []string{
	".captcha",
	"#captcha",
	`[data-testid="captcha"]`,
	".g-recaptcha",
	".h-captcha",
	`iframe[src*="recaptcha"]`,
	`iframe[src*="hcaptcha"]`,
}

var captchaPhrases = []string{
	"자동입력 방지",
	"captcha",
	"보안문자",
	"자동접속 차단",
	"automation detected",
}

var blockPhrases = []string{
	"접속이 차단",
	"access denied",
	"blocked",
	"비정상적인 접근",
	"일시적으로 차단",
	"too many requests",
	"rate limit",
}

// detectCaptcha probes for a visible CAPTCHA widget and falls back to
// a keyword scan of the page text. Probe errors are swallowed: an
// unreadable selector must not abort the soft-block check.
func detectCaptcha(page Page, bodyText string) bool {
	for _, selector := range captchaSelectors {
		visible, err := page.Visible(selector)
		if err != nil {
			continue
		}
		if visible {
			return true
		}
	}
	for _, phrase := range captchaPhrases {
		if containsLower(bodyText, phrase) {
			return true
		}
	}
	return false
}

// detectSoftBlock scans the page text for access-denied and rate-limit
// phrasing and returns the matched phrase.
func detectSoftBlock(bodyText string) (string, bool) {
	for _, phrase := range blockPhrases {
		if containsLower(bodyText, phrase) {
			return phrase, true
		}
	}
	return "", false
}
