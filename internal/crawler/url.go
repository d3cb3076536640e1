package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// supportedHosts are the storefront domains this crawler understands.
var supportedHosts = []string{
	"smartstore.naver.com",
	"brand.naver.com",
}

// ValidateTargetURL checks that rawURL is a well-formed page on a
// supported storefront domain. The returned error text deliberately
// contains "invalid url" so the retry governor treats it as terminal.
func ValidateTargetURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid url %q: unsupported scheme %q", rawURL, parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	for _, allowed := range supportedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return fmt.Errorf("invalid url %q: host %q is not a supported storefront", rawURL, host)
}

func containsLower(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
