package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateTargetURL(t *testing.T) {
	valid := []string{
		"https://smartstore.naver.com/shop/products/1234",
		"http://smartstore.naver.com/shop/products/1234",
		"https://brand.naver.com/somebrand/products/42",
		"https://SMARTSTORE.NAVER.COM/shop/products/1",
	}
	for _, rawURL := range valid {
		require.NoError(t, ValidateTargetURL(rawURL), "url %q", rawURL)
	}

	invalid := []string{
		"",
		"not a url at all",
		"ftp://smartstore.naver.com/shop/products/1",
		"https://example.com/products/1",
		"https://naver.com/products/1",
		"https://smartstore.naver.com.evil.com/products/1",
	}
	for _, rawURL := range invalid {
		err := ValidateTargetURL(rawURL)
		require.Error(t, err, "url %q", rawURL)
		require.Contains(t, err.Error(), "invalid url", "url %q", rawURL)
	}
}
