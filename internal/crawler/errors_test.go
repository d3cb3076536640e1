package crawler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyTypedErrorKeepsCode(t *testing.T) {
	err := NewError(ErrCodeCaptcha, "captcha detected", nil)
	require.Equal(t, ErrCodeCaptcha, Classify(err))

	wrapped := fmt.Errorf("attempt failed: %w", err)
	require.Equal(t, ErrCodeCaptcha, Classify(wrapped))
}

func TestClassifyKeywordPriority(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorCode
	}{
		{"navigation timeout after 30s", ErrCodeTimeout},
		{"context deadline exceeded", ErrCodeTimeout},
		{"captcha page served", ErrCodeCaptcha},
		{"request blocked by origin", ErrCodeBlocked},
		{"403 forbidden", ErrCodeBlocked},
		{"product not found", ErrCodeNotFound},
		{"http status 404", ErrCodeNotFound},
		{"rate limit exceeded", ErrCodeRateLimit},
		{"too many requests", ErrCodeRateLimit},
		{"failed to parse price text", ErrCodeParse},
		{"connection refused", ErrCodeNetwork},
		{"tls handshake failure", ErrCodeNetwork},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Classify(errors.New(tt.msg)), "message %q", tt.msg)
	}
}

func TestClassifyTimeoutBeatsCaptcha(t *testing.T) {
	// Timeout keywords win when several classes match the same text.
	err := errors.New("timeout while solving captcha")
	require.Equal(t, ErrCodeTimeout, Classify(err))
}

func TestClassifyNil(t *testing.T) {
	require.Equal(t, ErrorCode(""), Classify(nil))
}

func TestIsTerminal(t *testing.T) {
	require.True(t, IsTerminal(NewError(ErrCodeCaptcha, "captcha", nil)))
	require.True(t, IsTerminal(NewError(ErrCodeBlocked, "blocked", nil)))
	require.True(t, IsTerminal(NewError(ErrCodeNotFound, "gone", nil)))

	require.False(t, IsTerminal(NewError(ErrCodeNetwork, "reset", nil)))
	require.False(t, IsTerminal(NewError(ErrCodeTimeout, "slow", nil)))
	require.False(t, IsTerminal(NewError(ErrCodeParse, "bad page", nil)))
	require.False(t, IsTerminal(errors.New("untyped failure")))
	require.False(t, IsTerminal(nil))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := NewError(ErrCodeNetwork, "navigation failed", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "navigation failed")
	require.Contains(t, err.Error(), "socket closed")
}
