package crawler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies why a crawl attempt failed. Every failure
// surfaced from the crawl core carries exactly one of these.
type ErrorCode string

// Supported error classifications.
const (
	ErrCodeNetwork   ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout   ErrorCode = "TIMEOUT_ERROR"
	ErrCodeParse     ErrorCode = "PARSE_ERROR"
	ErrCodeBlocked   ErrorCode = "BLOCKED_ERROR"
	ErrCodeNotFound  ErrorCode = "NOT_FOUND_ERROR"
	ErrCodeCaptcha   ErrorCode = "CAPTCHA_ERROR"
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT_ERROR"
)

// Error is a classified crawl failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewError builds a classified Error wrapping an optional cause.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps an arbitrary failure to an ErrorCode. A typed *Error
// keeps its code; otherwise the error text is keyword-matched in fixed
// priority order: timeout, captcha, blocked/forbidden, not-found,
// rate-limit, parse, and network as the default.
func Classify(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) && ce.Code != "" {
		return ce.Code
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ErrCodeTimeout
	case strings.Contains(msg, "captcha"):
		return ErrCodeCaptcha
	case strings.Contains(msg, "blocked") || strings.Contains(msg, "forbidden") || strings.Contains(msg, "403"):
		return ErrCodeBlocked
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return ErrCodeNotFound
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return ErrCodeRateLimit
	case strings.Contains(msg, "parse") || strings.Contains(msg, "parsing"):
		return ErrCodeParse
	default:
		return ErrCodeNetwork
	}
}

// terminalCodes are classifications for which retrying is known to be
// futile: an active block or a deterministic 404 does not clear on the
// next attempt, and hammering it escalates detection risk.
var terminalCodes = map[ErrorCode]struct{}{
	ErrCodeCaptcha:  {},
	ErrCodeBlocked:  {},
	ErrCodeNotFound: {},
}

// IsTerminal reports whether err carries a classification that should
// stop the retry loop immediately.
func IsTerminal(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		_, terminal := terminalCodes[ce.Code]
		return terminal
	}
	return false
}
