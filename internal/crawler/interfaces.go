package crawler

import (
	"context"
	"time"
)

// Page is the narrow browser-page capability the crawl core needs.
// Query methods return zero values (not errors) when no element
// matches, so exhausted selector chains degrade to absent fields.
type Page interface {
	// Navigate loads rawURL and reports the document response. A zero
	// StatusCode means no response arrived before the deadline.
	Navigate(ctx context.Context, rawURL string, timeout time.Duration) (NavigationResult, error)
	// WaitReady blocks until a minimal DOM readiness signal (the
	// document body exists).
	WaitReady(ctx context.Context) error
	// WaitStable blocks until the rendered DOM has settled for the
	// given window, the precondition for field extraction.
	WaitStable(ctx context.Context, settle time.Duration) error
	// Text returns the trimmed text of the first match, or "" if none.
	Text(selector string) (string, error)
	// Attribute returns the named attribute of the first match, or "".
	Attribute(selector, name string) (string, error)
	// Visible reports whether the first match exists and is visible.
	Visible(selector string) (bool, error)
	// BodyText returns the visible text of the whole document body.
	BodyText() (string, error)
	// UserAgent returns the identity string this page navigates with.
	UserAgent() string
}

// SessionManager owns a headless browser process and hands out
// configured pages. Implementations launch the process lazily and must
// guarantee clean teardown.
type SessionManager interface {
	AcquirePage(ctx context.Context) (Page, error)
	// ReleasePage closes the page if still open. Double release is a
	// no-op, not an error.
	ReleasePage(page Page) error
	// Shutdown closes all pages and the browser process, resetting
	// state so a later AcquirePage relaunches cleanly.
	Shutdown() error
	// Healthy reports whether a browser process is active and still
	// connected.
	Healthy() bool
	// PageCount returns the number of pages currently tracked.
	PageCount() int
}

// Extractor parses a loaded product page into a Product.
type Extractor interface {
	Extract(ctx context.Context, page Page, sourceURL string) (Product, error)
}

// Clock returns the current time (injectable for testing).
type Clock interface {
	Now() time.Time
}
