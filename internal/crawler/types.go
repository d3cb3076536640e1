// Package crawler defines the core types shared across subsystems and
// implements the single-target crawl state machine.
package crawler

import (
	"time"
)

// Target identifies one product page to crawl. It is an immutable
// input to one crawl attempt.
type Target struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	TargetPrice *int64 `json:"target_price,omitempty"`
}

// Product holds the structured data extracted from a product page.
// Every field except Available is optional: the page layout is
// unreliable, so absence of a field is expected and not an error.
type Product struct {
	Title         *string  `json:"title,omitempty"`
	Price         *int64   `json:"price,omitempty"`
	OriginalPrice *int64   `json:"original_price,omitempty"`
	DiscountRate  *int     `json:"discount_rate,omitempty"`
	Available     bool     `json:"available"`
	StockMessage  *string  `json:"stock_message,omitempty"`
	ImageURL      *string  `json:"image_url,omitempty"`
	Seller        *string  `json:"seller,omitempty"`
	Category      *string  `json:"category,omitempty"`
	Shipping      *string  `json:"shipping,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	ReviewCount   *int64   `json:"review_count,omitempty"`
}

// Outcome is the immutable result of crawling one target. Exactly one
// Outcome is produced per submitted target, success or failure.
type Outcome struct {
	TargetID     int64         `json:"target_id"`
	Success      bool          `json:"success"`
	Product      *Product      `json:"product,omitempty"`
	ErrorCode    ErrorCode     `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
	Retries      int           `json:"retries"`
	UserAgent    string        `json:"user_agent,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}

// NavigationResult carries the document response metadata observed
// after navigating a page. StatusCode is zero when no response was
// received before the navigation deadline.
type NavigationResult struct {
	StatusCode int
	FinalURL   string
}
