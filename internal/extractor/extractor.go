// Package extractor turns a loaded storefront page into a structured
// product record using fallback-chained selector lists.
package extractor

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pricewatch/pricewatch/internal/crawler"
)

// Extractor implements crawler.Extractor. It fails only when the page
// is fundamentally unreadable; individual missing fields are expected
// and leave the field absent.
type Extractor struct {
	settle time.Duration
	logger *zap.Logger
}

// New constructs an Extractor. settle is the post-render settle window
// required before any field probing begins.
func New(settle time.Duration, logger *zap.Logger) *Extractor {
	if settle <= 0 {
		settle = 300 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{settle: settle, logger: logger}
}

// Extract reads every field group best-effort and returns the product.
// Field groups are independent: a failure in one degrades to absent
// fields and never aborts the others.
func (e *Extractor) Extract(ctx context.Context, page crawler.Page, sourceURL string) (crawler.Product, error) {
	if err := page.WaitStable(ctx, e.settle); err != nil {
		e.logger.Debug("page did not settle, extracting current DOM", zap.Error(err))
	}

	bodyText, err := page.BodyText()
	if err != nil {
		return crawler.Product{}, crawler.NewError(crawler.ErrCodeParse, "failed to parse product page: page text unreadable", err)
	}

	product := crawler.Product{Available: true}

	var mu sync.Mutex
	var wg sync.WaitGroup
	groups := []func(){
		func() { e.extractPrices(page, bodyText, &mu, &product) },
		func() { e.extractText(page, &mu, &product) },
		func() { e.extractAvailability(page, bodyText, &mu, &product) },
		func() { e.extractMedia(page, sourceURL, &mu, &product) },
		func() { e.extractReviews(page, &mu, &product) },
	}
	for _, group := range groups {
		wg.Add(1)
		go func(run func()) {
			defer wg.Done()
			run()
		}(group)
	}
	wg.Wait()

	if product.Price != nil && product.OriginalPrice != nil {
		if rate, ok := discountRate(*product.OriginalPrice, *product.Price); ok {
			mu.Lock()
			product.DiscountRate = &rate
			mu.Unlock()
		}
	}

	return product, nil
}

// extractPrices resolves the current and original price. When the
// current-price chain misses entirely, the whole-page scan fills the
// current price so downstream history and alerting still see a value.
func (e *Extractor) extractPrices(page crawler.Page, bodyText string, mu *sync.Mutex, product *crawler.Product) {
	price, priceOK := e.firstPrice(page, priceSelectors)
	original, originalOK := e.firstPrice(page, originalPriceSelectors)

	if !priceOK {
		if scanned, ok := scanTextForPrice(bodyText); ok {
			price, priceOK = scanned, true
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if priceOK {
		product.Price = &price
	}
	if originalOK {
		product.OriginalPrice = &original
	}
}

func (e *Extractor) extractText(page crawler.Page, mu *sync.Mutex, product *crawler.Product) {
	title := e.firstText(page, titleSelectors)
	seller := e.firstText(page, sellerSelectors)
	category := e.firstText(page, categorySelectors)
	shipping := e.firstText(page, shippingSelectors)

	mu.Lock()
	defer mu.Unlock()
	setIfPresent(&product.Title, title)
	setIfPresent(&product.Seller, seller)
	setIfPresent(&product.Category, category)
	setIfPresent(&product.Shipping, shipping)
}

// extractAvailability applies the explicit out-of-stock denylist
// first; a matched phrase wins over any visible purchase control.
// With no negative signal and no control found, the optimistic default
// is available.
func (e *Extractor) extractAvailability(page crawler.Page, bodyText string, mu *sync.Mutex, product *crawler.Product) {
	available := true
	var stockMessage string

	lowered := strings.ToLower(bodyText)
	for _, phrase := range outOfStockPhrases {
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			available = false
			stockMessage = phrase
			break
		}
	}

	if available {
		found := false
		for _, selector := range purchaseSelectors {
			visible, err := page.Visible(selector)
			if err != nil {
				continue
			}
			if visible {
				found = true
				break
			}
		}
		if !found {
			// No negative signal and no purchase control either; keep
			// the optimistic default but leave a trace for layouts the
			// selector list does not cover yet.
			e.logger.Debug("no purchase control found, assuming available")
		}
	} else if msg := e.firstText(page, stockMessageSelectors); msg != "" {
		stockMessage = msg
	}

	mu.Lock()
	defer mu.Unlock()
	product.Available = available
	setIfPresent(&product.StockMessage, stockMessage)
}

func (e *Extractor) extractMedia(page crawler.Page, sourceURL string, mu *sync.Mutex, product *crawler.Product) {
	var imageURL string
	for _, selector := range imageSelectors {
		src, err := page.Attribute(selector, "src")
		if err != nil || src == "" {
			continue
		}
		imageURL = resolveURL(sourceURL, src)
		break
	}

	mu.Lock()
	defer mu.Unlock()
	setIfPresent(&product.ImageURL, imageURL)
}

func (e *Extractor) extractReviews(page crawler.Page, mu *sync.Mutex, product *crawler.Product) {
	var rating *float64
	var reviewCount *int64
	for _, selector := range ratingSelectors {
		text, err := page.Text(selector)
		if err != nil || text == "" {
			continue
		}
		if value, ok := parseRating(text); ok {
			rating = &value
			break
		}
	}
	for _, selector := range reviewCountSelectors {
		text, err := page.Text(selector)
		if err != nil || text == "" {
			continue
		}
		if value, ok := parseCount(text); ok {
			reviewCount = &value
			break
		}
	}

	mu.Lock()
	defer mu.Unlock()
	product.Rating = rating
	product.ReviewCount = reviewCount
}

func (e *Extractor) firstPrice(page crawler.Page, selectors []string) (int64, bool) {
	for _, selector := range selectors {
		text, err := page.Text(selector)
		if err != nil || text == "" {
			continue
		}
		if price, ok := parsePrice(text); ok {
			return price, true
		}
	}
	return 0, false
}

func (e *Extractor) firstText(page crawler.Page, selectors []string) string {
	for _, selector := range selectors {
		text, err := page.Text(selector)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return ""
}

func setIfPresent(dest **string, value string) {
	if value != "" {
		v := value
		*dest = &v
	}
}

// resolveURL makes a possibly relative asset URL absolute against the
// page it was found on.
func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
