package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pricewatch/pricewatch/internal/crawler"
)

// fakePage serves canned selector results. Unknown selectors behave
// like absent elements.
type fakePage struct {
	texts      map[string]string
	attributes map[string]map[string]string
	visible    map[string]bool
	body       string
	bodyErr    error
}

func (p *fakePage) Navigate(context.Context, string, time.Duration) (crawler.NavigationResult, error) {
	return crawler.NavigationResult{}, nil
}
func (p *fakePage) WaitReady(context.Context) error                 { return nil }
func (p *fakePage) WaitStable(context.Context, time.Duration) error { return nil }

func (p *fakePage) Text(selector string) (string, error) {
	return p.texts[selector], nil
}

func (p *fakePage) Attribute(selector, name string) (string, error) {
	return p.attributes[selector][name], nil
}

func (p *fakePage) Visible(selector string) (bool, error) {
	return p.visible[selector], nil
}

func (p *fakePage) BodyText() (string, error) {
	if p.bodyErr != nil {
		return "", p.bodyErr
	}
	return p.body, nil
}

func (p *fakePage) UserAgent() string { return "test-agent" }

const pageURL = "https://smartstore.naver.com/shop/products/1234"

func TestExtractFullProduct(t *testing.T) {
	page := &fakePage{
		texts: map[string]string{
			".price_num .num":              "19,900원",
			".price_detail .origin .num":   "30,000원",
			".product_title h1":            "무선 키보드",
			".seller_info .name":           "테크샵",
			".location_area .current":      "키보드",
			".delivery_fee .txt":           "무료배송",
			".review_score .num":           "4.8",
			".review_count .num":           "1,234",
		},
		attributes: map[string]map[string]string{
			".product_img img": {"src": "/images/item.jpg"},
		},
		visible: map[string]bool{".btn_buy": true},
		body:    "무선 키보드 19,900원 30,000원",
	}

	ext := New(time.Millisecond, nil)
	product, err := ext.Extract(context.Background(), page, pageURL)
	require.NoError(t, err)

	require.NotNil(t, product.Price)
	require.Equal(t, int64(19900), *product.Price)
	require.NotNil(t, product.OriginalPrice)
	require.Equal(t, int64(30000), *product.OriginalPrice)
	require.NotNil(t, product.DiscountRate)
	require.Equal(t, 34, *product.DiscountRate)
	require.NotNil(t, product.Title)
	require.Equal(t, "무선 키보드", *product.Title)
	require.True(t, product.Available)
	require.NotNil(t, product.Seller)
	require.Equal(t, "테크샵", *product.Seller)
	require.NotNil(t, product.ImageURL)
	require.Equal(t, "https://smartstore.naver.com/images/item.jpg", *product.ImageURL)
	require.NotNil(t, product.Rating)
	require.InDelta(t, 4.8, *product.Rating, 0.001)
	require.NotNil(t, product.ReviewCount)
	require.Equal(t, int64(1234), *product.ReviewCount)
}

func TestExtractMissingFieldsAreAbsent(t *testing.T) {
	page := &fakePage{body: "빈 페이지"}

	ext := New(time.Millisecond, nil)
	product, err := ext.Extract(context.Background(), page, pageURL)
	require.NoError(t, err)

	require.Nil(t, product.Price)
	require.Nil(t, product.Title)
	require.Nil(t, product.DiscountRate)
	require.Nil(t, product.ImageURL)
	require.Nil(t, product.Rating)
	require.True(t, product.Available, "optimistic default with no negative signal")
}

func TestExtractOutOfStockPhraseWinsOverPurchaseControl(t *testing.T) {
	page := &fakePage{
		texts: map[string]string{
			".price_num .num": "19,900원",
			".soldout":        "일시품절된 상품입니다",
		},
		visible: map[string]bool{".btn_buy": true},
		body:    "이 상품은 품절 되었습니다",
	}

	ext := New(time.Millisecond, nil)
	product, err := ext.Extract(context.Background(), page, pageURL)
	require.NoError(t, err)

	require.False(t, product.Available, "denylist phrase overrides the visible buy button")
	require.NotNil(t, product.StockMessage)
	require.Equal(t, "일시품절된 상품입니다", *product.StockMessage)
}

func TestExtractPriceScanFallback(t *testing.T) {
	page := &fakePage{
		body: "특가 행사 상품 89,000원 리뷰 23건",
	}

	ext := New(time.Millisecond, nil)
	product, err := ext.Extract(context.Background(), page, pageURL)
	require.NoError(t, err)

	require.NotNil(t, product.Price, "scan fallback must yield a current price")
	require.Equal(t, int64(89000), *product.Price)
	require.Nil(t, product.OriginalPrice)
	require.Nil(t, product.DiscountRate)
}

func TestExtractPriceScanNotUsedWhenSelectorHits(t *testing.T) {
	page := &fakePage{
		texts: map[string]string{".price_num .num": "19,900원"},
		body:  "상품 19,900원 정가 89,000원",
	}

	ext := New(time.Millisecond, nil)
	product, err := ext.Extract(context.Background(), page, pageURL)
	require.NoError(t, err)

	require.NotNil(t, product.Price)
	require.Equal(t, int64(19900), *product.Price, "selector price wins over the page scan")
}

func TestExtractUnreadablePageIsParseError(t *testing.T) {
	page := &fakePage{bodyErr: errors.New("evaluation context destroyed")}

	ext := New(time.Millisecond, nil)
	_, err := ext.Extract(context.Background(), page, pageURL)
	require.Error(t, err)
	require.Equal(t, crawler.ErrCodeParse, crawler.Classify(err))
}

func TestExtractAbsoluteImageURLKept(t *testing.T) {
	page := &fakePage{
		attributes: map[string]map[string]string{
			".product_img img": {"src": "https://cdn.example.net/item.jpg"},
		},
		body: "상품",
	}

	ext := New(time.Millisecond, nil)
	product, err := ext.Extract(context.Background(), page, pageURL)
	require.NoError(t, err)

	require.NotNil(t, product.ImageURL)
	require.Equal(t, "https://cdn.example.net/item.jpg", *product.ImageURL)
}
