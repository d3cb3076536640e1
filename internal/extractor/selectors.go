package extractor

// Selector chains per logical field, tried in order; the first
// candidate yielding a plausible non-empty value wins. The storefront
// markup shifts across experiment cohorts, so these are data, not
// control flow: adding a signal must never touch the extraction logic.

var priceSelectors = []string{
	".price_num .num",
	".price_area .num",
	".product_price .num",
	".total_price .num",
	".sale_price .num",
	`[data-testid="price"] .num`,
	".ProductPrice .num",
}

var originalPriceSelectors = []string{
	".price_detail .origin .num",
	".origin_price .num",
	".before_price .num",
	`[data-testid="original-price"] .num`,
}

var titleSelectors = []string{
	".product_title h1",
	".product_info .title",
	".item_title h1",
	`[data-testid="product-title"]`,
	".ProductTitle",
}

// purchaseSelectors are probed for a visible purchase control when no
// explicit out-of-stock phrase is present.
var purchaseSelectors = []string{
	".product_option_area",
	".btn_buy",
	".option_box",
	`[data-testid="buy-button"]`,
}

var imageSelectors = []string{
	".product_img img",
	".detail_img img",
	".thumb_img img",
	`[data-testid="product-image"]`,
}

var sellerSelectors = []string{
	".seller_info .name",
	".store_name",
	".shop_name",
	`[data-testid="seller-name"]`,
}

var categorySelectors = []string{
	".location_area .current",
	".breadcrumb .active",
	`[data-testid="category"]`,
}

var shippingSelectors = []string{
	".delivery_fee .txt",
	".shipping_info .price",
	`[data-testid="delivery-fee"]`,
}

var ratingSelectors = []string{
	".review_score .num",
	".rating_area .average",
	`[data-testid="rating"]`,
}

var reviewCountSelectors = []string{
	".review_count .num",
	".product_review .count",
	`[data-testid="review-count"]`,
}

var stockMessageSelectors = []string{
	".soldout",
	".stock_info .txt",
	`[data-testid="stock-message"]`,
}

// outOfStockPhrases force availability to false regardless of what the
// purchase controls look like.
var outOfStockPhrases = []string{
	"품절",
	"soldout",
	"sold out",
	"재고없음",
	"구매불가",
	"판매종료",
	"일시중단",
}
