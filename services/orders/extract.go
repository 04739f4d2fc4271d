package orders

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"ordervault/lib/htmlutil"
	"ordervault/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// every field is resolved through an ordered chain of strategies,
// structural probes before whole-document regex passes. a field whose
// chain comes up empty keeps its zero value, it never aborts the
// extraction of sibling fields.
type strategy struct {
	name string
	fn   func(doc *goquery.Document) (string, bool)
}

func firstHit(doc *goquery.Document, chain []strategy) (string, string) {
	for _, s := range chain {
		value, ok := s.fn(doc)
		if ok {
			return value, s.name
		}
	}
	return "", ""
}

// selectText probes selectors in order and returns the first
// non-empty cleaned text.
func selectText(selectors ...string) func(doc *goquery.Document) (string, bool) {
	return func(doc *goquery.Document) (string, bool) {
		for _, sel := range selectors {
			text := htmlutil.CleanText(doc.Find(sel).First().Text())
			if text != "" {
				return text, true
			}
		}
		return "", false
	}
}

const refundTotalLabel = "Refund Total"

var (
	dateChain = []strategy{
		{"structural", selectText(
			".order-date-invoice-item",
			"span.order-date",
			".a-column .a-color-secondary.value",
		)},
		{"document-regex", func(doc *goquery.Document) (string, bool) {
			t, ok := textutil.FindDate(doc.Text())
			if !ok {
				return "", false
			}
			return t.Format("2006-01-02"), true
		}},
	}

	amountChain = []strategy{
		{"structural", func(doc *goquery.Document) (string, bool) {
			return currencyFromSelectors(doc,
				".grand-total-price",
				"#od-subtotals .a-text-bold",
				".yohtmlc-order-total .value",
			)
		}},
		{"document-regex", func(doc *goquery.Document) (string, bool) {
			amount, ok := textutil.ParseCurrency(doc.Text())
			if !ok {
				return "", false
			}
			return formatAmount(amount), true
		}},
	}

	recipientChain = []strategy{
		{"structural", selectText(
			".displayAddressFullName",
			"#shipToInsertionNode .displayAddressUL li:first-child",
			".od-shipping-address-container .a-row:first-child",
		)},
	}

	addressChain = []strategy{
		{"structural", func(doc *goquery.Document) (string, bool) {
			lines := doc.Find(".displayAddressAddressLine1, .displayAddressAddressLine2, .displayAddressCityStateOrRegionPostalCode")
			if lines.Length() == 0 {
				return "", false
			}
			var parts []string
			lines.Each(func(_ int, sel *goquery.Selection) {
				text := htmlutil.CleanText(sel.Text())
				if text != "" {
					parts = append(parts, text)
				}
			})
			if len(parts) == 0 {
				return "", false
			}
			return strings.Join(parts, ", "), true
		}},
		{"structural-block", selectText(
			"#shipToInsertionNode",
			".od-shipping-address-container",
		)},
	}

	paymentChain = []strategy{
		{"structural", selectText(
			".pmts-payment-instrument-billing-address-details",
			".pmts-payment-instrument-detail-box-paystationpaymentmethod",
			"#od-payment-details .a-row",
		)},
		{"document-regex", regexField(regexp.MustCompile(`(?i)((?:Visa|Mastercard|American Express|Discover|Gift Card)[^|]*?ending in \d{4})`))},
	}

	trackingChain = []strategy{
		{"structural", selectText(
			".tracking-id",
			"span.carrier-tracking-id",
		)},
		{"document-regex", regexField(regexp.MustCompile(`\b(TBA[0-9A-Z]{9,14}|1Z[0-9A-Z]{16}|9\d{21})\b`))},
	}

	refundLabelRegex = regexp.MustCompile(`(?i)refund total[^$]*(\$\s*(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)`)
)

func regexField(re *regexp.Regexp) func(doc *goquery.Document) (string, bool) {
	return func(doc *goquery.Document) (string, bool) {
		groups := re.FindStringSubmatch(doc.Text())
		if len(groups) < 2 {
			return "", false
		}
		return htmlutil.CleanText(groups[1]), true
	}
}

func currencyFromSelectors(doc *goquery.Document, selectors ...string) (string, bool) {
	for _, sel := range selectors {
		amount, ok := textutil.ParseCurrency(doc.Find(sel).First().Text())
		if ok {
			return formatAmount(amount), true
		}
	}
	return "", false
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

func parseAmount(s string) float64 {
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return value
}

// ExtractDetail populates a DetailedRecord from one rendered detail
// document. Fields are resolved independently; a missed field is a
// soft miss, not an error.
func ExtractDetail(ctx context.Context, doc *goquery.Document, ref RecordRef) DetailedRecord {
	ctx, span := tracer.Start(ctx, "ExtractDetail", trace.WithAttributes(
		attribute.String("order_id", ref.ID),
	))
	defer span.End()

	record := DetailedRecord{
		ID:        ref.ID,
		DetailURL: ref.DetailURL,
		Items:     []Item{},
	}

	record.Date, _ = firstHitLogged(ctx, doc, dateChain, "date", span)

	if raw, _ := firstHitLogged(ctx, doc, amountChain, "amount", span); raw != "" {
		record.Amount = parseAmount(raw)
	} else {
		record.Amount = ref.RawAmount
	}

	record.Recipient, _ = firstHitLogged(ctx, doc, recipientChain, "recipient", span)
	record.Address, _ = firstHitLogged(ctx, doc, addressChain, "address", span)
	record.PaymentMethod, _ = firstHitLogged(ctx, doc, paymentChain, "payment_method", span)
	record.TrackingNumber, _ = firstHitLogged(ctx, doc, trackingChain, "tracking_number", span)

	record.RefundAmount = extractRefundAmount(doc)
	record.NetAmount = record.Amount - record.RefundAmount

	record.Items = extractItems(doc)

	return record
}

func firstHitLogged(ctx context.Context, doc *goquery.Document, chain []strategy, field string, span trace.Span) (string, string) {
	value, strategyName := firstHit(doc, chain)
	span.AddEvent("field", trace.WithAttributes(
		attribute.String("name", field),
		attribute.String("strategy", strategyName),
		attribute.Bool("hit", strategyName != ""),
	))
	return value, strategyName
}

// extractRefundAmount resolves the refund total. The refund tooltip
// renders differently between page variants, so after finding the
// node whose text exactly equals the label, the amount is searched
// first in the parent's full text and then in the concatenated text
// of the siblings. A whole-document regex pass is the last resort.
func extractRefundAmount(doc *goquery.Document) float64 {
	label := htmlutil.FindExactText(doc.Selection, "span, div, td, b, strong, a", refundTotalLabel).First()
	if label.Length() > 0 {
		if amount, ok := textutil.ParseCurrency(label.Parent().Text()); ok {
			return amount
		}
		if amount, ok := textutil.ParseCurrency(label.Siblings().Text()); ok {
			return amount
		}
	}

	groups := refundLabelRegex.FindStringSubmatch(doc.Text())
	if len(groups) >= 2 {
		if amount, ok := textutil.ParseCurrency(groups[1]); ok {
			return amount
		}
	}
	return 0
}

const itemRowSelector = ".yohtmlc-item, .a-fixed-left-grid"

// extractItems walks every item row. name, price and image each go
// through their own structural chain; a row that yields no name is
// dropped without affecting its siblings.
func extractItems(doc *goquery.Document) []Item {
	items := []Item{}
	doc.Find(itemRowSelector).Each(func(_ int, row *goquery.Selection) {
		item, ok := itemFromRow(row)
		if !ok {
			return
		}
		items = append(items, item)
	})
	return items
}

var (
	soldByRegex   = regexp.MustCompile(`(?i)sold by:?\s*([^|$]+?)(?:\s{2,}|$)`)
	quantityRegex = regexp.MustCompile(`^\s*(\d+)\s*$`)
)

func itemFromRow(row *goquery.Selection) (Item, bool) {
	item := Item{Quantity: 1}

	nameAnchor := row.Find(".yohtmlc-product-title, a[href*='/gp/product/'], a[href*='/dp/']").First()
	item.Name = htmlutil.CleanText(nameAnchor.Text())
	if item.Name == "" {
		return Item{}, false
	}
	item.ProductURL = nameAnchor.AttrOr("href", "")

	if price, ok := textutil.ParseCurrency(row.Find(".yohtmlc-item-price, .a-color-price").First().Text()); ok {
		item.Price = price
	}

	item.ImageURL = row.Find("img").First().AttrOr("src", "")

	if groups := soldByRegex.FindStringSubmatch(htmlutil.CleanText(row.Text())); len(groups) >= 2 {
		item.Seller = strings.TrimSpace(groups[1])
	}

	qtyText := htmlutil.CleanText(row.Find(".item-view-qty, .od-item-view-qty").First().Text())
	if groups := quantityRegex.FindStringSubmatch(qtyText); len(groups) >= 2 {
		if qty, err := strconv.Atoi(groups[1]); err == nil && qty > 0 {
			item.Quantity = qty
		}
	}

	return item, true
}
