package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const detailPageFixture = `
<html><body>
	<div id="orderDetails">
		<span class="order-date-invoice-item">Ordered on March 5, 2024</span>
		<div class="a-column">
			<span class="displayAddressFullName">Jordan Smith</span>
			<ul class="displayAddressUL">
				<li class="displayAddressAddressLine1">123 Main St</li>
				<li class="displayAddressCityStateOrRegionPostalCode">Springfield, IL 62704</li>
			</ul>
		</div>
		<div class="pmts-payment-instrument-detail-box-paystationpaymentmethod">Visa ending in 4242</div>
		<span class="tracking-id">TBA123456789012</span>
		<div id="od-subtotals">
			<span class="a-text-bold">Grand Total: $55.00</span>
		</div>
		<div class="refund-block">
			<span>Refund Total</span>
			<span>$12.50</span>
		</div>
		<div class="yohtmlc-item">
			<img src="https://img.example.com/widget.jpg"/>
			<a class="yohtmlc-product-title" href="/dp/B000TEST12">Widget Deluxe</a>
			<span class="yohtmlc-item-price">$25.00</span>
			<span>Sold by: Widget Co</span>
		</div>
		<div class="yohtmlc-item">
			<span class="yohtmlc-item-price">$30.00</span>
		</div>
	</div>
</body></html>`

func TestExtractDetailFullDocument(t *testing.T) {
	doc := mustParse(t, detailPageFixture)
	ref := RecordRef{
		ID:        "113-1234567-1234567",
		DetailURL: "https://www.example.com/details?orderID=113-1234567-1234567",
		RawAmount: 55.00,
	}

	record := ExtractDetail(context.Background(), doc, ref)

	require.Equal(t, ref.ID, record.ID)
	require.Equal(t, ref.DetailURL, record.DetailURL)
	require.Contains(t, record.Date, "March 5, 2024")
	require.Equal(t, 55.00, record.Amount)
	require.Equal(t, 12.50, record.RefundAmount)
	require.Equal(t, record.Amount-record.RefundAmount, record.NetAmount)
	require.Equal(t, "Jordan Smith", record.Recipient)
	require.Contains(t, record.Address, "123 Main St")
	require.Contains(t, record.Address, "Springfield")
	require.Equal(t, "Visa ending in 4242", record.PaymentMethod)
	require.Equal(t, "TBA123456789012", record.TrackingNumber)

	// the second item row has no product title and gets dropped
	require.Len(t, record.Items, 1)
	item := record.Items[0]
	require.Equal(t, "Widget Deluxe", item.Name)
	require.Equal(t, 25.00, item.Price)
	require.Equal(t, 1, item.Quantity)
	require.Equal(t, "Widget Co", item.Seller)
	require.Equal(t, "https://img.example.com/widget.jpg", item.ImageURL)
	require.Equal(t, "/dp/B000TEST12", item.ProductURL)
}

func TestExtractDetailSoftMisses(t *testing.T) {
	doc := mustParse(t, `<html><body><p>nothing recognizable</p></body></html>`)
	ref := RecordRef{ID: "111-0000000-0000000", RawAmount: 7.5}

	record := ExtractDetail(context.Background(), doc, ref)

	// every field independently defaults instead of failing the record
	require.Equal(t, "111-0000000-0000000", record.ID)
	require.Equal(t, "", record.Date)
	require.Equal(t, 7.5, record.Amount, "amount falls back to the listing amount")
	require.Equal(t, 0.0, record.RefundAmount)
	require.Equal(t, 7.5, record.NetAmount)
	require.Equal(t, "", record.Recipient)
	require.Equal(t, "", record.TrackingNumber)
	require.Empty(t, record.Items)
}

func TestRefundAmountFromParentText(t *testing.T) {
	doc := mustParse(t, `
		<div class="tooltip">
			<span>Refund Total</span> issued for $8.25 on this order
		</div>
	`)
	require.Equal(t, 8.25, extractRefundAmount(doc))
}

func TestRefundAmountFirstMatchWins(t *testing.T) {
	// the tooltip renders several amounts; the first one adjacent to
	// the label is the refund total
	doc := mustParse(t, `
		<div class="tooltip">
			<span>Refund Total</span>
			<span>$3.00</span>
			<span>$99.99</span>
		</div>
	`)
	require.Equal(t, 3.00, extractRefundAmount(doc))
}

func TestRefundAmountAbsent(t *testing.T) {
	doc := mustParse(t, `<html><body><p>no refunds here, just $10.00 of goods</p></body></html>`)
	require.Equal(t, 0.0, extractRefundAmount(doc))
}

func TestRefundAmountDocumentRegexFallback(t *testing.T) {
	// no structural refund marker anywhere, only flowing text
	doc := mustParse(t, `<html><body><p>Summary Refund Total for your order was $12.50 in March</p></body></html>`)
	require.Equal(t, 12.50, extractRefundAmount(doc))
}

func TestExtractDateRegexFallback(t *testing.T) {
	doc := mustParse(t, `<html><body><p>Your order from 2024-03-05 shipped.</p></body></html>`)
	record := ExtractDetail(context.Background(), doc, RecordRef{ID: "x"})
	require.Equal(t, "2024-03-05", record.Date)
}
