package orders

import "time"

// RecordRef is one order discovered on the history listing. It only
// carries what the listing itself can tell us; everything else comes
// from the detail page.
type RecordRef struct {
	ID        string
	DetailURL string
	RawAmount float64
	// Synthetic marks ids that were made up because the listing row
	// exposed no real order id. Such ids are unique per extraction
	// attempt and must never be matched against prior runs.
	Synthetic bool
}

type Item struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	Seller     string  `json:"seller"`
	ImageURL   string  `json:"imageUrl"`
	ProductURL string  `json:"productUrl"`
}

// DetailedRecord is the fully populated (or degraded) form of one
// order. Field names are a stable contract consumed by the report
// renderer, do not rename the json tags.
type DetailedRecord struct {
	ID             string  `json:"id"`
	Date           string  `json:"date"`
	Amount         float64 `json:"amount"`
	NetAmount      float64 `json:"netAmount"`
	RefundAmount   float64 `json:"refundAmount"`
	Recipient      string  `json:"recipient"`
	Address        string  `json:"address"`
	PaymentMethod  string  `json:"paymentMethod"`
	TrackingNumber string  `json:"trackingNumber"`
	Items          []Item  `json:"items"`
	ScreenshotPath string  `json:"screenshotPath"`
	DetailURL      string  `json:"detailUrl"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type SnapshotMetadata struct {
	DateRange         DateRange `json:"dateRange"`
	TotalTransactions int       `json:"totalTransactions"`
	TotalAmount       float64   `json:"totalAmount"`
	GeneratedAt       string    `json:"generatedAt"`
	ScrapedAt         string    `json:"scrapedAt"`
}

// RunSnapshot is the persisted artifact of one run. Each run writes
// its own snapshot file, prior snapshots are never mutated.
type RunSnapshot struct {
	Metadata     SnapshotMetadata `json:"metadata"`
	Transactions []DetailedRecord `json:"transactions"`
}

const timestampLayout = time.RFC3339
