package orders

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"ordervault/lib/htmlutil"
	"ordervault/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	orderRowSelector = ".order-card, .js-order-card, .a-box-group.order"
	nextPageSelector = "ul.a-pagination li.a-last a"

	// safety valve so a sticky "next" control can never page forever
	maxListPages = 10

	pageSettleDelay = time.Second * 2
)

type pagerState int

const (
	pagerIdle pagerState = iota
	pagerPaging
	pagerDone
	pagerErrored
)

// Pager walks the paginated order history view and produces the
// ordered, listing-deduplicated set of order references.
type Pager struct {
	page  Page
	base  *url.URL
	state pagerState
}

func NewPager(page Page, baseUrl string) (*Pager, error) {
	base, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}
	return &Pager{
		page:  page,
		base:  base,
		state: pagerIdle,
	}, nil
}

// Walk pages through the listing until no next control remains or the
// page cap is hit. The cap is a normal termination, not an error.
func (p *Pager) Walk(ctx context.Context) ([]RecordRef, error) {
	ctx, span := tracer.Start(ctx, "pager:Walk")
	defer span.End()

	p.state = pagerPaging
	seen := map[string]bool{}
	var refs []RecordRef

	for pages := 0; p.state == pagerPaging; pages++ {
		markup, err := p.page.HTML(ctx)
		if err != nil {
			p.state = pagerErrored
			span.RecordError(err)
			span.SetStatus(codes.Error, "listing page became unreadable")
			return refs, fmt.Errorf("read listing page: %w", err)
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			p.state = pagerErrored
			span.RecordError(err)
			span.SetStatus(codes.Error, "listing page failed to parse")
			return refs, fmt.Errorf("parse listing page: %w", err)
		}

		pageRefs := ParseOrderRows(doc, p.base)
		if len(pageRefs) == 0 {
			slog.DebugContext(ctx, "no order rows on page, stopping", "page", pages+1)
			p.state = pagerDone
			break
		}
		for _, ref := range pageRefs {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			refs = append(refs, ref)
		}
		slog.InfoContext(ctx, "scanned listing page", "page", pages+1, "orders", len(refs))

		if pages+1 >= maxListPages {
			slog.WarnContext(ctx, "hit pagination cap, stopping", "cap", maxListPages)
			p.state = pagerDone
			break
		}

		hasNext, err := p.page.Has(ctx, nextPageSelector)
		if err != nil {
			p.state = pagerErrored
			span.RecordError(err)
			return refs, fmt.Errorf("probe next page control: %w", err)
		}
		if !hasNext {
			p.state = pagerDone
			break
		}
		if err := p.page.Click(ctx, nextPageSelector); err != nil {
			p.state = pagerErrored
			span.RecordError(err)
			return refs, fmt.Errorf("advance to next page: %w", err)
		}
		if err := p.page.Sleep(ctx, pageSettleDelay); err != nil {
			p.state = pagerErrored
			return refs, err
		}
	}

	span.SetAttributes(attribute.Int("orders", len(refs)))
	return refs, nil
}

// ParseOrderRows extracts a RecordRef from every recognizable order
// row in the document. Extraction per row goes through three tiers:
// an order id embedded in a link's query string, an id-shaped code
// anywhere in a link target, and finally a bare currency amount paired
// with a synthesized id.
func ParseOrderRows(doc *goquery.Document, base *url.URL) []RecordRef {
	var refs []RecordRef
	doc.Find(orderRowSelector).Each(func(_ int, row *goquery.Selection) {
		ref, ok := recordRefFromRow(row, base)
		if !ok {
			return
		}
		refs = append(refs, ref)
	})
	return refs
}

func recordRefFromRow(row *goquery.Selection, base *url.URL) (RecordRef, bool) {
	rowText := htmlutil.CleanText(row.Text())
	amount, _ := textutil.ParseCurrency(rowText)

	// tier 1: a link that names the order id in its query string
	var ref RecordRef
	found := false
	row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		link, err := url.Parse(href)
		if err != nil {
			return true
		}
		id := link.Query().Get("orderID")
		if id == "" {
			return true
		}
		ref = RecordRef{
			ID:        id,
			DetailURL: resolveHref(base, href),
			RawAmount: amount,
		}
		found = true
		return false
	})
	if found {
		return ref, true
	}

	// tier 2: an id-shaped code embedded in any link target
	row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		id, ok := textutil.FindOrderID(href)
		if !ok {
			return true
		}
		ref = RecordRef{
			ID:        id,
			DetailURL: resolveHref(base, href),
			RawAmount: amount,
		}
		found = true
		return false
	})
	if found {
		return ref, true
	}

	// tier 2 also covers ids that only show up in the row's text
	if id, ok := textutil.FindOrderID(rowText); ok {
		return RecordRef{
			ID:        id,
			DetailURL: detailUrlForID(base, id),
			RawAmount: amount,
		}, true
	}

	// tier 3: nothing identifies the row, but a positive amount means
	// it is still a real transaction worth keeping
	if amount > 0 {
		return RecordRef{
			ID:        syntheticID(),
			RawAmount: amount,
			Synthetic: true,
		}, true
	}

	return RecordRef{}, false
}

func resolveHref(base *url.URL, href string) string {
	link, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(link).String()
}

func detailUrlForID(base *url.URL, id string) string {
	detail := *base
	detail.Path = "/gp/your-account/order-details"
	detail.RawQuery = url.Values{"orderID": {id}}.Encode()
	return detail.String()
}

func syntheticID() string {
	suffix, err := random.String(10)
	if err != nil {
		// rand failure leaves a timestamp-grade fallback
		suffix = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return "unknown-" + suffix
}
