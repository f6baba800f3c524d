// Package strategy implements the per-retailer extraction strategies.
//
// Every strategy satisfies domain.Strategy: it receives the call context
// (whose deadline is the timeout budget) and the normalized query, and
// returns whatever records it could extract. Transport, status and parse
// failures are logged and degrade to an empty or partial list.
package strategy

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/fetch"
	"github.com/pricelens/backend/internal/textutil"
)

// Fetcher is the outbound HTTP surface strategies depend on
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) (*fetch.Response, error)
	PostJSON(ctx context.Context, url string, headers map[string]string, body any) (*fetch.Response, error)
}

// Retailer identifies the store a strategy searches
type Retailer struct {
	ID      string
	Name    string
	BaseURL string
}

// now is replaced in tests
var now = time.Now

// finalize derives every computed field of a raw record and stamps it
// with the retailer identity.
func finalize(rec domain.ProductRecord, r Retailer) domain.ProductRecord {
	if rec.Store == "" {
		rec.Store = r.Name
	}
	if rec.StoreID == "" {
		rec.StoreID = r.ID
	}
	rec.Name = textutil.CollapseSpaces(rec.Name)
	rec.Brand = strings.TrimSpace(rec.Brand)
	rec.Barcode = textutil.DigitsOnly(rec.Barcode)

	if rec.RegularPrice < rec.Price {
		rec.RegularPrice = rec.Price
	}
	rec.DiscountPct = textutil.DiscountPercent(rec.RegularPrice, rec.Price)

	qty := textutil.NormalizeAmount(rec.Name)
	rec.Presentation = qty.Presentation
	rec.Amount = qty.Amount
	rec.Unit = qty.Unit
	rec.PricePerUnit = textutil.PricePerUnit(rec.Price, rec.Amount)

	rec.VerifiedAt = now().UTC().Format("2006-01-02")

	switch rec.Availability {
	case domain.AvailabilityOutOfStock:
		if !strings.HasPrefix(rec.Name, domain.OutOfStockPrefix) {
			rec.Name = domain.OutOfStockPrefix + rec.Name
		}
	case domain.AvailabilityExternal:
	default:
		rec.Availability = domain.AvailabilityInStock
	}

	if rec.SourceURL == "" {
		rec.SourceURL = rec.URL
	}
	return rec
}

func availability(inStock bool) string {
	if inStock {
		return domain.AvailabilityInStock
	}
	return domain.AvailabilityOutOfStock
}

// absoluteURL resolves link against base. Absolute links are returned as is.
func absoluteURL(base, link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	if ref.IsAbs() || base == "" {
		return link
	}
	b, err := url.Parse(base)
	if err != nil {
		return link
	}
	if !strings.HasPrefix(link, "/") && !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	return b.ResolveReference(ref).String()
}

// fillTemplate replaces the {query} placeholder with the escaped term.
func fillTemplate(template, term string) string {
	return strings.ReplaceAll(template, "{query}", url.QueryEscape(term))
}

func effectiveLimit(limit, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}
