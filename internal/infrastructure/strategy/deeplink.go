package strategy

import (
	"context"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// DeepLink performs no network IO. It hands the caller a prefilled search
// link for retailers that cannot be queried programmatically.
type DeepLink struct {
	retailer  Retailer
	searchURL string
}

// NewDeepLink creates a deep-link strategy for r
func NewDeepLink(r Retailer, searchURL string) *DeepLink {
	return &DeepLink{retailer: r, searchURL: searchURL}
}

func (s *DeepLink) Method() domain.Method { return domain.MethodDeepLink }

func (s *DeepLink) Search(_ context.Context, q domain.Query) []domain.ProductRecord {
	term := strings.TrimSpace(q.Term())
	if term == "" {
		return nil
	}
	link := fillTemplate(s.searchURL, term)
	rec := domain.ProductRecord{
		Name:         term,
		Barcode:      q.Barcode,
		Availability: domain.AvailabilityExternal,
		URL:          link,
		SourceURL:    link,
		ExternalLink: true,
	}
	return []domain.ProductRecord{finalize(rec, s.retailer)}
}
