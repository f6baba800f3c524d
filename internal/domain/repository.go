package domain

import "context"

// Method names an extraction strategy family
type Method string

const (
	MethodCatalogAPI     Method = "catalog-api"
	MethodMarkupScrape   Method = "markup-scrape"
	MethodSearchIndex    Method = "search-index"
	MethodEmbeddedFlight Method = "embedded-flight"
	MethodEmbeddedState  Method = "embedded-state"
	MethodDeepLink       Method = "deep-link"
)

// Strategy searches one retailer. Implementations never return errors:
// failures degrade to an empty or partial list.
type Strategy interface {
	Method() Method
	Search(ctx context.Context, q Query) []ProductRecord
}

// StrategyProvider builds strategies for retailer ids
type StrategyProvider interface {
	// Build returns nil when the id is unknown
	Build(id string, limit int) Strategy
	// DefaultIDs lists every fetching retailer followed by the deep-link-only ones
	DefaultIDs() []string
}
