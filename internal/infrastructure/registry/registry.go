// Package registry maps retailer ids to configured extraction strategies.
package registry

import (
	"fmt"
	"strings"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/strategy"
	"github.com/rs/zerolog/log"
)

// RetailerConfig is the static description of one retailer
type RetailerConfig struct {
	ID                string               `yaml:"id"`
	Name              string               `yaml:"name"`
	Domains           []string             `yaml:"domains"`
	Method            domain.Method        `yaml:"method"`
	BaseURL           string               `yaml:"base_url"`
	SearchURL         string               `yaml:"search_url"`
	FallbackSearchURL string               `yaml:"fallback_search_url"`
	Selectors         strategy.Selectors   `yaml:"selectors"`
	Index             strategy.IndexConfig `yaml:"index"`

	// PriceTransform can only be set in code
	PriceTransform func(string) string `yaml:"-"`
}

// RetailerInfo is the public listing of a retailer
type RetailerInfo struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Method       domain.Method `json:"method"`
	Domains      []string      `json:"domains"`
	ExternalLink bool          `json:"externalLink"`
}

// Registry holds the immutable retailer table. It is safe for concurrent
// use because nothing mutates it after construction.
type Registry struct {
	retailers map[string]RetailerConfig
	order     []string
	fetcher   strategy.Fetcher
}

// New validates configs and builds a registry. Table order is preserved.
func New(fetcher strategy.Fetcher, configs []RetailerConfig) (*Registry, error) {
	r := &Registry{
		retailers: make(map[string]RetailerConfig, len(configs)),
		order:     make([]string, 0, len(configs)),
		fetcher:   fetcher,
	}
	for _, cfg := range configs {
		if cfg.Name == "" {
			cfg.Name = cfg.ID
		}
		if err := validate(cfg); err != nil {
			return nil, err
		}
		if _, dup := r.retailers[cfg.ID]; dup {
			return nil, fmt.Errorf("retailer %q: duplicate id", cfg.ID)
		}
		r.retailers[cfg.ID] = cfg
		r.order = append(r.order, cfg.ID)
	}
	return r, nil
}

func validate(cfg RetailerConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("retailer without id")
	}

	switch cfg.Method {
	case domain.MethodCatalogAPI:
		if cfg.BaseURL == "" {
			return fmt.Errorf("retailer %q: catalog-api requires base_url", cfg.ID)
		}
	case domain.MethodMarkupScrape:
		if cfg.SearchURL == "" {
			return fmt.Errorf("retailer %q: markup-scrape requires search_url", cfg.ID)
		}
		if cfg.Selectors.Card == "" || cfg.Selectors.Name == "" || cfg.Selectors.Price == "" {
			return fmt.Errorf("retailer %q: markup-scrape requires card, name and price selectors", cfg.ID)
		}
	case domain.MethodSearchIndex:
		if cfg.Index.Host == "" || cfg.Index.Name == "" {
			return fmt.Errorf("retailer %q: search-index requires index host and name", cfg.ID)
		}
		if cfg.Index.APIKey == "" {
			log.Warn().Str("retailer", cfg.ID).Msg("[REGISTRY] search-index retailer has no api_key, set index.api_key in the overrides file")
		}
	case domain.MethodEmbeddedFlight, domain.MethodEmbeddedState, domain.MethodDeepLink:
		if cfg.SearchURL == "" {
			return fmt.Errorf("retailer %q: %s requires search_url", cfg.ID, cfg.Method)
		}
	default:
		return fmt.Errorf("retailer %q: unknown method %q", cfg.ID, cfg.Method)
	}
	return nil
}

// Build returns the strategy for id, or nil when the id is unknown.
func (r *Registry) Build(id string, limit int) domain.Strategy {
	cfg, ok := r.Lookup(id)
	if !ok {
		return nil
	}
	retailer := strategy.Retailer{ID: cfg.ID, Name: cfg.Name, BaseURL: cfg.BaseURL}

	switch cfg.Method {
	case domain.MethodCatalogAPI:
		return strategy.NewCatalogAPI(retailer, r.fetcher, limit)
	case domain.MethodMarkupScrape:
		return strategy.NewMarkupScrape(retailer, r.fetcher, strategy.MarkupConfig{
			SearchURL:         cfg.SearchURL,
			FallbackSearchURL: cfg.FallbackSearchURL,
			Selectors:         cfg.Selectors,
			PriceTransform:    cfg.PriceTransform,
		}, limit)
	case domain.MethodSearchIndex:
		return strategy.NewSearchIndex(retailer, r.fetcher, cfg.Index, limit)
	case domain.MethodEmbeddedFlight:
		return strategy.NewEmbeddedState(retailer, r.fetcher, strategy.EmbeddedConfig{
			SearchURL: cfg.SearchURL,
			Variant:   strategy.VariantFlight,
		}, limit)
	case domain.MethodEmbeddedState:
		return strategy.NewEmbeddedState(retailer, r.fetcher, strategy.EmbeddedConfig{
			SearchURL: cfg.SearchURL,
			Variant:   strategy.VariantState,
		}, limit)
	case domain.MethodDeepLink:
		return strategy.NewDeepLink(retailer, cfg.SearchURL)
	}
	return nil
}

// DefaultIDs lists every fetching retailer in table order followed by the
// deep-link-only retailers.
func (r *Registry) DefaultIDs() []string {
	ids := make([]string, 0, len(r.order))
	var deepLinks []string
	for _, id := range r.order {
		if r.retailers[id].Method == domain.MethodDeepLink {
			deepLinks = append(deepLinks, id)
			continue
		}
		ids = append(ids, id)
	}
	return append(ids, deepLinks...)
}

// Lookup returns the configuration of id.
func (r *Registry) Lookup(id string) (RetailerConfig, bool) {
	cfg, ok := r.retailers[id]
	return cfg, ok
}

// Retailers returns the public listing in DefaultIDs order.
func (r *Registry) Retailers() []RetailerInfo {
	ids := r.DefaultIDs()
	out := make([]RetailerInfo, 0, len(ids))
	for _, id := range ids {
		cfg, _ := r.Lookup(id)
		domains := cfg.Domains
		if domains == nil {
			domains = []string{}
		}
		out = append(out, RetailerInfo{
			ID:           cfg.ID,
			Name:         cfg.Name,
			Method:       cfg.Method,
			Domains:      domains,
			ExternalLink: cfg.Method == domain.MethodDeepLink,
		})
	}
	return out
}
