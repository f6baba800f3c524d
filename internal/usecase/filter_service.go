package usecase

import (
	"strings"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/textutil"
	"github.com/rs/zerolog/log"
)

// Token length floors, counted in runes
const (
	minBrandTokenLen = 2
	minTermTokenLen  = 3
)

// Coverage required from the name tokens when ExactMatch is off
const (
	shortQueryCoverage = 1.0  // 1 or 2 name tokens
	longQueryCoverage  = 0.75 // 3 or more name tokens
	minSellablePrice   = 1
)

// DefaultCompetitorExclusions maps a brand to the competing brands whose
// products are never returned when the query names that brand.
var DefaultCompetitorExclusions = map[string][]string{
	"diana": {"roa", "florhuila", "flor huila", "carolina"},
}

// FilterConfig holds configuration for the filter service
type FilterConfig struct {
	CompetitorExclusions map[string][]string
}

// FilterService decides which raw candidates answer a query
type FilterService struct {
	exclusions map[string][]string
}

// NewFilterService creates a filter service. A nil exclusion map selects
// DefaultCompetitorExclusions; an empty one disables exclusions.
func NewFilterService(cfg FilterConfig) *FilterService {
	exclusions := cfg.CompetitorExclusions
	if exclusions == nil {
		exclusions = DefaultCompetitorExclusions
	}
	normalized := make(map[string][]string, len(exclusions))
	for brand, competitors := range exclusions {
		key := textutil.Normalize(brand)
		if key == "" {
			continue
		}
		for _, c := range competitors {
			if c = textutil.Normalize(c); c != "" {
				normalized[key] = append(normalized[key], c)
			}
		}
	}
	return &FilterService{exclusions: normalized}
}

// queryTerms are the normalized pieces of a query, computed once per call
type queryTerms struct {
	name        []string
	keywords    []string
	brand       []string
	category    []string
	competitors []string
}

// Filter keeps the records that satisfy q. It never reorders and is
// idempotent: filtering its own output returns the same slice contents.
func (s *FilterService) Filter(records []domain.ProductRecord, q domain.Query) []domain.ProductRecord {
	terms := s.terms(q)
	kept := make([]domain.ProductRecord, 0, len(records))
	rejected := 0
	for _, rec := range records {
		if s.accept(rec, q, terms) {
			kept = append(kept, rec)
			continue
		}
		rejected++
	}
	log.Debug().Int("kept", len(kept)).Int("rejected", rejected).Msg("[FILTER] candidates filtered")
	return kept
}

func (s *FilterService) terms(q domain.Query) queryTerms {
	t := queryTerms{
		name:     textutil.Tokens(q.Name, minTermTokenLen),
		keywords: textutil.Tokens(strings.Join(q.Keywords, " "), minTermTokenLen),
		brand:    textutil.Tokens(q.Brand, minBrandTokenLen),
		category: textutil.Tokens(q.Category, minTermTokenLen),
	}

	queryText := " " + textutil.Normalize(q.Brand+" "+q.Name) + " "
	for brand, competitors := range s.exclusions {
		if !strings.Contains(queryText, " "+brand+" ") {
			continue
		}
		for _, c := range competitors {
			if !strings.Contains(queryText, " "+c+" ") {
				t.competitors = append(t.competitors, c)
			}
		}
	}
	return t
}

func (s *FilterService) accept(rec domain.ProductRecord, q domain.Query, t queryTerms) bool {
	if rec.ExternalLink {
		return true
	}
	if rec.Price <= minSellablePrice {
		return false
	}
	if !q.IncludeOutOfStock && !rec.InStock() {
		return false
	}

	if q.IsBarcodeSearch() {
		barcode := textutil.DigitsOnly(rec.Barcode)
		return barcode == "" || barcode == textutil.DigitsOnly(q.Barcode)
	}

	text := textutil.Normalize(rec.Name + " " + rec.Brand)

	for _, kw := range t.keywords {
		if !textutil.ContainsToken(text, kw) {
			return false
		}
	}

	if len(t.name) > 0 {
		if q.ExactMatch {
			if countTokens(text, t.name) < len(t.name) {
				return false
			}
		} else {
			withType := textutil.Normalize(rec.Name + " " + rec.Brand + " " + rec.ProductType)
			coverage := float64(countTokens(withType, t.name)) / float64(len(t.name))
			required := shortQueryCoverage
			if len(t.name) >= 3 {
				required = longQueryCoverage
			}
			if coverage < required {
				return false
			}
		}
	}

	for _, b := range t.brand {
		if !textutil.ContainsToken(text, b) {
			return false
		}
	}

	if len(t.competitors) > 0 {
		padded := " " + text + " "
		for _, c := range t.competitors {
			if strings.Contains(padded, " "+c+" ") {
				return false
			}
		}
	}

	if len(t.category) > 0 {
		hits := countTokens(textutil.Normalize(rec.Name+" "+rec.ProductType), t.category)
		log.Debug().Str("name", rec.Name).Int("categoryHits", hits).Int("categoryTokens", len(t.category)).Msg("[FILTER] category signal")
	}
	return true
}

func countTokens(text string, tokens []string) int {
	n := 0
	for _, tok := range tokens {
		if textutil.ContainsToken(text, tok) {
			n++
		}
	}
	return n
}
