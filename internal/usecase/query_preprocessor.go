package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/textutil"
	"github.com/rs/zerolog/log"
)

// Limit bounds applied when the caller omits or overshoots productLimit
const (
	DefaultProductLimit = 20
	MinProductLimit     = 5
	MaxProductLimit     = 50
)

// QueryConfig holds the limits used when building queries
type QueryConfig struct {
	DefaultLimit int
	MinLimit     int
	MaxLimit     int
}

// QueryPreprocessor turns wire requests into normalized queries
type QueryPreprocessor struct {
	defaultLimit int
	minLimit     int
	maxLimit     int
}

// NewQueryPreprocessor creates a preprocessor, filling zero limits with defaults
func NewQueryPreprocessor(cfg QueryConfig) *QueryPreprocessor {
	p := &QueryPreprocessor{
		defaultLimit: cfg.DefaultLimit,
		minLimit:     cfg.MinLimit,
		maxLimit:     cfg.MaxLimit,
	}
	if p.minLimit <= 0 {
		p.minLimit = MinProductLimit
	}
	if p.maxLimit < p.minLimit {
		p.maxLimit = MaxProductLimit
	}
	if p.defaultLimit <= 0 {
		p.defaultLimit = DefaultProductLimit
	}
	return p
}

// BuildQuery validates req and produces the per-call query.
//
// An all-digit 8 to 14 character product name with no explicit barcode is
// treated as the barcode. Selected stores are deduplicated keeping the
// first occurrence, and store-catalog mode narrows the call to storeId.
func (p *QueryPreprocessor) BuildQuery(req *domain.SearchRequest, timeout time.Duration) (domain.Query, error) {
	if req == nil {
		return domain.Query{}, fmt.Errorf("%w: empty request", domain.ErrInvalidRequest)
	}

	name := textutil.CollapseSpaces(req.ProductName)
	barcode := textutil.DigitsOnly(req.EAN)
	if barcode == "" && textutil.LooksLikeBarcode(name) {
		log.Debug().Str("term", name).Msg("[QUERY] product name reclassified as barcode")
		barcode, name = name, ""
	}
	if name == "" && barcode == "" {
		return domain.Query{}, fmt.Errorf("%w: productName or ean is required", domain.ErrInvalidRequest)
	}

	q := domain.Query{
		Name:              name,
		Barcode:           barcode,
		Keywords:          cleanList(req.Keywords),
		Brand:             textutil.CollapseSpaces(req.Brand),
		Category:          textutil.CollapseSpaces(req.Category),
		Limit:             p.clampLimit(req.ProductLimit),
		Broad:             req.IsRadar,
		ExactMatch:        req.ExactMatch,
		IncludeOutOfStock: true,
		Mode:              domain.ModeProduct,
		Timeout:           timeout,
	}
	if req.IncludeOutOfStock != nil {
		q.IncludeOutOfStock = *req.IncludeOutOfStock
	}

	switch strings.TrimSpace(req.SearchMode) {
	case "", domain.ModeProduct:
		q.StoreIDs = storeIDs(req.SelectedStores)
	case domain.ModeStoreCatalog:
		storeID := strings.TrimSpace(req.StoreID)
		if storeID == "" {
			return domain.Query{}, fmt.Errorf("%w: storeId is required in store-catalog mode", domain.ErrInvalidRequest)
		}
		q.Mode = domain.ModeStoreCatalog
		q.StoreIDs = []string{storeID}
	default:
		return domain.Query{}, fmt.Errorf("%w: unknown searchMode %q", domain.ErrInvalidRequest, req.SearchMode)
	}

	return q, nil
}

func (p *QueryPreprocessor) clampLimit(limit *int) int {
	if limit == nil || *limit == 0 {
		return p.defaultLimit
	}
	switch {
	case *limit < p.minLimit:
		return p.minLimit
	case *limit > p.maxLimit:
		return p.maxLimit
	}
	return *limit
}

// storeIDs returns the selected ids in order without duplicates or blanks
func storeIDs(stores []domain.StoreRef) []string {
	if len(stores) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(stores))
	ids := make([]string, 0, len(stores))
	for _, s := range stores {
		id := strings.TrimSpace(s.ID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = textutil.CollapseSpaces(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
