package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/textutil"
	"github.com/rs/zerolog/log"
)

const indexMaxHits = 15

// IndexFields names the hit attributes holding each product field.
// Dotted names address nested objects.
type IndexFields struct {
	Name         string `yaml:"name"`
	Brand        string `yaml:"brand"`
	Price        string `yaml:"price"`
	RegularPrice string `yaml:"regular_price"`
	URL          string `yaml:"url"`
	Image        string `yaml:"image"`
	InStock      string `yaml:"in_stock"`
	Barcode      string `yaml:"barcode"`
	Category     string `yaml:"category"`
}

// WithDefaults fills every empty field name with its conventional default.
func (f IndexFields) WithDefaults() IndexFields {
	def := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return IndexFields{
		Name:         def(f.Name, "name"),
		Brand:        def(f.Brand, "brand"),
		Price:        def(f.Price, "price"),
		RegularPrice: def(f.RegularPrice, "listPrice"),
		URL:          def(f.URL, "url"),
		Image:        def(f.Image, "image"),
		InStock:      def(f.InStock, "inStock"),
		Barcode:      def(f.Barcode, "barcode"),
		Category:     def(f.Category, "category"),
	}
}

// IndexConfig locates a hosted search index
type IndexConfig struct {
	Host   string      `yaml:"host"`
	AppID  string      `yaml:"app_id"`
	APIKey string      `yaml:"api_key"`
	Name   string      `yaml:"name"`
	Fields IndexFields `yaml:"fields"`
}

// SearchIndex queries an Algolia-compatible hosted index.
type SearchIndex struct {
	retailer Retailer
	fetcher  Fetcher
	cfg      IndexConfig
	limit    int
}

// NewSearchIndex creates an index strategy for r
func NewSearchIndex(r Retailer, f Fetcher, cfg IndexConfig, limit int) *SearchIndex {
	cfg.Fields = cfg.Fields.WithDefaults()
	return &SearchIndex{retailer: r, fetcher: f, cfg: cfg, limit: effectiveLimit(limit, indexMaxHits)}
}

func (s *SearchIndex) Method() domain.Method { return domain.MethodSearchIndex }

func (s *SearchIndex) Search(ctx context.Context, q domain.Query) []domain.ProductRecord {
	term := q.Term()
	if term == "" {
		return nil
	}

	reqURL := fmt.Sprintf("%s/1/indexes/%s/query", strings.TrimRight(s.cfg.Host, "/"), url.PathEscape(s.cfg.Name))
	headers := map[string]string{
		"X-Algolia-Application-Id": s.cfg.AppID,
		"X-Algolia-API-Key":        s.cfg.APIKey,
	}
	body := map[string]string{
		"params": "query=" + url.QueryEscape(term) + "&hitsPerPage=" + strconv.Itoa(indexMaxHits),
	}

	res, err := s.fetcher.PostJSON(ctx, reqURL, headers, body)
	if err != nil {
		log.Warn().Err(err).Str("retailer", s.retailer.ID).Msg("[INDEX] query failed")
		return nil
	}

	var payload struct {
		Hits []map[string]any `json:"hits"`
	}
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		log.Warn().Err(err).Str("retailer", s.retailer.ID).Msg("[INDEX] decode failed")
		return nil
	}

	records := make([]domain.ProductRecord, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		if len(records) >= s.limit {
			break
		}
		if rec, ok := s.mapHit(hit); ok {
			records = append(records, finalize(rec, s.retailer))
		}
	}
	return records
}

func (s *SearchIndex) mapHit(hit map[string]any) (domain.ProductRecord, bool) {
	f := s.cfg.Fields

	name := pickString(hit, f.Name)
	if name == "" {
		return domain.ProductRecord{}, false
	}
	price := pickPrice(hit, f.Price)
	if price <= 0 {
		return domain.ProductRecord{}, false
	}

	rec := domain.ProductRecord{
		Name:         name,
		Brand:        pickString(hit, f.Brand),
		Price:        price,
		RegularPrice: pickPrice(hit, f.RegularPrice),
		URL:          absoluteURL(s.retailer.BaseURL, pickString(hit, f.URL)),
		ImageURL:     absoluteURL(s.retailer.BaseURL, pickString(hit, f.Image)),
		Barcode:      pickString(hit, f.Barcode),
		ProductType:  pickString(hit, f.Category),
		Availability: availability(pickBool(hit, f.InStock, true)),
	}
	if rec.URL == "" {
		rec.URL = s.retailer.BaseURL
	}
	return rec, true
}

func lookup(hit map[string]any, path string) (any, bool) {
	var cur any = hit
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func pickString(hit map[string]any, path string) string {
	v, ok := lookup(hit, path)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func pickPrice(hit map[string]any, path string) int {
	v, ok := lookup(hit, path)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return textutil.PriceFromFloat(t)
	case string:
		return textutil.ParsePrice(t)
	}
	return 0
}

func pickBool(hit map[string]any, path string, fallback bool) bool {
	v, ok := lookup(hit, path)
	if !ok || v == nil {
		return fallback
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t > 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "false", "0", "no", "out_of_stock", "outofstock":
			return false
		}
		return true
	}
	return fallback
}
