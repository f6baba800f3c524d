package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/fetch"
	"github.com/pricelens/backend/internal/textutil"
	"github.com/rs/zerolog/log"
)

const (
	intelligentSearchPath = "/api/io/_v/api/intelligent-search/product_search/"
	legacySearchPath      = "/api/catalog_system/pub/products/search"
	catalogMaxProducts    = 50
)

type catalogProduct struct {
	ProductName string        `json:"productName"`
	Brand       string        `json:"brand"`
	Link        string        `json:"link"`
	LinkText    string        `json:"linkText"`
	Categories  []string      `json:"categories"`
	Items       []catalogItem `json:"items"`
}

type catalogItem struct {
	EAN    string `json:"ean"`
	Images []struct {
		ImageURL string `json:"imageUrl"`
	} `json:"images"`
	Sellers []struct {
		CommertialOffer catalogOffer `json:"commertialOffer"`
	} `json:"sellers"`
}

type catalogOffer struct {
	Price             float64 `json:"Price"`
	ListPrice         float64 `json:"ListPrice"`
	Tax               float64 `json:"Tax"`
	AvailableQuantity int     `json:"AvailableQuantity"`
}

// offer returns the first offer with stock, else the first offer.
func (i catalogItem) offer() (catalogOffer, bool) {
	if len(i.Sellers) == 0 {
		return catalogOffer{}, false
	}
	for _, s := range i.Sellers {
		if s.CommertialOffer.AvailableQuantity > 0 {
			return s.CommertialOffer, true
		}
	}
	return i.Sellers[0].CommertialOffer, true
}

func (i catalogItem) inStock() bool {
	o, ok := i.offer()
	return ok && o.AvailableQuantity > 0
}

// CatalogAPI queries a commerce platform's public catalog. The intelligent
// search dialect is tried first and the legacy catalog dialect is used
// whenever the first answer is unusable.
type CatalogAPI struct {
	retailer Retailer
	fetcher  Fetcher
	limit    int
}

// NewCatalogAPI creates a catalog strategy for r
func NewCatalogAPI(r Retailer, f Fetcher, limit int) *CatalogAPI {
	return &CatalogAPI{retailer: r, fetcher: f, limit: effectiveLimit(limit, catalogMaxProducts)}
}

func (s *CatalogAPI) Method() domain.Method { return domain.MethodCatalogAPI }

func (s *CatalogAPI) Search(ctx context.Context, q domain.Query) []domain.ProductRecord {
	term := q.Term()
	if term == "" {
		return nil
	}

	// A barcode query can hit products whose variants carry other EANs, so
	// the legacy dialect also runs when the first answer maps to nothing.
	var records []domain.ProductRecord
	products, err := s.intelligentSearch(ctx, term)
	if err == nil {
		records = s.mapProducts(products, q)
	}
	if len(records) == 0 {
		log.Debug().Err(err).Str("retailer", s.retailer.ID).Msg("[CATALOG] intelligent search unusable, trying legacy")
		products, err = s.legacySearch(ctx, q)
		if err != nil {
			log.Warn().Err(err).Str("retailer", s.retailer.ID).Msg("[CATALOG] legacy search failed")
			return nil
		}
		records = s.mapProducts(products, q)
	}

	log.Debug().Str("retailer", s.retailer.ID).Int("count", len(records)).Msg("[CATALOG] mapped products")
	return records
}

func (s *CatalogAPI) mapProducts(products []catalogProduct, q domain.Query) []domain.ProductRecord {
	records := make([]domain.ProductRecord, 0, len(products))
	for _, p := range products {
		if len(records) >= s.limit {
			break
		}
		rec, ok := s.mapProduct(p, q)
		if !ok {
			continue
		}
		records = append(records, finalize(rec, s.retailer))
	}
	return records
}

// decode rejects markup answers and unmarshals the body into v. A body
// served without a JSON content type is still decoded; some storefronts
// label their API responses text/plain.
func (s *CatalogAPI) decode(res *fetch.Response, v any) error {
	if res.IsHTML() {
		return domain.ErrBlocked
	}
	if !res.IsJSON() {
		log.Debug().Str("retailer", s.retailer.ID).Str("contentType", res.ContentType).Msg("[CATALOG] unexpected content type")
	}
	return json.Unmarshal(res.Body, v)
}

func (s *CatalogAPI) intelligentSearch(ctx context.Context, term string) ([]catalogProduct, error) {
	params := url.Values{}
	params.Set("query", term)
	params.Set("count", fmt.Sprintf("%d", s.limit))
	params.Set("locale", "es-CO")
	reqURL := strings.TrimRight(s.retailer.BaseURL, "/") + intelligentSearchPath + "?" + params.Encode()

	res, err := s.fetcher.Get(ctx, reqURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Products []catalogProduct `json:"products"`
	}
	if err := s.decode(res, &payload); err != nil {
		return nil, fmt.Errorf("decode intelligent search: %w", err)
	}
	if len(payload.Products) == 0 {
		return nil, fmt.Errorf("intelligent search returned no products")
	}
	return payload.Products, nil
}

func (s *CatalogAPI) legacySearch(ctx context.Context, q domain.Query) ([]catalogProduct, error) {
	base := strings.TrimRight(s.retailer.BaseURL, "/") + legacySearchPath
	var reqURL string
	if q.IsBarcodeSearch() {
		reqURL = base + "?fq=alternateIds_Ean:" + url.QueryEscape(q.Barcode)
	} else {
		reqURL = fmt.Sprintf("%s/%s?_from=0&_to=%d", base, url.PathEscape(q.Name), s.limit-1)
	}

	res, err := s.fetcher.Get(ctx, reqURL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}
	var products []catalogProduct
	if err := s.decode(res, &products); err != nil {
		return nil, fmt.Errorf("decode legacy search: %w", err)
	}
	return products, nil
}

func (s *CatalogAPI) mapProduct(p catalogProduct, q domain.Query) (domain.ProductRecord, bool) {
	item, ok := selectItem(p.Items, q.Barcode)
	if !ok {
		return domain.ProductRecord{}, false
	}
	offer, ok := item.offer()
	if !ok {
		return domain.ProductRecord{}, false
	}

	price := offer.Price
	if offer.Tax > 0 {
		price += offer.Tax
	}

	rec := domain.ProductRecord{
		Name:         p.ProductName,
		Brand:        p.Brand,
		Price:        textutil.PriceFromFloat(price),
		RegularPrice: textutil.PriceFromFloat(offer.ListPrice),
		Barcode:      item.EAN,
		ProductType:  categoryLeaf(p.Categories),
		Availability: availability(offer.AvailableQuantity > 0),
		URL:          s.productURL(p),
	}
	if len(item.Images) > 0 {
		rec.ImageURL = item.Images[0].ImageURL
	}
	return rec, true
}

// selectItem picks the variant to report. With a barcode only an item
// carrying that barcode qualifies.
func selectItem(items []catalogItem, barcode string) (catalogItem, bool) {
	if barcode != "" {
		var match *catalogItem
		for i := range items {
			if !textutil.SameBarcode(items[i].EAN, barcode) {
				continue
			}
			if items[i].inStock() {
				return items[i], true
			}
			if match == nil {
				match = &items[i]
			}
		}
		if match == nil {
			return catalogItem{}, false
		}
		return *match, true
	}

	for _, item := range items {
		if item.inStock() {
			return item, true
		}
	}
	if len(items) == 0 {
		return catalogItem{}, false
	}
	return items[0], true
}

func (s *CatalogAPI) productURL(p catalogProduct) string {
	if p.Link != "" {
		return absoluteURL(s.retailer.BaseURL, p.Link)
	}
	if p.LinkText != "" {
		return strings.TrimRight(s.retailer.BaseURL, "/") + "/" + p.LinkText + "/p"
	}
	return s.retailer.BaseURL
}

// categoryLeaf returns "Arroz" for ["/Despensa/Granos/Arroz/", "/Despensa/"].
func categoryLeaf(categories []string) string {
	if len(categories) == 0 {
		return ""
	}
	parts := strings.Split(strings.Trim(categories[0], "/"), "/")
	return strings.TrimSpace(parts[len(parts)-1])
}
