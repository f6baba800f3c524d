package strategy

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/textutil"
	"github.com/rs/zerolog/log"
)

const (
	markupMaxCards = 15
	markupMinPrice = 50
)

// Selectors locates product fields inside a search result page. Card is
// evaluated on the document, every other selector inside one card.
type Selectors struct {
	Card         string `yaml:"card"`
	Name         string `yaml:"name"`
	Price        string `yaml:"price"`
	RegularPrice string `yaml:"regular_price"`
	Link         string `yaml:"link"`
	Image        string `yaml:"image"`
	Brand        string `yaml:"brand"`
}

// MarkupConfig describes how to search one HTML storefront
type MarkupConfig struct {
	SearchURL         string
	FallbackSearchURL string
	Selectors         Selectors
	// PriceTransform rewrites raw price text before parsing. Optional.
	PriceTransform func(string) string
}

// MarkupScrape extracts products from server-rendered search pages.
type MarkupScrape struct {
	retailer Retailer
	fetcher  Fetcher
	cfg      MarkupConfig
	limit    int
}

// NewMarkupScrape creates a markup strategy for r
func NewMarkupScrape(r Retailer, f Fetcher, cfg MarkupConfig, limit int) *MarkupScrape {
	return &MarkupScrape{retailer: r, fetcher: f, cfg: cfg, limit: effectiveLimit(limit, markupMaxCards)}
}

func (s *MarkupScrape) Method() domain.Method { return domain.MethodMarkupScrape }

func (s *MarkupScrape) Search(ctx context.Context, q domain.Query) []domain.ProductRecord {
	term := q.Term()
	if term == "" {
		return nil
	}

	records := s.scrape(ctx, s.cfg.SearchURL, term, q.Barcode)
	if len(records) == 0 && s.cfg.FallbackSearchURL != "" {
		records = s.scrape(ctx, s.cfg.FallbackSearchURL, term, q.Barcode)
	}
	if len(records) == 0 && q.IsBarcodeSearch() && q.Name != "" {
		log.Debug().Str("retailer", s.retailer.ID).Msg("[MARKUP] no barcode hits, retrying by name")
		records = s.scrape(ctx, s.cfg.SearchURL, q.Name, "")
	}
	return records
}

func (s *MarkupScrape) scrape(ctx context.Context, template, term, barcode string) []domain.ProductRecord {
	if template == "" {
		return nil
	}
	pageURL := fillTemplate(template, term)

	res, err := s.fetcher.Get(ctx, pageURL, nil)
	if err != nil {
		log.Warn().Err(err).Str("retailer", s.retailer.ID).Msg("[MARKUP] fetch failed")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		log.Warn().Err(err).Str("retailer", s.retailer.ID).Msg("[MARKUP] parse failed")
		return nil
	}

	sel := s.cfg.Selectors
	records := make([]domain.ProductRecord, 0, s.limit)
	doc.Find(sel.Card).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= markupMaxCards || len(records) >= s.limit {
			return false
		}
		if rec, ok := s.parseCard(card, pageURL, barcode); ok {
			records = append(records, finalize(rec, s.retailer))
		}
		return true
	})

	if len(records) == 0 {
		log.Debug().Str("retailer", s.retailer.ID).Str("url", pageURL).Msg("[MARKUP] no product cards matched")
	}
	return records
}

func (s *MarkupScrape) parseCard(card *goquery.Selection, pageURL, barcode string) (domain.ProductRecord, bool) {
	sel := s.cfg.Selectors

	name := textutil.CollapseSpaces(card.Find(sel.Name).First().Text())
	if name == "" {
		return domain.ProductRecord{}, false
	}

	price := s.price(card, sel.Price)
	if price <= markupMinPrice {
		return domain.ProductRecord{}, false
	}

	link := pageURL
	if sel.Link != "" {
		linkSel := card.Find(sel.Link).First()
		if linkSel.Length() == 0 && goquery.NodeName(card) == "a" {
			linkSel = card
		}
		if href, ok := linkSel.Attr("href"); ok && strings.TrimSpace(href) != "" {
			link = absoluteURL(s.retailer.BaseURL, href)
		}
	}

	rec := domain.ProductRecord{
		Name:         name,
		Price:        price,
		RegularPrice: price,
		URL:          link,
		SourceURL:    pageURL,
		Availability: domain.AvailabilityInStock,
	}
	if sel.RegularPrice != "" {
		if regular := s.price(card, sel.RegularPrice); regular > 0 {
			rec.RegularPrice = regular
		}
	}
	if sel.Brand != "" {
		rec.Brand = textutil.CollapseSpaces(card.Find(sel.Brand).First().Text())
	}
	if sel.Image != "" {
		img := card.Find(sel.Image).First()
		src := img.AttrOr("src", "")
		if src == "" || strings.HasPrefix(src, "data:") {
			src = img.AttrOr("data-src", "")
		}
		rec.ImageURL = absoluteURL(s.retailer.BaseURL, src)
	}

	switch {
	case barcode != "":
		rec.Barcode = barcode
	default:
		rec.Barcode = textutil.BarcodeFromURL(link)
	}
	return rec, true
}

func (s *MarkupScrape) price(card *goquery.Selection, selector string) int {
	if selector == "" {
		return 0
	}
	text := strings.TrimSpace(card.Find(selector).First().Text())
	if text == "" {
		return 0
	}
	if s.cfg.PriceTransform != nil {
		text = s.cfg.PriceTransform(text)
	}
	return textutil.ParsePrice(text)
}
