package strategy

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/textutil"
	"github.com/rs/zerolog/log"
)

// EmbeddedVariant selects how product objects are serialized in the page.
type EmbeddedVariant string

const (
	// VariantFlight pages carry JSON inside JS string literals (quotes escaped as \").
	VariantFlight EmbeddedVariant = "flight"
	// VariantState pages carry raw object literals inside a script tag.
	VariantState EmbeddedVariant = "state"
)

const (
	windowBefore     = 300
	windowAfter      = 1500
	flightMaxRecords = 15
	stateMaxRecords  = 30
	anchorMinRunes   = 2
	anchorMaxRunes   = 200
)

// keyPattern matches "key": with raw or backslash-escaped quotes.
func keyPattern(keys ...string) *regexp.Regexp {
	return regexp.MustCompile(`\\?"(?:` + strings.Join(keys, "|") + `)\\?"\s*:\s*`)
}

var (
	productNameKey = keyPattern("productName")
	plainNameKey   = keyPattern("name")
	barcodeKeys    = keyPattern("ean", "gtin13", "gtin", "barcode")
	imageKeys      = keyPattern("image", "imageUrl", "thumbnail")
	brandKeys      = keyPattern("brand")
	stockKeys      = keyPattern("stock", "availableQuantity", "inventory")
	linkKeys       = keyPattern("url", "link", "slug", "href")
	categoryKeys   = keyPattern("categoryName", "category")
	merchantKeys   = keyPattern("sellerName", "merchantName")
	lowPriceKeys   = keyPattern("lowPrice")
	promoKeys      = keyPattern("benefitValue", "promotionPrice", "promoPrice")
	netPriceKeys   = keyPattern("netPrice")
	fullPriceKey   = keyPattern("fullPrice")
	basePriceKey   = keyPattern("basePrice")
	priceKey       = keyPattern("price")
	discountKeys   = keyPattern("discountPercentage")

	// a "name" nested in one of these objects is not a product anchor
	nestedObjectTail = regexp.MustCompile(`(?:brand|seller|category|store)\\?"\s*:\s*\{[^{}]*$`)
	siblingBoundary  = regexp.MustCompile(`\}\s*,\s*\{`)
	numberLiteral    = regexp.MustCompile(`^-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)
	flightUnescaper  = strings.NewReplacer(`\\`, `\`, `\"`, `"`)
)

// EmbeddedConfig describes a page whose search results are embedded as
// serialized state.
type EmbeddedConfig struct {
	SearchURL string
	Variant   EmbeddedVariant
}

// EmbeddedState extracts products from state serialized into the search
// page HTML using a windowed fragment scan: every product name is an
// anchor and the remaining fields are read from a bounded window around it.
type EmbeddedState struct {
	retailer Retailer
	fetcher  Fetcher
	cfg      EmbeddedConfig
	limit    int
}

// NewEmbeddedState creates an embedded-state strategy for r
func NewEmbeddedState(r Retailer, f Fetcher, cfg EmbeddedConfig, limit int) *EmbeddedState {
	ceiling := flightMaxRecords
	if cfg.Variant == VariantState {
		ceiling = stateMaxRecords
	}
	return &EmbeddedState{retailer: r, fetcher: f, cfg: cfg, limit: effectiveLimit(limit, ceiling)}
}

func (s *EmbeddedState) Method() domain.Method {
	if s.cfg.Variant == VariantState {
		return domain.MethodEmbeddedState
	}
	return domain.MethodEmbeddedFlight
}

func (s *EmbeddedState) Search(ctx context.Context, q domain.Query) []domain.ProductRecord {
	term := q.Term()
	if term == "" {
		return nil
	}
	pageURL := fillTemplate(s.cfg.SearchURL, term)

	res, err := s.fetcher.Get(ctx, pageURL, nil)
	if err != nil {
		log.Warn().Err(err).Str("retailer", s.retailer.ID).Msg("[EMBEDDED] fetch failed")
		return nil
	}

	records := s.scan(string(res.Body), pageURL)
	if len(records) == 0 {
		log.Debug().Str("retailer", s.retailer.ID).Msg("[EMBEDDED] no product fragments found")
	}
	return records
}

type scanned struct {
	record   domain.ProductRecord
	merchant string
}

func (s *EmbeddedState) scan(body, pageURL string) []domain.ProductRecord {
	anchors := findAnchors(body)

	found := make([]scanned, 0, s.limit)
	for i, a := range anchors {
		if len(found) >= s.limit {
			break
		}
		w := fragmentWindow{body: body, anchor: a}
		w.start = max(0, a.start-windowBefore)
		if i > 0 {
			w.start = max(w.start, anchors[i-1].end)
		}
		if locs := siblingBoundary.FindAllStringIndex(body[w.start:a.start], -1); len(locs) > 0 {
			w.start += locs[len(locs)-1][1]
		}
		w.end = min(len(body), a.end+windowAfter)
		if i+1 < len(anchors) {
			w.end = min(w.end, anchors[i+1].start)
		}

		rec, ok := s.fromWindow(w, pageURL)
		if !ok {
			continue
		}
		merchant := ""
		if s.cfg.Variant == VariantState {
			merchant = w.str(merchantKeys)
		}
		found = append(found, scanned{record: rec, merchant: merchant})
	}

	if s.cfg.Variant == VariantState {
		return s.groupByMerchant(found)
	}
	records := make([]domain.ProductRecord, 0, len(found))
	for _, f := range found {
		records = append(records, finalize(f.record, s.retailer))
	}
	return records
}

func (s *EmbeddedState) fromWindow(w fragmentWindow, pageURL string) (domain.ProductRecord, bool) {
	price, regular := resolvePrices(w)
	if price <= 0 {
		return domain.ProductRecord{}, false
	}

	link := w.str(linkKeys)
	if link == "" {
		link = pageURL
	} else {
		link = absoluteURL(s.retailer.BaseURL, link)
	}

	rec := domain.ProductRecord{
		Name:         w.anchor.name,
		Brand:        w.brand(),
		Price:        price,
		RegularPrice: regular,
		Barcode:      w.raw(barcodeKeys),
		ImageURL:     absoluteURL(s.retailer.BaseURL, w.str(imageKeys)),
		ProductType:  w.str(categoryKeys),
		Availability: availability(w.inStock()),
		URL:          link,
		SourceURL:    pageURL,
	}
	return rec, true
}

// groupByMerchant gives every marketplace seller its own store identity and
// orders the output by first-seen seller.
func (s *EmbeddedState) groupByMerchant(found []scanned) []domain.ProductRecord {
	var order []string
	groups := make(map[string][]domain.ProductRecord)
	for _, f := range found {
		key := textutil.Slug(f.merchant)
		store := s.retailer
		if key != "" {
			store.ID = s.retailer.ID + ":" + key
			store.Name = f.merchant + " (" + s.retailer.Name + ")"
		}
		if _, ok := groups[store.ID]; !ok {
			order = append(order, store.ID)
		}
		groups[store.ID] = append(groups[store.ID], finalize(f.record, store))
	}

	records := make([]domain.ProductRecord, 0, len(found))
	for _, id := range order {
		records = append(records, groups[id]...)
	}
	return records
}

type anchor struct {
	start, end int
	name       string
}

func findAnchors(body string) []anchor {
	anchors := collectAnchors(body, productNameKey, false)
	if len(anchors) == 0 {
		anchors = collectAnchors(body, plainNameKey, true)
	}
	return anchors
}

func collectAnchors(body string, key *regexp.Regexp, skipNested bool) []anchor {
	var anchors []anchor
	lastEnd := 0
	for _, loc := range key.FindAllStringIndex(body, -1) {
		if loc[0] < lastEnd {
			continue
		}
		if skipNested && nestedObjectTail.MatchString(body[max(0, loc[0]-80):loc[0]]) {
			continue
		}
		v := readValue(body, loc[1])
		if v.kind != kindString {
			continue
		}
		n := utf8.RuneCountInString(v.text)
		if n < anchorMinRunes || n > anchorMaxRunes {
			continue
		}
		anchors = append(anchors, anchor{start: loc[0], end: v.end, name: v.text})
		lastEnd = v.end
	}
	return anchors
}

type fragmentWindow struct {
	body       string
	start, end int
	anchor     anchor
}

// find returns the first value for key after the anchor, else the last
// one before it.
func (w fragmentWindow) find(key *regexp.Regexp) (value, bool) {
	if w.anchor.end < w.end {
		after := w.body[w.anchor.end:w.end]
		for _, loc := range key.FindAllStringIndex(after, -1) {
			if v := readValue(w.body, w.anchor.end+loc[1]); v.kind != kindNone {
				return v, true
			}
		}
	}
	if w.start < w.anchor.start {
		before := w.body[w.start:w.anchor.start]
		locs := key.FindAllStringIndex(before, -1)
		for i := len(locs) - 1; i >= 0; i-- {
			if v := readValue(w.body, w.start+locs[i][1]); v.kind != kindNone {
				return v, true
			}
		}
	}
	return value{}, false
}

func (w fragmentWindow) str(key *regexp.Regexp) string {
	v, ok := w.find(key)
	if !ok || v.kind != kindString {
		return ""
	}
	return strings.TrimSpace(v.text)
}

// raw returns a string or number value as text.
func (w fragmentWindow) raw(key *regexp.Regexp) string {
	v, ok := w.find(key)
	if !ok || (v.kind != kindString && v.kind != kindNumber) {
		return ""
	}
	return v.text
}

func (w fragmentWindow) price(key *regexp.Regexp) int {
	v, ok := w.find(key)
	if !ok {
		return 0
	}
	switch v.kind {
	case kindNumber:
		f, _ := strconv.ParseFloat(v.text, 64)
		return textutil.PriceFromFloat(f)
	case kindString:
		return textutil.ParsePrice(v.text)
	}
	return 0
}

// firstPrice returns the price of the first key, in priority order, that resolves.
func (w fragmentWindow) firstPrice(keys ...*regexp.Regexp) int {
	for _, key := range keys {
		if p := w.price(key); p > 0 {
			return p
		}
	}
	return 0
}

func (w fragmentWindow) number(key *regexp.Regexp) float64 {
	v, ok := w.find(key)
	if !ok || (v.kind != kindNumber && v.kind != kindString) {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
	if err != nil {
		return 0
	}
	return f
}

func (w fragmentWindow) brand() string {
	v, ok := w.find(brandKeys)
	if !ok {
		return ""
	}
	switch v.kind {
	case kindString:
		return strings.TrimSpace(v.text)
	case kindObject:
		tail := w.body[v.end:min(len(w.body), v.end+anchorMaxRunes)]
		if loc := plainNameKey.FindStringIndex(tail); loc != nil {
			if name := readValue(w.body, v.end+loc[1]); name.kind == kindString {
				return strings.TrimSpace(name.text)
			}
		}
	}
	return ""
}

func (w fragmentWindow) inStock() bool {
	v, ok := w.find(stockKeys)
	if !ok {
		return true
	}
	switch v.kind {
	case kindNumber:
		f, _ := strconv.ParseFloat(v.text, 64)
		return f > 0
	case kindBool:
		return v.text == "true"
	case kindString:
		switch strings.ToLower(v.text) {
		case "false", "0", "out_of_stock", "outofstock", "unavailable":
			return false
		}
	}
	return true
}

// resolvePrices applies the price priority: lowest price, promotion value,
// net price, discounted base price, base price. The regular price is the
// base price when present, never below the final price.
func resolvePrices(w fragmentWindow) (price, regular int) {
	base := w.firstPrice(fullPriceKey, basePriceKey, priceKey)
	low := w.price(lowPriceKeys)
	promo := w.price(promoKeys)
	net := w.price(netPriceKeys)
	pct := w.number(discountKeys)

	switch {
	case low > 0:
		price = low
	case promo > 0:
		price = promo
	case net > 0:
		price = net
	case base > 0 && pct > 0:
		price = textutil.ApplyDiscount(base, pct)
	default:
		price = base
	}

	regular = base
	if regular <= 0 || regular < price {
		regular = price
	}
	return price, regular
}

type valueKind int

const (
	kindNone valueKind = iota
	kindString
	kindNumber
	kindBool
	kindObject
)

type value struct {
	kind valueKind
	text string
	end  int
}

// readValue parses the JSON value starting at pos. Strings may be raw
// ("...") or escaped one level (\"...\"); both are unescaped.
func readValue(body string, pos int) value {
	for pos < len(body) && (body[pos] == ' ' || body[pos] == '\t' || body[pos] == '\n' || body[pos] == '\r') {
		pos++
	}
	if pos >= len(body) {
		return value{}
	}
	rest := body[pos:]

	switch {
	case strings.HasPrefix(rest, `\"`):
		end := closingQuote(body, pos+2, true)
		if end < 0 {
			return value{}
		}
		content := flightUnescaper.Replace(body[pos+2 : end])
		return value{kind: kindString, text: decodeJSONString(content), end: end + 2}
	case rest[0] == '"':
		end := closingQuote(body, pos+1, false)
		if end < 0 {
			return value{}
		}
		return value{kind: kindString, text: decodeJSONString(body[pos+1 : end]), end: end + 1}
	case rest[0] == '{':
		return value{kind: kindObject, end: pos + 1}
	case strings.HasPrefix(rest, "true"):
		return value{kind: kindBool, text: "true", end: pos + 4}
	case strings.HasPrefix(rest, "false"):
		return value{kind: kindBool, text: "false", end: pos + 5}
	}

	if m := numberLiteral.FindString(rest); m != "" {
		return value{kind: kindNumber, text: m, end: pos + len(m)}
	}
	return value{}
}

// closingQuote returns the index of the quote sequence ending a string
// whose content starts at from. In a raw string the terminator is a quote
// preceded by an even run of backslashes. In an escaped string it is \"
// where the run before the quote has length 4k+1: the last backslash
// escapes the quote itself and the rest encode literal backslashes.
func closingQuote(body string, from int, escaped bool) int {
	limit := min(len(body), from+4*anchorMaxRunes+windowAfter)
	for i := from; i < limit; i++ {
		if body[i] != '"' {
			continue
		}
		run := backslashesBefore(body, i, from)
		if escaped {
			if run%4 == 1 {
				return i - 1
			}
			continue
		}
		if run%2 == 0 {
			return i
		}
	}
	return -1
}

func backslashesBefore(body string, i, floor int) int {
	n := 0
	for j := i - 1; j >= floor && body[j] == '\\'; j-- {
		n++
	}
	return n
}

func decodeJSONString(content string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+content+`"`), &out); err != nil {
		return content
	}
	return out
}
