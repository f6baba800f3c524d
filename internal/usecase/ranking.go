package usecase

import (
	"sort"

	"github.com/antzucaro/matchr"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/textutil"
)

// nearDuplicateSimilarity is the Jaro-Winkler score above which two same-store,
// same-price names are considered the same listing
const nearDuplicateSimilarity = 0.97

// Dedupe drops repeated listings, keeping the first occurrence. Two records
// are duplicates when they share a store and either the same URL or the
// same price with near-identical names.
func Dedupe(records []domain.ProductRecord) []domain.ProductRecord {
	type seenRecord struct {
		url   string
		price int
		name  string
	}
	byStore := make(map[string][]seenRecord)
	out := make([]domain.ProductRecord, 0, len(records))

	for _, rec := range records {
		name := textutil.Normalize(rec.Name)
		duplicate := false
		for _, prev := range byStore[rec.StoreID] {
			if rec.URL != "" && rec.URL == prev.url {
				duplicate = true
				break
			}
			if rec.Price == prev.price && similarNames(name, prev.name) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		byStore[rec.StoreID] = append(byStore[rec.StoreID], seenRecord{url: rec.URL, price: rec.Price, name: name})
		out = append(out, rec)
	}
	return out
}

func similarNames(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= nearDuplicateSimilarity
}

// Rank orders filtered records for presentation.
//
// Barcode queries list exact barcode matches first. Broad queries interleave
// stores round-robin, each store's records sorted by discount. Targeted name
// queries sort by price with external links last.
func Rank(records []domain.ProductRecord, q domain.Query) []domain.ProductRecord {
	if q.IsBarcodeSearch() {
		exact := make([]domain.ProductRecord, 0, len(records))
		rest := make([]domain.ProductRecord, 0, len(records))
		for _, rec := range records {
			if textutil.SameBarcode(rec.Barcode, q.Barcode) {
				exact = append(exact, rec)
			} else {
				rest = append(rest, rec)
			}
		}
		if q.Broad {
			rest = Interleave(rest)
		}
		return append(exact, rest...)
	}

	if q.Broad {
		return Interleave(records)
	}

	out := make([]domain.ProductRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ExternalLink != out[j].ExternalLink {
			return !out[i].ExternalLink
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// Interleave groups records by store in first-seen order, sorts each group
// by discount descending and then takes one record per store per round.
func Interleave(records []domain.ProductRecord) []domain.ProductRecord {
	var order []string
	groups := make(map[string][]domain.ProductRecord)
	for _, rec := range records {
		if _, ok := groups[rec.StoreID]; !ok {
			order = append(order, rec.StoreID)
		}
		groups[rec.StoreID] = append(groups[rec.StoreID], rec)
	}

	for _, id := range order {
		group := groups[id]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].DiscountPct > group[j].DiscountPct
		})
	}

	out := make([]domain.ProductRecord, 0, len(records))
	for round := 0; len(out) < len(records); round++ {
		for _, id := range order {
			if round < len(groups[id]) {
				out = append(out, groups[id][round])
			}
		}
	}
	return out
}
