package domain

import "time"

// Search modes accepted on the wire.
const (
	ModeProduct      = "product"
	ModeStoreCatalog = "store-catalog"
)

// StoreRef identifies a retailer selected by the caller
type StoreRef struct {
	ID   string   `json:"id"`
	Name string   `json:"name,omitempty"`
	URLs []string `json:"urls,omitempty"`
}

// SearchRequest is the JSON body accepted by the search endpoint
type SearchRequest struct {
	ProductName       string     `json:"productName,omitempty"`
	EAN               string     `json:"ean,omitempty"`
	SelectedStores    []StoreRef `json:"selectedStores,omitempty"`
	SearchMode        string     `json:"searchMode,omitempty"`
	StoreID           string     `json:"storeId,omitempty"`
	Keywords          []string   `json:"keywords,omitempty"`
	Brand             string     `json:"brand,omitempty"`
	Category          string     `json:"category,omitempty"`
	ProductLimit      *int       `json:"productLimit,omitempty"`
	IsRadar           bool       `json:"isRadar,omitempty"`
	ExactMatch        bool       `json:"exactMatch,omitempty"`
	IncludeOutOfStock *bool      `json:"includeOutOfStock,omitempty"`
}

// Query is the normalized, per-call description of what to look for and where
type Query struct {
	Name              string
	Barcode           string
	Keywords          []string
	Brand             string
	Category          string
	StoreIDs          []string
	Limit             int
	Broad             bool
	ExactMatch        bool
	IncludeOutOfStock bool
	Mode              string
	Timeout           time.Duration
}

// IsBarcodeSearch reports whether the query is driven by a barcode
func (q Query) IsBarcodeSearch() bool {
	return q.Barcode != ""
}

// Term returns the text sent to retailers: the barcode when present, else the name
func (q Query) Term() string {
	if q.Barcode != "" {
		return q.Barcode
	}
	return q.Name
}
