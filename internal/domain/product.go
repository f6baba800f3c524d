package domain

// Availability values written by every strategy.
const (
	AvailabilityInStock    = "Available"
	AvailabilityOutOfStock = "Out of stock"
	AvailabilityExternal   = "Requires external lookup"

	// OutOfStockPrefix tags the name of records kept despite having no stock.
	OutOfStockPrefix = "[OUT OF STOCK] "
)

// Canonical units of a normalized amount.
const (
	UnitGrams      = "g"
	UnitMilliliter = "ml"
	UnitCount      = "und"
)

// ProductRecord is the normalized offer returned by every extraction strategy
type ProductRecord struct {
	Store        string  `json:"store"`
	StoreID      string  `json:"storeId"`
	Name         string  `json:"name"`
	Price        int     `json:"price"`
	RegularPrice int     `json:"regularPrice"`
	DiscountPct  int     `json:"discountPct"`
	Presentation string  `json:"presentation"`
	Amount       float64 `json:"amount"`
	Unit         string  `json:"unit"`
	PricePerUnit float64 `json:"pricePerUnit"`
	Availability string  `json:"availability"`
	URL          string  `json:"url"`
	Barcode      string  `json:"barcode,omitempty"`
	Brand        string  `json:"brand,omitempty"`
	ProductType  string  `json:"type,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	VerifiedAt   string  `json:"verifiedAt"`
	ExternalLink bool    `json:"externalLink"`
	SourceURL    string  `json:"sourceUrl"`
}

// InStock reports whether the record was fetched with positive availability
func (p ProductRecord) InStock() bool {
	return p.Availability != AvailabilityOutOfStock
}
