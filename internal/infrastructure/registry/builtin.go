package registry

import (
	"strings"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/strategy"
)

// Builtin returns the retailer table shipped with the service. Callers
// get a fresh slice they may modify.
func Builtin() []RetailerConfig {
	return []RetailerConfig{
		{
			ID:      "exito",
			Name:    "Éxito",
			Domains: []string{"exito.com"},
			Method:  domain.MethodCatalogAPI,
			BaseURL: "https://www.exito.com",
		},
		{
			ID:      "carulla",
			Name:    "Carulla",
			Domains: []string{"carulla.com"},
			Method:  domain.MethodCatalogAPI,
			BaseURL: "https://www.carulla.com",
		},
		{
			ID:      "jumbo",
			Name:    "Jumbo",
			Domains: []string{"tiendasjumbo.co"},
			Method:  domain.MethodCatalogAPI,
			BaseURL: "https://www.tiendasjumbo.co",
		},
		{
			ID:      "olimpica",
			Name:    "Olímpica",
			Domains: []string{"olimpica.com"},
			Method:  domain.MethodCatalogAPI,
			BaseURL: "https://www.olimpica.com",
		},
		{
			ID:        "euro",
			Name:      "Euro Supermercados",
			Domains:   []string{"eurosupermercados.com.co"},
			Method:    domain.MethodMarkupScrape,
			BaseURL:   "https://www.eurosupermercados.com.co",
			SearchURL: "https://www.eurosupermercados.com.co/search?q={query}",
			Selectors: strategy.Selectors{
				Card:         "div.product-item",
				Name:         ".product-item-name",
				Price:        ".special-price .price, .price-final_price .price",
				RegularPrice: ".old-price .price",
				Link:         "a.product-item-link",
				Image:        "img.product-image-photo",
			},
		},
		{
			ID:                "colsubsidio",
			Name:              "Droguerías Colsubsidio",
			Domains:           []string{"drogueriascolsubsidio.com"},
			Method:            domain.MethodMarkupScrape,
			BaseURL:           "https://www.drogueriascolsubsidio.com",
			SearchURL:         "https://www.drogueriascolsubsidio.com/{query}?_q={query}&map=ft",
			FallbackSearchURL: "https://www.drogueriascolsubsidio.com/busca?ft={query}",
			Selectors: strategy.Selectors{
				Card:         "article.product-card, div.product-summary",
				Name:         ".product-card__name, .product-summary__name",
				Price:        ".product-card__price, .product-summary__price",
				RegularPrice: ".product-card__list-price",
				Link:         "a",
				Image:        "img",
				Brand:        ".product-card__brand",
			},
			PriceTransform: currentPriceOnly,
		},
		{
			ID:      "farmatodo",
			Name:    "Farmatodo",
			Domains: []string{"farmatodo.com.co"},
			Method:  domain.MethodSearchIndex,
			BaseURL: "https://www.farmatodo.com.co",
			// The search-only API key is not shipped. It is supplied through
			// index.api_key in the retailers overrides file.
			Index: strategy.IndexConfig{
				Host:  "https://vcojeyd2po-dsn.algolia.net",
				AppID: "VCOJEYD2PO",
				Name:  "products-colombia",
				Fields: strategy.IndexFields{
					Name:         "mediaDescription",
					Brand:        "marca",
					Price:        "offerPrice",
					RegularPrice: "fullPrice",
					URL:          "url",
					Image:        "mediaImageUrl",
					InStock:      "stock",
					Barcode:      "barcode",
					Category:     "categorie",
				},
			},
		},
		{
			ID:        "rappi",
			Name:      "Rappi",
			Domains:   []string{"rappi.com.co"},
			Method:    domain.MethodEmbeddedFlight,
			BaseURL:   "https://www.rappi.com.co",
			SearchURL: "https://www.rappi.com.co/search?query={query}",
		},
		{
			ID:        "mercadolibre",
			Name:      "Mercado Libre",
			Domains:   []string{"mercadolibre.com.co"},
			Method:    domain.MethodEmbeddedState,
			BaseURL:   "https://articulo.mercadolibre.com.co",
			SearchURL: "https://listado.mercadolibre.com.co/{query}",
		},
		{
			ID:        "d1",
			Name:      "Tiendas D1",
			Domains:   []string{"domicilios.tiendasd1.com"},
			Method:    domain.MethodDeepLink,
			SearchURL: "https://domicilios.tiendasd1.com/search?name={query}",
		},
		{
			ID:        "ara",
			Name:      "Tiendas Ara",
			Domains:   []string{"aratiendas.com"},
			Method:    domain.MethodDeepLink,
			SearchURL: "https://aratiendas.com/?s={query}",
		},
	}
}

// currentPriceOnly keeps the text after "Ahora" when a card renders both
// the list and the current price in one element.
func currentPriceOnly(text string) string {
	if i := strings.LastIndex(strings.ToLower(text), "ahora"); i >= 0 {
		return text[i+len("ahora"):]
	}
	return text
}
