package registry

import (
	"fmt"
	"os"

	"github.com/pricelens/backend/internal/infrastructure/strategy"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// overridesFile is the YAML document accepted by LoadOverrides
type overridesFile struct {
	Retailers []RetailerConfig `yaml:"retailers"`
}

// LoadOverrides reads a YAML overrides file. An empty path yields no overrides.
func LoadOverrides(path string) ([]RetailerConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read retailer overrides: %w", err)
	}
	var doc overridesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse retailer overrides %s: %w", path, err)
	}
	return doc.Retailers, nil
}

// Merge applies overrides to base. An override with a known id replaces the
// non-empty fields it sets; an unknown id is appended as a new retailer.
func Merge(base, overrides []RetailerConfig) []RetailerConfig {
	out := make([]RetailerConfig, len(base))
	copy(out, base)

	index := make(map[string]int, len(out))
	for i, cfg := range out {
		index[cfg.ID] = i
	}

	for _, o := range overrides {
		i, ok := index[o.ID]
		if !ok {
			log.Info().Str("retailer", o.ID).Msg("[REGISTRY] adding retailer from overrides")
			index[o.ID] = len(out)
			out = append(out, o)
			continue
		}
		log.Info().Str("retailer", o.ID).Msg("[REGISTRY] overriding retailer")
		out[i] = overlay(out[i], o)
	}
	return out
}

func overlay(dst, src RetailerConfig) RetailerConfig {
	setString := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	setString(&dst.Name, src.Name)
	setString((*string)(&dst.Method), string(src.Method))
	setString(&dst.BaseURL, src.BaseURL)
	setString(&dst.SearchURL, src.SearchURL)
	setString(&dst.FallbackSearchURL, src.FallbackSearchURL)
	if len(src.Domains) > 0 {
		dst.Domains = src.Domains
	}

	setString(&dst.Selectors.Card, src.Selectors.Card)
	setString(&dst.Selectors.Name, src.Selectors.Name)
	setString(&dst.Selectors.Price, src.Selectors.Price)
	setString(&dst.Selectors.RegularPrice, src.Selectors.RegularPrice)
	setString(&dst.Selectors.Link, src.Selectors.Link)
	setString(&dst.Selectors.Image, src.Selectors.Image)
	setString(&dst.Selectors.Brand, src.Selectors.Brand)

	setString(&dst.Index.Host, src.Index.Host)
	setString(&dst.Index.AppID, src.Index.AppID)
	setString(&dst.Index.APIKey, src.Index.APIKey)
	setString(&dst.Index.Name, src.Index.Name)
	setString(&dst.Index.Fields.Name, src.Index.Fields.Name)
	setString(&dst.Index.Fields.Brand, src.Index.Fields.Brand)
	setString(&dst.Index.Fields.Price, src.Index.Fields.Price)
	setString(&dst.Index.Fields.RegularPrice, src.Index.Fields.RegularPrice)
	setString(&dst.Index.Fields.URL, src.Index.Fields.URL)
	setString(&dst.Index.Fields.Image, src.Index.Fields.Image)
	setString(&dst.Index.Fields.InStock, src.Index.Fields.InStock)
	setString(&dst.Index.Fields.Barcode, src.Index.Fields.Barcode)
	setString(&dst.Index.Fields.Category, src.Index.Fields.Category)
	return dst
}

// Load builds the registry from the built-in table plus the optional
// overrides file.
func Load(fetcher strategy.Fetcher, path string) (*Registry, error) {
	overrides, err := LoadOverrides(path)
	if err != nil {
		return nil, err
	}
	reg, err := New(fetcher, Merge(Builtin(), overrides))
	if err != nil {
		return nil, err
	}
	log.Info().Int("retailers", len(reg.order)).Str("overrides", path).Msg("[REGISTRY] retailer table loaded")
	return reg, nil
}
