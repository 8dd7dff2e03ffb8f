package match

import (
	"context"
	"strings"

	"desktour/internal/logger"
)

// brandAliases maps known alternate spellings onto the form the catalog
// uses. Lookups are case-insensitive on both sides.
var brandAliases = map[string]string{
	"logitech":       "logicool",
	"logicool":       "logitech",
	"audio technica": "audio-technica",
	"audiotechnica":  "audio-technica",
	"herman-miller":  "herman miller",
	"benq zowie":     "benq",
}

// NormalizeBrands maps the batch's raw brand strings onto canonical brand
// strings already present in the catalog, correcting casing and spelling
// drift. Brands with no confident catalog match are left out of the result,
// so callers leave them unchanged. A catalog read failure disables
// normalization for the whole batch rather than failing it.
func NormalizeBrands(ctx context.Context, store CatalogStore, products []ExtractedProduct) map[string]string {
	log := logger.New("BrandNormalizer")

	raw := make(map[string]struct{})
	for _, p := range products {
		if p.Brand != "" {
			raw[p.Brand] = struct{}{}
		}
	}
	if len(raw) == 0 {
		return nil
	}

	catalogBrands, err := store.Brands(ctx)
	if err != nil {
		log.LogWarnf("brand lookup failed, keeping raw brands: %v", err)
		return nil
	}

	byLower := make(map[string]string, len(catalogBrands))
	for _, b := range catalogBrands {
		if b == "" {
			continue
		}
		key := strings.ToLower(b)
		if _, ok := byLower[key]; !ok {
			byLower[key] = b
		}
	}

	out := make(map[string]string)
	for b := range raw {
		canonical, ok := byLower[strings.ToLower(b)]
		if !ok {
			if alias, aliased := brandAliases[strings.ToLower(b)]; aliased {
				canonical, ok = byLower[alias]
			}
		}
		if ok && canonical != b {
			log.LogDebugf("brand normalized: %q -> %q", b, canonical)
			out[b] = canonical
		}
	}
	return out
}

// ApplyBrandMap returns a copy of the batch with brands rewritten through
// the normalization map. The input slice is never mutated.
func ApplyBrandMap(products []ExtractedProduct, brandMap map[string]string) []ExtractedProduct {
	out := make([]ExtractedProduct, len(products))
	copy(out, products)
	if len(brandMap) == 0 {
		return out
	}
	for i := range out {
		if canonical, ok := brandMap[out[i].Brand]; ok {
			out[i].Brand = canonical
		}
	}
	return out
}
