package match

import (
	"context"
	"strings"

	"desktour/internal/logger"
)

// LookupExisting resolves each extracted product name to at most one stored
// catalog record. When several rows share a name, the row whose category
// matches wins, then the row whose brand matches, then the most recently
// updated row (FindByName returns rows newest first). A lookup failure for
// one name leaves that name out of the map instead of failing the batch.
func LookupExisting(ctx context.Context, store CatalogStore, products []ExtractedProduct) map[string]CatalogRecord {
	log := logger.New("ExistingLookup")
	out := make(map[string]CatalogRecord)

	for _, p := range products {
		if p.Name == "" {
			continue
		}
		if _, done := out[p.Name]; done {
			continue
		}
		records, err := store.FindByName(ctx, p.Name)
		if err != nil {
			log.LogWarnf("catalog lookup failed for %q: %v", p.Name, err)
			continue
		}
		if len(records) == 0 {
			continue
		}
		out[p.Name] = pickRecord(records, p)
	}
	return out
}

func pickRecord(records []CatalogRecord, p ExtractedProduct) CatalogRecord {
	if p.Category != "" {
		for _, r := range records {
			if strings.EqualFold(r.Category, p.Category) {
				return r
			}
		}
	}
	if p.Brand != "" {
		for _, r := range records {
			if strings.EqualFold(r.Brand, p.Brand) {
				return r
			}
		}
	}
	return records[0]
}
