package match

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"desktour/internal/logger"
)

// Reconciler resolves a batch of extracted products against the existing
// catalog and live marketplace listings. One Reconciler is safe for
// concurrent batches; all per-run state lives in Reconcile.
type Reconciler struct {
	log         *logger.Logger
	catalog     CatalogStore
	search      SearchClient
	excluded    map[string]struct{}
	searchDelay time.Duration
	sleep       func(time.Duration)
}

func NewReconciler(catalog CatalogStore, search SearchClient, excludedBrands []string, searchDelay time.Duration) *Reconciler {
	excluded := make(map[string]struct{}, len(excludedBrands))
	for _, b := range excludedBrands {
		if b != "" {
			excluded[strings.ToLower(b)] = struct{}{}
		}
	}
	return &Reconciler{
		log:         logger.New("Reconciler"),
		catalog:     catalog,
		search:      search,
		excluded:    excluded,
		searchDelay: searchDelay,
		sleep:       time.Sleep,
	}
}

// Input is one reconciliation run: the extracted batch plus the ASIN batch
// lookup results scraped from the description.
type Input struct {
	Products []ExtractedProduct
	Lookups  map[string]*ProductInfo
}

// strategyFn is one rung of the decision ladder. A nil result means the rung
// declined and the next one runs; the last rung of every ladder always
// produces a result.
type strategyFn func(ctx context.Context, p ExtractedProduct) *MatchedProduct

// Reconcile produces exactly one MatchedProduct per input product, in input
// order. The preparatory lookups are read-only and fan out concurrently; the
// per-item loop is deliberately sequential because later items must see the
// ASINs consumed by earlier ones.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) []MatchedProduct {
	r.log.LogInfof("reconcile start: %d products, %d lookups", len(in.Products), len(in.Lookups))

	pool := BuildPool(in.Lookups)

	var existing map[string]CatalogRecord
	var brandMap map[string]string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		existing = LookupExisting(ctx, r.catalog, in.Products)
	}()
	go func() {
		defer wg.Done()
		brandMap = NormalizeBrands(ctx, r.catalog, in.Products)
	}()
	wg.Wait()

	products := ApplyBrandMap(in.Products, brandMap)

	used := make(map[string]struct{}, len(products))
	out := make([]MatchedProduct, 0, len(products))
	for _, p := range products {
		out = append(out, r.matchOne(ctx, p, pool, existing, used))
	}

	r.log.LogSuccessf("reconcile done: %d/%d matched", countMatched(out), len(out))
	return out
}

// matchOne walks the decision ladder for a single product. The ladder shape
// depends on the product's tier: excluded brands and low-confidence items
// never reach live search.
func (r *Reconciler) matchOne(ctx context.Context, p ExtractedProduct, pool []Candidate, existing map[string]CatalogRecord, used map[string]struct{}) MatchedProduct {
	var ladder []strategyFn

	reuse := r.reuseExisting(existing, used)
	switch {
	case r.isExcluded(p):
		ladder = []strategyFn{reuse, r.unmatchedExcluded()}
	case p.Confidence == ConfidenceLow:
		ladder = []strategyFn{reuse, r.candidatePool(pool, used), r.unmatchedLowConfidence()}
	default:
		ladder = []strategyFn{reuse, r.candidatePool(pool, used), r.liveSearch(used), r.officialFallback(), r.unmatched()}
	}

	for _, s := range ladder {
		if m := s(ctx, p); m != nil {
			return *m
		}
	}
	// The last rung always matches; this is never reached.
	return base(p)
}

// isExcluded reports whether the product's normalized brand is on the
// excluded-brand list, or every token of an excluded brand appears among the
// name's tokens. Token matching keeps names that merely embed a brand as a
// substring ("Pineapple" vs "Apple") out of the excluded ladder.
func (r *Reconciler) isExcluded(p ExtractedProduct) bool {
	if p.Brand != "" {
		if _, ok := r.excluded[strings.ToLower(p.Brand)]; ok {
			return true
		}
	}

	nameSet := make(map[string]struct{})
	for _, t := range Tokens(p.Name) {
		nameSet[t] = struct{}{}
	}
	for b := range r.excluded {
		brandTokens := Tokens(b)
		if len(brandTokens) == 0 {
			continue
		}
		all := true
		for _, bt := range brandTokens {
			if _, ok := nameSet[bt]; !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// reuseExisting is the highest-trust rung: a previously persisted mapping
// with a listing is reused verbatim and bypasses scoring entirely. A record
// whose ASIN was already consumed this run declines so the item can still
// fall through to the remaining rungs.
func (r *Reconciler) reuseExisting(existing map[string]CatalogRecord, used map[string]struct{}) strategyFn {
	return func(_ context.Context, p ExtractedProduct) *MatchedProduct {
		rec, ok := existing[p.Name]
		if !ok || (rec.ASIN == "" && rec.AmazonURL == "") {
			return nil
		}
		if rec.ASIN != "" {
			if _, taken := used[rec.ASIN]; taken {
				return nil
			}
			used[rec.ASIN] = struct{}{}
		}

		m := base(p)
		m.Tags = rec.Tags
		m.Amazon = &AmazonLink{
			ASIN:     rec.ASIN,
			Title:    firstNonEmpty(rec.AmazonTitle, rec.Name),
			URL:      firstNonEmpty(rec.AmazonURL, dpURL(rec.ASIN)),
			ImageURL: rec.AmazonImageURL,
			Price:    rec.AmazonPrice,
		}
		m.Source = SourceExisting
		m.IsExisting = true
		m.MatchScore = ScoreExisting
		m.MatchReason = "existing catalog record reused"
		r.log.LogDebugf("reuse: %q -> %s", p.Name, rec.ASIN)
		return &m
	}
}

// candidatePool matches against the batch's description-derived listings.
func (r *Reconciler) candidatePool(pool []Candidate, used map[string]struct{}) strategyFn {
	return func(_ context.Context, p ExtractedProduct) *MatchedProduct {
		best, ev := PickBest(p, pool, used)
		if best == nil {
			return nil
		}
		used[best.ASIN] = struct{}{}

		m := base(p)
		m.Amazon = linkFromProduct(best.Product)
		m.Source = SourceCandidate
		m.MatchScore = ev.Score
		m.MatchReason = ev.Reason
		r.log.LogDebugf("pool match: %q -> %s (%d)", p.Name, best.ASIN, ev.Score)
		return &m
	}
}

// liveSearch issues a rate-limited marketplace search refined by brand and
// category. A failed call is a miss, never a batch failure.
func (r *Reconciler) liveSearch(used map[string]struct{}) strategyFn {
	return func(ctx context.Context, p ExtractedProduct) *MatchedProduct {
		r.sleep(r.searchDelay)
		results, err := r.search.Search(ctx, Query{Name: p.Name, Brand: p.Brand, Category: p.Category})
		if err != nil {
			r.log.LogWarnf("live search failed for %q: %v", p.Name, err)
			return nil
		}

		candidates := make([]Candidate, 0, len(results))
		for _, info := range results {
			if info == nil || info.ASIN == "" {
				continue
			}
			candidates = append(candidates, Candidate{ASIN: info.ASIN, Title: info.Title, Product: info})
		}
		best, ev := PickBest(p, candidates, used)
		if best == nil {
			return nil
		}
		used[best.ASIN] = struct{}{}

		m := base(p)
		m.Amazon = linkFromProduct(best.Product)
		m.Source = SourceSearch
		m.MatchScore = ev.Score
		m.MatchReason = ev.Reason
		r.log.LogDebugf("search match: %q -> %s (%d)", p.Name, best.ASIN, ev.Score)
		return &m
	}
}

// officialFallback accepts a description-derived official-site link whose
// title shares at least min(2, significant name tokens) tokens with the
// product name. Single-token names therefore accept on one shared token,
// a known precision trade-off.
func (r *Reconciler) officialFallback() strategyFn {
	return func(_ context.Context, p ExtractedProduct) *MatchedProduct {
		if p.OfficialInfo == nil || p.OfficialInfo.URL == "" {
			return nil
		}
		nameTokens := Tokens(p.Name)
		needed := 2
		if len(nameTokens) < needed {
			needed = len(nameTokens)
		}
		if needed == 0 {
			return nil
		}
		overlap := tokenOverlap(nameTokens, p.OfficialInfo.Title)
		if overlap < needed {
			return nil
		}

		m := base(p)
		m.Amazon = &AmazonLink{Title: p.OfficialInfo.Title, URL: p.OfficialInfo.URL}
		m.Source = SourceOfficial
		m.MatchReason = fmt.Sprintf("official site fallback (%d/%d tokens)", overlap, len(nameTokens))
		r.log.LogDebugf("official fallback: %q -> %s", p.Name, p.OfficialInfo.URL)
		return &m
	}
}

// Terminal rungs. Absence of a match is a valid outcome per item; the
// reasons are surfaced so an operator can resolve them by hand.

func (r *Reconciler) unmatchedExcluded() strategyFn {
	return func(_ context.Context, p ExtractedProduct) *MatchedProduct {
		m := base(p)
		m.MatchReason = fmt.Sprintf("Excluded: %s (manual setup required)", firstNonEmpty(p.Brand, p.Name))
		return &m
	}
}

func (r *Reconciler) unmatchedLowConfidence() strategyFn {
	return func(_ context.Context, p ExtractedProduct) *MatchedProduct {
		m := base(p)
		m.MatchReason = "Low confidence (manual search recommended)"
		return &m
	}
}

func (r *Reconciler) unmatched() strategyFn {
	return func(_ context.Context, p ExtractedProduct) *MatchedProduct {
		m := base(p)
		m.MatchReason = "No match found (manual search recommended)"
		return &m
	}
}

func base(p ExtractedProduct) MatchedProduct {
	return MatchedProduct{
		Name:        p.Name,
		Brand:       p.Brand,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Reason:      p.Reason,
		Confidence:  p.Confidence,
	}
}

func linkFromProduct(info *ProductInfo) *AmazonLink {
	if info == nil {
		return nil
	}
	return &AmazonLink{
		ASIN:     info.ASIN,
		Title:    info.Title,
		URL:      firstNonEmpty(info.URL, dpURL(info.ASIN)),
		ImageURL: info.ImageURL,
		Price:    info.Price,
	}
}

func dpURL(asin string) string {
	if asin == "" {
		return ""
	}
	return "https://www.amazon.co.jp/dp/" + asin
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func countMatched(products []MatchedProduct) int {
	n := 0
	for _, m := range products {
		if m.Amazon != nil {
			n++
		}
	}
	return n
}
