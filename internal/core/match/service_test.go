package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory CatalogStore for tests.
type fakeStore struct {
	mu       sync.Mutex
	records  map[string][]CatalogRecord
	brands   []string
	findErr  error
	brandErr error
	finds    int
}

func (f *fakeStore) FindByName(_ context.Context, name string) ([]CatalogRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.records[name], nil
}

func (f *fakeStore) Brands(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.brandErr != nil {
		return nil, f.brandErr
	}
	return f.brands, nil
}

// fakeSearch is a SearchClient that counts calls and returns canned results.
type fakeSearch struct {
	mu      sync.Mutex
	results []*ProductInfo
	err     error
	calls   int
}

func (f *fakeSearch) Search(_ context.Context, _ Query) ([]*ProductInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSearch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestReconciler(store CatalogStore, search SearchClient, excluded ...string) *Reconciler {
	r := NewReconciler(store, search, excluded, time.Millisecond)
	r.sleep = func(time.Duration) {}
	return r
}

func intPtr(v int) *int { return &v }

func TestReconcileOutputCardinalityAndOrder(t *testing.T) {
	store := &fakeStore{}
	search := &fakeSearch{}
	r := newTestReconciler(store, search)

	in := Input{Products: []ExtractedProduct{
		{Name: "Shure SM7B", Category: "microphone", Confidence: ConfidenceHigh},
		{Name: "BenQ ScreenBar", Category: "lighting", Confidence: ConfidenceLow},
		{Name: "Unknown Widget", Category: "misc", Confidence: ConfidenceMedium},
	}}

	out := r.Reconcile(context.Background(), in)
	require.Len(t, out, len(in.Products))
	for i, p := range in.Products {
		assert.Equal(t, p.Name, out[i].Name)
	}
}

func TestReconcileExistingReuseSkipsSearch(t *testing.T) {
	store := &fakeStore{records: map[string][]CatalogRecord{
		"HHKB Professional HYBRID": {{
			Name:      "HHKB Professional HYBRID",
			Brand:     "HHKB",
			Category:  "keyboard",
			ASIN:      "B08XYZ",
			AmazonURL: "https://amazon.co.jp/dp/B08XYZ",
		}},
	}}
	search := &fakeSearch{}
	r := newTestReconciler(store, search)

	out := r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
		{Name: "HHKB Professional HYBRID", Brand: "HHKB", Category: "keyboard", Confidence: ConfidenceHigh},
	}})

	require.Len(t, out, 1)
	require.NotNil(t, out[0].Amazon)
	assert.Equal(t, "B08XYZ", out[0].Amazon.ASIN)
	assert.True(t, out[0].IsExisting)
	assert.Equal(t, SourceExisting, out[0].Source)
	assert.Equal(t, ScoreExisting, out[0].MatchScore)
	assert.Equal(t, 0, search.callCount(), "existing reuse must never trigger live search")
}

func TestReconcileAsinExclusivityUnderContention(t *testing.T) {
	store := &fakeStore{}
	search := &fakeSearch{}
	r := newTestReconciler(store, search)

	lookups := map[string]*ProductInfo{
		"B001": {ASIN: "B001", Title: "Shure SM7B Dynamic Vocal Microphone", ImageURL: "https://img/b001.jpg", Price: intPtr(39800)},
	}
	out := r.Reconcile(context.Background(), Input{
		Products: []ExtractedProduct{
			{Name: "Shure SM7B", Category: "microphone", Confidence: ConfidenceHigh},
			{Name: "Shure SM7B Microphone", Category: "microphone", Confidence: ConfidenceHigh},
		},
		Lookups: lookups,
	})

	require.Len(t, out, 2)
	assigned := 0
	for _, m := range out {
		if m.Amazon != nil && m.Amazon.ASIN == "B001" {
			assigned++
		}
	}
	assert.Equal(t, 1, assigned, "a listing must be assigned to at most one product per run")
	assert.Nil(t, out[1].Amazon)
}

func TestReconcileExistingReuseDeclinesWhenAsinConsumed(t *testing.T) {
	store := &fakeStore{records: map[string][]CatalogRecord{
		"HHKB Professional HYBRID": {{
			Name:      "HHKB Professional HYBRID",
			Brand:     "HHKB",
			Category:  "keyboard",
			ASIN:      "B08XYZ",
			AmazonURL: "https://amazon.co.jp/dp/B08XYZ",
		}},
		"HHKB Professional HYBRID Type-S": {{
			Name:      "HHKB Professional HYBRID Type-S",
			Brand:     "HHKB",
			Category:  "keyboard",
			ASIN:      "B08XYZ",
			AmazonURL: "https://amazon.co.jp/dp/B08XYZ",
		}},
	}}
	search := &fakeSearch{}
	r := newTestReconciler(store, search)

	out := r.Reconcile(context.Background(), Input{
		Products: []ExtractedProduct{
			{Name: "HHKB Professional HYBRID", Category: "keyboard", Confidence: ConfidenceHigh},
			{Name: "HHKB Professional HYBRID Type-S", Category: "keyboard", Confidence: ConfidenceHigh},
		},
		Lookups: map[string]*ProductInfo{
			"B09TYP": {ASIN: "B09TYP", Title: "HHKB Professional HYBRID Type-S Keyboard", ImageURL: "https://img/b09typ.jpg", Price: intPtr(36850)},
		},
	})

	require.Len(t, out, 2)
	require.NotNil(t, out[0].Amazon)
	assert.Equal(t, "B08XYZ", out[0].Amazon.ASIN)
	assert.True(t, out[0].IsExisting)

	// The second product's catalog record points at the ASIN the first one
	// already consumed, so reuse declines and the pool rung takes over.
	require.NotNil(t, out[1].Amazon)
	assert.Equal(t, "B09TYP", out[1].Amazon.ASIN)
	assert.False(t, out[1].IsExisting)
	assert.Equal(t, SourceCandidate, out[1].Source)
}

func TestReconcileUniqueAsins(t *testing.T) {
	store := &fakeStore{}
	search := &fakeSearch{results: []*ProductInfo{
		{ASIN: "B200", Title: "Elgato Stream Deck MK.2", ImageURL: "https://img/b200.jpg", Price: intPtr(19800)},
	}}
	r := newTestReconciler(store, search)

	out := r.Reconcile(context.Background(), Input{
		Products: []ExtractedProduct{
			{Name: "Elgato Stream Deck", Category: "controller", Confidence: ConfidenceHigh},
			{Name: "Stream Deck MK.2", Category: "controller", Confidence: ConfidenceHigh},
		},
	})

	seen := map[string]bool{}
	for _, m := range out {
		if m.Amazon == nil || m.Amazon.ASIN == "" {
			continue
		}
		require.False(t, seen[m.Amazon.ASIN], "duplicate ASIN %s", m.Amazon.ASIN)
		seen[m.Amazon.ASIN] = true
	}
}

func TestReconcileExcludedBrandGate(t *testing.T) {
	store := &fakeStore{}
	search := &fakeSearch{}
	r := newTestReconciler(store, search, "Apple")

	out := r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
		{Name: "Magic Trackpad", Brand: "Apple", Category: "input", Confidence: ConfidenceHigh},
	}})

	require.Len(t, out, 1)
	assert.Nil(t, out[0].Amazon)
	assert.Contains(t, out[0].MatchReason, "Excluded: Apple")
	assert.Contains(t, out[0].MatchReason, "manual setup required")
	assert.Equal(t, 0, search.callCount(), "excluded brands must never trigger live search")
}

func TestReconcileExcludedBrandMatchesTokensNotSubstrings(t *testing.T) {
	store := &fakeStore{}
	search := &fakeSearch{results: []*ProductInfo{
		{ASIN: "B400", Title: "Pineapple Grip Phone Mount", Manufacturer: "Pineapple", ImageURL: "https://img/b400.jpg", Price: intPtr(2980)},
	}}
	r := newTestReconciler(store, search, "Apple")

	out := r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
		{Name: "Pineapple Grip", Brand: "Pineapple", Category: "accessory", Confidence: ConfidenceHigh},
	}})

	require.Len(t, out, 1)
	assert.Equal(t, 1, search.callCount(), "a name merely embedding an excluded brand still reaches live search")
	require.NotNil(t, out[0].Amazon)
	assert.Equal(t, "B400", out[0].Amazon.ASIN)
	assert.NotContains(t, out[0].MatchReason, "Excluded")
}

func TestReconcileExcludedBrandMultiTokenEntry(t *testing.T) {
	store := &fakeStore{}
	search := &fakeSearch{}
	r := newTestReconciler(store, search, "Herman Miller")

	out := r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
		{Name: "Herman Miller Aeron", Category: "chair", Confidence: ConfidenceHigh},
	}})

	require.Len(t, out, 1)
	assert.Nil(t, out[0].Amazon)
	assert.Contains(t, out[0].MatchReason, "manual setup required")
	assert.Equal(t, 0, search.callCount())
}

func TestReconcileExcludedBrandStillReusesExisting(t *testing.T) {
	store := &fakeStore{records: map[string][]CatalogRecord{
		"Magic Trackpad": {{
			Name:      "Magic Trackpad",
			Brand:     "Apple",
			ASIN:      "B09APL",
			AmazonURL: "https://amazon.co.jp/dp/B09APL",
		}},
	}}
	search := &fakeSearch{}
	r := newTestReconciler(store, search, "Apple")

	out := r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
		{Name: "Magic Trackpad", Brand: "Apple", Category: "input", Confidence: ConfidenceHigh},
	}})

	require.NotNil(t, out[0].Amazon)
	assert.Equal(t, "B09APL", out[0].Amazon.ASIN)
	assert.True(t, out[0].IsExisting)
	assert.Equal(t, 0, search.callCount())
}

func TestReconcileLowConfidenceGate(t *testing.T) {
	store := &fakeStore{}
	search := &fakeSearch{}
	r := newTestReconciler(store, search)

	// No pool, no existing record: terminal low-confidence outcome.
	out := r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
		{Name: "Mystery Lamp", Category: "lighting", Confidence: ConfidenceLow},
	}})
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Amazon)
	assert.Equal(t, "Low confidence (manual search recommended)", out[0].MatchReason)
	assert.Equal(t, 0, search.callCount(), "low confidence must never trigger live search")
}

func TestReconcileLowConfidenceStillMatchesPool(t *testing.T) {
	store := &fakeStore{}
	search := &fakeSearch{}
	r := newTestReconciler(store, search)

	out := r.Reconcile(context.Background(), Input{
		Products: []ExtractedProduct{
			{Name: "BenQ ScreenBar", Category: "lighting", Confidence: ConfidenceLow},
		},
		Lookups: map[string]*ProductInfo{
			"B300": {ASIN: "B300", Title: "BenQ ScreenBar Monitor Light", ImageURL: "https://img/b300.jpg", Price: intPtr(12900)},
		},
	})

	require.NotNil(t, out[0].Amazon)
	assert.Equal(t, "B300", out[0].Amazon.ASIN)
	assert.Equal(t, SourceCandidate, out[0].Source)
	assert.Equal(t, 0, search.callCount())
}

func TestReconcileSearchFailureFallsThrough(t *testing.T) {
	store := &fakeStore{}
	search := &fakeSearch{err: errors.New("throttled")}
	r := newTestReconciler(store, search)

	out := r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
		{Name: "Sony FX3", Brand: "Sony", Category: "camera", Confidence: ConfidenceHigh,
			OfficialInfo: &OfficialInfo{Title: "Sony Alpha FX3 Cinema Line Camera", URL: "https://sony.jp/fx3"}},
		{Name: "Another Thing", Category: "misc", Confidence: ConfidenceHigh},
	}})

	require.Len(t, out, 2, "a failing search call must not abort the batch")
	require.NotNil(t, out[0].Amazon)
	assert.Equal(t, SourceOfficial, out[0].Source)
	assert.Equal(t, "https://sony.jp/fx3", out[0].Amazon.URL)
	assert.Empty(t, out[0].Amazon.ASIN)
	assert.Nil(t, out[1].Amazon)
}

func TestReconcileOfficialFallbackTokenThreshold(t *testing.T) {
	store := &fakeStore{}
	r := newTestReconciler(store, &fakeSearch{})

	t.Run("two token name needs two shared tokens", func(t *testing.T) {
		out := r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
			{Name: "Sony FX3", Category: "camera", Confidence: ConfidenceHigh,
				OfficialInfo: &OfficialInfo{Title: "Sony Alpha FX3 Cinema Line Camera", URL: "https://sony.jp/fx3"}},
		}})
		require.NotNil(t, out[0].Amazon)
		assert.Equal(t, SourceOfficial, out[0].Source)
	})

	t.Run("one shared token is not enough for longer names", func(t *testing.T) {
		out := r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
			{Name: "Sony FX3", Category: "camera", Confidence: ConfidenceHigh,
				OfficialInfo: &OfficialInfo{Title: "Sony Group Portal", URL: "https://sony.jp"}},
		}})
		assert.Nil(t, out[0].Amazon)
	})

	t.Run("single token name accepts on one shared token", func(t *testing.T) {
		// Known precision trade-off: an incidental mention is enough for a
		// single-token name.
		out := r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
			{Name: "Zoom", Category: "audio", Confidence: ConfidenceHigh,
				OfficialInfo: &OfficialInfo{Title: "Zoom in on our pricing", URL: "https://example.com"}},
		}})
		require.NotNil(t, out[0].Amazon)
		assert.Equal(t, SourceOfficial, out[0].Source)
	})
}

func TestReconcileIdempotence(t *testing.T) {
	store := &fakeStore{
		records: map[string][]CatalogRecord{
			"HHKB Professional HYBRID": {{Name: "HHKB Professional HYBRID", ASIN: "B08XYZ", AmazonURL: "https://amazon.co.jp/dp/B08XYZ"}},
		},
		brands: []string{"Sony", "HHKB"},
	}
	search := &fakeSearch{results: []*ProductInfo{
		{ASIN: "B500", Title: "Sony FX3 Cinema Camera", Manufacturer: "Sony", ImageURL: "https://img/b500.jpg", Price: intPtr(498000)},
	}}
	r := newTestReconciler(store, search)

	in := Input{
		Products: []ExtractedProduct{
			{Name: "HHKB Professional HYBRID", Brand: "hhkb", Category: "keyboard", Confidence: ConfidenceHigh},
			{Name: "Sony FX3", Brand: "sony", Category: "camera", Confidence: ConfidenceHigh},
			{Name: "Mystery Lamp", Category: "lighting", Confidence: ConfidenceLow},
		},
		Lookups: map[string]*ProductInfo{
			"B100": {ASIN: "B100", Title: "Some Unrelated Gadget"},
			"B101": nil,
		},
	}

	first := r.Reconcile(context.Background(), in)
	second := r.Reconcile(context.Background(), in)
	assert.Equal(t, first, second, "identical inputs must produce identical output")
}

func TestReconcileDelayOnlyOnSearchPath(t *testing.T) {
	store := &fakeStore{records: map[string][]CatalogRecord{
		"HHKB Professional HYBRID": {{Name: "HHKB Professional HYBRID", ASIN: "B08XYZ", AmazonURL: "https://amazon.co.jp/dp/B08XYZ"}},
	}}
	search := &fakeSearch{}
	r := NewReconciler(store, search, nil, time.Millisecond)
	sleeps := 0
	r.sleep = func(time.Duration) { sleeps++ }

	r.Reconcile(context.Background(), Input{Products: []ExtractedProduct{
		{Name: "HHKB Professional HYBRID", Confidence: ConfidenceHigh},
		{Name: "Mystery Lamp", Confidence: ConfidenceLow},
		{Name: "Fresh Gadget Pro", Category: "misc", Confidence: ConfidenceHigh},
	}})

	assert.Equal(t, 1, sleeps, "only the live-search rung pays the rate-limit delay")
	assert.Equal(t, 1, search.callCount())
}
