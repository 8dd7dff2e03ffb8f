package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupExistingDisambiguation(t *testing.T) {
	newer := time.Now()
	older := newer.Add(-24 * time.Hour)
	store := &fakeStore{records: map[string][]CatalogRecord{
		"Tripod": {
			{ID: 1, Name: "Tripod", Brand: "Manfrotto", Category: "camera", UpdatedAt: newer},
			{ID: 2, Name: "Tripod", Brand: "Ulanzi", Category: "lighting", UpdatedAt: older},
		},
	}}

	t.Run("category match wins", func(t *testing.T) {
		got := LookupExisting(context.Background(), store, []ExtractedProduct{
			{Name: "Tripod", Brand: "Manfrotto", Category: "lighting"},
		})
		require.Contains(t, got, "Tripod")
		assert.EqualValues(t, 2, got["Tripod"].ID)
	})

	t.Run("brand match breaks category tie", func(t *testing.T) {
		got := LookupExisting(context.Background(), store, []ExtractedProduct{
			{Name: "Tripod", Brand: "ulanzi", Category: "audio"},
		})
		assert.EqualValues(t, 2, got["Tripod"].ID)
	})

	t.Run("most recent row is the last resort", func(t *testing.T) {
		got := LookupExisting(context.Background(), store, []ExtractedProduct{
			{Name: "Tripod", Category: "audio"},
		})
		assert.EqualValues(t, 1, got["Tripod"].ID)
	})
}

func TestLookupExistingOneRecordPerName(t *testing.T) {
	store := &fakeStore{records: map[string][]CatalogRecord{
		"Desk Mat": {{ID: 7, Name: "Desk Mat"}},
	}}
	got := LookupExisting(context.Background(), store, []ExtractedProduct{
		{Name: "Desk Mat", Category: "accessory"},
		{Name: "Desk Mat", Category: "other"},
		{Name: "Missing Thing"},
	})

	assert.Len(t, got, 1)
	assert.Equal(t, 2, store.finds, "duplicate names are looked up once")
}

func TestLookupExistingErrorSkipsName(t *testing.T) {
	store := &fakeStore{findErr: errors.New("timeout")}
	got := LookupExisting(context.Background(), store, []ExtractedProduct{
		{Name: "Desk Mat"},
	})
	assert.Empty(t, got, "a lookup error leaves the name absent, batch continues")
}
