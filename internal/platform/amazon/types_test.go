package amazon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemToProductInfo(t *testing.T) {
	raw := `{
		"ASIN": "B08XYZ1234",
		"DetailPageURL": "https://www.amazon.co.jp/dp/B08XYZ1234",
		"ItemInfo": {
			"Title": {"DisplayValue": "HHKB Professional HYBRID Type-S"},
			"ByLineInfo": {"Brand": {"DisplayValue": "HHKB"}},
			"ManufactureInfo": {"Model": {"DisplayValue": "PD-KB800BS"}},
			"Features": {"DisplayValues": ["Bluetooth", "Type-S silent"]}
		},
		"Images": {"Primary": {"Large": {"URL": "https://m.media-amazon.com/img.jpg"}}},
		"Offers": {"Listings": [{"Price": {"Amount": 36850}}]},
		"BrowseNodeInfo": {"BrowseNodes": [{"DisplayName": "Keyboards"}]}
	}`

	var it item
	require.NoError(t, json.Unmarshal([]byte(raw), &it))

	info := it.toProductInfo()
	assert.Equal(t, "B08XYZ1234", info.ASIN)
	assert.Equal(t, "HHKB Professional HYBRID Type-S", info.Title)
	assert.Equal(t, "HHKB", info.Manufacturer)
	assert.Equal(t, "PD-KB800BS", info.ModelNumber)
	assert.Equal(t, "https://m.media-amazon.com/img.jpg", info.ImageURL)
	require.NotNil(t, info.Price)
	assert.Equal(t, 36850, *info.Price)
	assert.Equal(t, []string{"Keyboards"}, info.Categories)
}

func TestItemToProductInfoSparse(t *testing.T) {
	var it item
	require.NoError(t, json.Unmarshal([]byte(`{"ASIN": "B000000000"}`), &it))

	info := it.toProductInfo()
	assert.Equal(t, "B000000000", info.ASIN)
	assert.Empty(t, info.Title)
	assert.Nil(t, info.Price)
	assert.Empty(t, info.Categories)
}
