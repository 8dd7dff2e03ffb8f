package describe

import (
	"testing"

	"desktour/internal/core/match"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestASINFromURL(t *testing.T) {
	cases := []struct {
		url  string
		asin string
	}{
		{"https://www.amazon.co.jp/dp/B08XYZ1234", "B08XYZ1234"},
		{"https://www.amazon.co.jp/dp/B08XYZ1234?tag=aff-22", "B08XYZ1234"},
		{"https://www.amazon.co.jp/gp/product/B000111222/ref=something", "B000111222"},
		{"https://www.amazon.com/Some-Product-Name/dp/B07ABCDEFG/", "B07ABCDEFG"},
		{"https://www.amazon.co.jp/s?k=hhkb", ""},
		{"https://example.com/dp/B08XYZ1234", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.asin, ASINFromURL(tc.url), tc.url)
	}
}

func TestCollectLinks(t *testing.T) {
	html := `<html><body>
		<a href="https://www.amazon.co.jp/dp/B08XYZ1234?tag=me-22">HHKB</a>
		<a href="https://www.amazon.co.jp/dp/B08XYZ1234">HHKB again</a>
		<a href="https://amzn.to/3abcdef">short link</a>
		<a href="https://happyhackingkb.com/jp/products/hybrid/">HHKB Professional HYBRID official</a>
		<a href="https://www.youtube.com/watch?v=x">my video</a>
		<a href="/about">about me</a>
		<a href="#section">jump</a>
	</body></html>`

	s := NewService()
	links, short := s.CollectLinks(html, "https://blog.example.com/desk-tour")

	assert.Equal(t, []string{"B08XYZ1234"}, links.ASINs)
	require.Len(t, links.Official, 1)
	assert.Equal(t, "https://happyhackingkb.com/jp/products/hybrid/", links.Official[0].URL)
	assert.Equal(t, "HHKB Professional HYBRID official", links.Official[0].Title)
	assert.Equal(t, []string{"https://amzn.to/3abcdef"}, short)
}

func TestCollectLinksPlainTextDescription(t *testing.T) {
	description := "My gear:\n" +
		"Keyboard: https://www.amazon.co.jp/dp/B08XYZ1234\n" +
		"Mic: https://amzn.to/3abcdef\n" +
		"Chair: https://www.hermanmiller.com/products/seating/office-chairs/aeron-chairs/\n"

	s := NewService()
	links, short := s.CollectLinks(description, "https://www.youtube.com/watch?v=abc")

	assert.Equal(t, []string{"B08XYZ1234"}, links.ASINs)
	assert.Equal(t, []string{"https://amzn.to/3abcdef"}, short)
	require.Len(t, links.Official, 1)
	assert.Equal(t, "https://www.hermanmiller.com/products/seating/office-chairs/aeron-chairs/", links.Official[0].URL)
}

func TestCollectLinksSkipsSameHost(t *testing.T) {
	html := `<a href="https://blog.example.com/other-post">other post</a>`
	s := NewService()
	links, _ := s.CollectLinks(html, "https://blog.example.com/desk-tour")
	assert.Empty(t, links.Official)
}

func TestAttachOfficialInfo(t *testing.T) {
	products := []match.ExtractedProduct{
		{Name: "HHKB Professional HYBRID", Brand: "PFU"},
		{Name: "FX3", Brand: "Sony"},
	}
	official := []match.OfficialInfo{
		{Title: "FX3 | Sony Cinema Line", URL: "https://www.sony.jp/ilc/products/fx3/"},
		{Title: "HHKB Professional HYBRID Type-S", URL: "https://happyhackingkb.com/jp/"},
	}

	out := AttachOfficialInfo(products, official)

	require.NotNil(t, out[0].OfficialInfo)
	assert.Equal(t, "https://happyhackingkb.com/jp/", out[0].OfficialInfo.URL)
	// Single-token name needs only one matching token.
	require.NotNil(t, out[1].OfficialInfo)
	assert.Equal(t, "https://www.sony.jp/ilc/products/fx3/", out[1].OfficialInfo.URL)

	// Input is untouched.
	assert.Nil(t, products[0].OfficialInfo)
}

func TestAttachOfficialInfoNoWeakMatches(t *testing.T) {
	products := []match.ExtractedProduct{{Name: "Herman Miller Aeron"}}
	official := []match.OfficialInfo{{Title: "My favorite desk mat", URL: "https://deskmats.example.com/"}}

	out := AttachOfficialInfo(products, official)
	assert.Nil(t, out[0].OfficialInfo)
}

func TestAttachOfficialInfoEachLinkUsedOnce(t *testing.T) {
	products := []match.ExtractedProduct{
		{Name: "Stream Deck MK.2"},
		{Name: "Stream Deck MK.2"},
	}
	official := []match.OfficialInfo{
		{Title: "Stream Deck MK.2 | Elgato", URL: "https://www.elgato.com/stream-deck-mk2"},
	}

	out := AttachOfficialInfo(products, official)
	require.NotNil(t, out[0].OfficialInfo)
	assert.Nil(t, out[1].OfficialInfo)
}
