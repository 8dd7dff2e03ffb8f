package rakuten

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"desktour/internal/core/match"
	"desktour/internal/logger"
)

const endpoint = "https://app.rakuten.co.jp/services/api/IchibaItem/Search/20220601"

// Client searches Rakuten Ichiba. It satisfies the engine's SearchClient so
// the marketplace is selectable by configuration; item codes stand in for
// ASINs as the listing identifier.
type Client struct {
	log         *logger.Logger
	httpClient  *http.Client
	appID       string
	affiliateID string
}

func New(appID, affiliateID string) *Client {
	return &Client{
		log:         logger.New("Rakuten"),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		appID:       appID,
		affiliateID: affiliateID,
	}
}

type searchResponse struct {
	Items []struct {
		Item struct {
			ItemCode     string `json:"itemCode"`
			ItemName     string `json:"itemName"`
			ItemURL      string `json:"itemUrl"`
			ItemPrice    int    `json:"itemPrice"`
			ShopName     string `json:"shopName"`
			GenreID      string `json:"genreId"`
			MediumImages []struct {
				ImageURL string `json:"imageUrl"`
			} `json:"mediumImageUrls"`
		} `json:"Item"`
	} `json:"Items"`
}

func (c *Client) Search(ctx context.Context, q match.Query) ([]*match.ProductInfo, error) {
	keyword := strings.TrimSpace(strings.Join([]string{q.Brand, q.Name}, " "))

	params := url.Values{}
	params.Set("applicationId", c.appID)
	params.Set("keyword", keyword)
	params.Set("hits", "10")
	params.Set("format", "json")
	if c.affiliateID != "" {
		params.Set("affiliateId", c.affiliateID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("rakuten request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rakuten search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("rakuten read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rakuten search: status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("rakuten decode: %w", err)
	}

	infos := make([]*match.ProductInfo, 0, len(sr.Items))
	for _, wrapped := range sr.Items {
		it := wrapped.Item
		price := it.ItemPrice
		// Shop name is the seller, not the brand. Manufacturer stays empty,
		// so these candidates never trip the brand-mismatch disqualifier.
		info := &match.ProductInfo{
			ASIN:  it.ItemCode,
			Title: it.ItemName,
			URL:   it.ItemURL,
			Price: &price,
		}
		if len(it.MediumImages) > 0 {
			info.ImageURL = it.MediumImages[0].ImageURL
		}
		infos = append(infos, info)
	}
	c.log.LogDebugf("search %q -> %d items", keyword, len(infos))
	return infos, nil
}
