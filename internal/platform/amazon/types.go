package amazon

import "desktour/internal/core/match"

// Wire types for the slice of the PA-API v5 response surface this service
// reads. Field sets follow the Resources requested in client.go.

type searchItemsResponse struct {
	SearchResult struct {
		Items []item `json:"Items"`
	} `json:"SearchResult"`
	Errors []apiError `json:"Errors"`
}

type getItemsResponse struct {
	ItemsResult struct {
		Items []item `json:"Items"`
	} `json:"ItemsResult"`
	Errors []apiError `json:"Errors"`
}

type apiError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

type item struct {
	ASIN          string `json:"ASIN"`
	DetailPageURL string `json:"DetailPageURL"`
	ItemInfo      struct {
		Title *displayValue `json:"Title"`
		ByLineInfo *struct {
			Brand        *displayValue `json:"Brand"`
			Manufacturer *displayValue `json:"Manufacturer"`
		} `json:"ByLineInfo"`
		ManufactureInfo *struct {
			Model *displayValue `json:"Model"`
		} `json:"ManufactureInfo"`
		Features *struct {
			DisplayValues []string `json:"DisplayValues"`
		} `json:"Features"`
	} `json:"ItemInfo"`
	Images *struct {
		Primary *struct {
			Large *struct {
				URL string `json:"URL"`
			} `json:"Large"`
		} `json:"Primary"`
	} `json:"Images"`
	Offers *struct {
		Listings []struct {
			Price *struct {
				Amount float64 `json:"Amount"`
			} `json:"Price"`
		} `json:"Listings"`
	} `json:"Offers"`
	BrowseNodeInfo *struct {
		BrowseNodes []struct {
			DisplayName string `json:"DisplayName"`
		} `json:"BrowseNodes"`
	} `json:"BrowseNodeInfo"`
}

type displayValue struct {
	DisplayValue string `json:"DisplayValue"`
}

func (it item) toProductInfo() *match.ProductInfo {
	info := &match.ProductInfo{
		ASIN: it.ASIN,
		URL:  it.DetailPageURL,
	}
	if it.ItemInfo.Title != nil {
		info.Title = it.ItemInfo.Title.DisplayValue
	}
	if bl := it.ItemInfo.ByLineInfo; bl != nil {
		if bl.Brand != nil {
			info.Manufacturer = bl.Brand.DisplayValue
		} else if bl.Manufacturer != nil {
			info.Manufacturer = bl.Manufacturer.DisplayValue
		}
	}
	if mi := it.ItemInfo.ManufactureInfo; mi != nil && mi.Model != nil {
		info.ModelNumber = mi.Model.DisplayValue
	}
	if it.ItemInfo.Features != nil {
		info.Features = it.ItemInfo.Features.DisplayValues
	}
	if it.Images != nil && it.Images.Primary != nil && it.Images.Primary.Large != nil {
		info.ImageURL = it.Images.Primary.Large.URL
	}
	if it.Offers != nil && len(it.Offers.Listings) > 0 && it.Offers.Listings[0].Price != nil {
		price := int(it.Offers.Listings[0].Price.Amount)
		info.Price = &price
	}
	if it.BrowseNodeInfo != nil {
		for _, n := range it.BrowseNodeInfo.BrowseNodes {
			if n.DisplayName != "" {
				info.Categories = append(info.Categories, n.DisplayName)
			}
		}
	}
	return info
}
