package match

import (
	"context"
	"time"
)

// Confidence is the extractor's self-reported certainty that a mention is a
// real, identifiable product.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// OfficialInfo is a brand-site link scraped out of a video or article
// description, used as a substitute listing source when no marketplace
// match is found.
type OfficialInfo struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ExtractedProduct is one product mention produced by LLM analysis of a
// transcript or article body.
type ExtractedProduct struct {
	Name         string        `json:"name"`
	Brand        string        `json:"brand,omitempty"`
	Category     string        `json:"category"`
	Subcategory  string        `json:"subcategory,omitempty"`
	Confidence   Confidence    `json:"confidence"`
	Reason       string        `json:"reason"`
	OfficialInfo *OfficialInfo `json:"official_info,omitempty"`
}

// ProductInfo carries the marketplace attributes of one listing.
type ProductInfo struct {
	ASIN         string   `json:"asin"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	ImageURL     string   `json:"image_url,omitempty"`
	Price        *int     `json:"price,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	ModelNumber  string   `json:"model_number,omitempty"`
	Features     []string `json:"features,omitempty"`
	Categories   []string `json:"categories,omitempty"`
}

// Candidate is one marketplace listing considered as a possible match.
type Candidate struct {
	ASIN    string
	Title   string
	Product *ProductInfo
}

// CatalogRecord is a previously persisted product row. The engine only ever
// reads these.
type CatalogRecord struct {
	ID             int64
	Name           string
	Brand          string
	Category       string
	Tags           []string
	ASIN           string
	AmazonURL      string
	AmazonTitle    string
	AmazonImageURL string
	AmazonPrice    *int
	ProductSource  string
	UpdatedAt      time.Time
}

// AmazonLink is the listing assignment carried by a matched product. ASIN is
// empty for official-site fallbacks.
type AmazonLink struct {
	ASIN     string `json:"asin,omitempty"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	ImageURL string `json:"image_url,omitempty"`
	Price    *int   `json:"price,omitempty"`
}

// Source values recorded on matched products.
const (
	SourceExisting  = "existing"
	SourceCandidate = "candidate"
	SourceSearch    = "search"
	SourceOfficial  = "official"
)

// MatchedProduct is the engine's per-item output. Amazon is nil when no
// listing could be assigned; MatchReason always says why.
type MatchedProduct struct {
	Name        string      `json:"name"`
	Brand       string      `json:"brand,omitempty"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory,omitempty"`
	Reason      string      `json:"reason"`
	Confidence  Confidence  `json:"confidence"`
	Tags        []string    `json:"tags,omitempty"`
	Amazon      *AmazonLink `json:"amazon"`
	Source      string      `json:"source,omitempty"`
	MatchScore  int         `json:"match_score,omitempty"`
	MatchReason string      `json:"match_reason"`
	IsExisting  bool        `json:"is_existing,omitempty"`
}

// Query is a live marketplace search request.
type Query struct {
	Name     string
	Brand    string
	Category string
}

// SearchClient performs live marketplace searches. Implementations are
// rate-limited externally; the orchestrator additionally enforces a fixed
// delay between consecutive calls.
type SearchClient interface {
	Search(ctx context.Context, q Query) ([]*ProductInfo, error)
}

// CatalogStore reads the existing product catalog.
type CatalogStore interface {
	// FindByName returns all stored rows whose name matches exactly or after
	// normalization, most recently updated first.
	FindByName(ctx context.Context, name string) ([]CatalogRecord, error)
	// Brands returns the distinct brand strings present in the catalog.
	Brands(ctx context.Context) ([]string, error)
}
