package amazon

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"desktour/internal/core/match"
	"desktour/internal/logger"
)

// Client talks to the Product Advertising API v5. It implements the
// reconciliation engine's SearchClient and the batch ASIN lookup used to
// build the candidate pool.
type Client struct {
	log        *logger.Logger
	httpClient *http.Client

	accessKey  string
	secretKey  string
	partnerTag string
	host       string
	region     string
}

type Config struct {
	AccessKey  string
	SecretKey  string
	PartnerTag string
	Host       string // e.g. webservices.amazon.co.jp
	Region     string // e.g. us-west-2
}

func New(cfg Config) *Client {
	return &Client{
		log:        logger.New("AmazonPAAPI"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		accessKey:  cfg.AccessKey,
		secretKey:  cfg.SecretKey,
		partnerTag: cfg.PartnerTag,
		host:       cfg.Host,
		region:     cfg.Region,
	}
}

var resources = []string{
	"ItemInfo.Title",
	"ItemInfo.ByLineInfo",
	"ItemInfo.ManufactureInfo",
	"ItemInfo.Features",
	"Images.Primary.Large",
	"Offers.Listings.Price",
	"BrowseNodeInfo.BrowseNodes",
}

// Search performs a SearchItems call refined by brand and category keywords.
func (c *Client) Search(ctx context.Context, q match.Query) ([]*match.ProductInfo, error) {
	keywords := strings.TrimSpace(strings.Join([]string{q.Brand, q.Name}, " "))
	payload := map[string]interface{}{
		"Keywords":    keywords,
		"Resources":   resources,
		"PartnerTag":  c.partnerTag,
		"PartnerType": "Associates",
		"ItemCount":   10,
	}
	if q.Category != "" {
		payload["Keywords"] = keywords + " " + q.Category
	}

	var out searchItemsResponse
	if err := c.call(ctx, "SearchItems", payload, &out); err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("paapi search: %s", out.Errors[0].Message)
	}

	infos := make([]*match.ProductInfo, 0, len(out.SearchResult.Items))
	for _, item := range out.SearchResult.Items {
		infos = append(infos, item.toProductInfo())
	}
	c.log.LogDebugf("search %q -> %d items", keywords, len(infos))
	return infos, nil
}

// Lookup fetches listings for a batch of ASINs. The API caps GetItems at 10
// ids per call. ASINs the marketplace no longer knows come back as nil
// entries so the caller can tell a failed lookup from an absent one.
func (c *Client) Lookup(ctx context.Context, asins []string) map[string]*match.ProductInfo {
	out := make(map[string]*match.ProductInfo, len(asins))
	for _, asin := range asins {
		out[asin] = nil
	}

	for start := 0; start < len(asins); start += 10 {
		end := start + 10
		if end > len(asins) {
			end = len(asins)
		}
		chunk := asins[start:end]

		payload := map[string]interface{}{
			"ItemIds":     chunk,
			"Resources":   resources,
			"PartnerTag":  c.partnerTag,
			"PartnerType": "Associates",
		}
		var resp getItemsResponse
		if err := c.call(ctx, "GetItems", payload, &resp); err != nil {
			c.log.LogWarnf("lookup chunk failed (%d asins): %v", len(chunk), err)
			continue
		}
		for _, item := range resp.ItemsResult.Items {
			out[item.ASIN] = item.toProductInfo()
		}
	}
	return out
}

// call signs and executes one PA-API operation.
func (c *Client) call(ctx context.Context, operation string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("paapi payload: %w", err)
	}

	path := "/paapi5/" + strings.ToLower(operation)
	target := "com.amazon.paapi5.v1.ProductAdvertisingAPIv1." + operation

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://"+c.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("paapi request: %w", err)
	}
	now := time.Now().UTC()
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Content-Encoding", "amz-1.0")
	req.Header.Set("X-Amz-Target", target)
	req.Header.Set("X-Amz-Date", now.Format("20060102T150405Z"))
	req.Header.Set("Host", c.host)
	req.Header.Set("Authorization", c.authorization(path, target, body, now))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paapi %s: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("paapi read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("paapi %s: status %d: %s", operation, resp.StatusCode, truncate(string(respBody), 200))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("paapi decode: %w", err)
	}
	return nil
}

// authorization builds the AWS Signature Version 4 header for one request.
func (c *Client) authorization(path, target string, body []byte, now time.Time) string {
	const service = "ProductAdvertisingAPI"
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	payloadHash := sha256Hex(body)
	canonicalHeaders := "content-encoding:amz-1.0\n" +
		"content-type:application/json; charset=utf-8\n" +
		"host:" + c.host + "\n" +
		"x-amz-date:" + amzDate + "\n" +
		"x-amz-target:" + target + "\n"
	signedHeaders := "content-encoding;content-type;host;x-amz-date;x-amz-target"

	canonicalRequest := strings.Join([]string{
		http.MethodPost, path, "", canonicalHeaders, signedHeaders, payloadHash,
	}, "\n")

	credentialScope := strings.Join([]string{dateStamp, c.region, service, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256", amzDate, credentialScope, sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	key := hmacSHA256([]byte("AWS4"+c.secretKey), dateStamp)
	key = hmacSHA256(key, c.region)
	key = hmacSHA256(key, service)
	key = hmacSHA256(key, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	return fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		c.accessKey, credentialScope, signedHeaders, signature)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
