package describe

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"desktour/internal/core/match"
	"desktour/internal/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
)

var (
	dpPathRe      = regexp.MustCompile(`/dp/([A-Z0-9]{10})(?:[/?]|$)`)
	gpProductRe   = regexp.MustCompile(`/gp/product/([A-Z0-9]{10})(?:[/?]|$)`)
	bareURLRe     = regexp.MustCompile(`https?://[^\s<>"')]+`)
	shortLinkHost = "amzn.to"
)

// Hosts that never point at a product's official page.
var nonOfficialHosts = []string{
	"amazon.", "amzn.to", "rakuten.", "a.r10.to",
	"youtube.com", "youtu.be", "twitter.com", "x.com",
	"instagram.com", "facebook.com", "note.com", "google.",
}

// Links is what an article body yields for reconciliation: ASINs the author
// already linked, plus outbound links that may be manufacturer pages.
type Links struct {
	ASINs    []string
	Official []match.OfficialInfo
}

// Service mines article HTML for marketplace and official-site links and
// attaches official pages to extracted products.
type Service struct {
	log       *logger.Logger
	userAgent string
	timeout   time.Duration
}

func NewService() *Service {
	return &Service{
		log:       logger.New("DescribeService"),
		userAgent: "Mozilla/5.0 (compatible; desktour/1.0)",
		timeout:   10 * time.Second,
	}
}

// FetchPage retrieves the raw HTML of an article page.
func (s *Service) FetchPage(pageURL string) (string, error) {
	var body []byte
	c := s.newCollector()
	c.OnResponse(func(r *colly.Response) { body = r.Body })
	if err := c.Visit(pageURL); err != nil {
		return "", err
	}
	c.Wait()
	if len(body) == 0 {
		return "", fmt.Errorf("empty response from %s", pageURL)
	}
	return string(body), nil
}

// CollectLinks parses an article body or a plain-text video description.
// Anchors are preferred for their link text; bare URLs are picked up too so
// description text without markup still yields candidates. Short amzn.to
// links come back separately for redirect resolution.
func (s *Service) CollectLinks(content, baseURL string) (*Links, []string) {
	base, _ := url.Parse(baseURL)
	seen := make(map[string]struct{})
	var links Links
	var shortLinks []string

	consume := func(href, text string) {
		href = absolutize(base, href)
		if href == "" {
			return
		}
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}

		if asin := ASINFromURL(href); asin != "" {
			links.ASINs = appendUnique(links.ASINs, asin)
			return
		}
		if isShortLink(href) {
			shortLinks = append(shortLinks, href)
			return
		}
		if isOfficialCandidate(href, base) {
			links.Official = append(links.Official, match.OfficialInfo{
				Title: strings.TrimSpace(text),
				URL:   href,
			})
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err == nil {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			consume(href, sel.Text())
		})
	} else {
		s.log.LogWarnf("collect links: unparseable html: %v", err)
	}

	for _, raw := range bareURLRe.FindAllString(content, -1) {
		consume(raw, "")
	}

	s.log.LogDebugf("collected asins=%d official=%d short=%d from %s",
		len(links.ASINs), len(links.Official), len(shortLinks), baseURL)
	return &links, shortLinks
}

// ResolveShortLinks follows amzn.to redirects to recover ASINs. Failures are
// skipped; a dead short link just means one fewer candidate.
func (s *Service) ResolveShortLinks(ctx context.Context, shortLinks []string) []string {
	var asins []string
	for _, link := range shortLinks {
		select {
		case <-ctx.Done():
			return asins
		default:
		}
		asin, err := s.resolveOne(link)
		if err != nil {
			s.log.LogWarnf("short link %s unresolvable: %v", link, err)
			continue
		}
		if asin != "" {
			asins = appendUnique(asins, asin)
		}
	}
	return asins
}

func (s *Service) resolveOne(link string) (string, error) {
	var final string
	c := s.newCollector()
	c.OnResponse(func(r *colly.Response) {
		final = r.Request.URL.String()
	})
	if err := c.Visit(link); err != nil {
		return "", err
	}
	c.Wait()
	return ASINFromURL(final), nil
}

// FetchOfficialTitles fills in missing titles on official links by fetching
// each page's <title>. Best effort: a fetch failure leaves the anchor text.
func (s *Service) FetchOfficialTitles(ctx context.Context, official []match.OfficialInfo) []match.OfficialInfo {
	out := make([]match.OfficialInfo, len(official))
	copy(out, official)
	for i := range out {
		select {
		case <-ctx.Done():
			return out
		default:
		}
		if len(match.Tokens(out[i].Title)) >= 2 {
			continue
		}
		title, err := s.fetchTitle(out[i].URL)
		if err != nil {
			s.log.LogDebugf("official title fetch %s: %v", out[i].URL, err)
			continue
		}
		if title != "" {
			out[i].Title = title
		}
	}
	return out
}

func (s *Service) fetchTitle(pageURL string) (string, error) {
	var title string
	c := s.newCollector()
	c.OnHTML("title", func(e *colly.HTMLElement) {
		if title == "" {
			title = strings.TrimSpace(e.Text)
		}
	})
	if err := c.Visit(pageURL); err != nil {
		return "", err
	}
	c.Wait()
	return title, nil
}

func (s *Service) newCollector() *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(s.userAgent), colly.MaxDepth(1))
	c.SetRequestTimeout(s.timeout)
	return c
}

// AttachOfficialInfo pairs official links with extracted products by token
// overlap between the product name and the link title or URL. Each link goes
// to at most one product.
func AttachOfficialInfo(products []match.ExtractedProduct, official []match.OfficialInfo) []match.ExtractedProduct {
	out := make([]match.ExtractedProduct, len(products))
	copy(out, products)
	taken := make(map[int]struct{})

	for i := range out {
		nameTokens := match.Tokens(out[i].Name)
		if len(nameTokens) == 0 {
			continue
		}
		need := min(2, len(nameTokens))
		bestIdx, bestOverlap := -1, 0
		for j, link := range official {
			if _, used := taken[j]; used {
				continue
			}
			overlap := overlapCount(nameTokens, match.Tokens(link.Title+" "+link.URL))
			if overlap >= need && overlap > bestOverlap {
				bestIdx, bestOverlap = j, overlap
			}
		}
		if bestIdx >= 0 {
			link := official[bestIdx]
			out[i].OfficialInfo = &link
			taken[bestIdx] = struct{}{}
		}
	}
	return out
}

// ASINFromURL extracts an ASIN from an amazon product URL, or "" if the URL
// is not a product page.
func ASINFromURL(rawURL string) string {
	if rawURL == "" || !strings.Contains(rawURL, "amazon.") {
		return ""
	}
	if m := dpPathRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	if m := gpProductRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

func isShortLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && strings.EqualFold(u.Hostname(), shortLinkHost)
}

func isOfficialCandidate(rawURL string, base *url.URL) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	// Internal navigation is never an official product page.
	if base != nil && strings.EqualFold(host, base.Hostname()) {
		return false
	}
	for _, blocked := range nonOfficialHosts {
		if strings.Contains(host, blocked) {
			return false
		}
	}
	return true
}

func absolutize(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}

func overlapCount(nameTokens, haystack []string) int {
	set := make(map[string]struct{}, len(haystack))
	for _, t := range haystack {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range nameTokens {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
