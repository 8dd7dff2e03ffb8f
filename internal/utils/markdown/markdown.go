package markdown

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// Selectors tried in order to locate the post body. Desk-tour writeups are
// almost always blog articles, so article-ish containers come first.
var bodySelectors = []string{
	"article",
	".entry-content",
	".post-content",
	".article-body",
	"main",
	"[role=\"main\"]",
	"#content",
	"#main",
}

// Class/id fragments that mark page chrome rather than the writeup itself.
// Blogs surround the article with ranking widgets, related-post carousels,
// SNS follow blocks and comment sections; none of that should reach the
// extraction model.
var noiseKeywords = []string{
	"cookie", "consent", "banner", "navbar", "nav-", "menu-",
	"pagination", "share", "sns", "follow", "profile", "author-box",
	"related", "recommend", "ranking", "comment", "search-",
	"signup", "signin", "login", "ad-", "advert", "sponsor", "promo",
	"modal", "popup", "dialog", "breadcrumb", "sidebar", "widget",
}

var (
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
	imageLineRe = regexp.MustCompile(`^!\[[^\]]*\]\([^)]+\)$`)
	linkLineRe  = regexp.MustCompile(`^!?\[[^\]]*\]\((https?://[^)]+)\)(\]\([^)]+\))?$`)
	dateLineRe  = regexp.MustCompile(`^(?:[A-Za-z]{3}\s\d{1,2},\s\d{4}|\d{4}/\d{1,2}/\d{1,2})\\?$`)
	urlRe       = regexp.MustCompile(`https?://[^\s)]+`)
)

// ConvertHTMLToMarkdown reduces a blog or article page to the markdown the
// extraction model reads: find the post body, strip chrome, convert, then
// de-duplicate the repeated link and date lines these pages tend to carry.
func ConvertHTMLToMarkdown(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	body := findBody(doc)
	stripChrome(body)

	inner, err := body.Html()
	if err != nil {
		return ""
	}

	conv := md.NewConverter("", true, nil)
	out, err := conv.ConvertString(inner)
	if err != nil {
		return ""
	}

	out = dedupeLines(out)
	out = blankRunsRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func findBody(doc *goquery.Document) *goquery.Selection {
	for _, sel := range bodySelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			return s.First()
		}
	}
	return doc.Find("body")
}

func stripChrome(s *goquery.Selection) {
	s.Find("script, style, noscript, nav, header, footer, aside, form, iframe, svg, button, input").Remove()
	s.Find("[role=\"navigation\"], [role=\"banner\"], [role=\"contentinfo\"], [aria-label*=\"cookie\" i], [aria-modal]").Remove()

	s.Find("[class], [id]").Each(func(_ int, el *goquery.Selection) {
		classVal, _ := el.Attr("class")
		idVal, _ := el.Attr("id")
		lower := strings.ToLower(classVal + " " + idVal)
		for _, kw := range noiseKeywords {
			if strings.Contains(lower, kw) {
				el.Remove()
				break
			}
		}
	})
}

// dedupeLines drops repeated link lines, repeated date stamps, bare image
// lines, and invisible characters. Affiliate-heavy posts repeat the same
// product-link block several times per page.
func dedupeLines(text string) string {
	seen := make(map[string]struct{})
	var b strings.Builder

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if imageLineRe.MatchString(line) {
			continue
		}
		if linkLineRe.MatchString(line) || dateLineRe.MatchString(line) {
			key := urlRe.ReplaceAllString(line, "URL")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		b.WriteString(stripInvisible(line))
		b.WriteByte('\n')
	}
	return b.String()
}

// Zero-width and directional characters survive HTML conversion and confuse
// token matching downstream.
var invisibleReplacer = strings.NewReplacer(
	"​", "", // zero-width space
	"‌", "", // zero-width non-joiner
	"‍", "", // zero-width joiner
	"‎", "", // left-to-right mark
	"‏", "", // right-to-left mark
	" ", "", // line separator
	" ", "", // paragraph separator
	"\uFEFF", "", // byte order mark
	"�", "", // replacement character
	"\x00", "",
)

func stripInvisible(line string) string {
	return invisibleReplacer.Replace(line)
}
