package match

import (
	"fmt"
	"regexp"
	"strings"
)

// Score weights. Existing-catalog reuse always outranks any fresh match, so
// it carries a sentinel far above what token overlap plus bonuses can reach.
const (
	ScoreExisting   = 300
	scoreTokenMax   = 100
	scoreBrandBonus = 50
	scoreCategory   = 20

	// AcceptThreshold is the minimum score a candidate must reach before the
	// orchestrator assigns it.
	AcceptThreshold = 60
)

// Eval is the scorer's verdict on one (product, candidate) pair.
type Eval struct {
	Score        int
	Reason       string
	Disqualified bool
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// Tokens lowercases and splits a product name or title into comparison
// tokens, dropping single-character fragments.
func Tokens(s string) []string {
	parts := tokenSplit.Split(strings.ToLower(s), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// tokenOverlap counts how many name tokens appear in the title token set.
func tokenOverlap(nameTokens []string, title string) int {
	titleSet := make(map[string]struct{})
	for _, t := range Tokens(title) {
		titleSet[t] = struct{}{}
	}
	n := 0
	for _, t := range nameTokens {
		if _, ok := titleSet[t]; ok {
			n++
		}
	}
	return n
}

// Score evaluates one extracted product against one candidate. Token overlap
// is weighted by the share of *name* tokens found in the title, so long
// marketing titles are not penalized for extra text. A brand disagreement
// when both sides name a brand disqualifies the candidate outright.
func Score(p ExtractedProduct, c Candidate) Eval {
	nameTokens := Tokens(p.Name)
	if len(nameTokens) == 0 {
		return Eval{Reason: "empty product name"}
	}

	candBrand := candidateBrand(c)
	if p.Brand != "" && candBrand != "" && !strings.EqualFold(p.Brand, candBrand) {
		return Eval{
			Disqualified: true,
			Reason:       fmt.Sprintf("brand mismatch: %s vs %s", p.Brand, candBrand),
		}
	}

	overlap := tokenOverlap(nameTokens, c.Title)
	score := overlap * scoreTokenMax / len(nameTokens)
	reason := fmt.Sprintf("title overlap %d/%d", overlap, len(nameTokens))

	// Overlap is the primary signal; the bonuses only reinforce it. Without
	// a single shared title token the candidate is some other product from
	// the same brand and shelf, and must not reach the threshold on bonuses
	// alone.
	if overlap == 0 {
		return Eval{Score: 0, Reason: reason}
	}

	if p.Brand != "" && candBrand != "" {
		score += scoreBrandBonus
		reason += ", brand agrees"
	}

	if p.Category != "" && c.Product != nil && categoryAgrees(p.Category, c.Product.Categories) {
		score += scoreCategory
		reason += ", category agrees"
	}

	return Eval{Score: score, Reason: reason}
}

// candidateBrand picks the candidate's brand signal: the marketplace
// manufacturer field when present, else nothing (titles are too noisy to
// treat as a brand claim).
func candidateBrand(c Candidate) string {
	if c.Product != nil && c.Product.Manufacturer != "" {
		return c.Product.Manufacturer
	}
	return ""
}

// categoryAgrees checks the extraction category against the marketplace
// category hierarchy. Marketplace taxonomies are coarser, so a substring hit
// in either direction counts.
func categoryAgrees(category string, hierarchy []string) bool {
	cat := strings.ToLower(category)
	for _, h := range hierarchy {
		hl := strings.ToLower(h)
		if strings.Contains(hl, cat) || strings.Contains(cat, hl) {
			return true
		}
	}
	return false
}

// tieRank orders equally scored candidates: a listing with both an image and
// a price beats one without, and otherwise the earlier candidate wins.
func tieRank(c Candidate) int {
	if c.Product != nil && c.Product.ImageURL != "" && c.Product.Price != nil {
		return 1
	}
	return 0
}

// PickBest scores every candidate not already consumed in this run and
// returns the best accepted one, or nil when nothing clears the threshold.
func PickBest(p ExtractedProduct, pool []Candidate, used map[string]struct{}) (*Candidate, Eval) {
	var best *Candidate
	var bestEval Eval
	for i := range pool {
		c := pool[i]
		if _, taken := used[c.ASIN]; taken {
			continue
		}
		ev := Score(p, c)
		if ev.Disqualified || ev.Score < AcceptThreshold {
			continue
		}
		if best == nil || ev.Score > bestEval.Score ||
			(ev.Score == bestEval.Score && tieRank(c) > tieRank(*best)) {
			cc := c
			best = &cc
			bestEval = ev
		}
	}
	return best, bestEval
}
