package match

import "sort"

// BuildPool flattens a batch of ASIN lookups into the candidate list used
// for in-pool matching. Failed lookups arrive as nil entries and are
// dropped. Output is sorted by ASIN so identical inputs always produce the
// identical pool regardless of map iteration order.
func BuildPool(lookups map[string]*ProductInfo) []Candidate {
	pool := make([]Candidate, 0, len(lookups))
	for asin, info := range lookups {
		if info == nil {
			continue
		}
		pool = append(pool, Candidate{ASIN: asin, Title: info.Title, Product: info})
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ASIN < pool[j].ASIN })
	return pool
}
