package ui

import (
	"sort"
	"strings"
)

// Suggestions are limited to MaxSuggestions names within MaxDistance edits
const (
	MaxDistance    = 3
	MaxSuggestions = 3
)

// Suggest returns up to MaxSuggestions candidates close to target, nearest
// first. Matching ignores case; a candidate that starts with target always
// qualifies.
func Suggest(target string, candidates []string) []string {
	type match struct {
		name string
		dist int
	}
	t := strings.ToLower(target)
	var matches []match
	for _, c := range candidates {
		lc := strings.ToLower(c)
		d := Distance(t, lc)
		if t != "" && strings.HasPrefix(lc, t) && d > 1 {
			d = 1
		}
		if d <= MaxDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].name < matches[j].name
	})

	out := []string{}
	for i := 0; i < len(matches) && i < MaxSuggestions; i++ {
		out = append(out, matches[i].name)
	}
	return out
}

// Distance is the Levenshtein edit distance between a and b, counted in runes
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
