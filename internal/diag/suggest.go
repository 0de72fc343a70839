package diag

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	maxSuggestions  = 3
	maxEditDistance = 3
)

// Suggest returns up to three known commands that are plausible intents
// for an unknown input. Substring containment ranks ahead of edit
// distance; distances beyond maxEditDistance are ignored entirely.
func Suggest(input string, known []string) []string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" || len(known) == 0 {
		return nil
	}

	type scored struct {
		name string
		rank int // 0 for containment, edit distance otherwise
	}

	var candidates []scored
	for _, k := range known {
		lk := strings.ToLower(k)
		if strings.Contains(lk, input) || strings.Contains(input, lk) {
			candidates = append(candidates, scored{name: k, rank: 0})
			continue
		}
		if d := levenshtein.ComputeDistance(input, lk); d <= maxEditDistance {
			candidates = append(candidates, scored{name: k, rank: d})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		return candidates[i].name < candidates[j].name
	})

	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.name)
	}
	return out
}
