package vocab

import (
	"github.com/sahilm/fuzzy"
)

// Prefilter scores how much text looks like some vocabulary spelling, using
// the character-bigram Dice coefficient. It is cheap and only used to rank
// candidate blocks before the real match.
func (v *Vocabulary) Prefilter(text string) float64 {
	n := Normalize(StripPageMarkers(text))
	if n == "" {
		return 0
	}
	if _, ok := v.byNorm[n]; ok {
		return 1
	}
	g := bigrams(n)
	var best float64
	for i := range v.variants {
		if s := dice(g, v.variants[i].grams); s > best {
			best = s
		}
	}
	return best
}

func bigrams(s string) map[string]struct{} {
	r := []rune(s)
	out := make(map[string]struct{}, len(r))
	if len(r) == 1 {
		out[s] = struct{}{}
		return out
	}
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])] = struct{}{}
	}
	return out
}

func dice(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for g := range small {
		if _, ok := large[g]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}

// Suggest returns up to limit canonical labels whose spellings fuzzily match
// query, best first. Used when a reviewer renames a segment.
func (v *Vocabulary) Suggest(query string, limit int) []string {
	if limit <= 0 {
		limit = 10
	}
	q := Normalize(query)
	if q == "" {
		out := make([]string, 0, min(limit, len(v.entries)))
		for _, e := range v.entries[:min(limit, len(v.entries))] {
			out = append(out, e.Label)
		}
		return out
	}

	data := make([]string, len(v.variants))
	for i := range v.variants {
		data[i] = v.variants[i].Norm
	}
	matches := fuzzy.Find(q, data)

	out := make([]string, 0, limit)
	seen := make(map[string]bool)
	for _, m := range matches {
		label := v.variants[m.Index].Label
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
		if len(out) == limit {
			break
		}
	}
	return out
}
