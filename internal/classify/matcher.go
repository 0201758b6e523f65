package classify

import (
	"slices"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/dgallion1/scoreslice/internal/layout"
	"github.com/dgallion1/scoreslice/internal/vocab"
)

// tieEpsilon is the confidence difference under which two labels tie.
const tieEpsilon = 1e-9

// Match is the Label Matcher's verdict for one candidate string.
type Match struct {
	Label      string   `json:"label"`
	Variant    string   `json:"variant"` // vocabulary spelling that matched best
	Raw        string   `json:"raw"`
	Confidence float64  `json:"confidence"`
	Ties       []string `json:"ties,omitempty"` // every label tied with Label, Label included
}

// Matcher maps recognized strings to vocabulary labels by normalized edit
// distance.
type Matcher struct {
	vocab     *vocab.Vocabulary
	variants  []vocab.Variant
	threshold float64
}

// NewMatcher builds a matcher. Matches below threshold are rejected.
func NewMatcher(v *vocab.Vocabulary, threshold float64) *Matcher {
	return &Matcher{
		vocab:     v,
		variants:  v.Variants(),
		threshold: threshold,
	}
}

// Similarity is 1 - editDistance/max(len(a), len(b)) over runes, clamped to
// [0,1]. Two empty strings are identical.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return layout.Clamp01(1 - float64(d)/float64(longest))
}

// Match resolves candidate against the vocabulary. recent is the label used
// on the preceding page, or "" when unknown; it wins ties.
func (m *Matcher) Match(candidate, recent string) (Match, bool) {
	n := vocab.Normalize(vocab.StripPageMarkers(candidate))
	if n == "" {
		return Match{}, false
	}

	if exact := m.vocab.ExactLabels(n); len(exact) > 0 {
		ties := dedupe(exact)
		return Match{
			Label:      pick(ties, recent),
			Variant:    candidate,
			Raw:        candidate,
			Confidence: 1,
			Ties:       ties,
		}, true
	}

	type scored struct {
		label   string
		variant string
		conf    float64
	}
	var best []scored // one per label, vocabulary order
	index := make(map[string]int)
	for _, v := range m.variants {
		conf := Similarity(n, v.Norm)
		i, seen := index[v.Label]
		if !seen {
			index[v.Label] = len(best)
			best = append(best, scored{label: v.Label, variant: v.Text, conf: conf})
			continue
		}
		if conf > best[i].conf {
			best[i].conf = conf
			best[i].variant = v.Text
		}
	}
	if len(best) == 0 {
		return Match{}, false
	}

	top := best[0].conf
	for _, s := range best[1:] {
		top = max(top, s.conf)
	}
	if top < m.threshold {
		return Match{}, false
	}

	var ties []string
	variants := make(map[string]string)
	for _, s := range best {
		if top-s.conf <= tieEpsilon {
			ties = append(ties, s.label)
			variants[s.label] = s.variant
		}
	}
	label := pick(ties, recent)
	return Match{
		Label:      label,
		Variant:    variants[label],
		Raw:        candidate,
		Confidence: top,
		Ties:       ties,
	}, true
}

// pick prefers recent when it is among ties, else the first tie.
func pick(ties []string, recent string) string {
	if recent != "" && slices.Contains(ties, recent) {
		return recent
	}
	return ties[0]
}

func dedupe(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}
