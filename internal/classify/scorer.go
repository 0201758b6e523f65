package classify

import (
	"unicode/utf8"

	"github.com/dgallion1/scoreslice/internal/layout"
	"github.com/dgallion1/scoreslice/internal/vocab"
)

// Policy holds the tunable constants of per-page classification.
type Policy struct {
	TopFraction        float64 // part labels must start within this fraction of the page height
	MinTitleLength     int     // runes, after normalization
	PrefilterFloor     float64 // minimum prefilter score for a part-label candidate
	AcceptThreshold    float64 // matcher confidence below this is no match
	ConfidentThreshold float64 // matcher confidence at or above this is Confident
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		TopFraction:        0.20,
		MinTitleLength:     3,
		PrefilterFloor:     0.25,
		AcceptThreshold:    0.72,
		ConfidentThreshold: 0.85,
	}
}

// Candidates is the Block Scorer's output for one page. Either block may be
// absent.
type Candidates struct {
	Title     *layout.TextBlock
	Part      *layout.TextBlock
	PartScore float64
}

// Scorer picks the title and part-label candidate blocks of a page.
type Scorer struct {
	vocab  *vocab.Vocabulary
	policy Policy
}

func NewScorer(v *vocab.Vocabulary, p Policy) *Scorer {
	return &Scorer{vocab: v, policy: p}
}

// Score is a pure function of the page's blocks.
func (s *Scorer) Score(blocks []layout.TextBlock) Candidates {
	var c Candidates

	for i := range blocks {
		b := &blocks[i]

		if utf8.RuneCountInString(vocab.Normalize(b.Text)) >= s.policy.MinTitleLength {
			if c.Title == nil || b.FontRank > c.Title.FontRank ||
				(b.FontRank == c.Title.FontRank && b.Box.Y0 < c.Title.Box.Y0) {
				c.Title = b
			}
		}

		if b.Box.Y0 > s.policy.TopFraction {
			continue
		}
		score := s.vocab.Prefilter(b.Text)
		if score < s.policy.PrefilterFloor {
			continue
		}
		if c.Part == nil || score > c.PartScore ||
			(score == c.PartScore && b.Box.Y0 < c.Part.Box.Y0) {
			c.Part = b
			c.PartScore = score
		}
	}

	if c.Title != nil {
		t := *c.Title
		c.Title = &t
	}
	if c.Part != nil {
		p := *c.Part
		c.Part = &p
	}
	return c
}
