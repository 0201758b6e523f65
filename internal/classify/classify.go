// Package classify turns the text blocks of one page into a best guess of
// the page's title and instrument part.
package classify

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dgallion1/scoreslice/internal/layout"
	"github.com/dgallion1/scoreslice/internal/vocab"
)

// Unidentified is the placeholder label of pages without a recognized part.
const Unidentified = "Unidentified"

// Status tags a PageClassification.
type Status int

const (
	Unrecognized Status = iota
	LowConfidence
	Confident
)

func (s Status) String() string {
	switch s {
	case Confident:
		return "confident"
	case LowConfidence:
		return "low_confidence"
	case Unrecognized:
		return "unrecognized"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "confident":
		*s = Confident
	case "low_confidence":
		*s = LowConfidence
	case "unrecognized":
		*s = Unrecognized
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// PartGuess is the matched part label of a page.
type PartGuess struct {
	Label      string   `json:"label"`
	Raw        string   `json:"raw"`
	Confidence float64  `json:"confidence"`
	Ties       []string `json:"ties,omitempty"`
}

// PageClassification is the machine guess for one page. It is produced once
// and never mutated; reviewer corrections live in the overlay.
type PageClassification struct {
	Page             int        `json:"page"`
	Title            *string    `json:"title,omitempty"`
	Part             *PartGuess `json:"part,omitempty"`
	Status           Status     `json:"status"`
	RecognitionError string     `json:"recognition_error,omitempty"`
}

// Label returns the canonical label, or Unidentified.
func (pc PageClassification) Label() string {
	if pc.Status == Unrecognized || pc.Part == nil {
		return Unidentified
	}
	return pc.Part.Label
}

// Confidence returns the part confidence, 0 for unrecognized pages.
func (pc PageClassification) Confidence() float64 {
	if pc.Status == Unrecognized || pc.Part == nil {
		return 0
	}
	return pc.Part.Confidence
}

// Carries reports whether the page can be read as label: its own label or
// one it tied with.
func (pc PageClassification) Carries(label string) bool {
	if pc.Label() == label {
		return true
	}
	return pc.Part != nil && slices.Contains(pc.Part.Ties, label)
}

// DetectedTitle returns the title found on the lowest-numbered page that has
// one, or "" when no page carries a title.
func DetectedTitle(pages []PageClassification) string {
	best, title := -1, ""
	for _, pc := range pages {
		if pc.Title == nil || *pc.Title == "" {
			continue
		}
		if best < 0 || pc.Page < best {
			best, title = pc.Page, *pc.Title
		}
	}
	return title
}

// Classifier combines the Block Scorer and the Label Matcher.
type Classifier struct {
	scorer  *Scorer
	matcher *Matcher
	policy  Policy
}

// New builds a classifier over a loaded vocabulary.
func New(v *vocab.Vocabulary, p Policy) *Classifier {
	return &Classifier{
		scorer:  NewScorer(v, p),
		matcher: NewMatcher(v, p.AcceptThreshold),
		policy:  p,
	}
}

// Matcher exposes the classifier's label matcher.
func (c *Classifier) Matcher() *Matcher { return c.matcher }

// Classify classifies one page independently of every other page.
func (c *Classifier) Classify(page int, blocks []layout.TextBlock) PageClassification {
	return c.ClassifyAfter(page, blocks, "")
}

// ClassifyAfter is Classify with the label of the preceding page, used to
// break ties when pages are classified in order.
func (c *Classifier) ClassifyAfter(page int, blocks []layout.TextBlock, recent string) PageClassification {
	cand := c.scorer.Score(blocks)

	var title *string
	if cand.Title != nil {
		t := strings.TrimSpace(cand.Title.Text)
		title = &t
	}

	if cand.Part == nil {
		return Unrecognised(page, title)
	}
	m, ok := c.matcher.Match(cand.Part.Text, recent)
	if !ok {
		return Unrecognised(page, title)
	}
	return Classified(page, title, PartGuess{
		Label:      m.Label,
		Raw:        m.Raw,
		Confidence: m.Confidence,
		Ties:       m.Ties,
	}, c.policy.ConfidentThreshold)
}

// Classified builds a Confident or LowConfidence classification.
func Classified(page int, title *string, part PartGuess, confidentAt float64) PageClassification {
	status := LowConfidence
	if part.Confidence >= confidentAt {
		status = Confident
	}
	return PageClassification{Page: page, Title: title, Part: &part, Status: status}
}

// Unrecognised builds an Unrecognized classification.
func Unrecognised(page int, title *string) PageClassification {
	return PageClassification{Page: page, Title: title, Status: Unrecognized}
}
