// Package segment groups an ordered sequence of page classifications into
// contiguous part segments.
package segment

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/dgallion1/scoreslice/internal/classify"
)

// ErrEmptyDocument is returned for a document with zero pages.
var ErrEmptyDocument = errors.New("empty document")

// Origin records how a segment came to exist.
type Origin int

const (
	Auto Origin = iota
	ManuallyCreated
	ManuallySplit
	ManuallyMerged
)

var originNames = [...]string{"auto", "manually_created", "manually_split", "manually_merged"}

func (o Origin) String() string {
	if int(o) >= 0 && int(o) < len(originNames) {
		return originNames[o]
	}
	return fmt.Sprintf("origin(%d)", int(o))
}

func (o Origin) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Origin) UnmarshalText(b []byte) error {
	i := slices.Index(originNames[:], strings.ToLower(string(b)))
	if i < 0 {
		return fmt.Errorf("unknown origin %q", b)
	}
	*o = Origin(i)
	return nil
}

// Segment is a contiguous, inclusive page range carrying one part label.
type Segment struct {
	ID         int     `json:"id"`
	Label      string  `json:"label"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Origin     Origin  `json:"origin"`
}

func (s Segment) Len() int { return s.End - s.Start + 1 }

func (s Segment) Contains(page int) bool { return page >= s.Start && page <= s.End }

// Pages lists the segment's page indices in order.
func (s Segment) Pages() []int {
	out := make([]int, 0, s.Len())
	for p := s.Start; p <= s.End; p++ {
		out = append(out, p)
	}
	return out
}

func (s Segment) String() string {
	return fmt.Sprintf("%s [%d..%d]", s.Label, s.Start, s.End)
}

// Policy holds the Segment Builder's tunables.
type Policy struct {
	UnidentifiedRun       int // unrecognized pages a labeled segment absorbs before they split off
	MinUnidentifiedLength int // Unidentified segments this short or shorter are merged away
}

func DefaultPolicy() Policy {
	return Policy{UnidentifiedRun: 3, MinUnidentifiedLength: 1}
}

// Confidence is the mean part confidence of pages [start, end], unrecognized
// pages counting as 0.
func Confidence(pcs []classify.PageClassification, start, end int) float64 {
	if start < 0 || end >= len(pcs) || start > end {
		return 0
	}
	xs := make([]float64, 0, end-start+1)
	for _, pc := range pcs[start : end+1] {
		xs = append(xs, pc.Confidence())
	}
	return stat.Mean(xs, nil)
}

// Order returns the classifications sorted by page and checks that they
// cover 0..n-1 exactly once.
func Order(pcs []classify.PageClassification) ([]classify.PageClassification, error) {
	if len(pcs) == 0 {
		return nil, ErrEmptyDocument
	}
	out := slices.Clone(pcs)
	slices.SortStableFunc(out, func(a, b classify.PageClassification) int { return a.Page - b.Page })
	for i, pc := range out {
		if pc.Page != i {
			return nil, fmt.Errorf("classification sequence: expected page %d, got %d", i, pc.Page)
		}
	}
	return out, nil
}

// Build groups classifications into an ordered segment list covering every
// page. It is deterministic: equal input yields an equal list.
func Build(pcs []classify.PageClassification, p Policy) ([]Segment, error) {
	pcs, err := Order(pcs)
	if err != nil {
		return nil, err
	}

	var segs []Segment
	cur := Segment{Label: pcs[0].Label(), Start: 0, End: 0}
	run := 0 // trailing unrecognized pages absorbed by cur
	if pcs[0].Status == classify.Unrecognized {
		run = 1
	}

	for _, pc := range pcs[1:] {
		page := pc.Page
		recognized := pc.Status != classify.Unrecognized

		switch {
		case pc.Label() == cur.Label || (recognized && pc.Carries(cur.Label)):
			cur.End = page
			if recognized {
				run = 0
			} else {
				run++
			}

		case recognized:
			segs = append(segs, cur)
			cur = Segment{Label: pc.Label(), Start: page, End: page}
			run = 0

		default:
			cur.End = page
			run++
			if cur.Label != classify.Unidentified && run > p.UnidentifiedRun {
				carved := Segment{Label: classify.Unidentified, Start: page - run + 1, End: page}
				cur.End = carved.Start - 1
				segs = append(segs, cur)
				cur = carved
			}
		}
	}
	segs = append(segs, cur)

	segs = absorbShortUnidentified(segs, p.MinUnidentifiedLength)

	for i := range segs {
		segs[i].ID = i + 1
		segs[i].Origin = Auto
		segs[i].Confidence = Confidence(pcs, segs[i].Start, segs[i].End)
	}
	return segs, nil
}

func absorbShortUnidentified(segs []Segment, minLen int) []Segment {
	if len(segs) < 2 {
		return segs
	}
	out := make([]Segment, 0, len(segs))
	for i := 0; i < len(segs); i++ {
		s := segs[i]
		if s.Label != classify.Unidentified || s.Len() > minLen {
			out = append(out, s)
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].End = s.End
			continue
		}
		if i+1 < len(segs) {
			segs[i+1].Start = s.Start
			continue
		}
		out = append(out, s)
	}
	return coalesce(out)
}

// coalesce joins neighbours that carry the same label.
func coalesce(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if n := len(out); n > 0 && out[n-1].Label == s.Label {
			out[n-1].End = s.End
			continue
		}
		out = append(out, s)
	}
	return out
}

// PartitionError reports a segment list that does not partition the pages.
type PartitionError struct {
	Reason string
}

func (e *PartitionError) Error() string {
	return "segments do not partition the document: " + e.Reason
}

// CheckPartition verifies that segs are sorted, non-empty, pairwise disjoint
// and cover [0, pageCount) with no gaps, and that IDs are unique.
func CheckPartition(segs []Segment, pageCount int) error {
	if pageCount == 0 {
		if len(segs) != 0 {
			return &PartitionError{Reason: "segments present for an empty document"}
		}
		return nil
	}
	if len(segs) == 0 {
		return &PartitionError{Reason: "no segments"}
	}
	ids := make(map[int]bool, len(segs))
	next := 0
	for _, s := range segs {
		if s.End < s.Start {
			return &PartitionError{Reason: fmt.Sprintf("segment %d is empty", s.ID)}
		}
		if s.Start != next {
			return &PartitionError{Reason: fmt.Sprintf("segment %d starts at %d, expected %d", s.ID, s.Start, next)}
		}
		if ids[s.ID] {
			return &PartitionError{Reason: fmt.Sprintf("duplicate segment id %d", s.ID)}
		}
		ids[s.ID] = true
		next = s.End + 1
	}
	if next != pageCount {
		return &PartitionError{Reason: fmt.Sprintf("segments end at %d, document has %d pages", next, pageCount)}
	}
	return nil
}
