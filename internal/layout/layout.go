// Package layout holds the positioned text blocks produced by a recognizer
// for a single page.
package layout

import (
	"sort"
)

// BBox is a page-relative bounding box. Coordinates are normalized to 0..1
// with the origin in the top-left corner of the page.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Height returns the normalized height of the box.
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// TextBlock is one recognized run of text on a page.
type TextBlock struct {
	Page       int     `json:"page"`
	Text       string  `json:"text"`
	Box        BBox    `json:"box"`
	FontRank   int     `json:"font_rank"`  // 1 = smallest text on the page
	Confidence float64 `json:"confidence"` // recognizer confidence, 0..1 (0 if unknown)
}

// sizeTolerance is the relative difference under which two font sizes are
// treated as the same size.
const sizeTolerance = 0.08

// AssignFontRanks sets FontRank on each block from the raw font size measured
// by the recognizer (pixels or points, any unit). sizes[i] belongs to
// blocks[i]. Ranks are dense: the smallest size gets 1 and each distinct
// larger size the next integer.
func AssignFontRanks(blocks []TextBlock, sizes []float64) {
	if len(blocks) == 0 || len(sizes) != len(blocks) {
		return
	}

	order := make([]int, len(sizes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return sizes[order[a]] < sizes[order[b]] })

	rank := 1
	base := sizes[order[0]]
	for _, idx := range order {
		s := sizes[idx]
		if base > 0 && (s-base)/base > sizeTolerance {
			rank++
			base = s
		}
		blocks[idx].FontRank = rank
	}
}

// Clamp01 limits v to the closed interval [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
