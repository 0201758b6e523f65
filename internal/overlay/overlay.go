// Package overlay applies reviewer corrections to an automatically built
// segment list. Every operation is all-or-nothing and recorded for undo.
package overlay

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/segment"
)

// Change is one change-log record: the segments an operation removed and
// the ones it put in their place.
type Change struct {
	Seq     int               `json:"seq"`
	Kind    Kind              `json:"kind"`
	Removed []segment.Segment `json:"removed"`
	Added   []segment.Segment `json:"added"`
}

// Inverse returns the change that reverts c.
func (c Change) Inverse() Change {
	return Change{
		Seq:     c.Seq,
		Kind:    c.Kind,
		Removed: slices.Clone(c.Added),
		Added:   slices.Clone(c.Removed),
	}
}

// State is an immutable overlay snapshot. Apply never modifies its input.
type State struct {
	segments  []segment.Segment
	log       []Change
	pageCount int
	nextID    int
	pages     []classify.PageClassification // optional, for confidence
}

// NewState wraps the Segment Builder's output. pcs may be nil, in which case
// confidences are carried along instead of recomputed.
func NewState(segs []segment.Segment, pageCount int, pcs []classify.PageClassification) (State, error) {
	if err := segment.CheckPartition(segs, pageCount); err != nil {
		return State{}, err
	}
	next := 1
	for _, s := range segs {
		next = max(next, s.ID+1)
	}
	return State{
		segments:  slices.Clone(segs),
		pageCount: pageCount,
		nextID:    next,
		pages:     pcs,
	}, nil
}

func (s State) Segments() []segment.Segment { return slices.Clone(s.segments) }

func (s State) Log() []Change { return slices.Clone(s.log) }

func (s State) PageCount() int { return s.pageCount }

// Segment returns the segment with the given ID.
func (s State) Segment(id int) (segment.Segment, bool) {
	i := s.index(id)
	if i < 0 {
		return segment.Segment{}, false
	}
	return s.segments[i], true
}

// SegmentOf returns the segment containing page.
func (s State) SegmentOf(page int) (segment.Segment, bool) {
	for _, seg := range s.segments {
		if seg.Contains(page) {
			return seg, true
		}
	}
	return segment.Segment{}, false
}

func (s State) index(id int) int {
	return slices.IndexFunc(s.segments, func(seg segment.Segment) bool { return seg.ID == id })
}

func (s State) lookup(id int) (segment.Segment, error) {
	seg, ok := s.Segment(id)
	if !ok {
		return segment.Segment{}, &UnknownSegmentError{ID: id}
	}
	return seg, nil
}

func (s State) confidence(start, end int, carried float64) float64 {
	if len(s.pages) != s.pageCount {
		return carried
	}
	return segment.Confidence(s.pages, start, end)
}

// Apply returns the state after op, or an error and no new state.
func Apply(s State, op Operation) (State, error) {
	var (
		ch  Change
		err error
	)
	switch o := op.(type) {
	case ReassignPage:
		ch, err = s.reassign(o)
	case SplitSegment:
		ch, err = s.split(o)
	case MergeSegments:
		ch, err = s.merge(o)
	case RenameSegment:
		ch, err = s.rename(o)
	case Undo:
		return s.undo()
	default:
		return State{}, fmt.Errorf("%w %T", ErrUnknownOperation, op)
	}
	if err != nil {
		return State{}, err
	}

	next, err := s.commit(ch)
	if err != nil {
		return State{}, err
	}
	ch.Seq = len(s.log) + 1
	next.log = append(slices.Clone(s.log), ch)
	return next, nil
}

// commit replaces ch.Removed with ch.Added and re-checks the partition.
func (s State) commit(ch Change) (State, error) {
	segs := make([]segment.Segment, 0, len(s.segments)+len(ch.Added))
	for _, seg := range s.segments {
		if !slices.ContainsFunc(ch.Removed, func(r segment.Segment) bool { return r.ID == seg.ID }) {
			segs = append(segs, seg)
		}
	}
	segs = append(segs, ch.Added...)
	slices.SortFunc(segs, func(a, b segment.Segment) int { return a.Start - b.Start })

	if err := segment.CheckPartition(segs, s.pageCount); err != nil {
		return State{}, fmt.Errorf("%s: %w", ch.Kind, err)
	}
	next := s
	next.segments = segs
	for _, a := range ch.Added {
		next.nextID = max(next.nextID, a.ID+1)
	}
	return next, nil
}

func (s State) undo() (State, error) {
	if len(s.log) == 0 {
		return State{}, ErrNothingToUndo
	}
	last := s.log[len(s.log)-1]
	next, err := s.commit(last.Inverse())
	if err != nil {
		return State{}, err
	}
	next.log = slices.Clone(s.log[:len(s.log)-1])
	return next, nil
}

func (s State) reassign(o ReassignPage) (Change, error) {
	if o.Page < 0 || o.Page >= s.pageCount {
		return Change{}, &PageRangeError{Page: o.Page, PageCount: s.pageCount}
	}
	target, err := s.lookup(o.Target)
	if err != nil {
		return Change{}, err
	}
	from, _ := s.SegmentOf(o.Page)
	if from.ID == target.ID {
		return Change{}, ErrSameSegment
	}
	if o.Page != from.Start && o.Page != from.End {
		return Change{}, &DiscontiguityError{Page: o.Page, Segment: from.ID}
	}

	grown := target
	shrunk := from
	switch {
	case o.Page == from.Start && target.End == o.Page-1:
		grown.End = o.Page
		shrunk.Start = o.Page + 1
	case o.Page == from.End && target.Start == o.Page+1:
		grown.Start = o.Page
		shrunk.End = o.Page - 1
	default:
		return Change{}, &NonAdjacentAssignmentError{Page: o.Page, From: from.ID, Target: target.ID}
	}
	grown.Confidence = s.confidence(grown.Start, grown.End, target.Confidence)

	added := []segment.Segment{grown}
	if shrunk.Start <= shrunk.End {
		shrunk.Confidence = s.confidence(shrunk.Start, shrunk.End, from.Confidence)
		added = append(added, shrunk)
	}
	return Change{Kind: KindReassign, Removed: []segment.Segment{from, target}, Added: added}, nil
}

func (s State) split(o SplitSegment) (Change, error) {
	seg, err := s.lookup(o.Segment)
	if err != nil {
		return Change{}, err
	}
	if o.At <= seg.Start || o.At > seg.End {
		return Change{}, &InvalidSplitBoundaryError{Segment: seg.ID, At: o.At, Start: seg.Start, End: seg.End}
	}

	first := seg
	first.End = o.At - 1
	first.Confidence = s.confidence(first.Start, first.End, seg.Confidence)

	second := segment.Segment{
		ID:     s.nextID,
		Label:  seg.Label,
		Start:  o.At,
		End:    seg.End,
		Origin: segment.ManuallySplit,
	}
	if label := strings.TrimSpace(o.Label); label != "" {
		second.Label = label
		second.Origin = segment.ManuallyCreated
	}
	second.Confidence = s.confidence(second.Start, second.End, seg.Confidence)

	return Change{Kind: KindSplit, Removed: []segment.Segment{seg}, Added: []segment.Segment{first, second}}, nil
}

func (s State) merge(o MergeSegments) (Change, error) {
	a, err := s.lookup(o.A)
	if err != nil {
		return Change{}, err
	}
	b, err := s.lookup(o.B)
	if err != nil {
		return Change{}, err
	}
	if a.Start > b.Start {
		a, b = b, a
	}
	if a.ID == b.ID || a.End+1 != b.Start {
		return Change{}, &NonAdjacentAssignmentError{Page: -1, From: a.ID, Target: b.ID}
	}

	merged := segment.Segment{
		ID:     a.ID,
		Label:  a.Label,
		Start:  a.Start,
		End:    b.End,
		Origin: segment.ManuallyMerged,
	}
	if label := strings.TrimSpace(o.Label); label != "" {
		merged.Label = label
	}
	carried := (a.Confidence*float64(a.Len()) + b.Confidence*float64(b.Len())) / float64(merged.Len())
	merged.Confidence = s.confidence(merged.Start, merged.End, carried)

	return Change{Kind: KindMerge, Removed: []segment.Segment{a, b}, Added: []segment.Segment{merged}}, nil
}

func (s State) rename(o RenameSegment) (Change, error) {
	seg, err := s.lookup(o.Segment)
	if err != nil {
		return Change{}, err
	}
	label := strings.TrimSpace(o.Label)
	if label == "" {
		return Change{}, ErrEmptyLabel
	}
	renamed := seg
	renamed.Label = label
	return Change{Kind: KindRename, Removed: []segment.Segment{seg}, Added: []segment.Segment{renamed}}, nil
}

// Overlay is the single-writer session wrapper around State.
type Overlay struct {
	mu    sync.Mutex
	state State
}

func New(s State) *Overlay {
	return &Overlay{state: s}
}

// Apply runs op against the current state. On error the state is unchanged.
func (o *Overlay) Apply(op Operation) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	next, err := Apply(o.state, op)
	if err != nil {
		return o.state, err
	}
	o.state = next
	return next, nil
}

func (o *Overlay) Undo() (State, error) {
	return o.Apply(Undo{})
}

func (o *Overlay) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Overlay) Segments() []segment.Segment {
	return o.State().Segments()
}
