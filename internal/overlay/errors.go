package overlay

import (
	"errors"
	"fmt"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrEmptyLabel    = errors.New("label must not be empty")
	ErrSameSegment   = errors.New("page already belongs to the target segment")
)

// DiscontiguityError is returned when moving a page would leave a hole in
// the middle of its segment.
type DiscontiguityError struct {
	Page    int
	Segment int
}

func (e *DiscontiguityError) Error() string {
	return fmt.Sprintf("moving page %d would split segment %d; split it first", e.Page, e.Segment)
}

// NonAdjacentAssignmentError is returned when two segments, or a page and a
// segment, are not neighbours in page order.
type NonAdjacentAssignmentError struct {
	Page   int // -1 for merges
	From   int
	Target int
}

func (e *NonAdjacentAssignmentError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("segments %d and %d are not adjacent", e.From, e.Target)
	}
	return fmt.Sprintf("page %d is not adjacent to segment %d", e.Page, e.Target)
}

// InvalidSplitBoundaryError is returned when a split point is not strictly
// inside the segment.
type InvalidSplitBoundaryError struct {
	Segment    int
	At         int
	Start, End int
}

func (e *InvalidSplitBoundaryError) Error() string {
	return fmt.Sprintf("cannot split segment %d [%d..%d] at page %d", e.Segment, e.Start, e.End, e.At)
}

// UnknownSegmentError is returned for a segment ID not in the current list.
type UnknownSegmentError struct {
	ID int
}

func (e *UnknownSegmentError) Error() string {
	return fmt.Sprintf("unknown segment %d", e.ID)
}

// PageRangeError is returned for a page index outside the document.
type PageRangeError struct {
	Page      int
	PageCount int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("page %d out of range [0, %d)", e.Page, e.PageCount)
}

// IsRejected reports whether err is a precondition failure of a correction,
// as opposed to an internal fault.
func IsRejected(err error) bool {
	var (
		disc  *DiscontiguityError
		adj   *NonAdjacentAssignmentError
		split *InvalidSplitBoundaryError
		seg   *UnknownSegmentError
		page  *PageRangeError
	)
	return errors.As(err, &disc) || errors.As(err, &adj) || errors.As(err, &split) ||
		errors.As(err, &seg) || errors.As(err, &page) ||
		errors.Is(err, ErrNothingToUndo) || errors.Is(err, ErrEmptyLabel) ||
		errors.Is(err, ErrSameSegment) || errors.Is(err, ErrUnknownOperation)
}
