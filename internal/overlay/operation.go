package overlay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind names an operation in the change log and on the wire.
type Kind string

const (
	KindReassign Kind = "reassign"
	KindSplit    Kind = "split"
	KindMerge    Kind = "merge"
	KindRename   Kind = "rename"
	KindUndo     Kind = "undo"
)

var ErrUnknownOperation = errors.New("unknown operation")

// Operation is one reviewer correction.
type Operation interface {
	Kind() Kind
}

// ReassignPage moves an edge page of its segment into the neighbouring
// Target segment.
type ReassignPage struct {
	Page   int
	Target int
}

// SplitSegment cuts Segment so that At becomes the first page of a new
// segment. An empty Label keeps the original label on both halves.
type SplitSegment struct {
	Segment int
	At      int
	Label   string
}

// MergeSegments joins two neighbouring segments. An empty Label keeps the
// earlier segment's label.
type MergeSegments struct {
	A, B  int
	Label string
}

type RenameSegment struct {
	Segment int
	Label   string
}

type Undo struct{}

func (ReassignPage) Kind() Kind  { return KindReassign }
func (SplitSegment) Kind() Kind  { return KindSplit }
func (MergeSegments) Kind() Kind { return KindMerge }
func (RenameSegment) Kind() Kind { return KindRename }
func (Undo) Kind() Kind          { return KindUndo }

// wireOp is the JSON form accepted by DecodeOperation.
type wireOp struct {
	Op      Kind   `json:"op"`
	Page    *int   `json:"page,omitempty"`
	Segment *int   `json:"segment,omitempty"`
	Target  *int   `json:"target,omitempty"`
	At      *int   `json:"at,omitempty"`
	A       *int   `json:"a,omitempty"`
	B       *int   `json:"b,omitempty"`
	Label   string `json:"label,omitempty"`
}

// DecodeOperation parses one operation, e.g.
//
//	{"op":"split","segment":2,"at":14}
//	{"op":"merge","a":2,"b":3,"label":"Violin I"}
func DecodeOperation(data []byte) (Operation, error) {
	var w wireOp
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}
	need := func(name string, v *int) (int, error) {
		if v == nil {
			return 0, fmt.Errorf("%s operation requires %q", w.Op, name)
		}
		return *v, nil
	}

	switch w.Op {
	case KindReassign:
		page, err := need("page", w.Page)
		if err != nil {
			return nil, err
		}
		target, err := need("target", w.Target)
		if err != nil {
			return nil, err
		}
		return ReassignPage{Page: page, Target: target}, nil
	case KindSplit:
		seg, err := need("segment", w.Segment)
		if err != nil {
			return nil, err
		}
		at, err := need("at", w.At)
		if err != nil {
			return nil, err
		}
		return SplitSegment{Segment: seg, At: at, Label: w.Label}, nil
	case KindMerge:
		a, err := need("a", w.A)
		if err != nil {
			return nil, err
		}
		b, err := need("b", w.B)
		if err != nil {
			return nil, err
		}
		return MergeSegments{A: a, B: b, Label: w.Label}, nil
	case KindRename:
		seg, err := need("segment", w.Segment)
		if err != nil {
			return nil, err
		}
		return RenameSegment{Segment: seg, Label: w.Label}, nil
	case KindUndo:
		return Undo{}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownOperation, w.Op)
}
