package segment

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/layout"
	"github.com/dgallion1/scoreslice/internal/vocab"
)

// seq builds classifications in page order. An empty label is Unrecognized.
func seq(specs ...any) []classify.PageClassification {
	var out []classify.PageClassification
	for i := 0; i < len(specs); i += 3 {
		label := specs[i].(string)
		conf := specs[i+1].(float64)
		n := specs[i+2].(int)
		for range n {
			page := len(out)
			if label == "" {
				out = append(out, classify.Unrecognised(page, nil))
				continue
			}
			out = append(out, classify.Classified(page, nil, classify.PartGuess{Label: label, Raw: label, Confidence: conf}, 0.85))
		}
	}
	return out
}

func ranges(segs []Segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.String()
	}
	return out
}

func TestBuild_ViolinScenario(t *testing.T) {
	pcs := seq("Violin I", 0.9, 5, "", 0.0, 1, "Violin I", 0.9, 3, "Violin II", 0.88, 4)
	segs, err := Build(pcs, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Violin I [0..8]", "Violin II [9..12]"}
	if got := ranges(segs); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if err := CheckPartition(segs, len(pcs)); err != nil {
		t.Errorf("partition: %v", err)
	}
	if segs[0].ID != 1 || segs[1].ID != 2 {
		t.Errorf("expected ids 1,2, got %d,%d", segs[0].ID, segs[1].ID)
	}
	if segs[0].Origin != Auto {
		t.Errorf("expected auto origin, got %v", segs[0].Origin)
	}
	if want := 0.9 * 8 / 9; math.Abs(segs[0].Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %f, got %f", want, segs[0].Confidence)
	}
}

func TestBuild_StrayPageAbsorbed(t *testing.T) {
	segs, err := Build(seq("Violin I", 0.9, 1, "", 0.0, 1, "Violin I", 0.9, 1), DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 1 || segs[0].String() != "Violin I [0..2]" {
		t.Errorf("expected one Violin I segment, got %v", ranges(segs))
	}
}

func TestBuild_EmptyDocument(t *testing.T) {
	_, err := Build(nil, DefaultPolicy())
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	pcs := seq("Flute 1", 0.95, 3, "", 0.0, 5, "Oboe 1", 0.8, 2, "", 0.0, 1)
	a, err := Build(pcs, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := Build(pcs, DefaultPolicy())
	if !reflect.DeepEqual(a, b) {
		t.Errorf("expected identical segment lists:\n%v\n%v", a, b)
	}
}

func TestBuild_LongUnreadableRunSurfaces(t *testing.T) {
	pcs := seq("Flute 1", 0.95, 3, "", 0.0, 5, "Oboe 1", 0.9, 2)
	segs, err := Build(pcs, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Flute 1 [0..2]", "Unidentified [3..7]", "Oboe 1 [8..9]"}
	if got := ranges(segs); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuild_ShortRunStaysAttached(t *testing.T) {
	pcs := seq("Flute 1", 0.95, 3, "", 0.0, 3, "Oboe 1", 0.9, 2)
	segs, err := Build(pcs, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Flute 1 [0..5]", "Oboe 1 [6..7]"}
	if got := ranges(segs); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuild_LeadingUnreadablePageJoinsFollowing(t *testing.T) {
	pcs := seq("", 0.0, 1, "Horn 1", 0.9, 2)
	segs, err := Build(pcs, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ranges(segs); len(got) != 1 || got[0] != "Horn 1 [0..2]" {
		t.Errorf("expected Horn 1 [0..2], got %v", got)
	}
}

func TestBuild_AllUnrecognized(t *testing.T) {
	segs, err := Build(seq("", 0.0, 4), DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ranges(segs); len(got) != 1 || got[0] != "Unidentified [0..3]" {
		t.Errorf("expected one Unidentified segment, got %v", got)
	}
	if segs[0].Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", segs[0].Confidence)
	}
}

func TestBuild_TiedPageFollowsCurrentLabel(t *testing.T) {
	pcs := seq("Horn 2", 0.9, 2)
	pcs = append(pcs, classify.Classified(2, nil, classify.PartGuess{
		Label: "Horn 1", Confidence: 0.8, Ties: []string{"Horn 1", "Horn 2"},
	}, 0.85))
	segs, err := Build(pcs, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ranges(segs); len(got) != 1 || got[0] != "Horn 2 [0..2]" {
		t.Errorf("expected tie to stay with Horn 2, got %v", got)
	}
}

func TestBuild_OutOfOrderInput(t *testing.T) {
	pcs := seq("Viola", 0.9, 3)
	pcs[0], pcs[2] = pcs[2], pcs[0]
	segs, err := Build(pcs, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 1 || segs[0].End != 2 {
		t.Errorf("expected one segment over 3 pages, got %v", ranges(segs))
	}

	pcs[1].Page = 7
	if _, err := Build(pcs, DefaultPolicy()); err == nil {
		t.Error("expected a gap in page indices to be rejected")
	}
}

func TestCheckPartition(t *testing.T) {
	ok := []Segment{{ID: 1, Start: 0, End: 2}, {ID: 2, Start: 3, End: 3}}
	if err := CheckPartition(ok, 4); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	bad := map[string][]Segment{
		"gap":       {{ID: 1, Start: 0, End: 1}, {ID: 2, Start: 3, End: 3}},
		"overlap":   {{ID: 1, Start: 0, End: 2}, {ID: 2, Start: 2, End: 3}},
		"short":     {{ID: 1, Start: 0, End: 2}},
		"empty":     {{ID: 1, Start: 0, End: 3}, {ID: 2, Start: 4, End: 3}},
		"duplicate": {{ID: 1, Start: 0, End: 1}, {ID: 1, Start: 2, End: 3}},
	}
	for name, segs := range bad {
		var perr *PartitionError
		if err := CheckPartition(segs, 4); !errors.As(err, &perr) {
			t.Errorf("%s: expected PartitionError, got %v", name, err)
		}
	}
}

func TestOrigin_Text(t *testing.T) {
	var o Origin
	if err := o.UnmarshalText([]byte("manually_split")); err != nil || o != ManuallySplit {
		t.Errorf("expected manually_split, got %v err %v", o, err)
	}
	if err := o.UnmarshalText([]byte("guessed")); err == nil {
		t.Error("expected unknown origin to be rejected")
	}
}

func TestBuild_ClarinetDesksSplit(t *testing.T) {
	v, err := vocab.Default()
	if err != nil {
		t.Fatalf("default vocabulary: %v", err)
	}
	c := classify.New(v, classify.DefaultPolicy())

	var pcs []classify.PageClassification
	for i, text := range []string{
		"Clarinet in Bb 1", "Clarinet in Bb 1", "Clarinet in Bb 1",
		"Clarinet in B♭ 2", "Cl. 2", "2nd Clarinet",
	} {
		blocks := []layout.TextBlock{{
			Text:       text,
			Box:        layout.BBox{X0: 0.05, Y0: 0.06, X1: 0.3, Y1: 0.09},
			FontRank:   2,
			Confidence: 0.9,
		}}
		pc := c.Classify(i, blocks)
		if pc.Status != classify.Confident {
			t.Fatalf("page %d %q: expected confident, got %v %q", i, text, pc.Status, pc.Label())
		}
		pcs = append(pcs, pc)
	}

	segs, err := Build(pcs, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Clarinet 1 [0..2]", "Clarinet 2 [3..5]"}
	if got := ranges(segs); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
