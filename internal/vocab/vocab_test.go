package vocab

import (
	"strings"
	"testing"
)

func TestNormalize_FoldsCaseAndPunctuation(t *testing.T) {
	cases := map[string]string{
		"  VLN.  I ":       "vln i",
		"Clarinet in B♭":   "clarinet in bb",
		"Flöte\t1":        "flöte 1",
		"Violin-I":         "violin i",
		"":                 "",
		"...":              "",
		"Horn   in F  (2)": "horn in f 2",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestStripPageMarkers(t *testing.T) {
	cases := map[string]string{
		"Violin I 2/12":      "Violin I",
		"Violin I  2 / 12":   "Violin I",
		"Flute 1 p. 3":       "Flute 1",
		"Horn 2":             "Horn 2",
		"Oboe 1 page 4":      "Oboe 1",
		"Cello - 3 -":        "Cello",
		"Viola (2)":          "Viola",
		"Trumpet 1 3rd page": "Trumpet 1",
		"Bass":               "Bass",
	}
	for in, want := range cases {
		if got := StripPageMarkers(in); got != want {
			t.Errorf("StripPageMarkers(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestNew_RejectsDuplicateLabels(t *testing.T) {
	_, err := New([]Entry{{Label: "Violin I"}, {Label: "violin  i"}})
	if err == nil {
		t.Fatal("expected duplicate labels to be rejected")
	}
}

func TestNew_RejectsEmptyLabel(t *testing.T) {
	if _, err := New([]Entry{{Label: " . "}}); err == nil {
		t.Fatal("expected empty label to be rejected")
	}
}

func TestNew_LanguageFilter(t *testing.T) {
	entries := []Entry{{
		Label:    "Violin I",
		Variants: []string{"Vln. I"},
		Aliases:  map[string][]string{"de": {"Violine I"}, "FR": {"Violon I"}},
	}}

	all, err := New(entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all.Variants()) != 4 {
		t.Errorf("expected 4 variants without a filter, got %d", len(all.Variants()))
	}

	de, err := New(entries, "DE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := de.ExactLabels("violine i"); len(got) != 1 || got[0] != "Violin I" {
		t.Errorf("expected German alias to be active, got %v", got)
	}
	if got := de.ExactLabels("violon i"); len(got) != 0 {
		t.Errorf("expected French alias to be filtered out, got %v", got)
	}
}

func TestVocabulary_EntriesAreCopies(t *testing.T) {
	v, err := New([]Entry{{Label: "Viola", Variants: []string{"Vla."}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := v.Entries()
	e[0].Variants[0] = "changed"
	if v.Entries()[0].Variants[0] != "Vla." {
		t.Error("expected vocabulary to be unaffected by caller mutation")
	}
}

func TestVocabulary_Canonical(t *testing.T) {
	v, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l, ok := v.Canonical("violin  i"); !ok || l != "Violin I" {
		t.Errorf("expected canonical Violin I, got %q %v", l, ok)
	}
	if _, ok := v.Canonical("Kazoo"); ok {
		t.Error("expected unknown label to be absent")
	}
}

func TestDefault_ClarinetVariantExact(t *testing.T) {
	v, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := v.ExactLabels(Normalize("Clarinet in Bb"))
	if len(got) != 1 || got[0] != "Clarinet in B♭" {
		t.Errorf("expected Clarinet in B♭, got %v", got)
	}
	for text, want := range map[string]string{
		"Clarinet in B♭ 1": "Clarinet 1",
		"Cl. 2":            "Clarinet 2",
		"2. Klarinette":    "Clarinet 2",
	} {
		got := v.ExactLabels(Normalize(text))
		if len(got) != 1 || got[0] != want {
			t.Errorf("%q: expected %s, got %v", text, want, got)
		}
	}
}

func TestPrefilter_RanksLabelsAboveNoise(t *testing.T) {
	v, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label := v.Prefilter("Vio1in I")
	noise := v.Prefilter("Allegro con brio")
	if label <= noise {
		t.Errorf("expected label-like text to outscore noise: %f <= %f", label, noise)
	}
	if v.Prefilter("VIOLIN I  3/8") != 1 {
		t.Error("expected exact spelling to prefilter at 1")
	}
	if v.Prefilter("") != 0 {
		t.Error("expected empty text to prefilter at 0")
	}
}

func TestSuggest(t *testing.T) {
	v, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := v.Suggest("vln", 5)
	if len(got) < 2 {
		t.Fatalf("expected at least 2 suggestions, got %v", got)
	}
	if !strings.HasPrefix(got[0], "Violin") {
		t.Errorf("expected a violin label first, got %v", got)
	}
	seen := make(map[string]bool)
	for _, l := range got {
		if seen[l] {
			t.Errorf("duplicate suggestion %q", l)
		}
		seen[l] = true
	}
	if n := len(v.Suggest("", 3)); n != 3 {
		t.Errorf("expected 3 default suggestions, got %d", n)
	}
}
