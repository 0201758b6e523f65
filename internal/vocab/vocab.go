// Package vocab is the controlled vocabulary of instrument part labels.
//
// A Vocabulary is built once at startup and never mutated afterwards; it is
// safe for concurrent use and is passed explicitly to the classifier.
package vocab

import (
	"fmt"
	"slices"
	"strings"
)

// Entry is one canonical part label with its accepted spellings.
type Entry struct {
	Label    string              `json:"label" yaml:"label"`
	Language string              `json:"language,omitempty" yaml:"language,omitempty"`
	Variants []string            `json:"variants,omitempty" yaml:"variants,omitempty"`
	Aliases  map[string][]string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Variant is one accepted spelling of an entry's label.
type Variant struct {
	Label    string // canonical label of the owning entry
	Text     string // spelling as written in the vocabulary
	Norm     string // Normalize(Text)
	Language string

	grams map[string]struct{}
}

// Vocabulary is an immutable label table.
type Vocabulary struct {
	entries  []Entry
	variants []Variant
	byNorm   map[string][]string // normalized spelling -> labels, vocabulary order
	labels   map[string]string   // normalized label -> label
}

// New builds a vocabulary from entries. When languages are given, only
// aliases in those languages (and variants of entries tagged with them) are
// active; canonical labels and untagged variants are always active.
func New(entries []Entry, languages ...string) (*Vocabulary, error) {
	if err := Validate(entries); err != nil {
		return nil, err
	}

	languages = slices.Clone(languages)
	for i, l := range languages {
		languages[i] = strings.ToLower(strings.TrimSpace(l))
	}
	active := func(lang string) bool {
		return lang == "" || len(languages) == 0 || slices.Contains(languages, strings.ToLower(lang))
	}

	v := &Vocabulary{
		entries: make([]Entry, len(entries)),
		byNorm:  make(map[string][]string),
		labels:  make(map[string]string, len(entries)),
	}
	for i, e := range entries {
		v.entries[i] = cloneEntry(e)
		v.labels[Normalize(e.Label)] = e.Label

		seen := make(map[string]bool)
		add := func(text, lang string) {
			n := Normalize(text)
			if n == "" || seen[n] {
				return
			}
			seen[n] = true
			v.variants = append(v.variants, Variant{
				Label:    e.Label,
				Text:     text,
				Norm:     n,
				Language: lang,
				grams:    bigrams(n),
			})
			v.byNorm[n] = append(v.byNorm[n], e.Label)
		}

		add(e.Label, e.Language)
		if active(e.Language) {
			for _, s := range e.Variants {
				add(s, e.Language)
			}
		}
		langs := make([]string, 0, len(e.Aliases))
		for lang := range e.Aliases {
			langs = append(langs, lang)
		}
		slices.Sort(langs)
		for _, lang := range langs {
			if !active(lang) {
				continue
			}
			for _, s := range e.Aliases[lang] {
				add(s, lang)
			}
		}
	}
	return v, nil
}

// Validate rejects entries with empty or duplicate labels.
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("vocabulary is empty")
	}
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		n := Normalize(e.Label)
		if n == "" {
			return fmt.Errorf("entry %d: empty label", i)
		}
		if j, dup := seen[n]; dup {
			return fmt.Errorf("entry %d: label %q duplicates entry %d", i, e.Label, j)
		}
		seen[n] = i
	}
	return nil
}

// Len returns the number of entries.
func (v *Vocabulary) Len() int { return len(v.entries) }

// Entries returns a copy of the entries in vocabulary order.
func (v *Vocabulary) Entries() []Entry {
	out := make([]Entry, len(v.entries))
	for i, e := range v.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// Variants returns a copy of all active spellings in vocabulary order.
func (v *Vocabulary) Variants() []Variant {
	return slices.Clone(v.variants)
}

// ExactLabels returns the labels whose spellings normalize to n, in
// vocabulary order.
func (v *Vocabulary) ExactLabels(n string) []string {
	return slices.Clone(v.byNorm[n])
}

// Canonical returns the vocabulary label that label normalizes to, if any.
func (v *Vocabulary) Canonical(label string) (string, bool) {
	l, ok := v.labels[Normalize(label)]
	return l, ok
}

func cloneEntry(e Entry) Entry {
	out := Entry{
		Label:    e.Label,
		Language: e.Language,
		Variants: slices.Clone(e.Variants),
	}
	if len(e.Aliases) > 0 {
		out.Aliases = make(map[string][]string, len(e.Aliases))
		for k, vs := range e.Aliases {
			out.Aliases[strings.ToLower(k)] = slices.Clone(vs)
		}
	}
	return out
}
