package vocab

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVLoader handles .csv vocabulary files with the columns
// label,language,variants. Variants are separated by "|"; a variant written
// as "de:Violine I" is an alias in that language. A header row starting with
// "label" is skipped.
type CSVLoader struct{}

func (l *CSVLoader) Load(r io.Reader, filename string) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var entries []Entry
	for i, rec := range records {
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "label") {
			continue
		}
		e := Entry{Label: strings.TrimSpace(rec[0])}
		if len(rec) > 1 {
			e.Language = strings.ToLower(strings.TrimSpace(rec[1]))
		}
		if len(rec) > 2 {
			for _, v := range strings.Split(rec[2], "|") {
				addVariant(&e, v)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// addVariant appends s to e as a plain variant, or as an alias when s carries
// a two- or three-letter language prefix ("de: Violine I").
func addVariant(e *Entry, s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if lang, text, ok := strings.Cut(s, ":"); ok && isLangTag(strings.TrimSpace(lang)) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if e.Aliases == nil {
			e.Aliases = make(map[string][]string)
		}
		lang = strings.ToLower(strings.TrimSpace(lang))
		e.Aliases[lang] = append(e.Aliases[lang], text)
		return
	}
	e.Variants = append(e.Variants, s)
}

func isLangTag(s string) bool {
	if len(s) < 2 || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
