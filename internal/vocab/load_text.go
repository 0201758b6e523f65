package vocab

import (
	"bufio"
	"io"
	"strings"
)

// TextLoader handles plain text part lists. Entries are separated by blank
// lines; the first line of an entry is its label and every further line a
// variant. Lines starting with "#" are comments.
type TextLoader struct{}

func (l *TextLoader) Load(r io.Reader, filename string) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []Entry
	var cur *Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#"):
			continue
		case line == "":
			if cur != nil {
				entries = append(entries, *cur)
				cur = nil
			}
		case cur == nil:
			cur = &Entry{Label: line}
		default:
			addVariant(cur, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		entries = append(entries, *cur)
	}
	return entries, nil
}
