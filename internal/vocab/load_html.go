package vocab

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLLoader handles HTML part lists such as a publisher's instrumentation
// page. Headings are canonical labels with the list items, paragraphs and
// table cells below them as variants. A table row outside any heading is an
// entry of its own: first cell label, remaining cells variants.
type HTMLLoader struct{}

func (l *HTMLLoader) Load(r io.Reader, filename string) ([]Entry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var entries []Entry
	var cur *Entry
	flush := func() {
		if cur != nil {
			entries = append(entries, *cur)
			cur = nil
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if isHeading(n.Data) {
				flush()
				if label := textContent(n); label != "" {
					cur = &Entry{Label: label}
				}
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header", "title":
				return
			case "tr":
				if cur == nil {
					if e, ok := rowEntry(n); ok {
						entries = append(entries, e)
					}
					return
				}
			case "li", "td", "th":
				if cur != nil {
					addVariant(cur, textContent(n))
				}
				return
			case "p":
				if cur != nil {
					for _, v := range strings.Split(textContent(n), ",") {
						addVariant(cur, v)
					}
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	flush()
	return entries, nil
}

// rowEntry reads one table row; header rows and empty rows are skipped.
func rowEntry(tr *html.Node) (Entry, bool) {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.Data == "th" {
			return Entry{}, false
		}
		if c.Data == "td" {
			cells = append(cells, textContent(c))
		}
	}
	if len(cells) == 0 || cells[0] == "" {
		return Entry{}, false
	}
	e := Entry{Label: cells[0]}
	for _, cell := range cells[1:] {
		for _, v := range strings.Split(cell, ",") {
			addVariant(&e, v)
		}
	}
	return e, true
}

func isHeading(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
