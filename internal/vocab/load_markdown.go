package vocab

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownLoader handles Markdown part lists: every heading is a canonical
// label, the list items below it are variants ("de: Violine I" items are
// aliases) and a plain paragraph is read as comma-separated variants.
type MarkdownLoader struct{}

func (l *MarkdownLoader) Load(r io.Reader, filename string) ([]Entry, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var entries []Entry
	var cur *Entry
	flush := func() {
		if cur != nil {
			entries = append(entries, *cur)
			cur = nil
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			flush()
			label := strings.TrimSpace(string(node.Text(src)))
			if label != "" {
				cur = &Entry{Label: label}
			}
		case *ast.List:
			if cur == nil {
				continue
			}
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				addVariant(cur, extractText(item, src))
			}
		default:
			if cur == nil {
				continue
			}
			for _, v := range strings.Split(extractText(n, src), ",") {
				addVariant(cur, v)
			}
		}
	}
	flush()
	return entries, nil
}

// extractText gets the text content of a goldmark AST node. Block lines are
// only read for leaf blocks; otherwise the inline children carry the text.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.ChildCount() == 0 {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
