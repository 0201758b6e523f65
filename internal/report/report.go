// Package report renders a review summary of an analyzed score.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/segment"
)

// Summary is everything a reviewer needs to check one analysis.
type Summary struct {
	JobID     string
	Filename  string
	Title     string
	Generated time.Time
	Pages     []classify.PageClassification
	Segments  []segment.Segment
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown renders the summary as GitHub-flavored Markdown.
func Markdown(s Summary) string {
	var b strings.Builder

	heading := s.Title
	if heading == "" {
		heading = s.Filename
	}
	if heading == "" {
		heading = "Score"
	}
	fmt.Fprintf(&b, "# %s\n\n", cell(heading))
	if s.JobID != "" {
		fmt.Fprintf(&b, "Job `%s`", s.JobID)
		if !s.Generated.IsZero() {
			fmt.Fprintf(&b, ", generated %s", s.Generated.UTC().Format(time.RFC3339))
		}
		b.WriteString("\n\n")
	}

	var confident, low, unrecognized []classify.PageClassification
	for _, pc := range s.Pages {
		switch pc.Status {
		case classify.Confident:
			confident = append(confident, pc)
		case classify.LowConfidence:
			low = append(low, pc)
		case classify.Unrecognized:
			unrecognized = append(unrecognized, pc)
		}
	}
	fmt.Fprintf(&b, "%d pages: %d confident, %d low confidence, %d unrecognized.\n\n",
		len(s.Pages), len(confident), len(low), len(unrecognized))

	b.WriteString("## Parts\n\n")
	if len(s.Segments) == 0 {
		b.WriteString("No segments.\n\n")
	} else {
		b.WriteString("| # | Part | Pages | Count | Confidence | Origin |\n")
		b.WriteString("|---|------|-------|-------|------------|--------|\n")
		for _, seg := range s.Segments {
			fmt.Fprintf(&b, "| %d | %s | %s | %d | %.2f | %s |\n",
				seg.ID, cell(seg.Label), pageRange(seg.Start, seg.End), seg.Len(), seg.Confidence, seg.Origin)
		}
		b.WriteString("\n")
	}

	if len(low) > 0 {
		b.WriteString("## Low confidence pages\n\n")
		b.WriteString("| Page | Read as | Matched | Confidence |\n")
		b.WriteString("|------|---------|---------|------------|\n")
		for _, pc := range low {
			fmt.Fprintf(&b, "| %d | %s | %s | %.2f |\n", pc.Page+1, cell(pc.Part.Raw), cell(pc.Part.Label), pc.Part.Confidence)
		}
		b.WriteString("\n")
	}

	if len(unrecognized) > 0 {
		b.WriteString("## Unrecognized pages\n\n")
		for _, pc := range unrecognized {
			fmt.Fprintf(&b, "- page %d", pc.Page+1)
			if pc.RecognitionError != "" {
				fmt.Fprintf(&b, " (recognition failed: %s)", pc.RecognitionError)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the Markdown summary as an HTML fragment.
func HTML(s Summary) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(s)), &buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// pageRange prints 1-based page numbers as reviewers see them.
func pageRange(start, end int) string {
	if start == end {
		return fmt.Sprintf("%d", start+1)
	}
	return fmt.Sprintf("%d-%d", start+1, end+1)
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
