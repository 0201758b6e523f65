package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgallion1/scoreslice/internal/document"
	"github.com/dgallion1/scoreslice/internal/segment"
)

// Output is one written part file.
type Output struct {
	Segment int    `json:"segment"`
	Label   string `json:"label"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	File    string `json:"file"`
}

// Exporter writes segments through a document.Assembler.
type Exporter struct {
	assembler document.Assembler
	template  string
	log       *slog.Logger
}

func NewExporter(a document.Assembler, template string, log *slog.Logger) *Exporter {
	return &Exporter{assembler: a, template: template, log: log}
}

// Export writes one PDF per segment into outDir, in segment order.
func (e *Exporter) Export(ctx context.Context, src string, segs []segment.Segment, meta Metadata, outDir string) ([]Output, error) {
	if len(segs) == 0 {
		return nil, segment.ErrEmptyDocument
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	namer := NewNamer(e.template)
	outputs := make([]Output, 0, len(segs))
	for i, s := range segs {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}

		name := namer.Name(meta, s.Label, i+1)
		path := filepath.Join(outDir, name)
		if err := e.assembler.Assemble(ctx, src, s.Start, s.End, Properties(meta, s.Label), path); err != nil {
			return outputs, fmt.Errorf("export %s: %w", s, err)
		}
		e.log.Info("part exported", "segment", s.ID, "label", s.Label, "pages", s.Len(), "file", name)
		outputs = append(outputs, Output{Segment: s.ID, Label: s.Label, Start: s.Start, End: s.End, File: path})
	}
	return outputs, nil
}

// Properties builds the document info of one part.
func Properties(meta Metadata, part string) document.Properties {
	title := part
	if meta.Title != "" {
		title = meta.Title + " - " + part
	}

	author := meta.Composer
	if meta.Arranger != "" {
		if author != "" {
			author += "; "
		}
		author += "arr. " + meta.Arranger
	}

	subject := meta.Subject
	if subject == "" {
		subject = part
	}

	keywords := slices.Clone(meta.Keywords)
	for _, k := range []string{part, meta.Year} {
		if k = strings.TrimSpace(k); k != "" && !slices.Contains(keywords, k) {
			keywords = append(keywords, k)
		}
	}

	return document.Properties{Title: title, Author: author, Subject: subject, Keywords: keywords}
}
