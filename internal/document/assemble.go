package document

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Properties are the document-info fields written to an assembled part.
type Properties struct {
	Title    string
	Author   string
	Subject  string
	Keywords []string
}

func (p Properties) infoDict() map[string]string {
	out := make(map[string]string, 4)
	if p.Title != "" {
		out["Title"] = p.Title
	}
	if p.Author != "" {
		out["Author"] = p.Author
	}
	if p.Subject != "" {
		out["Subject"] = p.Subject
	}
	if len(p.Keywords) > 0 {
		out["Keywords"] = strings.Join(p.Keywords, ", ")
	}
	return out
}

// Assembler copies a page range out of a source PDF unchanged.
type Assembler interface {
	Assemble(ctx context.Context, src string, first, last int, props Properties, out string) error
}

// PDFCPU assembles parts with pdfcpu.
type PDFCPU struct {
	conf *model.Configuration
}

func NewPDFCPU() *PDFCPU {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPU{conf: conf}
}

// Assemble writes pages [first, last] (0-based, inclusive) of src to out and
// sets its document properties.
func (a *PDFCPU) Assemble(ctx context.Context, src string, first, last int, props Properties, out string) error {
	if first < 0 || last < first {
		return fmt.Errorf("%w: [%d..%d]", ErrPageRange, first, last)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info := props.infoDict()
	trimmed := out
	if len(info) > 0 {
		trimmed = out + ".part"
		defer os.Remove(trimmed)
	}

	pages := []string{fmt.Sprintf("%d-%d", first+1, last+1)}
	if err := api.TrimFile(src, trimmed, pages, a.conf); err != nil {
		return fmt.Errorf("trim pages %d-%d: %w", first+1, last+1, err)
	}
	if len(info) == 0 {
		return nil
	}
	if err := api.AddPropertiesFile(trimmed, out, info, a.conf); err != nil {
		return fmt.Errorf("set properties: %w", err)
	}
	return nil
}
