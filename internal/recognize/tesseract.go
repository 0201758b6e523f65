package recognize

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/dgallion1/scoreslice/internal/layout"
)

// Tesseract recognizes pages with a local Tesseract install. A client is
// created per call since gosseract clients are not safe for concurrent use.
type Tesseract struct {
	Languages []string // tesseract language codes, e.g. "eng", "deu"
}

func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{Languages: languages}
}

func (t *Tesseract) Recognize(ctx context.Context, img Image) ([]layout.TextBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.Languages...); err != nil {
		return nil, fmt.Errorf("%w: tesseract language %q: %v", ErrUnavailable, strings.Join(t.Languages, "+"), err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("%w: tesseract page seg mode: %v", ErrUnavailable, err)
	}
	if err := client.SetImageFromBytes(img.Data); err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrUnavailable, img.Page, err)
	}

	hocr, err := client.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrUnavailable, img.Page, err)
	}

	blocks, err := ParseHOCR(strings.NewReader(hocr), img.Page)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrUnavailable, img.Page, err)
	}
	return blocks, nil
}
