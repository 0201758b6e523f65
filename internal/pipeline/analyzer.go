package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/layout"
	"github.com/dgallion1/scoreslice/internal/overlay"
	"github.com/dgallion1/scoreslice/internal/recognize"
	"github.com/dgallion1/scoreslice/internal/segment"
)

// Document is the page source the analyzer reads. *document.PDF satisfies it.
type Document interface {
	PageCount() int
	Render(ctx context.Context, index int) (recognize.Image, error)
	TextLayer(index int) ([]layout.TextBlock, error)
}

// Analyzer runs classifyAll and buildSegments over one document.
type Analyzer struct {
	classifier *classify.Classifier
	recognizer recognize.Recognizer
	segPolicy  segment.Policy
	log        *slog.Logger

	maxConcurrentPages int
	preferTextLayer    bool
	retry              RetryPolicy
}

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	MaxConcurrentPages int
	PreferTextLayer    bool
	SegmentPolicy      segment.Policy
	Retry              RetryPolicy
}

func NewAnalyzer(c *classify.Classifier, r recognize.Recognizer, opts AnalyzerOptions, log *slog.Logger) *Analyzer {
	if opts.MaxConcurrentPages <= 0 {
		opts.MaxConcurrentPages = 1
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	return &Analyzer{
		classifier:         c,
		recognizer:         r,
		segPolicy:          opts.SegmentPolicy,
		log:                log,
		maxConcurrentPages: opts.MaxConcurrentPages,
		preferTextLayer:    opts.PreferTextLayer,
		retry:              opts.Retry,
	}
}

// Analysis is the result of analyzing one document.
type Analysis struct {
	Pages   []classify.PageClassification
	Overlay *overlay.Overlay
}

// Analyze classifies every page, builds segments and opens a review overlay.
func (a *Analyzer) Analyze(ctx context.Context, doc Document, onPage func(classify.PageClassification)) (*Analysis, error) {
	pages, err := a.ClassifyAll(ctx, doc, onPage)
	if err != nil {
		return nil, err
	}
	segs, err := segment.Build(pages, a.segPolicy)
	if err != nil {
		return nil, fmt.Errorf("build segments: %w", err)
	}
	state, err := overlay.NewState(segs, len(pages), pages)
	if err != nil {
		return nil, err
	}
	return &Analysis{Pages: pages, Overlay: overlay.New(state)}, nil
}

// ClassifyAll classifies every page with bounded concurrency. onPage, if
// set, is called from a single goroutine as each page completes, in
// completion order. The returned slice is in page order.
func (a *Analyzer) ClassifyAll(ctx context.Context, doc Document, onPage func(classify.PageClassification)) ([]classify.PageClassification, error) {
	n := doc.PageCount()
	if n == 0 {
		return nil, segment.ErrEmptyDocument
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan classify.PageClassification, n)
	sem := make(chan struct{}, a.maxConcurrentPages)

	go func() {
		for i := range n {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(i int) {
				defer func() { <-sem }()
				results <- a.classifyPage(ctx, doc, i)
			}(i)
		}
	}()

	pages := make([]classify.PageClassification, n)
	for range n {
		select {
		case pc := <-results:
			pages[pc.Page] = pc
			if onPage != nil {
				onPage(pc)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return pages, nil
}

func (a *Analyzer) classifyPage(ctx context.Context, doc Document, page int) classify.PageClassification {
	log := a.log.With("page", page)

	blocks, err := a.pageBlocks(ctx, doc, page)
	if err != nil {
		log.Warn("recognition failed, page left unrecognized", "error", err)
		pc := a.classifier.Classify(page, nil)
		pc.RecognitionError = err.Error()
		return pc
	}
	for i := range blocks {
		blocks[i].Page = page
	}
	pc := a.classifier.Classify(page, blocks)
	log.Debug("page classified", "status", pc.Status, "label", pc.Label(), "confidence", pc.Confidence())
	return pc
}

// pageBlocks prefers an embedded text layer, then falls back to rendering
// and recognition with retries.
func (a *Analyzer) pageBlocks(ctx context.Context, doc Document, page int) ([]layout.TextBlock, error) {
	if a.preferTextLayer {
		blocks, err := doc.TextLayer(page)
		if err == nil && len(blocks) > 0 {
			return blocks, nil
		}
		if err != nil {
			a.log.Debug("text layer unavailable", "page", page, "error", err)
		}
	}

	var (
		blocks  []layout.TextBlock
		lastErr error
	)
	for attempt := range a.retry.Attempts {
		blocks, lastErr = a.recognizeOnce(ctx, doc, page)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		if attempt == a.retry.Attempts-1 {
			break
		}
		a.log.Warn("retryable recognition error", "page", page, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(a.retry.Delay(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return blocks, lastErr
}

// recognizeOnce renders one page and runs the recognizer on it. The image
// is dropped as soon as its blocks are extracted.
func (a *Analyzer) recognizeOnce(ctx context.Context, doc Document, page int) ([]layout.TextBlock, error) {
	if a.recognizer == nil {
		return nil, recognize.ErrUnavailable
	}
	img, err := doc.Render(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	blocks, err := a.recognizer.Recognize(ctx, img)
	if err != nil {
		if !errors.Is(err, recognize.ErrUnavailable) && !IsRetryable(err) {
			err = fmt.Errorf("%w: %v", recognize.ErrUnavailable, err)
		}
		return nil, err
	}
	return blocks, nil
}
