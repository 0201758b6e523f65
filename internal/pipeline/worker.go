package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/segment"
)

// Source is an opened score the worker analyzes.
type Source interface {
	Document
	io.Closer
}

// Opener opens the uploaded score at path.
type Opener func(path string) (Source, error)

// Worker processes a single analysis job.
type Worker struct {
	analyzer *Analyzer
	open     Opener
	log      *slog.Logger
}

func NewWorker(analyzer *Analyzer, open Opener, log *slog.Logger) *Worker {
	return &Worker{analyzer: analyzer, open: open, log: log}
}

// Process analyzes a job's score and leaves it ready for review.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Open
	job.SetStatus(StatusRecognizing, "opening")
	src, err := w.open(job.SourcePath())
	if err != nil {
		log.Error("open failed", "error", err)
		job.AddError(fmt.Sprintf("open: %s", err))
		job.SetStatus(StatusFailed, "opening")
		return
	}
	defer src.Close()

	pageCount := src.PageCount()
	job.SetTotalPages(pageCount)
	log.Info("document opened", "pages", pageCount)

	// Phase 2: Recognize and classify pages with bounded concurrency.
	job.SetStatus(StatusRecognizing, "recognizing")
	analysis, err := w.analyzer.Analyze(ctx, src, func(pc classify.PageClassification) {
		job.PageDone(pc)
		if pc.RecognitionError != "" {
			job.AddError(fmt.Sprintf("page %d: %s", pc.Page, pc.RecognitionError))
		}
	})
	if err != nil {
		switch {
		case errors.Is(err, segment.ErrEmptyDocument):
			log.Warn("empty document")
			job.AddError("document has no pages")
		case ctx.Err() != nil:
			log.Warn("analysis cancelled", "error", err)
			job.AddError("cancelled")
		default:
			log.Error("analysis failed", "error", err)
			job.AddError(fmt.Sprintf("analyze: %s", err))
		}
		job.SetStatus(StatusFailed, "recognizing")
		return
	}

	// Phase 3: Segments are built; hand over to review.
	job.SetStatus(StatusSegmenting, "segmenting")
	job.SetAnalysis(analysis.Pages, analysis.Overlay)

	var low, unrecognized int
	for _, pc := range analysis.Pages {
		switch pc.Status {
		case classify.LowConfidence:
			low++
		case classify.Unrecognized:
			unrecognized++
		}
	}
	log.Info("analysis complete",
		"segments", len(analysis.Overlay.Segments()),
		"low_confidence", low,
		"unrecognized", unrecognized,
	)
	job.SetStatus(StatusReview, "review")
}
