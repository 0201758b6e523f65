package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgallion1/scoreslice/internal/api"
	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/config"
	"github.com/dgallion1/scoreslice/internal/document"
	"github.com/dgallion1/scoreslice/internal/export"
	"github.com/dgallion1/scoreslice/internal/pipeline"
	"github.com/dgallion1/scoreslice/internal/recognize"
	"github.com/dgallion1/scoreslice/internal/vocab"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Label vocabulary.
	var v *vocab.Vocabulary
	if cfg.VocabularyFile != "" {
		v, err = vocab.LoadFile(cfg.VocabularyFile, cfg.Languages...)
	} else {
		v, err = vocab.Default(cfg.Languages...)
	}
	if err != nil {
		log.Error("load vocabulary", "error", err)
		os.Exit(1)
	}
	log.Info("vocabulary loaded", "labels", v.Len(), "languages", cfg.Languages)

	// Recognition.
	stats := recognize.NewStats(cfg.StatsWindow)
	recognizer := recognize.Timed(recognize.NewTesseract(cfg.OCRLanguages...), stats)

	// Initialize pipeline.
	analyzer := pipeline.NewAnalyzer(classify.New(v, cfg.Policy.Classify()), recognizer, pipeline.AnalyzerOptions{
		MaxConcurrentPages: cfg.MaxConcurrentPages,
		PreferTextLayer:    cfg.PreferTextLayer,
		SegmentPolicy:      cfg.Policy.Segment(),
		Retry:              pipeline.DefaultRetryPolicy(),
	}, log)

	renderOpts := document.RenderOptions{
		DPI:       cfg.RenderDPI,
		MaxPixels: cfg.MaxRenderPixels,
		Pdftoppm:  cfg.PdftoppmPath,
	}
	open := func(path string) (pipeline.Source, error) {
		pdf, err := document.Open(path, renderOpts)
		if err != nil {
			return nil, err
		}
		return pdf, nil
	}

	exporter := export.NewExporter(document.NewPDFCPU(), cfg.NameTemplate, log)
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
		OutputDir:    filepath.Join(cfg.DataDir, "parts"),
	}, analyzer, open, exporter, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, v, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting scoreslice", "port", cfg.Port, "workers", cfg.WorkerCount, "ocr_languages", cfg.OCRLanguages)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
