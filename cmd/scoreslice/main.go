// Command scoreslice splits a scanned orchestral score into one PDF per part.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/config"
	"github.com/dgallion1/scoreslice/internal/document"
	"github.com/dgallion1/scoreslice/internal/export"
	"github.com/dgallion1/scoreslice/internal/pipeline"
	"github.com/dgallion1/scoreslice/internal/recognize"
	"github.com/dgallion1/scoreslice/internal/report"
	"github.com/dgallion1/scoreslice/internal/segment"
	"github.com/dgallion1/scoreslice/internal/vocab"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#5A4FCF")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	lowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Padding(0, 1)

	unidentifiedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF5555")).
				Bold(true).
				Padding(0, 1)

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	fileStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CC66"))
)

var (
	flagOut         = flag.String("out", "", "Output directory (default: <score>_parts next to the score)")
	flagVocab       = flag.String("vocab", "", "Vocabulary file (.yaml, .json, .csv, .md, .docx)")
	flagLanguages   = flag.String("lang", "", "Comma-separated vocabulary alias languages, e.g. de,fr")
	flagOCRLang     = flag.String("ocr-lang", "", "Comma-separated Tesseract languages (default eng)")
	flagDPI         = flag.Int("dpi", 0, "Render resolution")
	flagWorkers     = flag.Int("j", 0, "Pages recognized in parallel")
	flagPolicy      = flag.String("policy", "", "TOML policy file with classification thresholds")
	flagTemplate    = flag.String("template", "", "File name template, e.g. {title}_{part}")
	flagTitle       = flag.String("title", "", "Override the detected score title")
	flagComposer    = flag.String("composer", "", "Composer")
	flagArranger    = flag.String("arranger", "", "Arranger")
	flagYear        = flag.String("year", "", "Year")
	flagAnalyzeOnly = flag.Bool("analyze-only", false, "Print segments without writing part files")
	flagTextLayer   = flag.Bool("text-layer", true, "Use the embedded text layer when present")
	flagReport      = flag.String("report", "", "Write a Markdown review report to this path")
	flagVerbose     = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: scoreslice [flags] score.pdf\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Arg(0), log); err != nil {
		log.Error("scoreslice failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(&cfg)
	if *flagPolicy != "" {
		if cfg.Policy, err = config.LoadPolicyFile(*flagPolicy, cfg.Policy); err != nil {
			return err
		}
	}
	if err := cfg.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	var v *vocab.Vocabulary
	if cfg.VocabularyFile != "" {
		v, err = vocab.LoadFile(cfg.VocabularyFile, cfg.Languages...)
	} else {
		v, err = vocab.Default(cfg.Languages...)
	}
	if err != nil {
		return fmt.Errorf("vocabulary: %w", err)
	}

	doc, err := document.Open(path, document.RenderOptions{
		DPI:       cfg.RenderDPI,
		MaxPixels: cfg.MaxRenderPixels,
		Pdftoppm:  cfg.PdftoppmPath,
	})
	if err != nil {
		return err
	}
	defer doc.Close()

	stats := recognize.NewStats(cfg.StatsWindow)
	analyzer := pipeline.NewAnalyzer(classify.New(v, cfg.Policy.Classify()),
		recognize.Timed(recognize.NewTesseract(cfg.OCRLanguages...), stats),
		pipeline.AnalyzerOptions{
			MaxConcurrentPages: cfg.MaxConcurrentPages,
			PreferTextLayer:    cfg.PreferTextLayer,
			SegmentPolicy:      cfg.Policy.Segment(),
			Retry:              pipeline.DefaultRetryPolicy(),
		}, log)

	log.Info("analyzing", "file", filepath.Base(path), "pages", doc.PageCount())
	done := 0
	analysis, err := analyzer.Analyze(ctx, doc, func(pc classify.PageClassification) {
		done++
		log.Debug("page classified", "page", pc.Page, "done", done, "label", pc.Label(), "status", pc.Status)
	})
	if err != nil {
		return err
	}
	if snap := stats.Snapshot(); snap.Pages > 0 {
		log.Info("recognition", "pages", snap.Pages, "failures", snap.Failures, "p50_ms", snap.P50Ms, "p95_ms", snap.P95Ms)
	}

	segs := analysis.Overlay.Segments()
	fmt.Println(renderTable(segs, cfg.Policy.ConfidentThreshold))
	fmt.Println(summaryStyle.Render(summaryLine(analysis.Pages, segs)))

	meta := export.Metadata{
		Title:    scoreTitle(*flagTitle, analysis.Pages, path),
		Composer: *flagComposer,
		Arranger: *flagArranger,
		Year:     *flagYear,
	}

	if *flagReport != "" {
		md := report.Markdown(report.Summary{
			Filename: filepath.Base(path),
			Title:    meta.Title,
			Pages:    analysis.Pages,
			Segments: segs,
		})
		if err := os.WriteFile(*flagReport, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Info("report written", "path", *flagReport)
	}

	if *flagAnalyzeOnly {
		return nil
	}

	outDir := *flagOut
	if outDir == "" {
		outDir = strings.TrimSuffix(path, filepath.Ext(path)) + "_parts"
	}
	exporter := export.NewExporter(document.NewPDFCPU(), cfg.NameTemplate, log)
	outs, err := exporter.Export(ctx, path, segs, meta, outDir)
	if err != nil {
		return err
	}
	for _, o := range outs {
		fmt.Println(fileStyle.Render(o.File))
	}
	return nil
}

func applyFlags(cfg *config.Config) {
	if *flagVocab != "" {
		cfg.VocabularyFile = *flagVocab
	}
	if *flagLanguages != "" {
		cfg.Languages = splitList(*flagLanguages)
	}
	if *flagOCRLang != "" {
		cfg.OCRLanguages = splitList(*flagOCRLang)
	}
	if *flagDPI > 0 {
		cfg.RenderDPI = *flagDPI
	}
	if *flagWorkers > 0 {
		cfg.MaxConcurrentPages = *flagWorkers
	}
	if *flagTemplate != "" {
		cfg.NameTemplate = *flagTemplate
	}
	cfg.PreferTextLayer = *flagTextLayer
}

// scoreTitle prefers override, then the title detected on the score, then the
// file name.
func scoreTitle(override string, pages []classify.PageClassification, path string) string {
	if t := strings.TrimSpace(override); t != "" {
		return t
	}
	if t := classify.DetectedTitle(pages); t != "" {
		return t
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// renderTable lays out one row per segment with 1-based page numbers.
func renderTable(segs []segment.Segment, confident float64) string {
	headers := []string{"#", "Part", "Pages", "Count", "Confidence", "Origin"}
	rows := make([][]string, len(segs))
	for i, s := range segs {
		rows[i] = []string{
			fmt.Sprint(s.ID),
			s.Label,
			fmt.Sprintf("%d-%d", s.Start+1, s.End+1),
			fmt.Sprint(s.Len()),
			fmt.Sprintf("%.2f", s.Confidence),
			s.Origin.String(),
		}
	}

	widths := make([]int, len(headers))
	for c, h := range headers {
		widths[c] = lipgloss.Width(h)
		for _, r := range rows {
			widths[c] = max(widths[c], lipgloss.Width(r[c]))
		}
	}

	var lines []string
	var cells []string
	for c, h := range headers {
		cells = append(cells, headerStyle.Width(widths[c]+2).Render(h))
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))

	for i, r := range rows {
		style := cellStyle
		switch {
		case segs[i].Label == classify.Unidentified:
			style = unidentifiedStyle
		case segs[i].Confidence < confident:
			style = lowStyle
		}
		cells = cells[:0]
		for c, v := range r {
			cells = append(cells, style.Width(widths[c]+2).Render(v))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func summaryLine(pages []classify.PageClassification, segs []segment.Segment) string {
	var confident, low, unrecognized int
	for _, pc := range pages {
		switch pc.Status {
		case classify.Confident:
			confident++
		case classify.LowConfidence:
			low++
		default:
			unrecognized++
		}
	}
	return fmt.Sprintf("%d pages in %d parts: %d confident, %d low confidence, %d unrecognized",
		len(pages), len(segs), confident, low, unrecognized)
}
