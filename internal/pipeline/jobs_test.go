package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/document"
	"github.com/dgallion1/scoreslice/internal/export"
	"github.com/dgallion1/scoreslice/internal/overlay"
	"github.com/dgallion1/scoreslice/internal/segment"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestNewJobID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewJobID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("serenade.pdf", "Serenade", "", "")
	if job.Status != StatusQueued {
		t.Fatalf("expected queued, got %q", job.Status)
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusRecognizing, "recognizing"},
		{StatusSegmenting, "segmenting"},
		{StatusReview, "review"},
		{StatusExporting, "exporting"},
		{StatusExported, "exported"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		snap := job.Snapshot()
		if snap.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, snap.Status)
		}
		if snap.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, snap.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("page 3: unavailable")
	job.AddError("page 7: unavailable")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "page 3: unavailable" {
		t.Errorf("expected first error %q, got %q", "page 3: unavailable", snap.Progress.Errors[0])
	}
}

func TestJob_PageDone(t *testing.T) {
	job := &Job{ID: "pages", UpdatedAt: time.Now()}
	job.SetTotalPages(3)
	job.PageDone(classify.Unrecognised(0, nil))
	failed := classify.Unrecognised(1, nil)
	failed.RecognitionError = "render failed"
	job.PageDone(failed)

	snap := job.Snapshot()
	if snap.Progress.TotalPages != 3 {
		t.Errorf("expected 3 total pages, got %d", snap.Progress.TotalPages)
	}
	if snap.Progress.PagesClassified != 2 {
		t.Errorf("expected 2 pages classified, got %d", snap.Progress.PagesClassified)
	}
	if snap.Progress.PagesFailed != 1 {
		t.Errorf("expected 1 failed page, got %d", snap.Progress.PagesFailed)
	}
}

func TestJob_SetAnalysisTracksSegments(t *testing.T) {
	pcs := []classify.PageClassification{
		classify.Classified(0, nil, classify.PartGuess{Label: "Viola", Raw: "Viola", Confidence: 1}, 0.85),
		classify.Classified(1, nil, classify.PartGuess{Label: "Violoncello", Raw: "Cello", Confidence: 0.9}, 0.85),
	}
	segs, err := segment.Build(pcs, segment.DefaultPolicy())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	state, err := overlay.NewState(segs, len(pcs), pcs)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	ov := overlay.New(state)

	job := &Job{ID: "analysis", UpdatedAt: time.Now()}
	if job.Overlay() != nil {
		t.Fatal("expected no overlay before analysis")
	}
	job.SetAnalysis(pcs, ov)
	if got := job.Snapshot().Progress.Segments; got != 2 {
		t.Fatalf("expected 2 segments, got %d", got)
	}

	if _, err := ov.Apply(overlay.MergeSegments{A: 1, B: 2}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := job.Snapshot().Progress.Segments; got != 1 {
		t.Errorf("expected 1 segment after merge, got %d", got)
	}
	if _, err := ov.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if got := job.Snapshot().Progress.Segments; got != 2 {
		t.Errorf("expected 2 segments after undo, got %d", got)
	}
	if len(job.Classifications()) != 2 {
		t.Errorf("expected classifications kept")
	}
}

func TestJob_SetAnalysisDetectsTitle(t *testing.T) {
	title := "Serenade for Strings"
	other := "Allegro"
	pcs := []classify.PageClassification{
		classify.Unrecognised(0, nil),
		classify.Classified(1, &title, classify.PartGuess{Label: "Viola", Raw: "Viola", Confidence: 1}, 0.85),
		classify.Classified(2, &other, classify.PartGuess{Label: "Viola", Raw: "Viola", Confidence: 1}, 0.85),
	}
	segs, err := segment.Build(pcs, segment.DefaultPolicy())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	state, err := overlay.NewState(segs, len(pcs), pcs)
	if err != nil {
		t.Fatalf("state: %v", err)
	}

	job := NewJob("scan_0042.pdf", "", "", "")
	job.SetAnalysis(pcs, overlay.New(state))
	if got := job.Snapshot().Title; got != title {
		t.Errorf("expected detected title %q, got %q", title, got)
	}

	named := NewJob("scan_0042.pdf", "Holberg Suite", "", "")
	named.SetAnalysis(pcs, overlay.New(state))
	if got := named.Snapshot().Title; got != "Holberg Suite" {
		t.Errorf("expected given title kept, got %q", got)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_FindByHash(t *testing.T) {
	store := NewJobStore(time.Hour)
	live := NewJob("a.pdf", "", "", "abc")
	failed := NewJob("b.pdf", "", "", "def")
	failed.SetStatus(StatusFailed, "recognizing")
	store.Put(live)
	store.Put(failed)

	if got := store.FindByHash("abc"); got != live {
		t.Errorf("expected live job for hash abc")
	}
	if got := store.FindByHash("def"); got != nil {
		t.Errorf("expected failed job ignored, got %s", got.ID)
	}
	if got := store.FindByHash(""); got != nil {
		t.Errorf("expected no match for empty hash")
	}
}

func TestJobStore_ListNewestFirst(t *testing.T) {
	store := NewJobStore(time.Hour)
	old := &Job{ID: "old", CreatedAt: time.Now().Add(-time.Minute), UpdatedAt: time.Now()}
	fresh := &Job{ID: "fresh", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	store.Put(old)
	store.Put(fresh)

	list := store.List()
	if len(list) != 2 || list[0].ID != "fresh" || list[1].ID != "old" {
		t.Errorf("unexpected order: %+v", list)
	}
}

func TestJobStore_DeleteRemovesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "score.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewJobStore(time.Hour)
	job := NewJob("score.pdf", "", path, "")
	store.Put(job)

	if !store.Delete(job.ID) {
		t.Fatal("expected delete to report the job")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected source removed, stat err = %v", err)
	}
	if store.Delete(job.ID) {
		t.Error("expected second delete to report nothing")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	store.Cleanup()
}

type recordingAssembler struct {
	parts []string
}

func (r *recordingAssembler) Assemble(ctx context.Context, src string, first, last int, props document.Properties, out string) error {
	r.parts = append(r.parts, props.Subject)
	return os.WriteFile(out, []byte("%PDF"), 0o644)
}

func newTestOrchestrator(t *testing.T, doc *fakeDoc, asm document.Assembler) *Orchestrator {
	t.Helper()
	a := NewAnalyzer(stringsClassifier(t), doc.recognizer(), AnalyzerOptions{
		MaxConcurrentPages: 2,
		SegmentPolicy:      segment.DefaultPolicy(),
		Retry:              fastRetry(),
	}, discard())
	open := func(path string) (Source, error) {
		if path == "missing.pdf" {
			return nil, errors.New("no such file")
		}
		return doc, nil
	}
	o := NewOrchestrator(OrchestratorConfig{
		WorkerCount:  1,
		MaxQueueSize: 4,
		JobTTL:       time.Hour,
		OutputDir:    t.TempDir(),
	}, a, open, export.NewExporter(asm, export.DefaultTemplate, discard()), discard())
	o.Start(context.Background())
	t.Cleanup(o.Stop)
	return o
}

func TestOrchestrator_AnalyzeThenExport(t *testing.T) {
	doc := &fakeDoc{parts: violinScore()}
	asm := &recordingAssembler{}
	o := newTestOrchestrator(t, doc, asm)

	job := NewJob("serenade.pdf", "", "serenade.pdf", "")
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, func() bool { return job.Snapshot().Status == StatusReview })

	if !doc.closed.Load() {
		t.Error("expected document closed after analysis")
	}
	snap := job.Snapshot()
	if snap.Progress.PagesClassified != 13 || snap.Progress.Segments != 2 {
		t.Errorf("unexpected progress: %+v", snap.Progress)
	}
	if snap.Title != "Serenade for Strings" {
		t.Errorf("expected title detected on page 0, got %q", snap.Title)
	}

	outs, err := o.Export(context.Background(), job, export.Metadata{Composer: "Tchaikovsky"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(outs))
	}
	if !strings.HasSuffix(outs[0].File, "Serenade for Strings_Violin I.pdf") {
		t.Errorf("unexpected file name %q", outs[0].File)
	}
	if job.Snapshot().Status != StatusExported {
		t.Errorf("expected exported, got %q", job.Snapshot().Status)
	}
	if len(job.Outputs()) != 2 {
		t.Errorf("expected outputs recorded on job")
	}
}

func TestOrchestrator_OpenFailureFailsJob(t *testing.T) {
	o := newTestOrchestrator(t, &fakeDoc{}, &recordingAssembler{})

	job := NewJob("missing.pdf", "", "missing.pdf", "")
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, func() bool { return job.Snapshot().Status == StatusFailed })
	if errs := job.Snapshot().Progress.Errors; len(errs) == 0 || !strings.Contains(errs[0], "no such file") {
		t.Errorf("expected open error recorded, got %v", errs)
	}
}

func TestOrchestrator_ExportBeforeAnalysis(t *testing.T) {
	o := newTestOrchestrator(t, &fakeDoc{}, &recordingAssembler{})
	job := NewJob("x.pdf", "", "", "")
	if _, err := o.Export(context.Background(), job, export.Metadata{}); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}
