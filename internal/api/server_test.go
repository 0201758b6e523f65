package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/config"
	"github.com/dgallion1/scoreslice/internal/document"
	"github.com/dgallion1/scoreslice/internal/export"
	"github.com/dgallion1/scoreslice/internal/layout"
	"github.com/dgallion1/scoreslice/internal/pipeline"
	"github.com/dgallion1/scoreslice/internal/recognize"
	"github.com/dgallion1/scoreslice/internal/segment"
	"github.com/dgallion1/scoreslice/internal/vocab"
)

const testKey = "secret"

// quartetDoc is two pages of Violin I followed by two of Viola.
type quartetDoc struct{}

var quartetParts = []string{"Violin I", "Violin I", "Viola", "Viola"}

func (quartetDoc) PageCount() int { return len(quartetParts) }
func (quartetDoc) Close() error   { return nil }

func (quartetDoc) Render(ctx context.Context, index int) (recognize.Image, error) {
	return recognize.Image{Page: index}, nil
}

func (quartetDoc) TextLayer(index int) ([]layout.TextBlock, error) {
	return []layout.TextBlock{
		{Text: "String Quartet", Box: layout.BBox{X0: 0.3, Y0: 0.02, X1: 0.7, Y1: 0.05}, FontRank: 3, Confidence: 1},
		{Text: quartetParts[index], Box: layout.BBox{X0: 0.05, Y0: 0.08, X1: 0.25, Y1: 0.1}, FontRank: 2, Confidence: 1},
	}, nil
}

type fileAssembler struct{}

func (fileAssembler) Assemble(ctx context.Context, src string, first, last int, props document.Properties, out string) error {
	return os.WriteFile(out, []byte("%PDF-1.7"), 0o644)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	v, err := vocab.New([]vocab.Entry{
		{Label: "Violin I"},
		{Label: "Violin II"},
		{Label: "Viola"},
		{Label: "Violoncello", Variants: []string{"Cello"}},
	})
	if err != nil {
		t.Fatalf("vocabulary: %v", err)
	}

	analyzer := pipeline.NewAnalyzer(classify.New(v, classify.DefaultPolicy()), nil, pipeline.AnalyzerOptions{
		MaxConcurrentPages: 2,
		PreferTextLayer:    true,
		SegmentPolicy:      segment.DefaultPolicy(),
	}, log)
	open := func(path string) (pipeline.Source, error) { return quartetDoc{}, nil }

	cfg := config.Config{
		APIKey:         testKey,
		MaxUploadBytes: 1 << 20,
		DataDir:        t.TempDir(),
		OCRLanguages:   []string{"eng"},
	}
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		WorkerCount:  1,
		MaxQueueSize: 4,
		JobTTL:       time.Hour,
		OutputDir:    cfg.DataDir,
	}, analyzer, open, export.NewExporter(fileAssembler{}, export.DefaultTemplate, log), log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, v, recognize.NewStats(time.Hour), log, cfg)
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, s *Server, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.WriteField("title", "String Quartet")
	mw.Close()
	return do(t, s, http.MethodPost, "/api/analyze", &buf, mw.FormDataContentType())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func analyzed(t *testing.T, s *Server) string {
	t.Helper()
	rec := upload(t, s, "quartet.pdf", []byte("%PDF-1.7 quartet"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	id := decode(t, rec)["job_id"].(string)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(t, s, http.MethodGet, "/api/jobs/"+id+"/status", nil, "")
		status := decode(t, rec)["status"]
		if status == string(pipeline.StatusReview) {
			return id
		}
		if status == string(pipeline.StatusFailed) {
			t.Fatalf("job failed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for review")
	return ""
}

func segmentCount(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()
	segs, _ := decode(t, rec)["segments"].([]any)
	return len(segs)
}

func TestHealth_NoAuth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuth_RejectsBadKey(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json error, got %q", ct)
	}
}

func TestAnalyze_RejectsNonPDF(t *testing.T) {
	s := newTestServer(t)
	if rec := upload(t, s, "notes.txt", []byte("%PDF-1.7")); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for extension, got %d", rec.Code)
	}
	if rec := upload(t, s, "fake.pdf", []byte("hello")); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for content, got %d", rec.Code)
	}
}

func TestAnalyze_ReviewAndCorrect(t *testing.T) {
	s := newTestServer(t)
	id := analyzed(t, s)

	rec := do(t, s, http.MethodGet, "/api/jobs/"+id+"/segments", nil, "")
	if n := segmentCount(t, rec); n != 2 {
		t.Fatalf("expected 2 segments, got %d", n)
	}

	rec = do(t, s, http.MethodGet, "/api/jobs/"+id+"/classifications", nil, "")
	pages, _ := decode(t, rec)["pages"].([]any)
	if len(pages) != 4 {
		t.Errorf("expected 4 classifications, got %d", len(pages))
	}

	rec = do(t, s, http.MethodPost, "/api/jobs/"+id+"/corrections", strings.NewReader(`{"op":"merge","a":1,"b":2}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("merge: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if n := segmentCount(t, rec); n != 1 {
		t.Errorf("expected 1 segment after merge, got %d", n)
	}

	rec = do(t, s, http.MethodPost, "/api/jobs/"+id+"/corrections", strings.NewReader(`{"op":"split","segment":1,"at":0}`), "application/json")
	if rec.Code != http.StatusConflict {
		t.Errorf("bad split: expected 409, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/jobs/"+id+"/corrections", strings.NewReader(`{"op":"transpose"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown op: expected 400, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/jobs/"+id+"/undo", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("undo: expected 200, got %d", rec.Code)
	}
	if n := segmentCount(t, rec); n != 2 {
		t.Errorf("expected 2 segments after undo, got %d", n)
	}

	rec = do(t, s, http.MethodPost, "/api/jobs/"+id+"/undo", nil, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("empty undo: expected 409, got %d", rec.Code)
	}
}

func TestAnalyze_DuplicateUpload(t *testing.T) {
	s := newTestServer(t)
	id := analyzed(t, s)

	rec := upload(t, s, "again.pdf", []byte("%PDF-1.7 quartet"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["job_id"] != id || body["duplicate"] != true {
		t.Errorf("expected existing job %s, got %v", id, body)
	}
}

func TestExportAndReport(t *testing.T) {
	s := newTestServer(t)
	id := analyzed(t, s)

	rec := do(t, s, http.MethodGet, "/api/jobs/"+id+"/report", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<table>") || !strings.Contains(rec.Body.String(), "Viola") {
		t.Errorf("expected html table with parts, got %q", rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/jobs/"+id+"/export", strings.NewReader(`{"composer":"Haydn"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	parts, _ := decode(t, rec)["parts"].([]any)
	if len(parts) != 2 {
		t.Errorf("expected 2 parts, got %d", len(parts))
	}
}

func TestJobs_ListAndDelete(t *testing.T) {
	s := newTestServer(t)
	id := analyzed(t, s)

	jobs, _ := decode(t, do(t, s, http.MethodGet, "/api/jobs", nil, ""))["jobs"].([]any)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}

	if rec := do(t, s, http.MethodDelete, "/api/jobs/"+id, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/jobs/"+id+"/status", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestVocabulary_Suggest(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/vocabulary?q=cello", nil, "")
	got, _ := decode(t, rec)["suggestions"].([]any)
	if len(got) == 0 || got[0] != "Violoncello" {
		t.Errorf("expected Violoncello first, got %v", got)
	}
}

func TestRecognitionStats(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/stats/recognition", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":     "passwd",
		`C:\scores\suite.pdf`:  "suite.pdf",
		"":                     "unnamed",
		"quartet..final.pdf":   "quartet_final.pdf",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
