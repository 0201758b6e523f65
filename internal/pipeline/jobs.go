package pipeline

import (
	"crypto/sha256"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/scoreslice/internal/classify"
	"github.com/dgallion1/scoreslice/internal/export"
	"github.com/dgallion1/scoreslice/internal/overlay"
)

// JobStatus represents the state of a score analysis job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusRecognizing JobStatus = "recognizing"
	StatusSegmenting  JobStatus = "segmenting"
	StatusReview      JobStatus = "review"
	StatusExporting   JobStatus = "exporting"
	StatusExported    JobStatus = "exported"
	StatusFailed      JobStatus = "failed"
)

// Job tracks one uploaded score from analysis through export.
type Job struct {
	mu sync.Mutex

	ID string `json:"job_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	sourcePath string
	pages      []classify.PageClassification
	overlay    *overlay.Overlay
	outputs    []export.Output
	errors     []string
}

// Progress tracks per-page analysis progress.
type Progress struct {
	TotalPages      int      `json:"total_pages"`
	PagesClassified int      `json:"pages_classified"`
	PagesFailed     int      `json:"pages_failed"`
	Segments        int      `json:"segments"`
	Errors          []string `json:"errors"`
}

// NewJob creates a queued job for a score stored at sourcePath.
func NewJob(filename, title, sourcePath, contentHash string) *Job {
	now := time.Now()
	return &Job{
		ID:          NewJobID(),
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		Title:       title,
		ContentHash: contentHash,
		CreatedAt:   now,
		UpdatedAt:   now,
		sourcePath:  sourcePath,
	}
}

// NewJobID returns a time-ordered UUIDv7.
func NewJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Delete removes a job and its uploaded source file.
func (s *JobStore) Delete(id string) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if ok {
		job.release()
	}
	return ok
}

// FindByHash returns a live job for the same upload, if any.
func (s *JobStore) FindByHash(hash string) *Job {
	if hash == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		snap := job.Snapshot()
		if job.ContentHash == hash && snap.Status != StatusFailed {
			return job
		}
	}
	return nil
}

// List returns snapshots of all jobs, newest first.
func (s *JobStore) List() []JobSnapshot {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	out := make([]JobSnapshot, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Snapshot())
	}
	slices.SortFunc(out, func(a, b JobSnapshot) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	var expired []*Job
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
			expired = append(expired, job)
		}
	}
	s.mu.Unlock()

	for _, job := range expired {
		job.release()
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// PageDone records one classified page.
func (j *Job) PageDone(pc classify.PageClassification) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PagesClassified++
	if pc.RecognitionError != "" {
		j.Progress.PagesFailed++
	}
	j.UpdatedAt = time.Now()
}

// SetTotalPages records the document's page count.
func (j *Job) SetTotalPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalPages = n
	j.UpdatedAt = time.Now()
}

// SetAnalysis stores the classifications and the review overlay. A job
// without a title takes the one detected on the score.
func (j *Job) SetAnalysis(pages []classify.PageClassification, ov *overlay.Overlay) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pages = pages
	j.overlay = ov
	if j.Title == "" {
		j.Title = classify.DetectedTitle(pages)
	}
	j.UpdatedAt = time.Now()
}

// Classifications returns the machine guesses, or nil before analysis.
func (j *Job) Classifications() []classify.PageClassification {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.pages)
}

// Overlay returns the review overlay, or nil before analysis.
func (j *Job) Overlay() *overlay.Overlay {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.overlay
}

// Touch marks the job as used so it survives TTL cleanup.
func (j *Job) Touch() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.UpdatedAt = time.Now()
}

func (j *Job) SetOutputs(outs []export.Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outputs = outs
	j.UpdatedAt = time.Now()
}

func (j *Job) Outputs() []export.Output {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.outputs)
}

// SourcePath returns the path of the uploaded score.
func (j *Job) SourcePath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sourcePath
}

func (j *Job) release() {
	j.mu.Lock()
	path := j.sourcePath
	j.sourcePath = ""
	j.mu.Unlock()
	if path != "" {
		os.Remove(path)
	}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot returns a JSON-safe copy of the job state. The segment count is
// read from the overlay, so it follows every correction and undo.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := slices.Clone(j.Progress.Errors)
	if errs == nil {
		errs = []string{}
	}
	p := j.Progress
	p.Errors = errs
	if j.overlay != nil {
		p.Segments = len(j.overlay.Segments())
	}
	return JobSnapshot{
		ID:        j.ID,
		Status:    j.Status,
		Phase:     j.Phase,
		Filename:  j.Filename,
		Title:     j.Title,
		Progress:  p,
		CreatedAt: j.CreatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
