package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/scoreslice/internal/export"
)

// ErrNotReady is returned when a job has no segments to act on yet.
var ErrNotReady = errors.New("job is not ready for review")

// OrchestratorConfig sizes the job queue and worker pool.
type OrchestratorConfig struct {
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration
	OutputDir    string
}

// Orchestrator manages the score analysis pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	analyzer *Analyzer
	open     Opener
	exporter *export.Exporter
	log      *slog.Logger
	cfg      OrchestratorConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg OrchestratorConfig, analyzer *Analyzer, open Opener, exporter *export.Exporter, log *slog.Logger) *Orchestrator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		analyzer: analyzer,
		open:     open,
		exporter: exporter,
		log:      log,
		cfg:      cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.analyzer, o.open, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// FindDuplicate returns a live job for an identical upload.
func (o *Orchestrator) FindDuplicate(contentHash string) *Job {
	return o.jobs.FindByHash(contentHash)
}

// ListJobs returns snapshots of all live jobs.
func (o *Orchestrator) ListJobs() []JobSnapshot {
	return o.jobs.List()
}

// DeleteJob drops a job and its uploaded file.
func (o *Orchestrator) DeleteJob(id string) bool {
	return o.jobs.Delete(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Export writes the job's current segments as part files. It runs in the
// caller's goroutine; the job returns to review on failure.
func (o *Orchestrator) Export(ctx context.Context, job *Job, meta export.Metadata) ([]export.Output, error) {
	ov := job.Overlay()
	if ov == nil {
		return nil, ErrNotReady
	}
	if meta.Title == "" {
		meta.Title = job.Snapshot().Title
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	}

	log := o.log.With("job_id", job.ID)
	job.SetStatus(StatusExporting, "exporting")

	outDir := filepath.Join(o.cfg.OutputDir, job.ID)
	outs, err := o.exporter.Export(ctx, job.SourcePath(), ov.Segments(), meta, outDir)
	if err != nil {
		log.Error("export failed", "error", err)
		job.AddError(fmt.Sprintf("export: %s", err))
		job.SetStatus(StatusReview, "review")
		return nil, err
	}
	job.SetOutputs(outs)
	job.SetStatus(StatusExported, "exported")
	log.Info("export complete", "parts", len(outs), "dir", outDir)
	return outs, nil
}
