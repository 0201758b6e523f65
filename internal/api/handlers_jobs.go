package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/scoreslice/internal/pipeline"
)

// jobFromRequest resolves {jobID} or writes a 404.
func (s *Server) jobFromRequest(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
	}
	return job
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return
	}
	snap := job.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":   snap.ID,
		"status":   snap.Status,
		"phase":    snap.Phase,
		"filename": snap.Filename,
		"progress": snap.Progress,
	})
}

// handleListJobs lists live jobs, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":        s.orchestrator.ListJobs(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

// handleDeleteJob drops a job and its uploaded score. Exported part files
// are left in place.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.orchestrator.DeleteJob(jobID) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	s.log.Info("job deleted", "job_id", jobID)
	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "deleted": true})
}
