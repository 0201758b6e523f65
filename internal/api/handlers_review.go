package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dgallion1/scoreslice/internal/export"
	"github.com/dgallion1/scoreslice/internal/overlay"
	"github.com/dgallion1/scoreslice/internal/pipeline"
	"github.com/dgallion1/scoreslice/internal/report"
)

const maxCorrectionBytes = 64 << 10

// reviewable returns the job's overlay, or writes 409 while analysis runs.
func reviewable(w http.ResponseWriter, job *pipeline.Job) *overlay.Overlay {
	ov := job.Overlay()
	if ov == nil {
		jsonError(w, "job is "+string(job.Snapshot().Status)+", not ready for review", http.StatusConflict)
	}
	return ov
}

func (s *Server) handleClassifications(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return
	}
	if reviewable(w, job) == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": job.ID,
		"pages":  job.Classifications(),
	})
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return
	}
	ov := reviewable(w, job)
	if ov == nil {
		return
	}
	writeState(w, job.ID, ov.State())
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return
	}
	ov := reviewable(w, job)
	if ov == nil {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCorrectionBytes))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	op, err := overlay.DecodeOperation(body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := ov.Apply(op)
	if err != nil {
		s.correctionError(w, job, err)
		return
	}
	job.Touch()
	s.log.Info("correction applied", "job_id", job.ID, "op", op.Kind(), "segments", len(state.Segments()))
	writeState(w, job.ID, state)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return
	}
	ov := reviewable(w, job)
	if ov == nil {
		return
	}
	state, err := ov.Undo()
	if err != nil {
		s.correctionError(w, job, err)
		return
	}
	job.Touch()
	writeState(w, job.ID, state)
}

func (s *Server) correctionError(w http.ResponseWriter, job *pipeline.Job, err error) {
	if overlay.IsRejected(err) {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	s.log.Error("correction failed", "job_id", job.ID, "error", err)
	jsonError(w, "correction failed: "+err.Error(), http.StatusInternalServerError)
}

func writeState(w http.ResponseWriter, jobID string, st overlay.State) {
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":     jobID,
		"page_count": st.PageCount(),
		"segments":   st.Segments(),
		"changes":    len(st.Log()),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return
	}
	if reviewable(w, job) == nil {
		return
	}

	var meta export.Metadata
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCorrectionBytes)).Decode(&meta); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid metadata: "+err.Error(), http.StatusBadRequest)
		return
	}

	outs, err := s.orchestrator.Export(r.Context(), job, meta)
	if err != nil {
		if errors.Is(err, pipeline.ErrNotReady) {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		jsonError(w, "export failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": job.ID,
		"parts":  outs,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return
	}
	ov := reviewable(w, job)
	if ov == nil {
		return
	}

	html, err := report.HTML(report.Summary{
		JobID:     job.ID,
		Filename:  job.Filename,
		Title:     job.Snapshot().Title,
		Generated: time.Now(),
		Pages:     job.Classifications(),
		Segments:  ov.Segments(),
	})
	if err != nil {
		jsonError(w, "render report: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}
