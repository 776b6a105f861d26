package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/DAMG7250-Team1/reportgen/internal/pipeline"
)

const maxRequestBytes = 1 << 20

type reportRequest struct {
	Query string `json:"query"`
}

// decodeQuery reads {"query": "..."} and rejects blank queries.
func decodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return "", false
		}
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return "", false
	}
	q := strings.TrimSpace(req.Query)
	if q == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return "", false
	}
	return q, true
}

// handleGenerateReport runs a report inside the request. Pipeline failures
// are returned as the report text with status 200.
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	query, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if s.cfg.ReportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ReportTimeout)
		defer cancel()
	}

	text := s.reporter.GenerateReport(ctx, query)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"report": text})
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	query, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	job := pipeline.NewJob(query)
	if err := s.orchestrator.Submit(job); err != nil {
		s.log.Warn("report job rejected", "job_id", job.ID, "error", err)
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/reports/"+snap.ID)
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"job_id": snap.ID,
		"status": snap.Status,
	})
}

// handleReportStatus returns job state as JSON. A completed job can also be
// fetched as rendered Markdown (format=markdown) or HTML (format=html).
func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()

	format := r.URL.Query().Get("format")
	if format != "" && format != "json" {
		if snap.Status != pipeline.StatusCompleted {
			jsonError(w, "report not ready: "+string(snap.Status), http.StatusConflict)
			return
		}
		switch format {
		case "markdown":
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.Write([]byte(snap.Report))
		case "html":
			page, err := renderHTML(snap.Query, snap.Report)
			if err != nil {
				jsonError(w, "render report: "+err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write(page)
		default:
			jsonError(w, "unsupported format: "+format, http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

// renderHTML converts report Markdown into a standalone HTML page.
func renderHTML(title, markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &body); err != nil {
		return nil, err
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	page.WriteString(htmlEscaper.Replace(title))
	page.WriteString("</title></head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;")

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
