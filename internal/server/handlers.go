package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raysh454/darklens/internal/app"
	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/capture"
	"github.com/raysh454/darklens/internal/compare"
	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/render"
	"github.com/raysh454/darklens/internal/store"
)

// Messages returned for pipeline failures. Internal error text stays in the logs.
const (
	msgAuditFailed    = "Internal Server Error during the audit pipeline."
	msgAnalyzeFailed  = "Error during AI inference and compliance mapping."
	msgCaptureFailed  = "Failed to capture website."
	msgScraperFailed  = "Scraper service failed."
	msgMissingTarget  = "Please provide a targetUrl."
	msgScoreFailed    = "Error during compliance mapping."
	msgReportStore    = "Could not read stored reports."
	healthStatus      = "Backend is running."
	auditIDHeader     = "X-Audit-ID"
	defaultListLimit  = 50
	maxJSONBodyLength = 8 << 20
)

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyLength)).Decode(v)
}

func queryLimit(r *http.Request) int {
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		return v
	}
	return defaultListLimit
}

// publicURL resolves an absolute URL for path on the host the client used.
func publicURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, path)
}

// Status

// handleHealth reports liveness.
//
// @Summary Health check
// @Tags status
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatus})
}

// handleTaxonomy lists every rule audits are scored against.
//
// @Summary Regulatory taxonomy
// @Tags status
// @Produce json
// @Success 200 {array} taxonomy.PatternRule
// @Router /api/taxonomy [get]
func (s *Server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.Taxonomy().Rules())
}

// Audits

// handleAudit captures, detects and scores a page in one request.
//
// @Summary Audit a page
// @Tags audits
// @Accept json
// @Produce json
// @Param request body TargetRequest true "page to audit"
// @Success 200 {object} auditor.Report
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/audit [post]
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	var body TargetRequest
	if err := decodeBody(r, &body); err != nil || body.target() == "" {
		writeError(w, http.StatusBadRequest, msgMissingTarget)
		return
	}

	rec, err := s.orchestrator.Audit(r.Context(), body.target())
	if err != nil {
		if errors.Is(err, app.ErrInvalidTarget) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("audit pipeline failed", logging.F("target", body.target()), logging.Err(err))
		writeError(w, http.StatusInternalServerError, msgAuditFailed)
		return
	}
	w.Header().Set(auditIDHeader, rec.ID)
	writeJSON(w, http.StatusOK, rec.Report)
}

// handleTestScraper captures a page without auditing it.
//
// @Summary Capture a screenshot
// @Tags audits
// @Accept json
// @Produce json
// @Param request body TargetRequest true "page to capture"
// @Success 200 {object} TestScraperResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/test-scraper [post]
func (s *Server) handleTestScraper(w http.ResponseWriter, r *http.Request) {
	var body TargetRequest
	if err := decodeBody(r, &body); err != nil || body.target() == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	c, err := s.orchestrator.Capture(r.Context(), body.target())
	if err != nil {
		if errors.Is(err, app.ErrInvalidTarget) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("scraper test failed", logging.F("target", body.target()), logging.Err(err))
		writeError(w, http.StatusInternalServerError, msgScraperFailed)
		return
	}
	s.logger.Info("captured screenshot", logging.F("target", body.target()), logging.F("path", c.ImagePath))
	writeJSON(w, http.StatusOK, TestScraperResponse{
		Success:  true,
		ImageURL: publicURL(r, "/exports/"+filepath.Base(c.ImagePath)),
	})
}

// handleCapture is the capture service contract: it returns the file path
// of the exported screenshot.
//
// @Summary Capture a page to the export directory
// @Tags audits
// @Accept json
// @Produce json
// @Param request body TargetRequest true "page to capture"
// @Success 200 {object} CaptureResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/capture [post]
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var body TargetRequest
	if err := decodeBody(r, &body); err != nil || body.target() == "" {
		writeError(w, http.StatusBadRequest, "target_url is required")
		return
	}

	c, err := s.orchestrator.Capture(r.Context(), body.target())
	if err != nil {
		if errors.Is(err, app.ErrInvalidTarget) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("capture failed", logging.F("target", body.target()), logging.Err(err))
		writeError(w, http.StatusInternalServerError, msgCaptureFailed)
		return
	}
	writeJSON(w, http.StatusOK, CaptureResponse{Status: "success", FilePath: c.ImagePath, URL: body.target()})
}

// handleAnalyze audits an uploaded screenshot.
//
// @Summary Audit an uploaded screenshot
// @Tags audits
// @Accept multipart/form-data
// @Produce json
// @Param target_url formData string true "audited page"
// @Param screenshot formData file true "PNG or JPEG screenshot"
// @Param html formData string false "page markup for the heuristic detector"
// @Success 200 {object} auditor.Report
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /analyze [post]
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart form with target_url and screenshot")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	target := r.FormValue("target_url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "target_url is required")
		return
	}
	file, _, err := r.FormFile("screenshot")
	if err != nil {
		writeError(w, http.StatusBadRequest, "screenshot is required")
		return
	}
	defer file.Close()

	img, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read screenshot")
		return
	}
	c, err := capture.FromImage(target, img, r.FormValue("html"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.orchestrator.AnalyzeCapture(r.Context(), c)
	if err != nil {
		if errors.Is(err, app.ErrInvalidTarget) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("inference failed", logging.F("target", target), logging.Err(err))
		writeError(w, http.StatusInternalServerError, msgAnalyzeFailed)
		return
	}
	w.Header().Set(auditIDHeader, rec.ID)
	writeJSON(w, http.StatusOK, rec.Report)
}

// handleScore scores detections supplied by the client.
//
// @Summary Score detections
// @Tags audits
// @Accept json
// @Produce json
// @Param request body ScoreRequest true "target and detections"
// @Success 200 {object} auditor.Report
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/score [post]
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var body ScoreRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if body.TargetURL == "" {
		writeError(w, http.StatusBadRequest, "target_url is required")
		return
	}

	rec, err := s.orchestrator.Score(r.Context(), body.TargetURL, body.Detections)
	if err != nil {
		if errors.Is(err, auditor.ErrInvalidDetection) || errors.Is(err, app.ErrInvalidTarget) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("scoring failed", logging.F("target", body.TargetURL), logging.Err(err))
		writeError(w, http.StatusInternalServerError, msgScoreFailed)
		return
	}
	w.Header().Set(auditIDHeader, rec.ID)
	writeJSON(w, http.StatusOK, rec.Report)
}

// handleDiscover lists the same-site pages reachable from a root page.
//
// @Summary Discover pages of a site
// @Tags audits
// @Produce json
// @Param target query string true "root page"
// @Success 200 {object} DiscoverResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/discover [get]
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing target query parameter")
		return
	}
	pages, err := s.orchestrator.DiscoverTargets(r.Context(), target)
	if err != nil {
		if errors.Is(err, app.ErrInvalidTarget) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Warn("discovering pages", logging.F("target", target), logging.Err(err))
		writeError(w, http.StatusBadGateway, "could not discover pages")
		return
	}
	writeJSON(w, http.StatusOK, DiscoverResponse{Root: target, Pages: pages})
}

// Jobs (REST)

// handleStartAuditJob queues a background audit.
//
// @Summary Start an audit job
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body TargetRequest true "page to audit"
// @Success 202 {object} app.Job
// @Failure 400 {object} ErrorResponse
// @Router /api/jobs/audit [post]
func (s *Server) handleStartAuditJob(w http.ResponseWriter, r *http.Request) {
	var body TargetRequest
	if err := decodeBody(r, &body); err != nil || body.target() == "" {
		writeError(w, http.StatusBadRequest, msgMissingTarget)
		return
	}

	// the job outlives this request
	job, err := s.orchestrator.StartAuditJob(context.Background(), body.target())
	if err != nil {
		s.logger.Warn("starting audit job", logging.Err(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("started audit job", logging.F("job_id", job.ID), logging.F("target", job.Target))
	writeJSON(w, http.StatusAccepted, job)
}

// @Summary Get a job
// @Tags jobs
// @Produce json
// @Param jobID path string true "job ID"
// @Success 200 {object} app.Job
// @Failure 404 {object} ErrorResponse
// @Router /api/jobs/{jobID} [get]
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.orchestrator.GetJob(jobID)
	if err != nil {
		s.logger.Warn("getting job: not found", logging.F("job_id", jobID))
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// @Summary Cancel a job
// @Tags jobs
// @Param jobID path string true "job ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/jobs/{jobID} [delete]
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.orchestrator.CancelJob(jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.logger.Info("canceled job", logging.F("job_id", jobID))
	w.WriteHeader(http.StatusNoContent)
}

// @Summary List jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} app.Job
// @Router /api/jobs [get]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.orchestrator.ListJobs()
	writeJSON(w, http.StatusOK, jobs)
}

// WebSockets

// handleAuditWS starts an audit job and streams its events until it ends.
// The job is cancelled if the client goes away.
func (s *Server) handleAuditWS(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing target query parameter")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	job, err := s.orchestrator.StartAuditJob(r.Context(), target)
	if err != nil {
		s.logger.Warn("starting audit job", logging.Err(err))
		_ = conn.WriteJSON(ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("started audit job", logging.F("job_id", job.ID))
	_ = conn.WriteJSON(job)

	for ev := range job.Events {
		if err := conn.WriteJSON(ev); err != nil {
			// Assume client disconnected; cancel job
			_ = s.orchestrator.CancelJob(job.ID)
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
}

// Reports

// @Summary List stored audits
// @Tags reports
// @Produce json
// @Param target query string false "only audits of this page"
// @Param limit query int false "maximum records"
// @Success 200 {array} model.AuditRecord
// @Router /api/reports [get]
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	recs, err := s.orchestrator.ListReports(r.Context(), r.URL.Query().Get("target"), queryLimit(r))
	if err != nil {
		s.reportError(w, "listing reports", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// @Summary Get a stored audit
// @Tags reports
// @Produce json
// @Param id path string true "audit ID"
// @Success 200 {object} model.AuditRecord
// @Failure 404 {object} ErrorResponse
// @Router /api/reports/{id} [get]
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.orchestrator.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.reportError(w, "getting report", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// @Summary Download a stored audit as a document
// @Tags reports
// @Produce text/markdown,text/html,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "audit ID"
// @Param format path string true "markdown, html or xlsx"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/reports/{id}/{format} [get]
func (s *Server) handleRenderReport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	mime, ext, ok := render.ContentType(format)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}

	rec, err := s.orchestrator.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.reportError(w, "getting report", err)
		return
	}

	var doc []byte
	switch ext {
	case "md":
		var md string
		md, err = render.Markdown(rec.Report)
		doc = []byte(md)
	case "html":
		doc, err = render.HTML(rec.Report)
	case "xlsx":
		var buf bytes.Buffer
		err = render.XLSX(rec.Report, &buf)
		doc = buf.Bytes()
	}
	if err != nil {
		s.logger.Error("rendering report", logging.F("id", rec.ID), logging.F("format", format), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "could not render report")
		return
	}

	w.Header().Set("Content-Type", mime)
	if ext != "html" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "darklens-"+shortID(rec.ID)+"."+ext))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// @Summary Compare two stored audits
// @Tags reports
// @Produce json
// @Param base query string true "older audit ID"
// @Param head query string true "newer audit ID"
// @Success 200 {object} compare.ReportDiff
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/compare [get]
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	base, head := r.URL.Query().Get("base"), r.URL.Query().Get("head")
	if base == "" || head == "" {
		writeError(w, http.StatusBadRequest, "base and head query parameters are required")
		return
	}
	diff, err := s.orchestrator.CompareReports(r.Context(), base, head)
	if err != nil {
		s.reportError(w, "comparing reports", err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// @Summary Score trend of a page
// @Tags reports
// @Produce json
// @Param target query string true "audited page"
// @Success 200 {object} compare.TargetTrend
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/trend [get]
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing target query parameter")
		return
	}
	trend, err := s.orchestrator.TargetTrend(r.Context(), target)
	if err != nil {
		s.reportError(w, "computing trend", err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

// reportError maps store and compare errors onto status codes.
func (s *Server) reportError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, store.ErrReportNotFound), errors.Is(err, compare.ErrNoRecords):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Warn(action, logging.Err(err))
		writeError(w, http.StatusInternalServerError, msgReportStore)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
