package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/darklens/internal/app"
	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/capture"
	"github.com/raysh454/darklens/internal/compare"
	"github.com/raysh454/darklens/internal/detector"
	"github.com/raysh454/darklens/internal/model"
	"github.com/raysh454/darklens/internal/server"
	"github.com/raysh454/darklens/internal/taxonomy"
	"github.com/raysh454/darklens/internal/testutil"
)

type harness struct {
	srv      *server.Server
	capturer *testutil.DummyCapturer
	detector *testutil.DummyDetector
	store    *testutil.DummyReportStore
	spider   *testutil.DummyEnumerator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	exp, err := capture.NewExporter(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		capturer: &testutil.DummyCapturer{},
		detector: &testutil.DummyDetector{Detections: []auditor.RawDetection{
			auditor.NewDetection(taxonomy.PreselectedInvasiveDefault, 0.94, 400, 200, 420, 220),
			auditor.NewDetection(taxonomy.HiddenInPlainSight, 0.88, 800, 150, 815, 300),
		}},
		store:  testutil.NewDummyReportStore(),
		spider: &testutil.DummyEnumerator{},
	}

	orch := app.NewOrchestrator(app.DefaultConfig(), &app.Components{
		Capturer: h.capturer,
		Detector: h.detector,
		Store:    h.store,
		Exporter: exp,
		Spider:   h.spider,
	}, &testutil.DummyLogger{})

	h.srv, err = server.NewServer(server.Config{Logger: &testutil.DummyLogger{}}, orch)
	require.NoError(t, err)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.srv.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (h *harness) audit(t *testing.T, target string) string {
	t.Helper()
	rr := h.do(t, http.MethodPost, "/api/audit", map[string]string{"targetUrl": target})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	id := rr.Header().Get("X-Audit-ID")
	require.NotEmpty(t, id)
	return id
}

func TestNewServer_RequiresOrchestrator(t *testing.T) {
	t.Parallel()
	_, err := server.NewServer(server.Config{}, nil)
	assert.Error(t, err)
}

func TestServer_HTTPServerDefaults(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	assert.Equal(t, ":5000", h.srv.HTTPServer().Addr)
}

func TestServer_HealthAndCORS(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Backend is running.", decode[server.HealthResponse](t, rr).Status)

	rr = h.do(t, http.MethodOptions, "/api/audit", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestServer_Taxonomy(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/api/taxonomy", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rules := decode[[]taxonomy.PatternRule](t, rr)
	assert.Len(t, rules, 7)
}

func TestServer_Audit(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/audit", map[string]string{"targetUrl": "https://example.com"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	report := decode[auditor.Report](t, rr)
	assert.Equal(t, 50, report.Summary.TrustScore)
	assert.Equal(t, auditor.StatusNonCompliant, report.Summary.Status)
	assert.Equal(t, "https://example.com", report.Summary.TargetURL)
	assert.Len(t, report.VisualAudit.Detections, 2)
	assert.NotEmpty(t, rr.Header().Get("X-Audit-ID"))
	assert.Equal(t, 1, h.store.Len())
}

func TestServer_Audit_SnakeCaseKey(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/audit", map[string]string{"target_url": "example.com"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"example.com"}, h.capturer.Calls())
}

func TestServer_Audit_BadRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/audit", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Please provide a targetUrl.", decode[server.ErrorResponse](t, rr).Error)

	rr = h.do(t, http.MethodPost, "/api/audit", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, http.MethodPost, "/api/audit", map[string]string{"targetUrl": "https://"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_Audit_PipelineFailureHidesDetails(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.capturer.Err = testutil.ErrDummyFailure

	rr := h.do(t, http.MethodPost, "/api/audit", map[string]string{"targetUrl": "example.com"})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	msg := decode[server.ErrorResponse](t, rr).Error
	assert.Equal(t, "Internal Server Error during the audit pipeline.", msg)
	assert.NotContains(t, msg, "dummy")
}

func TestServer_TestScraperAndExports(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/test-scraper", map[string]string{"url": "nothing"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "URL is required", decode[server.ErrorResponse](t, rr).Error)

	rr = h.do(t, http.MethodPost, "/api/test-scraper", map[string]string{"targetUrl": "example.com"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[server.TestScraperResponse](t, rr)
	assert.True(t, resp.Success)

	u, err := url.Parse(resp.ImageURL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.Path, "/exports/site_audit_"), u.Path)

	rr = h.do(t, http.MethodGet, u.Path, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testutil.PNG(1280, 720), rr.Body.Bytes())
}

func TestServer_TestScraper_Failure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.capturer.FailTargets = map[string]bool{"example.com": true}

	rr := h.do(t, http.MethodPost, "/api/test-scraper", map[string]string{"targetUrl": "example.com"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Scraper service failed.", decode[server.ErrorResponse](t, rr).Error)
}

func TestServer_Capture(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/capture", map[string]string{"target_url": "https://example.com/cookies"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[server.CaptureResponse](t, rr)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "https://example.com/cookies", resp.URL)
	assert.FileExists(t, resp.FilePath)

	h.capturer.Err = testutil.ErrDummyFailure
	rr = h.do(t, http.MethodPost, "/api/capture", map[string]string{"target_url": "example.com"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to capture website.", decode[server.ErrorResponse](t, rr).Error)
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("screenshot", "shot.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestServer_Analyze(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	body, ct := multipartBody(t, map[string]string{
		"target_url": "https://shop.example.com",
		"html":       "<button>Accept all</button>",
	}, testutil.PNG(640, 480))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.srv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	report := decode[auditor.Report](t, rr)
	assert.Equal(t, 50, report.Summary.TrustScore)

	require.Len(t, h.detector.Seen, 1)
	seen := h.detector.Seen[0]
	assert.Equal(t, 640, seen.Width)
	assert.Equal(t, "<button>Accept all</button>", seen.HTML)
	assert.FileExists(t, seen.ImagePath)
	assert.Empty(t, h.capturer.Calls())
}

func TestServer_Analyze_BadRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	post := func(body *bytes.Buffer, ct string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/analyze", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.srv.ServeHTTP(rr, req)
		return rr
	}

	body, ct := multipartBody(t, map[string]string{"target_url": "example.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, post(body, ct).Code)

	body, ct = multipartBody(t, nil, testutil.PNG(10, 10))
	assert.Equal(t, http.StatusBadRequest, post(body, ct).Code)

	body, ct = multipartBody(t, map[string]string{"target_url": "example.com"}, []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, post(body, ct).Code)

	assert.Equal(t, http.StatusBadRequest, post(bytes.NewBufferString("{}"), "application/json").Code)
}

func TestServer_Analyze_InferenceFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.detector.Err = testutil.ErrDummyFailure

	body, ct := multipartBody(t, map[string]string{"target_url": "example.com"}, testutil.PNG(10, 10))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Error during AI inference and compliance mapping.", decode[server.ErrorResponse](t, rr).Error)
}

func TestServer_Analyze_DefaultDetectorScreenshotOnly(t *testing.T) {
	t.Parallel()
	cfg := app.DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	cfg.Capture.Backend = capture.BackendFile
	require.Equal(t, detector.BackendHeuristic, cfg.Detector.Backend)

	a, err := app.NewApplication(context.Background(), cfg, &testutil.DummyLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	srv, err := server.NewServer(server.Config{Logger: &testutil.DummyLogger{}}, a.Orch)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	body, ct := multipartBody(t, map[string]string{"target_url": "https://example.com"}, testutil.PNG(10, 10))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	report := decode[auditor.Report](t, rr)
	assert.Equal(t, 50, report.Summary.TrustScore)
	assert.Equal(t, auditor.StatusNonCompliant, report.Summary.Status)
	assert.Len(t, report.VisualAudit.Detections, 2)

	recs, err := a.Orch.ListReports(context.Background(), "https://example.com", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, string(detector.BackendStatic), recs[0].Detector)
}

func TestServer_Score(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/score", `{
		"target_url": "example.com",
		"detections": [
			{"label": "misleading_button", "confidence": 0.9, "box_2d": [10, 10, 20, 20]},
			{"label": "misleading_button", "confidence": 0.5, "box_2d": [30, 30, 40, 40]}
		]
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	report := decode[auditor.Report](t, rr)
	assert.Equal(t, 1, report.Summary.TotalViolations)
	assert.Empty(t, h.detector.Seen)

	id := rr.Header().Get("X-Audit-ID")
	rr = h.do(t, http.MethodGet, "/api/reports/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, app.ClientDetector, decode[model.AuditRecord](t, rr).Detector)
}

func TestServer_Score_BadRequests(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/score", `{"detections": []}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, http.MethodPost, "/api/score", `{"target_url": "example.com", "detections": [{"label": "", "box_2d": [1,2,3,4]}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = h.do(t, http.MethodPost, "/api/score", `{"target_url": "example.com", "detections": [{"label": "misleading_button", "box_2d": [1,2,3]}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, h.store.Len())
}

func TestServer_Discover(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.spider.Sites = map[string][]string{
		"https://shop.example": {"https://shop.example", "https://shop.example/settings"},
	}

	rr := h.do(t, http.MethodGet, "/api/discover?target="+url.QueryEscape("https://shop.example"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[server.DiscoverResponse](t, rr)
	assert.Equal(t, []string{"https://shop.example", "https://shop.example/settings"}, resp.Pages)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/discover", nil).Code)

	h.spider.Err = testutil.ErrDummyFailure
	assert.Equal(t, http.StatusBadGateway, h.do(t, http.MethodGet, "/api/discover?target=shop.example", nil).Code)
}

func waitForJob(t *testing.T, h *harness, id string) app.Job {
	t.Helper()
	var job app.Job
	require.Eventually(t, func() bool {
		rr := h.do(t, http.MethodGet, "/api/jobs/"+id, nil)
		if rr.Code != http.StatusOK {
			return false
		}
		job = decode[app.Job](t, rr)
		return job.Status == app.JobDone || job.Status == app.JobFailed || job.Status == app.JobCanceled
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestServer_Jobs(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/jobs/audit", map[string]string{"targetUrl": "example.com"})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	started := decode[app.Job](t, rr)
	assert.Equal(t, "audit", started.Type)
	assert.Equal(t, "example.com", started.Target)

	job := waitForJob(t, h, started.ID)
	assert.Equal(t, app.JobDone, job.Status)
	require.NotNil(t, job.Record)
	assert.Equal(t, 50, job.Record.TrustScore)

	rr = h.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	jobs := decode[[]app.Job](t, rr)
	require.Len(t, jobs, 1)
	assert.Equal(t, started.ID, jobs[0].ID)

	// cancelling a finished job is accepted
	rr = h.do(t, http.MethodDelete, "/api/jobs/"+started.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestServer_Jobs_Errors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/jobs/audit", map[string]string{}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/jobs/audit", map[string]string{"targetUrl": "https:///nohost"}).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/jobs/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/jobs/nope", nil).Code)
}

func TestServer_Jobs_Cancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.capturer.ResponseDelay = time.Minute

	rr := h.do(t, http.MethodPost, "/api/jobs/audit", map[string]string{"targetUrl": "example.com"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	id := decode[app.Job](t, rr).ID

	rr = h.do(t, http.MethodDelete, "/api/jobs/"+id, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	job := waitForJob(t, h, id)
	assert.Equal(t, app.JobCanceled, job.Status)
}

func TestServer_AuditWebSocket(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ts := httptest.NewServer(h.srv)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/audit?target=example.com"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var job app.Job
	require.NoError(t, conn.ReadJSON(&job))
	assert.NotEmpty(t, job.ID)

	var events []app.JobEvent
	for {
		var ev app.JobEvent
		if err := conn.ReadJSON(&ev); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			break
		}
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, app.JobEventResult, last.Type)
	assert.Equal(t, app.JobDone, last.Status)
	require.NotNil(t, last.Record)
	assert.Equal(t, 50, last.Record.TrustScore)
	for _, ev := range events {
		assert.Equal(t, job.ID, ev.JobID)
	}
}

func TestServer_AuditWebSocket_MissingTarget(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rr := h.do(t, http.MethodGet, "/ws/audit", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_Reports_StoreFailureHidesDetail(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.store.ReadErr = errors.New("sql: database is locked (SQLITE_BUSY) at /var/lib/darklens/darklens.db")

	for _, path := range []string{
		"/api/reports",
		"/api/reports/abc",
		"/api/reports/abc/markdown",
		"/api/compare?base=a&head=b",
		"/api/trend?target=example.com",
	} {
		rr := h.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusInternalServerError, rr.Code, path)
		msg := decode[server.ErrorResponse](t, rr).Error
		assert.Equal(t, "Could not read stored reports.", msg, path)
		assert.NotContains(t, rr.Body.String(), "SQLITE_BUSY", path)
	}
}

func TestServer_Reports(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	first := h.audit(t, "https://example.com")
	h.detector.Detections = nil
	second := h.audit(t, "https://www.example.com/")
	h.audit(t, "other.org")

	rr := h.do(t, http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.AuditRecord](t, rr), 3)

	rr = h.do(t, http.MethodGet, "/api/reports?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.AuditRecord](t, rr), 1)

	rr = h.do(t, http.MethodGet, "/api/reports?target="+url.QueryEscape("http://example.com"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	byTarget := decode[[]model.AuditRecord](t, rr)
	require.Len(t, byTarget, 2)
	for _, rec := range byTarget {
		assert.Equal(t, "example.com", rec.TargetKey)
	}

	rr = h.do(t, http.MethodGet, "/api/reports/"+first, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rec := decode[model.AuditRecord](t, rr)
	assert.Equal(t, first, rec.ID)
	assert.Equal(t, 50, rec.TrustScore)
	assert.True(t, strings.HasPrefix(rec.Screenshot, "/exports/"), rec.Screenshot)

	rr = h.do(t, http.MethodGet, "/api/reports/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/compare?base="+first+"&head="+second, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	diff := decode[compare.ReportDiff](t, rr)
	assert.Equal(t, 50, diff.Delta)
	assert.True(t, diff.SameTarget)
	assert.True(t, diff.StatusChanged)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/compare?base="+first, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/compare?base="+first+"&head=missing", nil).Code)

	rr = h.do(t, http.MethodGet, "/api/trend?target=example.com", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	trend := decode[compare.TargetTrend](t, rr)
	assert.Equal(t, 2, trend.Count)
	assert.Equal(t, "example.com", trend.TargetKey)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/trend", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/trend?target=never.example", nil).Code)
}

func TestServer_RenderReport(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	id := h.audit(t, "example.com")

	rr := h.do(t, http.MethodGet, "/api/reports/"+id+"/markdown", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "darklens-"+id[:8]+".md")
	assert.Contains(t, rr.Body.String(), "# Compliance report: example.com")

	rr = h.do(t, http.MethodGet, "/api/reports/"+id+"/html", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Empty(t, rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), "example.com")

	rr = h.do(t, http.MethodGet, "/api/reports/"+id+"/xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/reports/"+id+"/pdf", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/reports/missing/html", nil).Code)
}

func TestServer_Swagger(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/api/audit")
	assert.Contains(t, rr.Body.String(), "Darklens API")
}
