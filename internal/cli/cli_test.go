package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/model"
	"github.com/raysh454/darklens/internal/taxonomy"
	"github.com/raysh454/darklens/internal/testutil"
)

const preselectedJSON = `[{"label": "preselected_invasive_default", "confidence": 0.94, "box_2d": [400, 200, 420, 220]}]`

// workspace is a storage root with a screenshot to audit through the file
// capture backend and the static detector.
type workspace struct {
	root string
	shot string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	root := t.TempDir()
	shot := filepath.Join(root, "banner.png")
	require.NoError(t, os.WriteFile(shot, testutil.PNG(800, 600), 0o644))
	return &workspace{root: root, shot: shot}
}

func (w *workspace) target() string { return "file://" + w.shot }

func (w *workspace) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{
		"--storage-root", w.root,
		"--capture-backend", "file",
		"--detector", "static",
		"--log-level", "error",
	}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeRecords(t *testing.T, out string) []model.AuditRecord {
	t.Helper()
	var recs []model.AuditRecord
	require.NoError(t, json.Unmarshal([]byte(out), &recs), out)
	return recs
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	t.Parallel()
	root := NewRootCmd()
	for _, name := range []string{"config", "log-level", "log-format", "storage-root", "detector", "capture-backend"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "audit", "score", "capture", "taxonomy", "report"})
}

func TestTaxonomyCmd(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	out, err := w.run(t, "", "taxonomy")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ID"), out)
	for _, r := range taxonomy.Default().Rules() {
		assert.Contains(t, out, r.ID)
	}

	out, err = w.run(t, "", "taxonomy", "--json")
	require.NoError(t, err)
	var rules []taxonomy.PatternRule
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	assert.Len(t, rules, 7)
}

func TestAuditCmd(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	out, err := w.run(t, "", "audit", w.target())
	require.NoError(t, err)
	recs := decodeRecords(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, 50, recs[0].TrustScore)
	assert.Equal(t, auditor.StatusNonCompliant, recs[0].Status)
	assert.Equal(t, w.target(), recs[0].TargetKey)

	// the record outlives the command
	out, err = w.run(t, "", "report", "list", "--json")
	require.NoError(t, err)
	listed := decodeRecords(t, out)
	require.Len(t, listed, 1)
	assert.Equal(t, recs[0].ID, listed[0].ID)

	out, err = w.run(t, "", "report", "list")
	require.NoError(t, err)
	assert.Contains(t, out, recs[0].ID)
	assert.Contains(t, out, "Non-Compliant")
}

func TestAuditCmd_Markdown(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	out, err := w.run(t, "", "audit", "--output", "markdown", w.target())
	require.NoError(t, err)
	assert.Contains(t, out, "# Compliance report")
	assert.Contains(t, out, "50")
}

func TestAuditCmd_Crawl(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	// file targets have no links; the repeated root is audited once
	out, err := w.run(t, "", "audit", "--crawl-depth", "2", w.target(), w.target())
	require.NoError(t, err)
	assert.Len(t, decodeRecords(t, out), 1)
}

func TestAuditCmd_FailUnder(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	out, err := w.run(t, "", "audit", "--fail-under", "80", w.target())
	require.ErrorIs(t, err, ErrBelowThreshold)
	// results are still printed
	assert.Len(t, decodeRecords(t, out), 1)

	_, err = w.run(t, "", "audit", "--fail-under", "50", w.target())
	assert.NoError(t, err)
}

func TestAuditCmd_Errors(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	_, err := w.run(t, "", "audit")
	assert.Error(t, err)

	_, err = w.run(t, "", "audit", "--output", "pdf", w.target())
	assert.ErrorContains(t, err, "unknown output format")

	_, err = w.run(t, "", "audit", "file://"+filepath.Join(w.root, "missing.png"))
	assert.Error(t, err)
}

func TestScoreCmd(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	out, err := w.run(t, preselectedJSON, "score", "--target", "example.com")
	require.NoError(t, err)
	recs := decodeRecords(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, 75, recs[0].TrustScore)
	assert.Equal(t, "client", recs[0].Detector)

	path := filepath.Join(w.root, "detections.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))
	out, err = w.run(t, "", "score", "-t", "example.com", "-d", path)
	require.NoError(t, err)
	recs = decodeRecords(t, out)
	assert.Equal(t, 100, recs[0].TrustScore)
	assert.Equal(t, auditor.StatusCompliant, recs[0].Status)
}

func TestScoreCmd_Errors(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	_, err := w.run(t, preselectedJSON, "score")
	assert.ErrorContains(t, err, "target")

	_, err = w.run(t, `[{"label": "misleading_button", "box_2d": [1, 2, 3]}]`, "score", "--target", "example.com")
	assert.ErrorIs(t, err, auditor.ErrInvalidDetection)

	_, err = w.run(t, `{"label": "misleading_button"}`, "score", "--target", "example.com")
	assert.ErrorIs(t, err, auditor.ErrInvalidDetection)

	_, err = w.run(t, "", "score", "--target", "example.com", "--detections", filepath.Join(w.root, "nope.json"))
	assert.Error(t, err)
}

func TestCaptureCmd(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	out, err := w.run(t, "", "capture", w.target())
	require.NoError(t, err)

	var c model.Capture
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, 800, c.Width)
	assert.Equal(t, filepath.Join(w.root, "exports"), filepath.Dir(c.ImagePath))
	assert.FileExists(t, c.ImagePath)
}

func scoreID(t *testing.T, w *workspace, detections string) string {
	t.Helper()
	out, err := w.run(t, detections, "score", "--target", "example.com")
	require.NoError(t, err)
	recs := decodeRecords(t, out)
	require.Len(t, recs, 1)
	return recs[0].ID
}

func TestReportShowCmd(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	id := scoreID(t, w, preselectedJSON)

	out, err := w.run(t, "", "report", "show", id)
	require.NoError(t, err)
	var report auditor.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 75, report.Summary.TrustScore)

	out, err = w.run(t, "", "report", "show", id, "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "# Compliance report: example.com")

	out, err = w.run(t, "", "report", "show", id, "-f", "html")
	require.NoError(t, err)
	assert.Contains(t, out, "example.com")

	xlsx := filepath.Join(w.root, "report.xlsx")
	out, err = w.run(t, "", "report", "show", id, "-f", "xlsx", "--out", xlsx)
	require.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(xlsx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))

	_, err = w.run(t, "", "report", "show", id, "-f", "pdf")
	assert.ErrorContains(t, err, "unknown format")

	_, err = w.run(t, "", "report", "show", "missing")
	assert.Error(t, err)
}

func TestReportCompareAndStatsCmd(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	base := scoreID(t, w, preselectedJSON)
	head := scoreID(t, w, `[]`)

	out, err := w.run(t, "", "report", "compare", base, head)
	require.NoError(t, err)
	assert.Contains(t, out, "75 -> 100 (+25)")
	assert.Contains(t, out, "status: Non-Compliant -> Compliant")
	assert.Contains(t, out, "resolved: ")

	out, err = w.run(t, "", "report", "compare", base, head, "--json")
	require.NoError(t, err)
	var diff struct {
		Delta    int      `json:"delta"`
		Resolved []string `json:"resolved"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &diff))
	assert.Equal(t, 25, diff.Delta)
	assert.Len(t, diff.Resolved, 1)

	out, err = w.run(t, "", "report", "stats", "https://example.com/")
	require.NoError(t, err)
	assert.Contains(t, out, "example.com")
	assert.Contains(t, out, "+25")
	assert.Contains(t, out, "50%")

	_, err = w.run(t, "", "report", "stats", "never.example")
	assert.Error(t, err)
}

func TestReportPruneCmd(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	scoreID(t, w, preselectedJSON)

	out, err := w.run(t, "", "report", "prune", "--older-than", "1h")
	require.NoError(t, err)
	assert.Equal(t, "deleted 0 audit(s)\n", out)

	_, err = w.run(t, "", "report", "prune", "--older-than", "0s")
	assert.Error(t, err)
}

func TestServe_GracefulShutdown(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hs := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, hs, ln, logging.Nop()) }()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestCheckThreshold(t *testing.T) {
	t.Parallel()
	recs := []*model.AuditRecord{
		{Target: "a.example", TrustScore: 90},
		{Target: "b.example", TrustScore: 40},
	}
	assert.NoError(t, checkThreshold(recs, 0))
	assert.NoError(t, checkThreshold(recs, 40))

	err := checkThreshold(recs, 80)
	require.ErrorIs(t, err, ErrBelowThreshold)
	assert.Contains(t, err.Error(), "b.example (40)")
	assert.NotContains(t, err.Error(), "a.example")
}
