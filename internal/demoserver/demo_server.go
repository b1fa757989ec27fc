package demoserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/raysh454/darklens/internal/logging"
)

// DemoServer serves consent-banner pages whose version can be switched at
// runtime, so a re-audit shows how a site's score moves.
type DemoServer struct {
	cfg      Config
	logger   logging.Logger
	pages    map[string]PageDefinition
	versions map[string]int // path -> current version
	mu       sync.RWMutex
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.InitialVersion == 0 {
		cfg.InitialVersion = VersionDark
	}
	pageMap := make(map[string]PageDefinition)
	versions := make(map[string]int)
	for _, p := range GetAllPages() {
		pageMap[p.Path] = p
		versions[p.Path] = cfg.InitialVersion
	}

	return &DemoServer{
		cfg:      cfg,
		logger:   logger.With(logging.F("component", "demoserver")),
		pages:    pageMap,
		versions: versions,
	}
}

// Handler returns the demo routes.
func (s *DemoServer) Handler() http.Handler {
	mux := http.NewServeMux()
	for path := range s.pages {
		p := path
		if p == "/" {
			mux.HandleFunc("/{$}", s.pageHandler(p))
			continue
		}
		mux.HandleFunc(p, s.pageHandler(p))
	}

	mux.HandleFunc(controlPath, s.controlPanelHandler)
	mux.HandleFunc("/demo/set-version", s.setVersionHandler)
	mux.HandleFunc("/demo/get-versions", s.getVersionsHandler)
	mux.HandleFunc("/demo/bump-all", s.bumpAllVersionsHandler)
	mux.HandleFunc("/demo/reset", s.resetVersionsHandler)
	return mux
}

// Start serves until ctx is cancelled.
func (s *DemoServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("demo server listening",
			logging.F("addr", "http://localhost"+srv.Addr),
			logging.F("control_panel", "http://localhost"+srv.Addr+"/demo/control"))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Version reports the current version of path.
func (s *DemoServer) Version(path string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[path]
	return v, ok
}

func (s *DemoServer) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		pageDef, ok := s.pages[path]
		version := s.versions[path]
		s.mu.RUnlock()

		if !ok {
			http.NotFound(w, r)
			return
		}

		// fall back to the closest lower version
		pageVersion, ok := pageDef.Versions[version]
		for v := version - 1; !ok && v >= 1; v-- {
			pageVersion, ok = pageDef.Versions[v]
		}

		for k, v := range pageVersion.Headers {
			w.Header().Set(k, v)
		}
		contentType := pageVersion.ContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pageVersion.HTML))
	}
}

func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]panelRow, 0, len(s.pages))
	for path, page := range s.pages {
		rows = append(rows, panelRow{
			Path:        path,
			Description: page.Description,
			Patterns:    page.Patterns,
			Dark:        s.versions[path] == VersionDark,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := controlPanel.Execute(w, struct {
		Rows []panelRow
		Port int
	}{rows, s.cfg.Port}); err != nil {
		s.logger.Warn("render control panel", logging.Err(err))
	}
}

type panelRow struct {
	Path        string
	Description string
	Patterns    []string
	Dark        bool
}

// respond answers a control request. Forms posted from the control panel
// carry return=/demo/control and are sent back there; API callers get JSON.
func respond(w http.ResponseWriter, r *http.Request, v any) {
	if r.FormValue("return") == controlPath {
		http.Redirect(w, r, controlPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, v)
}

func (s *DemoServer) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.FormValue("path")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, known := s.pages[path]
	if known {
		s.versions[path] = version
	}
	s.mu.Unlock()

	if !known {
		http.Error(w, "Unknown page", http.StatusNotFound)
		return
	}
	s.logger.Info("page version changed", logging.F("path", path), logging.F("version", version))

	respond(w, r, map[string]any{
		"success": true,
		"path":    path,
		"version": version,
	})
}

func (s *DemoServer) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type PageInfo struct {
		Path              string   `json:"path"`
		Description       string   `json:"description"`
		Patterns          []string `json:"patterns"`
		CurrentVersion    int      `json:"current_version"`
		AvailableVersions []int    `json:"available_versions"`
	}

	pages := make([]PageInfo, 0, len(s.pages))
	for path, pageDef := range s.pages {
		versions := make([]int, 0, len(pageDef.Versions))
		for v := range pageDef.Versions {
			versions = append(versions, v)
		}
		sort.Ints(versions)
		pages = append(pages, PageInfo{
			Path:              path,
			Description:       pageDef.Description,
			Patterns:          pageDef.Patterns,
			CurrentVersion:    s.versions[path],
			AvailableVersions: versions,
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })

	writeJSON(w, pages)
}

func (s *DemoServer) bumpAllVersionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	for path := range s.versions {
		maxV := 1
		for v := range s.pages[path].Versions {
			maxV = max(maxV, v)
		}
		s.versions[path] = min(s.versions[path]+1, maxV)
	}
	s.mu.Unlock()

	respond(w, r, map[string]any{
		"success": true,
		"message": "pages moved to their next version",
	})
}

func (s *DemoServer) resetVersionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	for path := range s.versions {
		s.versions[path] = VersionDark
	}
	s.mu.Unlock()

	respond(w, r, map[string]any{
		"success": true,
		"message": "all pages serve their dark version",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

const controlPath = "/demo/control"

var controlPanel = template.Must(template.New("control").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>darklens fixtures</title>
  <style>
    body{font-family:system-ui,sans-serif;max-width:980px;margin:2rem auto;padding:0 1rem;color:#1f2328}
    table{border-collapse:collapse;width:100%}
    th,td{text-align:left;vertical-align:top;padding:.6rem;border-bottom:1px solid #d0d7de}
    th{font-size:.8rem;text-transform:uppercase;color:#57606a}
    code,pre{background:#f6f8fa;border-radius:4px}
    pre{padding:.75rem;overflow-x:auto}
    .dark{color:#cf222e;font-weight:600}
    .fair{color:#1a7f37;font-weight:600}
    .patterns{font-size:.85rem;color:#57606a}
    form{display:inline}
    button{padding:.3rem .7rem;cursor:pointer}
  </style>
</head>
<body>
  <h1>Consent fixtures</h1>
  <p>Every page has a <span class="dark">dark</span> rendition that uses the listed
  patterns and a <span class="fair">fair</span> one that uses none. Audit a page,
  flip it, audit again and compare the two reports.</p>
  <pre>darklens audit http://localhost:{{.Port}}/shop
darklens report list --target http://localhost:{{.Port}}/shop
darklens report compare &lt;base-id&gt; &lt;head-id&gt;</pre>

  <table>
    <tr><th>Page</th><th>Fixture</th><th>Serving</th><th></th></tr>
    {{range .Rows}}
    <tr>
      <td><a href="{{.Path}}"><code>{{.Path}}</code></a></td>
      <td>{{.Description}}<div class="patterns">{{range $i, $p := .Patterns}}{{if $i}}, {{end}}{{$p}}{{end}}</div></td>
      <td>{{if .Dark}}<span class="dark">dark</span>{{else}}<span class="fair">fair</span>{{end}}</td>
      <td>
        <form method="post" action="/demo/set-version">
          <input type="hidden" name="path" value="{{.Path}}">
          <input type="hidden" name="return" value="/demo/control">
          {{if .Dark}}<button name="version" value="2">Serve fair</button>{{else}}<button name="version" value="1">Serve dark</button>{{end}}
        </form>
      </td>
    </tr>
    {{end}}
  </table>

  <p>
    <form method="post" action="/demo/reset"><input type="hidden" name="return" value="/demo/control"><button>All dark</button></form>
    <form method="post" action="/demo/bump-all"><input type="hidden" name="return" value="/demo/control"><button>All fair</button></form>
  </p>
</body>
</html>`))
