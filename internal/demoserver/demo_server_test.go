package demoserver_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/darklens/internal/demoserver"
	"github.com/raysh454/darklens/internal/logging"
)

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	res, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(body)
}

func post(t *testing.T, srv *httptest.Server, path string, form url.Values) int {
	t.Helper()
	res, err := http.PostForm(srv.URL+path, form)
	require.NoError(t, err)
	res.Body.Close()
	return res.StatusCode
}

func TestDemoServer_SwitchVersion(t *testing.T) {
	ds := demoserver.NewDemoServer(demoserver.DefaultConfig(), logging.Nop())
	srv := httptest.NewServer(ds.Handler())
	defer srv.Close()

	dark, _ := demoserver.FixtureHTML("/shop", demoserver.VersionDark)
	fair, _ := demoserver.FixtureHTML("/shop", demoserver.VersionFair)
	require.NotEqual(t, dark, fair)

	code, body := get(t, srv, "/shop")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, dark, body)

	assert.Equal(t, http.StatusOK, post(t, srv, "/demo/set-version", url.Values{"path": {"/shop"}, "version": {"2"}}))
	_, body = get(t, srv, "/shop")
	assert.Equal(t, fair, body)

	v, ok := ds.Version("/shop")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestDemoServer_SetVersionErrors(t *testing.T) {
	srv := httptest.NewServer(demoserver.NewDemoServer(demoserver.DefaultConfig(), nil).Handler())
	defer srv.Close()

	assert.Equal(t, http.StatusBadRequest, post(t, srv, "/demo/set-version", url.Values{"path": {"/shop"}, "version": {"x"}}))
	assert.Equal(t, http.StatusNotFound, post(t, srv, "/demo/set-version", url.Values{"path": {"/nope"}, "version": {"2"}}))

	code, _ := get(t, srv, "/demo/set-version")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestDemoServer_BumpAndReset(t *testing.T) {
	ds := demoserver.NewDemoServer(demoserver.DefaultConfig(), nil)
	srv := httptest.NewServer(ds.Handler())
	defer srv.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(t, srv, "/demo/bump-all", nil))
	}
	v, _ := ds.Version("/")
	assert.Equal(t, demoserver.VersionFair, v, "bump is capped at the newest version")

	assert.Equal(t, http.StatusOK, post(t, srv, "/demo/reset", nil))
	v, _ = ds.Version("/")
	assert.Equal(t, demoserver.VersionDark, v)
}

func TestDemoServer_GetVersions(t *testing.T) {
	srv := httptest.NewServer(demoserver.NewDemoServer(demoserver.DefaultConfig(), nil).Handler())
	defer srv.Close()

	_, body := get(t, srv, "/demo/get-versions")
	var pages []struct {
		Path              string   `json:"path"`
		Patterns          []string `json:"patterns"`
		CurrentVersion    int      `json:"current_version"`
		AvailableVersions []int    `json:"available_versions"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &pages))
	require.Len(t, pages, 3)
	assert.Equal(t, "/", pages[0].Path)
	assert.Len(t, pages[0].Patterns, 7)
	assert.Equal(t, []int{1, 2}, pages[0].AvailableVersions)
}

func TestDemoServer_ControlPanelAndUnknownPath(t *testing.T) {
	srv := httptest.NewServer(demoserver.NewDemoServer(demoserver.DefaultConfig(), nil).Handler())
	defer srv.Close()

	code, body := get(t, srv, "/demo/control")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, strings.Contains(body, "/settings"))

	code, _ = get(t, srv, "/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDemoServer_ControlPanelForms(t *testing.T) {
	ds := demoserver.NewDemoServer(demoserver.DefaultConfig(), nil)
	srv := httptest.NewServer(ds.Handler())
	defer srv.Close()

	_, body := get(t, srv, "/demo/control")
	assert.Contains(t, body, "darklens audit http://localhost:9999/shop")
	assert.Contains(t, body, "preselected_invasive_default")
	assert.Equal(t, 3, strings.Count(body, "Serve fair"))

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	res, err := client.PostForm(srv.URL+"/demo/set-version", url.Values{
		"path": {"/shop"}, "version": {"2"}, "return": {"/demo/control"},
	})
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/demo/control", res.Header.Get("Location"))

	v, _ := ds.Version("/shop")
	assert.Equal(t, demoserver.VersionFair, v)
	_, body = get(t, srv, "/demo/control")
	assert.Equal(t, 1, strings.Count(body, "Serve dark"))

	// any other return target gets the JSON answer
	res, err = client.PostForm(srv.URL+"/demo/reset", url.Values{"return": {"https://elsewhere.example"}})
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	v, _ = ds.Version("/shop")
	assert.Equal(t, demoserver.VersionDark, v)
}

func TestFixtureHTML_Unknown(t *testing.T) {
	_, ok := demoserver.FixtureHTML("/nope", 1)
	assert.False(t, ok)
	_, ok = demoserver.FixtureHTML("/", 9)
	assert.False(t, ok)
}
