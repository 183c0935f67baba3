package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func siteContent() fstest.MapFS {
	return fstest.MapFS{
		"page.md":          {Data: []byte("# API Documentation\n\nWelcome.\n"), ModTime: rootModified},
		"tokens/page.md":   {Data: []byte("# Supported Tokens\n\n<!-- ledgers-table -->\n"), ModTime: sdkModified},
		"webhooks/page.md": {Data: []byte("# Webhooks\n"), ModTime: hookModified},
	}
}

func newTestServer(t *testing.T, env string, api *httptest.Server) *Server {
	t.Helper()
	cfg := Config{SiteURL: "https://docs.icpay.org", AppEnv: env, LedgerRevalidate: time.Hour}

	var ledgers *LedgerClient
	if api != nil {
		cfg.APIBaseURL = api.URL
		ledgers = NewLedgerClient(cfg, api.Client(), NewMemoryCache(), zaptest.NewLogger(t))
	}

	srv, err := NewServer(cfg, siteContent(), ledgers, zaptest.NewLogger(t))
	require.NoError(t, err)
	srv.now = clock
	return srv
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServerLedgerTableUpstreamFailure(t *testing.T) {
	_, api := newLedgerAPI(t, http.StatusInternalServerError, `oops`)
	srv := newTestServer(t, "production", api)

	rec := get(t, srv, "/tokens")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Failed to load tokens")
	assert.Contains(t, body, "500")
	assert.NotContains(t, body, "<table>")
	assert.NotContains(t, body, ledgersMarker)
}

func TestServerLedgerTableEmpty(t *testing.T) {
	_, api := newLedgerAPI(t, http.StatusOK, `[]`)
	srv := newTestServer(t, "production", api)

	rec := get(t, srv, "/tokens")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "No tokens available at the moment.")
	assert.NotContains(t, body, "<table>")
}

func TestServerLedgerTableGroupsByChain(t *testing.T) {
	_, api := newLedgerAPI(t, http.StatusOK, twoLedgers)
	srv := newTestServer(t, "production", api)

	rec := get(t, srv, "/tokens")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "<section>"))
	bitcoin := strings.Index(body, "<h3>Bitcoin")
	ic := strings.Index(body, "<h3>Internet Computer")
	require.NotEqual(t, -1, bitcoin)
	require.NotEqual(t, -1, ic)
	assert.Less(t, bitcoin, ic)
	assert.Contains(t, body, `<span class="chain-type">IC</span>`)
	assert.Contains(t, body, "<code>—</code>")
	assert.Contains(t, body, "ryjl3-tyaaa-aaaaa-aaaba-cai")
}

func TestServerPagesWithoutMarkerSkipFetch(t *testing.T) {
	api, apiSrv := newLedgerAPI(t, http.StatusOK, twoLedgers)
	srv := newTestServer(t, "production", apiSrv)

	rec := get(t, srv, "/webhooks")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Webhooks - ICPay Docs</title>")
	assert.Equal(t, int32(0), api.hits.Load())
}

func TestServerHomeRendersGuides(t *testing.T) {
	srv := newTestServer(t, "production", nil)

	rec := get(t, srv, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "API Documentation")
	assert.Contains(t, body, "Public SDK")
	assert.Contains(t, body, `href="/webhooks"`)
}

func TestServerNotFoundAndMethods(t *testing.T) {
	srv := newTestServer(t, "production", nil)

	rec := get(t, srv, "/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerStagingHeaders(t *testing.T) {
	staging := newTestServer(t, "staging", nil)
	for _, target := range []string{"/", "/robots.txt", "/missing", "/healthz"} {
		rec := get(t, staging, target)
		assert.Equal(t, "noindex, nofollow", rec.Header().Get("X-Robots-Tag"), target)
	}

	prod := newTestServer(t, "production", nil)
	rec := get(t, prod, "/")
	assert.Empty(t, rec.Header().Get("X-Robots-Tag"))
}

func TestServerRobots(t *testing.T) {
	rec := get(t, newTestServer(t, "staging", nil), "/robots.txt")
	assert.Equal(t, "User-Agent: *\nDisallow: /\n", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = get(t, newTestServer(t, "production", nil), "/robots.txt")
	assert.Contains(t, rec.Body.String(), "Disallow: /api/")
	assert.Contains(t, rec.Body.String(), "Sitemap: https://docs.icpay.org/sitemap.xml")
}

func TestServerSitemap(t *testing.T) {
	rec := get(t, newTestServer(t, "production", nil), "/sitemap.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, 3, strings.Count(body, "<url>"))
	assert.Less(t, strings.Index(body, "<loc>https://docs.icpay.org/</loc>"), strings.Index(body, "/tokens</loc>"))

	rec = get(t, newTestServer(t, "staging", nil), "/sitemap.xml")
	assert.NotContains(t, rec.Body.String(), "<url>")
}

func TestServerStaticSitemap(t *testing.T) {
	srv := newTestServer(t, "production", nil)
	srv.cfg.StaticSitemap = true

	rec := get(t, srv, "/sitemap.xml")
	assert.Equal(t, len(srv.manifest.Pages), strings.Count(rec.Body.String(), "<url>"))
	assert.Contains(t, rec.Body.String(), "<lastmod>2026-10-19T12:00:00Z</lastmod>")
}

func TestServerStaticAssetsAndHealth(t *testing.T) {
	srv := newTestServer(t, "production", nil)

	rec := get(t, srv, "/_next/static/site.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".prose")

	rec = get(t, srv, "/healthz")
	assert.Equal(t, "ok", rec.Body.String())
}
