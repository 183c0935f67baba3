package app

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// assetPrefix is the build-internal path that static assets are served from.
const assetPrefix = "/_next/"

// Server wires handlers, templates, and external dependencies together.
type Server struct {
	cfg       Config
	manifest  Manifest
	content   fs.FS
	pages     *PageRenderer
	ledgers   *LedgerClient
	templates *template.Template
	logger    *zap.Logger
	now       func() time.Time
	mux       *http.ServeMux
	handler   http.Handler
}

// NewServer constructs an HTTP handler ready to serve documentation requests.
func NewServer(cfg Config, content fs.FS, ledgers *LedgerClient, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	manifest, err := LoadManifest()
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("base").ParseFS(templateFS,
		"templates/partials.gohtml",
		"templates/page.gohtml",
		"templates/notfound.gohtml",
		"templates/ledgers.gohtml",
	)
	if err != nil {
		return nil, err
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:       cfg,
		manifest:  manifest,
		content:   content,
		pages:     NewPageRenderer(content, cfg.SiteURL),
		ledgers:   ledgers,
		templates: tmpl,
		logger:    logger,
		now:       time.Now,
		mux:       http.NewServeMux(),
	}

	srv.mux.HandleFunc("/", srv.handlePage)
	srv.mux.HandleFunc("/sitemap.xml", srv.handleSitemap)
	srv.mux.HandleFunc("/robots.txt", srv.handleRobots)
	srv.mux.HandleFunc("/healthz", srv.handleHealth)
	srv.mux.Handle(assetPrefix+"static/", http.StripPrefix(assetPrefix+"static/", http.FileServer(http.FS(static))))

	srv.handler = requestLogger(logger, robotsHeader(cfg, srv.mux))

	return srv, nil
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	page, err := s.pages.Render(r.URL.Path)
	if errors.Is(err, ErrPageNotFound) {
		s.renderNotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("render page", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	content := page.Content
	if page.HasLedgers {
		content = strings.Replace(content, ledgersMarker, s.renderLedgers(r), 1)
	}

	title := page.Title
	if title == "" {
		title = s.manifest.Name
	}

	var guides []Guide
	if page.Path == "/" {
		guides = s.manifest.Guides
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Title    string
		SiteName string
		Path     string
		Content  template.HTML
		Guides   []Guide
	}{
		Title:    title,
		SiteName: s.manifest.Name,
		Path:     page.Path,
		Content:  template.HTML(content),
		Guides:   guides,
	}
	if err := s.templates.ExecuteTemplate(w, "page.gohtml", data); err != nil {
		s.logger.Error("render page template", zap.String("path", page.Path), zap.Error(err))
	}
}

// renderLedgers fetches once and renders the table or its error/empty panel.
// Fetch failures never escape to the page.
func (s *Server) renderLedgers(r *http.Request) string {
	var view LedgerView
	if s.ledgers == nil {
		view = BuildLedgerView(nil, errors.New(genericLedgerError))
	} else {
		records, err := s.ledgers.FetchLedgers(r.Context())
		if err != nil {
			s.logger.Warn("fetch ledgers", zap.Error(err))
		}
		view = BuildLedgerView(records, err)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "ledgers", view); err != nil {
		s.logger.Error("render ledgers", zap.Error(err))
		return ""
	}
	return buf.String()
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	data := struct {
		Title    string
		SiteName string
		Path     string
	}{
		Title:    "Page not found",
		SiteName: s.manifest.Name,
		Path:     r.URL.Path,
	}
	if err := s.templates.ExecuteTemplate(w, "notfound.gohtml", data); err != nil {
		s.logger.Error("render not found", zap.Error(err))
	}
}

func (s *Server) sitemapEntries() []SitemapEntry {
	if s.cfg.StaticSitemap {
		return StaticSitemap(s.cfg, s.manifest.Pages, s.now)
	}
	return BuildSitemap(s.cfg, s.content, s.now)
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	body, err := MarshalSitemapXML(s.sitemapEntries())
	if err != nil {
		s.logger.Error("marshal sitemap", zap.Error(err))
		http.Error(w, "failed to build sitemap", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("write sitemap", zap.Error(err))
	}
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(BuildRobots(s.cfg).String())); err != nil {
		s.logger.Debug("write robots", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
