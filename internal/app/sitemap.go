package app

import (
	"encoding/xml"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// pageFile is the filename every documentation page is stored under.
const pageFile = "page.md"

const (
	changeWeekly  = "weekly"
	changeMonthly = "monthly"
)

// SitemapEntry is a single URL published in sitemap.xml.
type SitemapEntry struct {
	URL             string
	LastModified    time.Time
	ChangeFrequency string
	Priority        float64
}

// BuildSitemap enumerates page.md files under content and derives one entry per page.
// Staging deployments publish nothing. A file whose modification time cannot be read
// is stamped with now() instead of failing the build.
func BuildSitemap(cfg Config, content fs.FS, now func() time.Time) []SitemapEntry {
	entries := []SitemapEntry{}
	if cfg.IsStaging() || content == nil {
		return entries
	}

	for _, file := range findPageFiles(content) {
		lastModified := now()
		if info, err := fs.Stat(content, file); err == nil {
			lastModified = info.ModTime()
		}
		entries = append(entries, newSitemapEntry(cfg.SiteURL, pagePathForFile(file), lastModified))
	}

	sortSitemap(cfg.SiteURL, entries)
	return entries
}

// StaticSitemap builds entries from a fixed list of page paths without touching the filesystem.
func StaticSitemap(cfg Config, paths []string, now func() time.Time) []SitemapEntry {
	entries := []SitemapEntry{}
	if cfg.IsStaging() {
		return entries
	}

	stamp := now()
	for _, p := range paths {
		entries = append(entries, newSitemapEntry(cfg.SiteURL, p, stamp))
	}

	sortSitemap(cfg.SiteURL, entries)
	return entries
}

func findPageFiles(content fs.FS) []string {
	var files []string
	_ = fs.WalkDir(content, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable directories are skipped, not fatal
			return nil
		}
		if !d.IsDir() && d.Name() == pageFile {
			files = append(files, p)
		}
		return nil
	})
	return files
}

// pagePathForFile strips the page filename from a content-relative path: "sdk/page.md" -> "/sdk".
func pagePathForFile(file string) string {
	dir := path.Dir(file)
	if dir == "." {
		return "/"
	}
	return "/" + dir
}

func newSitemapEntry(siteURL, pagePath string, lastModified time.Time) SitemapEntry {
	if pagePath == "" {
		pagePath = "/"
	}
	if !strings.HasPrefix(pagePath, "/") {
		pagePath = "/" + pagePath
	}

	if pagePath == "/" {
		return SitemapEntry{
			URL:             siteURL + "/",
			LastModified:    lastModified,
			ChangeFrequency: changeWeekly,
			Priority:        1,
		}
	}
	return SitemapEntry{
		URL:             siteURL + pagePath,
		LastModified:    lastModified,
		ChangeFrequency: changeMonthly,
		Priority:        0.6,
	}
}

// sortSitemap puts the root URL first and orders the rest byte-wise by URL.
func sortSitemap(siteURL string, entries []SitemapEntry) {
	root := siteURL + "/"
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].URL, entries[j].URL
		if a == root || b == root {
			return a == root && b != root
		}
		return a < b
	})
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// MarshalSitemapXML renders entries as a sitemaps.org urlset document.
func MarshalSitemapXML(entries []SitemapEntry) ([]byte, error) {
	set := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, 0, len(entries)),
	}
	for _, e := range entries {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        e.URL,
			LastMod:    e.LastModified.UTC().Format(time.RFC3339),
			ChangeFreq: e.ChangeFrequency,
			Priority:   strconv.FormatFloat(e.Priority, 'f', 1, 64),
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}
