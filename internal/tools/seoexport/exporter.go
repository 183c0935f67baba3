package seoexport

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"icpaydocs/internal/app"
)

const (
	sitemapFile = "sitemap.xml"
	robotsFile  = "robots.txt"
)

// Result describes what Export wrote.
type Result struct {
	SitemapPath string
	RobotsPath  string
	Entries     []app.SitemapEntry
	Robots      app.Robots
}

// Export writes sitemap.xml and robots.txt into outDir so a static host can serve
// the same artifacts as the live server. A nil content FS selects the static page list.
func Export(cfg app.Config, content fs.FS, manifest app.Manifest, outDir string, now func() time.Time) (Result, error) {
	if now == nil {
		now = time.Now
	}

	var entries []app.SitemapEntry
	if cfg.StaticSitemap || content == nil {
		entries = app.StaticSitemap(cfg, manifest.Pages, now)
	} else {
		entries = app.BuildSitemap(cfg, content, now)
	}

	sitemap, err := app.MarshalSitemapXML(entries)
	if err != nil {
		return Result{}, err
	}

	robots := app.BuildRobots(cfg)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, err
	}

	res := Result{
		SitemapPath: filepath.Join(outDir, sitemapFile),
		RobotsPath:  filepath.Join(outDir, robotsFile),
		Entries:     entries,
		Robots:      robots,
	}

	if err := os.WriteFile(res.SitemapPath, sitemap, 0o644); err != nil {
		return Result{}, err
	}
	if err := os.WriteFile(res.RobotsPath, []byte(robots.String()), 0o644); err != nil {
		return Result{}, err
	}

	return res, nil
}
