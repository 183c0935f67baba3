package app

import "strings"

// RobotsRule is one user-agent block of robots.txt.
type RobotsRule struct {
	UserAgent string
	Allow     []string
	Disallow  []string
}

// Robots is the full robots.txt directive set.
type Robots struct {
	Rules   []RobotsRule
	Sitemap string
}

// BuildRobots blocks all crawling on staging. Elsewhere it allows everything
// except API and build-internal paths and advertises the sitemap.
func BuildRobots(cfg Config) Robots {
	if cfg.IsStaging() {
		return Robots{
			Rules: []RobotsRule{{UserAgent: "*", Disallow: []string{"/"}}},
		}
	}

	return Robots{
		Rules: []RobotsRule{{
			UserAgent: "*",
			Allow:     []string{"/"},
			Disallow:  []string{"/api/", assetPrefix},
		}},
		Sitemap: cfg.SiteURL + "/sitemap.xml",
	}
}

// String renders the directives in robots.txt syntax.
func (r Robots) String() string {
	var b strings.Builder
	for i, rule := range r.Rules {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("User-Agent: " + rule.UserAgent + "\n")
		for _, allow := range rule.Allow {
			b.WriteString("Allow: " + allow + "\n")
		}
		for _, disallow := range rule.Disallow {
			b.WriteString("Disallow: " + disallow + "\n")
		}
	}
	if r.Sitemap != "" {
		b.WriteString("\nSitemap: " + r.Sitemap + "\n")
	}
	return b.String()
}
