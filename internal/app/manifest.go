package app

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Guide is a featured link shown on the home page.
type Guide struct {
	Href        string `yaml:"href"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Manifest describes the fixed parts of the site bundled with the binary.
type Manifest struct {
	Name   string   `yaml:"name"`
	Guides []Guide  `yaml:"guides"`
	Pages  []string `yaml:"pages"`
}

// LoadManifest parses the embedded site.yaml.
func LoadManifest() (Manifest, error) {
	return ParseManifest(siteManifest)
}

// ParseManifest decodes and validates a site manifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse site manifest: %w", err)
	}
	if m.Name == "" {
		return Manifest{}, fmt.Errorf("site manifest missing name")
	}
	for _, g := range m.Guides {
		if !strings.HasPrefix(g.Href, "/") {
			return Manifest{}, fmt.Errorf("guide %q href %q must start with /", g.Name, g.Href)
		}
	}
	for _, p := range m.Pages {
		if !strings.HasPrefix(p, "/") {
			return Manifest{}, fmt.Errorf("page path %q must start with /", p)
		}
	}
	return m, nil
}
