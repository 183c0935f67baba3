package app

import (
	"regexp"
	"strings"
)

var externalAnchor = regexp.MustCompile(`<a href="(https?://[^"]+)"`)

// decorateExternalLinks opens off-site links in a new tab without leaking the opener.
func decorateExternalLinks(content, siteURL string) string {
	return externalAnchor.ReplaceAllStringFunc(content, func(match string) string {
		sub := externalAnchor.FindStringSubmatch(match)
		if len(sub) != 2 {
			return match
		}
		href := sub[1]
		if isInternalURL(href, siteURL) {
			return match
		}
		return `<a target="_blank" rel="noopener noreferrer" href="` + href + `"`
	})
}

func isInternalURL(href, siteURL string) bool {
	if siteURL == "" {
		return false
	}
	return href == siteURL || strings.HasPrefix(href, siteURL+"/")
}
