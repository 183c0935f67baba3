package app

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

// ledgersMarker is replaced with the live ledger table when a page contains it.
const ledgersMarker = "<!-- ledgers-table -->"

// ErrPageNotFound signals that no page.md exists for a request path.
var ErrPageNotFound = errors.New("page not found")

// Page is a rendered documentation page.
type Page struct {
	Path       string
	Title      string
	Content    string
	HasLedgers bool
}

// PageRenderer turns page.md files into HTML fragments.
type PageRenderer struct {
	content fs.FS
	md      goldmark.Markdown
	siteURL string
}

func NewPageRenderer(content fs.FS, siteURL string) *PageRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		// docs content is trusted and embeds raw HTML markers
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	return &PageRenderer{content: content, md: md, siteURL: siteURL}
}

// Render loads and converts the page for a request path.
func (r *PageRenderer) Render(urlPath string) (*Page, error) {
	file, err := ResolvePageFile(urlPath)
	if err != nil {
		return nil, ErrPageNotFound
	}

	source, err := fs.ReadFile(r.content, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("read %s: %w", file, err)
	}

	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", file, err)
	}

	content := decorateExternalLinks(buf.String(), r.siteURL)
	return &Page{
		Path:       pagePathForFile(file),
		Title:      ExtractTitle(content),
		Content:    content,
		HasLedgers: strings.Contains(content, ledgersMarker),
	}, nil
}

// ResolvePageFile maps "/sdk" to "sdk/page.md" and "/" to "page.md".
func ResolvePageFile(urlPath string) (string, error) {
	if strings.ContainsAny(urlPath, "\\\x00") || strings.Contains(urlPath, "..") {
		return "", errors.New("page path contains invalid characters")
	}

	trimmed := strings.Trim(urlPath, "/")
	if trimmed == "" {
		return pageFile, nil
	}

	cleaned := path.Clean(trimmed)
	file := cleaned + "/" + pageFile
	if !fs.ValidPath(file) {
		return "", errors.New("page path is not valid")
	}
	return file, nil
}

// ExtractTitle returns the text of the first <h1>, or "" when there is none.
func ExtractTitle(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var h1 *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if h1 != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "h1" {
			h1 = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	if h1 == nil {
		return ""
	}

	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(h1)
	return strings.Join(strings.Fields(b.String()), " ")
}
