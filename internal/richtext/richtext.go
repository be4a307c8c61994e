// Package richtext turns the CMS HTML used by announcement and guide
// bodies into markdown, and renders markdown for the terminal.
package richtext

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// HTMLToMarkdown converts an HTML fragment to simplified markdown.
// Unknown elements contribute their text; chrome elements (script,
// style, nav) are dropped entirely.
func HTMLToMarkdown(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var sb strings.Builder
	extractText(doc, &sb, 0)

	return cleanMarkdown(sb.String()), nil
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 50 {
		return // Prevent excessive recursion
	}

	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header":
			return
		case "h1":
			sb.WriteString("\n\n# ")
		case "h2":
			sb.WriteString("\n\n## ")
		case "h3":
			sb.WriteString("\n\n### ")
		case "h4":
			sb.WriteString("\n\n#### ")
		case "h5":
			sb.WriteString("\n\n##### ")
		case "h6":
			sb.WriteString("\n\n###### ")
		case "p", "div":
			sb.WriteString("\n\n")
		case "br":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		case "code":
			sb.WriteString("`")
		case "pre":
			sb.WriteString("\n\n```\n")
		case "strong", "b":
			sb.WriteString("**")
		case "em", "i":
			sb.WriteString("*")
		case "a":
			href := getAttr(n, "href")
			if href != "" && !strings.HasPrefix(href, "#") {
				sb.WriteString("[")
			}
		case "img":
			alt := getAttr(n, "alt")
			if alt != "" {
				sb.WriteString(fmt.Sprintf("[Image: %s]", alt))
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			sb.WriteString("\n\n")
		case "code":
			sb.WriteString("`")
		case "pre":
			sb.WriteString("\n```\n\n")
		case "strong", "b":
			sb.WriteString("**")
		case "em", "i":
			sb.WriteString("*")
		case "a":
			href := getAttr(n, "href")
			if href != "" && !strings.HasPrefix(href, "#") {
				sb.WriteString(fmt.Sprintf("](%s)", href))
			}
		}
	}
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// cleanMarkdown removes excessive whitespace from the converted text.
func cleanMarkdown(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")

	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Renderer renders markdown for a terminal of a given width.
type Renderer struct {
	renderer *glamour.TermRenderer
	width    int
}

// NewRenderer builds a renderer for the given wrap width. A failed
// glamour initialization leaves a pass-through renderer rather than
// an error; body text still displays, just unstyled.
func NewRenderer(width int) *Renderer {
	if width < 20 {
		width = 20
	}
	r := &Renderer{width: width}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.renderer = renderer
	}
	return r
}

// SetWidth rebuilds the renderer for a new wrap width. No-op when the
// width is unchanged.
func (r *Renderer) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == r.width {
		return
	}
	r.width = width
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		r.renderer = renderer
	}
}

// Render renders markdown with panic recovery. Glamour can panic on
// malformed input; the raw text comes back instead.
func (r *Renderer) Render(content string) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			result = content
		}
	}()

	if r.renderer != nil && content != "" {
		rendered, err := r.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

// RenderHTML converts an HTML fragment to markdown and renders it.
func (r *Renderer) RenderHTML(htmlContent string) string {
	markdown, err := HTMLToMarkdown(htmlContent)
	if err != nil {
		return htmlContent
	}
	return r.Render(markdown)
}
