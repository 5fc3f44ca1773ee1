// Package render turns markdown article sources into HTML fragments and pages.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

// MoreMarker separates the brief from the rest of an article source.
const MoreMarker = "<!--more-->"

// DefaultPage is used when the repository carries no article template.
const DefaultPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body>
<article>
{{.Body}}
</article>
</body>
</html>
`

// PageData is the data passed to the article page template.
type PageData struct {
	Name        string
	Title       string
	PublishTime string
	Tags        []string
	Brief       template.HTML
	Body        template.HTML
}

// Renderer renders markdown with GitHub-flavoured extensions and wraps the
// result in a page template.
type Renderer struct {
	md   goldmark.Markdown
	page *template.Template
}

// New parses page as an html/template. An empty page selects DefaultPage.
func New(page string) (*Renderer, error) {
	if strings.TrimSpace(page) == "" {
		page = DefaultPage
	}
	tmpl, err := template.New("article").Parse(page)
	if err != nil {
		return nil, fmt.Errorf("render: parse page template: %w: %w", apperr.ErrRender, err)
	}
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		page: tmpl,
	}, nil
}

// Render converts source into its brief, body and full-page HTML. The page
// sees no article metadata; use RenderArticle when it is known.
func (r *Renderer) Render(source string) (models.Rendered, error) {
	return r.RenderArticle(models.Article{Source: source, Loaded: true})
}

// RenderArticle renders a.Source and executes the page template with the
// article's name, title, publish time and tags.
func (r *Renderer) RenderArticle(a models.Article) (models.Rendered, error) {
	source := a.Source
	body, err := r.markdown(strings.Replace(source, MoreMarker, "", 1))
	if err != nil {
		return models.Rendered{}, err
	}
	brief, err := r.markdown(briefSource(source))
	if err != nil {
		return models.Rendered{}, err
	}
	var full bytes.Buffer
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	if err := r.page.Execute(&full, PageData{
		Name:        a.Name,
		Title:       a.Title,
		PublishTime: a.PublishTime,
		Tags:        tags,
		Brief:       template.HTML(brief), //nolint:gosec // produced by the markdown renderer
		Body:        template.HTML(body),  //nolint:gosec
	}); err != nil {
		return models.Rendered{}, fmt.Errorf("render: execute page template: %w", err)
	}
	return models.Rendered{Brief: brief, Body: body, Full: full.String()}, nil
}

func (r *Renderer) markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return buf.String(), nil
}

// briefSource returns the text before the more marker, or the first block
// (up to the first blank line) when there is no marker.
func briefSource(source string) string {
	if i := strings.Index(source, MoreMarker); i >= 0 {
		return source[:i]
	}
	trimmed := strings.TrimLeft(source, "\r\n")
	normalized := strings.ReplaceAll(trimmed, "\r\n", "\n")
	if i := strings.Index(normalized, "\n\n"); i >= 0 {
		return normalized[:i]
	}
	return normalized
}
