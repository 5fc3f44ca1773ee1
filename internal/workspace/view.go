package workspace

import (
	"slices"

	"github.com/starford/folio/internal/models"
)

// ArticleView is the representation of a working-set article returned to callers.
type ArticleView struct {
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	PublishTime   string   `json:"isoPubtime"`
	Tags          []string `json:"tags"`
	Source        *string  `json:"source,omitempty"`
	RenderedBrief string   `json:"renderedBrief,omitempty"`
	Loaded        bool     `json:"loaded"`
	Modified      bool     `json:"modified"`
	Removed       bool     `json:"removed"`
	New           bool     `json:"new"`
}

func viewOf(e *models.Entry, withSource bool) ArticleView {
	v := ArticleView{
		Name:          e.Name,
		Title:         e.Title,
		PublishTime:   e.PublishTime,
		Tags:          slices.Clone(e.Tags),
		RenderedBrief: e.RenderedBrief,
		Loaded:        e.Loaded,
		Modified:      e.Modified(),
		Removed:       e.Removed,
		New:           !e.HasBaseline(),
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if withSource && e.Loaded {
		src := e.Source
		v.Source = &src
	}
	return v
}
