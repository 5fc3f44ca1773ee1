// Package models defines the domain types for folio.
package models

import (
	"slices"
	"time"
)

// PublishTimeLayout is the ISO-8601 layout used for new articles.
const PublishTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Article is the in-memory representation of one stored document.
//
// Source is meaningful only when Loaded is true. An article hydrated from the
// index has Loaded == false until its body is fetched.
type Article struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	PublishTime string   `json:"isoPubtime"`
	Tags        []string `json:"tags"`
	Source      string   `json:"source,omitempty"`
	Loaded      bool     `json:"loaded"`

	RenderedBrief string `json:"renderedBrief,omitempty"`
	RenderedBody  string `json:"-"`
	RenderedFull  string `json:"-"`
}

// Brief is the metadata-only projection of an Article stored in the index.
type Brief struct {
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	PublishTime   string   `json:"isoPubtime"`
	Tags          []string `json:"tags"`
	RenderedBrief string   `json:"renderedBrief"`
}

// Monitored is the subset of Article fields whose change marks an article as modified.
type Monitored struct {
	Name        string
	Title       string
	PublishTime string
	Tags        []string
	Source      string
	Loaded      bool
}

// NewArticle returns an empty, unsaved article. Its source is known to be empty.
func NewArticle(name string) Article {
	return Article{
		Name:        name,
		PublishTime: time.Now().UTC().Format(PublishTimeLayout),
		Tags:        []string{},
		Loaded:      true,
	}
}

// FromBrief hydrates an article whose body has not been fetched yet.
func FromBrief(b Brief) Article {
	return Article{
		Name:          b.Name,
		Title:         b.Title,
		PublishTime:   b.PublishTime,
		Tags:          cloneTags(b.Tags),
		RenderedBrief: b.RenderedBrief,
	}
}

// SetSource assigns the canonical source and marks it loaded.
func (a *Article) SetSource(s string) {
	a.Source = s
	a.Loaded = true
}

// Monitored returns a deep copy of the monitored fields.
func (a *Article) Monitored() Monitored {
	return Monitored{
		Name:        a.Name,
		Title:       a.Title,
		PublishTime: a.PublishTime,
		Tags:        cloneTags(a.Tags),
		Source:      a.Source,
		Loaded:      a.Loaded,
	}
}

func (a *Article) applyMonitored(m Monitored) {
	a.Name = m.Name
	a.Title = m.Title
	a.PublishTime = m.PublishTime
	a.Tags = cloneTags(m.Tags)
	a.Source = m.Source
	a.Loaded = m.Loaded
}

// Brief projects the article onto its index representation.
func (a *Article) Brief() Brief {
	return Brief{
		Name:          a.Name,
		Title:         a.Title,
		PublishTime:   a.PublishTime,
		Tags:          cloneTags(a.Tags),
		RenderedBrief: a.RenderedBrief,
	}
}

// Equal reports whether two snapshots hold the same values. Tags are compared element-wise.
func (m Monitored) Equal(o Monitored) bool {
	return m.Name == o.Name &&
		m.Title == o.Title &&
		m.PublishTime == o.PublishTime &&
		slices.Equal(m.Tags, o.Tags) &&
		m.Loaded == o.Loaded &&
		m.Source == o.Source
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return slices.Clone(tags)
}

// Rendered is the output of rendering one article source.
type Rendered struct {
	Brief string
	Body  string
	Full  string
}
