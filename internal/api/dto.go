package api

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/workspace"
)

// ArticleView is the article response type (aliased from the domain layer).
type ArticleView = workspace.ArticleView

// StatusResponse is the session status (aliased from the domain layer).
type StatusResponse = workspace.Status

// ArticleListResponse wraps article listings.
type ArticleListResponse struct {
	Articles []ArticleView `json:"articles"`
	Total    int           `json:"total" example:"42"`
}

// CreateArticleRequest is the request body for creating an article.
type CreateArticleRequest struct {
	Name        string   `json:"name" example:"hello-world"`
	Title       string   `json:"title" example:"Hello"`
	PublishTime string   `json:"isoPubtime" example:"2024-01-01T00:00:00.000Z"`
	Tags        []string `json:"tags"`
	Source      string   `json:"source" example:"# Hello\nWorld"`
}

// Validate checks the request fields.
func (r CreateArticleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.PublishTime, validation.By(isoTime)),
		validation.Field(&r.Tags, validation.Each(validation.Required)),
	)
}

// UpdateArticleRequest is the request body for patching an article. Absent
// fields are left unchanged.
type UpdateArticleRequest struct {
	Title       *string   `json:"title,omitempty"`
	PublishTime *string   `json:"isoPubtime,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Source      *string   `json:"source,omitempty"`
}

// Validate checks the request fields.
func (r UpdateArticleRequest) Validate() error {
	if r.Title == nil && r.PublishTime == nil && r.Tags == nil && r.Source == nil {
		return errors.New("at least one field is required")
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.PublishTime, validation.By(isoTime)),
		validation.Field(&r.Tags, validation.By(func(v interface{}) error {
			tags, _ := v.(*[]string)
			if tags == nil {
				return nil
			}
			return validation.Validate(*tags, validation.Each(validation.Required))
		})),
	)
}

// SaveRequest is the request body for committing pending changes.
type SaveRequest struct {
	Message string `json:"message" example:"Publish hello-world"`
}

// Validate checks the request fields.
func (r SaveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Length(0, 1000)),
	)
}

// isoTime accepts an empty value or an RFC 3339 timestamp.
func isoTime(v interface{}) error {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case *string:
		if t == nil {
			return nil
		}
		s = *t
	}
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, s); err != nil {
		return errors.New("must be an ISO-8601 timestamp")
	}
	return nil
}
