package drafts

import (
	"slices"

	"github.com/starford/folio/internal/models"
)

// Snapshot records every modified or removed entry.
func Snapshot(entries []*models.Entry) []Record {
	var out []Record
	for _, e := range entries {
		if !e.Pending() {
			continue
		}
		r := Record{
			Name:        e.Name,
			Title:       e.Title,
			PublishTime: e.PublishTime,
			Tags:        slices.Clone(e.Tags),
			Removed:     e.Removed,
			PriorName:   e.PriorName(),
		}
		if r.Tags == nil {
			r.Tags = []string{}
		}
		if e.Loaded {
			src := e.Source
			r.Source = &src
		}
		out = append(out, r)
	}
	return out
}

// Recover applies records to a freshly loaded working set. A record whose
// prior name is still present patches that entry. A record for a name the
// working set already holds patches that entry, so the result never carries
// two entries with one name. Any other record becomes a new, unsaved entry
// appended in record order.
func Recover(entries []*models.Entry, records []Record) []*models.Entry {
	out := slices.Clone(entries)
	for _, r := range records {
		var e *models.Entry
		if r.PriorName != "" {
			e = models.Find(out, r.PriorName)
		}
		if e == nil {
			e = models.Find(out, r.Name)
		}
		if e == nil {
			a := models.NewArticle(r.Name)
			a.Loaded = false
			e = models.NewEntry(a)
			out = append(out, e)
		}
		e.Name = r.Name
		e.Title = r.Title
		e.PublishTime = r.PublishTime
		e.Tags = slices.Clone(r.Tags)
		if e.Tags == nil {
			e.Tags = []string{}
		}
		e.Removed = r.Removed
		if r.Source != nil {
			e.SetSource(*r.Source)
		}
	}
	return out
}
