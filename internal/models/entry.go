package models

// Entry is an Article tracked against the baseline captured at its last
// successful load or save.
type Entry struct {
	Article

	// Removed marks the entry for exclusion from the next saved index.
	// It is never persisted.
	Removed bool

	baseline *Monitored
}

// NewEntry wraps a new article without a baseline; it reports as modified until saved.
func NewEntry(a Article) *Entry {
	return &Entry{Article: a}
}

// TrackedEntry wraps an article and captures its current state as the baseline.
func TrackedEntry(a Article) *Entry {
	e := &Entry{Article: a}
	e.Capture()
	return e
}

// Modified reports whether the entry has no baseline or differs from it.
func (e *Entry) Modified() bool {
	if e.baseline == nil {
		return true
	}
	return !e.baseline.Equal(e.Article.Monitored())
}

// HasBaseline reports whether the entry was ever loaded or saved.
func (e *Entry) HasBaseline() bool {
	return e.baseline != nil
}

// Baseline returns a copy of the baseline snapshot.
func (e *Entry) Baseline() (Monitored, bool) {
	if e.baseline == nil {
		return Monitored{}, false
	}
	b := *e.baseline
	b.Tags = cloneTags(b.Tags)
	return b, true
}

// PriorName returns the name the entry had at its baseline, or "" for a new entry.
func (e *Entry) PriorName() string {
	if e.baseline == nil {
		return ""
	}
	return e.baseline.Name
}

// Capture replaces the baseline with the current monitored fields.
func (e *Entry) Capture() {
	m := e.Article.Monitored()
	e.baseline = &m
}

// CaptureSource folds the current source into the baseline without touching
// the other monitored fields. It panics when the entry has no baseline.
func (e *Entry) CaptureSource() {
	if e.baseline == nil {
		panic("models: CaptureSource on entry without baseline")
	}
	e.baseline.Source = e.Source
	e.baseline.Loaded = e.Loaded
}

// Revert restores the monitored fields from the baseline. It panics when the
// entry has no baseline.
func (e *Entry) Revert() {
	if e.baseline == nil {
		panic("models: Revert on entry without baseline")
	}
	e.Article.applyMonitored(*e.baseline)
}

// Pending reports whether the entry takes part in the next save.
func (e *Entry) Pending() bool {
	return e.Removed || e.Modified()
}

// Prune returns the entries not flagged as removed, preserving order.
func Prune(entries []*Entry) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Removed {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the entry with the given name, or nil.
func Find(entries []*Entry, name string) *Entry {
	for _, e := range entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}
