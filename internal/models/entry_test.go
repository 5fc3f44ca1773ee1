package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func loadedEntry(t *testing.T) *Entry {
	t.Helper()
	a := FromBrief(Brief{Name: "a", Title: "A", PublishTime: "2024-01-02T03:04:05.000Z", Tags: []string{"x"}})
	e := TrackedEntry(a)
	e.SetSource("# hello")
	e.CaptureSource()
	return e
}

func TestNewEntryIsModified(t *testing.T) {
	e := NewEntry(NewArticle("fresh"))
	if !e.Modified() {
		t.Error("new entry without baseline should be modified")
	}
	if e.HasBaseline() {
		t.Error("new entry should have no baseline")
	}
	if e.PriorName() != "" {
		t.Errorf("prior name = %q, want empty", e.PriorName())
	}
	if !e.Loaded {
		t.Error("new article source should count as loaded")
	}
}

func TestTrackedEntryUnmodified(t *testing.T) {
	e := TrackedEntry(FromBrief(Brief{Name: "a", Tags: []string{"x"}}))
	if e.Modified() {
		t.Error("freshly tracked entry should not be modified")
	}
	if e.Loaded {
		t.Error("entry hydrated from a brief should be unloaded")
	}
}

func TestModifiedDetection(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(e *Entry)
	}{
		{"title", func(e *Entry) { e.Title = "B" }},
		{"publish time", func(e *Entry) { e.PublishTime = "2025-01-01T00:00:00.000Z" }},
		{"add tag", func(e *Entry) { e.Tags = append(e.Tags, "y") }},
		{"remove tag", func(e *Entry) { e.Tags = e.Tags[:0] }},
		{"reorder tag", func(e *Entry) { e.Tags = []string{"y", "x"}; e.Capture(); e.Tags = []string{"x", "y"} }},
		{"source", func(e *Entry) { e.Source = "# changed" }},
		{"name", func(e *Entry) { e.Name = "b" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := loadedEntry(t)
			if e.Modified() {
				t.Fatal("entry should start unmodified")
			}
			tc.mutate(e)
			if !e.Modified() {
				t.Fatal("mutation should flip modified")
			}
			e.Revert()
			if e.Modified() {
				t.Error("revert should flip modified back")
			}
		})
	}
}

func TestManualRevertClearsModified(t *testing.T) {
	e := loadedEntry(t)
	e.Tags = append(e.Tags, "y")
	if !e.Modified() {
		t.Fatal("adding a tag should flip modified")
	}
	e.Tags = e.Tags[:1]
	if e.Modified() {
		t.Error("removing the tag again should restore unmodified")
	}
}

func TestBaselineIsDeepCopy(t *testing.T) {
	e := loadedEntry(t)
	e.Tags[0] = "mutated"
	if !e.Modified() {
		t.Fatal("in-place tag mutation should be detected")
	}
	b, ok := e.Baseline()
	if !ok {
		t.Fatal("expected baseline")
	}
	if b.Tags[0] != "x" {
		t.Errorf("baseline tag = %q, want x", b.Tags[0])
	}
	b.Tags[0] = "other"
	b2, _ := e.Baseline()
	if b2.Tags[0] != "x" {
		t.Error("Baseline() should return a copy")
	}
}

func TestCaptureSourceKeepsOtherEdits(t *testing.T) {
	e := TrackedEntry(FromBrief(Brief{Name: "a", Title: "A"}))
	e.SetSource("body")
	e.CaptureSource()
	if e.Modified() {
		t.Fatal("loading the source should not count as a modification")
	}
	b, _ := e.Baseline()
	if !b.Loaded || b.Source != "body" {
		t.Errorf("baseline source = %q loaded=%v", b.Source, b.Loaded)
	}
}

func TestRevertWithoutBaselinePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewEntry(NewArticle("x")).Revert()
}

func TestCaptureSourceWithoutBaselinePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewEntry(NewArticle("x")).CaptureSource()
}

func TestPendingAndPrune(t *testing.T) {
	keep := loadedEntry(t)
	gone := loadedEntry(t)
	gone.Name = "gone"
	gone.Capture()
	gone.Removed = true

	if keep.Pending() {
		t.Error("unmodified entry should not be pending")
	}
	if !gone.Pending() {
		t.Error("removed entry should be pending")
	}
	out := Prune([]*Entry{keep, gone})
	if len(out) != 1 || out[0] != keep {
		t.Errorf("prune = %v", out)
	}
	if Find(out, "gone") != nil {
		t.Error("pruned entry still found")
	}
	if Find(out, "a") != keep {
		t.Error("Find should return the kept entry")
	}
}

func TestBriefJSONShape(t *testing.T) {
	e := loadedEntry(t)
	e.RenderedBrief = "<p>hi</p>"
	data, err := json.Marshal(e.Brief())
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"name":          "a",
		"isoPubtime":    "2024-01-02T03:04:05.000Z",
		"renderedBrief": "<p>hi</p>",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("brief %s = %v, want %v", k, got[k], v)
		}
	}
	if tags, _ := got["tags"].([]any); len(tags) != 1 || tags[0] != "x" {
		t.Errorf("brief tags = %v, want [x]", got["tags"])
	}
	for _, k := range []string{"source", "removed", "loaded"} {
		if _, ok := got[k]; ok {
			t.Errorf("brief JSON leaks %q: %s", k, data)
		}
	}
}

func TestNewArticleDefaults(t *testing.T) {
	a := NewArticle("n")
	if a.PublishTime == "" || !strings.HasSuffix(a.PublishTime, "Z") {
		t.Errorf("publish time = %q", a.PublishTime)
	}
	if a.Tags == nil {
		t.Error("tags should be non-nil")
	}
}
