package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/codec"
	"github.com/starford/folio/internal/contentstore"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/testutil"
)

func openStore(t *testing.T, c contentstore.Client) *Store {
	t.Helper()
	s, err := Open(context.Background(), c, Options{Branch: testutil.Branch, Logger: testutil.Logger()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func fixedRender(source string) (models.Rendered, error) {
	return models.Rendered{Brief: "B", Body: "body", Full: "F"}, nil
}

func entries(t *testing.T, s *Store) []*models.Entry {
	t.Helper()
	es, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	return es
}

func loadAll(t *testing.T, s *Store, es []*models.Entry) {
	t.Helper()
	for _, e := range es {
		if err := s.LoadBody(context.Background(), e); err != nil {
			t.Fatalf("LoadBody(%s): %v", e.Name, err)
		}
	}
}

func TestOpen_Available(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A", Source: "src"})
	s := openStore(t, repo)
	if !s.Available() {
		t.Fatal("expected available store")
	}
	idx, err := s.Index()
	if err != nil {
		t.Fatal(err)
	}
	if len(idx) != 1 || idx[0].Name != "a" {
		t.Errorf("index = %+v", idx)
	}
}

func TestOpen_UninitializedIsSoftFailure(t *testing.T) {
	s := openStore(t, testutil.EmptyRepo(t))
	if s.Available() {
		t.Error("repository without marker should be unavailable")
	}
	if _, err := s.Index(); !errors.Is(err, apperr.ErrUnavailable) {
		t.Errorf("Index err = %v, want ErrUnavailable", err)
	}
}

func TestOpen_MissingBranchIsHardFailure(t *testing.T) {
	s, err := Open(context.Background(), testutil.EmptyRepo(t), Options{Branch: "nope", Logger: testutil.Logger()})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if s != nil {
		t.Error("hard failure should not return a store")
	}
}

func TestInit(t *testing.T) {
	repo := testutil.EmptyRepo(t)
	s := openStore(t, repo)
	if err := s.Init(context.Background(), s.DefaultInitFiles("<main>{{.Body}}</main>"), "init"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !s.Available() {
		t.Fatal("store should be available after init")
	}
	idx, _ := s.Index()
	if len(idx) != 0 {
		t.Errorf("index = %+v, want empty", idx)
	}
	tmpl, err := s.Template(context.Background())
	if err != nil || tmpl != "<main>{{.Body}}</main>" {
		t.Errorf("Template = %q, %v", tmpl, err)
	}
	if err := s.Init(context.Background(), s.DefaultInitFiles(""), "again"); !errors.Is(err, apperr.ErrAlreadyInitialized) {
		t.Errorf("second Init err = %v", err)
	}
}

func TestReload_Idempotent(t *testing.T) {
	repo := testutil.SeedRepo(t,
		testutil.SeedArticle{Name: "a", Title: "A", Tags: []string{"x"}, Source: "one"},
		testutil.SeedArticle{Name: "b", Title: "B", Source: "two"},
	)
	s := openStore(t, repo)
	ctx := context.Background()
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	first, _ := s.Index()
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	second, _ := s.Index()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reload changed index:\n%+v\n%+v", first, second)
	}
	for _, e := range entries(t, s) {
		if e.Modified() {
			t.Errorf("%s modified after reload", e.Name)
		}
	}
}

func TestReload_SeesExternalCommits(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A"})
	s := openStore(t, repo)
	ctx := context.Background()
	if _, err := repo.Write(ctx, testutil.Branch, map[string]string{
		"index.json": testutil.IndexJSON(t, testutil.SeedArticle{Name: "a", Title: "A"}, testutil.SeedArticle{Name: "z", Title: "Z"}),
	}, "external"); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	idx, _ := s.Index()
	if len(idx) != 2 {
		t.Errorf("index = %+v", idx)
	}
	head, _ := repo.GetBranchHead(ctx, testutil.Branch)
	if s.Head() != head {
		t.Errorf("head = %+v, want %+v", s.Head(), head)
	}
}

func TestReload_InvalidIndex(t *testing.T) {
	cases := map[string]string{
		"object":     `{"name":"a"}`,
		"garbage":    `not json`,
		"no name":    `[{"title":"x"}]`,
		"scalar":     `["a"]`,
		"duplicates": `[{"name":"a"},{"name":"a"}]`,
		"null":       `null`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			repo := testutil.SeedRepo(t)
			s := openStore(t, repo)
			if _, err := repo.Write(context.Background(), testutil.Branch, map[string]string{"index.json": content}, "corrupt"); err != nil {
				t.Fatal(err)
			}
			err := s.Reload(context.Background())
			if !errors.Is(err, apperr.ErrInvalidIndex) {
				t.Fatalf("err = %v, want ErrInvalidIndex", err)
			}
			if s.Available() {
				t.Error("failed reload should leave the store unavailable")
			}
		})
	}
}

func TestReload_MissingMarkerDiscardsIndex(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A"})
	f := testutil.NewFaulty(repo)
	s := openStore(t, f)
	if !s.Available() {
		t.Fatal("expected available")
	}
	f.OnReadFile = func(path string) error {
		if path == DefaultMarkerFile {
			return apperr.ErrNotFound
		}
		return nil
	}
	if err := s.Reload(context.Background()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if s.Available() {
		t.Error("stale index should have been discarded")
	}
}

func TestParseIndex_NullTags(t *testing.T) {
	idx, err := ParseIndex([]byte(`[{"name":"a","tags":null}]`))
	if err != nil {
		t.Fatal(err)
	}
	if idx[0].Tags == nil {
		t.Error("tags should be normalized to an empty slice")
	}
}

func TestLoadBody(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A", Source: "# héllo"})
	s := openStore(t, repo)
	e := entries(t, s)[0]
	if e.Loaded {
		t.Fatal("body should start unloaded")
	}
	if err := s.LoadBody(context.Background(), e); err != nil {
		t.Fatalf("LoadBody: %v", err)
	}
	if !e.Loaded || e.Source != "# héllo" {
		t.Errorf("source = %q loaded=%v", e.Source, e.Loaded)
	}
	if e.Modified() {
		t.Error("loading a body must not mark the entry modified")
	}
}

func TestLoadBody_MissingMarker(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A"})
	if _, err := repo.Write(context.Background(), testutil.Branch, map[string]string{"articles/a": "<p>plain</p>"}, "strip"); err != nil {
		t.Fatal(err)
	}
	s := openStore(t, repo)
	e := entries(t, s)[0]
	err := s.LoadBody(context.Background(), e)
	if !errors.Is(err, apperr.ErrSourceExtraction) {
		t.Fatalf("err = %v, want ErrSourceExtraction", err)
	}
	if e.Loaded {
		t.Error("failed load must leave the body unloaded")
	}
}

func TestLoadBody_OverEditsPanics(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A"})
	s := openStore(t, repo)
	e := entries(t, s)[0]
	e.Title = "edited"
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	_ = s.LoadBody(context.Background(), e)
}

func TestLoadBody_Unavailable(t *testing.T) {
	s := openStore(t, testutil.EmptyRepo(t))
	e := models.TrackedEntry(models.FromBrief(models.Brief{Name: "a"}))
	if err := s.LoadBody(context.Background(), e); !errors.Is(err, apperr.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestSaveAll_Scenario(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A", Tags: []string{"x"}, Source: "src"})
	f := testutil.NewFaulty(repo)
	var deltas []contentstore.Delta
	f.OnCreateTree = func(d []contentstore.Delta) error {
		deltas = d
		return nil
	}
	s := openStore(t, f)
	es := entries(t, s)
	loadAll(t, s, es)
	doc := es[0]
	doc.Tags = []string{"x", "y"}
	if !doc.Modified() {
		t.Fatal("tag change should mark modified")
	}

	if err := s.SaveAll(context.Background(), es, fixedRender, "msg"); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	if len(deltas) != 2 {
		t.Fatalf("deltas = %+v, want 2", deltas)
	}
	if deltas[0].Path != "articles/a" || deltas[0].Content != codec.Embed("src", "F") {
		t.Errorf("article delta = %+v", deltas[0])
	}
	if !strings.HasPrefix(deltas[0].Content, "<!-- SOURCE<") || !strings.HasSuffix(deltas[0].Content, "> -->F") {
		t.Errorf("article content = %q", deltas[0].Content)
	}
	if deltas[1].Path != "index.json" {
		t.Errorf("index delta path = %s", deltas[1].Path)
	}
	idx, err := ParseIndex([]byte(deltas[1].Content))
	if err != nil {
		t.Fatal(err)
	}
	if len(idx) != 1 || idx[0].Name != "a" || !reflect.DeepEqual(idx[0].Tags, []string{"x", "y"}) || idx[0].RenderedBrief != "B" {
		t.Errorf("index = %+v", idx)
	}
	if doc.Modified() {
		t.Error("saved entry should not be modified")
	}
	if repo.Message(testutil.Branch) != "msg" {
		t.Errorf("commit message = %q", repo.Message(testutil.Branch))
	}
	head, _ := repo.GetBranchHead(context.Background(), testutil.Branch)
	if s.Head() != head {
		t.Errorf("store head = %+v, remote = %+v", s.Head(), head)
	}
}

func TestSaveAll_Monotonicity(t *testing.T) {
	repo := testutil.SeedRepo(t,
		testutil.SeedArticle{Name: "a", Title: "A", Source: "a"},
		testutil.SeedArticle{Name: "b", Title: "B", Source: "b"},
		testutil.SeedArticle{Name: "c", Title: "C", Source: "c"},
	)
	s := openStore(t, repo)
	es := entries(t, s)
	loadAll(t, s, es)
	es[0].Source = "a2"
	es[1].Removed = true
	fresh := models.NewEntry(models.NewArticle("d"))
	fresh.Title = "D"
	fresh.SetSource("d")
	es = append(es, fresh)

	if err := s.SaveAll(context.Background(), es, fixedRender, "batch"); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	for _, e := range models.Prune(es) {
		if e.Modified() {
			t.Errorf("%s still modified", e.Name)
		}
		b, _ := e.Baseline()
		if !b.Equal(e.Monitored()) {
			t.Errorf("%s baseline differs from current", e.Name)
		}
	}
	idx, _ := s.Index()
	var names []string
	for _, b := range idx {
		names = append(names, b.Name)
	}
	if !reflect.DeepEqual(names, []string{"a", "c", "d"}) {
		t.Errorf("index names = %v", names)
	}
	if es[0].RenderedBrief != "B" || es[0].RenderedFull != "F" {
		t.Errorf("rendered fields = %q %q", es[0].RenderedBrief, es[0].RenderedFull)
	}

	// A fresh session sees the same state.
	s2 := openStore(t, repo)
	e2 := entries(t, s2)
	loadAll(t, s2, e2)
	if len(e2) != 3 || e2[0].Source != "a2" || e2[2].Source != "d" {
		t.Errorf("reopened entries = %+v", e2)
	}
}

func TestSaveAll_NothingPending(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A"})
	f := testutil.NewFaulty(repo)
	s := openStore(t, f)
	before := s.Head()
	if err := s.SaveAll(context.Background(), entries(t, s), fixedRender, "noop"); err != nil {
		t.Fatal(err)
	}
	if f.Calls["CreateTree"] != 0 {
		t.Error("no-op save should not write")
	}
	if s.Head() != before {
		t.Error("no-op save should not move the head")
	}
}

func TestSaveAll_AtomicOnCommitFailure(t *testing.T) {
	repo := testutil.SeedRepo(t,
		testutil.SeedArticle{Name: "a", Title: "A", Tags: []string{"x"}, Source: "a"},
		testutil.SeedArticle{Name: "b", Title: "B", Source: "b"},
	)
	f := testutil.NewFaulty(repo)
	s := openStore(t, f)
	es := entries(t, s)
	loadAll(t, s, es)
	es[0].Tags = []string{"x", "y"}
	es[1].Removed = true

	headBefore := s.Head()
	indexBefore, _ := s.Index()
	baselineBefore, _ := es[0].Baseline()
	briefBefore := es[0].RenderedBrief

	f.OnCreateCommit = func() error { return apperr.ErrTransport }
	err := s.SaveAll(context.Background(), es, fixedRender, "msg")
	if !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if f.Calls["CreateTree"] != 1 {
		t.Errorf("tree should have been created once, got %d", f.Calls["CreateTree"])
	}
	if s.Head() != headBefore {
		t.Error("head changed after failed save")
	}
	indexAfter, _ := s.Index()
	if !reflect.DeepEqual(indexBefore, indexAfter) {
		t.Error("index changed after failed save")
	}
	baselineAfter, _ := es[0].Baseline()
	if !reflect.DeepEqual(baselineBefore, baselineAfter) {
		t.Error("baseline changed after failed save")
	}
	if !es[0].Modified() || es[0].RenderedBrief != briefBefore {
		t.Error("entry state changed after failed save")
	}
}

func TestSaveAll_ConcurrentRemoteWrite(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A", Source: "a"})
	s := openStore(t, repo)
	es := entries(t, s)
	loadAll(t, s, es)
	es[0].Source = "mine"

	if _, err := repo.Write(context.Background(), testutil.Branch, map[string]string{"other": "x"}, "external"); err != nil {
		t.Fatal(err)
	}
	headBefore := s.Head()
	err := s.SaveAll(context.Background(), es, fixedRender, "msg")
	if !errors.Is(err, apperr.ErrConcurrency) {
		t.Fatalf("err = %v, want ErrConcurrency", err)
	}
	if s.Head() != headBefore || !es[0].Modified() {
		t.Error("rejected save must leave local state unchanged")
	}
	if repo.Files(testutil.Branch)["other"] != "x" {
		t.Error("external commit must survive")
	}

	// Reload reconciles; the edit can then be saved.
	if err := s.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAll(context.Background(), es, fixedRender, "retry"); err != nil {
		t.Fatalf("save after reload: %v", err)
	}
}

func TestSaveAll_ReentrantPanicsWithoutSecondWrite(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A", Source: "a"})
	f := testutil.NewFaulty(repo)
	s := openStore(t, f)
	es := entries(t, s)
	loadAll(t, s, es)
	es[0].Source = "edited"

	var panicked any
	f.OnCreateTree = func([]contentstore.Delta) error {
		func() {
			defer func() { panicked = recover() }()
			_ = s.SaveAll(context.Background(), es, fixedRender, "second")
		}()
		return nil
	}
	if err := s.SaveAll(context.Background(), es, fixedRender, "first"); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if panicked == nil {
		t.Fatal("nested SaveAll should panic")
	}
	if !strings.Contains(panicked.(string), "in progress") {
		t.Errorf("panic = %v", panicked)
	}
	if f.Calls["CreateTree"] != 1 || f.Calls["UpdateBranchHead"] != 1 {
		t.Errorf("calls = %v, want a single write", f.Calls)
	}
}

func TestSaveAll_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(es []*models.Entry) []*models.Entry
		field  string
	}{
		{"blank title", func(es []*models.Entry) []*models.Entry { es[0].Title = ""; return es }, "title"},
		{"blank publish time", func(es []*models.Entry) []*models.Entry { es[0].PublishTime = ""; return es }, "publish time"},
		{"blank name", func(es []*models.Entry) []*models.Entry {
			n := models.NewEntry(models.NewArticle(""))
			n.Title = "T"
			return append(es, n)
		}, "name"},
		{"rename", func(es []*models.Entry) []*models.Entry { es[0].Name = "renamed"; return es }, "name"},
		{"duplicate", func(es []*models.Entry) []*models.Entry {
			n := models.NewEntry(models.NewArticle("b"))
			n.Title = "dup"
			return append(es, n)
		}, "name"},
		{"missing entry", func(es []*models.Entry) []*models.Entry { es[0].Title = "x"; return es[:1] }, "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := testutil.SeedRepo(t,
				testutil.SeedArticle{Name: "a", Title: "A", Source: "a"},
				testutil.SeedArticle{Name: "b", Title: "B", Source: "b"},
			)
			f := testutil.NewFaulty(repo)
			s := openStore(t, f)
			es := entries(t, s)
			loadAll(t, s, es)
			es = tc.mutate(es)
			err := s.SaveAll(context.Background(), es, fixedRender, "msg")
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) || !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tc.field {
				t.Errorf("field = %q, want %q", ve.Field, tc.field)
			}
			if f.Calls["CreateTree"] != 0 {
				t.Error("validation failure must not write")
			}
		})
	}
}

func TestSaveAll_RefusesUnloadedBody(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A", Source: "keep me"})
	s := openStore(t, repo)
	es := entries(t, s)
	es[0].Title = "retitled"
	err := s.SaveAll(context.Background(), es, fixedRender, "msg")
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "source" {
		t.Fatalf("err = %v, want source ValidationError", err)
	}
	src, _ := codec.Extract([]byte(repo.Files(testutil.Branch)["articles/a"]))
	if src != "keep me" {
		t.Errorf("remote source = %q", src)
	}
}

func TestSaveAll_RenderError(t *testing.T) {
	repo := testutil.SeedRepo(t, testutil.SeedArticle{Name: "a", Title: "A", Source: "a"})
	f := testutil.NewFaulty(repo)
	s := openStore(t, f)
	es := entries(t, s)
	loadAll(t, s, es)
	es[0].Source = "boom"
	boom := errors.New("template exploded")
	err := s.SaveAll(context.Background(), es, func(string) (models.Rendered, error) {
		return models.Rendered{}, boom
	}, "msg")
	if !errors.Is(err, apperr.ErrRender) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrRender wrapping cause", err)
	}
	if f.Calls["CreateTree"] != 0 {
		t.Error("render failure must not write")
	}
}

func TestSaveAll_RemoveOnly(t *testing.T) {
	repo := testutil.SeedRepo(t,
		testutil.SeedArticle{Name: "a", Title: "A"},
		testutil.SeedArticle{Name: "b", Title: "B"},
	)
	s := openStore(t, repo)
	es := entries(t, s)
	es[1].Removed = true
	rendered := 0
	err := s.SaveAll(context.Background(), es, func(string) (models.Rendered, error) {
		rendered++
		return models.Rendered{}, nil
	}, "remove b")
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if rendered != 0 {
		t.Errorf("removal should not render, rendered %d", rendered)
	}
	idx, _ := s.Index()
	if len(idx) != 1 || idx[0].Name != "a" || idx[0].RenderedBrief != "<p>a</p>" {
		t.Errorf("index = %+v", idx)
	}
}

func TestTemplate_CachedPerCommit(t *testing.T) {
	repo := testutil.SeedRepo(t)
	ctx := context.Background()
	if _, err := repo.Write(ctx, testutil.Branch, map[string]string{DefaultTemplateFile: "v1"}, "tmpl"); err != nil {
		t.Fatal(err)
	}
	f := testutil.NewFaulty(repo)
	s := openStore(t, f)
	for i := 0; i < 3; i++ {
		got, err := s.Template(ctx)
		if err != nil || got != "v1" {
			t.Fatalf("Template = %q, %v", got, err)
		}
	}
	// marker + index on open, template once.
	if f.Calls["ReadFile"] != 3 {
		t.Errorf("ReadFile calls = %d, want 3", f.Calls["ReadFile"])
	}
}
