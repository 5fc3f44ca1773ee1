package contentstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/folio/internal/apperr"
)

func testGitHub(t *testing.T, h http.HandlerFunc) *GitHub {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := NewGitHub(GitHubOptions{APIURL: srv.URL, Username: "alice", Password: "secret", Repo: "blog"})
	if err != nil {
		t.Fatalf("NewGitHub: %v", err)
	}
	return g
}

func TestGitHub_GetBranchHead(t *testing.T) {
	g := testGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/alice/blog/branches/master" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		_, _ = w.Write([]byte(`{"commit":{"sha":"c1","commit":{"tree":{"sha":"t1"}}}}`))
	})
	head, err := g.GetBranchHead(context.Background(), "master")
	if err != nil {
		t.Fatalf("GetBranchHead: %v", err)
	}
	if head.Commit != "c1" || head.Tree != "t1" {
		t.Errorf("head = %+v", head)
	}
}

func TestGitHub_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, apperr.ErrAuth},
		{http.StatusForbidden, apperr.ErrAuth},
		{http.StatusNotFound, apperr.ErrNotFound},
		{http.StatusInternalServerError, apperr.ErrTransport},
	}
	for _, tc := range cases {
		g := testGitHub(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"message":"nope"}`))
		})
		_, err := g.GetBranchHead(context.Background(), "master")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestGitHub_ReadFile(t *testing.T) {
	content := "<!-- SOURCE<aGk=> --><p>hi</p>"
	enc := base64.StdEncoding.EncodeToString([]byte(content))
	wrapped := enc[:10] + "\n" + enc[10:]
	g := testGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/alice/blog/contents/articles/hello" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("ref") != "c1" {
			t.Errorf("ref = %s", r.URL.Query().Get("ref"))
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"type": "file", "encoding": "base64", "content": wrapped})
	})
	got, err := g.ReadFile(context.Background(), "c1", "articles/hello")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != content {
		t.Errorf("content = %q", got)
	}
}

func TestGitHub_ReadFileLargeFallsBackToBlob(t *testing.T) {
	content := "<!-- SOURCE<aGk=> --><p>big</p>"
	g := testGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/alice/blog/contents/articles/big":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"type": "file", "sha": "b1", "size": 2 << 20, "encoding": "none", "content": "",
			})
		case "/repos/alice/blog/git/blobs/b1":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"encoding": "base64", "content": base64.StdEncoding.EncodeToString([]byte(content)),
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	got, err := g.ReadFile(context.Background(), "c1", "articles/big")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != content {
		t.Errorf("content = %q", got)
	}
}

func TestGitHub_ReadFileLargeWithoutSHA(t *testing.T) {
	g := testGitHub(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type":"file","size":2097152,"encoding":"none","content":""}`))
	})
	_, err := g.ReadFile(context.Background(), "c1", "articles/big")
	if !errors.Is(err, apperr.ErrTransport) || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("err = %v", err)
	}
}

func TestGitHub_CommitFlow(t *testing.T) {
	var treeReq struct {
		BaseTree string `json:"base_tree"`
		Tree     []struct {
			Path    string `json:"path"`
			Mode    string `json:"mode"`
			Content string `json:"content"`
		} `json:"tree"`
	}
	var commitReq struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}
	var refReq struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}
	g := testGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/repos/alice/blog/git/trees":
			_ = json.NewDecoder(r.Body).Decode(&treeReq)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"sha":"t2"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/repos/alice/blog/git/commits":
			_ = json.NewDecoder(r.Body).Decode(&commitReq)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"sha":"c2"}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/repos/alice/blog/git/refs/heads/master":
			_ = json.NewDecoder(r.Body).Decode(&refReq)
			_, _ = w.Write([]byte(`{"ref":"refs/heads/master"}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	})
	ctx := context.Background()
	tree, err := g.CreateTree(ctx, "t1", []Delta{{Path: "index.json", Content: "[]"}})
	if err != nil || tree != "t2" {
		t.Fatalf("CreateTree = %q, %v", tree, err)
	}
	if treeReq.BaseTree != "t1" || len(treeReq.Tree) != 1 || treeReq.Tree[0].Mode != "100644" {
		t.Errorf("tree request = %+v", treeReq)
	}
	commit, err := g.CreateCommit(ctx, "c1", tree, "msg")
	if err != nil || commit != "c2" {
		t.Fatalf("CreateCommit = %q, %v", commit, err)
	}
	if len(commitReq.Parents) != 1 || commitReq.Parents[0] != "c1" || commitReq.Message != "msg" {
		t.Errorf("commit request = %+v", commitReq)
	}
	if err := g.UpdateBranchHead(ctx, "master", commit, false); err != nil {
		t.Fatalf("UpdateBranchHead: %v", err)
	}
	if refReq.SHA != "c2" || refReq.Force {
		t.Errorf("ref request = %+v", refReq)
	}
}

func TestGitHub_NonFastForward(t *testing.T) {
	g := testGitHub(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Update is not a fast forward"}`))
	})
	err := g.UpdateBranchHead(context.Background(), "master", "c2", false)
	if !errors.Is(err, apperr.ErrConcurrency) {
		t.Errorf("err = %v, want ErrConcurrency", err)
	}
}

func TestGitHub_BearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"commit":{"sha":"c","commit":{"tree":{"sha":"t"}}}}`))
	}))
	defer srv.Close()
	g, err := NewGitHub(GitHubOptions{APIURL: srv.URL, Owner: "o", Repo: "r", Token: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.GetBranchHead(context.Background(), "main"); err != nil {
		t.Errorf("GetBranchHead: %v", err)
	}
}

func TestNewGitHub_Validation(t *testing.T) {
	if _, err := NewGitHub(GitHubOptions{Username: "a"}); err == nil {
		t.Error("expected error without repo")
	}
	if _, err := NewGitHub(GitHubOptions{Repo: "r"}); err == nil {
		t.Error("expected error without owner")
	}
	if _, err := NewGitHub(GitHubOptions{APIURL: "not a url", Username: "a", Repo: "r"}); err == nil {
		t.Error("expected error for invalid api url")
	}
}
