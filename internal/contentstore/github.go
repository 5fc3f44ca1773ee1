package contentstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/folio/internal/apperr"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

// Response limits per endpoint type.
const (
	responseLimitDefault = 2 << 20  // 2MB
	responseLimitFile    = 64 << 20 // 64MB
)

const fileModeBlob = "100644"

// GitHubOptions configures the GitHub client.
type GitHubOptions struct {
	APIURL   string        // default DefaultAPIURL
	Owner    string        // repository owner; defaults to Username
	Repo     string        // repository name (required)
	Username string        // Basic auth user
	Password string        // Basic auth password or personal access token
	Token    string        // Bearer token; takes precedence over Basic auth
	Timeout  time.Duration // HTTP client timeout (default 30s)
}

// GitHub implements Client over the GitHub REST API. It never retries;
// retry policy belongs to the caller.
type GitHub struct {
	baseURL    string
	httpClient *http.Client
	username   string
	password   string
	token      string
}

// Compile-time interface check.
var _ Client = (*GitHub)(nil)

// NewGitHub creates a GitHub client for one repository.
func NewGitHub(opts GitHubOptions) (*GitHub, error) {
	if strings.TrimSpace(opts.Repo) == "" {
		return nil, fmt.Errorf("contentstore: repository is required")
	}
	owner := opts.Owner
	if owner == "" {
		owner = opts.Username
	}
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("contentstore: repository owner is required")
	}
	apiURL := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("contentstore: parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("contentstore: api url must include scheme and host")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &GitHub{
		baseURL:    apiURL + "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(opts.Repo),
		httpClient: &http.Client{Timeout: opts.Timeout},
		username:   opts.Username,
		password:   opts.Password,
		token:      opts.Token,
	}, nil
}

// GetBranchHead handles GET /repos/{owner}/{repo}/branches/{branch}.
func (g *GitHub) GetBranchHead(ctx context.Context, branch string) (Head, error) {
	var resp struct {
		Commit struct {
			SHA    string `json:"sha"`
			Commit struct {
				Tree struct {
					SHA string `json:"sha"`
				} `json:"tree"`
			} `json:"commit"`
		} `json:"commit"`
	}
	if err := g.doJSON(ctx, http.MethodGet, "/branches/"+url.PathEscape(branch), nil, http.StatusOK, &resp); err != nil {
		return Head{}, err
	}
	if resp.Commit.SHA == "" || resp.Commit.Commit.Tree.SHA == "" {
		return Head{}, fmt.Errorf("%w: branch %q response has no commit", apperr.ErrTransport, branch)
	}
	return Head{Commit: resp.Commit.SHA, Tree: resp.Commit.Commit.Tree.SHA}, nil
}

// ReadFile handles GET /repos/{owner}/{repo}/contents/{path}?ref={commit}.
// Files over 1MB come back without content; those are fetched from
// GET /repos/{owner}/{repo}/git/blobs/{sha}.
func (g *GitHub) ReadFile(ctx context.Context, commit, path string) ([]byte, error) {
	var resp struct {
		Type     string `json:"type"`
		SHA      string `json:"sha"`
		Size     int64  `json:"size"`
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
	}
	p := "/contents/" + escapePath(path) + "?ref=" + url.QueryEscape(commit)
	if err := g.doJSON(ctx, http.MethodGet, p, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	if resp.Type != "" && resp.Type != "file" {
		return nil, fmt.Errorf("%w: %s is a %s", apperr.ErrNotFound, path, resp.Type)
	}
	if resp.Encoding == "none" || (resp.Content == "" && resp.Size > 0) {
		if resp.SHA == "" {
			return nil, fmt.Errorf("%w: %s is too large for the contents API and has no blob sha", apperr.ErrTransport, path)
		}
		return g.readBlob(ctx, path, resp.SHA)
	}
	return decodeContent(path, resp.Encoding, resp.Content)
}

func (g *GitHub) readBlob(ctx context.Context, path, sha string) ([]byte, error) {
	var resp struct {
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
	}
	if err := g.doJSON(ctx, http.MethodGet, "/git/blobs/"+url.PathEscape(sha), nil, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("read blob of %s: %w", path, err)
	}
	return decodeContent(path, resp.Encoding, resp.Content)
}

func decodeContent(path, encoding, content string) ([]byte, error) {
	if encoding != "" && encoding != "base64" {
		return nil, fmt.Errorf("%w: %s: unsupported content encoding %q", apperr.ErrTransport, path, encoding)
	}
	// The API wraps base64 content at 60 columns.
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", apperr.ErrTransport, path, err)
	}
	return data, nil
}

// CreateTree handles POST /repos/{owner}/{repo}/git/trees.
func (g *GitHub) CreateTree(ctx context.Context, baseTree string, deltas []Delta) (string, error) {
	type treeItem struct {
		Path    string `json:"path"`
		Mode    string `json:"mode"`
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	req := struct {
		BaseTree string     `json:"base_tree,omitempty"`
		Tree     []treeItem `json:"tree"`
	}{
		BaseTree: baseTree,
		Tree:     make([]treeItem, 0, len(deltas)),
	}
	for _, d := range deltas {
		req.Tree = append(req.Tree, treeItem{Path: d.Path, Mode: fileModeBlob, Type: "blob", Content: d.Content})
	}
	var resp struct {
		SHA string `json:"sha"`
	}
	if err := g.doJSON(ctx, http.MethodPost, "/git/trees", req, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp.SHA, nil
}

// CreateCommit handles POST /repos/{owner}/{repo}/git/commits.
func (g *GitHub) CreateCommit(ctx context.Context, parent, tree, message string) (string, error) {
	req := struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}{Message: message, Tree: tree, Parents: []string{parent}}
	var resp struct {
		SHA string `json:"sha"`
	}
	if err := g.doJSON(ctx, http.MethodPost, "/git/commits", req, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	return resp.SHA, nil
}

// UpdateBranchHead handles PATCH /repos/{owner}/{repo}/git/refs/heads/{branch}.
// GitHub answers a rejected non-fast-forward update with 422.
func (g *GitHub) UpdateBranchHead(ctx context.Context, branch, commit string, force bool) error {
	req := struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}{SHA: commit, Force: force}
	err := g.doJSON(ctx, http.MethodPatch, "/git/refs/heads/"+escapePath(branch), req, http.StatusOK, nil)
	var se *statusError
	if errors.As(err, &se) && (se.status == http.StatusUnprocessableEntity || se.status == http.StatusConflict) {
		return fmt.Errorf("%w: %s", apperr.ErrConcurrency, se.message)
	}
	return err
}

// statusError is a non-2xx response, classified into the apperr taxonomy.
type statusError struct {
	method  string
	path    string
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote request failed (%s %s): %d %s", e.method, e.path, e.status, e.message)
}

func (e *statusError) Unwrap() error {
	switch e.status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.ErrAuth
	case http.StatusNotFound:
		return apperr.ErrNotFound
	default:
		return apperr.ErrTransport
	}
}

func (g *GitHub) doJSON(ctx context.Context, method, path string, in any, expectedStatus int, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	g.applyAuth(req)

	limit := int64(responseLimitDefault)
	if strings.HasPrefix(path, "/contents/") || strings.HasPrefix(path, "/git/blobs/") {
		limit = responseLimitFile
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", apperr.ErrTransport, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", apperr.ErrTransport, err)
	}
	if resp.StatusCode != expectedStatus {
		return &statusError{
			method:  method,
			path:    req.URL.Path,
			status:  resp.StatusCode,
			message: remoteMessage(data, resp.StatusCode),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", apperr.ErrTransport, req.URL.Path, err)
	}
	return nil
}

func (g *GitHub) applyAuth(req *http.Request) {
	if strings.TrimSpace(g.token) != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
		return
	}
	if strings.TrimSpace(g.username) != "" {
		req.SetBasicAuth(g.username, g.password)
	}
}

func remoteMessage(body []byte, status int) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return msg
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
