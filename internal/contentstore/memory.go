package contentstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
)

type memCommit struct {
	parent  string
	tree    string
	message string
}

// Memory is an in-process content-addressed repository. Object ids are
// SHA-256 digests of their canonical encoding. Trees are flat path maps.
// It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	trees   map[string]map[string]string // tree id -> path -> blob id
	commits map[string]memCommit
	refs    map[string]string // branch -> commit id
}

// Compile-time interface check.
var _ Client = (*Memory)(nil)

// NewMemory creates a repository whose branches all start at one empty root commit.
func NewMemory(branches ...string) *Memory {
	m := &Memory{
		blobs:   make(map[string][]byte),
		trees:   make(map[string]map[string]string),
		commits: make(map[string]memCommit),
		refs:    make(map[string]string),
	}
	tree := m.putTree(map[string]string{})
	root := m.putCommit(memCommit{tree: tree, message: "root"})
	for _, b := range branches {
		m.refs[b] = root
	}
	return m
}

// GetBranchHead returns the commit and tree the branch points at.
func (m *Memory) GetBranchHead(_ context.Context, branch string) (Head, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.refs[branch]
	if !ok {
		return Head{}, fmt.Errorf("%w: branch %q", apperr.ErrNotFound, branch)
	}
	return Head{Commit: id, Tree: m.commits[id].tree}, nil
}

// ReadFile returns the blob at path in the commit's tree.
func (m *Memory) ReadFile(_ context.Context, commit, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commits[commit]
	if !ok {
		return nil, fmt.Errorf("%w: commit %s", apperr.ErrNotFound, commit)
	}
	blob, ok := m.trees[c.tree][path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}
	data := m.blobs[blob]
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// CreateTree applies deltas to baseTree. An empty baseTree starts from scratch.
func (m *Memory) CreateTree(_ context.Context, baseTree string, deltas []Delta) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make(map[string]string)
	if baseTree != "" {
		base, ok := m.trees[baseTree]
		if !ok {
			return "", fmt.Errorf("%w: tree %s", apperr.ErrNotFound, baseTree)
		}
		for p, b := range base {
			entries[p] = b
		}
	}
	for _, d := range deltas {
		if strings.TrimSpace(d.Path) == "" {
			return "", fmt.Errorf("%w: empty tree path", apperr.ErrTransport)
		}
		entries[d.Path] = m.putBlob([]byte(d.Content))
	}
	return m.putTree(entries), nil
}

// CreateCommit records a commit of tree on top of parent.
func (m *Memory) CreateCommit(_ context.Context, parent, tree, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.commits[parent]; !ok {
		return "", fmt.Errorf("%w: parent commit %s", apperr.ErrNotFound, parent)
	}
	if _, ok := m.trees[tree]; !ok {
		return "", fmt.Errorf("%w: tree %s", apperr.ErrNotFound, tree)
	}
	return m.putCommit(memCommit{parent: parent, tree: tree, message: message}), nil
}

// UpdateBranchHead moves branch to commit. Without force the commit must be
// the current tip or descend from it; moving to the current tip is a no-op.
func (m *Memory) UpdateBranchHead(_ context.Context, branch, commit string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.refs[branch]
	if !ok {
		return fmt.Errorf("%w: branch %q", apperr.ErrNotFound, branch)
	}
	c, ok := m.commits[commit]
	if !ok {
		return fmt.Errorf("%w: commit %s", apperr.ErrNotFound, commit)
	}
	if commit == cur {
		return nil
	}
	if !force && !m.descendsFrom(c, cur) {
		return fmt.Errorf("%w: update of %q is not a fast forward", apperr.ErrConcurrency, branch)
	}
	m.refs[branch] = commit
	return nil
}

// Files returns a copy of every path and content at the tip of branch.
func (m *Memory) Files(branch string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	id, ok := m.refs[branch]
	if !ok {
		return out
	}
	for p, b := range m.trees[m.commits[id].tree] {
		out[p] = string(m.blobs[b])
	}
	return out
}

// Message returns the message of the commit at the tip of branch.
func (m *Memory) Message(branch string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits[m.refs[branch]].message
}

// Write commits files on top of branch in one step, as an external writer would.
func (m *Memory) Write(ctx context.Context, branch string, files map[string]string, message string) (Head, error) {
	head, err := m.GetBranchHead(ctx, branch)
	if err != nil {
		return Head{}, err
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	deltas := make([]Delta, 0, len(paths))
	for _, p := range paths {
		deltas = append(deltas, Delta{Path: p, Content: files[p]})
	}
	tree, err := m.CreateTree(ctx, head.Tree, deltas)
	if err != nil {
		return Head{}, err
	}
	commit, err := m.CreateCommit(ctx, head.Commit, tree, message)
	if err != nil {
		return Head{}, err
	}
	if err := m.UpdateBranchHead(ctx, branch, commit, false); err != nil {
		return Head{}, err
	}
	return Head{Commit: commit, Tree: tree}, nil
}

func (m *Memory) descendsFrom(c memCommit, ancestor string) bool {
	for c.parent != "" {
		if c.parent == ancestor {
			return true
		}
		c = m.commits[c.parent]
	}
	return false
}

func (m *Memory) putBlob(data []byte) string {
	id := checksum.Object("blob", data)
	if _, ok := m.blobs[id]; !ok {
		m.blobs[id] = append([]byte(nil), data...)
	}
	return id
}

func (m *Memory) putTree(entries map[string]string) string {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s %s\n", entries[p], p)
	}
	id := checksum.Object("tree", []byte(b.String()))
	if _, ok := m.trees[id]; !ok {
		m.trees[id] = entries
	}
	return id
}

func (m *Memory) putCommit(c memCommit) string {
	id := checksum.Object("commit", []byte(fmt.Sprintf("%s\n%s\n%s", c.parent, c.tree, c.message)))
	m.commits[id] = c
	return id
}
