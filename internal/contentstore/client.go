// Package contentstore defines the remote tree/blob/commit capability the
// store writes through, with a GitHub REST implementation and an in-memory
// content-addressed implementation.
package contentstore

import "context"

// Head identifies the tip of a branch.
type Head struct {
	Commit string `json:"commit"`
	Tree   string `json:"tree"`
}

// Delta replaces the file at Path with Content in a new tree.
type Delta struct {
	Path    string
	Content string
}

// Client is the single point of remote I/O.
type Client interface {
	// GetBranchHead resolves the commit and tree at the tip of branch.
	GetBranchHead(ctx context.Context, branch string) (Head, error)
	// ReadFile returns the content of path as of commit.
	ReadFile(ctx context.Context, commit, path string) ([]byte, error)
	// CreateTree creates a tree that applies deltas on top of baseTree.
	CreateTree(ctx context.Context, baseTree string, deltas []Delta) (string, error)
	// CreateCommit creates a commit of tree with a single parent.
	CreateCommit(ctx context.Context, parent, tree, message string) (string, error)
	// UpdateBranchHead moves branch to commit. Without force only
	// fast-forward moves are accepted.
	UpdateBranchHead(ctx context.Context, branch, commit string, force bool) error
}
