// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes folio tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/workspace"
)

// ContractURI is the resource URI of the article format contract.
const ContractURI = "folio://article-format"

// Server wraps the MCP server with folio tools.
type Server struct {
	mcp *server.MCPServer
	svc *workspace.Service
}

// New creates a new MCP server with all folio tools registered.
func New(svc *workspace.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Folio",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_articles",
		mcp.WithDescription("List the articles of the working set with their title, tags and pending state."),
		mcp.WithString("tag", mcp.Description("Optional tag to filter by")),
	), s.listArticles)

	s.mcp.AddTool(mcp.NewTool("read_article",
		mcp.WithDescription("Read one article including its markdown source."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Article name")),
	), s.readArticle)

	s.mcp.AddTool(mcp.NewTool("create_article",
		mcp.WithDescription("Add a new article to the working set. Nothing is published until save_changes. "+
			"Read the contract first via get_article_contract or the "+ContractURI+" resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Article name: letters, digits, '.', '_' or '-'")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable title")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Markdown source of the article")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("isoPubtime", mcp.Description("Publish time as ISO-8601; defaults to now")),
	), s.createArticle)

	s.mcp.AddTool(mcp.NewTool("update_article",
		mcp.WithDescription("Change fields of an article. Omitted fields are left unchanged."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Article name")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("source", mcp.Description("New markdown source")),
		mcp.WithString("tags", mcp.Description("New comma-separated tags; an empty string clears them")),
		mcp.WithString("isoPubtime", mcp.Description("New publish time as ISO-8601")),
	), s.updateArticle)

	s.mcp.AddTool(mcp.NewTool("remove_article",
		mcp.WithDescription("Flag an article for removal at the next save."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Article name")),
	), s.removeArticle)

	s.mcp.AddTool(mcp.NewTool("discard_article",
		mcp.WithDescription("Revert an article to its last saved state."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Article name")),
	), s.discardArticle)

	s.mcp.AddTool(mcp.NewTool("save_changes",
		mcp.WithDescription("Publish every pending change as one commit on the branch."),
		mcp.WithString("message", mcp.Description("Commit message")),
	), s.saveChanges)

	s.mcp.AddTool(mcp.NewTool("reload_articles",
		mcp.WithDescription("Reload the article index from the branch. Unsaved edits are discarded."),
	), s.reloadArticles)

	s.mcp.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Report the branch head, article count and number of pending changes."),
	), s.getStatus)

	s.mcp.AddTool(mcp.NewTool("get_article_contract",
		mcp.WithDescription("Returns the folio article format contract. "+
			"Call this before creating or updating articles."),
	), s.getArticleContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Article Format Contract",
			mcp.WithResourceDescription("Format every folio article must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func splitTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// optString returns the argument key and whether it was passed at all.
func optString(req mcp.CallToolRequest, key string) (*string, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("argument %q must be a string", key)
	}
	return &s, nil
}

func (s *Server) listArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag := req.GetString("tag", "")
	var lines []string
	for _, v := range items {
		if tag != "" && !contains(v.Tags, tag) {
			continue
		}
		state := ""
		switch {
		case v.Removed:
			state = " [removed]"
		case v.New:
			state = " [new]"
		case v.Modified:
			state = " [modified]"
		}
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s%s", v.Name, v.Title, strings.Join(v.Tags, ","), state))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no articles found"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.Get(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v)
}

func (s *Server) createArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in workspace.CreateInput
	var err error
	if in.Name, err = req.RequireString("name"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if in.Title, err = req.RequireString("title"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if in.Source, err = req.RequireString("source"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in.Tags = splitTags(req.GetString("tags", ""))
	in.PublishTime = req.GetString("isoPubtime", "")

	if _, err := s.svc.Create(in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", in.Name)), nil
}

func (s *Server) updateArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var p workspace.Patch
	for key, dst := range map[string]**string{"title": &p.Title, "source": &p.Source, "isoPubtime": &p.PublishTime} {
		if *dst, err = optString(req, key); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	tags, err := optString(req, "tags")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if tags != nil {
		t := splitTags(*tags)
		p.Tags = &t
	}
	if p.Title == nil && p.Source == nil && p.PublishTime == nil && p.Tags == nil {
		return mcp.NewToolResultError("nothing to update"), nil
	}
	if _, err := s.svc.Update(ctx, name, p); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", name)), nil
}

func (s *Server) removeArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Remove(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %s", name)), nil
}

func (s *Server) discardArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.Discard(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("discarded: %s", name)), nil
}

func (s *Server) saveChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Save(ctx, req.GetString("message", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) reloadArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.Reload(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Status())
}

func (s *Server) getStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Status())
}

func (s *Server) getArticleContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ArticleFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     ArticleFormatContract,
		},
	}, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
