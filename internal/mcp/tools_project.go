package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerProjectTools() {
	// ── list_projects ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects"),
	), s.handleListProjects)

	// ── create_project ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a new project and open it as the active project"),
		mcp.WithString("name", mcp.Description("Project name"), mcp.Required()),
	), s.handleCreateProject)

	// ── open_project ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_project",
		mcp.WithDescription("Open a project and make it the active project for subsequent tool calls"),
		mcp.WithString("projectId", mcp.Description("ID of the project"), mcp.Required()),
	), s.handleOpenProject)

	// ── save_project ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_project",
		mcp.WithDescription("Save the project and record a revision"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("label", mcp.Description("Revision label (optional)")),
	), s.handleSaveProject)

	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the pages of a project; the current page is flagged"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
	), s.handleListPages)

	// ── create_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Append a page to the project. The current page does not change."),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("title", mcp.Description("Page title (optional)")),
	), s.handleCreatePage)

	// ── switch_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("switch_page",
		mcp.WithDescription("Make a page current. Element tools act on the current page."),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("pageId", mcp.Description("ID of the page"), mcp.Required()),
	), s.handleSwitchPage)

	// ── delete_page (destructive) ──────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_page",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a page and its elements. Requires user approval."),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("pageId", mcp.Description("ID of the page"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeletePage)
}

func (s *Server) handleListProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.builder.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	type projectSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	out := make([]projectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectSummary{ID: p.ID, Name: p.Name})
	}
	return jsonResult(out)
}

func (s *Server) handleCreateProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	p, err := s.builder.CreateProject(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	if _, err := s.builder.Open(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	s.setActive(p.ID)
	return jsonResult(map[string]string{"id": p.ID, "name": p.Name})
}

func (s *Server) handleOpenProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("projectId", "")
	if id == "" {
		return nil, fmt.Errorf("projectId is required")
	}
	sess, err := s.builder.Open(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	s.setActive(id)
	return jsonResult(map[string]any{
		"id":       sess.ProjectID,
		"name":     sess.Name,
		"pages":    sess.Pager.Pages(),
		"elements": len(sess.Store.Elements()),
	})
}

func (s *Server) handleSaveProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	label := req.GetString("label", "mcp")
	saved, err := s.builder.Save(ctx, sess.ProjectID, label)
	if err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	return jsonResult(saved)
}

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	return jsonResult(sess.Pager.Pages())
}

func (s *Server) handleCreatePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	page := sess.CreatePage(req.GetString("title", ""))
	return jsonResult(map[string]any{"id": page.ID, "title": page.Title, "order": page.Order})
}

func (s *Server) handleSwitchPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	pageID := req.GetString("pageId", "")
	if err := sess.SwitchPage(pageID); err != nil {
		return nil, fmt.Errorf("switch page: %w", err)
	}
	s.emitElementsChanged(ctx, sess.ProjectID)
	return textResult(fmt.Sprintf("Current page set to %s", pageID)), nil
}

func (s *Server) handleDeletePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	pageID := req.GetString("pageId", "")
	approved, err := s.approval.Request(PendingAction{
		Tool:        "delete_page",
		Description: fmt.Sprintf("Delete page %s", pageID),
		ProjectID:   sess.ProjectID,
	})
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}
	if err := sess.DeletePage(pageID); err != nil {
		return nil, fmt.Errorf("delete page: %w", err)
	}
	s.emitElementsChanged(ctx, sess.ProjectID)
	return textResult(fmt.Sprintf("Page %s deleted", pageID)), nil
}
