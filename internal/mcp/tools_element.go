package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
	"smartclass/internal/render"
)

// elementSummary is the compact view of an element returned to agents.
type elementSummary struct {
	ID       string             `json:"id"`
	Type     domain.ElementType `json:"type"`
	Name     string             `json:"name"`
	ParentID string             `json:"parentId,omitempty"`
	X        float64            `json:"x"`
	Y        float64            `json:"y"`
	Width    float64            `json:"width"`
	Height   float64            `json:"height"`
	Content  string             `json:"content,omitempty"`
	Group    string             `json:"connectionGroupId,omitempty"`
}

func summarizeElement(el domain.Element) elementSummary {
	g := el.Geometry()
	return elementSummary{
		ID:       el.ID,
		Type:     el.Type,
		Name:     el.Name,
		ParentID: el.ParentID,
		X:        g.X,
		Y:        g.Y,
		Width:    g.Width,
		Height:   g.Height,
		Content:  el.Text().Content,
		Group:    el.Connection().GroupID,
	}
}

// defaultSizes per element type, used when the agent gives no size.
var defaultSizes = map[domain.ElementType][2]float64{
	domain.ElementTypeContainer:      {400, 300},
	domain.ElementTypeHeading:        {400, 48},
	domain.ElementTypeParagraph:      {400, 120},
	domain.ElementTypeText:           {240, 40},
	domain.ElementTypeRichText:       {400, 160},
	domain.ElementTypeImage:          {320, 240},
	domain.ElementTypeVideo:          {480, 270},
	domain.ElementTypeButton:         {160, 40},
	domain.ElementTypeConnectionText: {160, 60},
	domain.ElementTypeConnectionImg:  {160, 120},
}

func (s *Server) registerElementTools() {
	// ── list_elements ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_elements",
		mcp.WithDescription("List the elements of the current page, optionally filtered by type"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("type", mcp.Description("Filter by element type (optional)")),
	), s.handleListElements)

	// ── list_layers ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_layers",
		mcp.WithDescription("Show the element tree of the current page as an indented outline"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
	), s.handleListLayers)

	// ── add_element ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_element",
		mcp.WithDescription("Add an element to the current page. Position is auto-laid out when omitted."),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("type",
			mcp.Description("Element type"),
			mcp.Required(),
			mcp.Enum(lo.Map(domain.ElementTypes, func(t domain.ElementType, _ int) string { return string(t) })...),
		),
		mcp.WithString("parentId", mcp.Description("Container to nest the element in (optional)")),
		mcp.WithString("name", mcp.Description("Layer name (optional)")),
		mcp.WithString("content", mcp.Description("Text content (optional)")),
		mcp.WithString("src", mcp.Description("Image or video source (optional)")),
		mcp.WithNumber("x", mcp.Description("X position relative to the parent (optional)")),
		mcp.WithNumber("y", mcp.Description("Y position relative to the parent (optional)")),
		mcp.WithNumber("width", mcp.Description("Width (optional)")),
		mcp.WithNumber("height", mcp.Description("Height (optional)")),
	), s.handleAddElement)

	// ── add_template ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_template",
		mcp.WithDescription("Insert a prebuilt group of elements"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("name", mcp.Description("Template name"), mcp.Required(), mcp.Enum(builder.TemplateNames()...)),
		mcp.WithString("parentId", mcp.Description("Container to insert into (optional)")),
		mcp.WithNumber("x", mcp.Description("X position (optional)")),
		mcp.WithNumber("y", mcp.Description("Y position (optional)")),
	), s.handleAddTemplate)

	// ── update_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_element",
		mcp.WithDescription("Change an element's text, name, geometry or raw properties"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("elementId", mcp.Description("Element ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("New layer name (optional)")),
		mcp.WithString("content", mcp.Description("New text content (optional)")),
		mcp.WithNumber("x", mcp.Description("New X (optional)")),
		mcp.WithNumber("y", mcp.Description("New Y (optional)")),
		mcp.WithNumber("width", mcp.Description("New width (optional)")),
		mcp.WithNumber("height", mcp.Description("New height (optional)")),
		mcp.WithString("properties", mcp.Description(`JSON object merged into the properties; null removes a key (optional)`)),
	), s.handleUpdateElement)

	// ── move_element ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_element",
		mcp.WithDescription("Move an element into another container, or to the canvas root with an empty parentId"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("elementId", mcp.Description("Element ID"), mcp.Required()),
		mcp.WithString("parentId", mcp.Description("New parent container")),
	), s.handleMoveElement)

	// ── arrange_elements ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("arrange_elements",
		mcp.WithDescription("Lay sibling elements out in rows, as one undo step"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("elementIds", mcp.Description("Comma-separated element IDs"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("Start X (optional)")),
		mcp.WithNumber("y", mcp.Description("Start Y (optional)")),
	), s.handleArrangeElements)

	// ── remove_element (destructive) ───────────────────
	s.mcp.AddTool(mcp.NewTool("remove_element",
		mcp.WithDescription("🛑 DESTRUCTIVE: Remove elements and everything nested in them. Requires user approval."),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("elementIds", mcp.Description("Comma-separated element IDs"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveElement)

	// ── select_element ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("select_element",
		mcp.WithDescription("Select an element in the builder so the user sees it"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("elementId", mcp.Description("Element ID; empty clears the selection")),
		mcp.WithBoolean("multi", mcp.Description("Toggle into the current selection")),
	), s.handleSelectElement)

	// ── undo / redo ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last element change"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
	), s.handleUndo)
	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone element change"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
	), s.handleRedo)

	// ── connection_attempt ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("connection_attempt",
		mcp.WithDescription("Try to connect two connection nodes, as a student would"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
		mcp.WithString("sourceId", mcp.Description("Node the line starts from"), mcp.Required()),
		mcp.WithString("targetId", mcp.Description("Node the line is dropped on (optional, defaults to the pair)")),
	), s.handleConnectionAttempt)

	// ── connection_diagnostics ─────────────────────────
	s.mcp.AddTool(mcp.NewTool("connection_diagnostics",
		mcp.WithDescription("Report connection groups on the current page that do not have exactly two nodes"),
		mcp.WithString("projectId", mcp.Description("Project ID (optional, defaults to active project)")),
	), s.handleConnectionDiagnostics)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	filter := domain.ElementType(req.GetString("type", ""))
	out := []elementSummary{}
	for _, el := range sess.Store.Elements() {
		if filter == "" || el.Type == filter {
			out = append(out, summarizeElement(el))
		}
	}
	return jsonResult(out)
}

func (s *Server) handleListLayers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	// Agents see the whole tree regardless of what the user collapsed.
	rows := render.ExpandedRows(sess.Store.Elements())
	return textResult(render.LayerTree(sess.Name, rows)), nil
}

func (s *Server) handleAddElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(args)
	if err != nil {
		return nil, err
	}
	typ := domain.ElementType(req.GetString("type", ""))
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", builder.ErrUnknownType, typ)
	}
	parentID := req.GetString("parentId", "")

	size := defaultSizes[typ]
	w := getFloat(args, "width", size[0])
	h := getFloat(args, "height", size[1])

	x, hasX := args["x"].(float64)
	y, hasY := args["y"].(float64)
	if !hasX || !hasY {
		rowW := 0.0
		if parent, ok := sess.Store.Element(parentID); ok {
			rowW = parent.Geometry().Width
		}
		x, y = s.layout.NextPosition(sess.Store.Elements(), parentID, w, h, rowW)
	}

	props := domain.Geometry{X: x, Y: y, Width: w, Height: h}.Patch()
	if content := req.GetString("content", ""); content != "" {
		props[domain.PropContent] = content
	}
	if src := req.GetString("src", ""); src != "" {
		props[domain.PropSrc] = src
	}

	el, err := sess.Store.AddElement(builder.NewElement{
		Type:       typ,
		ParentID:   parentID,
		Name:       req.GetString("name", ""),
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("add element: %w", err)
	}
	s.emitElementsChanged(ctx, sess.ProjectID)
	return jsonResult(summarizeElement(el))
}

func (s *Server) handleAddTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(args)
	if err != nil {
		return nil, err
	}
	parentID := req.GetString("parentId", "")
	x, hasX := args["x"].(float64)
	y, hasY := args["y"].(float64)
	if !hasX || !hasY {
		// Templates are at most 640x320; reserve that footprint.
		x, y = s.layout.NextPosition(sess.Store.Elements(), parentID, 640, 320, 0)
	}
	els, err := sess.Store.AddTemplate(req.GetString("name", ""), parentID, x, y)
	if err != nil {
		return nil, fmt.Errorf("add template: %w", err)
	}
	s.emitElementsChanged(ctx, sess.ProjectID)
	return jsonResult(lo.Map(els, func(el domain.Element, _ int) elementSummary { return summarizeElement(el) }))
}

func (s *Server) handleUpdateElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(args)
	if err != nil {
		return nil, err
	}
	id := req.GetString("elementId", "")
	if _, ok := sess.Store.Element(id); !ok {
		return nil, fmt.Errorf("%w: %q", builder.ErrElementNotFound, id)
	}

	patch := builder.Patch{ID: id, Properties: domain.Properties{}}
	if raw := req.GetString("properties", ""); raw != "" {
		if err := parseJSON(raw, &patch.Properties); err != nil {
			return nil, fmt.Errorf("properties must be a JSON object: %w", err)
		}
	}
	if content, ok := args["content"].(string); ok {
		patch.Properties[domain.PropContent] = content
	}
	for _, key := range []string{domain.PropX, domain.PropY, domain.PropWidth, domain.PropHeight} {
		if v, ok := args[key].(float64); ok {
			patch.Properties[key] = v
		}
	}
	if name, ok := args["name"].(string); ok && name != "" {
		patch.Name = &name
	}

	if _, err := sess.Store.UpdateElements([]builder.Patch{patch}); err != nil {
		return nil, fmt.Errorf("update element: %w", err)
	}
	el, _ := sess.Store.Element(id)
	s.emitElementsChanged(ctx, sess.ProjectID)
	return jsonResult(summarizeElement(el))
}

func (s *Server) handleMoveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	id := req.GetString("elementId", "")
	parentID := req.GetString("parentId", "")
	if _, err := sess.Store.MoveElement(id, parentID); err != nil {
		return nil, fmt.Errorf("move element: %w", err)
	}
	s.emitElementsChanged(ctx, sess.ProjectID)
	return textResult(fmt.Sprintf("Element %s moved", id)), nil
}

func (s *Server) handleArrangeElements(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sess, err := s.session(args)
	if err != nil {
		return nil, err
	}
	var elements []domain.Element
	for _, id := range splitIDs(req.GetString("elementIds", "")) {
		el, ok := sess.Store.Element(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", builder.ErrElementNotFound, id)
		}
		elements = append(elements, el)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("elementIds is required")
	}

	placed := s.layout.ArrangeGroup(elements, getFloat(args, "x", 0), getFloat(args, "y", 0))
	patches := make([]builder.Patch, 0, len(elements))
	for _, el := range elements {
		patches = append(patches, builder.Patch{ID: el.ID, Properties: placed[el.ID]})
	}
	n, err := sess.Store.UpdateElements(patches)
	if err != nil {
		return nil, fmt.Errorf("arrange elements: %w", err)
	}
	s.emitElementsChanged(ctx, sess.ProjectID)
	return textResult(fmt.Sprintf("Arranged %d elements", n)), nil
}

func (s *Server) handleRemoveElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	ids := splitIDs(req.GetString("elementIds", ""))
	if len(ids) == 0 {
		return nil, fmt.Errorf("elementIds is required")
	}
	elements := sess.Store.Elements()
	affected := append([]string(nil), ids...)
	for _, id := range ids {
		affected = append(affected, builder.Descendants(elements, id)...)
	}

	approved, err := s.approval.Request(PendingAction{
		Tool:        "remove_element",
		Description: fmt.Sprintf("Remove %d element(s)", len(lo.Uniq(affected))),
		ProjectID:   sess.ProjectID,
		ElementIDs:  lo.Uniq(affected),
	})
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	n := sess.Store.RemoveElements(ids)
	s.emitElementsChanged(ctx, sess.ProjectID)
	return textResult(fmt.Sprintf("Removed %d element(s)", n)), nil
}

func (s *Server) handleSelectElement(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	id := req.GetString("elementId", "")
	if id == "" {
		sess.Store.ClearSelection()
		return textResult("Selection cleared"), nil
	}
	if !sess.Store.SelectElement(id, req.GetBool("multi", false)) {
		return nil, fmt.Errorf("%w: %q", builder.ErrElementNotFound, id)
	}
	return jsonResult(sess.Store.SelectedIDs())
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if !sess.Store.Undo() {
		return textResult("Nothing to undo"), nil
	}
	s.emitElementsChanged(ctx, sess.ProjectID)
	return textResult("Undone"), nil
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if !sess.Store.Redo() {
		return textResult("Nothing to redo"), nil
	}
	s.emitElementsChanged(ctx, sess.ProjectID)
	return textResult("Redone"), nil
}

func (s *Server) handleConnectionAttempt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	ev, err := sess.Connections.Attempt(req.GetString("sourceId", ""), req.GetString("targetId", ""))
	if err != nil {
		return nil, fmt.Errorf("connection attempt: %w", err)
	}
	return jsonResult(map[string]any{
		"success":   ev.Success,
		"sourceId":  ev.SourceID,
		"targetId":  ev.TargetID,
		"connected": sess.Connections.IsConnected(ev.SourceID),
	})
}

func (s *Server) handleConnectionDiagnostics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.session(req.GetArguments())
	if err != nil {
		return nil, err
	}
	diags := sess.Diagnostics()
	if len(diags) == 0 {
		return textResult("All connection groups have exactly two nodes"), nil
	}
	return jsonResult(diags)
}
