package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	projectsURI       = "smartclass://projects"
	projectURIPrefix  = "smartclass://project/"
	elementsURISuffix = "/elements"
)

func (s *Server) registerResources() {
	// ── smartclass://projects ──────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		projectsURI,
		"All Projects",
		mcp.WithMIMEType("application/json"),
	), s.handleProjectsResource)

	// ── smartclass://project/{projectId}/elements ──────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			projectURIPrefix+"{projectId}"+elementsURISuffix,
			"Elements of the current page of an open project",
		),
		s.handleElementsResource,
	)
}

func (s *Server) handleProjectsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	projects, err := s.builder.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	type projectSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Open bool   `json:"open"`
	}
	open := make(map[string]bool)
	for _, id := range s.builder.OpenSessions() {
		open[id] = true
	}
	summaries := make([]projectSummary, 0, len(projects))
	for _, p := range projects {
		summaries = append(summaries, projectSummary{ID: p.ID, Name: p.Name, Open: open[p.ID]})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      projectsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleElementsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	projectID := projectIDFromURI(uri)
	if projectID == "" {
		return nil, fmt.Errorf("could not extract projectId from URI: %s", uri)
	}
	sess, err := s.builder.Session(projectID)
	if err != nil {
		return nil, err
	}

	els := sess.Store.Elements()
	summaries := make([]elementSummary, len(els))
	for i, el := range els {
		summaries[i] = summarizeElement(el)
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// projectIDFromURI extracts the id from "smartclass://project/{id}/elements".
func projectIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, projectURIPrefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, elementsURISuffix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
