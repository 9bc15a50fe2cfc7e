package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("lesson_page",
		mcp.WithPromptDescription("Guide through building a lesson page with a title, body text and media"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("Topic of the lesson"),
			mcp.RequiredArgument(),
		),
	), s.handleLessonPagePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("matching_exercise",
		mcp.WithPromptDescription("Build a matching exercise out of connection node pairs"),
		mcp.WithArgument("pairs",
			mcp.ArgumentDescription("Comma-separated term=answer pairs"),
			mcp.RequiredArgument(),
		),
	), s.handleMatchingExercisePrompt)
}

func (s *Server) handleLessonPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a lesson page about: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a lesson page about "%s" in the active project. Follow these steps:

1. Use create_page with the title "%s" and switch_page to it
2. Add a heading element (add_element, type "heading") with the lesson title
3. Add a "card" template (add_template) for each key idea, and set the card texts with update_element
4. Add an image or video element where a picture helps, leaving src empty for the teacher to fill in
5. Call list_layers to check the structure, then save_project

Let auto-layout place the elements unless a position matters.`, topic, topic),
				},
			},
		},
	}, nil
}

func (s *Server) handleMatchingExercisePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	pairs := req.Params.Arguments["pairs"]
	return &mcp.GetPromptResult{
		Description: "Build a matching exercise",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a matching exercise from these pairs: %s. Follow these steps:

1. For each pair, add a "connection-pair" template (add_template)
2. Set the content of the two nodes with update_element: the term on the first, the answer on the second
3. Use connection_attempt on one pair to check that it connects
4. Save with save_project

Every connection group must have exactly two nodes; never add a third node to a pair.`, pairs),
				},
			},
		},
	}, nil
}
