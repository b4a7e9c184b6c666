package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/itsbennie/bennie/internal/language"
	"github.com/itsbennie/bennie/internal/lesson"
	"github.com/itsbennie/bennie/internal/leveling"
	"github.com/itsbennie/bennie/internal/storage"
	"github.com/itsbennie/bennie/internal/topics"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Planner Planner
	Table   topics.Table // optional; defaults to topics.DefaultTable
}

// NewMCPServer creates an MCP server exposing Bennie's content decisions to
// operator tooling. Nothing it exposes sends email.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Table == nil {
		deps.Table = topics.DefaultTable()
	}

	s := server.NewMCPServer(
		"bennie",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Bennie: inspect learner proficiency bands, topic history, and the prompts used for practice emails."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("proficiency_band",
			mcp.WithDescription("Map a 1-100 proficiency score to its band, label, and teaching guidance."),
			mcp.WithNumber("score", mcp.Description("Proficiency score from 1 to 100"), mcp.Required()),
		),
		mcpProficiencyBand(),
	)

	s.AddTool(
		mcp.NewTool("analyze_topics",
			mcp.WithDescription("List the topics recent emails covered, newest first. Pass user_id to analyze stored history, or language and texts to analyze ad-hoc emails."),
			mcp.WithString("user_id", mcp.Description("Analyze this user's stored history")),
			mcp.WithString("language", mcp.Description("Target language of the texts (e.g. spanish)")),
			mcp.WithArray("texts", mcp.Description("Email bodies, newest first"), mcp.WithStringItems()),
		),
		mcpAnalyzeTopics(deps),
	)

	s.AddTool(
		mcp.NewTool("preview_prompt",
			mcp.WithDescription("Show the topic decision and generation prompt for a user's next practice email without sending it."),
			mcp.WithString("user_id", mcp.Description("User ID"), mcp.Required()),
		),
		mcpPreviewPrompt(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"bennie://users",
			"Learners",
			mcp.WithResourceDescription("Active learners with language and proficiency"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceUsers(deps),
	)

	return s
}

func mcpProficiencyBand() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		band, err := leveling.BandFor(req.GetInt("score", 0))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(map[string]any{
			"band":       band.Index,
			"label":      band.Label,
			"guidance":   band.Guidance,
			"vocabulary": band.Vocabulary,
		})
	}
}

func mcpAnalyzeTopics(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var (
			lang    string
			entries []topics.Entry
		)

		if userID := req.GetString("user_id", ""); userID != "" {
			u, err := deps.Store.GetUser(userID)
			if errors.Is(err, storage.ErrNotFound) {
				return mcpError(fmt.Sprintf("user %s not found", userID)), nil
			}
			if err != nil {
				return mcpError(fmt.Sprintf("failed to load user: %v", err)), nil
			}
			msgs, err := deps.Store.History(userID, lesson.DefaultHistoryWindow)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to load history: %v", err)), nil
			}
			lang, entries = u.TargetLanguage, lesson.Entries(msgs)
		} else {
			l, err := language.Parse(req.GetString("language", ""))
			if err != nil {
				return mcpError("either user_id or a supported language is required"), nil
			}
			lang = string(l)
			for _, text := range req.GetStringSlice("texts", nil) {
				entries = append(entries, topics.Entry{Text: text, FromSystem: true})
			}
		}

		recent := deps.Table.Analyze(lang, entries)
		if recent == nil {
			recent = []string{}
		}
		return mcpJSON(map[string]any{"language": lang, "recent": recent})
	}
}

func mcpPreviewPrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		plan, err := deps.Planner.Plan(ctx, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("preview failed: %v", err)), nil
		}
		recent := plan.Decision.Recent
		if recent == nil {
			recent = []string{}
		}
		return mcpJSON(PreviewResponse{
			UserID: userID,
			Band:   plan.Profile.Band.Index,
			Label:  plan.Profile.Band.Label,
			Topic:  plan.Decision.Topic,
			Novel:  plan.Decision.Novel,
			Recent: recent,
			Prompt: plan.Prompt,
		})
	}
}

func mcpResourceUsers(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		users, err := deps.Store.ListUsers(true, 0, 100)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}

		type learner struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			Language     string `json:"language"`
			Level        int    `json:"proficiency_level"`
			Verified     bool   `json:"verified"`
			LastActivity string `json:"last_activity,omitempty"`
		}

		out := make([]learner, len(users))
		for i, u := range users {
			out[i] = learner{
				ID:       u.ID,
				Name:     u.DisplayName(),
				Language: u.TargetLanguage,
				Level:    u.ProficiencyLevel,
				Verified: u.Verified,
			}
			if !u.LastActivityAt.IsZero() {
				out[i].LastActivity = u.LastActivityAt.Format(time.RFC3339)
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal users: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
