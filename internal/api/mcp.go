package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dvsaikumar/promptlab/internal/composer"
	"github.com/dvsaikumar/promptlab/internal/storage"
	"github.com/dvsaikumar/promptlab/internal/vector"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Vectors *vector.Store
}

// NewMCPServer creates an MCP server exposing the prompt library, provider
// settings, and vector collections as tools, so agent clients can use the
// same operations the HTTP facade serves.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"promptlab",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("promptlab — local prompt library with framework composition, provider settings, and vector collections."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("save_prompt",
			mcp.WithDescription("Save a prompt to the local library."),
			mcp.WithString("title", mcp.Description("Prompt title"), mcp.Required()),
			mcp.WithString("framework", mcp.Description("Framework id (e.g. costar, race)"), mcp.Required()),
			mcp.WithString("prompt", mcp.Description("The full prompt text"), mcp.Required()),
			mcp.WithString("fields", mcp.Description("JSON object of framework field values")),
			mcp.WithString("tones", mcp.Description("JSON array of tone ids")),
			mcp.WithString("industry", mcp.Description("Target industry")),
			mcp.WithString("role", mcp.Description("Target role or persona")),
			mcp.WithString("simple_idea", mcp.Description("The one-line idea the prompt was built from")),
		),
		mcpSavePrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("get_prompt",
			mcp.WithDescription("Fetch a single saved prompt by id."),
			mcp.WithNumber("id", mcp.Description("Prompt id"), mcp.Required()),
		),
		mcpGetPrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("list_prompts",
			mcp.WithDescription("List saved prompts, newest first, optionally filtered by framework."),
			mcp.WithString("framework", mcp.Description("Framework id to filter by")),
		),
		mcpListPrompts(deps),
	)

	s.AddTool(
		mcp.NewTool("search_prompts",
			mcp.WithDescription("Case-insensitive substring search over prompt titles and bodies."),
			mcp.WithString("query", mcp.Description("Search text"), mcp.Required()),
		),
		mcpSearchPrompts(deps),
	)

	s.AddTool(
		mcp.NewTool("update_prompt",
			mcp.WithDescription("Update fields of a saved prompt. Missing prompts are a no-op."),
			mcp.WithNumber("id", mcp.Description("Prompt id"), mcp.Required()),
			mcp.WithString("changes", mcp.Description("JSON object of fields to change (title, framework, prompt, fields, tones, industry, role, quality_score, quality_score_details, provider_id, model, simple_idea)"), mcp.Required()),
		),
		mcpUpdatePrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_prompt",
			mcp.WithDescription("Delete a saved prompt by id. Missing prompts are a no-op."),
			mcp.WithNumber("id", mcp.Description("Prompt id"), mcp.Required()),
		),
		mcpDeletePrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("compose_prompt",
			mcp.WithDescription("Render a structured prompt from a framework, field values, and tones."),
			mcp.WithString("framework", mcp.Description("Framework id (e.g. costar, race)"), mcp.Required()),
			mcp.WithString("fields", mcp.Description("JSON object mapping field keys to values"), mcp.Required()),
			mcp.WithArray("tones", mcp.Description("Tone ids to apply")),
			mcp.WithString("industry", mcp.Description("Target industry")),
			mcp.WithString("role", mcp.Description("Target role or persona")),
		),
		mcpComposePrompt(),
	)

	s.AddTool(
		mcp.NewTool("list_settings",
			mcp.WithDescription("List provider settings, most recently tested first."),
		),
		mcpListSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("get_active_setting",
			mcp.WithDescription("Fetch the currently active provider setting."),
		),
		mcpGetActiveSetting(deps),
	)

	s.AddTool(
		mcp.NewTool("upsert_setting",
			mcp.WithDescription("Insert or update a provider setting, keyed by (provider_id, model). Setting it active deactivates all others."),
			mcp.WithString("provider_id", mcp.Description("Provider id (e.g. openai, anthropic)"), mcp.Required()),
			mcp.WithString("api_key", mcp.Description("API key for the provider"), mcp.Required()),
			mcp.WithString("model", mcp.Description("Model name"), mcp.Required()),
			mcp.WithString("base_url", mcp.Description("Optional base URL override")),
			mcp.WithBoolean("is_active", mcp.Description("Make this the active setting")),
		),
		mcpUpsertSetting(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_setting",
			mcp.WithDescription("Delete a provider setting by id. Missing settings are a no-op."),
			mcp.WithNumber("id", mcp.Description("Setting id"), mcp.Required()),
		),
		mcpDeleteSetting(deps),
	)

	s.AddTool(
		mcp.NewTool("vector_add",
			mcp.WithDescription("Add embedding records to a named collection, creating the collection if needed."),
			mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
			mcp.WithString("records", mcp.Description("JSON array of {id?, payload, embedding} records"), mcp.Required()),
		),
		mcpVectorAdd(deps),
	)

	s.AddTool(
		mcp.NewTool("vector_search",
			mcp.WithDescription("Cosine-similarity search over a collection. Missing collections return no results."),
			mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
			mcp.WithString("vector", mcp.Description("JSON array of floats to search with"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpVectorSearch(deps),
	)

	s.AddTool(
		mcp.NewTool("list_collections",
			mcp.WithDescription("List the names of all vector collections."),
		),
		mcpListCollections(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"promptlab://frameworks",
			"Prompt Frameworks",
			mcp.WithResourceDescription("Available frameworks and tones as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceFrameworks(),
	)

	s.AddResource(
		mcp.NewResource(
			"promptlab://prompts/recent",
			"Recent Prompts",
			mcp.WithResourceDescription("Last 10 saved prompts (titles only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentPrompts(deps),
	)

	return s
}

func mcpSavePrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		framework, err := req.RequireString("framework")
		if err != nil {
			return mcpError("framework is required"), nil
		}
		text, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}

		p := storage.Prompt{
			Title:      title,
			Framework:  framework,
			Prompt:     text,
			Fields:     req.GetString("fields", "{}"),
			Tones:      req.GetString("tones", "[]"),
			Industry:   req.GetString("industry", ""),
			Role:       req.GetString("role", ""),
			SimpleIdea: req.GetString("simple_idea", ""),
		}

		id, err := deps.Store.SavePrompt(p)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save prompt: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Saved prompt %d", id)), nil
	}
}

func mcpGetPrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		p, err := deps.Store.GetPrompt(int64(id))
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("prompt %d not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get prompt: %v", err)), nil
		}
		return mcpJSON(p)
	}
}

func mcpListPrompts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var prompts []storage.Prompt
		var err error
		if framework := req.GetString("framework", ""); framework != "" {
			prompts, err = deps.Store.ListPromptsByFramework(framework)
		} else {
			prompts, err = deps.Store.ListPrompts()
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list prompts: %v", err)), nil
		}
		if len(prompts) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(prompts)
	}
}

func mcpSearchPrompts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		prompts, err := deps.Store.SearchPrompts(query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(prompts) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(prompts)
	}
}

func mcpUpdatePrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		changesJSON, err := req.RequireString("changes")
		if err != nil {
			return mcpError("changes is required"), nil
		}

		var changes promptUpdateRequest
		if err := json.Unmarshal([]byte(changesJSON), &changes); err != nil {
			return mcpError(fmt.Sprintf("invalid changes JSON: %v", err)), nil
		}

		err = deps.Store.UpdatePrompt(int64(id), storage.PromptUpdate{
			Title:               changes.Title,
			Framework:           changes.Framework,
			Prompt:              changes.Prompt,
			Fields:              changes.Fields,
			Tones:               changes.Tones,
			Industry:            changes.Industry,
			Role:                changes.Role,
			QualityScore:        changes.QualityScore,
			QualityScoreDetails: changes.QualityScoreDetails,
			ProviderID:          changes.ProviderID,
			Model:               changes.Model,
			SimpleIdea:          changes.SimpleIdea,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to update prompt: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Updated prompt %d", id)), nil
	}
}

func mcpDeletePrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		if err := deps.Store.DeletePrompt(int64(id)); err != nil {
			return mcpError(fmt.Sprintf("failed to delete prompt: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Deleted prompt %d", id)), nil
	}
}

func mcpComposePrompt() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		framework, err := req.RequireString("framework")
		if err != nil {
			return mcpError("framework is required"), nil
		}
		fieldsJSON, err := req.RequireString("fields")
		if err != nil {
			return mcpError("fields is required"), nil
		}

		var fields map[string]string
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return mcpError(fmt.Sprintf("invalid fields JSON: %v", err)), nil
		}

		text, err := composer.Compose(composer.Request{
			Framework: framework,
			Fields:    fields,
			Tones:     req.GetStringSlice("tones", nil),
			Industry:  req.GetString("industry", ""),
			Role:      req.GetString("role", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("compose failed: %v", err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpListSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		settings, err := deps.Store.ListSettings()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list settings: %v", err)), nil
		}
		if len(settings) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(settings)
	}
}

func mcpGetActiveSetting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := deps.Store.GetActiveSetting()
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError("no active setting"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get active setting: %v", err)), nil
		}
		return mcpJSON(st)
	}
}

func mcpUpsertSetting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		providerID, err := req.RequireString("provider_id")
		if err != nil {
			return mcpError("provider_id is required"), nil
		}
		apiKey, err := req.RequireString("api_key")
		if err != nil {
			return mcpError("api_key is required"), nil
		}
		model, err := req.RequireString("model")
		if err != nil {
			return mcpError("model is required"), nil
		}

		id, err := deps.Store.UpsertSetting(storage.Setting{
			ProviderID: providerID,
			APIKey:     apiKey,
			Model:      model,
			BaseURL:    req.GetString("base_url", ""),
			IsActive:   req.GetBool("is_active", false),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to upsert setting: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Saved setting %d", id)), nil
	}
}

func mcpDeleteSetting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		if err := deps.Store.DeleteSetting(int64(id)); err != nil {
			return mcpError(fmt.Sprintf("failed to delete setting: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Deleted setting %d", id)), nil
	}
}

func mcpVectorAdd(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collection, err := req.RequireString("collection")
		if err != nil {
			return mcpError("collection is required"), nil
		}
		recordsJSON, err := req.RequireString("records")
		if err != nil {
			return mcpError("records is required"), nil
		}

		var payloads []vectorRecordPayload
		if err := json.Unmarshal([]byte(recordsJSON), &payloads); err != nil {
			return mcpError(fmt.Sprintf("invalid records JSON: %v", err)), nil
		}
		if len(payloads) == 0 {
			return mcpError("records must not be empty"), nil
		}

		records := make([]vector.Record, len(payloads))
		for i, p := range payloads {
			payload := p.Payload
			if len(payload) == 0 {
				payload = json.RawMessage(`null`)
			}
			records[i] = vector.Record{
				ID:        p.ID,
				Payload:   string(payload),
				Embedding: p.Embedding,
			}
		}

		count, err := deps.Vectors.Add(collection, records)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add records: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added %d records to %s", count, collection)), nil
	}
}

func mcpVectorSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collection, err := req.RequireString("collection")
		if err != nil {
			return mcpError("collection is required"), nil
		}
		vectorJSON, err := req.RequireString("vector")
		if err != nil {
			return mcpError("vector is required"), nil
		}

		var query []float32
		if err := json.Unmarshal([]byte(vectorJSON), &query); err != nil {
			return mcpError(fmt.Sprintf("invalid vector JSON: %v", err)), nil
		}

		limit := req.GetInt("limit", vector.DefaultSearchLimit)

		scored, err := deps.Vectors.Search(collection, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(scored) == 0 {
			return mcpText("[]"), nil
		}

		results := make([]scoredRecordPayload, len(scored))
		for i, s := range scored {
			results[i] = scoredRecordPayload{
				ID:        s.ID,
				Payload:   json.RawMessage(s.Payload),
				Score:     s.Score,
				CreatedAt: s.CreatedAt.Format(timestampLayout),
			}
		}
		return mcpJSON(results)
	}
}

func mcpListCollections(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := deps.Vectors.ListCollections()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list collections: %v", err)), nil
		}
		if len(names) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(names)
	}
}

func mcpResourceFrameworks() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(map[string]any{
			"frameworks": composer.Frameworks(),
			"tones":      composer.Tones(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal frameworks: %w", err)
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

func mcpResourceRecentPrompts(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		prompts, err := deps.Store.ListPrompts()
		if err != nil {
			return nil, fmt.Errorf("failed to list prompts: %w", err)
		}
		if len(prompts) > 10 {
			prompts = prompts[:10]
		}

		type promptSummary struct {
			ID        int64  `json:"id"`
			Title     string `json:"title"`
			Framework string `json:"framework"`
			CreatedAt string `json:"created_at"`
		}

		summaries := make([]promptSummary, len(prompts))
		for i, p := range prompts {
			title := p.Title
			if utf8.RuneCountInString(title) > 200 {
				runes := []rune(title)
				title = string(runes[:200]) + "..."
			}
			summaries[i] = promptSummary{
				ID:        p.ID,
				Title:     title,
				Framework: p.Framework,
				CreatedAt: p.CreatedAt.Format(timestampLayout),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal prompts: %w", err)
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
