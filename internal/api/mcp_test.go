package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dvsaikumar/promptlab/internal/storage"
	"github.com/dvsaikumar/promptlab/internal/vector"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Store:   store,
		Vectors: vector.New(store.DB()),
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_SavePrompt(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpSavePrompt(deps)

	req := makeCallToolRequest("save_prompt", map[string]interface{}{
		"title":     "Weekly digest",
		"framework": "costar",
		"prompt":    "# Context\nSummarize the week\n",
		"fields":    `{"context":"Summarize the week"}`,
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	prompts, err := store.ListPrompts()
	if err != nil {
		t.Fatalf("listing prompts: %v", err)
	}
	if len(prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(prompts))
	}
	if prompts[0].Title != "Weekly digest" {
		t.Errorf("unexpected title: %q", prompts[0].Title)
	}
	// Defaults applied when the optional JSON args are omitted.
	if prompts[0].Tones != "[]" {
		t.Errorf("expected default tones, got %q", prompts[0].Tones)
	}
}

func TestMCPTool_SavePrompt_MissingRequired(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSavePrompt(deps)

	req := makeCallToolRequest("save_prompt", map[string]interface{}{
		"title": "no framework or prompt",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing required args")
	}
}

func TestMCPTool_GetPrompt(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	id, err := store.SavePrompt(storage.Prompt{Title: "t", Framework: "race", Prompt: "p", Fields: "{}", Tones: "[]"})
	if err != nil {
		t.Fatalf("seeding prompt: %v", err)
	}
	handler := mcpGetPrompt(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_prompt", map[string]interface{}{"id": float64(id)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var got storage.Prompt
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if got.ID != id || got.Title != "t" {
		t.Errorf("round-trip mismatch: %+v", got)
	}

	// Missing id reports a tool error, not a Go error.
	result, err = handler(context.Background(), makeCallToolRequest("get_prompt", map[string]interface{}{"id": float64(999)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing prompt")
	}
}

func TestMCPTool_SearchPrompts(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	if _, err := store.SavePrompt(storage.Prompt{Title: "Churn analysis", Framework: "tag", Prompt: "find churn drivers", Fields: "{}", Tones: "[]"}); err != nil {
		t.Fatalf("seeding prompt: %v", err)
	}
	handler := mcpSearchPrompts(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_prompts", map[string]interface{}{"query": "churn"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var prompts []json.RawMessage
	if err := json.Unmarshal([]byte(toolText(t, result)), &prompts); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if len(prompts) != 1 {
		t.Errorf("expected 1 match, got %d", len(prompts))
	}

	// No match returns an empty array literal.
	result, err = handler(context.Background(), makeCallToolRequest("search_prompts", map[string]interface{}{"query": "nothing"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toolText(t, result) != "[]" {
		t.Errorf("expected empty array, got %s", toolText(t, result))
	}
}

func TestMCPTool_UpdatePrompt(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	id, err := store.SavePrompt(storage.Prompt{Title: "before", Framework: "ape", Prompt: "p", Fields: "{}", Tones: "[]"})
	if err != nil {
		t.Fatalf("seeding prompt: %v", err)
	}
	handler := mcpUpdatePrompt(deps)

	result, err := handler(context.Background(), makeCallToolRequest("update_prompt", map[string]interface{}{
		"id":      float64(id),
		"changes": `{"title":"after","quality_score":91}`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	got, err := store.GetPrompt(id)
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if got.Title != "after" || got.QualityScore == nil || *got.QualityScore != 91 {
		t.Errorf("update not applied: %+v", got)
	}

	// Malformed changes JSON is a tool error.
	result, err = handler(context.Background(), makeCallToolRequest("update_prompt", map[string]interface{}{
		"id":      float64(id),
		"changes": `{not json`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for malformed changes")
	}
}

func TestMCPTool_ComposePrompt(t *testing.T) {
	handler := mcpComposePrompt()

	result, err := handler(context.Background(), makeCallToolRequest("compose_prompt", map[string]interface{}{
		"framework": "race",
		"fields":    `{"role":"Reviewer","action":"Summarize the diff"}`,
		"tones":     []string{"technical"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	text := toolText(t, result)
	if !strings.Contains(text, "# Role\nReviewer") || !strings.Contains(text, "# Tone") {
		t.Errorf("unexpected composed text:\n%s", text)
	}

	// Unknown framework surfaces as a tool error.
	result, err = handler(context.Background(), makeCallToolRequest("compose_prompt", map[string]interface{}{
		"framework": "nope",
		"fields":    `{}`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for unknown framework")
	}
}

func TestMCPTool_Settings(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	upsert := mcpUpsertSetting(deps)
	result, err := upsert(context.Background(), makeCallToolRequest("upsert_setting", map[string]interface{}{
		"provider_id": "openai",
		"api_key":     "sk-test",
		"model":       "gpt-4o",
		"is_active":   true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	active := mcpGetActiveSetting(deps)
	result, err = active(context.Background(), makeCallToolRequest("get_active_setting", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got storage.Setting
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if got.ProviderID != "openai" || !got.IsActive {
		t.Errorf("unexpected active setting: %+v", got)
	}

	// Delete it; active lookup then reports a tool error.
	del := mcpDeleteSetting(deps)
	if _, err := del(context.Background(), makeCallToolRequest("delete_setting", map[string]interface{}{"id": float64(got.ID)})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	settings, err := store.ListSettings()
	if err != nil {
		t.Fatalf("ListSettings: %v", err)
	}
	if len(settings) != 0 {
		t.Errorf("expected no settings after delete, got %d", len(settings))
	}

	result, err = active(context.Background(), makeCallToolRequest("get_active_setting", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error with no active setting")
	}
}

func TestMCPTool_Vectors(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	add := mcpVectorAdd(deps)
	result, err := add(context.Background(), makeCallToolRequest("vector_add", map[string]interface{}{
		"collection": "notes",
		"records":    `[{"id":"a","payload":{"text":"alpha"},"embedding":[1,0]},{"payload":{"text":"beta"},"embedding":[0,1]}]`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	search := mcpVectorSearch(deps)
	result, err = search(context.Background(), makeCallToolRequest("vector_search", map[string]interface{}{
		"collection": "notes",
		"vector":     `[1,0]`,
		"limit":      1,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var results []scoredRecordPayload
	if err := json.Unmarshal([]byte(toolText(t, result)), &results); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Errorf("unexpected search results: %+v", results)
	}

	// A non-positive limit is honored, not replaced by the default.
	result, err = search(context.Background(), makeCallToolRequest("vector_search", map[string]interface{}{
		"collection": "notes",
		"vector":     `[1,0]`,
		"limit":      0,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toolText(t, result) != "[]" {
		t.Errorf("expected empty array for zero limit, got %s", toolText(t, result))
	}

	// A limit above the stored count returns everything.
	result, err = search(context.Background(), makeCallToolRequest("vector_search", map[string]interface{}{
		"collection": "notes",
		"vector":     `[1,0]`,
		"limit":      100,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results = nil
	if err := json.Unmarshal([]byte(toolText(t, result)), &results); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected both records back, got %+v", results)
	}

	// Missing collection returns the empty array literal.
	result, err = search(context.Background(), makeCallToolRequest("vector_search", map[string]interface{}{
		"collection": "ghost",
		"vector":     `[1,0]`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toolText(t, result) != "[]" {
		t.Errorf("expected empty array, got %s", toolText(t, result))
	}

	list := mcpListCollections(deps)
	result, err = list(context.Background(), makeCallToolRequest("list_collections", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(toolText(t, result)), &names); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if len(names) != 1 || names[0] != "notes" {
		t.Errorf("unexpected collections: %v", names)
	}
}

func TestMCPResource_Frameworks(t *testing.T) {
	handler := mcpResourceFrameworks()

	contents, err := handler(context.Background(), makeReadResourceRequest("promptlab://frameworks"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var payload struct {
		Frameworks []json.RawMessage `json:"frameworks"`
		Tones      []string          `json:"tones"`
	}
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("parsing resource: %v", err)
	}
	if len(payload.Frameworks) != 5 || len(payload.Tones) == 0 {
		t.Errorf("unexpected resource payload: %s", text.Text)
	}
}

func TestMCPResource_RecentPrompts(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	for i := 0; i < 12; i++ {
		if _, err := store.SavePrompt(storage.Prompt{Title: "p", Framework: "tag", Prompt: "x", Fields: "{}", Tones: "[]"}); err != nil {
			t.Fatalf("seeding prompt %d: %v", i, err)
		}
	}
	handler := mcpResourceRecentPrompts(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("promptlab://prompts/recent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents).Text

	var summaries []json.RawMessage
	if err := json.Unmarshal([]byte(text), &summaries); err != nil {
		t.Fatalf("parsing resource: %v", err)
	}
	if len(summaries) != 10 {
		t.Errorf("expected at most 10 summaries, got %d", len(summaries))
	}
}
